// Package customers builds deterministic customer rows for warehouse fixtures.
//
// Example usage:
//
//	rows := customers.NewBuilder(42).
//		WithValid(40).
//		WithInvalid(20).
//		Build()
//
//	wh := testutil.SetupWarehouse(t, rows)
package customers

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/Veraticus/idguard/internal/model"
)

// Customer is one warehouse row plus its ground-truth class.
type Customer struct {
	Record model.Record
	Label  model.Label
}

// Values returns the row in model.CustomerSchema column order.
// Dates are rendered with model.DateLayout, NaN numerics become nil.
func (c Customer) Values() []any {
	r := c.Record
	return []any{
		r.BusinessUnit,
		r.Zone,
		r.Region,
		r.CustomerID,
		r.CompositeKey,
		r.MinDate.Format(model.DateLayout),
		r.MaxDate.Format(model.DateLayout),
		int64(r.TransactionCount),
		nullable(r.Money),
		int64(r.DatesCount),
		nullable(r.Volume),
		nullable(r.Qty),
	}
}

func nullable(f float64) any {
	if math.IsNaN(f) {
		return nil
	}
	return f
}

// Builder assembles a customer population.
type Builder struct {
	rng       *rand.Rand
	customers []Customer
	serial    int
}

// NewBuilder returns a builder whose output depends only on seed.
func NewBuilder(seed int64) *Builder {
	return &Builder{rng: rand.New(rand.NewSource(seed))} //nolint:gosec // fixture data
}

var (
	businessUnits = []string{"retail", "wholesale", "horeca"}
	zones         = []string{"north", "south", "east", "west"}
	regions       = []string{"r1", "r2", "r3"}
)

// WithValid adds n customers with organic-looking identifiers.
func (b *Builder) WithValid(n int) *Builder {
	for i := 0; i < n; i++ {
		b.customers = append(b.customers, b.customer(b.organicID(), model.LabelValid))
	}
	return b
}

// WithInvalid adds n customers with placeholder identifiers such as
// runs, sequences and repeated pairs.
func (b *Builder) WithInvalid(n int) *Builder {
	for i := 0; i < n; i++ {
		b.customers = append(b.customers, b.customer(b.placeholderID(i), model.LabelInvalid))
	}
	return b
}

// WithCustomer adds a customer with a fixed identifier.
func (b *Builder) WithCustomer(id string, label model.Label) *Builder {
	b.customers = append(b.customers, b.customer(id, label))
	return b
}

// Build returns the customers, interleaving the classes so that
// row windows contain both.
func (b *Builder) Build() []Customer {
	out := make([]Customer, len(b.customers))
	copy(out, b.customers)
	b.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func (b *Builder) customer(id string, label model.Label) Customer {
	b.serial++
	first := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, b.rng.Intn(300))
	last := first.AddDate(0, 0, 1+b.rng.Intn(200))
	txns := 1 + b.rng.Intn(40)

	rec := model.Record{
		BusinessUnit:     businessUnits[b.rng.Intn(len(businessUnits))],
		Zone:             zones[b.rng.Intn(len(zones))],
		Region:           regions[b.rng.Intn(len(regions))],
		CustomerID:       id,
		CompositeKey:     fmt.Sprintf("CK-%05d", b.serial),
		MinDate:          first,
		MaxDate:          last,
		TransactionCount: float64(txns),
		Money:            float64(txns) * (10 + b.rng.Float64()*90),
		DatesCount:       float64(1 + b.rng.Intn(txns)),
		Volume:           b.rng.Float64() * 500,
		Qty:              float64(txns * (1 + b.rng.Intn(5))),
	}
	return Customer{Record: rec, Label: label}
}

// organicID draws 7 to 10 digit identifiers that avoid the placeholder shapes.
func (b *Builder) organicID() string {
	for {
		n := 7 + b.rng.Intn(4)
		var sb strings.Builder
		for i := 0; i < n; i++ {
			sb.WriteByte(byte('0' + b.rng.Intn(10)))
		}
		id := sb.String()
		if !looksPlaceholder(id) {
			return id
		}
	}
}

func (b *Builder) placeholderID(i int) string {
	d := byte('0' + b.rng.Intn(10))
	n := 6 + b.rng.Intn(5)
	switch i % 4 {
	case 0:
		return strings.Repeat(string(d), n)
	case 1:
		return "123456789"[:n-1]
	case 2:
		return "987654321"[:n-1]
	default:
		pair := string([]byte{d, byte('0' + (int(d-'0')+3)%10)})
		return strings.Repeat(pair, n/2)
	}
}

func looksPlaceholder(id string) bool {
	ascending, descending := true, true
	for i := 1; i < len(id); i++ {
		if id[i] == id[i-1] {
			return true
		}
		ascending = ascending && id[i] > id[i-1]
		descending = descending && id[i] < id[i-1]
	}
	if ascending || descending {
		return true
	}
	return len(id) >= 2 && strings.Repeat(id[:2], len(id)/2) == id
}

// Package artifact persists the fitted transform and model, one file each.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/idguard/internal/features"
	"github.com/Veraticus/idguard/internal/service"
	"github.com/Veraticus/idguard/internal/train"
)

// FormatVersion is the envelope layout version written by this package.
const FormatVersion = 1

// Artifact kinds.
const (
	KindTransform = "transform"
	KindModel     = "model"
)

// Artifact errors.
var (
	ErrWrongKind       = errors.New("artifact has the wrong kind")
	ErrSchemaMismatch  = errors.New("model was trained on a different feature schema")
	ErrUnsupportedFile = errors.New("unsupported artifact format version")
)

// Envelope wraps every persisted artifact.
type Envelope struct {
	CreatedAt     time.Time       `json:"created_at"`
	Kind          string          `json:"kind"`
	SchemaHash    string          `json:"schema_hash"`
	Payload       json.RawMessage `json:"payload"`
	FormatVersion int             `json:"format_version"`
}

// FileStore writes and reads JSON blobs on the local filesystem.
type FileStore struct{}

// Persist encodes v as JSON at path, creating parent directories.
// The file is written to a temporary name and renamed into place.
func (FileStore) Persist(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode artifact: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return nil
}

// Load decodes the JSON blob at path into v.
func (FileStore) Load(path string, v any) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return fmt.Errorf("failed to read artifact: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode artifact %s: %w", path, err)
	}
	return nil
}

// Store saves and loads typed artifacts through a blob store.
type Store struct {
	blobs service.BlobStore
	now   func() time.Time
}

// NewStore returns a store backed by the local filesystem.
func NewStore() *Store {
	return NewStoreWith(FileStore{})
}

// NewStoreWith returns a store backed by blobs.
func NewStoreWith(blobs service.BlobStore) *Store {
	return &Store{blobs: blobs, now: time.Now}
}

// SaveTransform persists a fitted transform.
func (s *Store) SaveTransform(path string, t *features.FittedTransform) error {
	return s.save(path, KindTransform, t.SchemaHash(), t)
}

// SaveModel persists a fitted model together with the hash of the transform it was trained on.
func (s *Store) SaveModel(path string, m *train.Forest, schemaHash string) error {
	return s.save(path, KindModel, schemaHash, m)
}

// LoadTransform reads a fitted transform.
func (s *Store) LoadTransform(path string) (*features.FittedTransform, error) {
	var t features.FittedTransform
	env, err := s.load(path, KindTransform, &t)
	if err != nil {
		return nil, err
	}
	if got := t.SchemaHash(); got != env.SchemaHash {
		return nil, fmt.Errorf("%w: transform payload hash %s, envelope %s", ErrSchemaMismatch, got, env.SchemaHash)
	}
	return &t, nil
}

// LoadModel reads a fitted model and the schema hash it was trained against.
func (s *Store) LoadModel(path string) (*train.Forest, string, error) {
	var m train.Forest
	env, err := s.load(path, KindModel, &m)
	if err != nil {
		return nil, "", err
	}
	return &m, env.SchemaHash, nil
}

// LoadPair loads both artifacts and checks that they belong together.
func (s *Store) LoadPair(transformPath, modelPath string) (*features.FittedTransform, *train.Forest, error) {
	t, err := s.LoadTransform(transformPath)
	if err != nil {
		return nil, nil, err
	}
	m, hash, err := s.LoadModel(modelPath)
	if err != nil {
		return nil, nil, err
	}
	if err := CheckCompatible(t, m, hash); err != nil {
		return nil, nil, err
	}
	return t, m, nil
}

// CheckCompatible verifies that a model was trained on the transform's output space.
func CheckCompatible(t *features.FittedTransform, m *train.Forest, modelHash string) error {
	if want := t.SchemaHash(); modelHash != want {
		return fmt.Errorf("%w: model %s, transform %s", ErrSchemaMismatch, modelHash, want)
	}
	if m.Features != len(t.FeatureNames) {
		return fmt.Errorf("%w: model expects %d features, transform produces %d",
			ErrSchemaMismatch, m.Features, len(t.FeatureNames))
	}
	return nil
}

func (s *Store) save(path, kind, hash string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", kind, err)
	}
	return s.blobs.Persist(path, Envelope{
		CreatedAt:     s.now().UTC(),
		Kind:          kind,
		SchemaHash:    hash,
		Payload:       raw,
		FormatVersion: FormatVersion,
	})
}

func (s *Store) load(path, kind string, payload any) (*Envelope, error) {
	var env Envelope
	if err := s.blobs.Load(path, &env); err != nil {
		return nil, err
	}
	if env.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedFile, env.FormatVersion)
	}
	if env.Kind != kind {
		return nil, fmt.Errorf("%w: want %s, got %s", ErrWrongKind, kind, env.Kind)
	}
	if err := json.Unmarshal(env.Payload, payload); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", kind, err)
	}
	return &env, nil
}

// Package warehouse provides the database/sql backed warehouse session and
// the file-backed query template reader.
package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/idguard/internal/common"
	"github.com/Veraticus/idguard/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib" // Postgres-compatible warehouse driver
	_ "github.com/mattn/go-sqlite3"    // Local warehouse driver
)

// ErrSessionClosed is returned when a query runs on a closed session.
var ErrSessionClosed = errors.New("warehouse session closed")

// Session is an explicit warehouse connection handle.
type Session struct {
	db        *sql.DB
	logger    *slog.Logger
	closeErr  error
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// Open connects to the warehouse and verifies the connection.
func Open(ctx context.Context, cfg config.Warehouse, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open(cfg.Driver, cfg.DataSourceName())
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", common.ErrConnection, cfg.Driver, err)
	}

	timeout := cfg.ConnTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", common.ErrConnection, cfg.Driver, err)
	}

	logger = logger.With("system", "warehouse", "driver", cfg.Driver)
	logger.Info("Connected to warehouse")

	return NewSession(db, logger), nil
}

// NewSession wraps an already open database handle.
func NewSession(db *sql.DB, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{db: db, logger: logger}
}

// ExecuteQuery runs query and returns every row as a slice of driver values.
// []byte values are converted to strings.
func (s *Session) ExecuteQuery(ctx context.Context, query string) ([][]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrSessionClosed
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrQuery, err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: columns: %w", common.ErrQuery, err)
	}

	var result [][]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", common.ErrQuery, err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result = append(result, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrQuery, err)
	}

	return result, nil
}

// Close releases the connection. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true
		s.closeErr = s.db.Close()
		if s.closeErr != nil {
			s.logger.Error("Failed to close warehouse session", "error", s.closeErr)
			return
		}
		s.logger.Info("Warehouse session closed")
	})
	return s.closeErr
}

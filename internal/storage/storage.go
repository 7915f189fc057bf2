// Package storage persists per-session task lists.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/concierge/internal/config"
)

// Store types accepted in session.store.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// SessionStore loads and saves the task list of one session at request boundaries.
// Load of an unknown session returns an empty list and no error.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) ([]string, error)
	Save(ctx context.Context, sessionID string, tasks []string) error
	Delete(ctx context.Context, sessionID string) error
	// Prune removes sessions not saved since before and reports how many went.
	Prune(ctx context.Context, before time.Time) (int64, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// NewSessionStore builds the store named by cfg.Store.
func NewSessionStore(cfg config.SessionConfig) (SessionStore, error) {
	switch cfg.Store {
	case "", StoreMemory:
		return NewMemorySessionStore(), nil
	case StoreSQLite:
		return NewSQLiteSessionStore(cfg.DatabasePath)
	default:
		return nil, fmt.Errorf("unknown session store: %s", cfg.Store)
	}
}

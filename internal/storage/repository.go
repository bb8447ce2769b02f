// Package storage is the backend-agnostic repository layer used to mirror
// eligible records into a database.
//
// Backends register a Factory under a kind name from their init functions;
// callers obtain a Repository with New and never import a backend directly.
// Import evetl/internal/storage/all to enable every built-in backend.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Repository is the minimal contract a storage backend provides.
type Repository interface {
	// CopyFrom bulk-inserts rows into the configured table. Every row has
	// len(columns) values in column order; nil stores NULL.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)
	// Exec runs a single statement, typically DDL.
	Exec(ctx context.Context, sql string) error
	// Close releases connections.
	Close()
}

// Config selects and configures a backend.
type Config struct {
	Kind    string   // registered backend name, e.g. "sqlite"
	DSN     string   // driver-specific connection string
	Table   string   // target table, optionally schema-qualified
	Columns []string // ordered destination columns
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

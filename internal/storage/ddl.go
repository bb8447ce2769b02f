package storage

import (
	"context"
	"fmt"
	"sync"
)

// Logical column types understood by every DDL bootstrapper.
const (
	TypeText   = "text"
	TypeInt    = "int"    // fits in 32 bits signed
	TypeBigInt = "bigint" // fits in 64 bits signed
)

// Column is one column of a TableDef.
type Column struct {
	Name     string
	Type     string // one of the Type* constants
	Nullable bool
}

// TableDef is a backend-neutral table definition.
type TableDef struct {
	Name    string // optionally schema-qualified, e.g. "public.eligible_vehicles"
	Columns []Column
}

// ColumnNames returns the column names of t in order.
func (t TableDef) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// DDLBootstrapper creates t through repo if it does not exist yet, using
// backend-specific column types.
type DDLBootstrapper func(ctx context.Context, repo Repository, t TableDef) error

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBootstrapper{}
)

// RegisterDDL registers (or replaces) the DDLBootstrapper for kind. Backends
// call it from init.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// EnsureTable creates t with the bootstrapper registered for kind.
func EnsureTable(ctx context.Context, kind string, repo Repository, t TableDef) error {
	ddlMu.RLock()
	fn, ok := ddlFns[kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL bootstrapper registered for storage.kind=%q", kind)
	}
	return fn(ctx, repo, t)
}

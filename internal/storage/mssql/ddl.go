package mssql

import (
	"context"
	"fmt"
	"strings"

	"evetl/internal/storage"
)

func mapType(kind string) string {
	switch kind {
	case storage.TypeInt:
		return "INT"
	case storage.TypeBigInt:
		return "BIGINT"
	default:
		return "NVARCHAR(MAX)"
	}
}

// buildCreateTable renders t as a CREATE TABLE guarded by OBJECT_ID, since
// T-SQL has no CREATE TABLE IF NOT EXISTS.
func buildCreateTable(t storage.TableDef) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("mssql ddl: table name must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("mssql ddl: at least one column is required")
	}
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return "", fmt.Errorf("mssql ddl: column %d has an empty name", i)
		}
		col := msIdent(c.Name) + " " + mapType(c.Type)
		if !c.Nullable {
			col += " NOT NULL"
		}
		cols[i] = col
	}
	fqn := msFQN(t.Name)
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n  CREATE TABLE %s (\n    %s\n  );\nEND;",
		strings.ReplaceAll(fqn, "'", "''"), fqn, strings.Join(cols, ",\n    ")), nil
}

func ensureTable(ctx context.Context, repo storage.Repository, t storage.TableDef) error {
	stmt, err := buildCreateTable(t)
	if err != nil {
		return err
	}
	return repo.Exec(ctx, stmt)
}

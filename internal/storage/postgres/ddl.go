package postgres

import (
	"context"
	"fmt"
	"strings"

	"evetl/internal/storage"
)

func mapType(kind string) string {
	switch kind {
	case storage.TypeInt:
		return "integer"
	case storage.TypeBigInt:
		return "bigint"
	default:
		return "text"
	}
}

// buildCreateTable renders t as CREATE TABLE IF NOT EXISTS.
func buildCreateTable(t storage.TableDef) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("postgres ddl: table name must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("postgres ddl: at least one column is required")
	}
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return "", fmt.Errorf("postgres ddl: column %d has an empty name", i)
		}
		col := pgIdent(c.Name) + " " + mapType(c.Type)
		if !c.Nullable {
			col += " NOT NULL"
		}
		cols[i] = col
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", pgFQN(t.Name), strings.Join(cols, ",\n  ")), nil
}

func ensureTable(ctx context.Context, repo storage.Repository, t storage.TableDef) error {
	stmt, err := buildCreateTable(t)
	if err != nil {
		return err
	}
	return repo.Exec(ctx, stmt)
}

package store

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/ougirez/maturity/internal/pkg/store/xpgx"
)

//go:embed schema.sql
var schema string

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, q xpgx.Querier) error {
	for _, stmt := range strings.Split(schema, ";\n") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %.40q: %w", stmt, err)
		}
	}
	return nil
}

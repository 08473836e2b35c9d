package migrations

import (
	"context"
	_ "embed"
	"strings"

	"github.com/medbill/ledger/internal/logger"
	"github.com/medbill/ledger/internal/postgres"
)

//go:embed schema.sql
var schema string

// Statements splits the embedded schema into executable statements
func Statements() []string {
	var statements []string
	for _, raw := range strings.Split(schema, ";") {
		var lines []string
		for _, line := range strings.Split(raw, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			lines = append(lines, line)
		}
		stmt := strings.TrimSpace(strings.Join(lines, "\n"))
		if stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}

// Apply runs every schema statement in one transaction. The schema is idempotent.
func Apply(ctx context.Context, db *postgres.DB, log *logger.Logger) error {
	return db.WithTx(ctx, func(ctx context.Context) error {
		q := db.GetQuerier(ctx)
		for i, stmt := range Statements() {
			if _, err := q.ExecContext(ctx, stmt); err != nil {
				return postgres.WrapError(err, "failed to apply schema statement")
			}
			log.Debugw("applied schema statement", "index", i)
		}
		return nil
	})
}

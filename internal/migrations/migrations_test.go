package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatementsAreIdempotentDDL(t *testing.T) {
	stmts := Statements()
	assert.NotEmpty(t, stmts)

	for _, stmt := range stmts {
		assert.False(t, strings.HasPrefix(stmt, "--"))
		assert.True(t,
			strings.HasPrefix(stmt, "CREATE TABLE IF NOT EXISTS") ||
				strings.HasPrefix(stmt, "CREATE INDEX IF NOT EXISTS") ||
				strings.HasPrefix(stmt, "CREATE UNIQUE INDEX IF NOT EXISTS"),
			stmt,
		)
	}
}

func TestLiveInvoiceUniquenessIsDeclared(t *testing.T) {
	var found bool
	for _, stmt := range Statements() {
		if strings.Contains(stmt, "invoices_live_subject_idx") {
			found = true
			assert.Contains(t, stmt, "WHERE invoice_status <> 'CANCELLED'")
		}
	}
	assert.True(t, found)
}

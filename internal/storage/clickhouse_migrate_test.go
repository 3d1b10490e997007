package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSQLStatements(t *testing.T) {
	content := `
-- mirror table
CREATE TABLE IF NOT EXISTS events_log (
    deployment_address String
)
ENGINE = ReplacingMergeTree()
ORDER BY (deployment_address);

-- a second statement
ALTER TABLE events_log ADD COLUMN IF NOT EXISTS tx_hash String;
`

	statements := splitSQLStatements(content)
	assert.Len(t, statements, 2)
	assert.Contains(t, statements[0], "CREATE TABLE IF NOT EXISTS events_log")
	assert.NotContains(t, statements[0], "-- mirror table")
	assert.NotContains(t, statements[0], ";")
	assert.Contains(t, statements[1], "ALTER TABLE events_log")
}

func TestSplitSQLStatementsTrailingWithoutSemicolon(t *testing.T) {
	statements := splitSQLStatements("CREATE TABLE t (a String)")
	assert.Equal(t, []string{"CREATE TABLE t (a String)"}, statements)
}

func TestSplitSQLStatementsEmpty(t *testing.T) {
	assert.Empty(t, splitSQLStatements("-- only comments\n\n"))
}

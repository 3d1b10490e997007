package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/stream-indexer/internal/logging"
)

// RunClickHouseMigrations applies the ClickHouse schema files in order.
// ClickHouse has no transactional DDL, so each statement is executed
// individually and the files must be idempotent (CREATE TABLE IF NOT EXISTS).
func RunClickHouseMigrations(db *ClickHouseDB, migrationsPath string) error {
	ctx := context.Background()
	log := logging.GetGlobalLogger()

	files, err := os.ReadDir(migrationsPath)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		content, err := os.ReadFile(filepath.Join(migrationsPath, filename))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		for _, stmt := range splitSQLStatements(string(content)) {
			if err := db.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to execute statement in %s: %w", filename, err)
			}
		}

		log.WithField("file", filename).Info("Applied ClickHouse migration")
	}

	return nil
}

// splitSQLStatements splits a migration file into statements on trailing
// semicolons, dropping comment-only and blank lines.
func splitSQLStatements(content string) []string {
	var statements []string
	var current strings.Builder

	flush := func() {
		stmt := strings.TrimSuffix(strings.TrimSpace(current.String()), ";")
		if stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}

		current.WriteString(line)
		current.WriteString("\n")

		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}
	flush()

	return statements
}

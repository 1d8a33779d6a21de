package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Charliesj0129/pixAV/internal/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migrationsLedgerDDL creates the ledger recording applied migrations.
const migrationsLedgerDDL = `CREATE TABLE IF NOT EXISTS _migrations (
    filename   TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL
)`

// Migration describes one embedded migration file and whether the
// ledger records it as applied.
type Migration struct {
	Filename  string
	AppliedAt *time.Time
}

// Applied reports whether the migration has been applied.
func (m Migration) Applied() bool {
	return m.AppliedAt != nil
}

// Migrate applies all pending migrations in filename order. Each file
// runs inside its own transaction together with its ledger entry, so a
// failed migration leaves the ledger consistent. Already-applied files
// are skipped; running Migrate twice is a no-op.
func (s *GORMStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Exec(migrationsLedgerDDL).Error; err != nil {
		return fmt.Errorf("failed to create migrations ledger: %w", err)
	}

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return err
	}

	filenames, err := listMigrationFiles()
	if err != nil {
		return err
	}

	pending := 0
	for _, filename := range filenames {
		if _, ok := applied[filename]; ok {
			continue
		}
		if err := s.applyMigration(ctx, filename); err != nil {
			return fmt.Errorf("migration %s: %w", filename, err)
		}
		pending++
	}

	if pending > 0 {
		logger.Info("applied database migrations", "count", pending)
	}
	return nil
}

// Migrations returns every embedded migration with its ledger state,
// in filename order.
func (s *GORMStore) Migrations(ctx context.Context) ([]Migration, error) {
	if err := s.db.WithContext(ctx).Exec(migrationsLedgerDDL).Error; err != nil {
		return nil, fmt.Errorf("failed to create migrations ledger: %w", err)
	}

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	filenames, err := listMigrationFiles()
	if err != nil {
		return nil, err
	}

	migrations := make([]Migration, 0, len(filenames))
	for _, filename := range filenames {
		m := Migration{Filename: filename}
		if at, ok := applied[filename]; ok {
			t := at
			m.AppliedAt = &t
		}
		migrations = append(migrations, m)
	}
	return migrations, nil
}

func (s *GORMStore) applyMigration(ctx context.Context, filename string) error {
	content, err := migrationFiles.ReadFile("migrations/" + filename)
	if err != nil {
		return fmt.Errorf("failed to read migration: %w", err)
	}

	statements := splitStatements(string(content))
	now := time.Now().UTC()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, stmt := range statements {
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return tx.Exec("INSERT INTO _migrations (filename, applied_at) VALUES (?, ?)", filename, now).Error
	})
}

func (s *GORMStore) appliedMigrations(ctx context.Context) (map[string]time.Time, error) {
	var rows []struct {
		Filename  string
		AppliedAt time.Time
	}
	if err := s.db.WithContext(ctx).Table("_migrations").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read migrations ledger: %w", err)
	}

	applied := make(map[string]time.Time, len(rows))
	for _, row := range rows {
		applied[row.Filename] = row.AppliedAt
	}
	return applied, nil
}

func listMigrationFiles() ([]string, error) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}

	filenames := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		filenames = append(filenames, entry.Name())
	}
	sort.Strings(filenames)
	return filenames, nil
}

// splitStatements splits a migration file into individual statements.
// The PostgreSQL driver rejects multi-statement Exec calls, so files
// are split on semicolons; statements made of comments only are
// dropped.
func splitStatements(content string) []string {
	var statements []string
	for _, stmt := range strings.Split(content, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" || isCommentOnly(stmt) {
			continue
		}
		statements = append(statements, stmt)
	}
	return statements
}

func isCommentOnly(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}

package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/kozaktomas/roll-call/internal/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    VARCHAR(255) PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// migration is one embedded schema change, identified by its file name.
type migration struct {
	version string
	sql     string
}

// loadMigrations reads every .sql file under dir, ordered by version.
func loadMigrations(fsys fs.FS, dir string) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var migrations []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		content, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		if strings.TrimSpace(string(content)) == "" {
			return nil, fmt.Errorf("migration %s is empty", e.Name())
		}
		migrations = append(migrations, migration{version: e.Name(), sql: string(content)})
	}
	slices.SortFunc(migrations, func(a, b migration) int { return strings.Compare(a.version, b.version) })
	return migrations, nil
}

// pendingMigrations keeps the migrations whose version is not in applied.
func pendingMigrations(all []migration, applied []string) []migration {
	var pending []migration
	for _, m := range all {
		if !slices.Contains(applied, m.version) {
			pending = append(pending, m)
		}
	}
	return pending
}

// Migrate applies pending embedded migrations and returns the versions it applied.
// Each migration runs in its own transaction together with its schema_migrations row.
func (p *Pool) Migrate(ctx context.Context) ([]string, error) {
	if _, err := p.db.ExecContext(ctx, createMigrationsTable); err != nil {
		return nil, fmt.Errorf("create migrations table: %w", err)
	}

	all, err := loadMigrations(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}
	applied, err := p.AppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	var versions []string
	for _, m := range pendingMigrations(all, applied) {
		if err := p.applyMigration(ctx, m); err != nil {
			return versions, err
		}
		logger.Info("applied migration", logger.LoggerOptions{Key: "version", Data: m.version})
		versions = append(versions, m.version)
	}
	return versions, nil
}

func (p *Pool) applyMigration(ctx context.Context, m migration) error {
	tx, err := p.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %s: %w", m.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("execute migration %s: %w", m.version, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.version); err != nil {
		return fmt.Errorf("record migration %s: %w", m.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", m.version, err)
	}
	return nil
}

// AppliedMigrations returns the recorded migration versions in order.
func (p *Pool) AppliedMigrations(ctx context.Context) ([]string, error) {
	rows, err := p.Query(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migration versions: %w", err)
	}
	return versions, nil
}

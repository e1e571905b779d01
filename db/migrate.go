package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationsTable = "schema_migrations"

// Migration is one versioned schema change. Files are named NNNN_name.sql.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// LoadMigrations returns the embedded migrations ordered by version.
func LoadMigrations() ([]Migration, error) {
	return loadMigrations(migrationFiles, "migrations")
}

func loadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	migrations := make([]Migration, 0, len(entries))
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		base := strings.TrimSuffix(entry.Name(), ".sql")
		versionPart, name, ok := strings.Cut(base, "_")
		if !ok {
			return nil, fmt.Errorf("migration %q: expected NNNN_name.sql", entry.Name())
		}
		version, err := strconv.Atoi(versionPart)
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("migration %q: invalid version %q", entry.Name(), versionPart)
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %d: %q and %q", version, other, entry.Name())
		}
		seen[version] = entry.Name()

		body, err := fs.ReadFile(fsys, dir+"/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %q: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{Version: version, Name: name, SQL: string(body)})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

// Migrate applies every embedded migration newer than the recorded schema
// version. Each migration and its bookkeeping row commit together.
func Migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	migrations, err := LoadMigrations()
	if err != nil {
		return err
	}
	return apply(ctx, db, migrations, logger)
}

func apply(ctx context.Context, db *sql.DB, migrations []Migration, logger *slog.Logger) error {
	dialect := goqu.Dialect("postgres")

	createTable := `CREATE TABLE IF NOT EXISTS ` + migrationsTable + ` (
		version     INTEGER PRIMARY KEY,
		name        TEXT NOT NULL,
		applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create %s table: %w", migrationsTable, err)
	}

	currentQuery, _, err := dialect.From(migrationsTable).
		Select(goqu.COALESCE(goqu.MAX("version"), 0)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build schema version query: %w", err)
	}
	var current int
	if err := db.QueryRowContext(ctx, currentQuery).Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	logger.Info("current schema version", slog.Int("version", current))

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		logger.Info("applying migration", slog.Int("version", m.Version), slog.String("name", m.Name))
		if err := applyOne(ctx, db, dialect, m); err != nil {
			return err
		}
	}
	return nil
}

func applyOne(ctx context.Context, db *sql.DB, dialect goqu.DialectWrapper, m Migration) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %d: failed to begin transaction: %w", m.Version, err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
	}

	insert, args, err := dialect.Insert(migrationsTable).Prepared(true).
		Rows(goqu.Record{"version": m.Version, "name": m.Name}).
		ToSQL()
	if err != nil {
		return fmt.Errorf("migration %d: failed to build bookkeeping insert: %w", m.Version, err)
	}
	if _, err = tx.ExecContext(ctx, insert, args...); err != nil {
		return fmt.Errorf("migration %d: failed to record version: %w", m.Version, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("migration %d: failed to commit: %w", m.Version, err)
	}
	return nil
}

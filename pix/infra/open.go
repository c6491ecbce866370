package infra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"pix-lifecycle/pix/infra/migrations"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// OpenPostgres abre o Store em Postgres (driver lib/pq) e aplica as migrações.
func OpenPostgres(ctx context.Context, dsn string, opts ...SQLStoreOption) (*SQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return openStore(ctx, db, Postgres, opts...)
}

// OpenSQLite abre o Store em SQLite (modernc, sem cgo) e aplica as migrações.
// path ":memory:" serve para testes.
func OpenSQLite(ctx context.Context, path string, opts ...SQLStoreOption) (*SQLStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// cada conexão nova seria um banco vazio
		db.SetMaxOpenConns(1)
	}
	return openStore(ctx, db, SQLite, opts...)
}

func openStore(ctx context.Context, db *sql.DB, d Dialect, opts ...SQLStoreOption) (*SQLStore, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d, err)
	}
	if err := Migrate(ctx, db, d); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewSQLStore(db, d, opts...), nil
}

const migrationTable = "schema_migrations"

// Migrate aplica, em ordem e no máximo uma vez, os arquivos .sql embutidos do dialeto.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	var (
		fsys fs.FS
		root string
	)
	switch d {
	case SQLite:
		fsys, root = migrations.SQLite, "sqlite"
	default:
		fsys, root = migrations.Postgres, "postgres"
	}

	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS "+migrationTable+" (name TEXT PRIMARY KEY, applied_at BIGINT NOT NULL)"); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	s := &SQLStore{dialect: d}
	for _, name := range files {
		var one int
		err := db.QueryRowContext(ctx, s.rebind("SELECT 1 FROM "+migrationTable+" WHERE name = ?"), name).Scan(&one)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", name, err)
		}

		content, err := fs.ReadFile(fsys, root+"/"+name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind("INSERT INTO "+migrationTable+" (name, applied_at) VALUES (?, ?)"), name, time.Now().UTC().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}
	return nil
}

// Package db provides SQLite storage for taskeroo.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when an email id has no row.
var ErrNotFound = errors.New("email not found")

// DB wraps a single SQLite connection for taskeroo operations.
type DB struct {
	conn  *sqlx.DB
	path  string
	added []string
}

// Open opens (or creates) a taskeroo database at the given path and brings
// its schema up to date.
func Open(ctx context.Context, dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	conn, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection per run; the pipeline and review writes share it.
	conn.SetMaxOpenConns(1)

	d := &DB{conn: conn, path: dbPath}
	d.added, err = d.Migrate(ctx)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

// New wraps an already open connection without touching its schema.
func New(conn *sql.DB, driverName string) *DB {
	return &DB{conn: sqlx.NewDb(conn, driverName)}
}

// AddedColumns returns the emails columns Open had to add to an older file.
func (d *DB) AddedColumns() []string {
	return d.added
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Underlying returns the sqlx handle, for read-only consumers such as export.
func (d *DB) Underlying() *sqlx.DB {
	return d.conn
}

// Now returns the current time as an RFC 3339 string.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Migrate creates missing tables, adds any missing emails columns and
// creates indexes. It never drops or renames anything and is safe to run
// repeatedly. It returns the names of the columns it added.
func (d *DB) Migrate(ctx context.Context) ([]string, error) {
	if _, err := d.conn.ExecContext(ctx, Schema); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	existing, err := d.Columns(ctx)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c] = true
	}

	var added []string
	for _, c := range emailColumns {
		if have[c.name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE emails ADD COLUMN %s %s", c.name, c.decl)
		if _, err := d.conn.ExecContext(ctx, stmt); err != nil {
			return added, fmt.Errorf("add column %s: %w", c.name, err)
		}
		added = append(added, c.name)
	}

	if _, err := d.conn.ExecContext(ctx, indexes); err != nil {
		return added, fmt.Errorf("create indexes: %w", err)
	}
	return added, nil
}

// Columns returns the emails column names in store order.
func (d *DB) Columns(ctx context.Context) ([]string, error) {
	rows, err := d.conn.QueryxContext(ctx, "PRAGMA table_info(emails)")
	if err != nil {
		return nil, fmt.Errorf("read table info: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		info := map[string]any{}
		if err := rows.MapScan(info); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		switch name := info["name"].(type) {
		case string:
			cols = append(cols, name)
		case []byte:
			cols = append(cols, string(name))
		}
	}
	return cols, rows.Err()
}

// Tables returns the names of the tables present in the database.
func (d *DB) Tables(ctx context.Context) ([]string, error) {
	var names []string
	err := d.conn.SelectContext(ctx, &names,
		"SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return names, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

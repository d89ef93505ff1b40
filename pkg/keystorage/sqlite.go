package keystorage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/capiscio/capiscio-cards/pkg/keystorage/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const migrationTable = "schema_migrations"

// SQLiteStorage persists entries in a SQLite database.
type SQLiteStorage struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// OpenSQLite opens a SQLite key store and applies embedded migrations.
func OpenSQLite(path string) (*SQLiteStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLiteStorage{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStorage) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Save stores a new entry. It returns ErrEntryExists if name is taken.
func (s *SQLiteStorage) Save(ctx context.Context, name, value string, meta map[string]string) (*KeyEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	metaJSON, err := encodeMeta(meta)
	if err != nil {
		return nil, err
	}

	ts := now()
	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO key_entries (name, value, meta, created_at, modified_at) VALUES (?, ?, ?, ?, ?)`,
		name,
		value,
		metaJSON,
		toMillis(ts),
		toMillis(ts),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEntryExists
		}
		return nil, fmt.Errorf("save key entry: %w", err)
	}
	return &KeyEntry{Name: name, Value: value, Meta: cloneMeta(meta), CreatedAt: ts, ModifiedAt: ts}, nil
}

// Load returns the entry stored under name, or nil if there is none.
func (s *SQLiteStorage) Load(ctx context.Context, name string) (*KeyEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT name, value, meta, created_at, modified_at FROM key_entries WHERE name = ?`,
		name,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load key entry: %w", err)
	}
	return entry, nil
}

// Exists reports whether an entry is stored under name.
func (s *SQLiteStorage) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var found int
	err := s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM key_entries WHERE name = ?`, name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check key entry: %w", err)
	}
	return true, nil
}

// Remove deletes the entry stored under name and reports whether it existed.
func (s *SQLiteStorage) Remove(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM key_entries WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("remove key entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove key entry: %w", err)
	}
	return n > 0, nil
}

// Update replaces the value and meta of an existing entry. It returns
// ErrEntryNotFound if name is absent.
func (s *SQLiteStorage) Update(ctx context.Context, name, value string, meta map[string]string) (*KeyEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	metaJSON, err := encodeMeta(meta)
	if err != nil {
		return nil, err
	}

	res, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE key_entries SET value = ?, meta = ?, modified_at = ? WHERE name = ?`,
		value,
		metaJSON,
		toMillis(now()),
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("update key entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update key entry: %w", err)
	}
	if n == 0 {
		return nil, ErrEntryNotFound
	}
	return s.Load(ctx, name)
}

// Clear removes all entries.
func (s *SQLiteStorage) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM key_entries`); err != nil {
		return fmt.Errorf("clear key entries: %w", err)
	}
	return nil
}

// List returns all entries sorted by name.
func (s *SQLiteStorage) List(ctx context.Context) ([]*KeyEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT name, value, meta, created_at, modified_at FROM key_entries ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("list key entries: %w", err)
	}
	defer rows.Close()

	var entries []*KeyEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan key entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list key entries: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*KeyEntry, error) {
	var (
		entry      KeyEntry
		metaJSON   string
		createdAt  int64
		modifiedAt int64
	)
	if err := row.Scan(&entry.Name, &entry.Value, &metaJSON, &createdAt, &modifiedAt); err != nil {
		return nil, err
	}
	if metaJSON != "" && metaJSON != "{}" {
		if err := json.Unmarshal([]byte(metaJSON), &entry.Meta); err != nil {
			return nil, fmt.Errorf("decode meta: %w", err)
		}
	}
	entry.CreatedAt = fromMillis(createdAt)
	entry.ModifiedAt = fromMillis(modifiedAt)
	return &entry, nil
}

func encodeMeta(meta map[string]string) (string, error) {
	if len(meta) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encode meta: %w", err)
	}
	return string(data), nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// applyMigrations executes each embedded .sql file at most once, in name order.
func applyMigrations(sqlDB *sql.DB, migrationFS fs.FS) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var sqlFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			sqlFiles = append(sqlFiles, entry.Name())
		}
	}
	sort.Strings(sqlFiles)

	createSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
);
`, migrationTable)
	if _, err := sqlDB.Exec(createSQL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range sqlFiles {
		var found int
		err := sqlDB.QueryRow("SELECT 1 FROM "+migrationTable+" WHERE name = ?", file).Scan(&found)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", file, err)
		}

		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		upSQL := extractUpMigration(string(content))
		if strings.TrimSpace(upSQL) == "" {
			continue
		}

		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration transaction %s: %w", file, err)
		}
		if _, err := tx.Exec(upSQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO "+migrationTable+" (name, applied_at) VALUES (?, ?)",
			file,
			toMillis(time.Now()),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// extractUpMigration returns the SQL in the -- +migrate Up section.
func extractUpMigration(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx == -1 {
		return content
	}
	body := content[upIdx+len("-- +migrate Up"):]
	if downIdx := strings.Index(body, "-- +migrate Down"); downIdx != -1 {
		body = body[:downIdx]
	}
	return body
}

var _ Storage = (*SQLiteStorage)(nil)

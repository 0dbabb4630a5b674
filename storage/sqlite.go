// Package storage provides the SQLite-backed local vault.
//
// Information Hiding:
// - SQLite connection management hidden behind the vault interfaces
// - Schema and migration details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/richinex/vaultbridge/model"
	"github.com/richinex/vaultbridge/vault"
)

// Entry is a stored vault record together with its URIs.
type Entry struct {
	ID        string              `yaml:"id"`
	Name      string              `yaml:"name"`
	Fields    []model.RecordField `yaml:"fields"`
	URIs      []string            `yaml:"uris,omitempty"`
	UpdatedAt time.Time           `yaml:"-"`
}

// Record returns the entry as seen through the vault interface.
// URIs follow the stored fields as "URI", "URI2", ...
func (e *Entry) Record() *model.Record {
	rec := &model.Record{ID: e.ID, Name: e.Name}
	rec.Fields = append(rec.Fields, e.Fields...)
	for i, uri := range e.URIs {
		rec.Fields = append(rec.Fields, model.NewField(uriFieldName(i), uri))
	}
	return rec.Clone()
}

func uriFieldName(i int) string {
	if i == 0 {
		return "URI"
	}
	return "URI" + strconv.Itoa(i+1)
}

// SqliteStorage stores vault records and dispatch history in SQLite.
// Thread-safe: sql.DB handles connection pooling and concurrent access.
type SqliteStorage struct {
	db *sql.DB
}

var (
	_ vault.Vault   = (*SqliteStorage)(nil)
	_ vault.Session = (*SqliteStorage)(nil)
)

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStorage, error) {
	// Create parent directory if needed
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	storage := &SqliteStorage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteStorage, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	storage := &SqliteStorage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// Close closes the database connection.
func (s *SqliteStorage) Close() error {
	return s.db.Close()
}

func (s *SqliteStorage) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS record_fields (
			record_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			value TEXT,
			PRIMARY KEY (record_id, position)
		);

		CREATE TABLE IF NOT EXISTS record_uris (
			record_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			uri TEXT NOT NULL,
			PRIMARY KEY (record_id, position)
		);

		CREATE TABLE IF NOT EXISTS dispatch_history (
			id TEXT PRIMARY KEY,
			vault TEXT NOT NULL,
			record_id TEXT NOT NULL,
			command TEXT NOT NULL,
			state TEXT NOT NULL,
			error TEXT,
			exit_code INTEGER NOT NULL DEFAULT 0,
			started_at INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_history_started
		ON dispatch_history(started_at DESC);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Name identifies the local vault in logs.
func (s *SqliteStorage) Name() string {
	return "local"
}

// ParseID accepts GUID record ids.
func (s *SqliteStorage) ParseID(id string) (string, bool) {
	return vault.ParseUUID(id)
}

// GetItem implements vault.Vault. TOTP is not supported by the local vault.
func (s *SqliteStorage) GetItem(ctx context.Context, id string, includeTOTP bool) (*model.Record, error) {
	entry, err := s.GetEntry(ctx, id)
	if err != nil || entry == nil {
		return nil, err
	}
	return entry.Record(), nil
}

// PutEntry creates or replaces a record.
func (s *SqliteStorage) PutEntry(ctx context.Context, entry Entry) error {
	id, ok := vault.ParseUUID(entry.ID)
	if !ok {
		return fmt.Errorf("invalid record id: %q", entry.ID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// defer tx.Rollback() is safe even after Commit() - it becomes a no-op
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at`,
		id, entry.Name, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM record_fields WHERE record_id = ?", id); err != nil {
		return fmt.Errorf("failed to clear old fields: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO record_fields (record_id, position, name, value) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for i, f := range entry.Fields {
		var value interface{}
		if f.Value != nil {
			value = *f.Value
		}
		if _, err := stmt.ExecContext(ctx, id, i, f.Name, value); err != nil {
			return fmt.Errorf("failed to insert field: %w", err)
		}
	}

	if err := replaceURIs(ctx, tx, id, entry.URIs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func replaceURIs(ctx context.Context, tx *sql.Tx, id string, uris []string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM record_uris WHERE record_id = ?", id); err != nil {
		return fmt.Errorf("failed to clear old uris: %w", err)
	}
	for i, uri := range uris {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO record_uris (record_id, position, uri) VALUES (?, ?, ?)", id, i, uri)
		if err != nil {
			return fmt.Errorf("failed to insert uri: %w", err)
		}
	}
	return nil
}

// GetEntry loads a record. Returns nil if it doesn't exist.
func (s *SqliteStorage) GetEntry(ctx context.Context, id string) (*Entry, error) {
	key, ok := vault.ParseUUID(id)
	if !ok {
		return nil, nil
	}

	var (
		entry   Entry
		updated int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, updated_at FROM records WHERE id = ?", key).
		Scan(&entry.ID, &entry.Name, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query record: %w", err)
	}
	entry.UpdatedAt = time.UnixMilli(updated)

	rows, err := s.db.QueryContext(ctx,
		"SELECT name, value FROM record_fields WHERE record_id = ? ORDER BY position ASC", key)
	if err != nil {
		return nil, fmt.Errorf("failed to query fields: %w", err)
	}
	defer rows.Close()

	entry.Fields = []model.RecordField{} // Start with empty slice, not nil
	for rows.Next() {
		var (
			f     model.RecordField
			value sql.NullString
		)
		if err := rows.Scan(&f.Name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan field: %w", err)
		}
		if value.Valid {
			v := value.String
			f.Value = &v
		}
		entry.Fields = append(entry.Fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fields: %w", err)
	}

	uris, err := s.uris(ctx, key)
	if err != nil {
		return nil, err
	}
	entry.URIs = uris
	return &entry, nil
}

func (s *SqliteStorage) uris(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT uri FROM record_uris WHERE record_id = ? ORDER BY position ASC", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query uris: %w", err)
	}
	defer rows.Close()

	var uris []string
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, fmt.Errorf("failed to scan uri: %w", err)
		}
		uris = append(uris, uri)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating uris: %w", err)
	}
	return uris, nil
}

// ListEntries returns id and name of every record, ordered by name.
func (s *SqliteStorage) ListEntries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, updated_at FROM records ORDER BY name COLLATE NOCASE ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	entries := []Entry{} // Start with empty slice, not nil
	for rows.Next() {
		var (
			e       Entry
			updated int64
		)
		if err := rows.Scan(&e.ID, &e.Name, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		e.UpdatedAt = time.UnixMilli(updated)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return entries, nil
}

// DeleteEntry removes a record with its fields and URIs.
func (s *SqliteStorage) DeleteEntry(ctx context.Context, id string) error {
	key, ok := vault.ParseUUID(id)
	if !ok {
		return fmt.Errorf("invalid record id: %q", id)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"record_fields", "record_uris"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE record_id = ?", key); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE id = ?", key); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return tx.Commit()
}

// Session implementation. The local vault is always unlocked.

// Status reports the local vault as unlocked.
func (s *SqliteStorage) Status(ctx context.Context) (vault.Status, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return vault.Status{State: "unavailable"}, fmt.Errorf("database unavailable: %w", err)
	}
	return vault.Status{State: "unlocked"}, nil
}

// Login is a no-op for the local vault.
func (s *SqliteStorage) Login(ctx context.Context, password string) error {
	return nil
}

// Logout is a no-op for the local vault.
func (s *SqliteStorage) Logout(ctx context.Context) error {
	return nil
}

// Sync is a no-op for the local vault.
func (s *SqliteStorage) Sync(ctx context.Context) error {
	return nil
}

// UpdateURIs replaces the URIs of a record.
func (s *SqliteStorage) UpdateURIs(ctx context.Context, id string, uris []string) error {
	key, ok := vault.ParseUUID(id)
	if !ok {
		return fmt.Errorf("invalid record id: %q", id)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, "UPDATE records SET updated_at = ? WHERE id = ?", time.Now().UnixMilli(), key)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("record not found: %s", key)
	}
	if err := replaceURIs(ctx, tx, key, uris); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

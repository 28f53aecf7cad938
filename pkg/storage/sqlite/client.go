// Package sqlite provides SQLite implementation for record storage.
//
// SQLite is a lightweight, file-based database suitable for local development
// and single-agent simulations. Vectors are stored as JSON strings in TEXT fields,
// and similarity search uses in-memory cosine similarity calculation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oceanbase/agentmem-go/pkg/storage"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Client implements RecordStore using SQLite as the backend.
type Client struct {
	// db is the SQLite database connection.
	db *sql.DB

	// collectionName is the name of the table storing records.
	collectionName string

	// path is the absolute database path, empty for in-memory databases.
	path string
}

// Config contains configuration for creating a SQLite RecordStore.
type Config struct {
	// DBPath is the path to the SQLite database file, or MemoryPath.
	DBPath string

	// CollectionName is the name of the table to use.
	CollectionName string
}

// NewClient creates a new SQLite RecordStore client.
//
// Parameters:
//   - cfg: Configuration containing database path and table name
//
// Returns:
//   - *Client: The SQLite client instance
//   - error: Error if database connection or table creation fails
func NewClient(cfg *Config) (*Client, error) {
	if cfg.CollectionName == "" {
		cfg.CollectionName = "records"
	}

	inMemory := cfg.DBPath == MemoryPath
	if !inMemory {
		dbDir := filepath.Dir(cfg.DBPath)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0755); err != nil {
				return nil, fmt.Errorf("NewSQLiteClient: failed to create directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}
	if inMemory {
		// Every connection to :memory: is a distinct database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	client := &Client{
		db:             db,
		collectionName: cfg.CollectionName,
	}
	if !inMemory {
		if abs, err := filepath.Abs(cfg.DBPath); err == nil {
			client.path = abs
		}
	}

	if err := client.initTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return client, nil
}

// initTables initializes the database table structure.
//
// seq keeps insertion order; id is the caller's record ID.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			text TEXT NOT NULL,
			metadata TEXT,
			excluded_llm_keys TEXT,
			excluded_embed_keys TEXT,
			embedding TEXT NOT NULL,
			searchable INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`, c.collectionName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	return nil
}

const selectColumns = `id, text, metadata, excluded_llm_keys, excluded_embed_keys,
	embedding, searchable, created_at`

// Insert inserts a record into the SQLite database.
func (c *Client) Insert(ctx context.Context, record *storage.Record) error {
	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, text, metadata, excluded_llm_keys, excluded_embed_keys, embedding, searchable, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.collectionName)

	cols, err := encodeColumns(record)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = c.db.ExecContext(ctx, query,
		record.ID,
		record.Text,
		cols.metadata,
		cols.llmKeys,
		cols.embedKeys,
		cols.embedding,
		record.Searchable,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	return nil
}

// Get retrieves a record by ID.
func (c *Client) Get(ctx context.Context, id string) (*storage.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", selectColumns, c.collectionName)

	record, err := scanRecord(c.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("Get: %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	return record, nil
}

// Exists reports whether a record with the ID is stored.
func (c *Client) Exists(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", c.collectionName)

	var one int
	err := c.db.QueryRowContext(ctx, query, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("Exists: %w", err)
	}

	return true, nil
}

// List returns every record in insertion order.
func (c *Client) List(ctx context.Context) ([]*storage.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY seq", selectColumns, c.collectionName)

	records, err := c.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}

	return records, nil
}

// Delete removes the records with the given IDs.
func (c *Client) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	in, args := inClause(ids)
	query := fmt.Sprintf("DELETE FROM %s WHERE id IN %s", c.collectionName, in)

	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}

	return nil
}

// Detach marks records as excluded from Search.
func (c *Client) Detach(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	in, args := inClause(ids)
	query := fmt.Sprintf("UPDATE %s SET searchable = 0 WHERE id IN %s", c.collectionName, in)

	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("Detach: %w", err)
	}

	return nil
}

// Search performs vector similarity search using cosine similarity.
//
// SQLite does not have native vector operations, so similarity is calculated
// in memory after loading all candidate records. Metadata filters are applied
// in memory as well.
func (c *Client) Search(ctx context.Context, embedding []float64, opts *storage.SearchOptions) ([]*storage.Record, error) {
	if opts == nil {
		opts = &storage.SearchOptions{}
	}

	where := "WHERE searchable = 1"
	var args []interface{}
	if len(opts.IDs) > 0 {
		in, idArgs := inClause(opts.IDs)
		where += " AND id IN " + in
		args = idArgs
	}

	query := fmt.Sprintf("SELECT %s FROM %s %s ORDER BY seq", selectColumns, c.collectionName, where)

	candidates, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}

	records := make([]*storage.Record, 0, len(candidates))
	for _, record := range candidates {
		if !storage.MatchFilters(record.Metadata, opts.Filters) {
			continue
		}
		record.Score = storage.CosineSimilarity(embedding, record.Embedding)
		records = append(records, record)
	}

	return storage.SortByScore(records, opts.Limit), nil
}

// Count returns the number of stored records.
func (c *Client) Count(ctx context.Context) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", c.collectionName)

	var n int
	if err := c.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}

	return n, nil
}

// Snapshot writes a compacted copy of the database to path using VACUUM INTO.
//
// An existing file at path is replaced. When path is the live database
// itself the WAL is checkpointed instead.
func (c *Client) Snapshot(ctx context.Context, path string) error {
	if abs, err := filepath.Abs(path); err == nil && abs == c.path {
		if _, err := c.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			return fmt.Errorf("Snapshot: %w", err)
		}
		return nil
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("Snapshot: %w", err)
		}
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("Snapshot: %w", err)
	}

	if _, err := c.db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return fmt.Errorf("Snapshot: %w", err)
	}

	return nil
}

const copyColumns = `id, text, metadata, excluded_llm_keys, excluded_embed_keys,
	embedding, searchable, created_at`

// Restore copies the records of a Snapshot file into the database, in
// insertion order. Restoring the live database onto itself is a no-op.
func (c *Client) Restore(ctx context.Context, path string) error {
	if abs, err := filepath.Abs(path); err == nil && abs == c.path {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("Restore: %w", err)
	}

	// ATTACH is per connection.
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("Restore: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, "ATTACH DATABASE ? AS snapshot", path); err != nil {
		return fmt.Errorf("Restore: %w", err)
	}

	query := fmt.Sprintf("INSERT OR IGNORE INTO main.%s (%s) SELECT %s FROM snapshot.%s ORDER BY seq",
		c.collectionName, copyColumns, copyColumns, c.collectionName)
	_, copyErr := conn.ExecContext(ctx, query)
	_, detachErr := conn.ExecContext(ctx, "DETACH DATABASE snapshot")
	if err := errors.Join(copyErr, detachErr); err != nil {
		return fmt.Errorf("Restore: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *Client) query(ctx context.Context, query string, args ...interface{}) ([]*storage.Record, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []*storage.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord scans a record from a database row or rows.
func scanRecord(scanner rowScanner) (*storage.Record, error) {
	var record storage.Record
	var metadataStr, llmKeysStr, embedKeysStr sql.NullString
	var embeddingStr string

	err := scanner.Scan(
		&record.ID,
		&record.Text,
		&metadataStr,
		&llmKeysStr,
		&embedKeysStr,
		&embeddingStr,
		&record.Searchable,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(embeddingStr), &record.Embedding); err != nil {
		return nil, fmt.Errorf("parse embedding: %w", err)
	}
	if err := decodeJSON(metadataStr, &record.Metadata); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	if err := decodeJSON(llmKeysStr, &record.ExcludedLLMKeys); err != nil {
		return nil, fmt.Errorf("parse excluded_llm_keys: %w", err)
	}
	if err := decodeJSON(embedKeysStr, &record.ExcludedEmbedKeys); err != nil {
		return nil, fmt.Errorf("parse excluded_embed_keys: %w", err)
	}
	if record.Metadata == nil {
		record.Metadata = map[string]interface{}{}
	}

	return &record, nil
}

func decodeJSON(s sql.NullString, v interface{}) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), v)
}

// inClause builds "(?, ?, ?)" and its arguments.
func inClause(ids []string) (string, []interface{}) {
	marks := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	return "(" + strings.Join(marks, ", ") + ")", args
}

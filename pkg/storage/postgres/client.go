// Package postgres provides a PostgreSQL + pgvector implementation of record storage.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/oceanbase/agentmem-go/pkg/storage"
)

// Client is a PostgreSQL + pgvector client.
type Client struct {
	db             *sql.DB
	collectionName string
	dimensions     int
}

// Config contains PostgreSQL configuration.
type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	DBName             string
	CollectionName     string
	EmbeddingModelDims int
	SSLMode            string
}

// DSN returns the lib/pq connection string for the configuration.
func (cfg *Config) DSN() string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)
}

// NewClient creates a new PostgreSQL client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.CollectionName == "" {
		cfg.CollectionName = "records"
	}
	if cfg.EmbeddingModelDims <= 0 {
		return nil, fmt.Errorf("NewPostgresClient: embedding dimensions must be positive")
	}

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	client := &Client{
		db:             db,
		collectionName: cfg.CollectionName,
		dimensions:     cfg.EmbeddingModelDims,
	}

	if err := client.initTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return client, nil
}

// initTables enables pgvector and creates the record table.
func (c *Client) initTables(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("initTables: create extension: %w", err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq BIGSERIAL PRIMARY KEY,
			id VARCHAR(255) NOT NULL UNIQUE,
			text TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			excluded_llm_keys JSONB NOT NULL DEFAULT '[]',
			excluded_embed_keys JSONB NOT NULL DEFAULT '[]',
			embedding vector(%d) NOT NULL,
			searchable BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`, c.collectionName, c.dimensions)

	if _, err = c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: create table: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_metadata ON %s USING GIN (metadata)
	`, c.collectionName, c.collectionName)
	if _, err = c.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("initTables: create index: %w", err)
	}

	return nil
}

const selectColumns = `id, text, metadata, excluded_llm_keys, excluded_embed_keys,
	embedding::text, searchable, created_at`

// Insert inserts a record.
func (c *Client) Insert(ctx context.Context, record *storage.Record) error {
	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, text, metadata, excluded_llm_keys, excluded_embed_keys, embedding, searchable, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
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
		storage.FormatVector(record.Embedding),
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
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", selectColumns, c.collectionName)

	record, err := scanRecord(c.db.QueryRowContext(ctx, query, id), false)
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
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)", c.collectionName)

	var exists bool
	if err := c.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("Exists: %w", err)
	}

	return exists, nil
}

// List returns every record in insertion order.
func (c *Client) List(ctx context.Context) ([]*storage.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY seq", selectColumns, c.collectionName)

	records, err := c.query(ctx, query, false)
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

	query := fmt.Sprintf("DELETE FROM %s WHERE id = ANY($1)", c.collectionName)
	if _, err := c.db.ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}

	return nil
}

// Detach marks records as excluded from Search.
func (c *Client) Detach(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE %s SET searchable = FALSE WHERE id = ANY($1)", c.collectionName)
	if _, err := c.db.ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("Detach: %w", err)
	}

	return nil
}

// Search performs vector search using pgvector's cosine distance.
//
// Metadata filters use JSONB containment, so {"kind": "event"} matches any
// record whose metadata holds that pair.
func (c *Client) Search(ctx context.Context, embedding []float64, opts *storage.SearchOptions) ([]*storage.Record, error) {
	if opts == nil {
		opts = &storage.SearchOptions{}
	}

	where, args, err := buildWhereClause(opts, 2)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}

	// <=> is cosine distance, 1 - cosine similarity.
	query := fmt.Sprintf(`
		SELECT %s, 1 - (embedding <=> $1) AS similarity
		FROM %s
		%s
		ORDER BY embedding <=> $1, seq
	`, selectColumns, c.collectionName, where)

	allArgs := append([]interface{}{storage.FormatVector(embedding)}, args...)
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(allArgs)+1)
		allArgs = append(allArgs, opts.Limit)
	}

	records, err := c.query(ctx, query, true, allArgs...)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}

	return records, nil
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

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *Client) query(ctx context.Context, query string, hasScore bool, args ...interface{}) ([]*storage.Record, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []*storage.Record
	for rows.Next() {
		record, err := scanRecord(rows, hasScore)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// Package oceanbase provides an OceanBase implementation of record storage.
//
// OceanBase speaks the MySQL protocol and offers a native VECTOR column type
// with cosine_distance for similarity search.
package oceanbase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/oceanbase/agentmem-go/pkg/storage"
)

// Client is an OceanBase client.
type Client struct {
	db             *sql.DB
	config         *Config
	collectionName string
}

// Config contains OceanBase configuration.
type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	DBName             string
	CollectionName     string
	EmbeddingModelDims int
}

// DSN returns the MySQL driver connection string for the configuration.
func (cfg *Config) DSN() string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	return mc.FormatDSN()
}

// NewClient creates a new OceanBase client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.CollectionName == "" {
		cfg.CollectionName = "records"
	}
	if cfg.EmbeddingModelDims <= 0 {
		return nil, fmt.Errorf("NewOceanBaseClient: embedding dimensions must be positive")
	}

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("NewOceanBaseClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewOceanBaseClient: %w", err)
	}

	client := &Client{
		db:             db,
		config:         cfg,
		collectionName: cfg.CollectionName,
	}

	if err := client.initTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return client, nil
}

// initTables initializes the database table.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq BIGINT AUTO_INCREMENT PRIMARY KEY,
			id VARCHAR(255) NOT NULL,
			document LONGTEXT NOT NULL,
			metadata JSON,
			excluded_llm_keys JSON,
			excluded_embed_keys JSON,
			embedding VECTOR(%d),
			searchable TINYINT(1) NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY uk_id (id)
		)
	`, c.collectionName, c.config.EmbeddingModelDims)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	return nil
}

const selectColumns = `id, document, metadata, excluded_llm_keys, excluded_embed_keys,
	embedding, searchable, created_at`

// Insert inserts a record.
func (c *Client) Insert(ctx context.Context, record *storage.Record) error {
	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, document, metadata, excluded_llm_keys, excluded_embed_keys, embedding, searchable, created_at)
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
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", selectColumns, c.collectionName)

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
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = ?", c.collectionName)

	var n int
	if err := c.db.QueryRowContext(ctx, query, id).Scan(&n); err != nil {
		return false, fmt.Errorf("Exists: %w", err)
	}

	return n > 0, nil
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

// Search performs vector search ordered by cosine_distance.
func (c *Client) Search(ctx context.Context, embedding []float64, opts *storage.SearchOptions) ([]*storage.Record, error) {
	if opts == nil {
		opts = &storage.SearchOptions{}
	}

	where, whereArgs := buildWhereClause(opts)

	query := fmt.Sprintf(`
		SELECT %s, 1 - cosine_distance(embedding, ?) AS similarity
		FROM %s
		%s
		ORDER BY cosine_distance(embedding, ?), seq
	`, selectColumns, c.collectionName, where)

	vector := storage.FormatVector(embedding)
	args := []interface{}{vector}
	args = append(args, whereArgs...)
	args = append(args, vector)
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	records, err := c.query(ctx, query, true, args...)
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

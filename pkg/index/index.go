// Package index implements the agent memory store: text records with
// metadata, embedded for similarity retrieval and expired against the
// simulation clock.
//
// Writes are retried with a bounded backoff and then fail with an
// *IndexError wrapping ErrStorageOperation. Reads degrade to empty results.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/oceanbase/agentmem-go/pkg/clock"
	"github.com/oceanbase/agentmem-go/pkg/embedder"
	"github.com/oceanbase/agentmem-go/pkg/storage"
)

const (
	// ConfigFile is the sidecar written next to persisted data.
	ConfigFile = "index_config.json"

	// SnapshotFile receives a copy of the records when the store supports it.
	SnapshotFile = "index.db"

	// DefaultTopK is used by Retrieve when topK is not positive.
	DefaultTopK = 5

	// Metadata keys holding record lifetime bounds, formatted with clock.Layout.
	MetaCreate = "create"
	MetaExpire = "expire"
)

// Index is a memory store over a storage.RecordStore and an embedder.
//
// It is safe for concurrent use.
type Index struct {
	store    storage.RecordStore
	embedder embedder.Provider
	clock    clock.Clock
	logger   *zap.Logger
	retry    RetryPolicy

	// mu guards maxNodes.
	mu       sync.Mutex
	maxNodes int64
}

// indexConfig is the JSON layout of ConfigFile.
type indexConfig struct {
	MaxNodes int64 `json:"max_nodes"`
}

// New creates an Index. A nil clock means wall-clock time.
func New(store storage.RecordStore, emb embedder.Provider, clk clock.Clock, opts ...Option) (*Index, error) {
	if store == nil {
		return nil, newIndexError("New", errors.New("nil record store"))
	}
	if emb == nil {
		return nil, newIndexError("New", errors.New("nil embedder"))
	}
	if clk == nil {
		clk = clock.Wall{}
	}

	ix := &Index{
		store:    store,
		embedder: emb,
		clock:    clk,
		logger:   zap.NewNop(),
		retry:    DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix, nil
}

// AddRecord embeds text and stores it as a new record.
//
// Without WithID the record is named node_<n> from a counter that advances
// once per generated ID. Adding an ID that already exists replaces that
// record. Excluded key lists default to every metadata key.
func (ix *Index) AddRecord(ctx context.Context, text string, opts ...AddOption) (*storage.Record, error) {
	o := &addOptions{}
	for _, opt := range opts {
		opt(o)
	}

	metadata := make(map[string]interface{}, len(o.metadata)+2)
	for k, v := range o.metadata {
		metadata[k] = v
	}
	if o.create != nil {
		metadata[MetaCreate] = clock.Format(*o.create)
	}
	if o.expire != nil {
		metadata[MetaExpire] = clock.Format(*o.expire)
	}

	keys := sortedKeys(metadata)
	record := &storage.Record{
		ID:                o.id,
		Text:              text,
		Metadata:          metadata,
		ExcludedLLMKeys:   orKeys(o.llmKeys, keys),
		ExcludedEmbedKeys: orKeys(o.embedKeys, keys),
		Searchable:        true,
	}
	// Every add advances the counter, explicit IDs included.
	if id := ix.nextID(); record.ID == "" {
		record.ID = id
	}

	content := EmbeddingText(record)
	err := ix.withRetry(ctx, "AddRecord", func() error {
		embedding, err := ix.embedder.Embed(ctx, content)
		if err != nil {
			return fmt.Errorf("embed: %w", err)
		}
		record.Embedding = embedding
		record.CreatedAt = time.Now()

		exists, err := ix.store.Exists(ctx, record.ID)
		if err != nil {
			return err
		}
		if exists {
			if err := ix.store.Delete(ctx, []string{record.ID}); err != nil {
				return err
			}
		}
		return ix.store.Insert(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	ix.logger.Debug("record added",
		zap.String("id", record.ID),
		zap.Int("metadata_keys", len(metadata)))
	return record, nil
}

// HasRecord reports whether id is stored. Store errors read as absent.
func (ix *Index) HasRecord(ctx context.Context, id string) bool {
	ok, err := ix.store.Exists(ctx, id)
	if err != nil {
		ix.logger.Debug("HasRecord failed", zap.String("id", id), zap.Error(err))
		return false
	}
	return ok
}

// FindRecord returns the record with id, or an error wrapping ErrNotFound.
func (ix *Index) FindRecord(ctx context.Context, id string) (*storage.Record, error) {
	record, err := ix.store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newIndexError("FindRecord", err)
	}
	if err != nil {
		return nil, storageError("FindRecord", err)
	}
	return record, nil
}

// ListRecords returns records in insertion order, keeping those for which
// filter returns true. A nil filter keeps all.
func (ix *Index) ListRecords(ctx context.Context, filter func(*storage.Record) bool) ([]*storage.Record, error) {
	records, err := ix.store.List(ctx)
	if err != nil {
		return nil, storageError("ListRecords", err)
	}
	if filter == nil {
		return records, nil
	}

	kept := records[:0]
	for _, r := range records {
		if filter(r) {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

// RemoveRecords removes ids from retrieval. With purge the records are
// deleted; otherwise they stay findable but no longer match Retrieve.
func (ix *Index) RemoveRecords(ctx context.Context, ids []string, purge bool) error {
	if len(ids) == 0 {
		return nil
	}
	return ix.withRetry(ctx, "RemoveRecords", func() error {
		if purge {
			return ix.store.Delete(ctx, ids)
		}
		return ix.store.Detach(ctx, ids)
	})
}

// Cleanup deletes records not yet created or already expired at the
// clock's current time, and returns their IDs in insertion order.
//
// A record lacking a bound is unbounded on that side. An unparsable bound
// is logged and treated as missing.
func (ix *Index) Cleanup(ctx context.Context) ([]string, error) {
	records, err := ix.store.List(ctx)
	if err != nil {
		return nil, storageError("Cleanup", err)
	}

	now := ix.clock.Now()
	removed := []string{}
	for _, r := range records {
		create, hasCreate := ix.bound(r, MetaCreate)
		expire, hasExpire := ix.bound(r, MetaExpire)
		if (hasCreate && create.After(now)) || (hasExpire && expire.Before(now)) {
			removed = append(removed, r.ID)
		}
	}

	if err := ix.RemoveRecords(ctx, removed, true); err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		ix.logger.Info("cleanup removed records",
			zap.Int("count", len(removed)),
			zap.Time("now", now))
	}
	return removed, nil
}

func (ix *Index) bound(r *storage.Record, key string) (time.Time, bool) {
	raw, ok := r.Metadata[key]
	if !ok || raw == nil {
		return time.Time{}, false
	}
	s, ok := raw.(string)
	if !ok {
		ix.logger.Warn("lifetime bound is not a string",
			zap.String("id", r.ID), zap.String("key", key), zap.Any("value", raw))
		return time.Time{}, false
	}
	t, err := clock.Parse(s, ix.clock)
	if err != nil {
		ix.logger.Warn("unparsable lifetime bound",
			zap.String("id", r.ID), zap.String("key", key), zap.Error(err))
		return time.Time{}, false
	}
	return t, true
}

// Retrieve returns up to topK searchable records most similar to query.
// Failures are logged and yield an empty slice.
func (ix *Index) Retrieve(ctx context.Context, query string, topK int, opts ...RetrieveOption) []*storage.Record {
	o := &retrieveOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	embedding, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		ix.logger.Debug("Retrieve: embed failed", zap.String("query", query), zap.Error(err))
		return []*storage.Record{}
	}

	records, err := ix.store.Search(ctx, embedding, &storage.SearchOptions{
		Limit:   topK,
		Filters: o.filters,
		IDs:     o.ids,
	})
	if err != nil {
		ix.logger.Debug("Retrieve: search failed", zap.String("query", query), zap.Error(err))
		return []*storage.Record{}
	}
	if records == nil {
		records = []*storage.Record{}
	}
	return records
}

// Persist writes ConfigFile to dir and, when the store can snapshot itself,
// a copy of the records to SnapshotFile.
func (ix *Index) Persist(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return newIndexError("Persist", err)
	}

	data, err := json.MarshalIndent(indexConfig{MaxNodes: ix.Counter()}, "", "  ")
	if err != nil {
		return newIndexError("Persist", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), data, 0644); err != nil {
		return newIndexError("Persist", err)
	}

	if snap, ok := ix.store.(storage.Snapshotter); ok {
		if err := snap.Snapshot(ctx, filepath.Join(dir, SnapshotFile)); err != nil {
			return storageError("Persist", err)
		}
	}

	ix.logger.Info("index persisted", zap.String("dir", dir), zap.Int64("max_nodes", ix.Counter()))
	return nil
}

// Load restores the ID counter from dir and, when the store is empty and
// can restore, the records of SnapshotFile. A non-empty store already holds
// its own durable state. Missing files are not an error. The counter never
// moves backwards.
func (ix *Index) Load(ctx context.Context, dir string) error {
	if err := ix.restore(ctx, filepath.Join(dir, SnapshotFile)); err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return newIndexError("Load", err)
	}

	var cfg indexConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return newIndexError("Load", fmt.Errorf("parse %s: %w", ConfigFile, err))
	}

	ix.mu.Lock()
	if cfg.MaxNodes > ix.maxNodes {
		ix.maxNodes = cfg.MaxNodes
	}
	ix.mu.Unlock()
	return nil
}

func (ix *Index) restore(ctx context.Context, path string) error {
	r, ok := ix.store.(storage.Restorer)
	if !ok {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	n, err := ix.store.Count(ctx)
	if err != nil {
		return storageError("Load", err)
	}
	if n > 0 {
		return nil
	}

	if err := r.Restore(ctx, path); err != nil {
		return storageError("Load", err)
	}
	if n, err = ix.store.Count(ctx); err == nil {
		ix.logger.Info("index restored", zap.String("path", path), zap.Int("records", n))
	}
	return nil
}

// Len returns the number of stored records, searchable or not.
func (ix *Index) Len(ctx context.Context) (int, error) {
	n, err := ix.store.Count(ctx)
	if err != nil {
		return 0, storageError("Len", err)
	}
	return n, nil
}

// Counter returns the next generated node number.
func (ix *Index) Counter() int64 {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.maxNodes
}

// Close closes the store and the embedder.
func (ix *Index) Close() error {
	return errors.Join(ix.store.Close(), ix.embedder.Close())
}

func (ix *Index) nextID() string {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	id := fmt.Sprintf("node_%d", ix.maxNodes)
	ix.maxNodes++
	return id
}

// withRetry runs fn under the retry policy. Context cancellation stops
// retrying at once.
func (ix *Index) withRetry(ctx context.Context, op string, fn func() error) error {
	var b backoff.BackOff = backoff.NewConstantBackOff(ix.retry.Interval)
	b = backoff.WithMaxRetries(b, uint64(ix.retry.MaxRetries))
	b = backoff.WithContext(b, ctx)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		return fn()
	}, b, func(err error, next time.Duration) {
		ix.logger.Warn("storage operation failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", next),
			zap.Error(err))
	})
	if err != nil {
		ix.logger.Error("storage operation gave up",
			zap.String("op", op),
			zap.Int("attempts", attempt),
			zap.Error(err))
		return storageError(op, err)
	}
	return nil
}

// EmbeddingText is the text embedded for a record: the metadata not
// excluded from embedding, one "key: value" line each, then the text.
func EmbeddingText(r *storage.Record) string {
	return withMetadata(r, r.ExcludedEmbedKeys)
}

// LLMText is the record as shown to a language model, honouring
// ExcludedLLMKeys.
func LLMText(r *storage.Record) string {
	return withMetadata(r, r.ExcludedLLMKeys)
}

func withMetadata(r *storage.Record, excluded []string) string {
	skip := make(map[string]struct{}, len(excluded))
	for _, k := range excluded {
		skip[k] = struct{}{}
	}

	var lines []string
	for _, k := range sortedKeys(r.Metadata) {
		if _, ok := skip[k]; ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %v", k, r.Metadata[k]))
	}
	if len(lines) == 0 {
		return r.Text
	}
	return strings.Join(lines, "\n") + "\n\n" + r.Text
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func orKeys(keys, fallback []string) []string {
	if len(keys) == 0 {
		return fallback
	}
	return append([]string(nil), keys...)
}

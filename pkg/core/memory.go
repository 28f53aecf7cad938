package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/oceanbase/agentmem-go/pkg/clock"
	"github.com/oceanbase/agentmem-go/pkg/embedder"
	"github.com/oceanbase/agentmem-go/pkg/embedder/hashing"
	openaiEmbedder "github.com/oceanbase/agentmem-go/pkg/embedder/openai"
	"github.com/oceanbase/agentmem-go/pkg/index"
	"github.com/oceanbase/agentmem-go/pkg/memory"
	"github.com/oceanbase/agentmem-go/pkg/storage"
	"github.com/oceanbase/agentmem-go/pkg/storage/oceanbase"
	postgresStore "github.com/oceanbase/agentmem-go/pkg/storage/postgres"
	sqliteStore "github.com/oceanbase/agentmem-go/pkg/storage/sqlite"
)

// Metadata keys written by the client.
const (
	MetaKind    = "kind"
	MetaSubject = "subject"
	MetaAddress = "address"
	MetaEvent   = "event"
	MetaAction  = "action"
	MetaEventID = "event_id"

	KindEvent  = "event"
	KindAction = "action"
)

// Client stores an agent's events and actions in an index and recalls them
// by similarity.
//
// The client is thread-safe and can be used concurrently from multiple goroutines.
//
// Example usage:
//
//	config, _ := core.LoadConfigFromEnv()
//	sim := clock.NewSim(start)
//	client, _ := core.NewClient(config, sim)
//	defer client.Close()
//
//	ev := memory.NewEvent("Mei", memory.WithPredicate("is"), memory.WithObject("brewing coffee"))
//	_, _ = client.RememberEvent(ctx, ev, 24*time.Hour)
//	recalled := client.Recall(ctx, "coffee", 5)
type Client struct {
	config  *Config
	clock   clock.Clock
	index   *index.Index
	journal *memory.Journal
	vocab   memory.Vocabulary
	logger  *zap.Logger

	// mu guards closed.
	mu     sync.RWMutex
	closed bool

	// entries maps record IDs to their journal entries.
	entriesMu sync.Mutex
	entries   map[string]snowflake.ID
}

// NewClient creates a new agent memory client.
//
// The client is initialized with:
//   - Record store (SQLite, OceanBase, or PostgreSQL) unless WithStore is given
//   - Embedding provider (OpenAI-compatible or hashing) unless WithEmbedder is given
//   - Index state loaded from cfg.IndexDir when present
//
// A nil clock means wall-clock time.
func NewClient(cfg *Config, clk clock.Clock, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		return nil, &ConfigError{Field: "config", Reason: "nil"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.Wall{}
	}
	o := applyClientOptions(opts)

	emb := o.embedder
	if emb == nil {
		var err error
		if emb, err = initEmbedder(cfg.Embedder); err != nil {
			return nil, err
		}
	}

	store := o.store
	if store == nil {
		var err error
		if store, err = initStorage(cfg.Store, emb.Dimensions()); err != nil {
			_ = emb.Close()
			return nil, err
		}
	}

	ix, err := index.New(store, emb, clk,
		index.WithLogger(o.logger.Named("index")),
		index.WithRetryPolicy(index.RetryPolicy{
			MaxRetries: cfg.Retry.MaxRetries,
			Interval:   time.Duration(cfg.Retry.Interval),
		}))
	if err != nil {
		return nil, NewMemoryError("NewClient", err)
	}

	if cfg.IndexDir != "" {
		if err := ix.Load(context.Background(), cfg.IndexDir); err != nil {
			_ = ix.Close()
			return nil, NewMemoryError("NewClient", err)
		}
	}

	journal, err := memory.NewJournal(o.nodeID)
	if err != nil {
		_ = ix.Close()
		return nil, NewMemoryError("NewClient", err)
	}

	return &Client{
		config:  cfg,
		clock:   clk,
		index:   ix,
		journal: journal,
		vocab:   memory.VocabularyFor(cfg.Locale),
		logger:  o.logger,
		entries: make(map[string]snowflake.ID),
	}, nil
}

// initStorage builds the configured record store.
func initStorage(cfg StoreConfig, dims int) (storage.RecordStore, error) {
	var (
		store storage.RecordStore
		err   error
	)
	switch cfg.Provider {
	case ProviderSQLite:
		store, err = sqliteStore.NewClient(&sqliteStore.Config{
			DBPath:         cfg.SQLite.Path,
			CollectionName: cfg.SQLite.Collection,
		})
	case ProviderPostgres:
		p := cfg.Postgres
		store, err = postgresStore.NewClient(&postgresStore.Config{
			Host:               p.Host,
			Port:               p.Port,
			User:               p.User,
			Password:           p.Password,
			DBName:             p.Database,
			CollectionName:     p.Collection,
			EmbeddingModelDims: dims,
			SSLMode:            p.SSLMode,
		})
	case ProviderOceanBase:
		o := cfg.OceanBase
		store, err = oceanbase.NewClient(&oceanbase.Config{
			Host:               o.Host,
			Port:               o.Port,
			User:               o.User,
			Password:           o.Password,
			DBName:             o.Database,
			CollectionName:     o.Collection,
			EmbeddingModelDims: dims,
		})
	default:
		return nil, &ConfigError{Field: "store.provider", Reason: fmt.Sprintf("unsupported provider %q", cfg.Provider)}
	}
	if err != nil {
		return nil, NewMemoryError("initStorage", err)
	}
	return store, nil
}

// initEmbedder builds the configured embedding provider.
func initEmbedder(cfg EmbedderConfig) (embedder.Provider, error) {
	switch cfg.Provider {
	case EmbedderHashing:
		return hashing.NewClient(&hashing.Config{Dimensions: cfg.Dimensions}), nil
	case EmbedderOpenAI, EmbedderOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" && cfg.Provider == EmbedderOllama {
			baseURL = DefaultOllamaBaseURL
		}
		client, err := openaiEmbedder.NewClient(&openaiEmbedder.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    baseURL,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, NewMemoryError("initEmbedder", err)
		}
		return client, nil
	}
	return nil, &ConfigError{Field: "embedder.provider", Reason: fmt.Sprintf("unsupported provider %q", cfg.Provider)}
}

// RememberEvent stores ev, alive from now until now+ttl on the client's
// clock. A ttl of zero or less never expires.
//
// The event is also recorded in the journal; its ID is kept under
// MetaEventID.
func (c *Client) RememberEvent(ctx context.Context, ev *memory.Event, ttl time.Duration) (*storage.Record, error) {
	if err := c.checkOpen("RememberEvent"); err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, NewMemoryError("RememberEvent", ErrInvalidInput)
	}

	data, err := memory.MarshalEvent(ev)
	if err != nil {
		return nil, NewMemoryError("RememberEvent", err)
	}
	id := c.journal.Record(ev)

	metadata := map[string]interface{}{
		MetaKind:    KindEvent,
		MetaSubject: ev.Subject(),
		MetaAddress: ev.AddressString(),
		MetaEvent:   string(data),
		MetaEventID: id.String(),
	}

	record, err := c.index.AddRecord(ctx, ev.String(), c.lifetime(metadata, ttl)...)
	if err != nil {
		c.journal.Remove(id)
		return nil, NewMemoryError("RememberEvent", err)
	}
	c.entriesMu.Lock()
	c.entries[record.ID] = id
	c.entriesMu.Unlock()

	c.logger.Debug("event remembered",
		zap.String("id", record.ID),
		zap.String("subject", ev.Subject()),
		zap.Duration("ttl", ttl))
	return record, nil
}

// RememberAction stores act under its formatted status, alive from now
// until now+ttl. A ttl of zero or less never expires.
func (c *Client) RememberAction(ctx context.Context, act *memory.Action, ttl time.Duration) (*storage.Record, error) {
	if err := c.checkOpen("RememberAction"); err != nil {
		return nil, err
	}
	if act == nil || act.Event == nil {
		return nil, NewMemoryError("RememberAction", ErrInvalidInput)
	}

	data, err := memory.MarshalAction(act)
	if err != nil {
		return nil, NewMemoryError("RememberAction", err)
	}

	metadata := map[string]interface{}{
		MetaKind:    KindAction,
		MetaSubject: act.Event.Subject(),
		MetaAddress: act.Event.AddressString(),
		MetaAction:  string(data),
	}

	record, err := c.index.AddRecord(ctx, act.Format(c.clock), c.lifetime(metadata, ttl)...)
	if err != nil {
		return nil, NewMemoryError("RememberAction", err)
	}

	c.logger.Debug("action remembered",
		zap.String("id", record.ID),
		zap.String("subject", act.Event.Subject()),
		zap.Int("duration", act.Duration))
	return record, nil
}

func (c *Client) lifetime(metadata map[string]interface{}, ttl time.Duration) []index.AddOption {
	now := c.clock.Now()
	if ttl > 0 {
		return []index.AddOption{
			index.WithMetadata(metadata),
			index.WithLifetime(now, now.Add(ttl)),
		}
	}
	metadata[index.MetaCreate] = clock.Format(now)
	return []index.AddOption{index.WithMetadata(metadata)}
}

// Recall returns up to topK events most similar to query. Action records
// contribute their primary event. Records that fail to decode are skipped.
func (c *Client) Recall(ctx context.Context, query string, topK int, opts ...RecallOption) []*memory.Event {
	events := []*memory.Event{}
	for _, r := range c.retrieve(ctx, query, topK, "", opts) {
		ev, err := c.decodeEvent(r)
		if err != nil {
			c.logger.Debug("Recall: skipping record", zap.String("id", r.ID), zap.Error(err))
			continue
		}
		events = append(events, ev)
	}
	return events
}

// RecallActions returns up to topK actions most similar to query.
func (c *Client) RecallActions(ctx context.Context, query string, topK int, opts ...RecallOption) []*memory.Action {
	actions := []*memory.Action{}
	for _, r := range c.retrieve(ctx, query, topK, KindAction, opts) {
		act, err := c.decodeAction(r)
		if err != nil {
			c.logger.Debug("RecallActions: skipping record", zap.String("id", r.ID), zap.Error(err))
			continue
		}
		actions = append(actions, act)
	}
	return actions
}

func (c *Client) retrieve(ctx context.Context, query string, topK int, kind string, opts []RecallOption) []*storage.Record {
	if c.checkOpen("Recall") != nil {
		return []*storage.Record{}
	}
	ro := applyRecallOptions(opts)

	filters := map[string]interface{}{}
	if kind != "" {
		filters[MetaKind] = kind
	}
	if ro.Subject != "" {
		filters[MetaSubject] = ro.Subject
	}
	if ro.Address != "" {
		filters[MetaAddress] = ro.Address
	}
	if len(filters) == 0 {
		return c.index.Retrieve(ctx, query, topK)
	}
	return c.index.Retrieve(ctx, query, topK, index.WithFilters(filters))
}

func (c *Client) decodeEvent(r *storage.Record) (*memory.Event, error) {
	switch r.Metadata[MetaKind] {
	case KindEvent:
		raw, ok := r.Metadata[MetaEvent].(string)
		if !ok {
			return nil, fmt.Errorf("record %s: missing %q metadata", r.ID, MetaEvent)
		}
		return memory.UnmarshalEvent([]byte(raw), memory.WithVocabulary(c.vocab))
	case KindAction:
		act, err := c.decodeAction(r)
		if err != nil {
			return nil, err
		}
		return act.Event, nil
	}
	return nil, fmt.Errorf("record %s: unknown kind %v", r.ID, r.Metadata[MetaKind])
}

func (c *Client) decodeAction(r *storage.Record) (*memory.Action, error) {
	raw, ok := r.Metadata[MetaAction].(string)
	if !ok {
		return nil, fmt.Errorf("record %s: missing %q metadata", r.ID, MetaAction)
	}
	return memory.UnmarshalAction([]byte(raw), c.clock, memory.WithVocabulary(c.vocab))
}

// Cleanup deletes memories outside their lifetime at the clock's current
// time, together with their journal entries.
func (c *Client) Cleanup(ctx context.Context) ([]string, error) {
	if err := c.checkOpen("Cleanup"); err != nil {
		return nil, err
	}
	removed, err := c.index.Cleanup(ctx)
	if err != nil {
		return nil, NewMemoryError("Cleanup", err)
	}
	c.dropEntries(removed)
	return removed, nil
}

// Forget deletes the memories with the given record IDs, together with
// their journal entries. Unknown IDs are ignored.
func (c *Client) Forget(ctx context.Context, ids ...string) error {
	if err := c.checkOpen("Forget"); err != nil {
		return err
	}
	if err := c.index.RemoveRecords(ctx, ids, true); err != nil {
		return NewMemoryError("Forget", err)
	}
	c.dropEntries(ids)
	c.logger.Debug("memories forgotten", zap.Strings("ids", ids))
	return nil
}

func (c *Client) dropEntries(ids []string) {
	c.entriesMu.Lock()
	defer c.entriesMu.Unlock()
	for _, id := range ids {
		if entry, ok := c.entries[id]; ok {
			c.journal.Remove(entry)
			delete(c.entries, id)
		}
	}
}

// Persist saves index state to cfg.IndexDir.
func (c *Client) Persist(ctx context.Context) error {
	if err := c.checkOpen("Persist"); err != nil {
		return err
	}
	if c.config.IndexDir == "" {
		return NewMemoryError("Persist", &ConfigError{Field: "index_dir", Reason: "required to persist"})
	}
	return NewMemoryError("Persist", c.index.Persist(ctx, c.config.IndexDir))
}

// Index returns the underlying index for direct record access.
func (c *Client) Index() *index.Index {
	return c.index
}

// Journal returns the journal of remembered events.
func (c *Client) Journal() *memory.Journal {
	return c.journal
}

// Vocabulary returns the event vocabulary of the configured locale.
func (c *Client) Vocabulary() memory.Vocabulary {
	return c.vocab
}

// Close releases the index, its store and its embedder. Closing twice is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.index.Close()
}

func (c *Client) checkOpen(op string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return NewMemoryError(op, ErrClosed)
	}
	return nil
}

// IsClosed reports whether err came from a closed client.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

package index

import (
	"time"

	"go.uber.org/zap"
)

// RetryPolicy bounds how often a failing write is retried.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// Interval is the pause between attempts.
	Interval time.Duration
}

// DefaultRetryPolicy retries five times, five seconds apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 5, Interval: 5 * time.Second}
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(ix *Index) {
		if logger != nil {
			ix.logger = logger
		}
	}
}

// WithRetryPolicy sets the retry policy for writes.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(ix *Index) {
		if p.MaxRetries < 0 {
			p.MaxRetries = 0
		}
		if p.Interval < 0 {
			p.Interval = 0
		}
		ix.retry = p
	}
}

// AddOption configures a single AddRecord call.
type AddOption func(*addOptions)

type addOptions struct {
	id        string
	metadata  map[string]interface{}
	llmKeys   []string
	embedKeys []string
	create    *time.Time
	expire    *time.Time
}

// WithID sets the record ID instead of generating node_<n>.
func WithID(id string) AddOption {
	return func(o *addOptions) {
		o.id = id
	}
}

// WithMetadata attaches metadata to the record.
func WithMetadata(metadata map[string]interface{}) AddOption {
	return func(o *addOptions) {
		o.metadata = metadata
	}
}

// WithLifetime stores create and expire timestamps used by Cleanup.
func WithLifetime(create, expire time.Time) AddOption {
	return func(o *addOptions) {
		o.create = &create
		o.expire = &expire
	}
}

// WithExcludedLLMKeys lists metadata keys hidden from LLM prompts.
// An empty list hides every key.
func WithExcludedLLMKeys(keys ...string) AddOption {
	return func(o *addOptions) {
		o.llmKeys = keys
	}
}

// WithExcludedEmbeddingKeys lists metadata keys left out of the embedded text.
// An empty list excludes every key.
func WithExcludedEmbeddingKeys(keys ...string) AddOption {
	return func(o *addOptions) {
		o.embedKeys = keys
	}
}

// RetrieveOption configures a Retrieve call.
type RetrieveOption func(*retrieveOptions)

type retrieveOptions struct {
	filters map[string]interface{}
	ids     []string
}

// WithFilters keeps only records whose metadata holds every pair.
func WithFilters(filters map[string]interface{}) RetrieveOption {
	return func(o *retrieveOptions) {
		o.filters = filters
	}
}

// WithIDs restricts retrieval to the given record IDs.
func WithIDs(ids ...string) RetrieveOption {
	return func(o *retrieveOptions) {
		o.ids = ids
	}
}

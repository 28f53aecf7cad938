package core

import (
	"go.uber.org/zap"

	"github.com/oceanbase/agentmem-go/pkg/embedder"
	"github.com/oceanbase/agentmem-go/pkg/storage"
)

// ClientOption is a function type for configuring a Client.
//
// Injected dependencies take precedence over the matching Config block.
type ClientOption func(*clientOptions)

type clientOptions struct {
	store    storage.RecordStore
	embedder embedder.Provider
	logger   *zap.Logger
	nodeID   int64
}

// WithStore uses store instead of building one from Config.Store.
//
// Example:
//
//	store, _ := sqlite.NewClient(&sqlite.Config{DBPath: sqlite.MemoryPath})
//	client, _ := core.NewClient(cfg, clk, core.WithStore(store))
func WithStore(store storage.RecordStore) ClientOption {
	return func(o *clientOptions) {
		o.store = store
	}
}

// WithEmbedder uses provider instead of building one from Config.Embedder.
func WithEmbedder(provider embedder.Provider) ClientOption {
	return func(o *clientOptions) {
		o.embedder = provider
	}
}

// WithLogger sets the logger for the client and its index.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithNodeID sets the snowflake node used for journal IDs (0-1023).
// Agents sharing a store should use distinct nodes.
func WithNodeID(id int64) ClientOption {
	return func(o *clientOptions) {
		o.nodeID = id
	}
}

func applyClientOptions(opts []ClientOption) *clientOptions {
	options := &clientOptions{
		logger: zap.NewNop(),
		nodeID: 1,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = zap.NewNop()
	}
	return options
}

// RecallOption is a function type for configuring Recall operations.
type RecallOption func(*RecallOptions)

// RecallOptions contains configuration options for Recall operations.
type RecallOptions struct {
	// Subject restricts results to memories about this subject.
	Subject string

	// Address restricts results to memories at this address ("a:b:c").
	Address string
}

// WithSubject restricts Recall to memories about subject.
//
// Example:
//
//	events := client.Recall(ctx, "coffee", 5, core.WithSubject("Mei"))
func WithSubject(subject string) RecallOption {
	return func(opts *RecallOptions) {
		opts.Subject = subject
	}
}

// WithAddress restricts Recall to memories recorded at address.
func WithAddress(address string) RecallOption {
	return func(opts *RecallOptions) {
		opts.Address = address
	}
}

func applyRecallOptions(opts []RecallOption) *RecallOptions {
	options := &RecallOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

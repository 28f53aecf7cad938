// Package embedder turns memory record text into vectors for similarity
// search in the index.
package embedder

import "context"

// Provider embeds record text and queries.
//
// Implementations must return vectors of exactly Dimensions() values, since
// the postgres and oceanbase stores size their vector column from it.
type Provider interface {
	// Embed returns the vector for one text.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch returns one vector per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions is the length of every vector this provider returns.
	Dimensions() int

	// Close releases the provider.
	Close() error
}

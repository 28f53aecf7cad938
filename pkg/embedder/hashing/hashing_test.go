package hashing_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/agentmem-go/pkg/embedder"
	"github.com/oceanbase/agentmem-go/pkg/embedder/hashing"
	"github.com/oceanbase/agentmem-go/pkg/storage"
)

var _ embedder.Provider = (*hashing.Client)(nil)

func TestTokens(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Mei is brewing coffee", []string{"mei", "is", "brewing", "coffee"}},
		{"Mei此时在咖啡馆", []string{"mei", "此", "时", "在", "咖", "啡", "馆"}},
		{"  status: idle, [08:00~08:30] ", []string{"status", "idle", "08", "00", "08", "30"}},
		{"", nil},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, hashing.Tokens(tt.in)); diff != "" {
			t.Errorf("Tokens(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestClient_Embed(t *testing.T) {
	ctx := context.Background()
	c := hashing.NewClient(&hashing.Config{Dimensions: 1024})
	assert.Equal(t, 1024, c.Dimensions())

	coffee, err := c.Embed(ctx, "Mei is brewing coffee")
	require.NoError(t, err)
	again, err := c.Embed(ctx, "mei is BREWING coffee!")
	require.NoError(t, err)
	assert.Equal(t, coffee, again)

	related, err := c.Embed(ctx, "coffee")
	require.NoError(t, err)

	assert.InDelta(t, 1.0, storage.CosineSimilarity(coffee, again), 1e-9)
	assert.Greater(t, storage.CosineSimilarity(coffee, related), 0.4)

	empty, err := c.Embed(ctx, "")
	require.NoError(t, err)
	assert.Len(t, empty, 1024)
}

func TestClient_EmbedBatch(t *testing.T) {
	c := hashing.NewClient(nil)
	assert.Equal(t, hashing.DefaultDimensions, c.Dimensions())

	out, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.NotEqual(t, out[0], out[1])

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.EmbedBatch(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}

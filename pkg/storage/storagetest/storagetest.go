// Package storagetest provides a behavioral test suite shared by all
// storage.RecordStore backends.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/agentmem-go/pkg/storage"
)

// Vector returns a dims-long vector whose leading elements are head.
func Vector(dims int, head ...float64) []float64 {
	v := make([]float64, dims)
	copy(v, head)
	return v
}

// Fixture returns three records: two events and one action.
func Fixture(dims int) []*storage.Record {
	return []*storage.Record{
		{
			ID:                "node_0",
			Text:              "Mei is brewing coffee",
			Metadata:          map[string]interface{}{"kind": "event", "subject": "Mei"},
			ExcludedLLMKeys:   []string{"kind"},
			ExcludedEmbedKeys: []string{"kind", "subject"},
			Embedding:         Vector(dims, 1, 0, 0),
			Searchable:        true,
		},
		{
			ID:         "node_1",
			Text:       "Lin is reading",
			Metadata:   map[string]interface{}{"kind": "event", "subject": "Lin"},
			Embedding:  Vector(dims, 0, 1, 0),
			Searchable: true,
		},
		{
			ID:         "node_2",
			Text:       "status: Mei is idle",
			Metadata:   map[string]interface{}{"kind": "action", "subject": "Mei"},
			Embedding:  Vector(dims, 0, 0, 1),
			Searchable: true,
		},
	}
}

// Run exercises a store created by open. Each subtest gets a fresh, empty store.
func Run(t *testing.T, dims int, open func(t *testing.T) storage.RecordStore) {
	ctx := context.Background()

	seed := func(t *testing.T) storage.RecordStore {
		store := open(t)
		for _, r := range Fixture(dims) {
			require.NoError(t, store.Insert(ctx, r))
		}
		return store
	}

	t.Run("ListKeepsInsertionOrder", func(t *testing.T) {
		store := seed(t)

		records, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, "node_0", records[0].ID)
		assert.Equal(t, "node_1", records[1].ID)
		assert.Equal(t, "node_2", records[2].ID)

		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("GetAndExists", func(t *testing.T) {
		store := seed(t)

		got, err := store.Get(ctx, "node_0")
		require.NoError(t, err)
		assert.Equal(t, "Mei is brewing coffee", got.Text)
		assert.Equal(t, "event", got.Metadata["kind"])
		assert.Equal(t, []string{"kind"}, got.ExcludedLLMKeys)
		assert.Equal(t, []string{"kind", "subject"}, got.ExcludedEmbedKeys)
		assert.Len(t, got.Embedding, dims)
		assert.True(t, got.Searchable)

		ok, err := store.Exists(ctx, "node_1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Exists(ctx, "node_9")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = store.Get(ctx, "node_9")
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})

	t.Run("InsertDuplicateFails", func(t *testing.T) {
		store := seed(t)
		assert.Error(t, store.Insert(ctx, Fixture(dims)[0]))
	})

	t.Run("SearchRanksBySimilarity", func(t *testing.T) {
		store := seed(t)

		results, err := store.Search(ctx, Vector(dims, 0.1, 1, 0), &storage.SearchOptions{Limit: 2})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "node_1", results[0].ID)
		assert.Equal(t, "node_0", results[1].ID)
		assert.Greater(t, results[0].Score, results[1].Score)
	})

	t.Run("SearchFilters", func(t *testing.T) {
		store := seed(t)

		results, err := store.Search(ctx, Vector(dims, 0, 0, 1), &storage.SearchOptions{
			Limit:   10,
			Filters: map[string]interface{}{"kind": "event", "subject": "Mei"},
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "node_0", results[0].ID)

		results, err = store.Search(ctx, Vector(dims, 1, 0, 0), &storage.SearchOptions{
			Limit: 10,
			IDs:   []string{"node_1", "node_2"},
		})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.NotEqual(t, "node_0", results[0].ID)
		assert.NotEqual(t, "node_0", results[1].ID)
	})

	t.Run("DetachHidesFromSearch", func(t *testing.T) {
		store := seed(t)

		require.NoError(t, store.Detach(ctx, []string{"node_0"}))

		results, err := store.Search(ctx, Vector(dims, 1, 0, 0), &storage.SearchOptions{Limit: 10})
		require.NoError(t, err)
		require.Len(t, results, 2)
		for _, r := range results {
			assert.NotEqual(t, "node_0", r.ID)
		}

		got, err := store.Get(ctx, "node_0")
		require.NoError(t, err)
		assert.False(t, got.Searchable)
	})

	t.Run("DeleteIgnoresUnknown", func(t *testing.T) {
		store := seed(t)

		require.NoError(t, store.Delete(ctx, []string{"node_1", "node_9"}))
		require.NoError(t, store.Delete(ctx, nil))

		records, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "node_0", records[0].ID)
		assert.Equal(t, "node_2", records[1].ID)
	})
}

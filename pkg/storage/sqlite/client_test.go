package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/agentmem-go/pkg/storage"
	"github.com/oceanbase/agentmem-go/pkg/storage/sqlite"
	"github.com/oceanbase/agentmem-go/pkg/storage/storagetest"
)

func newStore(t *testing.T, path string) *sqlite.Client {
	t.Helper()
	store, err := sqlite.NewClient(&sqlite.Config{
		DBPath:         path,
		CollectionName: "records",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestClient_Conformance(t *testing.T) {
	storagetest.Run(t, 8, func(t *testing.T) storage.RecordStore {
		return newStore(t, filepath.Join(t.TempDir(), "nested", "index.db"))
	})
}

func TestClient_InMemory(t *testing.T) {
	storagetest.Run(t, 4, func(t *testing.T) storage.RecordStore {
		return newStore(t, sqlite.MemoryPath)
	})
}

func TestClient_Snapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := newStore(t, filepath.Join(dir, "live.db"))

	for _, r := range storagetest.Fixture(4) {
		require.NoError(t, store.Insert(ctx, r))
	}
	require.NoError(t, store.Detach(ctx, []string{"node_1"}))

	snapshot := filepath.Join(dir, "out", "index.db")
	require.NoError(t, store.Snapshot(ctx, snapshot))
	// A second snapshot replaces the first.
	require.NoError(t, store.Snapshot(ctx, snapshot))

	copied := newStore(t, snapshot)
	records, err := copied.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "node_0", records[0].ID)
	assert.False(t, records[1].Searchable)
	assert.Equal(t, "Mei", records[2].Metadata["subject"])
}

func TestClient_Restore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "index.db")

	source := newStore(t, sqlite.MemoryPath)
	for _, r := range storagetest.Fixture(4) {
		require.NoError(t, source.Insert(ctx, r))
	}
	require.NoError(t, source.Detach(ctx, []string{"node_1"}))
	require.NoError(t, source.Snapshot(ctx, snapshot))

	target := newStore(t, sqlite.MemoryPath)
	existing := storagetest.Fixture(4)[0]
	existing.Text = "kept"
	require.NoError(t, target.Insert(ctx, existing))

	require.NoError(t, target.Restore(ctx, snapshot))
	// Restoring twice adds nothing.
	require.NoError(t, target.Restore(ctx, snapshot))

	records, err := target.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "node_0", records[0].ID)
	assert.Equal(t, "kept", records[0].Text)
	assert.Equal(t, "node_1", records[1].ID)
	assert.False(t, records[1].Searchable)

	results, err := target.Search(ctx, records[2].Embedding, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "node_2", results[0].ID)

	assert.Error(t, target.Restore(ctx, filepath.Join(dir, "absent.db")))
}

func TestClient_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	first, err := sqlite.NewClient(&sqlite.Config{DBPath: path})
	require.NoError(t, err)
	require.NoError(t, first.Insert(ctx, storagetest.Fixture(4)[0]))
	require.NoError(t, first.Close())

	second := newStore(t, path)
	n, err := second.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestClient_SearchNilOptions(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, sqlite.MemoryPath)
	for _, r := range storagetest.Fixture(4) {
		require.NoError(t, store.Insert(ctx, r))
	}

	results, err := store.Search(ctx, storagetest.Vector(4, 0, 0, 1), nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "node_2", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestClient_SnapshotOntoItself(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")
	store := newStore(t, path)
	require.NoError(t, store.Insert(ctx, storagetest.Fixture(4)[0]))

	require.NoError(t, store.Snapshot(ctx, path))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

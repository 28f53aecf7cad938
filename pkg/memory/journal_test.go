package memory_test

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/agentmem-go/pkg/memory"
)

func TestJournal_SnapshotSurvivesUpdate(t *testing.T) {
	j, err := memory.NewJournal(1)
	require.NoError(t, err)

	ev := memory.NewEvent("Klaus", memory.WithPredicate("is"), memory.WithObject("reading"))
	id := j.Record(ev)
	key := ev.Key()

	ev.Update("is", "writing", "")

	stored, ok := j.Get(id)
	require.True(t, ok)
	assert.Equal(t, "reading", stored.Object())
	assert.Equal(t, []snowflake.ID{id}, j.Lookup(key))
	assert.Empty(t, j.Lookup(ev.Key()))
}

func TestJournal_ReplaceReindexes(t *testing.T) {
	j, err := memory.NewJournal(1)
	require.NoError(t, err)

	ev := memory.NewEvent("Klaus", memory.WithPredicate("is"), memory.WithObject("reading"))
	old := ev.Key()
	id := j.Record(ev)

	ev.Update("is", "writing", "")
	require.True(t, j.Replace(id, ev))

	assert.Empty(t, j.Lookup(old))
	assert.Len(t, j.Lookup(ev.Key()), 1)

	assert.False(t, j.Replace(id+1, ev))
}

func TestJournal_FindAndRemove(t *testing.T) {
	j, err := memory.NewJournal(2)
	require.NoError(t, err)

	a := j.Record(memory.NewEvent("Klaus", memory.WithPredicate("is"), memory.WithObject("reading")))
	b := j.Record(memory.NewEvent("Maria", memory.WithPredicate("is"), memory.WithObject("reading")))
	c := j.Record(memory.NewEvent("Klaus", memory.WithPredicate("is"), memory.WithObject("eating")))

	assert.Equal(t, 3, j.Len())
	assert.Equal(t, []snowflake.ID{a, c}, j.Find("Klaus", "", ""))
	assert.Equal(t, []snowflake.ID{a, b}, j.Find("", "", "reading"))

	require.True(t, j.Remove(a))
	assert.False(t, j.Remove(a))
	assert.Equal(t, 2, j.Len())
	assert.Equal(t, []snowflake.ID{c}, j.Find("Klaus", "", ""))

	_, ok := j.Get(a)
	assert.False(t, ok)
}

func TestJournal_DuplicateContent(t *testing.T) {
	j, err := memory.NewJournal(3)
	require.NoError(t, err)

	ev := memory.NewEvent("Klaus")
	first := j.Record(ev)
	second := j.Record(ev)

	assert.NotEqual(t, first, second)
	assert.Len(t, j.Lookup(ev.Key()), 2)
}

func TestNewJournal_InvalidNode(t *testing.T) {
	_, err := memory.NewJournal(5000)
	assert.Error(t, err)
}

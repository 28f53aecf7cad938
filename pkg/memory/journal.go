package memory

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

// Journal stores immutable Event snapshots under stable surrogate keys.
//
// Events change identity when updated, so they make poor map keys. The
// journal copies an event on insert, hands out a snowflake ID, and keeps a
// content index that always reflects the stored snapshots.
//
// Journal is safe for concurrent use.
type Journal struct {
	mu     sync.RWMutex
	node   *snowflake.Node
	events map[snowflake.ID]*Event
	order  []snowflake.ID
	byKey  map[Key][]snowflake.ID
}

// NewJournal creates a journal. nodeID distinguishes ID generators running
// in different processes (0-1023).
func NewJournal(nodeID int64) (*Journal, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, newFieldError("NewJournal", "node", err)
	}
	return &Journal{
		node:   node,
		events: make(map[snowflake.ID]*Event),
		byKey:  make(map[Key][]snowflake.ID),
	}, nil
}

// Record stores a snapshot of ev and returns its ID.
func (j *Journal) Record(ev *Event) snowflake.ID {
	snap := ev.Clone()
	id := j.node.Generate()

	j.mu.Lock()
	defer j.mu.Unlock()
	j.events[id] = snap
	j.order = append(j.order, id)
	k := snap.Key()
	j.byKey[k] = append(j.byKey[k], id)
	return id
}

// Get returns a copy of the snapshot stored under id.
func (j *Journal) Get(id snowflake.ID) (*Event, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	ev, ok := j.events[id]
	if !ok {
		return nil, false
	}
	return ev.Clone(), true
}

// Replace swaps the snapshot stored under id for a copy of ev and re-indexes
// it under its new content key.
func (j *Journal) Replace(id snowflake.ID, ev *Event) bool {
	snap := ev.Clone()

	j.mu.Lock()
	defer j.mu.Unlock()
	old, ok := j.events[id]
	if !ok {
		return false
	}
	j.unindex(old.Key(), id)
	j.events[id] = snap
	k := snap.Key()
	j.byKey[k] = append(j.byKey[k], id)
	return true
}

// Lookup returns the IDs whose snapshot has the given identity, oldest first.
func (j *Journal) Lookup(k Key) []snowflake.ID {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]snowflake.ID(nil), j.byKey[k]...)
}

// Find returns the IDs of snapshots matching the partial pattern, oldest first.
func (j *Journal) Find(subject, predicate, object string) []snowflake.ID {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var ids []snowflake.ID
	for _, id := range j.order {
		if ev, ok := j.events[id]; ok && ev.Matches(subject, predicate, object) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Remove deletes the snapshot stored under id.
func (j *Journal) Remove(id snowflake.ID) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	ev, ok := j.events[id]
	if !ok {
		return false
	}
	j.unindex(ev.Key(), id)
	delete(j.events, id)
	for i, o := range j.order {
		if o == id {
			j.order = append(j.order[:i], j.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of snapshots.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.events)
}

func (j *Journal) unindex(k Key, id snowflake.ID) {
	ids := j.byKey[k]
	for i, o := range ids {
		if o == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(j.byKey, k)
		return
	}
	j.byKey[k] = ids
}

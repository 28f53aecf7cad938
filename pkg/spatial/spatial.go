// Package spatial provides the agent's model of physical places: a tree of
// named areas ending in object lists, plus a keyword alias map that resolves
// hints like "睡觉" to a path in the tree.
package spatial

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Well-known alias keys.
const (
	AliasSleeping   = "sleeping"
	AliasSleepingZh = "睡觉"
	AliasLivingArea = "living_area"

	// DefaultBedLeaf is appended to the living area path for the derived sleeping alias.
	DefaultBedLeaf = "bed"
)

// Spatial is a location tree with an alias map.
//
// Spatial is safe for concurrent use; AddLeaf serializes with readers.
type Spatial struct {
	mu      sync.RWMutex
	tree    *Node
	aliases *Aliases
	rng     *rand.Rand
}

type options struct {
	rng      *rand.Rand
	sleepKey string
	bedLeaf  string
}

// Option configures New.
type Option func(*options)

// WithRand sets the random source used by RandomAddress.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) {
		o.rng = rng
	}
}

// WithSleepAlias sets the alias key and leaf used when the sleeping alias is
// derived from the living area.
func WithSleepAlias(key, leaf string) Option {
	return func(o *options) {
		o.sleepKey = key
		o.bedLeaf = leaf
	}
}

// New creates a Spatial over tree and aliases. Both may be nil.
//
// When no sleeping alias (in either spelling) exists but a living_area alias
// does, a sleeping alias pointing at the living area's bed is added.
func New(tree *Node, aliases *Aliases, opts ...Option) *Spatial {
	o := &options{sleepKey: AliasSleepingZh, bedLeaf: DefaultBedLeaf}
	for _, opt := range opts {
		opt(o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if tree == nil {
		tree = NewArea()
	}
	if aliases == nil {
		aliases = NewAliases()
	}
	if !aliases.Has(AliasSleeping) && !aliases.Has(AliasSleepingZh) {
		if living, ok := aliases.Get(AliasLivingArea); ok {
			aliases.Set(o.sleepKey, append(living, o.bedLeaf)...)
		}
	}
	return &Spatial{tree: tree, aliases: aliases, rng: o.rng}
}

// AddLeaf inserts the last element of path as a leaf under the preceding
// segments, creating intermediate areas as needed. It reports whether the
// leaf was added; adding an existing leaf is a no-op.
//
// Paths shorter than two segments, or paths that would place a leaf directly
// inside an area (or an area inside a leaf list), are ignored.
func (s *Spatial) AddLeaf(path []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return addLeaf(path, s.tree)
}

func addLeaf(path []string, n *Node) bool {
	if len(path) < 2 || !n.isArea {
		return false
	}
	child, ok := n.Child(path[0])
	if len(path) == 2 {
		if !ok {
			child = NewLeaves()
			n.Set(path[0], child)
		}
		if child.isArea {
			return false
		}
		return child.appendLeaf(path[1])
	}
	if !ok {
		child = NewArea()
		n.Set(path[0], child)
	}
	return addLeaf(path[1:], child)
}

// FindAddress returns the path of the first alias, in insertion order, whose
// keyword occurs in hint. It returns an empty path when nothing matches.
func (s *Spatial) FindAddress(hint string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, key := range s.aliases.keys {
		if strings.Contains(hint, key) {
			return append([]string{}, s.aliases.paths[key]...)
		}
	}
	return []string{}
}

// FindAddressString is FindAddress joined with ":".
func (s *Spatial) FindAddressString(hint string) string {
	return strings.Join(s.FindAddress(hint), ":")
}

// GetLeaves returns what lies below path: child names for an area, objects
// for a leaf list. Unknown segments yield an empty result.
func (s *Spatial) GetLeaves(path []string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.tree
	for _, seg := range path {
		child, ok := n.Child(seg)
		if !ok {
			return []string{}
		}
		n = child
	}
	return n.Names()
}

// RandomAddress walks from the root, picking a uniformly random non-empty
// child at each area, and ends with a uniformly random leaf. Sampling is
// uniform per level, not over all leaves. It returns nil when the tree has
// no reachable leaf.
func (s *Spatial) RandomAddress() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var address []string
	n := s.tree
	for n.isArea {
		var roots []string
		for _, name := range n.order {
			if n.children[name].Len() > 0 {
				roots = append(roots, name)
			}
		}
		if len(roots) == 0 {
			return nil
		}
		pick := roots[s.rng.Intn(len(roots))]
		address = append(address, pick)
		n = n.children[pick]
	}
	if len(n.leaves) == 0 {
		return nil
	}
	return append(address, n.leaves[s.rng.Intn(len(n.leaves))])
}

// Aliases returns a copy of the alias map.
func (s *Spatial) Aliases() *Aliases {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aliases.Clone()
}

// String renders the location tree.
func (s *Spatial) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.String()
}

// MarshalJSON encodes the tree and aliases in the world file layout.
func (s *Spatial) MarshalJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return marshalWorld(s.tree, s.aliases)
}

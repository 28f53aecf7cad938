package spatial_test

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/agentmem-go/pkg/spatial"
)

func bedroomTree() *spatial.Node {
	return spatial.NewArea().
		Set("living_area", spatial.NewArea().
			Set("bedroom", spatial.NewLeaves("bed", "desk")))
}

func TestNew_DerivesSleepingAlias(t *testing.T) {
	aliases := spatial.NewAliases().Set("living_area", "living_area")
	s := spatial.New(bedroomTree(), aliases)

	got, ok := s.Aliases().Get("睡觉")
	require.True(t, ok)
	assert.Equal(t, []string{"living_area", "bed"}, got)
	assert.Equal(t, []string{"living_area", "睡觉"}, s.Aliases().Keys())
}

func TestNew_SleepingAliasRules(t *testing.T) {
	tests := []struct {
		name     string
		aliases  *spatial.Aliases
		opts     []spatial.Option
		key      string
		expected []string
		derived  bool
	}{
		{
			name:    "explicit chinese alias wins",
			aliases: spatial.NewAliases().Set("living_area", "home").Set("睡觉", "home", "sofa"),
			key:     "睡觉", expected: []string{"home", "sofa"}, derived: false,
		},
		{
			name:    "english alias suppresses",
			aliases: spatial.NewAliases().Set("living_area", "home").Set("sleeping", "home", "hammock"),
			key:     "睡觉", derived: false,
		},
		{
			name:    "no living area",
			aliases: spatial.NewAliases().Set("kitchen", "home", "kitchen"),
			key:     "睡觉", derived: false,
		},
		{
			name:    "custom key and leaf",
			aliases: spatial.NewAliases().Set("living_area", "home", "room"),
			opts:    []spatial.Option{spatial.WithSleepAlias("sleeping", "床")},
			key:     "sleeping", expected: []string{"home", "room", "床"}, derived: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.aliases.Len()
			s := spatial.New(nil, tt.aliases, tt.opts...)
			got, ok := s.Aliases().Get(tt.key)
			if tt.expected == nil {
				assert.False(t, ok)
			} else {
				require.True(t, ok)
				assert.Equal(t, tt.expected, got)
			}
			if tt.derived {
				assert.Equal(t, before+1, s.Aliases().Len())
			} else {
				assert.Equal(t, before, s.Aliases().Len())
			}
		})
	}
}

func TestFindAddress(t *testing.T) {
	aliases := spatial.NewAliases().
		Set("睡觉", "living_area", "bed").
		Set("coffee", "the Ville", "Hobbs Cafe", "cafe").
		Set("cafe", "the Ville", "Hobbs Cafe")
	s := spatial.New(nil, aliases)

	assert.Equal(t, []string{}, s.FindAddress("I want to sleep now"))
	assert.Equal(t, []string{"living_area", "bed"}, s.FindAddress("I want to 睡觉 now"))
	assert.Equal(t, "living_area:bed", s.FindAddressString("我想睡觉了"))
	assert.Equal(t, "", s.FindAddressString("nothing here"))

	// Both "coffee" and "cafe" occur; the earlier key wins.
	assert.Equal(t, []string{"the Ville", "Hobbs Cafe", "cafe"}, s.FindAddress("grab a coffee at the cafe"))
}

func TestFindAddress_ReturnsCopy(t *testing.T) {
	s := spatial.New(nil, spatial.NewAliases().Set("home", "town", "home"))
	got := s.FindAddress("go home")
	got[0] = "changed"
	assert.Equal(t, []string{"town", "home"}, s.FindAddress("go home"))
}

func TestAddLeaf(t *testing.T) {
	s := spatial.New(nil, nil)

	assert.True(t, s.AddLeaf([]string{"the Ville", "Hobbs Cafe", "cafe", "counter"}))
	assert.True(t, s.AddLeaf([]string{"the Ville", "Hobbs Cafe", "cafe", "coffee machine"}))
	assert.False(t, s.AddLeaf([]string{"the Ville", "Hobbs Cafe", "cafe", "counter"}))

	assert.Equal(t, []string{"counter", "coffee machine"}, s.GetLeaves([]string{"the Ville", "Hobbs Cafe", "cafe"}))
	assert.Equal(t, []string{"Hobbs Cafe"}, s.GetLeaves([]string{"the Ville"}))
}

func TestAddLeaf_Idempotent(t *testing.T) {
	s := spatial.New(bedroomTree(), nil)
	path := []string{"living_area", "bedroom", "lamp"}

	s.AddLeaf(path)
	first := s.GetLeaves(path[:2])
	s.AddLeaf(path)
	second := s.GetLeaves(path[:2])

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"bed", "desk", "lamp"}, second)
}

func TestAddLeaf_Ignored(t *testing.T) {
	s := spatial.New(bedroomTree(), nil)

	assert.False(t, s.AddLeaf(nil))
	assert.False(t, s.AddLeaf([]string{"living_area"}))
	// living_area is an area; a leaf list cannot be attached directly to it.
	assert.False(t, s.AddLeaf([]string{"living_area", "rug"}))
	// bedroom is a leaf list; it cannot hold sub-areas.
	assert.False(t, s.AddLeaf([]string{"living_area", "bedroom", "closet", "coat"}))

	assert.Equal(t, []string{"bedroom"}, s.GetLeaves([]string{"living_area"}))
	assert.Equal(t, []string{"bed", "desk"}, s.GetLeaves([]string{"living_area", "bedroom"}))
}

func TestGetLeaves(t *testing.T) {
	tree := spatial.NewArea().
		Set("town", spatial.NewArea().
			Set("library", spatial.NewLeaves("shelf", "desk")).
			Set("park", spatial.NewLeaves("bench")))
	s := spatial.New(tree, nil)

	tests := []struct {
		name     string
		path     []string
		expected []string
	}{
		{"root", nil, []string{"town"}},
		{"area keeps insertion order", []string{"town"}, []string{"library", "park"}},
		{"leaves", []string{"town", "library"}, []string{"shelf", "desk"}},
		{"unknown top", []string{"city"}, []string{}},
		{"unknown nested", []string{"town", "school"}, []string{}},
		{"descending past leaves", []string{"town", "library", "shelf"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.expected, s.GetLeaves(tt.path)); diff != "" {
				t.Errorf("GetLeaves(%v) mismatch (-want +got):\n%s", tt.path, diff)
			}
		})
	}
}

func TestRandomAddress_EndsInReachableLeaf(t *testing.T) {
	tree := spatial.NewArea().
		Set("the Ville", spatial.NewArea().
			Set("Hobbs Cafe", spatial.NewArea().
				Set("cafe", spatial.NewLeaves("counter", "coffee machine", "piano"))).
			Set("Oak Hill College", spatial.NewArea().
				Set("library", spatial.NewLeaves("shelf")).
				Set("classroom", spatial.NewLeaves("blackboard", "desk"))))
	s := spatial.New(tree, nil, spatial.WithRand(rand.New(rand.NewSource(7))))

	for i := 0; i < 200; i++ {
		addr := s.RandomAddress()
		require.Len(t, addr, 4)
		leaves := s.GetLeaves(addr[:len(addr)-1])
		assert.Contains(t, leaves, addr[len(addr)-1])
	}
}

func TestRandomAddress_SkipsEmptyAreas(t *testing.T) {
	tree := spatial.NewArea().
		Set("empty area", spatial.NewArea()).
		Set("town", spatial.NewArea().
			Set("vacant lot", spatial.NewLeaves()).
			Set("park", spatial.NewLeaves("bench"))).
		Set("empty leaves", spatial.NewLeaves())
	s := spatial.New(tree, nil, spatial.WithRand(rand.New(rand.NewSource(1))))

	for i := 0; i < 50; i++ {
		assert.Equal(t, []string{"town", "park", "bench"}, s.RandomAddress())
	}
}

func TestRandomAddress_UniformPerLevel(t *testing.T) {
	// Uniform over leaves would pick "b" a quarter of the time; per-level
	// sampling picks it half the time.
	tree := spatial.NewArea().
		Set("a", spatial.NewArea().
			Set("a1", spatial.NewLeaves("x")).
			Set("a2", spatial.NewLeaves("x")).
			Set("a3", spatial.NewLeaves("x"))).
		Set("b", spatial.NewArea().
			Set("b1", spatial.NewLeaves("x")))
	s := spatial.New(tree, nil, spatial.WithRand(rand.New(rand.NewSource(42))))

	const n = 4000
	hits := 0
	for i := 0; i < n; i++ {
		if s.RandomAddress()[0] == "b" {
			hits++
		}
	}
	assert.InDelta(t, 0.5, float64(hits)/n, 0.05)
}

func TestRandomAddress_EmptyTree(t *testing.T) {
	assert.Nil(t, spatial.New(nil, nil).RandomAddress())
	assert.Nil(t, spatial.New(spatial.NewArea().Set("a", spatial.NewArea()), nil).RandomAddress())
}

func TestAddLeaf_Concurrent(t *testing.T) {
	s := spatial.New(nil, nil)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.AddLeaf([]string{"town", "market", fmt.Sprintf("stall-%d", i%16)})
			_ = s.RandomAddress()
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.GetLeaves([]string{"town", "market"}), 16)
}

func TestSpatial_String(t *testing.T) {
	s := spatial.New(bedroomTree(), nil)
	s.AddLeaf([]string{"living_area", "kitchen", "stove"})

	expected := "living_area:\n" +
		"  bedroom: bed, desk\n" +
		"  kitchen: stove"
	assert.Equal(t, expected, s.String())
}

package selection

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_DefaultsBeforeAnyProbe(t *testing.T) {
	s := NewStore()

	for _, id := range []string{"s1", "s2", ""} {
		assert.Equal(t, []string{"all"}, s.Databases(id))
		assert.Equal(t, []string{"system", "connections_activity", "wal_replication"}, s.Blocks(id))
		assert.Equal(t, Unset, s.DatabaseState(id))
		assert.Equal(t, Unset, s.BlockState(id))
	}
	// Reads never create entries.
	assert.Equal(t, 0, s.Len())
}

func TestStore_SetDatabases_Exclusivity(t *testing.T) {
	tests := []struct {
		name  string
		start []string // nil means untouched
		set   []string
		want  []string
	}{
		{
			name: "named database removes all",
			set:  []string{"all", "app"},
			want: []string{"app"},
		},
		{
			name:  "adding all to named collapses to all",
			start: []string{"app", "analytics"},
			set:   []string{"app", "analytics", "all"},
			want:  []string{"all"},
		},
		{
			name:  "adding all first in list still collapses",
			start: []string{"app"},
			set:   []string{"all", "app"},
			want:  []string{"all"},
		},
		{
			name:  "clearing restores all",
			start: []string{"app"},
			set:   []string{},
			want:  []string{"all"},
		},
		{
			name: "nil restores all",
			set:  nil,
			want: []string{"all"},
		},
		{
			name: "only all",
			set:  []string{"all"},
			want: []string{"all"},
		},
		{
			name:  "duplicates and blanks dropped, order kept",
			start: []string{"app"},
			set:   []string{"b", "", "a", "b"},
			want:  []string{"b", "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			if tt.start != nil {
				s.SetDatabases("s1", tt.start)
			}
			got := s.SetDatabases("s1", tt.set)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, s.Databases("s1"))
			assert.Equal(t, UserChosen, s.DatabaseState("s1"))
		})
	}
}

func TestStore_ToggleDatabase(t *testing.T) {
	s := NewStore()

	assert.Equal(t, []string{"app"}, s.ToggleDatabase("s1", "app"))
	assert.Equal(t, []string{"app", "analytics"}, s.ToggleDatabase("s1", "analytics"))
	assert.Equal(t, []string{"all"}, s.ToggleDatabase("s1", "all"))
	assert.Equal(t, []string{"app"}, s.ToggleDatabase("s1", "app"))
	// Removing the last named database falls back to all.
	assert.Equal(t, []string{"all"}, s.ToggleDatabase("s1", "app"))
	// Toggling all off while it is the only choice keeps all.
	assert.Equal(t, []string{"all"}, s.ToggleDatabase("s1", "all"))
}

func TestStore_Blocks_NoExclusivity(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.SetBlocks("s1", Blocks))
	assert.Equal(t, Blocks, s.Blocks("s1"))

	require.NoError(t, s.SetBlocks("s1", []string{}))
	assert.Empty(t, s.Blocks("s1"))
	assert.Equal(t, UserChosen, s.BlockState("s1"))

	require.NoError(t, s.SetBlocks("s1", []string{"sizes", "system"}))
	assert.Equal(t, []string{"sizes", "system"}, s.Blocks("s1"))
}

func TestStore_SetBlocks_UnknownRejected(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.SetBlocks("s1", []string{"sizes"}))

	err := s.SetBlocks("s1", []string{"system", "bogus"})
	var unknown *UnknownBlockError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "bogus", unknown.Block)
	assert.Equal(t, []string{"sizes"}, s.Blocks("s1"), "failed set must not change state")
}

func TestStore_ToggleBlock(t *testing.T) {
	s := NewStore()

	got, err := s.ToggleBlock("s1", "system")
	require.NoError(t, err)
	assert.Equal(t, []string{"connections_activity", "wal_replication"}, got)

	got, err = s.ToggleBlock("s1", "sizes")
	require.NoError(t, err)
	assert.Equal(t, []string{"connections_activity", "wal_replication", "sizes"}, got)

	_, err = s.ToggleBlock("s1", "nope")
	assert.Error(t, err)
}

func TestStore_ApplyDefaults_TriState(t *testing.T) {
	s := NewStore()

	assert.True(t, s.ApplyDefaults("s1"))
	assert.Equal(t, Defaulted, s.DatabaseState("s1"))
	assert.Equal(t, Defaulted, s.BlockState("s1"))
	assert.Equal(t, []string{"all"}, s.Databases("s1"))

	// Second application is a no-op.
	assert.False(t, s.ApplyDefaults("s1"))

	// Operator explicitly picks the default value: distinguishable from Defaulted.
	s.SetDatabases("s1", []string{"all"})
	assert.Equal(t, UserChosen, s.DatabaseState("s1"))
	assert.Equal(t, Defaulted, s.BlockState("s1"))

	// Defaults never overwrite an operator choice.
	s2 := NewStore()
	s2.SetDatabases("s2", []string{"app"})
	assert.True(t, s2.ApplyDefaults("s2"), "block slot was still unset")
	assert.Equal(t, []string{"app"}, s2.Databases("s2"))
	assert.Equal(t, UserChosen, s2.DatabaseState("s2"))
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := NewStore()
	s.SetDatabases("s1", []string{"app"})

	got := s.Databases("s1")
	got[0] = "mutated"
	assert.Equal(t, []string{"app"}, s.Databases("s1"))

	blocks := s.Blocks("s1")
	blocks[0] = "mutated"
	assert.Equal(t, DefaultBlocks(), s.Blocks("s1"))
}

func TestStore_ForgetAndRetain(t *testing.T) {
	s := NewStore()
	s.SetDatabases("a", []string{"x"})
	s.SetDatabases("b", []string{"y"})
	s.SetDatabases("c", []string{"z"})

	s.Forget("a")
	assert.Equal(t, []string{"all"}, s.Databases("a"))

	s.Retain([]string{"b"})
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, []string{"y"}, s.Databases("b"))
	assert.Equal(t, Unset, s.DatabaseState("c"))
}

func TestStore_ConcurrentServersIndependent(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n))
			s.ApplyDefaults(id)
			s.ToggleDatabase(id, "db")
			_, _ = s.ToggleBlock(id, "sizes")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 16, s.Len())
	assert.Equal(t, []string{"db"}, s.Databases("a"))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unset", Unset.String())
	assert.Equal(t, "defaulted", Defaulted.String())
	assert.Equal(t, "user-chosen", UserChosen.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestIsBlock(t *testing.T) {
	assert.Len(t, Blocks, 8)
	for _, b := range Blocks {
		assert.True(t, IsBlock(b))
	}
	assert.False(t, IsBlock("all"))
}

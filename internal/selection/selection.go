// Package selection holds the per-server choice of databases and metric
// blocks the operator wants collected.
//
// Database selection uses the "all" sentinel: it is mutually exclusive with any
// named database and an empty choice collapses back to it. Block selection has
// no exclusivity and may be empty.
//
// Each server slot is tri-state (Unset, Defaulted, UserChosen) so callers can
// tell "the operator picked the default" apart from "defaults were never
// applied". A missing entry always reads as the defaults.
package selection

import (
	"fmt"
	"sync"
)

// AllDatabases is the sentinel meaning every database on the server.
const AllDatabases = "all"

// Metric block identifiers accepted by the collect call.
const (
	BlockSystem                  = "system"
	BlockBuffersBgwriter         = "buffers_bgwriter"
	BlockWALReplication          = "wal_replication"
	BlockTempFiles               = "temp_files"
	BlockCheckpointsBgwriter     = "checkpoints_bgwriter"
	BlockSizes                   = "sizes"
	BlockConnectionsActivity     = "connections_activity"
	BlockIndexesTablesStatements = "indexes_tables_statements"
)

// Blocks lists every metric block in display order.
var Blocks = []string{
	BlockSystem,
	BlockBuffersBgwriter,
	BlockWALReplication,
	BlockTempFiles,
	BlockCheckpointsBgwriter,
	BlockSizes,
	BlockConnectionsActivity,
	BlockIndexesTablesStatements,
}

// DefaultBlocks returns the blocks selected for a server nobody has touched.
func DefaultBlocks() []string {
	return []string{BlockSystem, BlockConnectionsActivity, BlockWALReplication}
}

// DefaultDatabases returns the database selection for a server nobody has touched.
func DefaultDatabases() []string {
	return []string{AllDatabases}
}

// IsBlock reports whether id is a known metric block.
func IsBlock(id string) bool {
	for _, b := range Blocks {
		if b == id {
			return true
		}
	}
	return false
}

// State describes how a server's selection got its current value.
type State int

const (
	Unset State = iota
	Defaulted
	UserChosen
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Unset:
		return "unset"
	case Defaulted:
		return "defaulted"
	case UserChosen:
		return "user-chosen"
	default:
		return "unknown"
	}
}

// UnknownBlockError is returned when a block identifier is not in Blocks.
type UnknownBlockError struct {
	Block string
}

func (e *UnknownBlockError) Error() string {
	return fmt.Sprintf("unknown metric block %q", e.Block)
}

type entry struct {
	databases  []string
	blocks     []string
	dbState    State
	blockState State
}

// Store is the in-memory selection state for all rendered servers.
// The zero value is not usable; call NewStore.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// get returns the entry for serverID, or nil. Caller holds the lock.
func (s *Store) get(serverID string) *entry {
	return s.entries[serverID]
}

// ensure returns the entry for serverID, creating an Unset one. Caller holds the write lock.
func (s *Store) ensure(serverID string) *entry {
	e, ok := s.entries[serverID]
	if !ok {
		e = &entry{}
		s.entries[serverID] = e
	}
	return e
}

// Databases returns the selected databases for serverID (default ["all"]).
func (s *Store) Databases(serverID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e := s.get(serverID); e != nil && e.dbState != Unset {
		return clone(e.databases)
	}
	return DefaultDatabases()
}

// SetDatabases stores a new database selection after applying the "all"
// exclusivity rule against the current value. When the new values contain
// both "all" and named databases, whichever side was just added wins.
func (s *Store) SetDatabases(serverID string, values []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.ensure(serverID)
	prev := DefaultDatabases()
	if e.dbState != Unset {
		prev = e.databases
	}

	e.databases = normalizeDatabases(prev, values)
	e.dbState = UserChosen
	return clone(e.databases)
}

// ToggleDatabase adds name to the selection if absent and removes it otherwise.
func (s *Store) ToggleDatabase(serverID, name string) []string {
	current := s.Databases(serverID)
	return s.SetDatabases(serverID, toggle(current, name))
}

// Blocks returns the selected metric blocks for serverID (default three-block set).
func (s *Store) Blocks(serverID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e := s.get(serverID); e != nil && e.blockState != Unset {
		return clone(e.blocks)
	}
	return DefaultBlocks()
}

// SetBlocks stores the block selection as given, minus duplicates. The empty
// set is a valid value. Unknown identifiers are rejected and nothing is stored.
func (s *Store) SetBlocks(serverID string, values []string) error {
	for _, v := range values {
		if !IsBlock(v) {
			return &UnknownBlockError{Block: v}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.ensure(serverID)
	e.blocks = dedupe(values)
	e.blockState = UserChosen
	return nil
}

// ToggleBlock flips one block in or out of the selection.
func (s *Store) ToggleBlock(serverID, block string) ([]string, error) {
	next := toggle(s.Blocks(serverID), block)
	if err := s.SetBlocks(serverID, next); err != nil {
		return nil, err
	}
	return s.Blocks(serverID), nil
}

// ApplyDefaults moves both slots of serverID from Unset to Defaulted. Slots
// that already hold a value are left alone. Returns true if anything changed.
func (s *Store) ApplyDefaults(serverID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.ensure(serverID)
	changed := false
	if e.dbState == Unset {
		e.databases = DefaultDatabases()
		e.dbState = Defaulted
		changed = true
	}
	if e.blockState == Unset {
		e.blocks = DefaultBlocks()
		e.blockState = Defaulted
		changed = true
	}
	return changed
}

// DatabaseState reports how the database selection of serverID was set.
func (s *Store) DatabaseState(serverID string) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e := s.get(serverID); e != nil {
		return e.dbState
	}
	return Unset
}

// BlockState reports how the block selection of serverID was set.
func (s *Store) BlockState(serverID string) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e := s.get(serverID); e != nil {
		return e.blockState
	}
	return Unset
}

// Forget drops the entry for serverID.
func (s *Store) Forget(serverID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, serverID)
}

// Retain drops every entry whose server is not in ids.
func (s *Store) Retain(ids []string) {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.entries {
		if !keep[id] {
			delete(s.entries, id)
		}
	}
}

// Len returns the number of servers with an entry.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func normalizeDatabases(prev, values []string) []string {
	values = dedupe(values)
	if len(values) == 0 {
		return DefaultDatabases()
	}

	hasAll := contains(values, AllDatabases)
	named := make([]string, 0, len(values))
	for _, v := range values {
		if v != AllDatabases {
			named = append(named, v)
		}
	}

	switch {
	case !hasAll:
		return named
	case len(named) == 0:
		return DefaultDatabases()
	case !contains(prev, AllDatabases):
		// "all" is the newcomer: it replaces the named choices.
		return DefaultDatabases()
	default:
		return named
	}
}

func toggle(values []string, v string) []string {
	out := make([]string, 0, len(values)+1)
	found := false
	for _, x := range values {
		if x == v {
			found = true
			continue
		}
		out = append(out, x)
	}
	if !found {
		out = append(out, v)
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func clone(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	return out
}

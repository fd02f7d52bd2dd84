package position

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
)

// Entry is a stored position together with the identity it is keyed by.
type Entry struct {
	Owner     common.Address
	TickLower int64
	TickUpper int64
	Info      Info
}

// Registry maps (owner, tickLower, tickUpper) to position state.
// Positions are never deleted, only zeroed.
//
// A Registry is not safe for concurrent use; its owner serializes access.
type Registry struct {
	positions map[common.Hash]*Entry
	byOwner   map[common.Address]mapset.Set[common.Hash]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		positions: make(map[common.Hash]*Entry),
		byOwner:   make(map[common.Address]mapset.Set[common.Hash]),
	}
}

// Get returns a copy of the position, creating an empty one if it does not exist.
func (r *Registry) Get(owner common.Address, tickLower, tickUpper int64) Info {
	if info, ok := r.Lookup(owner, tickLower, tickUpper); ok {
		return info
	}
	info := NewInfo()
	r.Set(owner, tickLower, tickUpper, info)
	return info.Clone()
}

// Lookup returns a copy of the position without creating it.
func (r *Registry) Lookup(owner common.Address, tickLower, tickUpper int64) (Info, bool) {
	entry, ok := r.positions[Key(owner, tickLower, tickUpper)]
	if !ok {
		return Info{}, false
	}
	return entry.Info.Clone(), true
}

// Set stores info as the position's state.
func (r *Registry) Set(owner common.Address, tickLower, tickUpper int64, info Info) {
	key := Key(owner, tickLower, tickUpper)
	if entry, ok := r.positions[key]; ok {
		entry.Info = info.Clone()
		return
	}

	r.positions[key] = &Entry{
		Owner:     owner,
		TickLower: tickLower,
		TickUpper: tickUpper,
		Info:      info.Clone(),
	}
	keys, ok := r.byOwner[owner]
	if !ok {
		keys = mapset.NewThreadUnsafeSet[common.Hash]()
		r.byOwner[owner] = keys
	}
	keys.Add(key)
}

// Positions returns copies of owner's positions ordered by range.
func (r *Registry) Positions(owner common.Address) []Entry {
	keys, ok := r.byOwner[owner]
	if !ok {
		return nil
	}
	entries := make([]Entry, 0, keys.Cardinality())
	for key := range keys.Iter() {
		entries = append(entries, r.copyEntry(key))
	}
	sortEntries(entries)
	return entries
}

// All returns copies of every stored position ordered by owner, then range.
func (r *Registry) All() []Entry {
	entries := make([]Entry, 0, len(r.positions))
	for key := range r.positions {
		entries = append(entries, r.copyEntry(key))
	}
	sortEntries(entries)
	return entries
}

// Len returns the number of stored positions.
func (r *Registry) Len() int {
	return len(r.positions)
}

func (r *Registry) copyEntry(key common.Hash) Entry {
	entry := r.positions[key]
	return Entry{
		Owner:     entry.Owner,
		TickLower: entry.TickLower,
		TickUpper: entry.TickUpper,
		Info:      entry.Info.Clone(),
	}
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if c := entries[i].Owner.Cmp(entries[j].Owner); c != 0 {
			return c < 0
		}
		if entries[i].TickLower != entries[j].TickLower {
			return entries[i].TickLower < entries[j].TickLower
		}
		return entries[i].TickUpper < entries[j].TickUpper
	})
}

package auditor

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/screwyprof/ballotaudit/pkg/contracts"
)

// VoterSet is a set of voting keys. Iteration through Sorted is ordered by address.
type VoterSet struct {
	keys map[common.Address]struct{}
}

// NewVoterSet creates a set holding addrs; duplicates collapse.
func NewVoterSet(addrs ...common.Address) *VoterSet {
	s := &VoterSet{keys: make(map[common.Address]struct{}, len(addrs))}
	for _, a := range addrs {
		s.keys[a] = struct{}{}
	}
	return s
}

// Add inserts a and reports whether it was absent.
func (s *VoterSet) Add(a common.Address) bool {
	if _, ok := s.keys[a]; ok {
		return false
	}
	s.keys[a] = struct{}{}
	return true
}

// Remove deletes a and reports whether it was present.
func (s *VoterSet) Remove(a common.Address) bool {
	if _, ok := s.keys[a]; !ok {
		return false
	}
	delete(s.keys, a)
	return true
}

func (s *VoterSet) Contains(a common.Address) bool {
	_, ok := s.keys[a]
	return ok
}

func (s *VoterSet) Len() int {
	return len(s.keys)
}

// Sorted returns the members in ascending address order.
func (s *VoterSet) Sorted() []common.Address {
	out := make([]common.Address, 0, len(s.keys))
	for a := range s.keys {
		out = append(out, a)
	}
	SortAddresses(out)
	return out
}

// Equal reports whether both sets hold the same members.
func (s *VoterSet) Equal(o *VoterSet) bool {
	if s.Len() != o.Len() {
		return false
	}
	for a := range s.keys {
		if !o.Contains(a) {
			return false
		}
	}
	return true
}

// SortAddresses sorts addrs ascending by their bytes.
func SortAddresses(addrs []common.Address) {
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})
}

// ResolveVoterFunc maps a mining key to its voting key using the keys manager
// of the given generation. A zero address means the key is not known.
type ResolveVoterFunc func(ctx context.Context, version contracts.Version, miningKey common.Address) (common.Address, error)

// VoterSetTracker holds the currently authorized voter set and applies
// key changes, full replacements and the legacy two-phase pending sets.
type VoterSetTracker struct {
	voters  *VoterSet
	pending *PendingSetInitiated
	resolve ResolveVoterFunc
	emit    func(Event)
}

// NewVoterSetTracker creates a tracker with an empty voter set. emit may be nil.
func NewVoterSetTracker(resolve ResolveVoterFunc, emit func(Event)) *VoterSetTracker {
	if emit == nil {
		emit = func(Event) {}
	}
	return &VoterSetTracker{
		voters:  NewVoterSet(),
		resolve: resolve,
		emit:    emit,
	}
}

// Voters returns the live voter set.
func (t *VoterSetTracker) Voters() *VoterSet {
	return t.voters
}

// Pending returns the buffered legacy candidate set, if any.
func (t *VoterSetTracker) Pending() (PendingSetInitiated, bool) {
	if t.pending == nil {
		return PendingSetInitiated{}, false
	}
	return *t.pending, true
}

// Insert adds a voter outside of any set-change event.
func (t *VoterSetTracker) Insert(a common.Address) bool {
	return t.voters.Add(a)
}

// Apply folds one set-changing event into the tracker. Other events are ignored.
func (t *VoterSetTracker) Apply(ctx context.Context, ev DomainEvent) error {
	switch e := ev.(type) {
	case KeyChange:
		t.applyKeyChange(e)
	case FullSetReplace:
		t.voters = NewVoterSet(e.NewSet...)
		t.emit(VoterSetReplaced{Block: e.Block, Voters: t.voters.Sorted()})
	case PendingSetInitiated:
		return t.applyPending(ctx, e)
	}
	return nil
}

func (t *VoterSetTracker) applyKeyChange(e KeyChange) {
	var changed bool
	switch e.Action {
	case KeyAdd:
		changed = t.voters.Add(e.Key)
	case KeyRemove:
		changed = t.voters.Remove(e.Key)
	default:
		t.emit(KeyChangeIgnored{Block: e.Block, Action: e.RawAction, Key: e.Key})
		return
	}
	t.emit(KeyChangeApplied{Block: e.Block, Action: e.Action.String(), Key: e.Key, Changed: changed})
}

// applyPending resolves the previously buffered candidates into the voter set
// and buffers the new ones. Whether this reproduces historical voter sets
// exactly has never been verified.
func (t *VoterSetTracker) applyPending(ctx context.Context, e PendingSetInitiated) error {
	t.emit(PendingSetBuffered{Block: e.Block, ParentHash: e.ParentHash, Candidates: e.Candidates})

	prev := t.pending
	t.pending = &e
	if prev == nil {
		return nil
	}

	resolved := NewVoterSet()
	for _, miningKey := range prev.Candidates {
		voter, err := t.resolve(ctx, prev.Version, miningKey)
		if err != nil {
			return fmt.Errorf("resolving voting key of %s: %w", miningKey.Hex(), err)
		}
		if voter == (common.Address{}) {
			continue
		}
		resolved.Add(voter)
	}
	t.voters = resolved
	t.emit(PendingSetResolved{Block: e.Block, Voters: resolved.Sorted()})
	return nil
}

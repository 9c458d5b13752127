package params

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

const (
	// MaxPositional is the fixed capacity of the ordered parameter vector.
	MaxPositional = 32

	// LegacySlots is the number of slots visible through the legacy
	// per-slot setter. Legacy indices 0..3 are the first positional slots;
	// the two views are the same storage.
	LegacySlots = 4
)

// snapshot is an immutable positional state. Once published it is never
// written again, so readers may hold it across a call without copying.
type snapshot struct {
	values [MaxPositional]float64
	count  int
}

// Store is the parameter state for one processing unit.
//
// All setters belong to the control path. Snapshot accessors are safe from
// the audio-rate path concurrently with any setter: they load an atomic
// pointer and never allocate.
type Store struct {
	positional atomic.Pointer[snapshot]
	named      atomic.Pointer[map[string]float64]

	// namedDirty flags that the named map changed since the audio path
	// last mirrored it into the interpreter.
	namedDirty atomic.Bool

	// mu serializes control-path read-modify-write cycles (legacy slot
	// writes, named map copies) against each other. The audio path never
	// takes it.
	mu sync.Mutex
}

// NewStore returns an empty store.
func NewStore() *Store {
	s := &Store{}
	s.positional.Store(&snapshot{})
	empty := map[string]float64{}
	s.named.Store(&empty)
	return s
}

// ReplacePositional atomically replaces the whole positional vector.
// All-or-nothing: more than MaxPositional values is rejected and the
// previous state stays published.
func (s *Store) ReplacePositional(values []float64) error {
	if len(values) > MaxPositional {
		return fmt.Errorf("%w: %d > %d", ErrTooManyPositional, len(values), MaxPositional)
	}

	next := &snapshot{count: len(values)}
	copy(next.values[:], values)

	s.mu.Lock()
	s.positional.Store(next)
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Store.ReplacePositional",
		"count":    len(values),
	}).Debug("Replaced positional parameters")

	return nil
}

// SetLegacySlot writes one of the four legacy parameter slots. The write
// goes through the same snapshot publication as ReplacePositional, so the
// legacy view and the general positional array stay consistent in both
// directions. The active count grows to cover the slot if needed.
func (s *Store) SetLegacySlot(slot int, value float64) error {
	if slot < 0 || slot >= LegacySlots {
		return fmt.Errorf("%w: %d", ErrSlotOutOfRange, slot)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.positional.Load()
	next := *cur
	next.values[slot] = value
	if next.count < slot+1 {
		next.count = slot + 1
	}
	s.positional.Store(&next)
	return nil
}

// Positional reads one slot of the current snapshot.
func (s *Store) Positional(i int) (float64, bool) {
	snap := s.positional.Load()
	if i < 0 || i >= snap.count {
		return 0, false
	}
	return snap.values[i], true
}

// SnapshotForCall returns the current positional view and its count. The
// returned slice aliases an immutable snapshot: it is safe to read until
// the next call and must not be written. No allocation occurs.
func (s *Store) SnapshotForCall() ([]float64, int) {
	snap := s.positional.Load()
	return snap.values[:snap.count], snap.count
}

// LegacyView returns the four legacy scalars regardless of the active
// count; unset slots read as zero.
func (s *Store) LegacyView() [LegacySlots]float64 {
	snap := s.positional.Load()
	var out [LegacySlots]float64
	copy(out[:], snap.values[:LegacySlots])
	return out
}

// SetNamed installs a sticky named value, last write wins. The map is
// copied on write so concurrent readers keep a coherent snapshot.
func (s *Store) SetNamed(name string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := *s.named.Load()
	next := make(map[string]float64, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[name] = value
	s.named.Store(&next)
	s.namedDirty.Store(true)
}

// ClearNamed drops every named value.
func (s *Store) ClearNamed() {
	s.mu.Lock()
	defer s.mu.Unlock()

	empty := map[string]float64{}
	s.named.Store(&empty)
	s.namedDirty.Store(true)
}

// Named reads one sticky value.
func (s *Store) Named(name string) (float64, bool) {
	v, ok := (*s.named.Load())[name]
	return v, ok
}

// NamedSnapshot returns the current named map. The map is immutable;
// callers must not modify it.
func (s *Store) NamedSnapshot() map[string]float64 {
	return *s.named.Load()
}

// ConsumeNamedDirty reports whether named state changed since the last
// call, clearing the flag. The audio path uses it to refresh the script's
// view of named parameters only when something actually changed.
func (s *Store) ConsumeNamedDirty() bool {
	return s.namedDirty.Swap(false)
}

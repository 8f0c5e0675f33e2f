// Package base implements the fixed-size lock-free open-addressing table
// (spec §4.2): the Slot state machine composed into a probe sequence,
// plus the migration routine (spec §4.3) that drains one generation into
// the next. A Table never resizes itself — Growable composition lives one
// layer up, in the exclusion/worker packages and the root growt package.
package base

import (
	"math/bits"
	"sync/atomic"

	"github.com/flowgrid/growt/internal/slot"
)

// Unsigned re-exports the slot package's key-domain constraint so callers
// one layer up never need to import internal/slot directly.
type Unsigned = slot.Unsigned

// Table is one fixed-capacity, single-version generation of the map.
type Table[K slot.Unsigned, V comparable] struct {
	version  uint64
	capacity uint64 // addressable capacity (power of two)
	bitmask  uint64
	shift    uint64 // for HighBits mapping: index = hash >> shift
	mapping  MappingPolicy
	probing  ProbingPolicy
	overflow uint64 // extra slots past capacity for LinearOverflow

	slots []slot.Slot[K, V]

	migrationCursor atomic.Uint64
	next            atomic.Pointer[Table[K, V]]

	hash func(K) uint64
}

// TryPublishNext CASes successor into this generation's next slot — the
// async exclusion strategy's step 2 (spec §4.4.a): whichever grower wins
// becomes the one everyone else helps. actual is whichever table ended
// up published (successor on a win, the existing one on a loss); won
// reports which happened.
func (t *Table[K, V]) TryPublishNext(successor *Table[K, V]) (actual *Table[K, V], won bool) {
	if t.next.CompareAndSwap(nil, successor) {
		return successor, true
	}
	return t.next.Load(), false
}

// Next returns the published successor, or nil if none has been
// published yet.
func (t *Table[K, V]) Next() *Table[K, V] { return t.next.Load() }

// New allocates a fresh, all-empty base table generation.
//
// capacity must already be a power of two >= 2; callers (the growable
// table / Options validation) round up before calling New.
func New[K slot.Unsigned, V comparable](capacity, version uint64, mapping MappingPolicy, probing ProbingPolicy, hash func(K) uint64) *Table[K, V] {
	if capacity < 2 || capacity&(capacity-1) != 0 {
		panic("base: capacity must be a power of two >= 2")
	}

	var overflow uint64
	total := capacity

	if probing == LinearOverflow {
		overflow = overflowTailFor(capacity)
		total = capacity + overflow
	}

	return &Table[K, V]{
		version:  version,
		capacity: capacity,
		bitmask:  capacity - 1,
		shift:    uint64(64 - bits.Len64(capacity-1)),
		mapping:  mapping,
		probing:  probing,
		overflow: overflow,
		slots:    make([]slot.Slot[K, V], total),
		hash:     hash,
	}
}

func (t *Table[K, V]) Version() uint64  { return t.version }
func (t *Table[K, V]) Capacity() uint64 { return t.capacity }

// At returns a read-only snapshot of the slot at physical index i, for
// Cursor's table scan. i must be < MigrationLen().
func (t *Table[K, V]) At(i uint64) slot.View[K, V] { return t.slots[i].Load() }

// mapIndex derives the initial probe position from a raw hash.
func (t *Table[K, V]) mapIndex(h uint64) uint64 {
	if t.mapping == HighBits {
		return h >> t.shift
	}
	return h & t.bitmask
}

// probeLimit is the exclusive slot-array index at which probing gives up.
func (t *Table[K, V]) probeLimit() uint64 {
	if t.probing == LinearOverflow {
		return t.capacity + t.overflow
	}
	return t.capacity // cyclic: a full cycle
}

// Insert probes from hash(k) and CASes the first empty slot it finds.
//
// Returns (SuccessIn, value) on a fresh insert, (UnsuccessAlready,
// existing value) if k is already live, UnsuccessFull if the probe
// sequence is exhausted, UnsuccessInvalid if a mark is observed anywhere
// along the sequence.
func (t *Table[K, V]) Insert(k K, v V) (Result, *V) {
	start := t.mapIndex(t.hash(k))

	for probes := uint64(0); ; probes++ {
		idx := t.nextIndex(start, probes)
		if idx >= t.probeLimit() {
			return UnsuccessFull, nil
		}

		s := &t.slots[idx]
		view := s.Load()

		switch view.State {
		case slot.MarkedEmpty, slot.MarkedLive:
			return UnsuccessInvalid, nil
		case slot.Live:
			if view.Key == k {
				return UnsuccessAlready, view.Value
			}
			continue
		case slot.Deleted:
			continue
		case slot.Empty:
			if !s.TryClaim() {
				// Lost the race for this slot; re-probe the same index
				// with a refreshed snapshot.
				probes--
				continue
			}

			box := new(V)
			*box = v
			s.Publish(k, box)

			return SuccessIn, box
		}
	}
}

// Find probes for k. ok is false with invalid=false when the key is
// absent; invalid is true when the probe reaches a marked-empty slot or
// a marked slot holding k, signalling the caller must retry against the
// table this one is migrating into. Marked slots holding other keys are
// probed past.
func (t *Table[K, V]) Find(k K) (value *V, ok, invalid bool) {
	start := t.mapIndex(t.hash(k))

	for probes := uint64(0); ; probes++ {
		idx := t.nextIndex(start, probes)
		if idx >= t.probeLimit() {
			return nil, false, false
		}

		view := t.slots[idx].Load()

		switch view.State {
		case slot.Empty:
			return nil, false, false
		case slot.MarkedEmpty:
			return nil, false, true
		case slot.Live:
			if view.Key == k {
				return view.Value, true, false
			}
		case slot.MarkedLive:
			if view.Key == k {
				return nil, false, true
			}
		case slot.Deleted:
			// continue probing
		}
	}
}

// Update probes for k and applies upd to its value. See the Updater /
// AtomicAdder split in update.go for the two code paths this takes.
func (t *Table[K, V]) Update(k K, upd Updater[V]) (Result, *V) {
	start := t.mapIndex(t.hash(k))

	for probes := uint64(0); ; probes++ {
		idx := t.nextIndex(start, probes)
		if idx >= t.probeLimit() {
			return UnsuccessNotFound, nil
		}

		s := &t.slots[idx]
		view := s.Load()

		switch view.State {
		case slot.Empty:
			return UnsuccessNotFound, nil
		case slot.MarkedEmpty, slot.MarkedLive:
			return UnsuccessInvalid, nil
		case slot.Live:
			if view.Key != k {
				continue
			}

			if adder, ok := upd.(AtomicAdder[V]); ok {
				adder.MutateAtomic(view.Value)
				return SuccessUp, view.Value
			}

			for {
				old := view.Value
				next := new(V)
				*next = upd.Apply(*old)

				if s.CompareAndSwapValue(old, next) {
					// The value lane and the mark bit live in separate
					// words, so winning the value CAS doesn't prove the
					// tag is still unmarked: a migrator can have Loaded
					// this slot (capturing old) before the CAS and would
					// otherwise carry the pre-update pointer into target.
					// Re-check the tag before declaring success.
					if s.Load().State != slot.Live {
						return UnsuccessInvalid, nil
					}
					return SuccessUp, next
				}
				// Lost the value-lane race; refresh and retry in place.
				view = s.Load()
				if view.State != slot.Live || view.Key != k {
					return UnsuccessInvalid, nil
				}
			}
		case slot.Deleted:
			continue
		}
	}
}

// InsertOrUpdate is the union of Insert and Update: CAS-insert on empty,
// atomic-update on a match.
func (t *Table[K, V]) InsertOrUpdate(k K, v V, upd Updater[V]) (Result, *V) {
	start := t.mapIndex(t.hash(k))

	for probes := uint64(0); ; probes++ {
		idx := t.nextIndex(start, probes)
		if idx >= t.probeLimit() {
			return UnsuccessFull, nil
		}

		s := &t.slots[idx]
		view := s.Load()

		switch view.State {
		case slot.MarkedEmpty, slot.MarkedLive:
			return UnsuccessInvalid, nil
		case slot.Live:
			if view.Key != k {
				continue
			}

			if adder, ok := upd.(AtomicAdder[V]); ok {
				adder.MutateAtomic(view.Value)
				return SuccessUp, view.Value
			}

			for {
				old := view.Value
				next := new(V)
				*next = upd.Apply(*old)

				if s.CompareAndSwapValue(old, next) {
					// See Update's identical re-check: the value CAS alone
					// doesn't observe a concurrent mark on the tag lane.
					if s.Load().State != slot.Live {
						return UnsuccessInvalid, nil
					}
					return SuccessUp, next
				}
				view = s.Load()
				if view.State != slot.Live || view.Key != k {
					return UnsuccessInvalid, nil
				}
			}
		case slot.Deleted:
			continue
		case slot.Empty:
			if !s.TryClaim() {
				probes--
				continue
			}

			box := new(V)
			*box = v
			s.Publish(k, box)

			return SuccessIn, box
		}
	}
}

// Erase probes for k and CASes it from live to deleted.
func (t *Table[K, V]) Erase(k K) Result {
	start := t.mapIndex(t.hash(k))

	for probes := uint64(0); ; probes++ {
		idx := t.nextIndex(start, probes)
		if idx >= t.probeLimit() {
			return UnsuccessNotFound
		}

		s := &t.slots[idx]
		view := s.Load()

		switch view.State {
		case slot.Empty:
			return UnsuccessNotFound
		case slot.MarkedEmpty, slot.MarkedLive:
			return UnsuccessInvalid
		case slot.Live:
			if view.Key != k {
				continue
			}
			if s.CompareAndDelete(view.Raw) {
				return SuccessDel
			}
			probes--
		case slot.Deleted:
			continue
		}
	}
}

// EraseIf erases k only if its current value equals expected.
func (t *Table[K, V]) EraseIf(k K, expected V) Result {
	start := t.mapIndex(t.hash(k))

	for probes := uint64(0); ; probes++ {
		idx := t.nextIndex(start, probes)
		if idx >= t.probeLimit() {
			return UnsuccessNotFound
		}

		s := &t.slots[idx]
		view := s.Load()

		switch view.State {
		case slot.Empty:
			return UnsuccessNotFound
		case slot.MarkedEmpty, slot.MarkedLive:
			return UnsuccessInvalid
		case slot.Live:
			if view.Key != k {
				continue
			}
			if *view.Value != expected {
				return UnsuccessNotFound
			}
			if s.CompareAndDelete(view.Raw) {
				return SuccessDel
			}
			probes--
		case slot.Deleted:
			continue
		}
	}
}

// insertUnsafe inserts a key migrate has already confirmed live in the
// source exactly once — markAndMigrate's own CAS on the source slot
// guarantees no other goroutine ever migrates the same source entry
// again. It is not, however, the only concurrent writer of this target
// generation: a different migrator can be inserting a different key
// whose probe sequence happens to cross the same physical slots (two
// source runs that rehash near each other). So the target slot still
// needs its ordinary atomic claim — two concurrent insertUnsafe calls
// must not both observe a slot Empty and both store into it, which
// would silently drop whichever write lost the race.
func (t *Table[K, V]) insertUnsafe(k K, v *V) {
	start := t.mapIndex(t.hash(k))

	for probes := uint64(0); ; probes++ {
		idx := t.nextIndex(start, probes)
		if idx >= t.probeLimit() {
			panic("base: insertUnsafe exhausted target probe sequence")
		}

		s := &t.slots[idx]
		if s.Load().State != slot.Empty {
			continue
		}

		if !s.TryClaim() {
			// Lost the claim race for this index to another concurrent
			// migrator; re-probe it with a refreshed read.
			probes--
			continue
		}

		s.Publish(k, v)
		return
	}
}

// nextIndex returns the slot-array index for the probes-th probe
// starting at start, per the configured probing policy. A return value
// >= probeLimit() means the sequence is exhausted.
func (t *Table[K, V]) nextIndex(start, probes uint64) uint64 {
	if t.probing == Cyclic {
		if probes >= t.capacity {
			return t.probeLimit() // signal exhaustion
		}
		return (start + probes) & t.bitmask
	}

	// LinearOverflow: straight increment, no wraparound; start is always
	// < capacity, and the overflow tail absorbs runs past it.
	return start + probes
}

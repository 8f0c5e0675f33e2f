package base

import "github.com/flowgrid/growt/internal/slot"

// MigrationLen is the number of physical slots a migration must drain —
// capacity for Cyclic probing, capacity+overflow for LinearOverflow
// (entries can live in the overflow tail too).
func (t *Table[K, V]) MigrationLen() uint64 { return uint64(len(t.slots)) }

// ClaimMigrationBlock apportions the next block of source indices to the
// caller via fetch-add on the migration cursor (spec §4.3). ok is false
// once the cursor has passed MigrationLen.
func (t *Table[K, V]) ClaimMigrationBlock(blockSize uint64) (start, end uint64, ok bool) {
	n := t.MigrationLen()

	cur := t.migrationCursor.Add(blockSize) - blockSize
	if cur >= n {
		return 0, 0, false
	}

	end = cur + blockSize
	if end > n {
		end = n
	}

	return cur, end, true
}

// markAndMigrate claims the slot at pos by marking it — retrying with a
// freshly re-read snapshot on a lost race, per spec §4.3 step 3 ("rare
// ... re-read and retry the same index") — then migrates it into target
// if it was live. wasEmpty reports whether this position is (or was
// already) a marked-empty run boundary, regardless of which goroutine
// did the marking: the run-completion tail (spec §4.3 step 4) must stop
// there even when some other block's thread reached it first.
//
// Target slots never need a separate initialize-to-empty pass: target is
// a freshly make()-allocated table nothing else touches before migration
// starts, and Go zero-initializes new slices to the Slot zero value,
// which is exactly the Empty state (see DESIGN.md).
func (t *Table[K, V]) markAndMigrate(target *Table[K, V], pos uint64) (wasEmpty bool, migrated uint64) {
	s := &t.slots[pos]

	for {
		view := s.Load()

		switch view.State {
		case slot.MarkedEmpty:
			// Already claimed empty by another goroutine: re-marking
			// would be a same-value no-op, but the run still ends here.
			return true, 0
		case slot.MarkedLive:
			// Already migrated by another goroutine; not a run boundary.
			return false, 0
		}

		if !s.CompareAndMark(view.Raw) {
			continue
		}

		switch view.State {
		case slot.Empty:
			return true, 0
		case slot.Live:
			target.insertUnsafe(view.Key, view.Value)
			return false, 1
		default: // Deleted
			return false, 0
		}
	}
}

// maxRunCompletionFactor bounds the run-completion scan (spec §4.3 step
// 4) defensively, to this many times MigrationLen() positions: a source table can never be fully live (growth
// triggers well before that), so a run cannot legitimately span the
// whole table. Exceeding this is an invariant violation, not a valid
// workload.
const maxRunCompletionFactor = 4

// MigrateBlock drains source indices [start,end) into target, then
// continues past end to finish whatever probe run straddles the block
// boundary (spec §4.3 step 4). Returns the number of live entries moved.
//
// Unlike the source, this has no separate left-boundary reconciliation
// pass: ClaimMigrationBlock partitions [0,MigrationLen()) by fetch-add,
// so every index is claimed by exactly one block's main loop. The
// previous block's run-completion tail can reach the same leading
// indices; markAndMigrate's mark CAS makes sure each live slot is
// still migrated only once, and insertUnsafe claims its target slot
// atomically, so the two walks can overlap safely. The right edge still needs the run-
// completion tail below, because a probe chain can continue past this
// block's end into index range a different (or not-yet-dispatched)
// block owns, and every slot must be marked before Find on the source
// generation can safely report "not present" during migration.
func (t *Table[K, V]) MigrateBlock(target *Table[K, V], start, end uint64) uint64 {
	n := t.MigrationLen()

	var migrated uint64
	i := start

	for ; i < end; i++ {
		_, got := t.markAndMigrate(target, i)
		migrated += got
	}

	// Step 4: run completion past the block end, wrapping for Cyclic
	// tables, straight-line for LinearOverflow.
	limit := n * maxRunCompletionFactor

	for ; i < limit; i++ {
		pos := i
		if t.probing == Cyclic {
			pos = i & t.bitmask
		} else if pos >= n {
			break
		}

		wasEmpty, got := t.markAndMigrate(target, pos)
		migrated += got

		if wasEmpty {
			break
		}
	}

	return migrated
}

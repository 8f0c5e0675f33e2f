package growt

import (
	"go.uber.org/zap"

	"github.com/flowgrid/growt/internal/base"
	"github.com/flowgrid/growt/internal/slot"
)

// flushThreshold is spec §4.5's "every 64 ops" local-to-global counter
// flush interval.
const flushThreshold = 64

// Handle is a per-goroutine view onto a [Table] (spec §4.5). It is not
// safe to share a Handle across goroutines — get one per goroutine from
// [Table.GetHandle]. Close it when the goroutine is done; holding one
// open under the Sync exclusion strategy consumes a registry slot.
type Handle[K Unsigned, V comparable] struct {
	table *Table[K, V]
	token int

	insertedLocal   int64
	deletedLocal    int64
	updatesUnflushed int

	closed bool
}

// Close flushes any unreported local counters and releases the handle's
// registry slot. Using the Handle afterward returns [ErrClosed].
func (h *Handle[K, V]) Close() error {
	if h.closed {
		return ErrClosed
	}
	h.flush()
	h.table.excl.Unregister(h.token)
	h.table.handleCount.Add(-1)
	h.closed = true
	return nil
}

// Insert inserts (k,v) if absent. inserted is false if k was already
// live, in which case the existing value is returned.
func (h *Handle[K, V]) Insert(k K, v V) (value *V, inserted bool, err error) {
	if h.closed {
		return nil, false, ErrClosed
	}
	if slot.Reserved[K](k) {
		return nil, false, ErrReservedKey
	}

	for {
		tbl, ok := h.acquire()
		if !ok {
			h.helpGrow()
			continue
		}

		res, got := tbl.Insert(k, v)
		h.table.excl.Release(h.token)

		switch res {
		case base.SuccessIn:
			h.insertedLocal++
			h.maybeFlush()
			return got, true, nil
		case base.UnsuccessAlready:
			return got, false, nil
		case base.UnsuccessFull:
			h.grow()
		case base.UnsuccessInvalid:
			h.helpGrow()
		}
	}
}

// Find looks up k. ok is false if absent.
func (h *Handle[K, V]) Find(k K) (value *V, ok bool, err error) {
	if h.closed {
		return nil, false, ErrClosed
	}

	for {
		tbl, acquired := h.acquire()
		if !acquired {
			h.helpGrow()
			continue
		}

		v, found, invalid := tbl.Find(k)
		h.table.excl.Release(h.token)

		if invalid {
			h.helpGrow()
			continue
		}

		return v, found, nil
	}
}

// Update applies upd to k's current value. updated is false if k is absent.
func (h *Handle[K, V]) Update(k K, upd Updater[V]) (value *V, updated bool, err error) {
	if h.closed {
		return nil, false, ErrClosed
	}

	for {
		tbl, ok := h.acquire()
		if !ok {
			h.helpGrow()
			continue
		}

		res, got := tbl.Update(k, upd)
		h.table.excl.Release(h.token)

		switch res {
		case base.SuccessUp:
			return got, true, nil
		case base.UnsuccessNotFound:
			return nil, false, nil
		case base.UnsuccessInvalid:
			h.helpGrow()
		}
	}
}

// InsertOrUpdate inserts v if k is absent, otherwise applies upd to the
// existing value.
func (h *Handle[K, V]) InsertOrUpdate(k K, v V, upd Updater[V]) (value *V, inserted bool, err error) {
	if h.closed {
		return nil, false, ErrClosed
	}
	if slot.Reserved[K](k) {
		return nil, false, ErrReservedKey
	}

	for {
		tbl, ok := h.acquire()
		if !ok {
			h.helpGrow()
			continue
		}

		res, got := tbl.InsertOrUpdate(k, v, upd)
		h.table.excl.Release(h.token)

		switch res {
		case base.SuccessIn:
			h.insertedLocal++
			h.maybeFlush()
			return got, true, nil
		case base.SuccessUp:
			return got, false, nil
		case base.UnsuccessFull:
			h.grow()
		case base.UnsuccessInvalid:
			h.helpGrow()
		}
	}
}

// Erase removes k. erased is false if k was absent.
func (h *Handle[K, V]) Erase(k K) (erased bool, err error) {
	if h.closed {
		return false, ErrClosed
	}

	for {
		tbl, ok := h.acquire()
		if !ok {
			h.helpGrow()
			continue
		}

		res := tbl.Erase(k)
		h.table.excl.Release(h.token)

		switch res {
		case base.SuccessDel:
			h.deletedLocal++
			h.maybeFlush()
			return true, nil
		case base.UnsuccessNotFound:
			return false, nil
		case base.UnsuccessInvalid:
			h.helpGrow()
		}
	}
}

// EraseIf removes k only if its current value equals expected — the TTL-
// style conditional delete supplemented from the source's remove overload.
func (h *Handle[K, V]) EraseIf(k K, expected V) (erased bool, err error) {
	if h.closed {
		return false, ErrClosed
	}

	for {
		tbl, ok := h.acquire()
		if !ok {
			h.helpGrow()
			continue
		}

		res := tbl.EraseIf(k, expected)
		h.table.excl.Release(h.token)

		switch res {
		case base.SuccessDel:
			h.deletedLocal++
			h.maybeFlush()
			return true, nil
		case base.UnsuccessNotFound:
			return false, nil
		case base.UnsuccessInvalid:
			h.helpGrow()
		}
	}
}

// Cursor returns an iterator over the base table generation current as
// of this call (spec §4.5: "arbitrary order ... from the current base
// table as observed at the start of the iterator").
func (h *Handle[K, V]) Cursor() *Cursor[K, V] {
	tbl, ok := h.acquire()
	if !ok {
		// A migration is in progress under Sync; help it, then retry
		// once against whatever is current afterward.
		h.helpGrow()
		tbl = h.table.excl.Current()
	} else {
		h.table.excl.Release(h.token)
	}

	return newCursor(h, tbl)
}

func (h *Handle[K, V]) acquire() (*base.Table[K, V], bool) {
	return h.table.excl.Acquire(h.token)
}

func (h *Handle[K, V]) helpGrow() {
	migrated := h.table.excl.HelpGrow(h.token)
	if migrated > 0 {
		h.table.logger().Debug("growt: helped migration", zap.Uint64("migrated", migrated))
	}
}

func (h *Handle[K, V]) grow() {
	current := h.table.excl.Current()
	live := h.table.inserted.Load() - h.table.deletedCnt.Load()
	newCapacity := h.table.targetCapacity(current, live)

	h.table.logger().Debug("growt: growing",
		zap.Uint64("from_capacity", current.Capacity()),
		zap.Uint64("to_capacity", newCapacity),
	)

	migrated := h.table.excl.Grow(h.token, newCapacity)

	h.table.logger().Debug("growt: grow complete", zap.Uint64("migrated", migrated))
}

func (h *Handle[K, V]) maybeFlush() {
	h.updatesUnflushed++
	if h.updatesUnflushed > flushThreshold {
		h.flush()
	}
}

func (h *Handle[K, V]) flush() {
	if h.insertedLocal != 0 {
		h.table.inserted.Add(h.insertedLocal)
		h.insertedLocal = 0
	}
	if h.deletedLocal != 0 {
		h.table.deletedCnt.Add(h.deletedLocal)
		h.deletedLocal = 0
	}
	h.updatesUnflushed = 0

	live := h.table.inserted.Load() - h.table.deletedCnt.Load()
	capacity := h.table.excl.Current().Capacity()

	if live > 0 && float64(live) > h.table.opts.MaxFillFactor*float64(capacity) {
		h.grow()
	}
}

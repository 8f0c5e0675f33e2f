package growt

import "github.com/flowgrid/growt/internal/slot"

// Cursor iterates the live slots of the base table generation current as
// of the call to [Handle.Cursor], in arbitrary order (spec §4.5).
//
// If a migration completes mid-iteration, Cursor keeps scanning the
// generation it started on — Next() never jumps tables — but Value()
// always re-resolves against the table current at the time of the call:
// if that table's version has moved on from the one Cursor is scanning,
// Value() re-looks-up the last key Next() yielded in the current
// generation instead of returning a snapshot from a table that may by
// then be fully migrated away.
type Cursor[K Unsigned, V comparable] struct {
	h       *Handle[K, V]
	tbl     tableView[K, V]
	version uint64

	idx uint64
	key K
	has bool
}

// tableView is the narrow slice of *base.Table Cursor needs, kept as an
// interface so this file doesn't import internal/base directly.
type tableView[K Unsigned, V comparable] interface {
	MigrationLen() uint64
	At(i uint64) slot.View[K, V]
	Version() uint64
}

func newCursor[K Unsigned, V comparable](h *Handle[K, V], tbl tableView[K, V]) *Cursor[K, V] {
	return &Cursor[K, V]{h: h, tbl: tbl, version: tbl.Version()}
}

// Next advances to the next live slot, returning false once exhausted.
func (c *Cursor[K, V]) Next() bool {
	n := c.tbl.MigrationLen()

	for c.idx < n {
		view := c.tbl.At(c.idx)
		c.idx++

		if view.State == slot.Live {
			c.key = view.Key
			c.has = true
			return true
		}
	}

	c.has = false
	return false
}

// Key returns the key Next last yielded.
func (c *Cursor[K, V]) Key() (K, bool) { return c.key, c.has }

// Value returns the value for the key Next last yielded. If the table
// has migrated since Cursor was created, this re-looks-up the key in the
// current generation rather than risk returning a value from a
// generation that has since had its slots marked and drained.
func (c *Cursor[K, V]) Value() (*V, bool) {
	if !c.has {
		return nil, false
	}

	current := c.h.table.excl.Current()
	if current.Version() == c.version {
		view := c.tbl.At(c.idx - 1)
		if view.State == slot.Live && view.Key == c.key {
			return view.Value, true
		}
	}

	v, ok, _ := c.h.Find(c.key)
	return v, ok
}

// Package exclusion implements the two exclusion strategies of spec
// §4.4.a/b: the mechanism a growable table uses to let readers/writers
// reach the current base table generation while a migration is underway.
package exclusion

import (
	"errors"

	"github.com/flowgrid/growt/internal/base"
	"github.com/flowgrid/growt/internal/slot"
)

// ErrRegistryFull is returned by Register when the handle registry is at
// capacity — only meaningful for Sync, which bounds it at the handle
// limit given to NewSync, at most MaxHandles (spec §5 "exceeding the bound is an unrecoverable failure").
var ErrRegistryFull = errors.New("exclusion: handle registry exhausted")

// Strategy mediates handle access to the current base table generation
// and drives growth. Every method takes the token a prior Register call
// returned for the calling handle.
type Strategy[K slot.Unsigned, V comparable] interface {
	Register() (token int, err error)
	Unregister(token int)

	// Acquire returns the base table the caller should operate on. ok is
	// false only under Sync when a migration has started between
	// Register and Acquire; the caller must call HelpGrow and retry.
	Acquire(token int) (tbl *base.Table[K, V], ok bool)
	Release(token int)

	// Current returns the table reads without a registered token may use
	// (approximate membership: a migration can be in flight).
	Current() *base.Table[K, V]

	// Grow starts (or joins) growing to newCapacity, running the
	// migration to completion, and returns the number of live entries
	// moved.
	Grow(token int, newCapacity uint64) (migrated uint64)

	// HelpGrow joins a migration already in progress. It is a no-op if
	// none is in progress.
	HelpGrow(token int) (migrated uint64)

	Close()
}

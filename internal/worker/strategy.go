// Package worker implements the two worker strategies of spec §4.4.c/d:
// the caller migrates inline (user), or a background goroutine drains the
// migration while callers block on a counting-wait primitive (pool).
package worker

import (
	"github.com/flowgrid/growt/internal/base"
	"github.com/flowgrid/growt/internal/slot"
)

// Migration describes one full source→target drain: the exclusion
// strategy builds one of these per grow() call and hands it to a worker
// strategy's ExecuteMigration.
type Migration[K slot.Unsigned, V comparable] struct {
	Source    *base.Table[K, V]
	Target    *base.Table[K, V]
	BlockSize uint64
}

// Strategy runs (or schedules) the migration work for one epoch.
// ExecuteMigration returns once the calling handle's generation of the
// migration is fully drained — not necessarily once Source is completely
// empty, since other threads may still be claiming the tail of it, but
// every block this call could claim has been processed.
type Strategy[K slot.Unsigned, V comparable] interface {
	// ExecuteMigration returns the number of live entries this call
	// migrated — approximate under the pool strategy, where concurrent
	// callers can observe a count from a generation other than their own
	// (acceptable: spec's counter flushes are relaxed/approximate too).
	ExecuteMigration(m Migration[K, V]) uint64
	Close()
}

// drain claims and migrates blocks from m.Source until the migration
// cursor is exhausted. Both worker strategies bottom out here — "user"
// runs it inline, "pool" runs it on the background goroutine.
func drain[K slot.Unsigned, V comparable](m Migration[K, V]) uint64 {
	var total uint64
	for {
		s, e, ok := m.Source.ClaimMigrationBlock(m.BlockSize)
		if !ok {
			return total
		}
		total += m.Source.MigrateBlock(m.Target, s, e)
	}
}

// Package growt implements a concurrent, lock-free-for-reads, growable
// in-memory hash table, modeled on the TooBiased/growt design: a fixed-
// size base table plus a migration protocol that moves live entries into
// a larger generation while readers and (depending on exclusion
// strategy) writers keep operating.
package growt

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/flowgrid/growt/internal/base"
	"github.com/flowgrid/growt/internal/exclusion"
	"github.com/flowgrid/growt/internal/worker"
)

// Table is the user-facing growable hash table (spec §4.4).
type Table[K Unsigned, V comparable] struct {
	opts Options[K]
	excl exclusion.Strategy[K, V]

	inserted    atomic.Int64
	deletedCnt  atomic.Int64
	handleCount atomic.Int32

	closed atomic.Bool
}

// New constructs a Table. opts is validated and defaulted (spec §6); an
// invalid field is reported wrapping [ErrInvalidOption].
func New[K Unsigned, V comparable](opts Options[K]) (*Table[K, V], error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	initial := base.New[K, V](opts.InitialCapacity, 0, opts.Mapping, opts.Probing, opts.Hasher)

	var w worker.Strategy[K, V]
	switch opts.Worker {
	case PoolThread:
		w = worker.NewPool[K, V]()
	default:
		w = worker.NewUser[K, V]()
	}

	var excl exclusion.Strategy[K, V]
	switch opts.Exclusion {
	case Sync:
		excl = exclusion.NewSync[K, V](initial, w, opts.MigrationBlockSize, opts.Mapping, opts.Probing, opts.Hasher, opts.HandleLimit)
	default:
		excl = exclusion.NewAsync[K, V](initial, w, opts.MigrationBlockSize, opts.Mapping, opts.Probing, opts.Hasher)
	}

	return &Table[K, V]{opts: opts, excl: excl}, nil
}

// GetHandle returns a new per-goroutine [Handle]. Under the Sync
// exclusion strategy this can fail with [ErrHandleLimitExceeded] once
// [Options.HandleLimit] handles are outstanding (spec §5).
func (t *Table[K, V]) GetHandle() (*Handle[K, V], error) {
	token, err := t.excl.Register()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandleLimitExceeded, err)
	}

	t.handleCount.Add(1)

	return &Handle[K, V]{table: t, token: token}, nil
}

// Len returns the approximate live element count (spec §4.4: local
// counters flush every 64 ops, so this can lag slightly behind reality —
// exact counts are not a correctness property, per spec §5).
func (t *Table[K, V]) Len() int {
	live := t.inserted.Load() - t.deletedCnt.Load()
	if live < 0 {
		return 0
	}
	return int(live)
}

// Capacity returns the current base table generation's capacity.
func (t *Table[K, V]) Capacity() uint64 { return t.excl.Current().Capacity() }

// Close releases background resources (the pool worker strategy's
// goroutine). Legal only once every handle has been closed (spec §5).
func (t *Table[K, V]) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	t.excl.Close()
	return nil
}

// targetCapacity implements spec §4.4's growth policy and §12's concrete
// ratio from the source's resize(): the smallest power of two that keeps
// the live estimate under MaxFillFactor, or capacity<<1 if that would not
// even grow (a tombstone-heavy table still grows to flush deletes).
func (t *Table[K, V]) targetCapacity(current *base.Table[K, V], liveEstimate int64) uint64 {
	capacity := current.Capacity()

	if liveEstimate < 0 {
		liveEstimate = 0
	}

	need := float64(liveEstimate) / t.opts.MaxFillFactor
	target := nextPowerOfTwo(uint64(need) + 1)

	if target <= capacity {
		target = capacity << 1
	}

	return target
}

func (t *Table[K, V]) logger() *zap.Logger { return t.opts.Logger }

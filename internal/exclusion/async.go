package exclusion

import (
	"runtime"
	"sync/atomic"

	"github.com/flowgrid/growt/internal/base"
	"github.com/flowgrid/growt/internal/slot"
	"github.com/flowgrid/growt/internal/worker"
)

// Async is spec §4.4.a. In the source this is a counting-pointer
// reclamation scheme (one refcount per base table generation, manual
// destruction at zero); here the garbage collector already reclaims any
// base.Table no longer reachable from Async.current, so the "protected
// pointer" load is a plain atomic load and there is no refcount to drop
// in Release (see DESIGN.md).
type Async[K slot.Unsigned, V comparable] struct {
	current atomic.Pointer[base.Table[K, V]]
	epoch   atomic.Uint64
	helpers atomic.Int64

	worker    worker.Strategy[K, V]
	blockSize uint64
	mapping   base.MappingPolicy
	probing   base.ProbingPolicy
	hash      func(K) uint64

	tokens atomic.Int64
}

func NewAsync[K slot.Unsigned, V comparable](
	initial *base.Table[K, V],
	w worker.Strategy[K, V],
	blockSize uint64,
	mapping base.MappingPolicy,
	probing base.ProbingPolicy,
	hash func(K) uint64,
) *Async[K, V] {
	a := &Async[K, V]{
		worker:    w,
		blockSize: blockSize,
		mapping:   mapping,
		probing:   probing,
		hash:      hash,
	}
	a.current.Store(initial)
	return a
}

// Register hands out an informational token only; Async has no bounded
// registry to exhaust.
func (a *Async[K, V]) Register() (int, error) {
	return int(a.tokens.Add(1)), nil
}

func (a *Async[K, V]) Unregister(int) {}

func (a *Async[K, V]) Acquire(int) (*base.Table[K, V], bool) {
	return a.current.Load(), true
}

func (a *Async[K, V]) Release(int) {}

func (a *Async[K, V]) Current() *base.Table[K, V] { return a.current.Load() }

func (a *Async[K, V]) Grow(_ int, newCapacity uint64) uint64 {
	cur := a.current.Load()

	if next := cur.Next(); next != nil {
		// Someone already started growing this generation; help instead
		// of allocating a second successor that would just lose the CAS.
		return a.runMigrationAndSwap(cur, next)
	}

	successor := base.New[K, V](newCapacity, cur.Version()+1, a.mapping, a.probing, a.hash)
	target, _ := cur.TryPublishNext(successor)

	return a.runMigrationAndSwap(cur, target)
}

func (a *Async[K, V]) HelpGrow(int) uint64 {
	cur := a.current.Load()

	target := cur.Next()
	if target == nil {
		return 0
	}

	return a.runMigrationAndSwap(cur, target)
}

// runMigrationAndSwap executes the migration, waits for every helper to
// drain, then attempts the current-pointer swap (spec §4.4.a steps
// 3-4/help_grow). Exactly one caller's CAS wins; the rest observe it
// already done and return having still contributed migration work.
func (a *Async[K, V]) runMigrationAndSwap(cur, target *base.Table[K, V]) uint64 {
	a.helpers.Add(1)
	migrated := a.worker.ExecuteMigration(worker.Migration[K, V]{
		Source:    cur,
		Target:    target,
		BlockSize: a.blockSize,
	})
	a.helpers.Add(-1)

	for a.helpers.Load() != 0 {
		runtime.Gosched()
	}

	if a.current.CompareAndSwap(cur, target) {
		a.epoch.Add(1)
	}

	return migrated
}

func (a *Async[K, V]) Close() { a.worker.Close() }

package exclusion

import (
	"runtime"
	"sync/atomic"

	"github.com/flowgrid/growt/internal/base"
	"github.com/flowgrid/growt/internal/slot"
	"github.com/flowgrid/growt/internal/worker"
)

// MaxHandles is the bounded registry size of spec §4.4.b / §5.
const MaxHandles = 256

const (
	stageIdle = iota
	stagePreparing
	stageMigrating
	stageFinalizing
)

// handleSlot holds one registered handle's flag pair, padded to its own
// cache line so spinning handles don't false-share with each other.
type handleSlot struct {
	tableOp   atomic.Int32
	migrating atomic.Int32
	_         [64 - 2*4]byte
}

// Sync is spec §4.4.b: a staged protocol (idle → preparing → migrating →
// finalizing) with a bounded per-handle flag registry, requiring no mark
// bit. Every update strictly excludes migration — the trade against
// Async's lock-freedom for a simpler, markless slot layout.
type Sync[K slot.Unsigned, V comparable] struct {
	stage atomic.Int32
	read  atomic.Pointer[base.Table[K, V]] // what Acquire hands out at stage idle
	write atomic.Pointer[base.Table[K, V]] // successor, published during preparing

	registry [MaxHandles]handleSlot
	inUse    [MaxHandles]atomic.Bool
	limit    int // active prefix of registry/inUse; <= MaxHandles

	worker    worker.Strategy[K, V]
	blockSize uint64
	mapping   base.MappingPolicy
	probing   base.ProbingPolicy
	hash      func(K) uint64
}

// NewSync allocates a Sync exclusion strategy. handleLimit bounds how
// much of the fixed MaxHandles-sized registry Register will actually
// hand out (spec §5, §8); it is clamped into [1, MaxHandles] so a
// misconfigured caller still gets a usable registry instead of zero
// capacity.
func NewSync[K slot.Unsigned, V comparable](
	initial *base.Table[K, V],
	w worker.Strategy[K, V],
	blockSize uint64,
	mapping base.MappingPolicy,
	probing base.ProbingPolicy,
	hash func(K) uint64,
	handleLimit int,
) *Sync[K, V] {
	if handleLimit <= 0 {
		handleLimit = MaxHandles
	}
	if handleLimit > MaxHandles {
		handleLimit = MaxHandles
	}

	s := &Sync[K, V]{
		worker:    w,
		blockSize: blockSize,
		mapping:   mapping,
		probing:   probing,
		hash:      hash,
		limit:     handleLimit,
	}
	s.read.Store(initial)
	return s
}

func (s *Sync[K, V]) Register() (int, error) {
	for i := 0; i < s.limit; i++ {
		if s.inUse[i].CompareAndSwap(false, true) {
			return i, nil
		}
	}
	return 0, ErrRegistryFull
}

func (s *Sync[K, V]) Unregister(token int) { s.inUse[token].Store(false) }

// Acquire sets table_op=1 to claim the table; if a migration has already
// started it clears the flag immediately and reports the caller must
// HelpGrow instead (spec §4.4.b).
func (s *Sync[K, V]) Acquire(token int) (*base.Table[K, V], bool) {
	slot := &s.registry[token]
	slot.tableOp.Store(1)

	if s.stage.Load() != stageIdle {
		slot.tableOp.Store(0)
		return nil, false
	}

	return s.read.Load(), true
}

func (s *Sync[K, V]) Release(token int) { s.registry[token].tableOp.Store(0) }

func (s *Sync[K, V]) Current() *base.Table[K, V] { return s.read.Load() }

// Grow runs the full staged protocol. Losing the initial 0→1 CAS means
// another handle is already growing; this call just helps instead.
func (s *Sync[K, V]) Grow(token int, newCapacity uint64) uint64 {
	if !s.stage.CompareAndSwap(stageIdle, stagePreparing) {
		return s.HelpGrow(token)
	}

	cur := s.read.Load()
	successor := base.New[K, V](newCapacity, cur.Version()+1, s.mapping, s.probing, s.hash)

	s.waitAllZero(func(h *handleSlot) *atomic.Int32 { return &h.tableOp })

	s.write.Store(successor)
	s.stage.Store(stageMigrating)

	migrated := s.worker.ExecuteMigration(worker.Migration[K, V]{
		Source:    cur,
		Target:    successor,
		BlockSize: s.blockSize,
	})

	s.waitAllZero(func(h *handleSlot) *atomic.Int32 { return &h.migrating })

	s.stage.Store(stageFinalizing)
	s.read.Store(successor)
	s.stage.Store(stageIdle)

	return migrated
}

// HelpGrow joins a migration in progress. It spins until the protocol
// reaches the migrating stage (or returns, idle, if there's nothing to
// help with), then runs the worker strategy exactly like Grow does.
func (s *Sync[K, V]) HelpGrow(token int) uint64 {
	for {
		switch s.stage.Load() {
		case stageIdle:
			return 0
		case stageMigrating:
			goto migrate
		default:
			runtime.Gosched()
		}
	}

migrate:
	slot := &s.registry[token]
	slot.migrating.Store(1)

	cur := s.read.Load()
	target := s.write.Load()

	migrated := s.worker.ExecuteMigration(worker.Migration[K, V]{
		Source:    cur,
		Target:    target,
		BlockSize: s.blockSize,
	})

	slot.migrating.Store(0)

	for s.stage.Load() != stageIdle {
		runtime.Gosched()
	}

	return migrated
}

func (s *Sync[K, V]) waitAllZero(sel func(*handleSlot) *atomic.Int32) {
	for i := range s.registry {
		if !s.inUse[i].Load() {
			continue
		}
		for sel(&s.registry[i]).Load() != 0 {
			runtime.Gosched()
		}
	}
}

func (s *Sync[K, V]) Close() { s.worker.Close() }

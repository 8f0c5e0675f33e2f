package worker

import (
	"runtime"
	"sync/atomic"

	"github.com/flowgrid/growt/internal/slot"
)

// PoolStrategy is spec §4.4.d: a single background goroutine per
// PoolStrategy (one per Table; handles do not get their own worker),
// parked on a counting-wait primitive, does the actual migration work. Calling
// goroutines never migrate themselves under this strategy — they bump
// the grow-wait counter, wake the worker, and block on the user-wait
// counter until their generation has been drained.
//
// The source's worker thread is pinned to the creating thread's core;
// Go has no portable equivalent (no per-core affinity API), so this
// instead locks the worker goroutine to its OS thread via
// runtime.LockOSThread, the nearest idiomatic approximation of "this
// goroutine owns a dedicated thread" (see DESIGN.md).
type PoolStrategy[K slot.Unsigned, V comparable] struct {
	growWait *CountingWait
	userWait *CountingWait
	pending      atomic.Pointer[Migration[K, V]]
	lastMigrated atomic.Uint64
	finished     atomic.Bool
	stopped      chan struct{}
}

func NewPool[K slot.Unsigned, V comparable]() *PoolStrategy[K, V] {
	p := &PoolStrategy[K, V]{
		growWait: NewCountingWait(),
		userWait: NewCountingWait(),
		stopped:  make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *PoolStrategy[K, V]) loop() {
	runtime.LockOSThread() // never unlocked: this goroutine owns its thread until Close

	var lastSeen uint64

	for {
		n := p.growWait.WaitUntil(func(n uint64) bool {
			return n > lastSeen || p.finished.Load()
		})

		if p.finished.Load() {
			close(p.stopped)
			return
		}

		lastSeen = n

		if m := p.pending.Load(); m != nil {
			p.lastMigrated.Store(drain(*m))
		}

		p.userWait.Bump()
	}
}

// ExecuteMigration hands the migration to the background worker and
// blocks until it has processed this generation.
func (p *PoolStrategy[K, V]) ExecuteMigration(m Migration[K, V]) uint64 {
	p.pending.Store(&m)
	target := p.growWait.Bump()
	p.userWait.WaitUntil(func(n uint64) bool { return n >= target })
	return p.lastMigrated.Load()
}

// Close signals the worker to exit and waits for it to do so.
func (p *PoolStrategy[K, V]) Close() {
	p.finished.Store(true)
	p.growWait.Bump()
	<-p.stopped
}

package worker

import "sync"

// CountingWait is a monotonic generation counter with a blocking wait,
// the idiomatic stand-in for the source's futex-based counting_wait
// primitive (spec §4.4.d, §9 design notes: "any OS primitive with
// futex-equivalent semantics is sufficient"). sync.Cond gives the same
// wait/wake-all shape without a raw futex syscall.
type CountingWait struct {
	mu   sync.Mutex
	cond *sync.Cond
	n    uint64
}

func NewCountingWait() *CountingWait {
	cw := &CountingWait{}
	cw.cond = sync.NewCond(&cw.mu)
	return cw
}

// Bump increments the counter and wakes every waiter, returning the new value.
func (c *CountingWait) Bump() uint64 {
	c.mu.Lock()
	c.n++
	n := c.n
	c.mu.Unlock()
	c.cond.Broadcast()
	return n
}

// Value returns the current counter value.
func (c *CountingWait) Value() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// WaitUntil blocks until pred(current value) is true, then returns that value.
func (c *CountingWait) WaitUntil(pred func(n uint64) bool) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	for !pred(c.n) {
		c.cond.Wait()
	}
	return c.n
}

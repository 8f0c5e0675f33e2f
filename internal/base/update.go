package base

// Updater computes a new value from the current one. Update implementations
// that only provide Updater take the CAS-the-value-lane path: load, apply,
// attempt to install, retry on a lost race (spec §4.1's atomic_update
// "otherwise" branch).
type Updater[V any] interface {
	Apply(current V) V
}

// AtomicAdder is the fast-path functor spec §4.1 and §6 describe: a
// functor that "exposes an atomic variant" the slot machinery can run as
// a relaxed fetch-and-modify on the value lane, with no CAS loop and no
// retry. It mutates *current in place; current is the live, shared value
// pointer, so MutateAtomic must itself be safe to call concurrently (e.g. it
// does its own atomic add on a field of V).
type AtomicAdder[V any] interface {
	MutateAtomic(current *V)
}

// UpdaterFunc adapts a plain function to Updater.
type UpdaterFunc[V any] func(current V) V

func (f UpdaterFunc[V]) Apply(current V) V { return f(current) }

package growt

import "github.com/flowgrid/growt/internal/base"

// Updater computes a new value from the current one — the CAS-the-value-
// lane path (spec §4.1/§6).
type Updater[V any] = base.Updater[V]

// AtomicAdder is the fast-path functor spec §6 describes: a functor that
// "exposes an atomic variant" the slot machinery runs as a relaxed
// mutation on the value lane directly, skipping the CAS loop entirely.
type AtomicAdder[V any] = base.AtomicAdder[V]

// UpdaterFunc adapts a plain function to [Updater].
type UpdaterFunc[V any] = base.UpdaterFunc[V]

package worker

import "github.com/flowgrid/growt/internal/slot"

// UserStrategy is spec §4.4.c: execute_migration simply calls migrate()
// on the calling goroutine. No background state, no parking.
type UserStrategy[K slot.Unsigned, V comparable] struct{}

func NewUser[K slot.Unsigned, V comparable]() *UserStrategy[K, V] {
	return &UserStrategy[K, V]{}
}

func (*UserStrategy[K, V]) ExecuteMigration(m Migration[K, V]) uint64 { return drain(m) }

func (*UserStrategy[K, V]) Close() {}

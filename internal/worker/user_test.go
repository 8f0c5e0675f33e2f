package worker_test

import (
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/growt/internal/base"
	"github.com/flowgrid/growt/internal/worker"
)

func hashUint64(k uint64) uint64 {
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(k >> (8 * i))
	}
	return xxhash.Sum64(buf[:])
}

func newWorkerTable(capacity uint64) *base.Table[uint64, string] {
	return base.New[uint64, string](capacity, 0, base.LowBits, base.Cyclic, hashUint64)
}

func Test_UserStrategy_ExecuteMigration_Runs_Inline_And_Returns_Count(t *testing.T) {
	t.Parallel()

	src := newWorkerTable(64)
	for i := uint64(1); i <= 5; i++ {
		res, _ := src.Insert(i, "v")
		require.Equal(t, base.SuccessIn, res)
	}

	dst := newWorkerTable(128)
	s := worker.NewUser[uint64, string]()

	migrated := s.ExecuteMigration(worker.Migration[uint64, string]{
		Source:    src,
		Target:    dst,
		BlockSize: 16,
	})

	assert.Equal(t, uint64(5), migrated)
	for i := uint64(1); i <= 5; i++ {
		_, ok, _ := dst.Find(i)
		assert.True(t, ok)
	}

	s.Close()
}

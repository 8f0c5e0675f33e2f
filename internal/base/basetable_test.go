package base_test

import (
	"sync"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/growt/internal/base"
)

func testHash(k uint64) uint64 {
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(k >> (8 * i))
	}
	return xxhash.Sum64(buf[:])
}

func newTable(capacity uint64) *base.Table[uint64, string] {
	return base.New[uint64, string](capacity, 0, base.LowBits, base.Cyclic, testHash)
}

func Test_Insert_Then_Find_Roundtrips(t *testing.T) {
	t.Parallel()

	tbl := newTable(64)

	res, v := tbl.Insert(10, "ten")
	require.Equal(t, base.SuccessIn, res)
	require.Equal(t, "ten", *v)

	got, ok, invalid := tbl.Find(10)
	require.True(t, ok)
	require.False(t, invalid)
	assert.Equal(t, "ten", *got)
}

func Test_Insert_Duplicate_Key_Reports_Already(t *testing.T) {
	t.Parallel()

	tbl := newTable(64)

	_, _ = tbl.Insert(5, "a")
	res, v := tbl.Insert(5, "b")

	assert.Equal(t, base.UnsuccessAlready, res)
	assert.Equal(t, "a", *v)
}

func Test_Find_Missing_Key_Not_Found(t *testing.T) {
	t.Parallel()

	tbl := newTable(64)
	_, ok, invalid := tbl.Find(999)
	assert.False(t, ok)
	assert.False(t, invalid)
}

func Test_Erase_Removes_Key(t *testing.T) {
	t.Parallel()

	tbl := newTable(64)
	_, _ = tbl.Insert(3, "c")

	res := tbl.Erase(3)
	require.Equal(t, base.SuccessDel, res)

	_, ok, _ := tbl.Find(3)
	assert.False(t, ok)

	assert.Equal(t, base.UnsuccessNotFound, tbl.Erase(3))
}

func Test_EraseIf_Only_Matches_Expected_Value(t *testing.T) {
	t.Parallel()

	tbl := newTable(64)
	_, _ = tbl.Insert(3, "c")

	assert.Equal(t, base.UnsuccessNotFound, tbl.EraseIf(3, "wrong"))

	got, ok, _ := tbl.Find(3)
	require.True(t, ok)
	assert.Equal(t, "c", *got)

	assert.Equal(t, base.SuccessDel, tbl.EraseIf(3, "c"))
}

type appendUpdater struct{ suffix string }

func (u appendUpdater) Apply(cur string) string { return cur + u.suffix }

func Test_Update_Applies_Functor(t *testing.T) {
	t.Parallel()

	tbl := newTable(64)
	_, _ = tbl.Insert(1, "a")

	res, v := tbl.Update(1, appendUpdater{suffix: "b"})
	require.Equal(t, base.SuccessUp, res)
	assert.Equal(t, "ab", *v)
}

func Test_Update_Missing_Key_Not_Found(t *testing.T) {
	t.Parallel()

	tbl := newTable(64)
	res, _ := tbl.Update(1, appendUpdater{suffix: "b"})
	assert.Equal(t, base.UnsuccessNotFound, res)
}

func Test_InsertOrUpdate_Inserts_When_Absent_Updates_When_Present(t *testing.T) {
	t.Parallel()

	tbl := newTable(64)

	res, v := tbl.InsertOrUpdate(1, "a", appendUpdater{suffix: "!"})
	require.Equal(t, base.SuccessIn, res)
	assert.Equal(t, "a", *v)

	res, v = tbl.InsertOrUpdate(1, "z", appendUpdater{suffix: "!"})
	require.Equal(t, base.SuccessUp, res)
	assert.Equal(t, "a!", *v)
}

func Test_Insert_Reports_Full_When_Probe_Sequence_Exhausted(t *testing.T) {
	t.Parallel()

	// Capacity 2, cyclic probing: the third distinct key cannot fit.
	tbl := newTable(2)

	res1, _ := tbl.Insert(1, "a")
	res2, _ := tbl.Insert(2, "b")
	require.Equal(t, base.SuccessIn, res1)
	require.Equal(t, base.SuccessIn, res2)

	res3, _ := tbl.Insert(3, "c")
	assert.Equal(t, base.UnsuccessFull, res3)
}

func Test_Concurrent_Inserts_Of_Distinct_Keys_All_Succeed(t *testing.T) {
	t.Parallel()

	tbl := newTable(4096)

	const n = 500

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(k uint64) {
			defer wg.Done()
			res, _ := tbl.Insert(k, "v")
			assert.Equal(t, base.SuccessIn, res)
		}(uint64(i + 1))
	}
	wg.Wait()

	for i := 1; i <= n; i++ {
		_, ok, invalid := tbl.Find(uint64(i))
		assert.True(t, ok)
		assert.False(t, invalid)
	}
}

package growt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/growt"
)

func Test_Handle_Insert_Find_Roundtrips(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, growt.Options[uint64]{})
	h, err := tbl.GetHandle()
	require.NoError(t, err)
	defer h.Close()

	v, inserted, err := h.Insert(1, "hello")
	require.NoError(t, err)
	require.True(t, inserted)
	assert.Equal(t, "hello", *v)

	got, ok, err := h.Find(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", *got)
}

func Test_Handle_Insert_Rejects_Reserved_Keys(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, growt.Options[uint64]{})
	h, err := tbl.GetHandle()
	require.NoError(t, err)
	defer h.Close()

	_, _, err = h.Insert(0, "x")
	assert.ErrorIs(t, err, growt.ErrReservedKey)

	var tombstone uint64 = 1<<63 - 1
	_, _, err = h.Insert(tombstone, "x")
	assert.ErrorIs(t, err, growt.ErrReservedKey)

	var claimed uint64 = 1
	_, _, err = h.Insert(claimed, "x")
	assert.ErrorIs(t, err, growt.ErrReservedKey)
}

func Test_Handle_Operations_After_Close_Return_ErrClosed(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, growt.Options[uint64]{})
	h, err := tbl.GetHandle()
	require.NoError(t, err)
	require.NoError(t, h.Close())

	assert.ErrorIs(t, h.Close(), growt.ErrClosed)

	_, _, err = h.Insert(1, "x")
	assert.ErrorIs(t, err, growt.ErrClosed)

	_, _, err = h.Find(1)
	assert.ErrorIs(t, err, growt.ErrClosed)

	_, err = h.Erase(1)
	assert.ErrorIs(t, err, growt.ErrClosed)
}

type appendSuffix struct{ suffix string }

func (u appendSuffix) Apply(cur string) string { return cur + u.suffix }

func Test_Handle_Update_Applies_Functor_To_Existing_Key(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, growt.Options[uint64]{})
	h, err := tbl.GetHandle()
	require.NoError(t, err)
	defer h.Close()

	_, _, err = h.Insert(1, "a")
	require.NoError(t, err)

	v, updated, err := h.Update(1, appendSuffix{suffix: "b"})
	require.NoError(t, err)
	require.True(t, updated)
	assert.Equal(t, "ab", *v)
}

func Test_Handle_Update_Missing_Key_Reports_Not_Updated(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, growt.Options[uint64]{})
	h, err := tbl.GetHandle()
	require.NoError(t, err)
	defer h.Close()

	_, updated, err := h.Update(42, appendSuffix{suffix: "b"})
	require.NoError(t, err)
	assert.False(t, updated)
}

func Test_Handle_InsertOrUpdate_Inserts_Then_Updates(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, growt.Options[uint64]{})
	h, err := tbl.GetHandle()
	require.NoError(t, err)
	defer h.Close()

	v, inserted, err := h.InsertOrUpdate(1, "a", appendSuffix{suffix: "!"})
	require.NoError(t, err)
	require.True(t, inserted)
	assert.Equal(t, "a", *v)

	v, inserted, err = h.InsertOrUpdate(1, "z", appendSuffix{suffix: "!"})
	require.NoError(t, err)
	require.False(t, inserted)
	assert.Equal(t, "a!", *v)
}

func Test_Handle_EraseIf_Only_Removes_On_Matching_Value(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, growt.Options[uint64]{})
	h, err := tbl.GetHandle()
	require.NoError(t, err)
	defer h.Close()

	_, _, err = h.Insert(1, "ttl-tag")
	require.NoError(t, err)

	erased, err := h.EraseIf(1, "wrong-tag")
	require.NoError(t, err)
	assert.False(t, erased)

	erased, err = h.EraseIf(1, "ttl-tag")
	require.NoError(t, err)
	assert.True(t, erased)

	_, ok, err := h.Find(1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func Test_Handle_Multiple_Handles_Share_Table_State(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, growt.Options[uint64]{})

	writer, err := tbl.GetHandle()
	require.NoError(t, err)
	defer writer.Close()

	reader, err := tbl.GetHandle()
	require.NoError(t, err)
	defer reader.Close()

	_, inserted, err := writer.Insert(1, "v")
	require.NoError(t, err)
	require.True(t, inserted)

	v, ok, err := reader.Find(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", *v)
}

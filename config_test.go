package growt_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/growt"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "growt.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func Test_LoadOptionsJSON_Accepts_Comments_And_Trailing_Commas(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `{
		// tuning for the catalog cache
		"initial_capacity": 8192,
		"max_fill_factor": 0.5,
		"exclusion": "sync",
		"worker": "pool",
	}`)

	f, err := growt.LoadOptionsJSON(path)
	require.NoError(t, err)

	assert.Equal(t, uint64(8192), f.InitialCapacity)
	assert.Equal(t, 0.5, f.MaxFillFactor)
	assert.Equal(t, "sync", f.Exclusion)
	assert.Equal(t, "pool", f.Worker)
}

func Test_LoadOptionsJSON_Fails_On_Missing_File(t *testing.T) {
	t.Parallel()

	_, err := growt.LoadOptionsJSON(filepath.Join(t.TempDir(), "missing.jsonc"))
	assert.Error(t, err)
}

func Test_ApplyFileOptions_Overlays_Only_Nonzero_Fields(t *testing.T) {
	t.Parallel()

	base := growt.Options[uint64]{
		InitialCapacity: 4096,
		MaxFillFactor:   2.0 / 3.0,
		Exclusion:       growt.Async,
	}

	merged, err := growt.ApplyFileOptions(base, growt.FileOptions{
		MaxFillFactor: 0.5,
		Exclusion:     "sync",
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(4096), merged.InitialCapacity) // untouched
	assert.Equal(t, 0.5, merged.MaxFillFactor)
	assert.Equal(t, growt.Sync, merged.Exclusion)
}

func Test_ApplyFileOptions_Rejects_Unknown_Enum_Values(t *testing.T) {
	t.Parallel()

	_, err := growt.ApplyFileOptions(growt.Options[uint64]{}, growt.FileOptions{Mapping: "sideways"})
	assert.ErrorIs(t, err, growt.ErrInvalidOption)

	_, err = growt.ApplyFileOptions(growt.Options[uint64]{}, growt.FileOptions{Probing: "sideways"})
	assert.ErrorIs(t, err, growt.ErrInvalidOption)

	_, err = growt.ApplyFileOptions(growt.Options[uint64]{}, growt.FileOptions{Exclusion: "sideways"})
	assert.ErrorIs(t, err, growt.ErrInvalidOption)

	_, err = growt.ApplyFileOptions(growt.Options[uint64]{}, growt.FileOptions{Worker: "sideways"})
	assert.ErrorIs(t, err, growt.ErrInvalidOption)
}

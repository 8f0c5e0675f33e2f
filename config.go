package growt

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

// FileOptions is the on-disk, JSON-with-comments (HuJSON) representation
// of the subset of [Options] that makes sense to externalize for a
// long-lived table — capacity/fill tuning and strategy selection — the
// way the teacher's root `config.go` loads its own `.tk.json`.
type FileOptions struct {
	InitialCapacity    uint64  `json:"initial_capacity"`
	MaxFillFactor      float64 `json:"max_fill_factor"`
	MigrationBlockSize uint64  `json:"migration_block_size"`
	Mapping            string  `json:"mapping"`   // "high_bits" | "low_bits"
	Probing            string  `json:"probing"`   // "linear_with_overflow" | "cyclic"
	Exclusion          string  `json:"exclusion"` // "async" | "sync"
	Worker             string  `json:"worker"`    // "user" | "pool"
	HandleLimit        int     `json:"handle_limit"`
}

// LoadOptionsJSON reads path as HuJSON (JSON with // and /* */ comments
// and trailing commas) and decodes it into a [FileOptions].
func LoadOptionsJSON(path string) (FileOptions, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled configuration
	if err != nil {
		return FileOptions{}, fmt.Errorf("growt: read options file %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return FileOptions{}, fmt.Errorf("growt: invalid JSONC in %s: %w", path, err)
	}

	var f FileOptions
	if err := json.Unmarshal(standardized, &f); err != nil {
		return FileOptions{}, fmt.Errorf("growt: invalid options JSON in %s: %w", path, err)
	}

	return f, nil
}

// ApplyFileOptions overlays non-zero fields of f onto o. Zero-valued
// fields in f (including an empty policy string) leave o's field
// untouched, so a config file only needs to mention what it overrides.
func ApplyFileOptions[K Unsigned](o Options[K], f FileOptions) (Options[K], error) {
	if f.InitialCapacity != 0 {
		o.InitialCapacity = f.InitialCapacity
	}
	if f.MaxFillFactor != 0 {
		o.MaxFillFactor = f.MaxFillFactor
	}
	if f.MigrationBlockSize != 0 {
		o.MigrationBlockSize = f.MigrationBlockSize
	}
	if f.HandleLimit != 0 {
		o.HandleLimit = f.HandleLimit
	}

	if f.Mapping != "" {
		switch f.Mapping {
		case "high_bits":
			o.Mapping = HighBits
		case "low_bits":
			o.Mapping = LowBits
		default:
			return o, fmt.Errorf("growt: unknown mapping %q: %w", f.Mapping, ErrInvalidOption)
		}
	}

	if f.Probing != "" {
		switch f.Probing {
		case "linear_with_overflow":
			o.Probing = LinearOverflow
		case "cyclic":
			o.Probing = Cyclic
		default:
			return o, fmt.Errorf("growt: unknown probing %q: %w", f.Probing, ErrInvalidOption)
		}
	}

	if f.Exclusion != "" {
		switch f.Exclusion {
		case "async":
			o.Exclusion = Async
		case "sync":
			o.Exclusion = Sync
		default:
			return o, fmt.Errorf("growt: unknown exclusion strategy %q: %w", f.Exclusion, ErrInvalidOption)
		}
	}

	if f.Worker != "" {
		switch f.Worker {
		case "user":
			o.Worker = UserThread
		case "pool":
			o.Worker = PoolThread
		default:
			return o, fmt.Errorf("growt: unknown worker strategy %q: %w", f.Worker, ErrInvalidOption)
		}
	}

	return o, nil
}

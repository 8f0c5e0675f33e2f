package growt

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/flowgrid/growt/internal/base"
)

// Unsigned is the supported key domain (spec §3: "unsigned integers").
type Unsigned = base.Unsigned

// MappingPolicy selects how a hash becomes an initial probe index.
type MappingPolicy = base.MappingPolicy

const (
	HighBits = base.HighBits
	LowBits  = base.LowBits
)

// ProbingPolicy selects how a base table walks its probe sequence.
type ProbingPolicy = base.ProbingPolicy

const (
	LinearOverflow = base.LinearOverflow
	Cyclic         = base.Cyclic
)

// ExclusionPolicy selects the growable table's exclusion strategy
// (spec §4.4.a/b).
type ExclusionPolicy int

const (
	Async ExclusionPolicy = iota
	Sync
)

func (e ExclusionPolicy) String() string {
	if e == Sync {
		return "sync"
	}
	return "async"
}

// WorkerPolicy selects the growable table's worker strategy (spec §4.4.c/d).
type WorkerPolicy int

const (
	UserThread WorkerPolicy = iota
	PoolThread
)

func (w WorkerPolicy) String() string {
	if w == PoolThread {
		return "pool"
	}
	return "user"
}

const (
	defaultInitialCapacity   = 4096
	minInitialCapacity       = 4096
	defaultMaxFillFactor     = 2.0 / 3.0
	defaultMigrationBlockSize = 4096
	defaultHandleLimit       = 256
)

// Options configures a [Table] at construction (spec §6, "Configuration").
type Options[K Unsigned] struct {
	// InitialCapacity is rounded up to a power of two >= 4096.
	InitialCapacity uint64

	// MaxFillFactor is the growth trigger: grow when live/capacity
	// exceeds this. Must be in (0,1). Default 2/3.
	MaxFillFactor float64

	// MigrationBlockSize is the per-thread migration work-stealing unit
	// (spec §4.3). Must be > 0. Default 4096.
	MigrationBlockSize uint64

	// Mapping and Probing must not combine HighBits with Cyclic (spec §9
	// open question; see DESIGN.md decision 3).
	Mapping MappingPolicy
	Probing ProbingPolicy

	Exclusion ExclusionPolicy
	Worker    WorkerPolicy

	// HandleLimit bounds the Sync strategy's handle registry. Ignored
	// under Async. Default 256, matching spec §5.
	HandleLimit int

	// DeletionsSupported and GrowthSupported are retained for parity with
	// spec §6's configuration table; growt's slot layout already supports
	// both unconditionally, so neither field is read and there are no
	// separate code paths for them.
	DeletionsSupported bool
	GrowthSupported     bool

	// Hasher computes the probe hash for K. Defaults to an xxhash-based
	// hasher over K's bytes.
	Hasher func(K) uint64

	// Logger receives Debug-level growth and migration events. The pool
	// worker does not log. Defaults to a no-op logger.
	Logger *zap.Logger
}

func (o Options[K]) withDefaults() Options[K] {
	if o.InitialCapacity == 0 {
		o.InitialCapacity = defaultInitialCapacity
	}
	if o.InitialCapacity < minInitialCapacity {
		o.InitialCapacity = minInitialCapacity
	}
	o.InitialCapacity = nextPowerOfTwo(o.InitialCapacity)

	if o.MaxFillFactor == 0 {
		o.MaxFillFactor = defaultMaxFillFactor
	}
	if o.MigrationBlockSize == 0 {
		o.MigrationBlockSize = defaultMigrationBlockSize
	}
	if o.HandleLimit == 0 {
		o.HandleLimit = defaultHandleLimit
	}
	if o.Hasher == nil {
		o.Hasher = defaultHasher[K]
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}

	return o
}

func (o Options[K]) validate() error {
	if o.MaxFillFactor < 0 || o.MaxFillFactor >= 1 {
		return fmt.Errorf("growt: MaxFillFactor must be in (0,1): %w", ErrInvalidOption)
	}
	if o.MigrationBlockSize == 0 {
		return fmt.Errorf("growt: MigrationBlockSize must be > 0: %w", ErrInvalidOption)
	}
	if o.HandleLimit <= 0 {
		return fmt.Errorf("growt: HandleLimit must be > 0: %w", ErrInvalidOption)
	}
	if o.Mapping == HighBits && o.Probing == Cyclic {
		return fmt.Errorf("growt: HighBits mapping with Cyclic probing is not supported: %w", ErrInvalidOption)
	}
	return nil
}

func nextPowerOfTwo(n uint64) uint64 {
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// defaultHasher hashes K's little-endian byte representation with xxhash.
func defaultHasher[K Unsigned](k K) uint64 {
	var buf [8]byte
	v := uint64(k)
	for i := range buf {
		buf[i] = byte(v >> (8 * i))
	}
	return xxhash.Sum64(buf[:])
}

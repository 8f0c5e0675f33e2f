package growt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	natomic "github.com/natefinch/atomic"
)

// Stats is a point-in-time diagnostics snapshot written by [Table.DumpStats].
type Stats struct {
	Version          uint64    `json:"version"`
	Capacity         uint64    `json:"capacity"`
	ApproxLive       int64     `json:"approx_live"`
	ApproxTombstones int64     `json:"approx_tombstones"`
	OpenHandles      int32     `json:"open_handles"`
	Exclusion        string    `json:"exclusion"`
	Worker           string    `json:"worker"`
	CollectedAt      time.Time `json:"collected_at"`
}

// Stats collects a point-in-time diagnostics snapshot. Counts are
// approximate (spec §5: relaxed counter flushes).
func (t *Table[K, V]) Stats(collectedAt time.Time) Stats {
	current := t.excl.Current()

	return Stats{
		Version:          current.Version(),
		Capacity:         current.Capacity(),
		ApproxLive:       t.inserted.Load() - t.deletedCnt.Load(),
		ApproxTombstones: t.deletedCnt.Load(),
		OpenHandles:      t.handleCount.Load(),
		Exclusion:        t.opts.Exclusion.String(),
		Worker:           t.opts.Worker.String(),
		CollectedAt:      collectedAt,
	}
}

// DumpStats atomically writes a JSON diagnostics snapshot to path — a
// debugging/ops aid, not persistence (nothing is ever read back from
// it; the spec's Non-goals on durable state are untouched). Uses
// natefinch/atomic so a reader never observes a partially-written file.
func (t *Table[K, V]) DumpStats(path string, collectedAt time.Time) error {
	data, err := json.MarshalIndent(t.Stats(collectedAt), "", "  ")
	if err != nil {
		return fmt.Errorf("growt: marshal stats: %w", err)
	}

	if err := natomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("growt: write stats to %s: %w", path, err)
	}

	return nil
}

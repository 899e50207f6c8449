// Package partition plans the split of a job's work into independently
// processable chunks. Planning is deterministic: the same inputs always yield
// the same chunk layout, so the total recorded on the job row and the messages
// the dispatcher publishes can never drift apart.
package partition

import (
	"errors"
	"fmt"
)

const (
	// DefaultChunkSize bounds per-chunk memory and engine-call latency.
	DefaultChunkSize = 1000
	// MaxChunkSize is the hard ceiling a configured chunk size is clamped to.
	MaxChunkSize = 10000
)

// ErrNoItems indicates there is nothing to partition.
var ErrNoItems = errors.New("no items to partition")

// Descriptor describes one planned chunk: its stable index and the half-open
// item range [Offset, Offset+Count) it covers.
type Descriptor struct {
	Index  int
	Offset int
	Count  int
}

// Planner computes chunk layouts for a fixed chunk size.
type Planner struct {
	chunkSize int
}

// NewPlanner constructs a Planner, clamping the chunk size into (0, MaxChunkSize].
func NewPlanner(chunkSize int) *Planner {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize > MaxChunkSize {
		chunkSize = MaxChunkSize
	}
	return &Planner{chunkSize: chunkSize}
}

// ChunkSize returns the effective chunk size after clamping.
func (p *Planner) ChunkSize() int {
	return p.chunkSize
}

// Plan splits totalItems into ordered chunks of at most the planner's chunk
// size. The final chunk absorbs the remainder.
func (p *Planner) Plan(totalItems int) ([]Descriptor, error) {
	if totalItems <= 0 {
		return nil, ErrNoItems
	}

	total := (totalItems + p.chunkSize - 1) / p.chunkSize
	descriptors := make([]Descriptor, 0, total)
	for i := range total {
		offset := i * p.chunkSize
		count := p.chunkSize
		if offset+count > totalItems {
			count = totalItems - offset
		}
		descriptors = append(descriptors, Descriptor{Index: i, Offset: offset, Count: count})
	}
	return descriptors, nil
}

// PlanExisting produces one descriptor per already-partitioned chunk. Decryption
// and combine operations reuse the tally's chunk layout rather than recomputing
// it, so their work unit is simply the chunk index.
func PlanExisting(chunkCount int) ([]Descriptor, error) {
	if chunkCount <= 0 {
		return nil, ErrNoItems
	}
	descriptors := make([]Descriptor, 0, chunkCount)
	for i := range chunkCount {
		descriptors = append(descriptors, Descriptor{Index: i, Count: 1})
	}
	return descriptors, nil
}

// Validate confirms a plan covers exactly the expected totals. A mismatch is a
// precondition violation surfaced at job-creation time, before anything is
// enqueued.
func Validate(descriptors []Descriptor, totalItems int) error {
	covered := 0
	for i, d := range descriptors {
		if d.Index != i {
			return fmt.Errorf("chunk %d has out-of-order index %d", i, d.Index)
		}
		if d.Count <= 0 {
			return fmt.Errorf("chunk %d has non-positive item count %d", d.Index, d.Count)
		}
		if d.Offset != covered {
			return fmt.Errorf("chunk %d starts at offset %d, want %d", d.Index, d.Offset, covered)
		}
		covered += d.Count
	}
	if covered != totalItems {
		return fmt.Errorf("plan covers %d items, want %d", covered, totalItems)
	}
	return nil
}

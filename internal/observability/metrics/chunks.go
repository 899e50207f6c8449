package metrics

import (
	"time"

	obserrors "github.com/quorumworks/tallyd/internal/observability/errors"
	"github.com/quorumworks/tallyd/internal/observability/statsd"
)

// Chunk outcome tags beyond the persisted audit outcomes.
const (
	OutcomeRetried = "retried"
	OutcomePoison  = "poison"
)

// ChunkMetric captures one chunk processing attempt for metric emission.
type ChunkMetric struct {
	Operation string
	Outcome   string
	Duration  time.Duration
	Err       error
}

// EmitChunkProcessed emits standardised per-attempt chunk metrics.
func EmitChunkProcessed(sink statsd.Sink, in ChunkMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"operation": in.Operation,
		"outcome":   in.Outcome,
	}

	if in.Err != nil {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("chunk.processed", 1, tags)

	if in.Duration > 0 {
		sink.Timing("chunk.duration", in.Duration, CloneTags(tags))
	}
}

// Package trace records every pipeline stage transition in an
// append-only audit trail keyed by request ID. The ordered sequence of
// records for one request reconstructs the exact path the orchestrator
// took, with no gaps.
package trace

import (
	"context"
	"sync"
	"time"

	"github.com/scanforge/scanforge/internal/types"
)

// Record is one entry of a request's audit trail. Records are append
// only and never rewritten.
type Record struct {
	RequestID     types.ID      `json:"request_id" db:"request_id"`
	Seq           int64         `json:"seq" db:"seq"`
	Stage         string        `json:"stage" db:"stage"`
	InputSummary  string        `json:"input_summary" db:"input_summary"`
	OutputSummary string        `json:"output_summary" db:"output_summary"`
	Timestamp     time.Time     `json:"timestamp" db:"timestamp"`
	Duration      time.Duration `json:"duration" db:"duration"`
}

// Recorder is the trace sink contract: ordered appends per request and
// query by request ID for audit replay.
//
// Appends for different request IDs may happen concurrently; the
// records of one request ID are strictly ordered by Seq.
type Recorder interface {
	Append(ctx context.Context, record Record) error
	ByRequest(ctx context.Context, requestID types.ID) ([]Record, error)
}

// MemoryRecorder is the in-process Recorder used by default and in
// tests. Sequence numbers are assigned on append under a per-recorder
// lock, so concurrent pipelines interleave freely while each request's
// sequence stays gapless.
type MemoryRecorder struct {
	mu      sync.RWMutex
	records map[types.ID][]Record
}

// NewMemoryRecorder creates an empty MemoryRecorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{
		records: make(map[types.ID][]Record),
	}
}

// Append adds a record to its request's trail, assigning the next
// sequence number.
func (r *MemoryRecorder) Append(_ context.Context, record Record) error {
	if err := record.RequestID.Validate(); err != nil {
		return types.WrapError(types.TRACE_WRITE_FAILED, "trace record without request id", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record.Seq = int64(len(r.records[record.RequestID]) + 1)
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	r.records[record.RequestID] = append(r.records[record.RequestID], record)
	return nil
}

// ByRequest returns the ordered trail for a request ID. The returned
// slice is a copy.
func (r *MemoryRecorder) ByRequest(_ context.Context, requestID types.ID) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	trail := r.records[requestID]
	out := make([]Record, len(trail))
	copy(out, trail)
	return out, nil
}

var _ Recorder = (*MemoryRecorder)(nil)

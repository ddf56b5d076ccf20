package trace

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanforge/scanforge/internal/types"
)

// TestMemoryRecorderOrdering verifies appends for one request get
// strictly increasing, gapless sequence numbers.
func TestMemoryRecorderOrdering(t *testing.T) {
	rec := NewMemoryRecorder()
	requestID := types.NewID()

	for i := 0; i < 5; i++ {
		err := rec.Append(context.Background(), Record{
			RequestID: requestID,
			Stage:     fmt.Sprintf("stage-%d", i),
		})
		require.NoError(t, err)
	}

	trail, err := rec.ByRequest(context.Background(), requestID)
	require.NoError(t, err)
	require.Len(t, trail, 5)
	for i, record := range trail {
		assert.Equal(t, int64(i+1), record.Seq, "sequence must be gapless")
		assert.Equal(t, fmt.Sprintf("stage-%d", i), record.Stage, "order must match append order")
	}
}

// TestMemoryRecorderConcurrentRequests verifies concurrent appends for
// different requests keep each trail independently ordered.
func TestMemoryRecorderConcurrentRequests(t *testing.T) {
	rec := NewMemoryRecorder()

	const requests = 8
	const perRequest = 50

	ids := make([]types.ID, requests)
	for i := range ids {
		ids[i] = types.NewID()
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(requestID types.ID) {
			defer wg.Done()
			for i := 0; i < perRequest; i++ {
				_ = rec.Append(context.Background(), Record{RequestID: requestID, Stage: "stage"})
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		trail, err := rec.ByRequest(context.Background(), id)
		require.NoError(t, err)
		require.Len(t, trail, perRequest)
		for i, record := range trail {
			assert.Equal(t, int64(i+1), record.Seq, "request %s must keep a gapless sequence", id)
		}
	}
}

// TestMemoryRecorderRejectsMissingRequestID verifies a record without a
// request ID is refused.
func TestMemoryRecorderRejectsMissingRequestID(t *testing.T) {
	rec := NewMemoryRecorder()
	err := rec.Append(context.Background(), Record{Stage: "classify"})
	require.Error(t, err)
	assert.Equal(t, types.TRACE_WRITE_FAILED, types.CodeOf(err))
}

// TestMemoryRecorderReturnsCopy verifies mutating the returned trail does
// not corrupt the stored records.
func TestMemoryRecorderReturnsCopy(t *testing.T) {
	rec := NewMemoryRecorder()
	requestID := types.NewID()
	require.NoError(t, rec.Append(context.Background(), Record{RequestID: requestID, Stage: "classify"}))

	trail, err := rec.ByRequest(context.Background(), requestID)
	require.NoError(t, err)
	trail[0].Stage = "tampered"

	again, err := rec.ByRequest(context.Background(), requestID)
	require.NoError(t, err)
	assert.Equal(t, "classify", again[0].Stage)
}

// TestStatsCounters verifies the aggregate counters and the derived
// no-regeneration rate.
func TestStatsCounters(t *testing.T) {
	stats := NewStats()
	assert.Zero(t, stats.NoRegenerationRate(), "empty stats report zero")

	stats.RecordSession(true, true)   // autonomous
	stats.RecordSession(true, false)  // iterative
	stats.RecordSession(false, false) // failed
	stats.RecordSession(true, true)   // autonomous

	snap := stats.Snapshot()
	assert.Equal(t, int64(4), snap.TotalSessions)
	assert.Equal(t, int64(2), snap.AutonomousRepairs)
	assert.Equal(t, int64(1), snap.IterativeRepairs)
	assert.Equal(t, int64(1), snap.FailedRepairs)
	assert.InDelta(t, 0.75, stats.NoRegenerationRate(), 0.001)
}

// TestStatsConcurrentRecording verifies counters stay consistent under
// concurrent sessions.
func TestStatsConcurrentRecording(t *testing.T) {
	stats := NewStats()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stats.RecordSession(i%2 == 0, i%4 == 0)
		}(i)
	}
	wg.Wait()

	snap := stats.Snapshot()
	assert.Equal(t, int64(100), snap.TotalSessions)
	assert.Equal(t, snap.TotalSessions,
		snap.AutonomousRepairs+snap.IterativeRepairs+snap.FailedRepairs,
		"every session lands in exactly one bucket")
}

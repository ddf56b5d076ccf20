package trace

import "sync/atomic"

// Stats holds the aggregate repair counters shared by concurrent
// pipeline runs. All increments are atomic; no other cross-request
// synchronization exists because runs are otherwise independent.
type Stats struct {
	totalSessions     atomic.Int64
	autonomousRepairs atomic.Int64
	iterativeRepairs  atomic.Int64
	failedRepairs     atomic.Int64
}

// NewStats creates zeroed counters.
func NewStats() *Stats {
	return &Stats{}
}

// RecordSession counts one finished repair session.
func (s *Stats) RecordSession(success, autonomous bool) {
	s.totalSessions.Add(1)
	switch {
	case success && autonomous:
		s.autonomousRepairs.Add(1)
	case success:
		s.iterativeRepairs.Add(1)
	default:
		s.failedRepairs.Add(1)
	}
}

// Snapshot is a read-only view of the counters at one instant.
type Snapshot struct {
	TotalSessions     int64 `json:"total_sessions"`
	AutonomousRepairs int64 `json:"autonomous_repairs"`
	IterativeRepairs  int64 `json:"iterative_repairs"`
	FailedRepairs     int64 `json:"failed_repairs"`
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		TotalSessions:     s.totalSessions.Load(),
		AutonomousRepairs: s.autonomousRepairs.Load(),
		IterativeRepairs:  s.iterativeRepairs.Load(),
		FailedRepairs:     s.failedRepairs.Load(),
	}
}

// NoRegenerationRate is the share of sessions resolved without upstream
// regeneration. Returns 0 when no session has finished.
func (s *Stats) NoRegenerationRate() float64 {
	total := s.totalSessions.Load()
	if total == 0 {
		return 0
	}
	resolved := s.autonomousRepairs.Load() + s.iterativeRepairs.Load()
	return float64(resolved) / float64(total)
}

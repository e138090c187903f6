// Package memory provides the shared learning state of the routing core:
// per-expert rolling load and success statistics consumed by the router,
// predictor, and supervisor, plus persistent decision history.
// Nothing in this package is ambient global state; every component receives
// its memory handle explicitly at construction.
package memory

import "time"

// DecisionRecord is the persisted form of a finalized routing decision.
// Records are appended to a JSONL history file for post-hoc analysis and
// the statistics surface.
type DecisionRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	QueryID    string    `json:"query_id"`
	QueryHash  string    `json:"query_hash"`
	Domains    []string  `json:"domains"`
	Complexity float64   `json:"complexity"`

	// Routing
	Type      string   `json:"type"` // SINGLE or MULTI
	Experts   []string `json:"experts"`
	Corrected bool     `json:"corrected"`
	Reasoning string   `json:"reasoning"`

	// Prediction
	ExpectedPerformance float64 `json:"expected_performance"`
	SuccessProbability  float64 `json:"success_probability"`
	SimulationsRun      int     `json:"simulations_run"`

	// Timings
	TotalLatencyMicros int64 `json:"total_latency_us"`

	// Outcome, filled in when the backend call completes.
	Outcome *OutcomeInfo `json:"outcome,omitempty"`
}

// OutcomeInfo captures what actually happened after dispatch.
type OutcomeInfo struct {
	Success        bool    `json:"success"`
	ResponseTimeMs int64   `json:"response_time_ms"`
	Error          string  `json:"error,omitempty"`
	QualityScore   float64 `json:"quality_score"`
}

// ExpertSnapshot is a read-only view of one expert's rolling statistics.
type ExpertSnapshot struct {
	LoadCount   int64   `json:"load_count"`
	Successes   int64   `json:"successes"`
	Failures    int64   `json:"failures"`
	SuccessRate float64 `json:"success_rate"`
	HasRate     bool    `json:"has_rate"`
}

// Snapshot is a consistent point-in-time view of the whole performance
// memory, suitable for pure decision review.
type Snapshot struct {
	Experts map[string]ExpertSnapshot `json:"experts"`
	AvgLoad float64                   `json:"avg_load"`
}

// SuccessRateOr returns the rolling success rate for an expert, or the given
// baseline when no outcome has been observed yet.
func (s *Snapshot) SuccessRateOr(expertID string, baseline float64) float64 {
	if es, ok := s.Experts[expertID]; ok && es.HasRate {
		return es.SuccessRate
	}
	return baseline
}

// Load returns the recent load count for an expert, or zero if unseen.
func (s *Snapshot) Load(expertID string) int64 {
	return s.Experts[expertID].LoadCount
}

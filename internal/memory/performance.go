package memory

import "sync"

// expertStats holds the mutable rolling counters for one expert.
// Access is guarded by the owning PerformanceMemory mutex.
type expertStats struct {
	loadCount   int64
	successes   int64
	failures    int64
	successRate float64
	hasRate     bool
}

// PerformanceMemory tracks per-expert load and an exponentially weighted
// rolling success rate. The router reads it for load balancing, the predictor
// for success-rate priors, and the supervisor writes outcome updates into it.
//
// Counters live for the process lifetime; Reset is the only way to clear them.
type PerformanceMemory struct {
	mu    sync.RWMutex
	alpha float64
	stats map[string]*expertStats
}

// NewPerformanceMemory creates an empty performance memory.
// alpha is the EWMA weight of the most recent outcome; values outside (0,1]
// fall back to 0.3.
func NewPerformanceMemory(alpha float64) *PerformanceMemory {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.3
	}
	return &PerformanceMemory{
		alpha: alpha,
		stats: make(map[string]*expertStats),
	}
}

func (pm *PerformanceMemory) statsFor(expertID string) *expertStats {
	es, ok := pm.stats[expertID]
	if !ok {
		es = &expertStats{}
		pm.stats[expertID] = es
	}
	return es
}

// CommitSelection increments the load counters for every expert in a
// finalized decision. It is called once per query, after supervisor review,
// so an abandoned query never leaves a stray increment behind.
func (pm *PerformanceMemory) CommitSelection(expertIDs []string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	for _, id := range expertIDs {
		pm.statsFor(id).loadCount++
	}
}

// ReleaseSelection compensates a prior CommitSelection, for callers that
// commit eagerly and then abandon the query before dispatch.
func (pm *PerformanceMemory) ReleaseSelection(expertIDs []string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	for _, id := range expertIDs {
		es := pm.statsFor(id)
		if es.loadCount > 0 {
			es.loadCount--
		}
	}
}

// RecordOutcome folds an observed (or predicted) outcome score in [0,1] into
// the expert's rolling success rate. Recent outcomes dominate older history.
func (pm *PerformanceMemory) RecordOutcome(expertID string, score float64) {
	if score < 0 {
		score = 0
	} else if score > 1 {
		score = 1
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	es := pm.statsFor(expertID)
	if es.hasRate {
		es.successRate = pm.alpha*score + (1-pm.alpha)*es.successRate
	} else {
		es.successRate = score
		es.hasRate = true
	}
	if score >= 0.5 {
		es.successes++
	} else {
		es.failures++
	}
}

// SuccessRateOr returns the rolling success rate for an expert, or the given
// baseline if no outcome has been recorded yet.
func (pm *PerformanceMemory) SuccessRateOr(expertID string, baseline float64) float64 {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	if es, ok := pm.stats[expertID]; ok && es.hasRate {
		return es.successRate
	}
	return baseline
}

// Load returns the recent load count for an expert.
func (pm *PerformanceMemory) Load(expertID string) int64 {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	if es, ok := pm.stats[expertID]; ok {
		return es.loadCount
	}
	return 0
}

// AvgLoad returns the mean load count across all experts seen so far.
func (pm *PerformanceMemory) AvgLoad() float64 {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	if len(pm.stats) == 0 {
		return 0
	}
	var total int64
	for _, es := range pm.stats {
		total += es.loadCount
	}
	return float64(total) / float64(len(pm.stats))
}

// GetSnapshot returns a consistent copy of the current state.
func (pm *PerformanceMemory) GetSnapshot() *Snapshot {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	snap := &Snapshot{Experts: make(map[string]ExpertSnapshot, len(pm.stats))}
	var total int64
	for id, es := range pm.stats {
		snap.Experts[id] = ExpertSnapshot{
			LoadCount:   es.loadCount,
			Successes:   es.successes,
			Failures:    es.failures,
			SuccessRate: es.successRate,
			HasRate:     es.hasRate,
		}
		total += es.loadCount
	}
	if len(pm.stats) > 0 {
		snap.AvgLoad = float64(total) / float64(len(pm.stats))
	}
	return snap
}

// Reset clears all counters. Intended for process restart semantics in tests.
func (pm *PerformanceMemory) Reset() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.stats = make(map[string]*expertStats)
}

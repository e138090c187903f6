// Copyright 2026 The Hyperion Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package supervisor validates routing decisions against learned expert
// performance and feeds observed outcomes back into performance memory.
// It is the only feedback edge in the pipeline: the router and predictor
// see its updates on subsequent queries, never within the same one.
package supervisor

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/hyperionlabs/hyperion/internal/config"
	"github.com/hyperionlabs/hyperion/internal/memory"
	"github.com/hyperionlabs/hyperion/internal/predictor"
	"github.com/hyperionlabs/hyperion/internal/registry"
	"github.com/hyperionlabs/hyperion/internal/router"
)

// Supervisor reviews decisions and records outcomes.
type Supervisor struct {
	cfg      config.SupervisorConfig
	registry *registry.ExpertRegistry
	memory   *memory.PerformanceMemory
}

// New creates a supervisor over the registry and performance memory.
func New(cfg config.SupervisorConfig, reg *registry.ExpertRegistry, mem *memory.PerformanceMemory) *Supervisor {
	return &Supervisor{cfg: cfg, registry: reg, memory: mem}
}

// Review validates a decision against the current memory snapshot and
// returns it, corrected at most once. It never fails; a conflict is
// resolved internally and annotated on the decision's reasoning trace.
func (s *Supervisor) Review(decision *router.Decision) *router.Decision {
	return ReviewWithSnapshot(decision, s.memory.GetSnapshot(), s.cfg.SuccessRateFloor)
}

// ReviewWithSnapshot is the pure correction transform: given a decision and
// a consistent memory snapshot, it either passes the decision through or
// reroutes a SINGLE decision whose expert has a materially degraded rolling
// success rate. Exactly one correction pass, no reroute loops.
func ReviewWithSnapshot(decision *router.Decision, snap *memory.Snapshot, floor float64) *router.Decision {
	if decision == nil || decision.Corrected || decision.Type != router.DecisionSingle {
		return decision
	}
	if len(decision.Experts) == 0 {
		return decision
	}

	current := decision.Experts[0]
	stats, ok := snap.Experts[current]
	if !ok || !stats.HasRate || stats.SuccessRate >= floor {
		return decision
	}

	replacement := nextViableCandidate(decision, snap, floor, current)
	if replacement == "" {
		// No better-standing alternative; annotate and let it stand.
		decision.Reasoning += fmt.Sprintf("; supervisor: %s rolling success rate %.2f is below floor %.2f but no alternate candidate exists",
			current, stats.SuccessRate, floor)
		log.Warnf("Supervisor conflict on %s (rate %.2f < %.2f) with no viable alternate", current, stats.SuccessRate, floor)
		return decision
	}

	reason := fmt.Sprintf("rerouted from %s (rolling success rate %.2f below floor %.2f) to %s",
		current, stats.SuccessRate, floor, replacement)
	decision.Experts = []string{replacement}
	decision.Corrected = true
	decision.CorrectionReason = reason
	decision.Reasoning += "; supervisor: " + reason
	log.Infof("Supervisor corrected decision: %s", reason)
	return decision
}

// nextViableCandidate walks the router's ranked candidate list for the
// first expert that is not the degraded one and is not itself below floor.
func nextViableCandidate(decision *router.Decision, snap *memory.Snapshot, floor float64, skip string) string {
	for _, id := range decision.Candidates {
		if id == skip {
			continue
		}
		if stats, ok := snap.Experts[id]; ok && stats.HasRate && stats.SuccessRate < floor {
			continue
		}
		return id
	}
	return ""
}

// Observe folds the query's outcome into each decision expert's rolling
// success rate. When no actual outcome is supplied, the predicted per-expert
// success probability stands in for it.
func (s *Supervisor) Observe(decision *router.Decision, prediction *predictor.Prediction, actual *memory.OutcomeInfo) {
	if decision == nil {
		return
	}

	for _, id := range decision.Experts {
		score, ok := outcomeScore(id, prediction, actual)
		if !ok {
			continue
		}
		s.memory.RecordOutcome(id, score)
	}
}

// outcomeScore picks the feedback signal for one expert: actual quality
// when reported, actual success as a binary signal otherwise, and the
// predicted success probability when nothing was observed.
func outcomeScore(id string, prediction *predictor.Prediction, actual *memory.OutcomeInfo) (float64, bool) {
	if actual != nil {
		if actual.QualityScore > 0 {
			return actual.QualityScore, true
		}
		if actual.Success {
			return 1.0, true
		}
		return 0.0, true
	}
	if prediction != nil {
		if est, ok := prediction.PerExpert[id]; ok {
			return est.SuccessProbability, true
		}
	}
	return 0, false
}

// Copyright 2026 The Hyperion Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pipeline orchestrates the four routing stages for one query:
// classify, route, predict, review. Stages run strictly in order; many
// queries run the pipeline concurrently over the same shared state.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/hyperionlabs/hyperion/internal/classifier"
	"github.com/hyperionlabs/hyperion/internal/hooks"
	"github.com/hyperionlabs/hyperion/internal/memory"
	"github.com/hyperionlabs/hyperion/internal/predictor"
	"github.com/hyperionlabs/hyperion/internal/registry"
	"github.com/hyperionlabs/hyperion/internal/router"
	"github.com/hyperionlabs/hyperion/internal/steering"
	"github.com/hyperionlabs/hyperion/internal/supervisor"
)

// StageTimings exposes per-stage latency in microseconds.
type StageTimings struct {
	ClassifyMicros int64 `json:"classify_us"`
	RouteMicros    int64 `json:"route_us"`
	PredictMicros  int64 `json:"predict_us"`
	ReviewMicros   int64 `json:"review_us"`
	TotalMicros    int64 `json:"total_us"`
}

// Outcome is the full result of processing one query through the pipeline.
type Outcome struct {
	QueryID        string                `json:"query_id"`
	Classification *classifier.Result    `json:"classification"`
	Decision       *router.Decision      `json:"decision"`
	Prediction     *predictor.Prediction `json:"prediction,omitempty"`
	// PredictionError carries the reason when the decision is usable but
	// unscored; the caller decides whether to proceed.
	PredictionError string       `json:"prediction_error,omitempty"`
	Reasoning       string       `json:"reasoning"`
	Timings         StageTimings `json:"timings"`
}

// Pipeline wires the stages over shared state. All fields are set at
// construction and never change; the shared structures carry their own locks.
type Pipeline struct {
	classifier *classifier.Classifier
	steering   *steering.Engine
	router     *router.Router
	predictor  *predictor.Engine
	supervisor *supervisor.Supervisor
	memory     *memory.PerformanceMemory
	registry   *registry.ExpertRegistry
	history    *memory.HistoryStore
	bus        *hooks.EventBus

	// seedFn derives the prediction seed for a query; replaced in tests
	// for reproducible runs.
	seedFn func(queryID string) int64

	queriesRouted  atomic.Int64
	multiDecisions atomic.Int64
	corrections    atomic.Int64
}

// Options carries the optional collaborators.
type Options struct {
	Steering *steering.Engine
	History  *memory.HistoryStore
	Bus      *hooks.EventBus
	SeedFn   func(queryID string) int64
}

// New assembles a pipeline. Steering, history, and the event bus are
// optional; a nil entry disables that concern.
func New(
	cl *classifier.Classifier,
	rt *router.Router,
	pr *predictor.Engine,
	sv *supervisor.Supervisor,
	mem *memory.PerformanceMemory,
	reg *registry.ExpertRegistry,
	opts Options,
) *Pipeline {
	seedFn := opts.SeedFn
	if seedFn == nil {
		seedFn = func(string) int64 { return time.Now().UnixNano() }
	}
	return &Pipeline{
		classifier: cl,
		steering:   opts.Steering,
		router:     rt,
		predictor:  pr,
		supervisor: sv,
		memory:     mem,
		registry:   reg,
		history:    opts.History,
		bus:        opts.Bus,
		seedFn:     seedFn,
	}
}

// Process runs one query through all four stages. Load counters are
// committed only after the supervisor has finalized the decision, so a
// context cancelled mid-pipeline leaves shared state untouched.
func (p *Pipeline) Process(ctx context.Context, queryText string) (*Outcome, error) {
	queryID := uuid.New().String()
	start := time.Now()

	p.emit(hooks.EventQueryReceived, queryID, map[string]interface{}{
		"query_length": len(queryText),
	})

	classifyStart := time.Now()
	classification := p.classifier.Classify(queryText)
	classifyMicros := time.Since(classifyStart).Microseconds()

	p.emit(hooks.EventQueryClassified, queryID, map[string]interface{}{
		"domains":    classification.Domains,
		"complexity": classification.Complexity,
		"cached":     classification.Cached,
	})

	directives := p.steeringDirectives(queryText, classification)

	routeStart := time.Now()
	decision, err := p.router.Route(classification.Domains, classification.Complexity, directives)
	routeMicros := time.Since(routeStart).Microseconds()
	if err != nil {
		log.Warnf("[%s] Routing failed: %v", queryID, err)
		return nil, err
	}

	predictStart := time.Now()
	prediction, predictionErr := p.predictor.Predict(decision, classification.Complexity, p.seedFn(queryID))
	predictMicros := time.Since(predictStart).Microseconds()
	if predictionErr != nil {
		log.Warnf("[%s] Prediction failed, decision proceeds unscored: %v", queryID, predictionErr)
	} else {
		p.emit(hooks.EventPredictionCompleted, queryID, map[string]interface{}{
			"expected_performance": prediction.ExpectedPerformance,
			"success_probability":  prediction.SuccessProbability,
			"simulations_run":      prediction.SimulationsRun,
			"converged":            prediction.Converged,
		})
	}

	reviewStart := time.Now()
	decision = p.supervisor.Review(decision)
	reviewMicros := time.Since(reviewStart).Microseconds()
	if decision.Corrected {
		p.corrections.Add(1)
		p.emit(hooks.EventDecisionCorrected, queryID, map[string]interface{}{
			"experts": decision.Experts,
			"reason":  decision.CorrectionReason,
		})
	}

	// The decision is final; an abandoned query must not touch load state.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	p.memory.CommitSelection(decision.Experts)
	p.queriesRouted.Add(1)
	if decision.Type == router.DecisionMulti {
		p.multiDecisions.Add(1)
	}

	// The predicted outcome stands in as feedback until a real outcome is
	// reported; a later report folds into the same rolling rate.
	if predictionErr == nil {
		p.supervisor.Observe(decision, prediction, nil)
	}

	p.emit(hooks.EventRoutingDecision, queryID, map[string]interface{}{
		"type":      string(decision.Type),
		"experts":   decision.Experts,
		"corrected": decision.Corrected,
	})

	outcome := &Outcome{
		QueryID:        queryID,
		Classification: classification,
		Decision:       decision,
		Prediction:     prediction,
		Reasoning:      decision.Reasoning,
		Timings: StageTimings{
			ClassifyMicros: classifyMicros,
			RouteMicros:    routeMicros,
			PredictMicros:  predictMicros,
			ReviewMicros:   reviewMicros,
			TotalMicros:    time.Since(start).Microseconds(),
		},
	}
	if predictionErr != nil {
		outcome.PredictionError = predictionErr.Error()
	}

	p.recordHistory(queryText, outcome)
	return outcome, nil
}

// Observe reports a query's outcome back through the supervisor and emits
// the observation event. actual may be nil to fall back on the prediction.
func (p *Pipeline) Observe(outcome *Outcome, actual *memory.OutcomeInfo) {
	if outcome == nil {
		return
	}
	p.supervisor.Observe(outcome.Decision, outcome.Prediction, actual)

	data := map[string]interface{}{"experts": outcome.Decision.Experts}
	if actual != nil {
		data["success"] = actual.Success
		data["quality_score"] = actual.QualityScore
	}
	p.emit(hooks.EventOutcomeObserved, outcome.QueryID, data)
}

// Stats is the read-only operational snapshot served by the stats endpoint.
type Stats struct {
	CacheHitRate float64                          `json:"cache_hit_rate"`
	CacheSize    int                              `json:"cache_size"`
	Experts      map[string]memory.ExpertSnapshot `json:"experts"`
	AvgLoad      float64                          `json:"avg_load"`
	ExpertCount  int                              `json:"expert_count"`
	Domains      []string                         `json:"domains"`
	HistoryCount int                              `json:"history_count,omitempty"`

	QueriesRouted int64   `json:"queries_routed"`
	MultiRate     float64 `json:"multi_expert_rate"`
	Corrections   int64   `json:"corrections"`
}

// Stats assembles the current operational snapshot.
func (p *Pipeline) Stats() *Stats {
	snap := p.memory.GetSnapshot()
	stats := &Stats{
		CacheHitRate: p.classifier.CacheHitRate(),
		CacheSize:    p.classifier.CacheMetrics().Size,
		Experts:      snap.Experts,
		AvgLoad:      snap.AvgLoad,
		ExpertCount:  p.registry.Count(),
		Domains:      p.registry.Domains(),
	}
	stats.QueriesRouted = p.queriesRouted.Load()
	stats.Corrections = p.corrections.Load()
	if stats.QueriesRouted > 0 {
		stats.MultiRate = float64(p.multiDecisions.Load()) / float64(stats.QueriesRouted)
	}
	if p.history != nil {
		if n, err := p.history.Count(); err == nil {
			stats.HistoryCount = n
		}
	}
	return stats
}

// ResetMemory clears all rolling performance counters. Exposed through the
// management API for operational resets.
func (p *Pipeline) ResetMemory() {
	p.memory.Reset()
}

// steeringDirectives evaluates the steering rules for a classified query.
func (p *Pipeline) steeringDirectives(queryText string, c *classifier.Result) *steering.Directives {
	if p.steering == nil {
		return nil
	}

	now := time.Now()
	primary := ""
	if len(c.Domains) > 0 {
		primary = c.Domains[0]
	}
	rctx := &steering.RoutingContext{
		PrimaryDomain: primary,
		Domains:       c.Domains,
		Complexity:    c.Complexity,
		QueryLength:   len(queryText),
		Hour:          now.Hour(),
		DayOfWeek:     now.Weekday().String(),
		Timestamp:     now,
	}

	rules, err := p.steering.FindMatchingRules(rctx)
	if err != nil {
		log.Warnf("Steering evaluation failed, routing without directives: %v", err)
		return nil
	}
	return p.steering.Apply(rctx, rules)
}

// recordHistory appends the decision to the JSONL history, when enabled.
func (p *Pipeline) recordHistory(queryText string, o *Outcome) {
	if p.history == nil {
		return
	}

	record := &memory.DecisionRecord{
		Timestamp:  time.Now(),
		QueryID:    o.QueryID,
		QueryHash:  hashQuery(queryText),
		Domains:    o.Classification.Domains,
		Complexity: o.Classification.Complexity,
		Type:       string(o.Decision.Type),
		Experts:    o.Decision.Experts,
		Corrected:  o.Decision.Corrected,
		Reasoning:  o.Reasoning,
	}
	if o.Prediction != nil {
		record.ExpectedPerformance = o.Prediction.ExpectedPerformance
		record.SuccessProbability = o.Prediction.SuccessProbability
		record.SimulationsRun = o.Prediction.SimulationsRun
	}
	record.TotalLatencyMicros = o.Timings.TotalMicros

	if err := p.history.Record(record); err != nil {
		log.Warnf("Failed to record decision history for %s: %v", o.QueryID, err)
	}
}

func (p *Pipeline) emit(event hooks.HookEvent, queryID string, data map[string]interface{}) {
	if p.bus != nil {
		p.bus.Emit(event, queryID, data)
	}
}

// hashQuery stores a stable digest instead of raw query text, so history
// files never retain user content.
func hashQuery(queryText string) string {
	sum := sha256.Sum256([]byte(classifier.NormalizeKey(queryText)))
	return hex.EncodeToString(sum[:8])
}

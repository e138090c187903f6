// Copyright 2026 The Hyperion Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package predictor estimates how well a routing decision will perform
// before the query is dispatched. It runs seedable Monte Carlo trials per
// selected expert with adaptive early stopping, so easy cases exit at the
// simulation floor while ambiguous ones earn more trials up to the cap.
package predictor

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/hyperionlabs/hyperion/internal/config"
	"github.com/hyperionlabs/hyperion/internal/memory"
	"github.com/hyperionlabs/hyperion/internal/registry"
	"github.com/hyperionlabs/hyperion/internal/router"
)

// ErrPrediction reports that no valid trial could be run for a decision.
// The decision itself is still usable; the caller decides whether to
// proceed unscored.
var ErrPrediction = errors.New("prediction failed")

// zScore is the normal quantile for the 95% confidence half-width.
const zScore = 1.96

// ExpertEstimate is the per-expert breakdown attached to a prediction.
type ExpertEstimate struct {
	SuccessProbability  float64 `json:"success_probability"`
	ExpectedPerformance float64 `json:"expected_performance"`
	Weight              float64 `json:"weight"`
}

// Prediction is the immutable result of simulating one decision.
type Prediction struct {
	ExpectedPerformance float64 `json:"expected_performance"`
	SuccessProbability  float64 `json:"success_probability"`
	SimulationsRun      int     `json:"simulations_run"`
	Converged           bool    `json:"converged"`
	// HalfWidth is the tightest 95% confidence half-width reached during
	// sampling. Running more trials can only tighten it, never widen it.
	HalfWidth float64                   `json:"half_width"`
	Seed      int64                     `json:"seed"`
	PerExpert map[string]ExpertEstimate `json:"per_expert"`
}

// Engine runs the Monte Carlo simulations.
type Engine struct {
	cfg      config.PredictorConfig
	registry *registry.ExpertRegistry
	memory   *memory.PerformanceMemory
}

// New creates a prediction engine over the registry and performance memory.
func New(cfg config.PredictorConfig, reg *registry.ExpertRegistry, mem *memory.PerformanceMemory) *Engine {
	return &Engine{cfg: cfg, registry: reg, memory: mem}
}

// trialModel holds the resolved per-expert sampling parameters.
type trialModel struct {
	id          string
	successProb float64
	weight      float64
	quality     float64
}

// Predict simulates the decision at the given complexity. Identical
// (decision, complexity, seed) inputs reproduce identical predictions.
func (e *Engine) Predict(decision *router.Decision, complexity float64, seed int64) (*Prediction, error) {
	if decision == nil || len(decision.Experts) == 0 {
		return nil, fmt.Errorf("%w: decision selects no experts", ErrPrediction)
	}

	models := make([]trialModel, 0, len(decision.Experts))
	for _, id := range decision.Experts {
		expert := e.registry.Get(id)
		if expert == nil {
			continue
		}
		models = append(models, e.modelFor(expert, complexity))
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("%w: no decision expert is known to the registry", ErrPrediction)
	}

	var weightSum float64
	for _, m := range models {
		weightSum += m.weight
	}

	rng := rand.New(rand.NewSource(seed))

	var sum, sumSq float64
	successCounts := make([]int, len(models))
	perfSums := make([]float64, len(models))
	n := 0
	halfWidth := math.Inf(1)
	converged := false

	for n < e.cfg.MaxSimulations {
		batch := e.cfg.BatchSize
		if n+batch > e.cfg.MaxSimulations {
			batch = e.cfg.MaxSimulations - n
		}

		for t := 0; t < batch; t++ {
			var weighted float64
			for i, m := range models {
				if rng.Float64() < m.successProb {
					perf := m.quality * (0.85 + 0.15*rng.Float64())
					successCounts[i]++
					perfSums[i] += perf
					weighted += m.weight * perf
				}
			}
			sample := weighted / weightSum
			sum += sample
			sumSq += sample * sample
		}
		n += batch

		if n < e.cfg.MinSimulations {
			continue
		}

		if hw := confidenceHalfWidth(sum, sumSq, n); hw < halfWidth {
			halfWidth = hw
		}
		if halfWidth <= e.cfg.ConvergenceEpsilon {
			converged = true
			break
		}
	}

	if math.IsInf(halfWidth, 1) {
		halfWidth = confidenceHalfWidth(sum, sumSq, n)
		if math.IsInf(halfWidth, 1) {
			halfWidth = 1
		}
	}

	perExpert := make(map[string]ExpertEstimate, len(models))
	var aggSuccess, aggPerf float64
	for i, m := range models {
		est := ExpertEstimate{
			SuccessProbability: float64(successCounts[i]) / float64(n),
			Weight:             m.weight / weightSum,
		}
		if successCounts[i] > 0 {
			est.ExpectedPerformance = perfSums[i] / float64(successCounts[i])
		}
		perExpert[m.id] = est
		aggSuccess += est.Weight * est.SuccessProbability
		aggPerf += est.Weight * est.SuccessProbability * est.ExpectedPerformance
	}

	return &Prediction{
		ExpectedPerformance: aggPerf,
		SuccessProbability:  aggSuccess,
		SimulationsRun:      n,
		Converged:           converged,
		HalfWidth:           halfWidth,
		Seed:                seed,
		PerExpert:           perExpert,
	}, nil
}

// modelFor derives sampling parameters for one expert: the memory-adjusted
// success rate discounted by complexity and computational cost.
func (e *Engine) modelFor(expert *registry.Expert, complexity float64) trialModel {
	base := e.memory.SuccessRateOr(expert.ID, expert.SuccessRate)

	successProb := base * (1 - 0.3*complexity) * expert.Availability
	if expert.ComputationalCost > 1 {
		successProb /= 1 + 0.05*(expert.ComputationalCost-1)
	}
	successProb = clamp(successProb, 0.01, 0.99)

	quality := clamp(0.5+0.5*expert.SpecializationScore-0.2*complexity, 0.1, 1.0)

	weight := expert.SpecializationScore
	if weight <= 0 {
		weight = 0.01
	}

	return trialModel{
		id:          expert.ID,
		successProb: successProb,
		weight:      weight,
		quality:     quality,
	}
}

// confidenceHalfWidth computes the 95% half-width of the running mean.
func confidenceHalfWidth(sum, sumSq float64, n int) float64 {
	if n < 2 {
		return math.Inf(1)
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return zScore * math.Sqrt(variance/float64(n))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Copyright 2026 The Hyperion Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package router selects experts for classified queries. Scoring folds the
// live load distribution into every ranking so selection stays balanced
// across equally capable experts instead of pinning to the top specialist.
package router

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/hyperionlabs/hyperion/internal/config"
	"github.com/hyperionlabs/hyperion/internal/memory"
	"github.com/hyperionlabs/hyperion/internal/registry"
	"github.com/hyperionlabs/hyperion/internal/steering"
)

// ErrNoExpertAvailable reports that routing cannot produce a decision.
// The caller must degrade (queue, reject, or retry); the router never
// retries internally and leaves performance memory untouched on this path.
var ErrNoExpertAvailable = errors.New("no expert available")

// DecisionType distinguishes one-expert from multi-expert routing.
type DecisionType string

const (
	DecisionSingle DecisionType = "SINGLE"
	DecisionMulti  DecisionType = "MULTI"
)

// Decision is the routing outcome for one query. The supervisor may correct
// it exactly once; after that it is frozen.
type Decision struct {
	Type    DecisionType `json:"type"`
	Experts []string     `json:"experts"`
	// Candidates is the full ranked candidate list the selection was drawn
	// from; the supervisor reroutes along it when correcting.
	Candidates []string `json:"-"`
	Domains    []string `json:"domains"`
	Reasoning  string   `json:"reasoning"`

	Corrected        bool   `json:"corrected"`
	CorrectionReason string `json:"correction_reason,omitempty"`
}

// scoredCandidate pairs an expert with its ranking score.
type scoredCandidate struct {
	expert *registry.Expert
	score  float64
}

// Router ranks registry experts for classified queries.
type Router struct {
	cfg      config.RouterConfig
	registry *registry.ExpertRegistry
	memory   *memory.PerformanceMemory
}

// New creates a router over the given registry and performance memory.
func New(cfg config.RouterConfig, reg *registry.ExpertRegistry, mem *memory.PerformanceMemory) *Router {
	return &Router{cfg: cfg, registry: reg, memory: mem}
}

// Route produces a routing decision for the detected domains and complexity.
// Steering directives may pin or exclude experts; directives may be nil.
//
// Load counters are committed by the caller once the decision is finalized,
// so an abandoned query never leaves a stray increment behind.
func (r *Router) Route(domains []string, complexity float64, directives *steering.Directives) (*Decision, error) {
	if pinned := r.pinnedExpert(directives); pinned != nil {
		return &Decision{
			Type:       DecisionSingle,
			Experts:    []string{pinned.ID},
			Candidates: []string{pinned.ID},
			Domains:    domains,
			Reasoning:  fmt.Sprintf("pinned to %s by steering rule", pinned.ID),
		}, nil
	}

	candidates := r.rankCandidates(domains, directives)
	if len(candidates) == 0 {
		fb := r.registry.Fallback()
		if fb == nil || fb.Availability < r.cfg.OperabilityFloor || r.isExcluded(fb.ID, directives) {
			return nil, fmt.Errorf("%w for domains %s", ErrNoExpertAvailable, strings.Join(domains, ","))
		}
		log.Warnf("No specialist for domains %v, routing to fallback expert %s", domains, fb.ID)
		return &Decision{
			Type:       DecisionSingle,
			Experts:    []string{fb.ID},
			Candidates: []string{fb.ID},
			Domains:    domains,
			Reasoning:  fmt.Sprintf("no specialist for %s, using fallback expert %s", strings.Join(domains, ","), fb.ID),
		}, nil
	}

	ranked := make([]string, len(candidates))
	for i, c := range candidates {
		ranked[i] = c.expert.ID
	}

	multi := len(domains) > 1 || complexity >= r.cfg.MultiExpertThreshold
	if !multi {
		top := candidates[0]
		return &Decision{
			Type:       DecisionSingle,
			Experts:    []string{top.expert.ID},
			Candidates: ranked,
			Domains:    domains,
			Reasoning: fmt.Sprintf("single-expert routing for %s (complexity %.2f): %s scored %.3f",
				domains[0], complexity, top.expert.ID, top.score),
		}, nil
	}

	k := r.cfg.MaxExperts
	if k > len(candidates) {
		k = len(candidates)
	}
	selected := make([]string, k)
	for i := 0; i < k; i++ {
		selected[i] = candidates[i].expert.ID
	}

	decisionType := DecisionMulti
	if len(selected) == 1 {
		decisionType = DecisionSingle
	}

	return &Decision{
		Type:       decisionType,
		Experts:    selected,
		Candidates: ranked,
		Domains:    domains,
		Reasoning: fmt.Sprintf("multi-expert routing for %s (complexity %.2f): selected %s",
			strings.Join(domains, "+"), complexity, strings.Join(selected, ", ")),
	}, nil
}

// pinnedExpert resolves a steering pin to a registered, operable expert.
// Unknown or inoperable pins are ignored with a warning.
func (r *Router) pinnedExpert(directives *steering.Directives) *registry.Expert {
	if directives == nil || directives.PinnedExpert == "" {
		return nil
	}
	expert := r.registry.Get(directives.PinnedExpert)
	if expert == nil {
		log.Warnf("Steering pin references unknown expert %s, ignoring", directives.PinnedExpert)
		return nil
	}
	if expert.Availability < r.cfg.OperabilityFloor {
		log.Warnf("Steering pin %s is below the operability floor, ignoring", expert.ID)
		return nil
	}
	return expert
}

func (r *Router) isExcluded(id string, directives *steering.Directives) bool {
	return directives != nil && directives.Excluded[id]
}

// rankCandidates scores every operable expert matching the domains.
// The score combines specialization across matched domains, inverse
// computational cost, and a penalty for load above the running average.
func (r *Router) rankCandidates(domains []string, directives *steering.Directives) []scoredCandidate {
	specByExpert := make(map[string]float64)
	experts := make(map[string]*registry.Expert)

	for _, domain := range domains {
		for _, expert := range r.registry.ByDomain(domain) {
			if expert.Availability < r.cfg.OperabilityFloor {
				continue
			}
			if r.isExcluded(expert.ID, directives) {
				continue
			}
			specByExpert[expert.ID] += expert.SpecializationScore
			experts[expert.ID] = expert
		}
	}

	// Average load over the candidate set, not all of memory: experts the
	// stream has never touched still count as zero-load peers here.
	var totalLoad int64
	for id := range experts {
		totalLoad += r.memory.Load(id)
	}
	avgLoad := 0.0
	if len(experts) > 0 {
		avgLoad = float64(totalLoad) / float64(len(experts))
	}

	candidates := make([]scoredCandidate, 0, len(experts))
	for id, expert := range experts {
		candidates = append(candidates, scoredCandidate{
			expert: expert,
			score:  r.score(expert, specByExpert[id], avgLoad),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].expert.ID < candidates[j].expert.ID
	})

	return candidates
}

// score ranks one candidate. Experts loaded above the running average are
// penalized proportionally, which keeps sustained streams balanced across
// equally specialized experts.
func (r *Router) score(expert *registry.Expert, matchedSpec, avgLoad float64) float64 {
	score := matchedSpec

	if expert.ComputationalCost > 0 {
		score += 1.0 / expert.ComputationalCost
	}

	load := float64(r.memory.Load(expert.ID))
	if load > avgLoad {
		score -= r.cfg.LoadPenaltyWeight * (load - avgLoad)
	}

	return score
}

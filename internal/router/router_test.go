// Copyright 2026 The Hyperion Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperionlabs/hyperion/internal/config"
	"github.com/hyperionlabs/hyperion/internal/memory"
	"github.com/hyperionlabs/hyperion/internal/registry"
	"github.com/hyperionlabs/hyperion/internal/steering"
)

func testRouterConfig() config.RouterConfig {
	return config.RouterConfig{
		MultiExpertThreshold: 0.6,
		MaxExperts:           3,
		OperabilityFloor:     0.2,
		LoadPenaltyWeight:    0.15,
	}
}

func mustRegister(t *testing.T, reg *registry.ExpertRegistry, experts ...*registry.Expert) {
	t.Helper()
	for _, e := range experts {
		require.NoError(t, reg.Register(e))
	}
}

func defaultRegistry(t *testing.T) *registry.ExpertRegistry {
	reg := registry.NewExpertRegistry()
	mustRegister(t, reg,
		&registry.Expert{ID: "mathstral:7b", Domain: "mathematics", SuccessRate: 0.95, ComputationalCost: 2.0, Availability: 1.0, SpecializationScore: 0.98},
		&registry.Expert{ID: "codegemma:2b", Domain: "programming", SuccessRate: 0.90, ComputationalCost: 1.0, Availability: 1.0, SpecializationScore: 0.95},
		&registry.Expert{ID: "gemma2:2b", Domain: "language", SuccessRate: 0.85, ComputationalCost: 1.0, Availability: 1.0, SpecializationScore: 0.90, Fallback: true},
	)
	return reg
}

func TestRouteSingleExpertForMathDomain(t *testing.T) {
	r := New(testRouterConfig(), defaultRegistry(t), memory.NewPerformanceMemory(0.3))

	decision, err := r.Route([]string{"mathematics"}, 0.3, nil)
	require.NoError(t, err)
	assert.Equal(t, DecisionSingle, decision.Type)
	assert.Equal(t, []string{"mathstral:7b"}, decision.Experts)
	assert.NotEmpty(t, decision.Reasoning)
	assert.False(t, decision.Corrected)
}

func TestRouteMultiExpertOnHighComplexity(t *testing.T) {
	reg := registry.NewExpertRegistry()
	mustRegister(t, reg,
		&registry.Expert{ID: "math-a", Domain: "mathematics", SuccessRate: 0.9, ComputationalCost: 1.0, Availability: 1.0, SpecializationScore: 0.95},
		&registry.Expert{ID: "math-b", Domain: "mathematics", SuccessRate: 0.9, ComputationalCost: 1.0, Availability: 1.0, SpecializationScore: 0.90},
	)
	r := New(testRouterConfig(), reg, memory.NewPerformanceMemory(0.3))

	decision, err := r.Route([]string{"mathematics"}, 0.8, nil)
	require.NoError(t, err)
	assert.Equal(t, DecisionMulti, decision.Type)
	assert.Len(t, decision.Experts, 2)
}

func TestRouteMultiDomainSelectsAcrossDomains(t *testing.T) {
	r := New(testRouterConfig(), defaultRegistry(t), memory.NewPerformanceMemory(0.3))

	decision, err := r.Route([]string{"mathematics", "programming"}, 0.5, nil)
	require.NoError(t, err)
	assert.Equal(t, DecisionMulti, decision.Type)
	assert.Contains(t, decision.Experts, "mathstral:7b")
	assert.Contains(t, decision.Experts, "codegemma:2b")
}

func TestRouteCapsSelectionAtMaxExperts(t *testing.T) {
	reg := registry.NewExpertRegistry()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		mustRegister(t, reg, &registry.Expert{
			ID: id, Domain: "mathematics", SuccessRate: 0.9,
			ComputationalCost: 1.0, Availability: 1.0, SpecializationScore: 0.9,
		})
	}
	r := New(testRouterConfig(), reg, memory.NewPerformanceMemory(0.3))

	decision, err := r.Route([]string{"mathematics"}, 0.9, nil)
	require.NoError(t, err)
	assert.Len(t, decision.Experts, 3)
	assert.Len(t, decision.Candidates, 5)
}

func TestRouteSkipsInoperableExperts(t *testing.T) {
	reg := registry.NewExpertRegistry()
	mustRegister(t, reg,
		&registry.Expert{ID: "down", Domain: "mathematics", SuccessRate: 0.99, ComputationalCost: 1.0, Availability: 0.1, SpecializationScore: 0.99},
		&registry.Expert{ID: "up", Domain: "mathematics", SuccessRate: 0.8, ComputationalCost: 1.0, Availability: 1.0, SpecializationScore: 0.8},
	)
	r := New(testRouterConfig(), reg, memory.NewPerformanceMemory(0.3))

	decision, err := r.Route([]string{"mathematics"}, 0.3, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"up"}, decision.Experts)
}

func TestRouteFallbackWhenNoSpecialist(t *testing.T) {
	r := New(testRouterConfig(), defaultRegistry(t), memory.NewPerformanceMemory(0.3))

	decision, err := r.Route([]string{"astrology"}, 0.3, nil)
	require.NoError(t, err)
	assert.Equal(t, DecisionSingle, decision.Type)
	assert.Equal(t, []string{"gemma2:2b"}, decision.Experts)
	assert.Contains(t, decision.Reasoning, "fallback")
}

func TestRouteNoExpertAvailable(t *testing.T) {
	mem := memory.NewPerformanceMemory(0.3)
	r := New(testRouterConfig(), registry.NewExpertRegistry(), mem)

	_, err := r.Route([]string{"mathematics"}, 0.3, nil)
	require.ErrorIs(t, err, ErrNoExpertAvailable)

	// The failure path must not touch performance memory.
	snap := mem.GetSnapshot()
	assert.Empty(t, snap.Experts)
}

func TestRouteNoExpertWhenFallbackInoperable(t *testing.T) {
	reg := registry.NewExpertRegistry()
	mustRegister(t, reg, &registry.Expert{
		ID: "tired", Domain: "language", SuccessRate: 0.8,
		ComputationalCost: 1.0, Availability: 0.05, SpecializationScore: 0.8, Fallback: true,
	})
	r := New(testRouterConfig(), reg, memory.NewPerformanceMemory(0.3))

	_, err := r.Route([]string{"mathematics"}, 0.3, nil)
	assert.ErrorIs(t, err, ErrNoExpertAvailable)
}

func TestRouteHonorsSteeringPin(t *testing.T) {
	r := New(testRouterConfig(), defaultRegistry(t), memory.NewPerformanceMemory(0.3))

	decision, err := r.Route([]string{"mathematics"}, 0.3, &steering.Directives{PinnedExpert: "gemma2:2b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"gemma2:2b"}, decision.Experts)
	assert.Contains(t, decision.Reasoning, "steering")
}

func TestRouteIgnoresUnknownPin(t *testing.T) {
	r := New(testRouterConfig(), defaultRegistry(t), memory.NewPerformanceMemory(0.3))

	decision, err := r.Route([]string{"mathematics"}, 0.3, &steering.Directives{PinnedExpert: "ghost:1b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"mathstral:7b"}, decision.Experts)
}

func TestRouteHonorsSteeringExclusion(t *testing.T) {
	reg := registry.NewExpertRegistry()
	mustRegister(t, reg,
		&registry.Expert{ID: "math-a", Domain: "mathematics", SuccessRate: 0.9, ComputationalCost: 1.0, Availability: 1.0, SpecializationScore: 0.95},
		&registry.Expert{ID: "math-b", Domain: "mathematics", SuccessRate: 0.9, ComputationalCost: 1.0, Availability: 1.0, SpecializationScore: 0.90},
	)
	r := New(testRouterConfig(), reg, memory.NewPerformanceMemory(0.3))

	decision, err := r.Route([]string{"mathematics"}, 0.3, &steering.Directives{
		Excluded: map[string]bool{"math-a": true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"math-b"}, decision.Experts)
}

func TestRouteLoadPenaltySteersAwayFromHotExpert(t *testing.T) {
	reg := registry.NewExpertRegistry()
	mustRegister(t, reg,
		&registry.Expert{ID: "math-a", Domain: "mathematics", SuccessRate: 0.9, ComputationalCost: 1.0, Availability: 1.0, SpecializationScore: 0.90},
		&registry.Expert{ID: "math-b", Domain: "mathematics", SuccessRate: 0.9, ComputationalCost: 1.0, Availability: 1.0, SpecializationScore: 0.90},
	)
	mem := memory.NewPerformanceMemory(0.3)
	r := New(testRouterConfig(), reg, mem)

	// Drive math-a's load far above average.
	for i := 0; i < 10; i++ {
		mem.CommitSelection([]string{"math-a"})
	}

	decision, err := r.Route([]string{"mathematics"}, 0.3, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"math-b"}, decision.Experts)
}

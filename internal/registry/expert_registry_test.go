// Copyright 2026 The Hyperion Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadExpertRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experts.yaml")
	content := `
experts:
  - id: "mathstral:7b"
    domain: mathematics
    success-rate: 0.88
    computational-cost: 1.2
    availability: 0.95
    specialization-score: 1.5
  - id: "codegemma:2b"
    domain: programming
    success-rate: 0.84
    computational-cost: 0.8
    availability: 0.94
    specialization-score: 1.4
  - id: "gemma2:2b"
    domain: language
    success-rate: 0.82
    computational-cost: 0.7
    availability: 0.96
    specialization-score: 1.3
    fallback: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	reg, err := LoadExpertRegistry(path)
	require.NoError(t, err)

	assert.Equal(t, 3, reg.Count())
	assert.Equal(t, []string{"language", "mathematics", "programming"}, reg.Domains())

	math := reg.ByDomain("mathematics")
	require.Len(t, math, 1)
	assert.Equal(t, "mathstral:7b", math[0].ID)

	require.NotNil(t, reg.Fallback())
	assert.Equal(t, "gemma2:2b", reg.Fallback().ID)
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name   string
		expert *Expert
	}{
		{"nil expert", nil},
		{"missing id", &Expert{Domain: "mathematics"}},
		{"missing domain", &Expert{ID: "x"}},
		{"bad success rate", &Expert{ID: "x", Domain: "d", SuccessRate: 1.5}},
		{"bad availability", &Expert{ID: "x", Domain: "d", Availability: -0.1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewExpertRegistry()
			assert.Error(t, reg.Register(tt.expert))
			assert.Equal(t, 0, reg.Count())
		})
	}
}

func TestRegisterDuplicateID(t *testing.T) {
	reg := NewExpertRegistry()
	exp := &Expert{ID: "a", Domain: "mathematics", SuccessRate: 0.9, Availability: 0.9}
	require.NoError(t, reg.Register(exp))
	assert.Error(t, reg.Register(&Expert{ID: "a", Domain: "mathematics", SuccessRate: 0.8, Availability: 0.9}))
}

func TestByDomainSpecializationOrder(t *testing.T) {
	reg := NewExpertRegistry()
	require.NoError(t, reg.Register(&Expert{ID: "weak", Domain: "mathematics", SuccessRate: 0.8, Availability: 0.9, SpecializationScore: 1.1}))
	require.NoError(t, reg.Register(&Expert{ID: "strong", Domain: "mathematics", SuccessRate: 0.8, Availability: 0.9, SpecializationScore: 1.8}))
	require.NoError(t, reg.Register(&Expert{ID: "mid", Domain: "mathematics", SuccessRate: 0.8, Availability: 0.9, SpecializationScore: 1.4}))

	candidates := reg.ByDomain("mathematics")
	require.Len(t, candidates, 3)
	assert.Equal(t, "strong", candidates[0].ID)
	assert.Equal(t, "mid", candidates[1].ID)
	assert.Equal(t, "weak", candidates[2].ID)
}

func TestRegisterAppliesDefaults(t *testing.T) {
	reg := NewExpertRegistry()
	require.NoError(t, reg.Register(&Expert{ID: "a", Domain: "Mathematics", SuccessRate: 0.9, Availability: 0.9}))

	exp := reg.Get("a")
	require.NotNil(t, exp)
	assert.Equal(t, "mathematics", exp.Domain)
	assert.Equal(t, 1.0, exp.ComputationalCost)
	assert.Equal(t, 1.0, exp.SpecializationScore)
}

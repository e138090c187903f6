// Copyright 2026 The Hyperion Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package registry provides centralized expert management for the routing core.
// Experts are loaded once from a YAML registry file; adding an expert is a
// registry edit, never a code change. Baseline attributes are immutable for
// the lifetime of the process; live behavior is layered on top of them by
// the performance memory.
package registry

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
	log "github.com/sirupsen/logrus"
)

// Expert describes a backend service specialized for a query domain.
type Expert struct {
	// ID is the unique identifier of the expert (e.g., "mathstral:7b").
	ID string `yaml:"id" json:"id"`
	// Domain is the query domain this expert specializes in.
	Domain string `yaml:"domain" json:"domain"`
	// SuccessRate is the baseline probability of a satisfactory answer, in [0,1].
	SuccessRate float64 `yaml:"success-rate" json:"success_rate"`
	// ComputationalCost is the relative cost of invoking this expert.
	ComputationalCost float64 `yaml:"computational-cost" json:"computational_cost"`
	// Availability is the baseline fraction of time the expert is reachable, in [0,1].
	Availability float64 `yaml:"availability" json:"availability"`
	// SpecializationScore weights in-domain routing; higher values pull
	// matching queries toward this expert. Always > 0.
	SpecializationScore float64 `yaml:"specialization-score" json:"specialization_score"`
	// Fallback marks the expert that absorbs queries no specialist can take.
	Fallback bool `yaml:"fallback,omitempty" json:"fallback,omitempty"`
}

// registryFile is the on-disk shape of the expert registry.
type registryFile struct {
	Experts []*Expert `yaml:"experts"`
}

// ExpertRegistry holds the expert fleet loaded at startup.
// All accessors are safe for concurrent use; the fleet itself never changes
// during a run.
type ExpertRegistry struct {
	mu       sync.RWMutex
	experts  map[string]*Expert
	byDomain map[string][]*Expert
	fallback *Expert
}

// NewExpertRegistry creates an empty registry.
func NewExpertRegistry() *ExpertRegistry {
	return &ExpertRegistry{
		experts:  make(map[string]*Expert),
		byDomain: make(map[string][]*Expert),
	}
}

// LoadExpertRegistry reads the fleet description from a YAML file.
func LoadExpertRegistry(path string) (*ExpertRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read expert registry: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse expert registry: %w", err)
	}

	reg := NewExpertRegistry()
	for _, exp := range file.Experts {
		if err := reg.Register(exp); err != nil {
			return nil, err
		}
	}

	log.Infof("Expert registry loaded: %d experts across %d domains", reg.Count(), len(reg.Domains()))
	return reg, nil
}

// Register validates and adds an expert to the registry.
func (r *ExpertRegistry) Register(exp *Expert) error {
	if exp == nil {
		return fmt.Errorf("expert cannot be nil")
	}
	exp.ID = strings.TrimSpace(exp.ID)
	exp.Domain = strings.TrimSpace(strings.ToLower(exp.Domain))
	if exp.ID == "" {
		return fmt.Errorf("expert is missing an id")
	}
	if exp.Domain == "" {
		return fmt.Errorf("expert %s is missing a domain", exp.ID)
	}
	if exp.SuccessRate < 0 || exp.SuccessRate > 1 {
		return fmt.Errorf("expert %s: success-rate %.2f outside [0,1]", exp.ID, exp.SuccessRate)
	}
	if exp.Availability < 0 || exp.Availability > 1 {
		return fmt.Errorf("expert %s: availability %.2f outside [0,1]", exp.ID, exp.Availability)
	}
	if exp.ComputationalCost <= 0 {
		exp.ComputationalCost = 1.0
	}
	if exp.SpecializationScore <= 0 {
		exp.SpecializationScore = 1.0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.experts[exp.ID]; exists {
		return fmt.Errorf("duplicate expert id %s", exp.ID)
	}

	r.experts[exp.ID] = exp
	r.byDomain[exp.Domain] = append(r.byDomain[exp.Domain], exp)
	// Keep domain candidates ordered by specialization, strongest first.
	sort.SliceStable(r.byDomain[exp.Domain], func(i, j int) bool {
		return r.byDomain[exp.Domain][i].SpecializationScore > r.byDomain[exp.Domain][j].SpecializationScore
	})
	if exp.Fallback {
		r.fallback = exp
	}
	return nil
}

// Get returns the expert with the given ID, or nil if unknown.
func (r *ExpertRegistry) Get(id string) *Expert {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.experts[id]
}

// ByDomain returns the experts registered for a domain, ordered by
// specialization score descending. The returned slice must not be mutated.
func (r *ExpertRegistry) ByDomain(domain string) []*Expert {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byDomain[strings.ToLower(domain)]
}

// Fallback returns the designated fallback expert, or nil if none is flagged.
func (r *ExpertRegistry) Fallback() *Expert {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}

// All returns every registered expert, ordered by ID for stable iteration.
func (r *ExpertRegistry) All() []*Expert {
	r.mu.RLock()
	defer r.mu.RUnlock()

	experts := make([]*Expert, 0, len(r.experts))
	for _, exp := range r.experts {
		experts = append(experts, exp)
	}
	sort.Slice(experts, func(i, j int) bool { return experts[i].ID < experts[j].ID })
	return experts
}

// Domains returns the sorted list of domains with at least one expert.
func (r *ExpertRegistry) Domains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	domains := make([]string, 0, len(r.byDomain))
	for d := range r.byDomain {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}

// Count returns the number of registered experts.
func (r *ExpertRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.experts)
}

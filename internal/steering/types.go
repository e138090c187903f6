// Copyright 2026 The Hyperion Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package steering lets operators bias routing decisions with declarative
// YAML rules, evaluated per query against the classification result. Rules
// hot-reload when files in the steering directory change.
package steering

import "time"

// Rule is a single operator-defined steering rule.
type Rule struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description" json:"description"`
	Activation  ActivationRule    `yaml:"activation" json:"activation"`
	Preferences RoutePreferences  `yaml:"preferences" json:"preferences"`
	Metadata    map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`

	// FilePath records the rule's source file; it is never serialized.
	FilePath string `yaml:"-" json:"-"`
}

// ActivationRule defines when a rule triggers.
type ActivationRule struct {
	// Condition is an expression over the routing context, for example
	// "PrimaryDomain == 'mathematics' && Complexity > 0.7".
	Condition string `yaml:"condition" json:"condition"`
	// Priority orders rules; higher wins.
	Priority int `yaml:"priority" json:"priority"`
}

// RoutePreferences are the routing overrides a rule applies.
type RoutePreferences struct {
	// PinExpert forces the decision onto one expert, bypassing scoring.
	PinExpert string `yaml:"pin_expert,omitempty" json:"pin_expert,omitempty"`
	// ExcludeExperts removes experts from the candidate set.
	ExcludeExperts []string `yaml:"exclude_experts,omitempty" json:"exclude_experts,omitempty"`
	// OverrideRouter stops rule application after this rule.
	OverrideRouter bool `yaml:"override_router" json:"override_router"`
	// TimeBasedRules carry time-of-day expert preferences.
	TimeBasedRules []TimeBasedRule `yaml:"time_based_rules,omitempty" json:"time_based_rules,omitempty"`
}

// TimeBasedRule prefers an expert during specific hours or days.
type TimeBasedRule struct {
	Hours        string `yaml:"hours,omitempty" json:"hours,omitempty"` // "9-17" or "9-11,14-17"
	Days         string `yaml:"days,omitempty" json:"days,omitempty"`   // "Mon-Fri" or "Mon,Wed,Fri"
	PreferExpert string `yaml:"prefer_expert,omitempty" json:"prefer_expert,omitempty"`
	Reason       string `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// RoutingContext is the evaluation environment for rule conditions.
type RoutingContext struct {
	PrimaryDomain string                 `json:"primary_domain"`
	Domains       []string               `json:"domains"`
	Complexity    float64                `json:"complexity"`
	QueryLength   int                    `json:"query_length"`
	Hour          int                    `json:"hour"`
	DayOfWeek     string                 `json:"day_of_week"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
}

// Directives is the merged outcome of applying matched rules.
type Directives struct {
	// PinnedExpert is the forced expert ID, empty when none.
	PinnedExpert string
	// Excluded holds expert IDs removed from candidacy.
	Excluded map[string]bool
	// AppliedRules names the rules that contributed, in priority order.
	AppliedRules []string
}

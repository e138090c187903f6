// Copyright 2026 The Hyperion Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package classifier

import "regexp"

// weightedPattern pairs a compiled regex trigger with the weight it
// contributes to a domain's score when it matches.
type weightedPattern struct {
	re     *regexp.Regexp
	weight float64
}

// Domain names used by the default pattern table. The registry may carry
// experts for additional domains; queries reach those via steering rules.
const (
	DomainMathematics = "mathematics"
	DomainProgramming = "programming"
	DomainLanguage    = "language"
)

// domainPatterns holds the regex trigger sets per domain.
// Patterns are matched against the normalized (lowercased) query.
var domainPatterns = map[string][]weightedPattern{
	DomainMathematics: {
		{regexp.MustCompile(`\b\d+\s*[\+\-\*/\^%]\s*\d+\b`), 0.5},
		{regexp.MustCompile(`\b(calculat|solv|comput)\w*\b`), 0.3},
		{regexp.MustCompile(`\b(derivative|integral|equation|matrix|vector|theorem)\b`), 0.3},
		{regexp.MustCompile(`\b(factorial|fibonacci|prime|logarithm|exponential|probability)\b`), 0.3},
		{regexp.MustCompile(`\b(sum|subtract|multiply|divide|square root|power)\b`), 0.3},
	},
	DomainProgramming: {
		{regexp.MustCompile(`\b(function|def |class |import |return)\b`), 0.3},
		{regexp.MustCompile(`\b(algorithm|code|program|script|debug|refactor)\b`), 0.3},
		{regexp.MustCompile(`\b(python|javascript|golang|java|c\+\+|sql|api)\b`), 0.3},
		{regexp.MustCompile(`\b(database|server|client|request|endpoint)\b`), 0.3},
		{regexp.MustCompile(`\b(sort|search|filter|parse|validate|implement)\b`), 0.3},
	},
	DomainLanguage: {
		{regexp.MustCompile(`\b(write|draft|essay|article|summary|story)\b`), 0.3},
		{regexp.MustCompile(`\b(why|how|when|where|who)\b`), 0.2},
		{regexp.MustCompile(`\b(explain|describe|analyze|summarize|translate)\b`), 0.3},
	},
}

// keywordWeights holds per-domain weighted keywords matched by substring
// containment on the normalized query.
var keywordWeights = map[string]map[string]float64{
	DomainMathematics: {
		"calculate": 0.9, "derivative": 0.95, "integral": 0.95,
		"equation": 0.9, "matrix": 0.9, "factorial": 0.9,
		"prime": 0.85, "fibonacci": 0.85, "=": 0.7,
	},
	DomainProgramming: {
		"function": 0.95, "algorithm": 0.95, "code": 0.9,
		"program": 0.85, "python": 0.9, "sort": 0.85,
		"api": 0.85, "database": 0.9, "script": 0.85,
		"implement": 0.8, "develop": 0.8,
	},
	DomainLanguage: {
		"write": 0.9, "essay": 0.95, "draft": 0.9,
		"explain": 0.85, "describe": 0.85, "why": 0.8,
		"how": 0.75, "article": 0.9,
	},
}

// complexityKeywords bump the complexity score when present; they signal
// multi-step or open-ended work regardless of domain.
var complexityKeywords = []string{
	"algorithm", "optimize", "advanced", "complex", "system",
	"step by step", "and then", "first", "finally",
}

var digitPattern = regexp.MustCompile(`\d`)

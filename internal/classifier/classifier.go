// Copyright 2026 The Hyperion Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package classifier implements the pattern-based query classifier, the first
// stage of the routing pipeline. Classification never fails: when no domain
// clears its threshold the query falls back to the configured default domain
// with a degraded-confidence annotation.
package classifier

import (
	"fmt"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tiktoken-go/tokenizer"

	"github.com/hyperionlabs/hyperion/internal/classifier/cache"
	"github.com/hyperionlabs/hyperion/internal/config"
)

// Result is the outcome of classifying a query.
type Result struct {
	// Domains is the set of detected domains, strongest first.
	Domains []string `json:"domains"`
	// Complexity is the normalized complexity score in [0,1].
	Complexity float64 `json:"complexity"`
	// Reasoning is the human-readable classification trace.
	Reasoning string `json:"reasoning"`
	// Cached reports whether the result came from the classification cache.
	Cached bool `json:"cached"`
	// Fallback reports that no domain cleared its threshold.
	Fallback bool `json:"fallback"`
}

// Classifier scores queries against the domain pattern tables.
// It is safe for concurrent use; the only mutable state is the cache.
type Classifier struct {
	cfg   config.ClassifierConfig
	cache *cache.ClassificationCache
	codec tokenizer.Codec
}

// New creates a classifier with the given configuration and cache.
func New(cfg config.ClassifierConfig, c *cache.ClassificationCache) *Classifier {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		// Token counts degrade to a word-count approximation.
		log.Warnf("tiktoken codec unavailable, using word-count estimation: %v", err)
		codec = nil
	}
	return &Classifier{cfg: cfg, cache: c, codec: codec}
}

// NormalizeKey derives the cache key from raw query text.
func NormalizeKey(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Classify infers the query's domains and complexity.
// The cached path returns the stored result without recomputation.
func (cl *Classifier) Classify(query string) *Result {
	key := NormalizeKey(query)

	if entry, ok := cl.cache.Lookup(key); ok {
		return &Result{
			Domains:    entry.Domains,
			Complexity: entry.Complexity,
			Reasoning:  entry.Reasoning,
			Cached:     true,
		}
	}

	scores := cl.scoreDomains(key)
	domains, fallback := cl.detectDomains(scores)
	complexity := cl.complexity(key, domains, scores)
	reasoning := cl.reasoning(domains, scores, fallback)

	if fallback {
		complexity = maxFloat(complexity, cl.cfg.FallbackComplexity)
	}

	cl.cache.Store(key, domains, complexity, reasoning)

	return &Result{
		Domains:    domains,
		Complexity: complexity,
		Reasoning:  reasoning,
		Fallback:   fallback,
	}
}

// scoreDomains accumulates matched pattern and keyword weight per domain.
func (cl *Classifier) scoreDomains(key string) map[string]float64 {
	scores := make(map[string]float64, len(domainPatterns))
	for domain := range domainPatterns {
		scores[domain] = 0
	}

	for domain, patterns := range domainPatterns {
		for _, p := range patterns {
			if p.re.MatchString(key) {
				scores[domain] += p.weight
			}
		}
	}

	for domain, keywords := range keywordWeights {
		for keyword, weight := range keywords {
			if strings.Contains(key, keyword) {
				scores[domain] += weight
			}
		}
	}

	if digitPattern.MatchString(key) {
		scores[DomainMathematics] += 0.2
	}

	return scores
}

// detectDomains returns the domains above threshold, strongest first.
// When nothing clears the threshold it falls back to the best weak signal,
// or the configured default domain when there is no signal at all.
func (cl *Classifier) detectDomains(scores map[string]float64) ([]string, bool) {
	var detected []string
	for domain, score := range scores {
		if score >= cl.cfg.DomainThreshold {
			detected = append(detected, domain)
		}
	}
	if len(detected) > 0 {
		sort.Slice(detected, func(i, j int) bool {
			if scores[detected[i]] != scores[detected[j]] {
				return scores[detected[i]] > scores[detected[j]]
			}
			return detected[i] < detected[j]
		})
		return detected, false
	}

	// Weak-signal fallback: take the best-scoring domain if it shows any
	// signal, otherwise the default domain.
	bestDomain, bestScore := "", 0.0
	for domain, score := range scores {
		if score > bestScore || (score == bestScore && (bestDomain == "" || domain < bestDomain)) {
			bestDomain, bestScore = domain, score
		}
	}
	if bestScore > 0.1 {
		return []string{bestDomain}, true
	}
	return []string{cl.cfg.DefaultDomain}, true
}

// complexity derives the normalized complexity score from matched weight,
// token count, and structural signals.
func (cl *Classifier) complexity(key string, domains []string, scores map[string]float64) float64 {
	complexity := 0.3

	if len(domains) > 1 {
		complexity += 0.2
	}

	tokens := cl.countTokens(key)
	switch {
	case tokens > 40:
		complexity += 0.15
	case tokens > 20:
		complexity += 0.1
	}

	for _, kw := range complexityKeywords {
		if strings.Contains(key, kw) {
			complexity += 0.15
			break
		}
	}

	maxScore := 0.0
	for _, score := range scores {
		if score > maxScore {
			maxScore = score
		}
	}
	if maxScore > 1.5 {
		complexity += 0.1
	}

	return clamp(complexity, 0.2, 1.0)
}

// countTokens returns the tiktoken count for the query, or a word-count
// approximation when the codec is unavailable.
func (cl *Classifier) countTokens(text string) int {
	if cl.codec != nil {
		if n, err := cl.codec.Count(text); err == nil {
			return n
		}
	}
	return int(float64(len(strings.Fields(text))) * 1.3)
}

func (cl *Classifier) reasoning(domains []string, scores map[string]float64, fallback bool) string {
	if fallback {
		return fmt.Sprintf("no domain cleared threshold %.2f, falling back to %s", cl.cfg.DomainThreshold, strings.Join(domains, ", "))
	}
	if len(domains) == 1 {
		switch domains[0] {
		case DomainMathematics:
			return "mathematical operation or numeric computation"
		case DomainProgramming:
			return "programming or software development task"
		default:
			return "writing or explanation request"
		}
	}
	parts := make([]string, 0, len(domains))
	for _, d := range domains {
		parts = append(parts, fmt.Sprintf("%s (%.2f)", d, scores[d]))
	}
	return "multi-domain task: " + strings.Join(parts, ", ")
}

// CacheMetrics exposes the underlying cache counters.
func (cl *Classifier) CacheMetrics() cache.Metrics {
	return cl.cache.GetMetrics()
}

// CacheHitRate exposes the underlying cache hit rate.
func (cl *Classifier) CacheHitRate() float64 {
	return cl.cache.HitRate()
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

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

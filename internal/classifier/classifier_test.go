// Copyright 2026 The Hyperion Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperionlabs/hyperion/internal/classifier/cache"
	"github.com/hyperionlabs/hyperion/internal/config"
)

func newTestClassifier(capacity int) *Classifier {
	cfg := config.ClassifierConfig{
		CacheCapacity:      capacity,
		DomainThreshold:    0.4,
		DefaultDomain:      "language",
		FallbackComplexity: 0.2,
	}
	return New(cfg, cache.New(capacity))
}

func TestClassifyMathQuery(t *testing.T) {
	cl := newTestClassifier(10)

	result := cl.Classify("What is 2 + 2?")
	require.NotEmpty(t, result.Domains)
	assert.Equal(t, DomainMathematics, result.Domains[0])
	assert.False(t, result.Cached)
	assert.GreaterOrEqual(t, result.Complexity, 0.2)
	assert.LessOrEqual(t, result.Complexity, 1.0)
}

func TestClassifyProgrammingQuery(t *testing.T) {
	cl := newTestClassifier(10)

	result := cl.Classify("Write a Python function to sort a list")
	assert.Contains(t, result.Domains, DomainProgramming)
}

func TestClassifyIdempotentAndCached(t *testing.T) {
	cl := newTestClassifier(10)

	first := cl.Classify("Calculate the derivative of x^2")
	second := cl.Classify("Calculate the derivative of x^2")

	assert.False(t, first.Cached)
	assert.True(t, second.Cached, "second identical call must be a cache hit")
	assert.Equal(t, first.Domains, second.Domains)
	assert.Equal(t, first.Complexity, second.Complexity)
	assert.Equal(t, first.Reasoning, second.Reasoning)
}

func TestClassifyNormalizationSharesCacheEntry(t *testing.T) {
	cl := newTestClassifier(10)

	_ = cl.Classify("  What is 2 + 2?  ")
	result := cl.Classify("what is 2 + 2?")
	assert.True(t, result.Cached, "case and whitespace variants share one entry")
}

func TestClassifyFallbackNeverFails(t *testing.T) {
	cl := newTestClassifier(10)

	result := cl.Classify("zzz qqq xyzzy")
	require.Len(t, result.Domains, 1)
	assert.Equal(t, "language", result.Domains[0])
	assert.True(t, result.Fallback)
	assert.GreaterOrEqual(t, result.Complexity, 0.2)
	assert.Contains(t, result.Reasoning, "falling back")
}

func TestClassifyMultiDomain(t *testing.T) {
	cl := newTestClassifier(10)

	result := cl.Classify("Write a Python function to calculate the derivative of a matrix equation")
	assert.GreaterOrEqual(t, len(result.Domains), 2)
	assert.Contains(t, result.Domains, DomainMathematics)
	assert.Contains(t, result.Domains, DomainProgramming)
	// Multi-domain queries carry more complexity than the floor.
	assert.Greater(t, result.Complexity, 0.4)
}

func TestComplexityGrowsWithStructure(t *testing.T) {
	cl := newTestClassifier(10)

	simple := cl.Classify("What is 2 + 2?")
	involved := cl.Classify("First design an advanced algorithm to optimize a complex system, and then implement it step by step in Python with a database layer and an API, explaining every design decision you make along the way")

	assert.Greater(t, involved.Complexity, simple.Complexity)
	assert.LessOrEqual(t, involved.Complexity, 1.0)
}

func TestCacheEvictionKeepsBound(t *testing.T) {
	cl := newTestClassifier(3)

	queries := []string{
		"What is 2 + 2?",
		"Write an essay about autumn",
		"Sort a list in Python",
		"Explain why the sky is blue",
		"Calculate 10 * 10",
	}
	for _, q := range queries {
		_ = cl.Classify(q)
	}

	m := cl.CacheMetrics()
	assert.LessOrEqual(t, m.Size, 3)
	assert.Equal(t, int64(2), m.Evictions)

	// The oldest query was evicted, so it classifies fresh again.
	result := cl.Classify("What is 2 + 2?")
	assert.False(t, result.Cached)
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "what is 2 + 2?", NormalizeKey("  What Is 2 + 2?  "))
	assert.Equal(t, "", NormalizeKey("   "))
}

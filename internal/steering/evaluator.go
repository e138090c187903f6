// Copyright 2026 The Hyperion Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package steering

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ConditionEvaluator compiles and runs rule activation conditions.
// Compiled programs are cached per condition string; reloads reuse them.
type ConditionEvaluator struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

// NewConditionEvaluator creates an empty evaluator.
func NewConditionEvaluator() *ConditionEvaluator {
	return &ConditionEvaluator{
		programs: make(map[string]*vm.Program),
	}
}

// Evaluate runs a condition against the routing context. The empty string
// and "true" always match.
func (e *ConditionEvaluator) Evaluate(condition string, ctx *RoutingContext) (bool, error) {
	if condition == "" || condition == "true" {
		return true, nil
	}

	e.mu.RLock()
	program, exists := e.programs[condition]
	e.mu.RUnlock()

	if !exists {
		var err error
		program, err = expr.Compile(condition, expr.Env(ctx))
		if err != nil {
			return false, fmt.Errorf("failed to compile condition '%s': %w", condition, err)
		}
		e.mu.Lock()
		e.programs[condition] = program
		e.mu.Unlock()
	}

	output, err := expr.Run(program, ctx)
	if err != nil {
		return false, fmt.Errorf("failed to run condition '%s': %w", condition, err)
	}

	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("condition '%s' did not return a boolean", condition)
	}

	return result, nil
}

// CheckTimeRule reports whether now matches a time-based rule.
func (e *ConditionEvaluator) CheckTimeRule(rule TimeBasedRule, now time.Time) bool {
	if !e.isInHourRange(now.Hour(), rule.Hours) {
		return false
	}
	return e.isInDayRange(now.Weekday(), rule.Days)
}

// isInHourRange parses ranges like "9-17", "9-11,14-17", or single hours.
// Empty matches all hours.
func (e *ConditionEvaluator) isInHourRange(hour int, hoursStr string) bool {
	if hoursStr == "" {
		return true
	}

	for _, r := range strings.Split(hoursStr, ",") {
		parts := strings.Split(strings.TrimSpace(r), "-")
		switch len(parts) {
		case 2:
			var start, end int
			_, _ = fmt.Sscanf(parts[0], "%d", &start)
			_, _ = fmt.Sscanf(parts[1], "%d", &end)
			if hour >= start && hour <= end {
				return true
			}
		case 1:
			var single int
			_, _ = fmt.Sscanf(parts[0], "%d", &single)
			if hour == single {
				return true
			}
		}
	}

	return false
}

// isInDayRange parses "Mon-Fri" style ranges or "Mon,Wed,Fri" lists.
// Empty matches all days.
func (e *ConditionEvaluator) isInDayRange(weekday time.Weekday, daysStr string) bool {
	if daysStr == "" {
		return true
	}

	dayMap := map[string]time.Weekday{
		"Sun": time.Sunday,
		"Mon": time.Monday,
		"Tue": time.Tuesday,
		"Wed": time.Wednesday,
		"Thu": time.Thursday,
		"Fri": time.Friday,
		"Sat": time.Saturday,
	}

	if strings.Contains(daysStr, "-") {
		parts := strings.Split(daysStr, "-")
		if len(parts) == 2 {
			start := dayMap[strings.TrimSpace(parts[0])]
			end := dayMap[strings.TrimSpace(parts[1])]
			if start <= end {
				return weekday >= start && weekday <= end
			}
			// Wrap-around range, e.g. "Fri-Mon".
			return weekday >= start || weekday <= end
		}
		return false
	}

	for _, d := range strings.Split(daysStr, ",") {
		if dayMap[strings.TrimSpace(d)] == weekday {
			return true
		}
	}
	return false
}

// Copyright 2026 The Hyperion Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package steering

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateConditions(t *testing.T) {
	e := NewConditionEvaluator()
	ctx := &RoutingContext{
		PrimaryDomain: "mathematics",
		Domains:       []string{"mathematics", "programming"},
		Complexity:    0.8,
		QueryLength:   120,
		Hour:          14,
		DayOfWeek:     "Wednesday",
	}

	tests := []struct {
		name      string
		condition string
		want      bool
		wantErr   bool
	}{
		{"empty always matches", "", true, false},
		{"literal true", "true", true, false},
		{"domain match", `PrimaryDomain == "mathematics"`, true, false},
		{"domain mismatch", `PrimaryDomain == "language"`, false, false},
		{"complexity threshold", "Complexity > 0.7", true, false},
		{"compound", `PrimaryDomain == "mathematics" && Complexity > 0.9`, false, false},
		{"membership", `"programming" in Domains`, true, false},
		{"hour window", "Hour >= 9 && Hour <= 17", true, false},
		{"compile error", "PrimaryDomain ==", false, true},
		{"non-boolean result", "QueryLength + 1", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(tt.condition, ctx)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateReusesCompiledProgram(t *testing.T) {
	e := NewConditionEvaluator()
	ctx := &RoutingContext{Complexity: 0.5}

	for i := 0; i < 3; i++ {
		got, err := e.Evaluate("Complexity >= 0.5", ctx)
		require.NoError(t, err)
		assert.True(t, got)
	}
	assert.Len(t, e.programs, 1)
}

func TestCheckTimeRule(t *testing.T) {
	e := NewConditionEvaluator()
	wednesdayMorning := time.Date(2026, 8, 19, 10, 30, 0, 0, time.UTC)
	saturdayNight := time.Date(2026, 8, 22, 23, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		rule TimeBasedRule
		now  time.Time
		want bool
	}{
		{"no restriction matches", TimeBasedRule{}, wednesdayMorning, true},
		{"hour range hit", TimeBasedRule{Hours: "9-17"}, wednesdayMorning, true},
		{"hour range miss", TimeBasedRule{Hours: "0-8"}, wednesdayMorning, false},
		{"split hour ranges", TimeBasedRule{Hours: "0-8,22-23"}, saturdayNight, true},
		{"single hour", TimeBasedRule{Hours: "10"}, wednesdayMorning, true},
		{"weekday range hit", TimeBasedRule{Days: "Mon-Fri"}, wednesdayMorning, true},
		{"weekday range miss", TimeBasedRule{Days: "Mon-Fri"}, saturdayNight, false},
		{"day list", TimeBasedRule{Days: "Wed,Sat"}, saturdayNight, true},
		{"wrap-around days", TimeBasedRule{Days: "Fri-Mon"}, saturdayNight, true},
		{"both constraints", TimeBasedRule{Hours: "9-17", Days: "Mon-Fri"}, wednesdayMorning, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.CheckTimeRule(tt.rule, tt.now))
		})
	}
}

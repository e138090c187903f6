// Package hooks provides an asynchronous event bus for pipeline lifecycle
// events. Subscribers (the websocket event stream, tests, future plugins)
// receive events without ever blocking the routing hot path.
package hooks

import "time"

// HookEvent identifies a pipeline lifecycle event type.
type HookEvent string

const (
	// EventQueryReceived fires when a query enters the pipeline.
	EventQueryReceived HookEvent = "query_received"
	// EventQueryClassified fires after the classification stage.
	EventQueryClassified HookEvent = "query_classified"
	// EventRoutingDecision fires once a decision is finalized.
	EventRoutingDecision HookEvent = "routing_decision"
	// EventDecisionCorrected fires when the supervisor overrides a decision.
	EventDecisionCorrected HookEvent = "decision_corrected"
	// EventPredictionCompleted fires after the Monte Carlo stage.
	EventPredictionCompleted HookEvent = "prediction_completed"
	// EventOutcomeObserved fires when an actual backend outcome is reported.
	EventOutcomeObserved HookEvent = "outcome_observed"
)

// EventContext carries an event and its payload to subscribers.
type EventContext struct {
	Event     HookEvent              `json:"event"`
	Timestamp time.Time              `json:"timestamp"`
	QueryID   string                 `json:"query_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

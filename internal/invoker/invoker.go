// Copyright 2026 The Hyperion Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package invoker dispatches routed queries to backend experts over an
// Ollama-compatible HTTP API (default: http://localhost:11434). Backend
// failures are the backend's own concern: the invoker reports them with
// latency attached and never retries.
package invoker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/hyperionlabs/hyperion/internal/config"
)

// Response is the outcome of one backend expert invocation.
type Response struct {
	ExpertID         string `json:"expert_id"`
	Text             string `json:"text"`
	LatencyMs        int64  `json:"latency_ms"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

// Invoker sends a query to one backend expert.
type Invoker interface {
	Invoke(ctx context.Context, expertID, queryText string) (*Response, error)
	Healthy(ctx context.Context) bool
}

var _ Invoker = (*OllamaInvoker)(nil)

// OllamaInvoker talks to a local Ollama instance.
type OllamaInvoker struct {
	baseURL string
	client  *http.Client
}

// NewOllamaInvoker creates an invoker from the backend configuration.
func NewOllamaInvoker(cfg config.InvokerConfig) *OllamaInvoker {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaInvoker{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Invoke sends the query to the expert's model and returns the response
// text with measured latency.
func (o *OllamaInvoker) Invoke(ctx context.Context, expertID, queryText string) (*Response, error) {
	body := []byte(`{"stream":false}`)
	body, _ = sjson.SetBytes(body, "model", expertID)
	body, _ = sjson.SetBytes(body, "messages.0.role", "user")
	body, _ = sjson.SetBytes(body, "messages.0.content", queryText)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create backend request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := o.client.Do(httpReq)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return nil, fmt.Errorf("backend request to %s failed after %dms: %w", expertID, latency, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read backend response from %s: %w", expertID, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend %s returned status %d: %s", expertID, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	content := gjson.GetBytes(payload, "message.content")
	if !content.Exists() {
		return nil, fmt.Errorf("backend %s returned no message content", expertID)
	}

	log.Debugf("Backend %s answered in %dms (%d eval tokens)", expertID, latency, gjson.GetBytes(payload, "eval_count").Int())

	return &Response{
		ExpertID:         expertID,
		Text:             content.String(),
		LatencyMs:        latency,
		PromptTokens:     int(gjson.GetBytes(payload, "prompt_eval_count").Int()),
		CompletionTokens: int(gjson.GetBytes(payload, "eval_count").Int()),
	}, nil
}

// Healthy reports whether the backend answers its model listing endpoint.
func (o *OllamaInvoker) Healthy(ctx context.Context) bool {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

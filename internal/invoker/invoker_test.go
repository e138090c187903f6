// Copyright 2026 The Hyperion Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package invoker

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/hyperionlabs/hyperion/internal/config"
)

func TestInvokeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "mathstral:7b", gjson.GetBytes(body, "model").String())
		assert.Equal(t, "What is 2 + 2?", gjson.GetBytes(body, "messages.0.content").String())
		assert.False(t, gjson.GetBytes(body, "stream").Bool())

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "mathstral:7b",
			"message": {"role": "assistant", "content": "4"},
			"done": true,
			"prompt_eval_count": 12,
			"eval_count": 3
		}`))
	}))
	defer srv.Close()

	inv := NewOllamaInvoker(config.InvokerConfig{BaseURL: srv.URL, TimeoutSeconds: 5})
	resp, err := inv.Invoke(context.Background(), "mathstral:7b", "What is 2 + 2?")
	require.NoError(t, err)

	assert.Equal(t, "4", resp.Text)
	assert.Equal(t, "mathstral:7b", resp.ExpertID)
	assert.Equal(t, 12, resp.PromptTokens)
	assert.Equal(t, 3, resp.CompletionTokens)
	assert.GreaterOrEqual(t, resp.LatencyMs, int64(0))
}

func TestInvokeBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	inv := NewOllamaInvoker(config.InvokerConfig{BaseURL: srv.URL, TimeoutSeconds: 5})
	_, err := inv.Invoke(context.Background(), "ghost:1b", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestInvokeMissingContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"done": true}`))
	}))
	defer srv.Close()

	inv := NewOllamaInvoker(config.InvokerConfig{BaseURL: srv.URL, TimeoutSeconds: 5})
	_, err := inv.Invoke(context.Background(), "mathstral:7b", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no message content")
}

func TestInvokeRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	inv := NewOllamaInvoker(config.InvokerConfig{BaseURL: srv.URL, TimeoutSeconds: 5})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := inv.Invoke(ctx, "mathstral:7b", "hello")
	assert.Error(t, err)
}

func TestHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models": []}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	inv := NewOllamaInvoker(config.InvokerConfig{BaseURL: srv.URL, TimeoutSeconds: 5})
	assert.True(t, inv.Healthy(context.Background()))

	srv.Close()
	assert.False(t, inv.Healthy(context.Background()))
}

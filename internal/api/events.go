// Copyright 2026 The Hyperion Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/hyperionlabs/hyperion/internal/hooks"
)

// streamedEvents is the set of pipeline events forwarded to websocket
// subscribers.
var streamedEvents = []hooks.HookEvent{
	hooks.EventQueryReceived,
	hooks.EventQueryClassified,
	hooks.EventRoutingDecision,
	hooks.EventDecisionCorrected,
	hooks.EventPredictionCompleted,
	hooks.EventOutcomeObserved,
}

// handleEvents upgrades the connection and streams pipeline events until
// the client disconnects. A slow client drops events instead of blocking
// the bus.
func (s *Server) handleEvents(c *gin.Context) {
	if s.bus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream is disabled"})
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan *hooks.EventContext, 64)
	subs := make([]*hooks.Subscription, 0, len(streamedEvents))
	for _, event := range streamedEvents {
		subs = append(subs, s.bus.Subscribe(event, func(ec *hooks.EventContext) {
			select {
			case send <- ec:
			default:
			}
		}))
	}
	defer func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}()

	// Reader goroutine: its exit signals the client went away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case ec := <-send:
			payload, err := json.Marshal(ec)
			if err != nil {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

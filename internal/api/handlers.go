// Copyright 2026 The Hyperion Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/hyperionlabs/hyperion/internal/memory"
	"github.com/hyperionlabs/hyperion/internal/pipeline"
	"github.com/hyperionlabs/hyperion/internal/router"
)

// routeRequest is the body of POST /v1/route.
type routeRequest struct {
	Query string `json:"query" binding:"required"`
	// Invoke dispatches the query to the selected expert's backend after
	// routing and reports the outcome automatically.
	Invoke bool `json:"invoke"`
}

// outcomeRequest is the body of POST /v1/outcome.
type outcomeRequest struct {
	QueryID      string  `json:"query_id" binding:"required"`
	Success      bool    `json:"success"`
	QualityScore float64 `json:"quality_score"`
	ResponseTime int64   `json:"response_time_ms"`
	Error        string  `json:"error"`
}

func (s *Server) handleRoute(c *gin.Context) {
	var req routeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query must not be blank"})
		return
	}

	outcome, err := s.pipeline.Process(c.Request.Context(), req.Query)
	if err != nil {
		if errors.Is(err, router.ErrNoExpertAvailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if req.Invoke && s.invoker != nil {
		s.invokeAndObserve(c, outcome, req.Query)
		return
	}

	s.rememberOutcome(outcome)
	c.JSON(http.StatusOK, outcome)
}

// invokeAndObserve dispatches the query to the top selected expert and
// folds the real outcome straight back into the pipeline.
func (s *Server) invokeAndObserve(c *gin.Context, outcome *pipeline.Outcome, query string) {
	expertID := outcome.Decision.Experts[0]
	resp, err := s.invoker.Invoke(c.Request.Context(), expertID, query)
	if err != nil {
		log.Warnf("[%s] Backend invocation failed: %v", outcome.QueryID, err)
		s.pipeline.Observe(outcome, &memory.OutcomeInfo{Success: false, Error: err.Error()})
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "backend invocation failed: " + err.Error(),
			"routing": outcome,
		})
		return
	}

	s.pipeline.Observe(outcome, &memory.OutcomeInfo{
		Success:        true,
		ResponseTimeMs: resp.LatencyMs,
	})
	c.JSON(http.StatusOK, gin.H{
		"routing":  outcome,
		"response": resp,
	})
}

func (s *Server) handleOutcome(c *gin.Context) {
	var req outcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query_id is required"})
		return
	}

	outcome := s.takeOutcome(req.QueryID)
	if outcome == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown or already-reported query_id"})
		return
	}

	s.pipeline.Observe(outcome, &memory.OutcomeInfo{
		Success:        req.Success,
		QualityScore:   req.QualityScore,
		ResponseTimeMs: req.ResponseTime,
		Error:          req.Error,
	})
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.pipeline.Stats())
}

func (s *Server) handleExperts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"experts": s.registry.All()})
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if s.invoker != nil {
		resp["backend"] = s.invoker.Healthy(c.Request.Context())
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleResetMemory(c *gin.Context) {
	s.pipeline.ResetMemory()
	log.Info("Performance memory reset via management API")
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

// Copyright 2026 The Hyperion Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package api exposes the routing pipeline over HTTP: query routing,
// outcome reporting, operational statistics, and a websocket event stream.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/hyperionlabs/hyperion/internal/config"
	"github.com/hyperionlabs/hyperion/internal/hooks"
	"github.com/hyperionlabs/hyperion/internal/invoker"
	"github.com/hyperionlabs/hyperion/internal/pipeline"
	"github.com/hyperionlabs/hyperion/internal/registry"
)

// pendingCapacity bounds how many unreported outcomes the server retains
// for later outcome reports.
const pendingCapacity = 1000

// Server is the HTTP front end of the routing pipeline.
type Server struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	registry *registry.ExpertRegistry
	invoker  invoker.Invoker
	bus      *hooks.EventBus

	engine *gin.Engine
	srv    *http.Server

	// pending maps query IDs to outcomes awaiting an outcome report.
	pendingMu    sync.Mutex
	pending      map[string]*pipeline.Outcome
	pendingOrder []string
}

// NewServer assembles the HTTP server. The invoker and event bus are
// optional; a nil invoker disables dispatch and backend health reporting.
func NewServer(cfg *config.Config, p *pipeline.Pipeline, reg *registry.ExpertRegistry, inv invoker.Invoker, bus *hooks.EventBus) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:      cfg,
		pipeline: p,
		registry: reg,
		invoker:  inv,
		bus:      bus,
		engine:   gin.New(),
		pending:  make(map[string]*pipeline.Outcome),
	}
	s.engine.Use(gin.Recovery(), requestLogger())
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)

	v1 := s.engine.Group("/v1", s.authMiddleware())
	{
		v1.POST("/route", s.handleRoute)
		v1.POST("/outcome", s.handleOutcome)
		v1.GET("/stats", s.handleStats)
		v1.GET("/experts", s.handleExperts)
		v1.GET("/events", s.handleEvents)
	}

	mgmt := s.engine.Group("/v1/management", s.managementMiddleware())
	{
		mgmt.POST("/reset-memory", s.handleResetMemory)
	}
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("HTTP server listening on %s", addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("Shutting down HTTP server...")
	return s.srv.Shutdown(shutdownCtx)
}

// Handler exposes the gin engine for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// rememberOutcome retains an outcome for a later outcome report, evicting
// the oldest entry past capacity.
func (s *Server) rememberOutcome(o *pipeline.Outcome) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	if len(s.pendingOrder) >= pendingCapacity {
		oldest := s.pendingOrder[0]
		s.pendingOrder = s.pendingOrder[1:]
		delete(s.pending, oldest)
	}
	s.pending[o.QueryID] = o
	s.pendingOrder = append(s.pendingOrder, o.QueryID)
}

// takeOutcome removes and returns a retained outcome.
func (s *Server) takeOutcome(queryID string) *pipeline.Outcome {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	o, ok := s.pending[queryID]
	if !ok {
		return nil
	}
	delete(s.pending, queryID)
	for i, id := range s.pendingOrder {
		if id == queryID {
			s.pendingOrder = append(s.pendingOrder[:i], s.pendingOrder[i+1:]...)
			break
		}
	}
	return o
}

// requestLogger logs one line per request in the global log format.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debugf("%s %s -> %d in %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

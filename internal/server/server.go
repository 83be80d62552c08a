// Package server exposes the workflow over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"

	"api-testgen/internal/executor"
	"api-testgen/internal/llm"
	"api-testgen/internal/logger"
	"api-testgen/internal/parser"
	"api-testgen/internal/store"
	"api-testgen/internal/workflow"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Options wires the server's collaborators. Only Controller is required;
// the routes that need a missing collaborator answer 503.
type Options struct {
	Controller  *workflow.Controller
	Coordinator *executor.Coordinator
	Fetcher     *parser.Fetcher
	Suggester   *llm.RelationSuggester
	Store       store.SnapshotStore
	SnapshotKey string
	Logger      *zap.Logger
}

// Server handles API requests
type Server struct {
	controller  *workflow.Controller
	coordinator *executor.Coordinator
	fetcher     *parser.Fetcher
	suggester   *llm.RelationSuggester
	store       store.SnapshotStore
	snapshotKey string
	logger      *zap.Logger
}

// New creates a server
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.SnapshotKey == "" {
		opts.SnapshotKey = "default"
	}
	return &Server{
		controller:  opts.Controller,
		coordinator: opts.Coordinator,
		fetcher:     opts.Fetcher,
		suggester:   opts.Suggester,
		store:       opts.Store,
		snapshotKey: opts.SnapshotKey,
		logger:      opts.Logger,
	}
}

// Router builds the gin engine with all routes
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	// test case ids contain slashes and arrive percent-encoded
	router.UseRawPath = true
	router.UnescapePathValues = true
	router.Use(logger.GinMiddleware(s.logger), gin.Recovery())

	api := router.Group("/api")
	api.GET("/state", s.getState)
	api.GET("/export", s.exportSnapshot)

	mutating := api.Group("", s.autosave)
	mutating.POST("/document", s.loadDocument)
	mutating.POST("/next", s.next)
	mutating.POST("/back", s.back)
	mutating.POST("/reset", s.reset)
	mutating.POST("/analyze", s.analyze)
	mutating.POST("/generate", s.generate)
	mutating.POST("/scenarios", s.addScenario)
	mutating.DELETE("/scenarios/:id", s.removeScenario)
	mutating.POST("/relations", s.addRelation)
	mutating.DELETE("/relations/:id", s.removeRelation)
	mutating.POST("/relations/suggest", s.suggestRelations)
	mutating.POST("/testcases/run", s.runAll)
	mutating.POST("/testcases/:id/run", s.runOne)
	mutating.POST("/import", s.importSnapshot)

	return router
}

// Restore loads the last saved snapshot into the controller. A missing
// snapshot is not an error.
func (s *Server) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	data, err := s.store.Load(ctx, s.snapshotKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.controller.Restore(data)
}

// autosave persists the workflow after every successful mutating request
func (s *Server) autosave(c *gin.Context) {
	c.Next()

	if s.store == nil || c.Writer.Status() >= http.StatusBadRequest {
		return
	}
	data, err := s.controller.Serialize()
	if err == nil {
		err = s.store.Save(c.Request.Context(), s.snapshotKey, data)
	}
	if err != nil {
		s.logger.Warn("failed to save workflow snapshot", zap.String("key", s.snapshotKey), zap.Error(err))
	}
}

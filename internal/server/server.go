// Package server exposes the search core over HTTP for the surrounding
// application: one search operation plus operational introspection.
package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/codexray/metasearch/internal/models"
	"github.com/codexray/metasearch/internal/search"
)

// Server wires the orchestrator behind a gin router.
type Server struct {
	engine *gin.Engine
	orch   *search.Orchestrator
	log    *zap.Logger
}

func New(orch *search.Orchestrator, registry *prometheus.Registry, log *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), RequestID(), requestLogger(log))

	s := &Server{engine: engine, orch: orch, log: log}

	engine.GET("/healthz", s.handleHealth)
	if registry != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	api := engine.Group("/api/v1")
	api.POST("/search", s.handleSearch)
	api.GET("/status", s.handleStatus)
	api.DELETE("/cache", s.handleClearCache)

	return s
}

// Handler returns the http.Handler for mounting or serving.
func (s *Server) Handler() http.Handler {
	return s.engine
}

type searchRequest struct {
	Query      string         `json:"query"`
	MaxResults int            `json:"max_results"`
	SearchType string         `json:"search_type"`
	Freshness  string         `json:"freshness"`
	Filters    models.Filters `json:"filters"`
}

func (s *Server) handleSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if req.MaxResults == 0 {
		req.MaxResults = 10
	}
	if req.SearchType == "" {
		req.SearchType = string(models.SearchTypeAll)
	}
	if req.Freshness == "" {
		req.Freshness = string(models.FreshnessWeek)
	}

	query := models.SearchQuery{
		Text:       req.Query,
		MaxResults: req.MaxResults,
		Type:       models.SearchType(req.SearchType),
		Freshness:  models.Freshness(req.Freshness),
		Filters:    req.Filters,
	}

	resp, err := s.orch.Search(c.Request.Context(), query)
	if err != nil {
		var invalid *search.InvalidQueryError
		switch {
		case errors.As(err, &invalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Error()})
		case errors.Is(err, search.ErrNoProvidersAvailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			s.log.Error("search failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.orch.Status())
}

func (s *Server) handleClearCache(c *gin.Context) {
	evicted := s.orch.ClearCache()
	s.log.Info("cache cleared", zap.Int("evicted", evicted))
	c.JSON(http.StatusOK, gin.H{"evicted": evicted})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/camuig/llm-arena/internal/engine"
	"github.com/camuig/llm-arena/internal/logger"
	"github.com/camuig/llm-arena/internal/metrics"
	"github.com/camuig/llm-arena/internal/models"
	"github.com/camuig/llm-arena/internal/storage"
)

// Engine is the reporting and lifecycle boundary of the trading engine.
type Engine interface {
	Start(ctx context.Context) bool
	Stop() bool
	Status() engine.Status
	AgentStates(ctx context.Context) []models.AgentState
	AgentState(ctx context.Context, id string) (models.AgentState, bool)
	HasAgent(id string) bool
}

// Journal is the read side of the trade journal. Optional.
type Journal interface {
	GetRecentTrades(agentID string, limit int) ([]storage.TradeRecord, error)
	CountTradesByStatus(agentID, status string) (int64, error)
	GetLatestSnapshot(agentID string) (*storage.PortfolioSnapshot, error)
}

type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	engine     Engine
	journal    Journal
	logger     *logger.Logger

	// ctx outlives requests; engine loops started over HTTP run under it.
	ctx context.Context
}

func NewServer(eng Engine, journal Journal, m *metrics.Metrics, port int, log *logger.Logger) *Server {
	s := &Server{
		engine:  eng,
		journal: journal,
		logger:  log,
		ctx:     context.Background(),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger(), cors())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	api := router.Group("/api/v1")
	api.GET("/agents", s.handleAgents)
	api.GET("/agents/:id", s.handleAgent)
	api.GET("/agents/:id/trades", s.handleAgentTrades)
	api.GET("/agents/:id/snapshot", s.handleAgentSnapshot)
	api.GET("/engine/status", s.handleEngineStatus)
	api.POST("/engine/start", s.handleEngineStart)
	api.POST("/engine/stop", s.handleEngineStop)

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown. ctx becomes the parent of engine loops
// started through the API.
func (s *Server) Start(ctx context.Context) error {
	s.ctx = ctx
	s.logger.Info("web server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"client", c.ClientIP(),
			"elapsed", time.Since(start).String())
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/camuig/llm-arena/internal/models"
)

const (
	defaultTradeLimit = 20
	maxTradeLimit     = 500
)

func (s *Server) handleAgents(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.AgentStates(c.Request.Context()))
}

func (s *Server) handleAgent(c *gin.Context) {
	state, ok := s.engine.AgentState(c.Request.Context(), c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Agent not found"})
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) handleAgentTrades(c *gin.Context) {
	id := c.Param("id")
	if !s.engine.HasAgent(id) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Agent not found"})
		return
	}
	if s.journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Trade journal disabled"})
		return
	}

	limit := defaultTradeLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxTradeLimit)
	}

	trades, err := s.journal.GetRecentTrades(id, limit)
	if err != nil {
		s.logger.Error("get recent trades", "agent", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "journal unavailable"})
		return
	}
	filled, err := s.journal.CountTradesByStatus(id, string(models.TradeFilled))
	if err != nil {
		s.logger.Warn("count filled trades", "agent", id, "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "filled_total": filled})
}

func (s *Server) handleAgentSnapshot(c *gin.Context) {
	id := c.Param("id")
	if s.journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Trade journal disabled"})
		return
	}
	snapshot, err := s.journal.GetLatestSnapshot(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "No snapshot recorded"})
		return
	}
	if err != nil {
		s.logger.Error("get latest snapshot", "agent", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "journal unavailable"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleEngineStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Status())
}

func (s *Server) handleEngineStart(c *gin.Context) {
	started := s.engine.Start(s.ctx)
	if started {
		s.logger.Info("engine started via api")
	}
	c.JSON(http.StatusOK, gin.H{"started": started, "is_running": s.engine.Status().IsRunning})
}

func (s *Server) handleEngineStop(c *gin.Context) {
	stopped := s.engine.Stop()
	if stopped {
		s.logger.Info("engine stop requested via api")
	}
	c.JSON(http.StatusOK, gin.H{"stopped": stopped})
}

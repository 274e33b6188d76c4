package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleHealth(c *gin.Context) {
	health := gin.H{"status": "ok"}
	if s.repo != nil {
		if err := s.repo.HealthCheck(c.Request.Context()); err != nil {
			health["status"] = "degraded"
			health["database"] = err.Error()
		} else {
			health["database"] = "ok"
		}
	}
	c.JSON(http.StatusOK, health)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.orch.GetStatus())
}

func (s *Server) handleStart(c *gin.Context) {
	s.orch.Start()
	c.JSON(http.StatusOK, gin.H{"running": true})
}

func (s *Server) handleStop(c *gin.Context) {
	s.orch.Stop()
	c.JSON(http.StatusOK, gin.H{"running": false})
}

func (s *Server) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.orch.Config())
}

// handleUpdateConfig applies a partial config update: the request body is
// decoded over a deep copy of the current config, so omitted fields keep
// their values and a rejected body never touches the live config. The
// merged result must still validate.
func (s *Server) handleUpdateConfig(c *gin.Context) {
	updated := s.orch.Config().Clone()

	if err := json.NewDecoder(c.Request.Body).Decode(updated); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid config payload: " + err.Error()})
		return
	}
	if err := s.orch.UpdateConfig(updated); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handlePositions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"positions": s.orch.GetStatus().ActivePositions})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.orch.GetStatus().DailyStats)
}

// handleTrades returns the archived trade history, newest first.
func (s *Server) handleTrades(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusOK, gin.H{"trades": []interface{}{}})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	trades, err := s.repo.GetRecentTrades(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to query trade history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query trade history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

package apihttp

import (
	"errors"
	"net/http"
	"strings"

	"fxagent/internal/model"
	"fxagent/internal/workflow"

	"github.com/gin-gonic/gin"
)

type handlers struct {
	analyzer Analyzer
	info     Info
}

type analyzeRequest struct {
	Query string `json:"query"`
}

var endpoints = []string{
	"GET /health",
	"GET /info",
	"POST /analyze",
	"POST /analyze/stream",
	"GET /analyze/stream?query=",
	"GET /metrics",
}

func (h *handlers) register(r gin.IRouter) {
	r.GET("/", h.handleRoot)
	r.GET("/health", h.handleHealth)
	r.GET("/info", h.handleInfo)
	r.POST("/analyze", h.handleAnalyze)
	r.POST("/analyze/stream", h.handleStreamPost)
	r.GET("/analyze/stream", h.handleStreamGet)
}

func (h *handlers) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":      serviceName,
		"version":   h.info.Version,
		"endpoints": endpoints,
	})
}

func (h *handlers) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":               "ok",
		"version":              h.info.Version,
		"synthesis_configured": h.info.SynthesisConfigured,
	})
}

func (h *handlers) handleInfo(c *gin.Context) {
	rs := h.info.Risk
	t := h.info.Timeouts
	c.JSON(http.StatusOK, gin.H{
		"name":    serviceName,
		"version": h.info.Version,
		"risk": gin.H{
			"account_balance":    rs.AccountBalance,
			"max_risk_per_trade": rs.MaxRiskPerTrade,
			"min_stop_pips":      rs.MinStopPips,
			"max_stop_pips":      rs.MaxStopPips,
			"min_reward_risk":    rs.MinRewardRisk,
			"pip_value_per_lot":  rs.PipValuePerLot,
			"setup_task":         rs.SetupTask,
		},
		"timeouts": gin.H{
			"parse_seconds":     t.ParseSeconds,
			"task_seconds":      t.TaskSeconds,
			"synthesis_seconds": t.SynthesisSeconds,
			"run_seconds":       t.RunSeconds,
			"per_task":          t.PerTask,
		},
		"tasks": h.analyzer.Tasks(),
		"workflow": gin.H{
			"states": model.AllStates(),
			"edges":  model.Edges(),
		},
	})
}

func (h *handlers) handleAnalyze(c *gin.Context) {
	query, ok := bindQuery(c)
	if !ok {
		return
	}
	state, err := h.analyzer.Analyze(c.Request.Context(), query)
	if errors.Is(err, workflow.ErrCancelled) {
		// client is gone, nobody reads the body
		c.Status(http.StatusRequestTimeout)
		return
	}
	if state.State == model.StateFailed {
		c.JSON(http.StatusBadGateway, state)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *handlers) handleStreamPost(c *gin.Context) {
	query, ok := bindQuery(c)
	if !ok {
		return
	}
	h.serveStream(c, query)
}

func (h *handlers) handleStreamGet(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}
	h.serveStream(c, query)
}

func bindQuery(c *gin.Context) (string, bool) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return "", false
	}
	return query, true
}

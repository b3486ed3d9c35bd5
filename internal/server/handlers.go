package server

import (
	"embed"
	"fmt"
	"net/http"
	"time"

	"imagegen/internal/catalog"
	"imagegen/internal/core"
	"imagegen/internal/metrics"

	"github.com/gin-gonic/gin"
)

// indexPage holds the embedded generation UI.
//
//go:embed static/index.html
var indexPage embed.FS

func (s *Server) showIndexPage(c *gin.Context) {
	data, err := indexPage.ReadFile("static/index.html")
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to load page")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", data)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"models":      len(s.models.List()),
		"enhancement": s.processor.EnhancementEnabled(),
		"backend":     s.generatorConfigured,
	})
}

func (s *Server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, catalog.Listing(s.models, s.styles, s.config.DefaultModelID))
}

func (s *Server) generate(c *gin.Context) {
	var request core.PromptRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, core.ErrorResponse{Error: "invalid request body", Kind: string(core.KindBadRequest)})
		return
	}
	if request.AccessCode == "" {
		request.AccessCode = c.GetHeader(core.HeaderAccessCode)
	}

	result, err := s.dispatcher.Handle(c.Request.Context(), request)
	if err != nil {
		s.config.Logger.Debug("Generation request from %s failed (%s): %v", c.ClientIP(), core.KindOf(err), err)
		s.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type quotaUsage struct {
	Model string `json:"model"`
	Name  string `json:"name"`
	Used  int    `json:"used"`
	Limit int    `json:"limit"`
}

func (s *Server) getStatsData(c *gin.Context) {
	stats := s.metricsService.GetGenerationStats()
	periodStats := metrics.GetPeriodStats(stats.History, 24, 24*7, 24*30)
	currentQPS := s.metricsService.GetQPS()

	quotas := make([]quotaUsage, 0, len(s.models.List()))
	for _, m := range s.models.List() {
		used, err := s.limiter.Usage(c.Request.Context(), m.ID)
		if err != nil {
			s.config.Logger.Warn("Failed to read quota usage for %s: %v", m.ID, err)
			used = -1
		}
		quotas = append(quotas, quotaUsage{Model: m.ID, Name: m.DisplayName, Used: used, Limit: s.limiter.Quota(m.ID)})
	}

	c.JSON(http.StatusOK, gin.H{
		"currentTime":         time.Now().Format(core.TimeFormatDateTime),
		"currentQPS":          fmt.Sprintf("%.3f", currentQPS),
		"totalRequests":       stats.TotalRequests,
		"successfulRequests":  stats.SuccessfulRequests,
		"failedRequests":      stats.FailedRequests,
		"quotaRejections":     stats.QuotaRejections,
		"enhancementFailures": stats.EnhancementFailures,
		"enhancements":        s.metricsService.SuccessfulEnhancements(),
		"cacheHitRate":        s.metricsService.CacheHitRate(),
		"totalRecords":        len(stats.History),
		"stats24h":            periodStats[24],
		"stats7d":             periodStats[24*7],
		"stats30d":            periodStats[24*30],
		"models":              metrics.GetModelUsage(stats.History),
		"quota":               quotas,
	})
}

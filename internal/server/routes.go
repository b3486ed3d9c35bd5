package server

import (
	"github.com/gin-gonic/gin"
)

func (s *Server) setupRoutes() {
	gin.SetMode(s.ginMode)
	s.router = gin.New()

	s.router.Use(gin.Logger())
	s.router.Use(gin.Recovery())
	s.router.Use(s.corsMiddleware())
	s.router.Use(s.maxBodySizeMiddleware())

	s.router.GET("/", s.showIndexPage)
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/config", s.getConfig)
	s.router.GET("/api/stats", s.getStatsData)

	// per-IP throttling applies to generation only
	s.router.POST("/generate", s.rateLimitMiddleware(), s.generate)
}

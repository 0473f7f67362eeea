package api

import (
	"github.com/gin-gonic/gin"
	"github.com/playmatatu/bumper/internal/api/handlers"
	"github.com/playmatatu/bumper/internal/config"
	"github.com/playmatatu/bumper/internal/game"
	"github.com/playmatatu/bumper/internal/middleware"
	"github.com/playmatatu/bumper/internal/ws"
	"go.uber.org/zap"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, mm *game.MatchManager, hub *ws.Hub, cfg *config.Config, logger *zap.Logger) {
	router.Use(middleware.CORSMiddleware(cfg, logger))

	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck(mm))
		v1.POST("/simulate", handlers.Simulate(mm))

		match := v1.Group("/match")
		{
			match.POST("", handlers.CreateMatch(mm, logger))
			match.POST("/:token/join", handlers.JoinMatch(mm, logger))
			match.GET("/:token", handlers.PlayerAuth(cfg), handlers.GetMatchState(mm))
			match.GET("/:token/shots", handlers.PlayerAuth(cfg), handlers.GetShotHistory(mm, logger))
			match.GET("/:token/ws", middleware.WebSocketCORSCheck(cfg), hub.HandleWebSocket)
		}
	}
}

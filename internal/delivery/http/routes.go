package http

import (
	"net/http"

	"github.com/bytelense/backend/config"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SetupRouter creates and configures the Gin router.
// metricsHandler may be nil, in which case /metrics is not served.
func SetupRouter(cfg *config.Config, handler *Handler, metricsHandler http.Handler, logger zerolog.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	api := router.Group("/api")
	{
		api.GET("/config", handler.ClientConfig)
	}

	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/login", handler.Login)
			auth.POST("/onboard", handler.Onboard)
			auth.GET("/profile/:name", handler.GetProfile)
			auth.PATCH("/profile/:name", handler.UpdateProfile)
		}

		v1.POST("/scan", handler.Scan)
	}

	return router
}

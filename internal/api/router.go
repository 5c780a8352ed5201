// Package api exposes the HTTP surface: job submission, status polling, and
// access to output artifacts.
package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/eyu/animal-counter/internal/api/handler"
	"github.com/eyu/animal-counter/internal/api/middleware"
	"github.com/eyu/animal-counter/internal/logger"
	"github.com/eyu/animal-counter/internal/pipeline"
)

// RouterConfig carries the wiring the router needs.
type RouterConfig struct {
	Mode       string
	UploadDir  string
	ResultsDir string
	CORS       middleware.CORSConfig

	// DB, when set, is pinged by the health endpoint.
	DB *gorm.DB
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(controller *pipeline.Controller, log *logger.Logger, cfg RouterConfig) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cfg.CORS))

	healthHandler := handler.NewHealthHandler(cfg.DB)
	jobHandler := handler.NewJobHandler(controller, cfg.UploadDir)

	// Health check
	r.GET("/health", healthHandler.Health)

	// Job lifecycle
	r.POST("/process", jobHandler.Process)
	r.GET("/all", jobHandler.List)
	r.GET("/results/:id", jobHandler.Get)

	// Output artifacts (summaries, annotated videos)
	if cfg.ResultsDir != "" {
		r.Static("/outputs", cfg.ResultsDir)
	}

	return r
}

package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/rivergarden/training-portal/internal/http/handlers"
	httpMW "github.com/rivergarden/training-portal/internal/http/middleware"
	"github.com/rivergarden/training-portal/internal/observability"
	"github.com/rivergarden/training-portal/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	CORSOrigins    []string
	Metrics        *observability.Metrics
	AuthMiddleware *httpMW.AuthMiddleware

	PlayerHandler  *httpH.PlayerHandler
	OfflineHandler *httpH.OfflineHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "training-portal"
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	protected := r.Group("/api")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Course player
		if cfg.PlayerHandler != nil {
			protected.POST("/player/sessions", cfg.PlayerHandler.Open)
			protected.GET("/player/sessions/:id", cfg.PlayerHandler.Get)
			protected.POST("/player/sessions/:id/position", cfg.PlayerHandler.Position)
			protected.POST("/player/sessions/:id/ended", cfg.PlayerHandler.Ended)
			protected.POST("/player/sessions/:id/seek", cfg.PlayerHandler.Seek)
			protected.POST("/player/sessions/:id/attendance", cfg.PlayerHandler.Attendance)
			protected.POST("/player/sessions/:id/complete", cfg.PlayerHandler.Complete)
			protected.DELETE("/player/sessions/:id", cfg.PlayerHandler.Close)
		}

		// Offline queue
		if cfg.OfflineHandler != nil {
			protected.POST("/offline/sync", cfg.OfflineHandler.Sync)
		}
	}

	return r
}

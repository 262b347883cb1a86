package app

import (
	"github.com/rivergarden/training-portal/internal/http"
	httpH "github.com/rivergarden/training-portal/internal/http/handlers"
	httpMW "github.com/rivergarden/training-portal/internal/http/middleware"
	"github.com/rivergarden/training-portal/internal/observability"
	"github.com/rivergarden/training-portal/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health  *httpH.HealthHandler
	Player  *httpH.PlayerHandler
	Offline *httpH.OfflineHandler
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	if cfg.JWTSecret == "" {
		log.Warn("PORTAL_JWT_SECRET not set; caller tokens are not signature-checked")
	}
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, cfg.JWTSecret),
	}
}

func wireHandlers(log *logger.Logger, svcs Services, clients Clients) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:  httpH.NewHealthHandler(clients.Prober),
		Player:  httpH.NewPlayerHandler(log, svcs.Player),
		Offline: httpH.NewOfflineHandler(svcs.OfflineSync),
	}
}

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *http.Server {
	return http.NewServer(http.RouterConfig{
		Log:            log,
		ServiceName:    cfg.Otel.ServiceName,
		CORSOrigins:    cfg.CORSOrigins,
		Metrics:        metrics,
		AuthMiddleware: middleware.Auth,
		PlayerHandler:  handlers.Player,
		OfflineHandler: handlers.Offline,
		HealthHandler:  handlers.Health,
	})
}

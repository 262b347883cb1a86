package app

import (
	"github.com/rivergarden/training-portal/internal/platform/logger"
	"github.com/rivergarden/training-portal/internal/progress"
	"github.com/rivergarden/training-portal/internal/services"
)

type Services struct {
	Player      services.PlayerService
	OfflineSync services.OfflineSyncService
}

func wireServices(log *logger.Logger, cfg Config, clients Clients) Services {
	log.Info("Wiring services...")
	strategy := progress.DefaultStrategyOptions()
	strategy.LiveRequiresAttendance = cfg.LiveRequiresAttendance
	strategy.SeekTolerancePercent = cfg.SeekTolerancePercent
	strategy.AllowRewind = cfg.SeekAllowRewind

	return Services{
		Player: services.NewPlayerService(log, clients.Portal, clients.Prober, clients.OfflineStore, services.PlayerConfig{
			Strategy:    strategy,
			AutoEnroll:  cfg.AutoEnroll,
			IdleTTL:     cfg.SessionIdleTTL,
			SaveTimeout: cfg.SaveTimeout,
		}),
		OfflineSync: services.NewOfflineSyncService(log, clients.Portal, clients.OfflineStore),
	}
}

package app

import (
	"fmt"

	"github.com/rivergarden/training-portal/internal/clients/portal"
	"github.com/rivergarden/training-portal/internal/data/repos/offline"
	"github.com/rivergarden/training-portal/internal/platform/logger"
)

type Clients struct {
	Portal       portal.Client
	Prober       *portal.Prober
	OfflineStore offline.Store
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	pc, err := portal.NewClient(log, portal.Options{
		BaseURL: cfg.PortalBaseURL,
		Timeout: cfg.PortalTimeout,
		Retries: cfg.PortalRetries,
	})
	if err != nil {
		return Clients{}, fmt.Errorf("init portal client: %w", err)
	}

	store, err := resolveOfflineStore(log, cfg)
	if err != nil {
		return Clients{}, fmt.Errorf("init offline store: %w", err)
	}

	return Clients{
		Portal:       pc,
		Prober:       portal.NewProber(log, pc, cfg.ProbeTTL),
		OfflineStore: store,
	}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.OfflineStore != nil {
		_ = c.OfflineStore.Close()
	}
}

package services

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/rivergarden/training-portal/internal/data/repos/offline"
	"github.com/rivergarden/training-portal/internal/domain"
	"github.com/rivergarden/training-portal/internal/observability"
	"github.com/rivergarden/training-portal/internal/pkg/httpx"
	"github.com/rivergarden/training-portal/internal/platform/logger"
)

type SyncFailure struct {
	CourseID int64  `json:"course_id"`
	Error    string `json:"error"`
}

type SyncReport struct {
	Synced  []int64       `json:"synced"`
	Dropped []string      `json:"dropped,omitempty"`
	Failed  []SyncFailure `json:"failed,omitempty"`
	// Pending counts records left in place because the portal went away mid-flush.
	Pending int `json:"pending"`
}

// OfflineSyncService replays buffered progress to the portal. It runs outside any tracker.
type OfflineSyncService interface {
	Flush(ctx context.Context, sess domain.Session) (SyncReport, error)
}

type offlineSyncService struct {
	log    *logger.Logger
	portal PortalFactory
	store  offline.Store
}

func NewOfflineSyncService(log *logger.Logger, pf PortalFactory, store offline.Store) OfflineSyncService {
	if log == nil {
		log = logger.Nop()
	}
	return &offlineSyncService{log: log.With("service", "OfflineSyncService"), portal: pf, store: store}
}

// Flush pushes every offline-progress record of the user and deletes the ones the portal
// accepted. Replays are safe because the portal keeps the larger value.
func (s *offlineSyncService) Flush(ctx context.Context, sess domain.Session) (SyncReport, error) {
	ctx, span := observability.Tracer().Start(ctx, "OfflineSyncService.Flush")
	defer span.End()

	report := SyncReport{Synced: []int64{}}
	defer func() {
		m := observability.Current()
		m.AddOfflineSync("synced", len(report.Synced))
		m.AddOfflineSync("dropped", len(report.Dropped))
		m.AddOfflineSync("failed", len(report.Failed))
		m.AddOfflineSync("pending", report.Pending)
	}()
	if s.store == nil {
		return report, fmt.Errorf("offline store not configured")
	}
	bucket := s.store.Bucket(sess.Namespace())
	entries, err := bucket.List(ctx, domain.OfflineProgressKeyPrefix)
	if err != nil {
		return report, fmt.Errorf("list offline records: %w", err)
	}
	span.SetAttributes(attribute.Int("offline.records", len(entries)))
	api := s.portal.ForSession(sess)

	for i, e := range entries {
		courseID, ok := domain.CourseIDFromOfflineKey(e.Key)
		var rec domain.OfflineProgressRecord
		if !ok || json.Unmarshal(e.Value, &rec) != nil || rec.CourseID != courseID {
			s.log.Warn("dropping corrupt offline record", "key", e.Key)
			if err := bucket.Delete(ctx, e.Key); err != nil {
				return report, fmt.Errorf("delete offline record %s: %w", e.Key, err)
			}
			report.Dropped = append(report.Dropped, e.Key)
			continue
		}

		if _, err := api.SetProgress(ctx, courseID, rec.Progress); err != nil {
			if httpx.IsNetworkError(err) {
				report.Pending = len(entries) - i
				s.log.Warn("portal unreachable, offline sync paused", "pending", report.Pending, "error", err)
				return report, nil
			}
			report.Failed = append(report.Failed, SyncFailure{CourseID: courseID, Error: err.Error()})
			s.log.Warn("offline record rejected", "course_id", courseID, "progress", rec.Progress, "error", err)
			continue
		}
		// A tracker may have buffered a newer value while this one was in flight.
		removed, err := bucket.DeleteIfValue(ctx, e.Key, e.Value)
		if err != nil {
			return report, fmt.Errorf("delete offline record %s: %w", e.Key, err)
		}
		if !removed {
			s.log.Info("offline record changed during sync, kept", "course_id", courseID)
		}
		report.Synced = append(report.Synced, courseID)
	}
	s.log.Info("offline sync finished", "synced", len(report.Synced), "failed", len(report.Failed), "dropped", len(report.Dropped))
	return report, nil
}

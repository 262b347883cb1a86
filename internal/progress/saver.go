package progress

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rivergarden/training-portal/internal/domain"
	"github.com/rivergarden/training-portal/internal/pkg/httpx"
	"github.com/rivergarden/training-portal/internal/platform/logger"
)

// ProgressWriter is the enrollment service's progress endpoint.
type ProgressWriter interface {
	SetProgress(ctx context.Context, courseID int64, progress int) (domain.ProgressUpdate, error)
}

type CourseCompleter interface {
	CompleteCourse(ctx context.Context, courseID int64) error
}

// Connectivity answers whether the portal is reachable right now.
type Connectivity interface {
	Online(ctx context.Context) bool
}

type ConnectivityFunc func(ctx context.Context) bool

func (f ConnectivityFunc) Online(ctx context.Context) bool { return f(ctx) }

var AlwaysOnline Connectivity = ConnectivityFunc(func(context.Context) bool { return true })

// Bucket is the slice of the local durable cache the saver needs: one user's namespace.
type Bucket interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

type SaveOutcome string

const (
	OutcomeSynced   SaveOutcome = "synced"
	OutcomeBuffered SaveOutcome = "buffered"
	OutcomeFailed   SaveOutcome = "failed"
)

type SaveResult struct {
	Outcome SaveOutcome
	Update  domain.ProgressUpdate
}

// ProgressSaver is what the tracker pushes derived progress through.
type ProgressSaver interface {
	Save(ctx context.Context, courseID int64, progress int) (SaveResult, error)
}

// Saver pushes progress to the portal when online and into the offline bucket otherwise.
type Saver struct {
	writer ProgressWriter
	conn   Connectivity
	bucket Bucket
	log    *logger.Logger
}

func NewSaver(writer ProgressWriter, conn Connectivity, bucket Bucket, log *logger.Logger) *Saver {
	if conn == nil {
		conn = AlwaysOnline
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Saver{writer: writer, conn: conn, bucket: bucket, log: log.With("service", "ProgressSaver")}
}

func (s *Saver) Save(ctx context.Context, courseID int64, progress int) (SaveResult, error) {
	progress = clampProgress(progress)
	if !s.conn.Online(ctx) {
		if err := s.buffer(ctx, courseID, progress); err != nil {
			return SaveResult{Outcome: OutcomeFailed}, newError(KindSave, courseID, err)
		}
		s.log.Debug("progress buffered offline", "course_id", courseID, "progress", progress)
		return SaveResult{Outcome: OutcomeBuffered}, nil
	}

	upd, err := s.writer.SetProgress(ctx, courseID, progress)
	if err == nil {
		return SaveResult{Outcome: OutcomeSynced, Update: upd}, nil
	}
	// No response at all looks exactly like a dropped connection.
	if httpx.IsNetworkError(err) && s.bucket != nil {
		if bufErr := s.buffer(ctx, courseID, progress); bufErr == nil {
			s.log.Warn("portal unreachable, progress buffered offline", "course_id", courseID, "progress", progress, "error", err)
			return SaveResult{Outcome: OutcomeBuffered}, nil
		}
	}
	return SaveResult{Outcome: OutcomeFailed}, newError(KindSave, courseID, err)
}

// buffer overwrites the course's offline record; only the newest value matters.
func (s *Saver) buffer(ctx context.Context, courseID int64, progress int) error {
	if s.bucket == nil {
		return fmt.Errorf("offline store not configured")
	}
	raw, err := json.Marshal(domain.OfflineProgressRecord{CourseID: courseID, Progress: progress})
	if err != nil {
		return err
	}
	if err := s.bucket.Set(ctx, domain.OfflineProgressKey(courseID), raw); err != nil {
		return fmt.Errorf("write offline record: %w", err)
	}
	return nil
}

// ReadOfflineRecord returns the buffered record for a course, or nil when there is none.
// Corrupt entries are treated as absent.
func ReadOfflineRecord(ctx context.Context, bucket Bucket, courseID int64) (*domain.OfflineProgressRecord, error) {
	if bucket == nil {
		return nil, nil
	}
	raw, ok, err := bucket.Get(ctx, domain.OfflineProgressKey(courseID))
	if err != nil || !ok {
		return nil, err
	}
	var rec domain.OfflineProgressRecord
	if err := json.Unmarshal(raw, &rec); err != nil || rec.CourseID != courseID {
		return nil, nil
	}
	return &rec, nil
}

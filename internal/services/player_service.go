package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/rivergarden/training-portal/internal/clients/portal"
	"github.com/rivergarden/training-portal/internal/data/repos/offline"
	"github.com/rivergarden/training-portal/internal/domain"
	"github.com/rivergarden/training-portal/internal/observability"
	"github.com/rivergarden/training-portal/internal/platform/logger"
	"github.com/rivergarden/training-portal/internal/progress"
)

var ErrSessionNotFound = errors.New("player session not found")

// PortalFactory hands out the portal API bound to one user's credentials.
type PortalFactory interface {
	ForSession(sess domain.Session) portal.API
}

type PlayerConfig struct {
	Strategy   progress.StrategyOptions
	AutoEnroll bool
	// IdleTTL closes sessions that saw no request for this long. Zero disables the sweep.
	IdleTTL     time.Duration
	SaveTimeout time.Duration
}

// PlayerSession is one open course player.
type PlayerSession struct {
	ID       uuid.UUID
	Subject  string
	Course   domain.Course
	Tracker  *progress.Tracker
	OpenedAt time.Time

	lastSeen atomic.Int64
}

func (p *PlayerSession) touch(now time.Time) { p.lastSeen.Store(now.UnixNano()) }

func (p *PlayerSession) LastSeen() time.Time { return time.Unix(0, p.lastSeen.Load()) }

type PlayerService interface {
	Open(ctx context.Context, sess domain.Session, courseID int64) (*PlayerSession, error)
	Get(sess domain.Session, id uuid.UUID) (*PlayerSession, error)
	Close(sess domain.Session, id uuid.UUID) error
	SweepIdle(now time.Time) int
	StartJanitor(ctx context.Context)
	CloseAll()
}

type playerService struct {
	log    *logger.Logger
	portal PortalFactory
	conn   progress.Connectivity
	store  offline.Store
	cfg    PlayerConfig
	now    func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*PlayerSession
}

func NewPlayerService(log *logger.Logger, pf PortalFactory, conn progress.Connectivity, store offline.Store, cfg PlayerConfig) PlayerService {
	if log == nil {
		log = logger.Nop()
	}
	return &playerService{
		log:      log.With("service", "PlayerService"),
		portal:   pf,
		conn:     conn,
		store:    store,
		cfg:      cfg,
		now:      time.Now,
		sessions: map[uuid.UUID]*PlayerSession{},
	}
}

func (s *playerService) Open(ctx context.Context, sess domain.Session, courseID int64) (*PlayerSession, error) {
	ctx, span := observability.Tracer().Start(ctx, "PlayerService.Open")
	defer span.End()
	span.SetAttributes(attribute.Int64("course.id", courseID))

	ps, err := s.open(ctx, sess, courseID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return nil, err
	}
	span.SetAttributes(attribute.String("course.delivery", string(ps.Course.Delivery)))
	return ps, nil
}

func (s *playerService) open(ctx context.Context, sess domain.Session, courseID int64) (*PlayerSession, error) {
	if courseID <= 0 {
		return nil, progress.LoadError(courseID, fmt.Errorf("%w: invalid id", progress.ErrCourseMissing))
	}
	api := s.portal.ForSession(sess)

	var (
		course      domain.Course
		enrollments []domain.Enrollment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := api.GetCourse(gctx, courseID)
		if err != nil {
			return err
		}
		course = c
		return nil
	})
	g.Go(func() error {
		list, err := api.ListEnrollments(gctx)
		if err != nil {
			return err
		}
		enrollments = list
		return nil
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, portal.ErrNotFound) {
			return nil, progress.LoadError(courseID, fmt.Errorf("%w: %v", progress.ErrCourseMissing, err))
		}
		return nil, progress.LoadError(courseID, err)
	}

	enr, found := findEnrollment(enrollments, courseID)
	if !found {
		if !s.cfg.AutoEnroll {
			return nil, progress.LoadError(courseID, errors.New("not enrolled in course"))
		}
		id, err := api.Enroll(ctx, courseID)
		if err != nil {
			return nil, progress.LoadError(courseID, err)
		}
		s.log.Info("auto-enrolled", "course_id", courseID, "enrollment_id", id)
		enr = domain.Enrollment{ID: id, CourseID: courseID, Status: domain.EnrollmentNotStarted}
	}

	var (
		bucket offline.Bucket
		resume int
	)
	if s.store != nil {
		bucket = s.store.Bucket(sess.Namespace())
		if rec, err := progress.ReadOfflineRecord(ctx, bucket, courseID); err != nil {
			s.log.Warn("read offline record failed", "course_id", courseID, "error", err)
		} else if rec != nil && rec.Progress > enr.Progress && !enr.IsComplete() {
			resume = rec.Progress
		}
	}

	var saverBucket progress.Bucket
	if bucket != nil {
		saverBucket = bucket
	}
	saver := progress.NewSaver(api, s.conn, saverBucket, s.log)
	tracker := progress.NewTracker(progress.TrackerConfig{
		Course:      course,
		Enrollment:  enr,
		Strategy:    progress.NewStrategy(course.Delivery, s.cfg.Strategy),
		Saver:       saver,
		Completer:   api,
		Log:         s.log,
		Resume:      resume,
		SaveTimeout: s.cfg.SaveTimeout,
	})

	now := s.now()
	ps := &PlayerSession{
		ID:       uuid.New(),
		Subject:  sess.Subject,
		Course:   course,
		Tracker:  tracker,
		OpenedAt: now,
	}
	ps.touch(now)

	s.mu.Lock()
	s.sessions[ps.ID] = ps
	observability.Current().SetPlayerSessions(len(s.sessions))
	s.mu.Unlock()

	s.log.Info("player session opened", "session_id", ps.ID, "course_id", courseID, "delivery", course.Delivery, "progress", tracker.CurrentProgress(), "resumed", resume > 0)
	return ps, nil
}

func (s *playerService) Get(sess domain.Session, id uuid.UUID) (*PlayerSession, error) {
	s.mu.Lock()
	ps, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok || ps.Subject != sess.Subject {
		return nil, ErrSessionNotFound
	}
	ps.touch(s.now())
	return ps, nil
}

func (s *playerService) Close(sess domain.Session, id uuid.UUID) error {
	s.mu.Lock()
	ps, ok := s.sessions[id]
	if !ok || ps.Subject != sess.Subject {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	observability.Current().SetPlayerSessions(len(s.sessions))
	s.mu.Unlock()

	ps.Tracker.Close()
	s.log.Info("player session closed", "session_id", id, "course_id", ps.Course.ID)
	return nil
}

// SweepIdle closes sessions idle for longer than IdleTTL and reports how many it closed.
func (s *playerService) SweepIdle(now time.Time) int {
	if s.cfg.IdleTTL <= 0 {
		return 0
	}
	var idle []*PlayerSession
	s.mu.Lock()
	for id, ps := range s.sessions {
		if now.Sub(ps.LastSeen()) > s.cfg.IdleTTL {
			idle = append(idle, ps)
			delete(s.sessions, id)
		}
	}
	observability.Current().SetPlayerSessions(len(s.sessions))
	s.mu.Unlock()
	for _, ps := range idle {
		ps.Tracker.Close()
		s.log.Info("idle player session closed", "session_id", ps.ID, "course_id", ps.Course.ID)
	}
	return len(idle)
}

func (s *playerService) StartJanitor(ctx context.Context) {
	if s.cfg.IdleTTL <= 0 {
		return
	}
	every := s.cfg.IdleTTL / 2
	if every < time.Second {
		every = time.Second
	}
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.SweepIdle(s.now())
			}
		}
	}()
}

// CloseAll tears every session down and waits for in-flight saves to drain.
func (s *playerService) CloseAll() {
	s.mu.Lock()
	all := make([]*PlayerSession, 0, len(s.sessions))
	for id, ps := range s.sessions {
		all = append(all, ps)
		delete(s.sessions, id)
	}
	observability.Current().SetPlayerSessions(0)
	s.mu.Unlock()
	for _, ps := range all {
		ps.Tracker.Close()
	}
	for _, ps := range all {
		ps.Tracker.Wait()
	}
}

func findEnrollment(list []domain.Enrollment, courseID int64) (domain.Enrollment, bool) {
	for _, e := range list {
		if e.CourseID == courseID {
			return e, true
		}
	}
	return domain.Enrollment{}, false
}

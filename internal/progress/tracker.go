package progress

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rivergarden/training-portal/internal/domain"
	"github.com/rivergarden/training-portal/internal/observability"
	"github.com/rivergarden/training-portal/internal/platform/logger"
)

type TrackerConfig struct {
	Course     domain.Course
	Enrollment domain.Enrollment
	Strategy   Strategy
	Saver      ProgressSaver
	Completer  CourseCompleter
	Log        *logger.Logger
	// Resume is a locally buffered progress value that the portal has not seen yet. It only
	// raises the local value and is pushed by the first save; gate and confirmed progress
	// follow Enrollment alone.
	Resume int
	// SaveTimeout bounds each background progress write. Zero leaves it to the client.
	SaveTimeout time.Duration
}

type Snapshot struct {
	CourseID          int64                   `json:"course_id"`
	Delivery          domain.DeliveryType     `json:"delivery_type"`
	Progress          int                     `json:"progress"`
	ConfirmedProgress int                     `json:"confirmed_progress"`
	Status            domain.EnrollmentStatus `json:"status"`
	Gate              GateState               `json:"gate"`
	Completing        bool                    `json:"completing"`
	Saving            bool                    `json:"saving"`
	LastSave          SaveOutcome             `json:"last_save,omitempty"`
	Position          domain.Position         `json:"position"`
	Closed            bool                    `json:"closed"`
}

type SeekResult struct {
	Allowed  bool    `json:"allowed"`
	Position float64 `json:"position"`
}

type completion struct {
	done chan struct{}
	err  error
}

// Tracker is the view-model of one open course player. Every event is applied under a
// single lock, in call order. Progress writes run in the background, one at a time; a
// write never carries a smaller value than the one before it.
type Tracker struct {
	mu sync.Mutex
	wg sync.WaitGroup

	courseID    int64
	strategy    Strategy
	saver       ProgressSaver
	completer   CourseCompleter
	log         *logger.Logger
	saveTimeout time.Duration

	progress  int
	confirmed int
	status    domain.EnrollmentStatus
	gate      Gate
	position  domain.Position
	furthest  float64

	saving     bool
	lastSave   SaveOutcome
	completing *completion
	closed     bool
}

func NewTracker(cfg TrackerConfig) *Tracker {
	strategy := cfg.Strategy
	if strategy == nil {
		strategy = NewStrategy(cfg.Course.Delivery, DefaultStrategyOptions())
	}
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}
	status := cfg.Enrollment.Status
	if status == "" {
		status = domain.EnrollmentNotStarted
	}
	initial := clampProgress(cfg.Enrollment.Progress)
	complete := cfg.Enrollment.IsComplete()

	t := &Tracker{
		courseID:    cfg.Course.ID,
		strategy:    strategy,
		saver:       cfg.Saver,
		completer:   cfg.Completer,
		log:         log.With("service", "ProgressTracker", "course_id", cfg.Course.ID, "delivery", strategy.Delivery()),
		saveTimeout: cfg.SaveTimeout,
		progress:    initial,
		confirmed:   initial,
		status:      status,
		gate:        NewGate(complete),
		position:    domain.Position{Total: cfg.Course.TotalUnits},
	}
	if resume := clampProgress(cfg.Resume); !complete && resume > t.progress {
		t.progress = resume
		if t.status == domain.EnrollmentNotStarted {
			t.status = domain.EnrollmentInProgress
		}
		t.scheduleSaveLocked()
	}
	if t.gate.State() == GateLocked && strategy.Unlocks(SignalOpened, t.progress) {
		t.gate.Unlock()
	}
	return t
}

func (t *Tracker) CourseID() int64 { return t.courseID }

func (t *Tracker) Delivery() domain.DeliveryType { return t.strategy.Delivery() }

func (t *Tracker) CurrentProgress() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

func (t *Tracker) GateState() GateState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gate.State()
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// OnPositionChanged handles page turns and playback time updates.
func (t *Tracker) OnPositionChanged(pos domain.Position) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return t.snapshotLocked()
	}
	if !(pos.Total > 0) && t.position.Total > 0 {
		pos.Total = t.position.Total
	}
	if pos.Current < 0 {
		pos.Current = 0
	}
	t.position = pos
	if pos.Current > t.furthest {
		t.furthest = pos.Current
	}
	t.advanceLocked(t.strategy.Derive(t.progress, pos), SignalProgress)
	return t.snapshotLocked()
}

// OnPlaybackEnded forces a video to 100 regardless of the last computed fraction.
func (t *Tracker) OnPlaybackEnded() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.strategy.Delivery() != domain.DeliveryVideo {
		return t.snapshotLocked()
	}
	if t.position.Total > 0 {
		t.position.Current = t.position.Total
		t.furthest = t.position.Total
	}
	t.advanceLocked(100, SignalEnded)
	return t.snapshotLocked()
}

// OnSeekAttempt applies or reverts a seek. While a video is locked, jumping past unseen
// content outside the final tolerance window is reverted to the position before the attempt.
func (t *Tracker) OnSeekAttempt(target float64) SeekResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	if target < 0 {
		target = 0
	}
	guard, guarded := t.strategy.(seekGuard)
	if t.closed || !guarded || t.gate.State() != GateLocked {
		if !t.closed {
			t.position.Current = target
		}
		return SeekResult{Allowed: true, Position: target}
	}
	if guard.AllowSeek(target, t.furthest, t.position.Total) {
		t.position.Current = target
		return SeekResult{Allowed: true, Position: target}
	}
	t.log.Debug("seek reverted", "target", target, "position", t.position.Current)
	return SeekResult{Allowed: false, Position: t.position.Current}
}

// AcknowledgeAttendance is the explicit attendance step of live sessions.
func (t *Tracker) AcknowledgeAttendance() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed && t.gate.State() == GateLocked && t.strategy.Unlocks(SignalAttendance, t.progress) {
		t.gate.Unlock()
		t.log.Info("attendance acknowledged, completion unlocked")
	}
	return t.snapshotLocked()
}

// OnCompleteRequested runs the user's "complete course" action. Requests that arrive while
// one is in flight wait for it instead of issuing another call.
func (t *Tracker) OnCompleteRequested(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return newError(KindCompletion, t.courseID, ErrTrackerClosed)
	}
	if c := t.completing; c != nil {
		t.mu.Unlock()
		select {
		case <-c.done:
			return c.err
		case <-ctx.Done():
			return newError(KindCompletion, t.courseID, ctx.Err())
		}
	}
	started, err := t.gate.Begin()
	if err != nil {
		t.mu.Unlock()
		return newError(KindGate, t.courseID, fmt.Errorf("%w: %s", err, t.strategy.LockedHint()))
	}
	if !started {
		t.mu.Unlock()
		return nil
	}
	c := &completion{done: make(chan struct{})}
	t.completing = c
	t.mu.Unlock()

	callErr := t.completer.CompleteCourse(ctx, t.courseID)
	result := "ok"
	if callErr != nil {
		result = "failed"
	}
	observability.Current().IncCompletion(string(t.strategy.Delivery()), result)

	t.mu.Lock()
	defer t.mu.Unlock()
	defer close(c.done)
	t.completing = nil
	if callErr != nil {
		c.err = newError(KindCompletion, t.courseID, callErr)
		if !t.closed {
			t.gate.Abort()
		}
		t.log.Warn("mark complete failed", "error", callErr)
		return c.err
	}
	if t.closed {
		return nil
	}
	t.gate.Confirm()
	t.status = domain.EnrollmentCompleted
	t.progress = 100
	if t.confirmed < 100 {
		t.scheduleSaveLocked()
	}
	t.log.Info("course completed")
	return nil
}

// Close tears the view down. In-flight requests finish but their results are dropped.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}

// Wait blocks until background progress writes have drained.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func (t *Tracker) advanceLocked(next int, sig Signal) {
	next = clampProgress(next)
	if next > t.progress {
		t.progress = next
		if t.status == domain.EnrollmentNotStarted {
			t.status = domain.EnrollmentInProgress
		}
		t.scheduleSaveLocked()
	}
	if t.gate.State() == GateLocked && t.strategy.Unlocks(sig, t.progress) {
		t.gate.Unlock()
		t.log.Info("completion unlocked", "progress", t.progress)
	}
}

// scheduleSaveLocked starts a write of the current value unless one is already in flight;
// finishSave picks up whatever accumulated meanwhile.
func (t *Tracker) scheduleSaveLocked() {
	if t.closed || t.saving || t.saver == nil {
		return
	}
	t.saving = true
	value := t.progress
	t.wg.Add(1)
	go t.runSave(value)
}

func (t *Tracker) runSave(value int) {
	defer t.wg.Done()
	ctx := context.Background()
	cancel := context.CancelFunc(func() {})
	if t.saveTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, t.saveTimeout)
	}
	start := time.Now()
	res, err := t.saver.Save(ctx, t.courseID, value)
	cancel()
	outcome := res.Outcome
	if err != nil {
		outcome = OutcomeFailed
	}
	observability.Current().ObserveProgressSave(string(t.strategy.Delivery()), string(outcome), time.Since(start))
	t.finishSave(value, res, err)
}

func (t *Tracker) finishSave(value int, res SaveResult, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.saving = false
	if t.closed {
		return
	}
	if err != nil {
		t.lastSave = OutcomeFailed
		t.log.Warn("progress save failed", "progress", value, "error", err)
	} else {
		t.lastSave = res.Outcome
		if res.Outcome == OutcomeSynced {
			confirmed := value
			if p := clampProgress(res.Update.Progress); p > confirmed {
				confirmed = p
			}
			if confirmed > t.confirmed {
				t.confirmed = confirmed
			}
		}
	}
	if t.progress > value {
		t.scheduleSaveLocked()
	}
}

func (t *Tracker) snapshotLocked() Snapshot {
	return Snapshot{
		CourseID:          t.courseID,
		Delivery:          t.strategy.Delivery(),
		Progress:          t.progress,
		ConfirmedProgress: t.confirmed,
		Status:            t.status,
		Gate:              t.gate.State(),
		Completing:        t.completing != nil,
		Saving:            t.saving,
		LastSave:          t.lastSave,
		Position:          t.position,
		Closed:            t.closed,
	}
}

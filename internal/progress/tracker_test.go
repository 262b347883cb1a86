package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rivergarden/training-portal/internal/domain"
	"github.com/rivergarden/training-portal/internal/platform/logger"
)

func newTestTracker(t *testing.T, course domain.Course, enr domain.Enrollment, saver ProgressSaver, completer CourseCompleter) *Tracker {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return NewTracker(TrackerConfig{
		Course:     course,
		Enrollment: enr,
		Saver:      saver,
		Completer:  completer,
		Log:        log,
	})
}

func assertIncreasing(t *testing.T, values []int) {
	t.Helper()
	for i := 1; i < len(values); i++ {
		if values[i] <= values[i-1] {
			t.Fatalf("saved values not strictly increasing: %v", values)
		}
	}
}

func TestTrackerProgressNeverDecreases(t *testing.T) {
	saver := &fakeSaver{}
	tr := newTestTracker(t, domain.Course{ID: 1, Delivery: domain.DeliveryDocument, TotalUnits: 10}, domain.Enrollment{}, saver, &fakeCompleter{})

	for _, page := range []float64{5, 3, 8, 2} {
		tr.OnPositionChanged(domain.Position{Current: page, Total: 10})
	}
	tr.Wait()

	if got := tr.CurrentProgress(); got != 80 {
		t.Fatalf("progress: want=80 got=%d", got)
	}
	values := saver.saved()
	assertIncreasing(t, values)
	if len(values) == 0 || values[len(values)-1] != 80 {
		t.Fatalf("last saved value: want=80 got=%v", values)
	}
	snap := tr.Snapshot()
	if snap.Status != domain.EnrollmentInProgress {
		t.Fatalf("status: want=%q got=%q", domain.EnrollmentInProgress, snap.Status)
	}
	if snap.ConfirmedProgress != 80 {
		t.Fatalf("confirmed: want=80 got=%d", snap.ConfirmedProgress)
	}
}

func TestTrackerSingleFlightSaveFollowsUp(t *testing.T) {
	block := make(chan struct{})
	saver := &fakeSaver{block: block}
	tr := newTestTracker(t, domain.Course{ID: 2, Delivery: domain.DeliveryDocument}, domain.Enrollment{}, saver, &fakeCompleter{})

	tr.OnPositionChanged(domain.Position{Current: 1, Total: 10})
	tr.OnPositionChanged(domain.Position{Current: 3, Total: 10})
	tr.OnPositionChanged(domain.Position{Current: 5, Total: 10})
	if !tr.Snapshot().Saving {
		t.Fatalf("expected a save in flight")
	}
	close(block)
	tr.Wait()

	values := saver.saved()
	if len(values) != 2 || values[0] != 10 || values[1] != 50 {
		t.Fatalf("saved values: want=[10 50] got=%v", values)
	}
}

func TestTrackerVideoEndToEnd(t *testing.T) {
	saver := &fakeSaver{}
	completer := &fakeCompleter{}
	tr := newTestTracker(t, domain.Course{ID: 7, Delivery: domain.DeliveryVideo, TotalUnits: 120}, domain.Enrollment{}, saver, completer)
	ctx := context.Background()

	tr.OnPositionChanged(domain.Position{Current: 30, Total: 120})
	if got := tr.CurrentProgress(); got != 25 {
		t.Fatalf("progress at 30s: want=25 got=%d", got)
	}
	tr.OnPositionChanged(domain.Position{Current: 119, Total: 120})
	if got := tr.CurrentProgress(); got != 99 {
		t.Fatalf("progress at 119s: want=99 got=%d", got)
	}
	if tr.GateState() != GateLocked {
		t.Fatalf("gate before end: want=%q got=%q", GateLocked, tr.GateState())
	}

	err := tr.OnCompleteRequested(ctx)
	if !IsKind(err, KindGate) || !errors.Is(err, ErrGateLocked) {
		t.Fatalf("complete before end: want gate violation got %v", err)
	}
	if completer.callCount() != 0 {
		t.Fatalf("gate violation must not reach the portal")
	}

	snap := tr.OnPlaybackEnded()
	if snap.Progress != 100 || snap.Gate != GateUnlockable {
		t.Fatalf("after end: progress=%d gate=%q", snap.Progress, snap.Gate)
	}

	if err := tr.OnCompleteRequested(ctx); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := tr.OnCompleteRequested(ctx); err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if completer.callCount() != 1 {
		t.Fatalf("complete calls: want=1 got=%d", completer.callCount())
	}
	tr.Wait()

	snap = tr.Snapshot()
	if snap.Gate != GateCompleted || snap.Status != domain.EnrollmentCompleted {
		t.Fatalf("final: gate=%q status=%q", snap.Gate, snap.Status)
	}
	values := saver.saved()
	assertIncreasing(t, values)
	if values[len(values)-1] != 100 {
		t.Fatalf("last saved value: want=100 got=%v", values)
	}
}

func TestTrackerSeekGuard(t *testing.T) {
	tr := newTestTracker(t, domain.Course{ID: 3, Delivery: domain.DeliveryVideo}, domain.Enrollment{}, &fakeSaver{}, &fakeCompleter{})
	defer tr.Wait()

	tr.OnPositionChanged(domain.Position{Current: 20, Total: 100})

	res := tr.OnSeekAttempt(80)
	if res.Allowed || res.Position != 20 {
		t.Fatalf("seek to 80: want reverted to 20 got %+v", res)
	}
	res = tr.OnSeekAttempt(10)
	if res.Allowed || res.Position != 20 {
		t.Fatalf("seek back to 10: want reverted to 20 got %+v", res)
	}
	res = tr.OnSeekAttempt(99.5)
	if !res.Allowed || res.Position != 99.5 {
		t.Fatalf("seek into the tail: got %+v", res)
	}

	tr.OnPlaybackEnded()
	res = tr.OnSeekAttempt(30)
	if !res.Allowed {
		t.Fatalf("seeking after unlock should be free, got %+v", res)
	}
}

func TestTrackerDoubleCompleteIssuesOneCall(t *testing.T) {
	completer := &fakeCompleter{block: make(chan struct{}), started: make(chan struct{}, 1)}
	tr := newTestTracker(t, domain.Course{ID: 4, Delivery: domain.DeliveryDocument}, domain.Enrollment{}, &fakeSaver{}, completer)
	tr.OnPositionChanged(domain.Position{Current: 10, Total: 10})
	if tr.GateState() != GateUnlockable {
		t.Fatalf("gate: want=%q got=%q", GateUnlockable, tr.GateState())
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[0] = tr.OnCompleteRequested(context.Background())
	}()
	<-completer.started
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[1] = tr.OnCompleteRequested(context.Background())
	}()
	close(completer.block)
	wg.Wait()
	tr.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("complete[%d]: %v", i, err)
		}
	}
	if completer.callCount() != 1 {
		t.Fatalf("complete calls: want=1 got=%d", completer.callCount())
	}
}

func TestTrackerCompletionFailureRollsBack(t *testing.T) {
	completer := &fakeCompleter{errs: []error{errors.New("portal down")}}
	tr := newTestTracker(t, domain.Course{ID: 5, Delivery: domain.DeliveryDocument}, domain.Enrollment{}, &fakeSaver{}, completer)
	tr.OnPositionChanged(domain.Position{Current: 4, Total: 4})

	err := tr.OnCompleteRequested(context.Background())
	if !IsKind(err, KindCompletion) {
		t.Fatalf("want completion failure got %v", err)
	}
	snap := tr.Snapshot()
	if snap.Gate != GateUnlockable || snap.Status == domain.EnrollmentCompleted {
		t.Fatalf("after failure: gate=%q status=%q", snap.Gate, snap.Status)
	}

	if err := tr.OnCompleteRequested(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if tr.GateState() != GateCompleted {
		t.Fatalf("gate after retry: want=%q got=%q", GateCompleted, tr.GateState())
	}
	if completer.callCount() != 2 {
		t.Fatalf("complete calls: want=2 got=%d", completer.callCount())
	}
	tr.Wait()
}

func TestTrackerDiscardsResultsAfterClose(t *testing.T) {
	block := make(chan struct{})
	saver := &fakeSaver{block: block}
	tr := newTestTracker(t, domain.Course{ID: 6, Delivery: domain.DeliveryDocument}, domain.Enrollment{}, saver, &fakeCompleter{})

	tr.OnPositionChanged(domain.Position{Current: 5, Total: 10})
	tr.OnPositionChanged(domain.Position{Current: 9, Total: 10})
	tr.Close()
	close(block)
	tr.Wait()

	if values := saver.saved(); len(values) != 1 || values[0] != 50 {
		t.Fatalf("saved values: want=[50] got=%v", values)
	}
	snap := tr.Snapshot()
	if snap.LastSave != "" || snap.ConfirmedProgress != 0 || snap.Saving {
		t.Fatalf("closed tracker applied a late result: %+v", snap)
	}
	if !snap.Closed {
		t.Fatalf("snapshot should report closed")
	}

	tr.OnPositionChanged(domain.Position{Current: 10, Total: 10})
	if got := tr.CurrentProgress(); got != 90 {
		t.Fatalf("events after close must be ignored, progress=%d", got)
	}
	if err := tr.OnCompleteRequested(context.Background()); !errors.Is(err, ErrTrackerClosed) {
		t.Fatalf("complete after close: want ErrTrackerClosed got %v", err)
	}
}

func TestTrackerLiveSessionAttendance(t *testing.T) {
	completer := &fakeCompleter{}
	tr := newTestTracker(t, domain.Course{ID: 8, Delivery: domain.DeliveryLiveSession}, domain.Enrollment{Progress: 0}, &fakeSaver{}, completer)

	if tr.GateState() != GateLocked {
		t.Fatalf("gate on open: want=%q got=%q", GateLocked, tr.GateState())
	}
	tr.OnPositionChanged(domain.Position{Current: 50, Total: 60})
	if tr.CurrentProgress() != 0 {
		t.Fatalf("live sessions should not derive progress from position")
	}
	if err := tr.OnCompleteRequested(context.Background()); !IsKind(err, KindGate) {
		t.Fatalf("want gate violation got %v", err)
	}

	if snap := tr.AcknowledgeAttendance(); snap.Gate != GateUnlockable {
		t.Fatalf("gate after attendance: want=%q got=%q", GateUnlockable, snap.Gate)
	}
	if err := tr.OnCompleteRequested(context.Background()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	tr.Wait()
	if got := tr.CurrentProgress(); got != 100 {
		t.Fatalf("progress after completion: want=100 got=%d", got)
	}
}

func TestTrackerLiveSessionWithoutAttendanceStep(t *testing.T) {
	tr := NewTracker(TrackerConfig{
		Course:    domain.Course{ID: 9, Delivery: domain.DeliveryLiveSession},
		Strategy:  NewStrategy(domain.DeliveryLiveSession, StrategyOptions{LiveRequiresAttendance: false}),
		Saver:     &fakeSaver{},
		Completer: &fakeCompleter{},
	})
	if tr.GateState() != GateUnlockable {
		t.Fatalf("gate: want=%q got=%q", GateUnlockable, tr.GateState())
	}
}

func TestTrackerAlreadyCompletedEnrollment(t *testing.T) {
	completer := &fakeCompleter{}
	tr := newTestTracker(t, domain.Course{ID: 10, Delivery: domain.DeliveryVideo}, domain.Enrollment{Progress: 100, Status: domain.EnrollmentCompleted}, &fakeSaver{}, completer)

	if tr.GateState() != GateCompleted {
		t.Fatalf("gate: want=%q got=%q", GateCompleted, tr.GateState())
	}
	if err := tr.OnCompleteRequested(context.Background()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completer.callCount() != 0 {
		t.Fatalf("completed enrollment must not call the portal again")
	}
	if res := tr.OnSeekAttempt(80); !res.Allowed {
		t.Fatalf("completed video should seek freely")
	}
}

func TestTrackerCompleteJoinRespectsContext(t *testing.T) {
	completer := &fakeCompleter{block: make(chan struct{}), started: make(chan struct{}, 1)}
	tr := newTestTracker(t, domain.Course{ID: 11, Delivery: domain.DeliveryDocument}, domain.Enrollment{}, &fakeSaver{}, completer)
	tr.OnPositionChanged(domain.Position{Current: 1, Total: 1})

	done := make(chan error, 1)
	go func() { done <- tr.OnCompleteRequested(context.Background()) }()
	<-completer.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := tr.OnCompleteRequested(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("joined complete: want deadline exceeded got %v", err)
	}

	close(completer.block)
	if err := <-done; err != nil {
		t.Fatalf("first complete: %v", err)
	}
	tr.Wait()
	if completer.callCount() != 1 {
		t.Fatalf("complete calls: want=1 got=%d", completer.callCount())
	}
}

func TestTrackerResumeRaisesLocalProgressOnly(t *testing.T) {
	saver := &fakeSaver{block: make(chan struct{})}
	completer := &fakeCompleter{}
	tr := NewTracker(TrackerConfig{
		Course:     domain.Course{ID: 7, Delivery: domain.DeliveryVideo, TotalUnits: 100},
		Enrollment: domain.Enrollment{CourseID: 7, Progress: 40, Status: domain.EnrollmentInProgress},
		Saver:      saver,
		Completer:  completer,
		Resume:     100,
	})

	snap := tr.Snapshot()
	if snap.Gate != GateLocked {
		t.Fatalf("gate: want=%q got=%q", GateLocked, snap.Gate)
	}
	if snap.Progress != 100 || snap.ConfirmedProgress != 40 {
		t.Fatalf("progress: want=100/40 got=%d/%d", snap.Progress, snap.ConfirmedProgress)
	}
	if !snap.Saving {
		t.Fatalf("resumed value should be pushed on open")
	}
	close(saver.block)
	tr.Wait()
	if values := saver.saved(); len(values) != 1 || values[0] != 100 {
		t.Fatalf("saved values: want=[100] got=%v", values)
	}

	err := tr.OnCompleteRequested(context.Background())
	if !IsKind(err, KindGate) {
		t.Fatalf("complete before watching: want gate violation got %v", err)
	}
	if completer.callCount() != 0 {
		t.Fatalf("completeCourse calls: want=0 got=%d", completer.callCount())
	}

	tr.OnPlaybackEnded()
	if err := tr.OnCompleteRequested(context.Background()); err != nil {
		t.Fatalf("complete after playback: %v", err)
	}
	if completer.callCount() != 1 || tr.GateState() != GateCompleted {
		t.Fatalf("completion: calls=%d gate=%q", completer.callCount(), tr.GateState())
	}
	tr.Wait()
}

func TestTrackerResumeIgnoredWhenPortalComplete(t *testing.T) {
	saver := &fakeSaver{}
	tr := newTestTracker(t, domain.Course{ID: 8, Delivery: domain.DeliveryDocument},
		domain.Enrollment{CourseID: 8, Progress: 100, Status: domain.EnrollmentCompleted}, saver, &fakeCompleter{})
	tr.Wait()
	if len(saver.saved()) != 0 {
		t.Fatalf("completed enrollment should not save on open, got %v", saver.saved())
	}
	if tr.GateState() != GateCompleted {
		t.Fatalf("gate: want=%q got=%q", GateCompleted, tr.GateState())
	}
}

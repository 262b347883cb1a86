package progress

import (
	"context"
	"sync"

	"github.com/rivergarden/training-portal/internal/domain"
)

type fakeBucket struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newFakeBucket() *fakeBucket { return &fakeBucket{data: map[string][]byte{}} }

func (b *fakeBucket) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	return v, ok, nil
}

func (b *fakeBucket) Set(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.data[key] = append([]byte(nil), value...)
	return nil
}

type fakeWriter struct {
	mu    sync.Mutex
	calls []int
	err   error
}

func (w *fakeWriter) SetProgress(_ context.Context, _ int64, progress int) (domain.ProgressUpdate, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, progress)
	if w.err != nil {
		return domain.ProgressUpdate{}, w.err
	}
	return domain.ProgressUpdate{Progress: progress, Status: domain.EnrollmentInProgress}, nil
}

func (w *fakeWriter) callCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.calls)
}

// fakeSaver records every value it is asked to push. When block is set each call waits
// on it, which keeps a save in flight for as long as the test needs.
type fakeSaver struct {
	mu      sync.Mutex
	values  []int
	block   chan struct{}
	started chan int
	outcome SaveOutcome
	err     error
}

func (s *fakeSaver) Save(_ context.Context, _ int64, progress int) (SaveResult, error) {
	s.mu.Lock()
	s.values = append(s.values, progress)
	block, started := s.block, s.started
	s.mu.Unlock()
	if started != nil {
		started <- progress
	}
	if block != nil {
		<-block
	}
	if s.err != nil {
		return SaveResult{Outcome: OutcomeFailed}, s.err
	}
	outcome := s.outcome
	if outcome == "" {
		outcome = OutcomeSynced
	}
	return SaveResult{Outcome: outcome, Update: domain.ProgressUpdate{Progress: progress}}, nil
}

func (s *fakeSaver) saved() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.values...)
}

type fakeCompleter struct {
	mu      sync.Mutex
	calls   int
	errs    []error
	block   chan struct{}
	started chan struct{}
}

func (c *fakeCompleter) CompleteCourse(ctx context.Context, _ int64) error {
	c.mu.Lock()
	c.calls++
	var err error
	if len(c.errs) > 0 {
		err, c.errs = c.errs[0], c.errs[1:]
	}
	block, started := c.block, c.started
	c.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (c *fakeCompleter) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

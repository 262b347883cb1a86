package services

import (
	"context"
	"sync"

	"github.com/rivergarden/training-portal/internal/clients/portal"
	"github.com/rivergarden/training-portal/internal/domain"
)

type fakePortal struct {
	api *fakeAPI
}

func (f *fakePortal) ForSession(domain.Session) portal.API { return f.api }

type fakeAPI struct {
	mu          sync.Mutex
	courses     []domain.Course
	enrollments []domain.Enrollment
	listErr     error
	enrollErr   error
	progressErr map[int64]error
	enrolled    []int64
	progress    map[int64][]int
	completed   []int64
	// onProgress runs inside SetProgress, before the answer is returned.
	onProgress func(courseID int64, progress int)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{progress: map[int64][]int{}, progressErr: map[int64]error{}}
}

func (f *fakeAPI) ListCourses(context.Context) ([]domain.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.Course(nil), f.courses...), nil
}

func (f *fakeAPI) GetCourse(ctx context.Context, courseID int64) (domain.Course, error) {
	courses, err := f.ListCourses(ctx)
	if err != nil {
		return domain.Course{}, err
	}
	for _, c := range courses {
		if c.ID == courseID {
			return c, nil
		}
	}
	return domain.Course{}, portal.ErrNotFound
}

func (f *fakeAPI) ListEnrollments(context.Context) ([]domain.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Enrollment(nil), f.enrollments...), nil
}

func (f *fakeAPI) Enroll(_ context.Context, courseID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enrollErr != nil {
		return 0, f.enrollErr
	}
	f.enrolled = append(f.enrolled, courseID)
	return 500 + courseID, nil
}

func (f *fakeAPI) SetProgress(_ context.Context, courseID int64, progress int) (domain.ProgressUpdate, error) {
	if f.onProgress != nil {
		f.onProgress(courseID, progress)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.progressErr[courseID]; err != nil {
		return domain.ProgressUpdate{}, err
	}
	f.progress[courseID] = append(f.progress[courseID], progress)
	return domain.ProgressUpdate{Progress: progress, Status: domain.EnrollmentInProgress}, nil
}

func (f *fakeAPI) CompleteCourse(_ context.Context, courseID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, courseID)
	return nil
}

func (f *fakeAPI) progressCalls(courseID int64) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.progress[courseID]...)
}

package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/rivergarden/training-portal/internal/platform/apierr"
	"github.com/rivergarden/training-portal/internal/progress"
	"github.com/rivergarden/training-portal/internal/services"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "session_missing", err: services.ErrSessionNotFound, wantStatus: http.StatusNotFound, wantCode: "session_not_found"},
		{
			name:       "portal_rejected_token",
			err:        progress.LoadError(7, apierr.New(http.StatusUnauthorized, "unauthorized", errors.New("Could not validate credentials"))),
			wantStatus: http.StatusUnauthorized,
			wantCode:   "unauthorized",
		},
		{
			name:       "gate_locked",
			err:        &progress.Error{Kind: progress.KindGate, CourseID: 7, Err: progress.ErrGateLocked},
			wantStatus: http.StatusConflict,
			wantCode:   "gate_locked",
		},
		{
			name:       "closed",
			err:        &progress.Error{Kind: progress.KindCompletion, CourseID: 7, Err: progress.ErrTrackerClosed},
			wantStatus: http.StatusGone,
			wantCode:   "session_closed",
		},
		{
			name:       "course_missing",
			err:        progress.LoadError(7, fmt.Errorf("%w: gone", progress.ErrCourseMissing)),
			wantStatus: http.StatusNotFound,
			wantCode:   "course_not_found",
		},
		{
			name:       "load_upstream",
			err:        progress.LoadError(7, apierr.New(http.StatusBadGateway, "portal_unavailable", errors.New("bad gateway"))),
			wantStatus: http.StatusBadGateway,
			wantCode:   "load_failed",
		},
		{
			name:       "completion_upstream",
			err:        &progress.Error{Kind: progress.KindCompletion, CourseID: 7, Err: context.DeadlineExceeded},
			wantStatus: http.StatusBadGateway,
			wantCode:   "completion_failed",
		},
		{name: "unknown", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, code := classify(tc.err)
			if status != tc.wantStatus || code != tc.wantCode {
				t.Fatalf("classify(%v): want=%d/%s got=%d/%s", tc.err, tc.wantStatus, tc.wantCode, status, code)
			}
		})
	}
}

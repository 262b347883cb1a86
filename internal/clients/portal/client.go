package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rivergarden/training-portal/internal/domain"
	"github.com/rivergarden/training-portal/internal/pkg/httpx"
	"github.com/rivergarden/training-portal/internal/platform/apierr"
	"github.com/rivergarden/training-portal/internal/platform/logger"
)

var ErrNotFound = errors.New("portal: not found")

type Options struct {
	BaseURL string
	Timeout time.Duration
	// Retries is the number of extra attempts for transport failures and 408/429/5xx answers.
	Retries int
}

// Client talks to the training portal REST API. Calls are made on behalf of a user through
// ForSession; the client itself only knows how to reach the portal.
type Client interface {
	ForSession(sess domain.Session) API
	Ping(ctx context.Context) error
}

// API is the portal as seen by one signed-in user.
type API interface {
	ListCourses(ctx context.Context) ([]domain.Course, error)
	GetCourse(ctx context.Context, courseID int64) (domain.Course, error)
	ListEnrollments(ctx context.Context) ([]domain.Enrollment, error)
	Enroll(ctx context.Context, courseID int64) (int64, error)
	SetProgress(ctx context.Context, courseID int64, progress int) (domain.ProgressUpdate, error)
	CompleteCourse(ctx context.Context, courseID int64) error
}

type client struct {
	log  *logger.Logger
	http *resty.Client
}

func NewClient(log *logger.Logger, opts Options) (Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("portal base url required")
	}
	if log == nil {
		log = logger.Nop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rc := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if opts.Retries > 0 {
		rc.SetRetryCount(opts.Retries).
			SetRetryWaitTime(250 * time.Millisecond).
			SetRetryMaxWaitTime(2 * time.Second).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				if err != nil {
					return httpx.IsRetryableError(err)
				}
				return r != nil && httpx.IsRetryableHTTPStatus(r.StatusCode())
			})
	}
	return &client{log: log.With("client", "PortalClient"), http: rc}, nil
}

func (c *client) ForSession(sess domain.Session) API {
	return &sessionAPI{c: c, token: sess.Token}
}

// Ping hits the portal root, which answers without authentication.
func (c *client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return responseError(resp)
	}
	return nil
}

type sessionAPI struct {
	c     *client
	token string
}

func (s *sessionAPI) request(ctx context.Context) *resty.Request {
	r := s.c.http.R().SetContext(ctx)
	if s.token != "" {
		r.SetAuthToken(s.token)
	}
	return r
}

func (s *sessionAPI) ListCourses(ctx context.Context) ([]domain.Course, error) {
	resp, err := s.request(ctx).Get("/api/courses")
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("list courses: %w", responseError(resp))
	}
	var rows []courseDTO
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return nil, fmt.Errorf("decode courses: %w", err)
	}
	out := make([]domain.Course, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// GetCourse filters the user's course list; the portal has no single-course endpoint.
func (s *sessionAPI) GetCourse(ctx context.Context, courseID int64) (domain.Course, error) {
	courses, err := s.ListCourses(ctx)
	if err != nil {
		return domain.Course{}, err
	}
	for _, c := range courses {
		if c.ID == courseID {
			return c, nil
		}
	}
	return domain.Course{}, fmt.Errorf("course %d: %w", courseID, ErrNotFound)
}

func (s *sessionAPI) ListEnrollments(ctx context.Context) ([]domain.Enrollment, error) {
	resp, err := s.request(ctx).Get("/api/enrollments")
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("list enrollments: %w", responseError(resp))
	}
	var rows []enrollmentDTO
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return nil, fmt.Errorf("decode enrollments: %w", err)
	}
	out := make([]domain.Enrollment, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (s *sessionAPI) Enroll(ctx context.Context, courseID int64) (int64, error) {
	resp, err := s.request(ctx).
		SetFormData(map[string]string{"course_id": strconv.FormatInt(courseID, 10)}).
		Post("/api/enrollments/enroll")
	if err != nil {
		return 0, fmt.Errorf("enroll course %d: %w", courseID, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("enroll course %d: %w", courseID, responseError(resp))
	}
	var body struct {
		Message      string `json:"message"`
		EnrollmentID int64  `json:"enrollment_id"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return 0, fmt.Errorf("decode enroll response: %w", err)
	}
	s.c.log.Debug("enrolled", "course_id", courseID, "enrollment_id", body.EnrollmentID, "message", body.Message)
	return body.EnrollmentID, nil
}

func (s *sessionAPI) SetProgress(ctx context.Context, courseID int64, progress int) (domain.ProgressUpdate, error) {
	resp, err := s.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]int{"progress": progress}).
		SetPathParam("courseId", strconv.FormatInt(courseID, 10)).
		Post("/api/enrollments/{courseId}/progress")
	if err != nil {
		return domain.ProgressUpdate{}, fmt.Errorf("set progress course %d: %w", courseID, err)
	}
	if resp.IsError() {
		return domain.ProgressUpdate{}, fmt.Errorf("set progress course %d: %w", courseID, responseError(resp))
	}
	var upd domain.ProgressUpdate
	if err := json.Unmarshal(resp.Body(), &upd); err != nil {
		return domain.ProgressUpdate{}, fmt.Errorf("decode progress response: %w", err)
	}
	return upd, nil
}

func (s *sessionAPI) CompleteCourse(ctx context.Context, courseID int64) error {
	resp, err := s.request(ctx).
		SetPathParam("courseId", strconv.FormatInt(courseID, 10)).
		Post("/api/enrollments/{courseId}/complete")
	if err != nil {
		return fmt.Errorf("complete course %d: %w", courseID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("complete course %d: %w", courseID, responseError(resp))
	}
	return nil
}

// responseError turns a non-2xx answer into an apierr.Error carrying the portal's detail.
// A 404 additionally matches ErrNotFound.
func responseError(resp *resty.Response) error {
	status := resp.StatusCode()
	msg := detailMessage(resp.Body())
	if msg == "" {
		msg = http.StatusText(status)
	}
	inner := errors.New(msg)
	if status == http.StatusNotFound {
		inner = fmt.Errorf("%s: %w", msg, ErrNotFound)
	}
	return apierr.New(status, statusCode(status), inner)
}

// detailMessage reads FastAPI's {"detail": ...}, which is either a string or a list of
// validation errors.
func detailMessage(body []byte) string {
	var env struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &env); err != nil || len(env.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}
	var s string
	if err := json.Unmarshal(env.Detail, &s); err == nil {
		return s
	}
	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(env.Detail, &list); err == nil && len(list) > 0 {
		msgs := make([]string, 0, len(list))
		for _, item := range list {
			msgs = append(msgs, item.Msg)
		}
		return strings.Join(msgs, "; ")
	}
	return string(env.Detail)
}

func statusCode(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnprocessableEntity:
		return "invalid_request"
	default:
		if status >= 500 {
			return "portal_unavailable"
		}
		return "portal_error"
	}
}

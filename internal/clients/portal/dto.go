package portal

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/rivergarden/training-portal/internal/domain"
)

type courseDTO struct {
	ID              int64    `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	Difficulty      string   `json:"difficulty"`
	Duration        string   `json:"duration"`
	Modules         int      `json:"modules"`
	Thumbnail       string   `json:"thumbnail"`
	ExpiryDays      int      `json:"expiry_days"`
	AssignedRoles   []string `json:"assigned_roles"`
	VideoURL        string   `json:"video_url"`
	DeliveryType    string   `json:"delivery_type"`
	MeetingURL      string   `json:"meeting_url"`
	MeetingPlatform string   `json:"meeting_platform"`
}

func (c courseDTO) toDomain() domain.Course {
	delivery := domain.ResolveDelivery(c.DeliveryType, c.VideoURL)
	out := domain.Course{
		ID:              c.ID,
		Title:           c.Title,
		Description:     c.Description,
		Category:        c.Category,
		Delivery:        delivery,
		MeetingURL:      c.MeetingURL,
		MeetingPlatform: c.MeetingPlatform,
		DurationLabel:   c.Duration,
		ExpiryDays:      c.ExpiryDays,
	}
	// The duration label is only a hint; the player reports the real media length.
	if delivery == domain.DeliveryVideo {
		out.MediaURL = c.VideoURL
		out.TotalUnits = domain.ParseDurationLabel(c.Duration)
	}
	return out
}

type enrollmentDTO struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id"`
	CourseID      int64      `json:"course_id"`
	Status        string     `json:"status"`
	Progress      float64    `json:"progress"`
	Score         *float64   `json:"score"`
	StartedDate   portalTime `json:"started_date"`
	CompletedDate portalTime `json:"completed_date"`
	DueDate       portalTime `json:"due_date"`
}

func (e enrollmentDTO) toDomain() domain.Enrollment {
	status := domain.EnrollmentStatus(strings.ToLower(strings.TrimSpace(e.Status)))
	if status == "" {
		status = domain.EnrollmentNotStarted
	}
	return domain.Enrollment{
		ID:            e.ID,
		CourseID:      e.CourseID,
		Progress:      int(math.Round(e.Progress)),
		Status:        status,
		DueDate:       e.DueDate.ptr(),
		CompletedDate: e.CompletedDate.ptr(),
	}
}

// portalTime accepts the naive ISO timestamps the portal serialises (no zone, UTC implied).
type portalTime struct {
	t time.Time
}

var portalTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (p *portalTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil || strings.TrimSpace(s) == "" {
		return nil
	}
	for _, layout := range portalTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			p.t = t.UTC()
			return nil
		}
	}
	return nil
}

func (p portalTime) ptr() *time.Time {
	if p.t.IsZero() {
		return nil
	}
	t := p.t
	return &t
}

package domain

import "time"

type EnrollmentStatus string

const (
	EnrollmentNotStarted EnrollmentStatus = "not-started"
	EnrollmentInProgress EnrollmentStatus = "in-progress"
	EnrollmentCompleted  EnrollmentStatus = "completed"
	EnrollmentOverdue    EnrollmentStatus = "overdue"
)

type Enrollment struct {
	ID            int64            `json:"id"`
	CourseID      int64            `json:"course_id"`
	Progress      int              `json:"progress"`
	Status        EnrollmentStatus `json:"status"`
	DueDate       *time.Time       `json:"due_date,omitempty"`
	CompletedDate *time.Time       `json:"completed_date,omitempty"`
}

// IsComplete reports whether the portal already considers the course done.
func (e Enrollment) IsComplete() bool {
	return e.Status == EnrollmentCompleted || e.Progress >= 100
}

// ProgressUpdate is the portal's answer to a progress write.
type ProgressUpdate struct {
	Progress int              `json:"progress"`
	Status   EnrollmentStatus `json:"status"`
}

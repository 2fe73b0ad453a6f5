package models

import "time"

// Submission is a TEXT or FILE answer. One per (assignment, student).
type Submission struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	AssignmentID  uint       `gorm:"not null;uniqueIndex:idx_submission_assignment_student" json:"assignment_id"`
	StudentID     uint       `gorm:"not null;uniqueIndex:idx_submission_assignment_student;index" json:"student_id"`
	Content       string     `gorm:"type:text" json:"content"`
	FileLocation  string     `gorm:"size:1024" json:"file_location"`
	ObtainedMarks *int       `json:"obtained_marks"`
	Feedback      string     `gorm:"type:text" json:"feedback"`
	SubmittedAt   time.Time  `gorm:"not null" json:"submitted_at"`
	EvaluatedAt   *time.Time `json:"evaluated_at"`
}

const (
	// SubmissionStatusPending indicates the teacher has not evaluated the submission yet.
	SubmissionStatusPending = "PENDING"
	// SubmissionStatusEvaluated indicates marks have been assigned.
	SubmissionStatusEvaluated = "EVALUATED"
)

// IsEvaluated reports whether a teacher has assigned marks.
func (s Submission) IsEvaluated() bool {
	return s.ObtainedMarks != nil
}

// Status returns the evaluation status label.
func (s Submission) Status() string {
	if s.IsEvaluated() {
		return SubmissionStatusEvaluated
	}
	return SubmissionStatusPending
}

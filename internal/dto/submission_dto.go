package dto

import (
	"time"

	"github.com/noah-isme/gema-assignment-api/internal/models"
)

// TextSubmissionRequest is a student's answer to a TEXT assignment.
type TextSubmissionRequest struct {
	Content string `json:"content" validate:"required,max=20000"`
}

// EvaluateSubmissionRequest assigns marks to a TEXT or FILE submission.
type EvaluateSubmissionRequest struct {
	ObtainedMarks *int   `json:"obtained_marks" validate:"required"`
	Feedback      string `json:"feedback" validate:"max=5000"`
}

// StudentLite summarizes a student without exposing full profile data.
type StudentLite struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SubmissionResponse is returned to teachers when viewing TEXT and FILE submissions.
type SubmissionResponse struct {
	ID            uint        `json:"id"`
	AssignmentID  uint        `json:"assignment_id"`
	Student       StudentLite `json:"student"`
	ObtainedMarks *int        `json:"obtained_marks"`
	MaxMarks      int         `json:"max_marks"`
	Status        string      `json:"status"`
	Content       string      `json:"content,omitempty"`
	FileName      string      `json:"file_name,omitempty"`
	Feedback      string      `json:"feedback"`
	SubmittedAt   time.Time   `json:"submitted_at"`
	EvaluatedAt   *time.Time  `json:"evaluated_at"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission, maxMarks int, fileName string, student StudentLite) SubmissionResponse {
	return SubmissionResponse{
		ID:            model.ID,
		AssignmentID:  model.AssignmentID,
		Student:       student,
		ObtainedMarks: model.ObtainedMarks,
		MaxMarks:      maxMarks,
		Status:        model.Status(),
		Content:       model.Content,
		Feedback:      model.Feedback,
		SubmittedAt:   model.SubmittedAt,
		FileName:      fileName,
		EvaluatedAt:   model.EvaluatedAt,
	}
}

package dto

import "time"

// StudentAssignmentResponse is one entry of the student's "my assignments" view.
type StudentAssignmentResponse struct {
	AssignmentID  uint       `json:"assignment_id"`
	BatchID       uint       `json:"batch_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Kind          string     `json:"kind"`
	MaxMarks      int        `json:"max_marks"`
	Submitted     bool       `json:"submitted"`
	ObtainedMarks *int       `json:"obtained_marks"`
	Passed        *bool      `json:"passed,omitempty"`
	Feedback      string     `json:"feedback,omitempty"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
	EvaluatedAt   *time.Time `json:"evaluated_at,omitempty"`
}

// StudentSubmissionResponse acknowledges a TEXT or FILE submission.
type StudentSubmissionResponse struct {
	SubmissionID uint      `json:"submission_id"`
	AssignmentID uint      `json:"assignment_id"`
	Status       string    `json:"status"`
	FileName     string    `json:"file_name,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// FileUpload is an uploaded file handed from the transport layer to the service.
type FileUpload struct {
	Name string
	Size int64
}

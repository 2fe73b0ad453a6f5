package models

import (
	"time"

	"gorm.io/datatypes"
)

// McqQuestionBank holds the questions and grading policy of one MCQ assignment.
type McqQuestionBank struct {
	ID                 uint          `gorm:"primaryKey" json:"id"`
	AssignmentID       uint          `gorm:"not null;uniqueIndex" json:"assignment_id"`
	PassingPercentage  float64       `gorm:"not null" json:"passing_percentage"`
	ShowCorrectAnswers bool          `gorm:"not null;default:false" json:"show_correct_answers"`
	TimeLimitMinutes   *int          `json:"time_limit_minutes,omitempty"`
	ScoringRevision    uint          `gorm:"not null;default:1" json:"-"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
	Questions          []McqQuestion `gorm:"foreignKey:QuestionBankID;constraint:OnDelete:CASCADE" json:"questions"`
}

// McqQuestion is a single multiple choice question.
type McqQuestion struct {
	ID             uint                        `gorm:"primaryKey" json:"id"`
	QuestionBankID uint                        `gorm:"not null;index" json:"question_bank_id"`
	QuestionNumber int                         `gorm:"not null" json:"question_number"`
	Text           string                      `gorm:"type:text;not null" json:"text"`
	Marks          int                         `gorm:"not null" json:"marks"`
	Options        datatypes.JSONSlice[string] `json:"options"`
	CorrectOptions datatypes.JSONSlice[int]    `json:"correct_options"`
}

// McqAnswer is one raw answer as sent by a student. Either field may be absent.
type McqAnswer struct {
	QuestionNumber      *int `json:"question_number"`
	SelectedOptionIndex *int `json:"selected_option_index"`
}

// McqSubmission is a graded MCQ attempt. One per (question bank, student).
type McqSubmission struct {
	ID               uint                           `gorm:"primaryKey" json:"id"`
	QuestionBankID   uint                           `gorm:"not null;uniqueIndex:idx_mcq_submission_bank_student" json:"question_bank_id"`
	StudentID        uint                           `gorm:"not null;uniqueIndex:idx_mcq_submission_bank_student;index" json:"student_id"`
	Answers          datatypes.JSONSlice[McqAnswer] `json:"answers"`
	TotalMarks       int                            `gorm:"not null" json:"total_marks"`
	ObtainedMarks    int                            `gorm:"not null" json:"obtained_marks"`
	Percentage       float64                        `gorm:"not null" json:"percentage"`
	Passed           bool                           `gorm:"not null" json:"passed"`
	SubmittedAt      time.Time                      `gorm:"not null" json:"submitted_at"`
	TimeTakenSeconds *int                           `json:"time_taken_seconds,omitempty"`
}

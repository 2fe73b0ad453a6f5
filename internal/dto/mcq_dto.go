package dto

import "time"

// McqOptionRequest is one answer option of a question.
type McqOptionRequest struct {
	Text      string `json:"text" validate:"required,max=1000"`
	IsCorrect bool   `json:"is_correct"`
}

// McqQuestionRequest is one question as authored by the teacher.
type McqQuestionRequest struct {
	Text    string             `json:"text" validate:"required,max=2000"`
	Options []McqOptionRequest `json:"options" validate:"required,min=2,max=10,dive"`
}

// McqAssignmentCreateRequest describes the payload for creating an MCQ assignment.
type McqAssignmentCreateRequest struct {
	BatchID            uint                 `json:"batch_id" validate:"required"`
	Title              string               `json:"title" validate:"required,min=3,max=255"`
	Description        string               `json:"description" validate:"max=5000"`
	MaxMarks           int                  `json:"max_marks" validate:"required,min=1"`
	PassingPercentage  float64              `json:"passing_percentage" validate:"min=0,max=100"`
	ShowCorrectAnswers bool                 `json:"show_correct_answers"`
	TimeLimitMinutes   *int                 `json:"time_limit_minutes" validate:"omitempty,min=1"`
	Questions          []McqQuestionRequest `json:"questions" validate:"required,min=1,dive"`
}

// McqAssignmentUpdateRequest is a partial update. A non-empty Questions list replaces the whole bank.
type McqAssignmentUpdateRequest struct {
	Title              *string              `json:"title" validate:"omitempty,min=3,max=255"`
	Description        *string              `json:"description" validate:"omitempty,max=5000"`
	MaxMarks           *int                 `json:"max_marks" validate:"omitempty,min=1"`
	PassingPercentage  *float64             `json:"passing_percentage" validate:"omitempty,min=0,max=100"`
	ShowCorrectAnswers *bool                `json:"show_correct_answers"`
	TimeLimitMinutes   *int                 `json:"time_limit_minutes" validate:"omitempty,min=1"`
	Questions          []McqQuestionRequest `json:"questions" validate:"omitempty,dive"`
}

// McqOptionResponse is one option as shown to the teacher.
type McqOptionResponse struct {
	Index     int    `json:"index"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// McqQuestionResponse is a question including its correct answer.
type McqQuestionResponse struct {
	ID             uint                `json:"id"`
	QuestionNumber int                 `json:"question_number"`
	Text           string              `json:"text"`
	Marks          int                 `json:"marks"`
	Options        []McqOptionResponse `json:"options"`
}

// McqAssignmentResponse is the teacher view of an MCQ assignment.
type McqAssignmentResponse struct {
	AssignmentID       uint                  `json:"assignment_id"`
	BatchID            uint                  `json:"batch_id"`
	Title              string                `json:"title"`
	Description        string                `json:"description"`
	MaxMarks           int                   `json:"max_marks"`
	Status             string                `json:"status"`
	PassingPercentage  float64               `json:"passing_percentage"`
	ShowCorrectAnswers bool                  `json:"show_correct_answers"`
	TimeLimitMinutes   *int                  `json:"time_limit_minutes,omitempty"`
	TotalQuestions     int                   `json:"total_questions"`
	Questions          []McqQuestionResponse `json:"questions"`
	CreatedAt          time.Time             `json:"created_at"`
}

// StudentMcqQuestion is a question without any hint of the correct answer.
type StudentMcqQuestion struct {
	QuestionNumber int      `json:"question_number"`
	Text           string   `json:"text"`
	Marks          int      `json:"marks"`
	Options        []string `json:"options"`
}

// StudentMcqAssignmentResponse is the student view of an MCQ assignment.
type StudentMcqAssignmentResponse struct {
	AssignmentID      uint                 `json:"assignment_id"`
	Title             string               `json:"title"`
	Description       string               `json:"description"`
	MaxMarks          int                  `json:"max_marks"`
	PassingPercentage float64              `json:"passing_percentage"`
	TimeLimitMinutes  *int                 `json:"time_limit_minutes,omitempty"`
	TotalQuestions    int                  `json:"total_questions"`
	Questions         []StudentMcqQuestion `json:"questions"`
	AlreadySubmitted  bool                 `json:"already_submitted"`
}

// McqAnswerRequest is one raw answer. Both fields are optional on the wire.
type McqAnswerRequest struct {
	QuestionNumber      *int `json:"question_number"`
	SelectedOptionIndex *int `json:"selected_option_index"`
}

// McqSubmitRequest is the student's attempt.
type McqSubmitRequest struct {
	Answers          []McqAnswerRequest `json:"answers" validate:"required"`
	TimeTakenSeconds *int               `json:"time_taken_seconds" validate:"omitempty,min=0"`
}

// McqQuestionResult is the per question breakdown of a graded attempt.
type McqQuestionResult struct {
	QuestionNumber int      `json:"question_number"`
	Text           string   `json:"text"`
	Marks          int      `json:"marks"`
	MarksObtained  int      `json:"marks_obtained"`
	IsCorrect      bool     `json:"is_correct"`
	Options        []string `json:"options"`
	SelectedOption *int     `json:"selected_option"`
	CorrectOptions []int    `json:"correct_options"`
}

// McqSubmissionResponse is the graded result returned to the student.
type McqSubmissionResponse struct {
	SubmissionID     uint                `json:"submission_id"`
	AssignmentID     uint                `json:"assignment_id"`
	AssignmentTitle  string              `json:"assignment_title"`
	TotalMarks       int                 `json:"total_marks"`
	ObtainedMarks    int                 `json:"obtained_marks"`
	Percentage       float64             `json:"percentage"`
	Passed           bool                `json:"passed"`
	SubmittedAt      time.Time           `json:"submitted_at"`
	TimeTakenSeconds *int                `json:"time_taken_seconds,omitempty"`
	CorrectCount     int                 `json:"correct_count"`
	IncorrectCount   int                 `json:"incorrect_count"`
	TotalQuestions   int                 `json:"total_questions"`
	QuestionResults  []McqQuestionResult `json:"question_results,omitempty"`
}

// McqSubmissionSummary is one row of the teacher's MCQ attempt listing.
type McqSubmissionSummary struct {
	SubmissionID  uint      `json:"submission_id"`
	StudentID     uint      `json:"student_id"`
	StudentName   string    `json:"student_name"`
	StudentEmail  string    `json:"student_email"`
	ObtainedMarks int       `json:"obtained_marks"`
	TotalMarks    int       `json:"total_marks"`
	Percentage    float64   `json:"percentage"`
	Passed        bool      `json:"passed"`
	Status        string    `json:"status"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

package service

import (
	"strings"

	"gorm.io/datatypes"

	"github.com/noah-isme/gema-assignment-api/internal/apperror"
	"github.com/noah-isme/gema-assignment-api/internal/dto"
	"github.com/noah-isme/gema-assignment-api/internal/grading"
	"github.com/noah-isme/gema-assignment-api/internal/models"
)

// buildQuestions validates authored questions and converts them into models.
// Every question must carry exactly one correct option.
func buildQuestions(requests []dto.McqQuestionRequest, maxMarks int) ([]models.McqQuestion, error) {
	if len(requests) == 0 {
		return nil, apperror.BadRequest("at least one question is required")
	}

	marks, err := questionMarks(maxMarks, len(requests))
	if err != nil {
		return nil, err
	}

	questions := make([]models.McqQuestion, 0, len(requests))
	for i, req := range requests {
		number := i + 1
		text := strings.TrimSpace(req.Text)
		if text == "" {
			return nil, apperror.BadRequest("question %d has no text", number)
		}
		if len(req.Options) < 2 {
			return nil, apperror.BadRequest("question %d needs at least two options", number)
		}

		options := make([]string, 0, len(req.Options))
		correct := make([]int, 0, 1)
		for idx, option := range req.Options {
			options = append(options, strings.TrimSpace(option.Text))
			if option.IsCorrect {
				correct = append(correct, idx)
			}
		}
		if len(correct) != 1 {
			return nil, apperror.BadRequest("question %d must have exactly one correct option", number)
		}

		questions = append(questions, models.McqQuestion{
			QuestionNumber: number,
			Text:           text,
			Marks:          marks,
			Options:        datatypes.NewJSONSlice(options),
			CorrectOptions: datatypes.NewJSONSlice(correct),
		})
	}

	return questions, nil
}

// questionMarks splits maxMarks across count questions; every question must be worth something.
func questionMarks(maxMarks, count int) (int, error) {
	marks := grading.MarksPerQuestion(maxMarks, count)
	if marks <= 0 {
		return 0, apperror.BadRequest("max marks must be at least the number of questions")
	}
	return marks, nil
}

func gradingQuestions(questions []models.McqQuestion) []grading.Question {
	out := make([]grading.Question, 0, len(questions))
	for _, q := range questions {
		out = append(out, grading.Question{
			Number:         q.QuestionNumber,
			Marks:          q.Marks,
			OptionCount:    len(q.Options),
			CorrectOptions: []int(q.CorrectOptions),
		})
	}
	return out
}

func gradingAnswers(answers []models.McqAnswer) []grading.Answer {
	out := make([]grading.Answer, 0, len(answers))
	for _, a := range answers {
		out = append(out, grading.Answer{QuestionNumber: a.QuestionNumber, SelectedOptionIndex: a.SelectedOptionIndex})
	}
	return out
}

func storedAnswers(requests []dto.McqAnswerRequest) []models.McqAnswer {
	out := make([]models.McqAnswer, 0, len(requests))
	for _, r := range requests {
		out = append(out, models.McqAnswer{QuestionNumber: r.QuestionNumber, SelectedOptionIndex: r.SelectedOptionIndex})
	}
	return out
}

func gradingPolicy(assignment models.Assignment, bank models.McqQuestionBank) grading.Policy {
	return grading.Policy{MaxMarks: assignment.MaxMarks, PassingPercentage: bank.PassingPercentage}
}

func newMcqAssignmentResponse(assignment models.Assignment, bank models.McqQuestionBank) dto.McqAssignmentResponse {
	questions := make([]dto.McqQuestionResponse, 0, len(bank.Questions))
	for _, q := range bank.Questions {
		options := make([]dto.McqOptionResponse, 0, len(q.Options))
		for idx, text := range q.Options {
			options = append(options, dto.McqOptionResponse{
				Index:     idx,
				Text:      text,
				IsCorrect: containsInt(q.CorrectOptions, idx),
			})
		}
		questions = append(questions, dto.McqQuestionResponse{
			ID:             q.ID,
			QuestionNumber: q.QuestionNumber,
			Text:           q.Text,
			Marks:          q.Marks,
			Options:        options,
		})
	}

	return dto.McqAssignmentResponse{
		AssignmentID:       assignment.ID,
		BatchID:            assignment.BatchID,
		Title:              assignment.Title,
		Description:        assignment.Description,
		MaxMarks:           assignment.MaxMarks,
		Status:             string(assignment.Status),
		PassingPercentage:  bank.PassingPercentage,
		ShowCorrectAnswers: bank.ShowCorrectAnswers,
		TimeLimitMinutes:   bank.TimeLimitMinutes,
		TotalQuestions:     len(bank.Questions),
		Questions:          questions,
		CreatedAt:          assignment.CreatedAt,
	}
}

// newMcqSubmissionResponse renders a graded attempt. The per question breakdown
// is only attached when reveal is set.
func newMcqSubmissionResponse(assignment models.Assignment, bank models.McqQuestionBank, attempt models.McqSubmission, result grading.Result, reveal bool) dto.McqSubmissionResponse {
	response := dto.McqSubmissionResponse{
		SubmissionID:     attempt.ID,
		AssignmentID:     assignment.ID,
		AssignmentTitle:  assignment.Title,
		TotalMarks:       result.MaxMarks,
		ObtainedMarks:    result.ObtainedMarks,
		Percentage:       result.Percentage,
		Passed:           result.Passed,
		SubmittedAt:      attempt.SubmittedAt,
		TimeTakenSeconds: attempt.TimeTakenSeconds,
		CorrectCount:     result.CorrectCount,
		IncorrectCount:   result.IncorrectCount,
		TotalQuestions:   result.TotalQuestions,
	}
	if !reveal {
		return response
	}

	byNumber := make(map[int]models.McqQuestion, len(bank.Questions))
	for _, q := range bank.Questions {
		byNumber[q.QuestionNumber] = q
	}

	results := make([]dto.McqQuestionResult, 0, len(result.Outcomes))
	for _, outcome := range result.Outcomes {
		q := byNumber[outcome.QuestionNumber]
		results = append(results, dto.McqQuestionResult{
			QuestionNumber: outcome.QuestionNumber,
			Text:           q.Text,
			Marks:          q.Marks,
			MarksObtained:  outcome.Awarded,
			IsCorrect:      outcome.Correct,
			Options:        []string(q.Options),
			SelectedOption: outcome.Selected,
			CorrectOptions: outcome.CorrectOptions,
		})
	}
	response.QuestionResults = results
	return response
}

func containsInt(values []int, target int) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

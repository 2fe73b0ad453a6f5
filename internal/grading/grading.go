// Package grading scores MCQ answers against a question bank.
//
// Evaluate depends only on its arguments, so replaying stored answers
// reproduces the stored score exactly.
package grading

import (
	"github.com/noah-isme/gema-assignment-api/internal/apperror"
)

// Question is the grading view of one MCQ question.
type Question struct {
	Number         int
	Marks          int
	OptionCount    int
	CorrectOptions []int
}

// Answer is a raw student answer. Nil fields mean the value was not sent.
type Answer struct {
	QuestionNumber      *int
	SelectedOptionIndex *int
}

// Policy carries the assignment level inputs to grading.
type Policy struct {
	MaxMarks          int
	PassingPercentage float64
}

// Outcome is the per question breakdown.
type Outcome struct {
	QuestionNumber int
	Selected       *int
	CorrectOptions []int
	Correct        bool
	Awarded        int
}

// Result is the graded attempt.
type Result struct {
	TotalQuestions int
	CorrectCount   int
	IncorrectCount int
	ObtainedMarks  int
	MaxMarks       int
	Percentage     float64
	Passed         bool
	Outcomes       []Outcome
}

// Evaluate grades answers against questions.
//
// Only the first answer sent for a question number counts. Unanswered and
// out of range selections earn nothing and are counted as incorrect.
func Evaluate(questions []Question, answers []Answer, policy Policy) (Result, error) {
	if policy.MaxMarks <= 0 {
		return Result{}, apperror.BadRequest("max marks must be positive")
	}

	for _, q := range questions {
		if len(q.CorrectOptions) == 0 {
			return Result{}, apperror.BadRequest("question %d has no correct answer configured", q.Number)
		}
	}

	byNumber := make(map[int]Answer, len(answers))
	for _, a := range answers {
		if a.QuestionNumber == nil {
			continue
		}
		if _, seen := byNumber[*a.QuestionNumber]; seen {
			continue
		}
		byNumber[*a.QuestionNumber] = a
	}

	result := Result{
		TotalQuestions: len(questions),
		MaxMarks:       policy.MaxMarks,
		Outcomes:       make([]Outcome, 0, len(questions)),
	}

	for _, q := range questions {
		outcome := Outcome{
			QuestionNumber: q.Number,
			CorrectOptions: append([]int(nil), q.CorrectOptions...),
		}

		if answer, ok := byNumber[q.Number]; ok && answer.SelectedOptionIndex != nil {
			selected := *answer.SelectedOptionIndex
			outcome.Selected = &selected
			if selected >= 0 && selected < q.OptionCount && contains(q.CorrectOptions, selected) {
				outcome.Correct = true
				outcome.Awarded = q.Marks
				result.CorrectCount++
				result.ObtainedMarks += q.Marks
			}
		}

		result.Outcomes = append(result.Outcomes, outcome)
	}

	result.IncorrectCount = result.TotalQuestions - result.CorrectCount
	result.Percentage = Percentage(result.ObtainedMarks, policy.MaxMarks)
	result.Passed = result.Percentage >= policy.PassingPercentage

	return result, nil
}

// Percentage returns obtained as a percentage of the nominal maximum.
func Percentage(obtained, maxMarks int) float64 {
	if maxMarks <= 0 {
		return 0
	}
	return float64(obtained) * 100.0 / float64(maxMarks)
}

// MarksPerQuestion splits maxMarks evenly. The remainder is dropped.
func MarksPerQuestion(maxMarks, questionCount int) int {
	if questionCount <= 0 {
		return 0
	}
	return maxMarks / questionCount
}

func contains(values []int, target int) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

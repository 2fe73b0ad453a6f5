package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-assignment-api/internal/apperror"
	"github.com/noah-isme/gema-assignment-api/internal/dto"
	"github.com/noah-isme/gema-assignment-api/internal/gateway"
	"github.com/noah-isme/gema-assignment-api/internal/models"
)

func TestAssignmentCreateValidatesBatchOwnership(t *testing.T) {
	f := newFixture(t)
	svc := f.assignmentService()
	ctx := context.Background()

	created, err := svc.Create(ctx, testTeacherID, dto.AssignmentCreateRequest{
		BatchID:  testBatchID,
		Title:    "  Essay on recursion ",
		Kind:     "text",
		MaxMarks: 20,
	})
	require.NoError(t, err)
	require.Equal(t, "Essay on recursion", created.Title)
	require.Equal(t, string(models.AssignmentKindText), created.Kind)
	require.Equal(t, string(models.AssignmentStatusDraft), created.Status)
	require.Equal(t, "JAVA-101", created.BatchCode)

	_, err = svc.Create(ctx, testTeacherID, dto.AssignmentCreateRequest{BatchID: 77, Title: "Other batch", Kind: "TEXT", MaxMarks: 10})
	require.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = svc.Create(ctx, testTeacherID, dto.AssignmentCreateRequest{BatchID: testBatchID, Title: "Quiz", Kind: "MCQ", MaxMarks: 10})
	var validationErrs validator.ValidationErrors
	require.True(t, errors.As(err, &validationErrs))

	f.batches.err = apperror.Unavailable(errors.New("timeout"), "batch service unavailable")
	_, err = svc.Create(ctx, testTeacherID, dto.AssignmentCreateRequest{BatchID: testBatchID, Title: "Essay", Kind: "FILE", MaxMarks: 10})
	require.ErrorIs(t, err, apperror.ErrServiceUnavailable)
}

func TestAssignmentUpdateKeepsKindAndRejectsDeleted(t *testing.T) {
	f := newFixture(t)
	svc := f.assignmentService()
	ctx := context.Background()

	assignment := f.seedAssignment(t, models.AssignmentKindFile, models.AssignmentStatusPublished)
	title := "Lab report"
	updated, err := svc.Update(ctx, assignment.ID, testTeacherID, dto.AssignmentUpdateRequest{Title: &title, MaxMarks: intPtr(40)})
	require.NoError(t, err)
	require.Equal(t, title, updated.Title)
	require.Equal(t, 40, updated.MaxMarks)
	require.Equal(t, string(models.AssignmentKindFile), updated.Kind)

	_, err = svc.Update(ctx, assignment.ID, 2, dto.AssignmentUpdateRequest{Title: &title})
	require.ErrorIs(t, err, apperror.ErrForbidden)

	mcq := f.seedAssignment(t, models.AssignmentKindMCQ, models.AssignmentStatusDraft)
	_, err = svc.Update(ctx, mcq.ID, testTeacherID, dto.AssignmentUpdateRequest{Title: &title})
	require.ErrorIs(t, err, apperror.ErrBadRequest)

	deleted := f.seedAssignment(t, models.AssignmentKindText, models.AssignmentStatusDeleted)
	_, err = svc.Update(ctx, deleted.ID, testTeacherID, dto.AssignmentUpdateRequest{Title: &title})
	require.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestListMineDecoratesWithCountsAndBatchCode(t *testing.T) {
	f := newFixture(t)
	svc := f.assignmentService()
	ctx := context.Background()

	text := f.seedAssignment(t, models.AssignmentKindText, models.AssignmentStatusPublished)
	f.seedAssignment(t, models.AssignmentKindFile, models.AssignmentStatusDraft)
	f.seedAssignment(t, models.AssignmentKindText, models.AssignmentStatusDeleted)

	for _, studentID := range []uint{5, 6} {
		submission := models.Submission{AssignmentID: text.ID, StudentID: studentID, Content: "x", SubmittedAt: time.Now()}
		require.NoError(t, f.submissions.Create(ctx, &submission))
	}

	list, err := svc.ListMine(ctx, testTeacherID, dto.AssignmentListQuery{})
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	require.Equal(t, int64(2), list.Pagination.TotalItems)
	require.Equal(t, 1, list.Pagination.TotalPages)

	byID := map[uint]dto.AssignmentResponse{}
	for _, item := range list.Items {
		byID[item.ID] = item
		require.Equal(t, "JAVA-101", item.BatchCode)
	}
	require.Equal(t, int64(2), byID[text.ID].TotalSubmissions)

	filtered, err := svc.ListMine(ctx, testTeacherID, dto.AssignmentListQuery{Status: "PUBLISHED"})
	require.NoError(t, err)
	require.Len(t, filtered.Items, 1)
}

func TestListMineFallsBackWhenBatchCodeUnavailable(t *testing.T) {
	f := newFixture(t)
	f.seedAssignment(t, models.AssignmentKindText, models.AssignmentStatusDraft)

	breaker := gateway.NewBreaker("batch_service_listing_test", gateway.DefaultBreakerConfig(), zerolog.Nop())
	retry := gateway.RetryPolicy{MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, MaxElapsedTime: time.Second}
	batches := gateway.NewBatchGateway(&downBatchClient{}, breaker, retry, zerolog.Nop())

	svc := NewAssignmentService(f.assignments, f.submissions, f.banks, f.mcqSubmissions, batches, f.cache, f.validate, zerolog.Nop())
	list, err := svc.ListMine(context.Background(), testTeacherID, dto.AssignmentListQuery{})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Equal(t, "BATCH-10", list.Items[0].BatchCode)
}

func TestEvaluateSubmission(t *testing.T) {
	f := newFixture(t)
	f.batches.enroll(testBatchID, 5)
	ctx := context.Background()
	assignment := f.seedAssignment(t, models.AssignmentKindText, models.AssignmentStatusPublished)

	_, err := f.studentService().SubmitText(ctx, assignment.ID, 5, dto.TextSubmissionRequest{Content: "answer"})
	require.NoError(t, err)

	review := f.submissionService(nil)

	_, err = review.Evaluate(ctx, assignment.ID, 5, testTeacherID, dto.EvaluateSubmissionRequest{ObtainedMarks: intPtr(101)})
	require.ErrorIs(t, err, apperror.ErrBadRequest)

	_, err = review.Evaluate(ctx, assignment.ID, 6, testTeacherID, dto.EvaluateSubmissionRequest{ObtainedMarks: intPtr(50)})
	require.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = review.Evaluate(ctx, assignment.ID, 5, 2, dto.EvaluateSubmissionRequest{ObtainedMarks: intPtr(50)})
	require.ErrorIs(t, err, apperror.ErrForbidden)

	f.warmCache(t, 5)
	first, err := review.Evaluate(ctx, assignment.ID, 5, testTeacherID, dto.EvaluateSubmissionRequest{ObtainedMarks: intPtr(60), Feedback: "ok"})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusEvaluated, first.Status)
	require.Equal(t, "Student #5", first.Student.Name)
	require.False(t, f.cached(5))

	_, err = review.Evaluate(ctx, assignment.ID, 5, testTeacherID, dto.EvaluateSubmissionRequest{ObtainedMarks: intPtr(85), Feedback: "better"})
	require.NoError(t, err)

	listed, err := review.ListSubmissions(ctx, assignment.ID, testTeacherID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, 85, *listed[0].ObtainedMarks)
	require.Equal(t, "better", listed[0].Feedback)
	require.NotNil(t, listed[0].EvaluatedAt)

	mcq := f.seedAssignment(t, models.AssignmentKindMCQ, models.AssignmentStatusPublished)
	_, err = review.Evaluate(ctx, mcq.ID, 5, testTeacherID, dto.EvaluateSubmissionRequest{ObtainedMarks: intPtr(1)})
	require.ErrorIs(t, err, apperror.ErrBadRequest)
}

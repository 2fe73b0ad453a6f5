package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-assignment-api/internal/apperror"
	"github.com/noah-isme/gema-assignment-api/internal/gateway"
	"github.com/noah-isme/gema-assignment-api/internal/models"
	"github.com/noah-isme/gema-assignment-api/internal/notification"
)

func TestLifecyclePublishNotifiesAndEvictsEnrolledStudents(t *testing.T) {
	f := newFixture(t)
	f.batches.enroll(testBatchID, 5, 6)
	f.warmCache(t, 5, 6, 7)
	assignment := f.seedAssignment(t, models.AssignmentKindText, models.AssignmentStatusDraft)

	resp, err := f.lifecycle().Publish(context.Background(), assignment.ID, testTeacherID)
	require.NoError(t, err)
	require.Equal(t, string(models.AssignmentStatusPublished), resp.Status)
	require.Equal(t, 2, resp.StudentsNotified)

	stored, err := f.assignments.GetByID(context.Background(), assignment.ID)
	require.NoError(t, err)
	require.Equal(t, models.AssignmentStatusPublished, stored.Status)

	events := f.notifier.Events()
	require.Len(t, events, 2)
	targets := []uint{events[0].TargetUserID, events[1].TargetUserID}
	require.ElementsMatch(t, []uint{5, 6}, targets)
	for _, event := range events {
		require.Equal(t, notification.TypeAssignmentPublished, event.Type)
		require.Equal(t, notification.RoleStudent, event.Role)
		require.Equal(t, "New assignment published", event.Title)
		require.Contains(t, event.Body, assignment.Title)
	}

	require.False(t, f.cached(5))
	require.False(t, f.cached(6))
	require.True(t, f.cached(7))
}

func TestLifecyclePublishTwiceHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	f.batches.enroll(testBatchID, 5)
	assignment := f.seedAssignment(t, models.AssignmentKindText, models.AssignmentStatusDraft)
	svc := f.lifecycle()

	_, err := svc.Publish(context.Background(), assignment.ID, testTeacherID)
	require.NoError(t, err)

	f.notifier.Reset()
	f.warmCache(t, 5)
	rosterCalls := f.batches.rosterCalls

	_, err = svc.Publish(context.Background(), assignment.ID, testTeacherID)
	require.ErrorIs(t, err, apperror.ErrInvalidState)
	require.Empty(t, f.notifier.Events())
	require.True(t, f.cached(5))
	require.Equal(t, rosterCalls, f.batches.rosterCalls)
}

func TestLifecycleFollowsStateMachine(t *testing.T) {
	f := newFixture(t)
	svc := f.lifecycle()
	ctx := context.Background()

	draft := f.seedAssignment(t, models.AssignmentKindFile, models.AssignmentStatusDraft)
	_, err := svc.Close(ctx, draft.ID, testTeacherID)
	require.ErrorIs(t, err, apperror.ErrInvalidState)

	_, err = svc.Publish(ctx, draft.ID, testTeacherID)
	require.NoError(t, err)
	_, err = svc.Close(ctx, draft.ID, testTeacherID)
	require.NoError(t, err)

	_, err = svc.Publish(ctx, draft.ID, testTeacherID)
	require.ErrorIs(t, err, apperror.ErrInvalidState)
	_, err = svc.Delete(ctx, draft.ID, testTeacherID)
	require.ErrorIs(t, err, apperror.ErrInvalidState)

	other := f.seedAssignment(t, models.AssignmentKindText, models.AssignmentStatusDraft)
	resp, err := svc.Delete(ctx, other.ID, testTeacherID)
	require.NoError(t, err)
	require.Equal(t, string(models.AssignmentStatusDeleted), resp.Status)

	stored, err := f.assignments.GetByID(ctx, other.ID)
	require.NoError(t, err)
	require.Equal(t, models.AssignmentStatusDeleted, stored.Status)
	require.NotNil(t, stored.DeletedAt)

	rosterCalls := f.batches.rosterCalls
	_, err = svc.Delete(ctx, other.ID, testTeacherID)
	require.NoError(t, err)
	require.Equal(t, rosterCalls, f.batches.rosterCalls)

	_, err = svc.Publish(ctx, other.ID, testTeacherID)
	require.ErrorIs(t, err, apperror.ErrInvalidState)
}

func TestLifecycleChecksExistenceAndOwnership(t *testing.T) {
	f := newFixture(t)
	svc := f.lifecycle()
	assignment := f.seedAssignment(t, models.AssignmentKindText, models.AssignmentStatusDraft)

	_, err := svc.Publish(context.Background(), 9999, testTeacherID)
	require.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = svc.Publish(context.Background(), assignment.ID, 42)
	require.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestLifecycleUsesMcqWording(t *testing.T) {
	f := newFixture(t)
	f.batches.enroll(testBatchID, 5)
	assignment := f.seedAssignment(t, models.AssignmentKindMCQ, models.AssignmentStatusPublished)

	_, err := f.lifecycle().Close(context.Background(), assignment.ID, testTeacherID)
	require.NoError(t, err)

	events := f.notifier.Events()
	require.Len(t, events, 1)
	require.Equal(t, "MCQ closed", events[0].Title)
	require.Equal(t, notification.TypeAssignmentClosed, events[0].Type)
}

type downBatchClient struct {
	calls int
}

func (c *downBatchClient) fail() error {
	c.calls++
	return &gateway.StatusError{Dependency: "batch_service", Code: 503, Body: "down"}
}

func (c *downBatchClient) ValidateTeacherBatch(context.Context, uint, uint) (bool, error) {
	return false, c.fail()
}

func (c *downBatchClient) StudentBatchIDs(context.Context, uint) ([]uint, error) {
	return nil, c.fail()
}

func (c *downBatchClient) BatchStudentIDs(context.Context, uint) ([]uint, error) {
	return nil, c.fail()
}

func (c *downBatchClient) BatchCode(context.Context, uint) (string, error) {
	return "", c.fail()
}

func TestLifecyclePublishFailsClosedWhenBatchServiceIsDown(t *testing.T) {
	f := newFixture(t)
	f.warmCache(t, 5)
	assignment := f.seedAssignment(t, models.AssignmentKindText, models.AssignmentStatusDraft)

	client := &downBatchClient{}
	breaker := gateway.NewBreaker("batch_service_lifecycle_test", gateway.BreakerConfig{
		FailureRateThreshold: 50,
		MinimumRequests:      2,
		Window:               time.Minute,
		OpenTimeout:          time.Minute,
		HalfOpenRequests:     1,
	}, zerolog.Nop())
	retry := gateway.RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, MaxElapsedTime: time.Second}
	batches := gateway.NewBatchGateway(client, breaker, retry, zerolog.Nop())

	svc := NewLifecycleService(f.assignments, batches, f.cache, f.notifier, 4, zerolog.Nop())

	_, err := svc.Publish(context.Background(), assignment.ID, testTeacherID)
	require.ErrorIs(t, err, apperror.ErrServiceUnavailable)

	callsAfterFirst := client.calls
	_, err = svc.Publish(context.Background(), assignment.ID, testTeacherID)
	require.ErrorIs(t, err, apperror.ErrServiceUnavailable)
	require.Equal(t, callsAfterFirst, client.calls, "open breaker must short-circuit")

	stored, err := f.assignments.GetByID(context.Background(), assignment.ID)
	require.NoError(t, err)
	require.Equal(t, models.AssignmentStatusDraft, stored.Status)
	require.Empty(t, f.notifier.Events())
	require.True(t, f.cached(5))
}

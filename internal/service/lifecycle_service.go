package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/gema-assignment-api/internal/apperror"
	"github.com/noah-isme/gema-assignment-api/internal/cache"
	"github.com/noah-isme/gema-assignment-api/internal/dto"
	"github.com/noah-isme/gema-assignment-api/internal/models"
	"github.com/noah-isme/gema-assignment-api/internal/notification"
	"github.com/noah-isme/gema-assignment-api/internal/observability"
	"github.com/noah-isme/gema-assignment-api/internal/repository"
)

// DefaultFanOutLimit bounds concurrent per-student fan-out work.
const DefaultFanOutLimit = 8

// LifecycleService moves assignments through DRAFT, PUBLISHED, CLOSED and DELETED.
type LifecycleService interface {
	Publish(ctx context.Context, assignmentID, teacherID uint) (dto.LifecycleResponse, error)
	Close(ctx context.Context, assignmentID, teacherID uint) (dto.LifecycleResponse, error)
	Delete(ctx context.Context, assignmentID, teacherID uint) (dto.LifecycleResponse, error)
}

type transition struct {
	name      string
	target    models.AssignmentStatus
	eventType string
	verb      string
	title     string
	mcqTitle  string
}

var (
	publishTransition = transition{
		name:      "publish",
		target:    models.AssignmentStatusPublished,
		eventType: notification.TypeAssignmentPublished,
		verb:      "published",
		title:     "New assignment published",
		mcqTitle:  "New MCQ published",
	}
	closeTransition = transition{
		name:      "close",
		target:    models.AssignmentStatusClosed,
		eventType: notification.TypeAssignmentClosed,
		verb:      "closed",
		title:     "Assignment closed",
		mcqTitle:  "MCQ closed",
	}
	deleteTransition = transition{
		name:      "delete",
		target:    models.AssignmentStatusDeleted,
		eventType: notification.TypeAssignmentDeleted,
		verb:      "removed",
		title:     "Assignment removed",
		mcqTitle:  "MCQ removed",
	}
)

func (t transition) event(assignment models.Assignment, studentID uint) notification.Event {
	title, body := t.title, fmt.Sprintf("Assignment %q has been %s.", assignment.Title, t.verb)
	if assignment.Kind == models.AssignmentKindMCQ {
		title, body = t.mcqTitle, fmt.Sprintf("MCQ %q has been %s.", assignment.Title, t.verb)
	}
	return notification.Event{
		Type:         t.eventType,
		TargetUserID: studentID,
		Role:         notification.RoleStudent,
		Title:        title,
		Body:         body,
	}
}

type lifecycleService struct {
	assignments repository.AssignmentRepository
	batches     BatchDirectory
	cache       cache.Client
	notifier    Notifier
	logger      zerolog.Logger
	tracer      trace.Tracer
	fanOutLimit int
	now         func() time.Time
}

// NewLifecycleService constructs the lifecycle state machine.
func NewLifecycleService(assignments repository.AssignmentRepository, batches BatchDirectory, cacheClient cache.Client, notifier Notifier, fanOutLimit int, logger zerolog.Logger) LifecycleService {
	if cacheClient == nil {
		cacheClient = cache.Disabled{}
	}
	if fanOutLimit <= 0 {
		fanOutLimit = DefaultFanOutLimit
	}
	return &lifecycleService{
		assignments: assignments,
		batches:     batches,
		cache:       cacheClient,
		notifier:    notifier,
		logger:      logger.With().Str("component", "assignment_lifecycle").Logger(),
		tracer:      otel.Tracer(tracerName + "/lifecycle"),
		fanOutLimit: fanOutLimit,
		now:         time.Now,
	}
}

func (s *lifecycleService) Publish(ctx context.Context, assignmentID, teacherID uint) (dto.LifecycleResponse, error) {
	return s.apply(ctx, assignmentID, teacherID, publishTransition)
}

func (s *lifecycleService) Close(ctx context.Context, assignmentID, teacherID uint) (dto.LifecycleResponse, error) {
	return s.apply(ctx, assignmentID, teacherID, closeTransition)
}

func (s *lifecycleService) Delete(ctx context.Context, assignmentID, teacherID uint) (dto.LifecycleResponse, error) {
	return s.apply(ctx, assignmentID, teacherID, deleteTransition)
}

func (s *lifecycleService) apply(ctx context.Context, assignmentID, teacherID uint, t transition) (dto.LifecycleResponse, error) {
	ctx, span := s.tracer.Start(ctx, "assignment."+t.name, trace.WithAttributes(
		attribute.Int64("assignment.id", int64(assignmentID)),
		attribute.Int64("teacher.id", int64(teacherID)),
	))
	defer span.End()

	response, err := s.transition(ctx, assignmentID, teacherID, t)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, t.name+" rejected")
		observability.LifecycleTransitions().WithLabelValues(t.name, outcomeOf(err)).Inc()
		return dto.LifecycleResponse{}, err
	}

	observability.LifecycleTransitions().WithLabelValues(t.name, "ok").Inc()
	return response, nil
}

func (s *lifecycleService) transition(ctx context.Context, assignmentID, teacherID uint, t transition) (dto.LifecycleResponse, error) {
	assignment, err := findAssignment(ctx, s.assignments, assignmentID)
	if err != nil {
		return dto.LifecycleResponse{}, err
	}

	if !assignment.IsOwnedBy(teacherID) {
		return dto.LifecycleResponse{}, apperror.Forbidden("you do not own this assignment")
	}

	if t.target == models.AssignmentStatusDeleted && assignment.Status == models.AssignmentStatusDeleted {
		return dto.LifecycleResponse{AssignmentID: assignment.ID, Status: string(assignment.Status)}, nil
	}

	from := assignment.Status
	if !from.CanTransitionTo(t.target) {
		return dto.LifecycleResponse{}, apperror.InvalidState("cannot %s an assignment in status %s", t.name, from)
	}

	students, err := s.batches.BatchStudentIDs(ctx, assignment.BatchID)
	if err != nil {
		return dto.LifecycleResponse{}, err
	}

	if err := s.assignments.TransitionStatus(ctx, assignment.ID, from, t.target, s.now()); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return dto.LifecycleResponse{}, apperror.InvalidState("assignment status changed, cannot %s", t.name)
		}
		return dto.LifecycleResponse{}, err
	}
	assignment.Status = t.target

	s.logger.Info().
		Uint("assignment_id", assignment.ID).
		Str("from", string(from)).
		Str("to", string(t.target)).
		Int("students", len(students)).
		Msg("assignment status changed")

	s.fanOut(ctx, assignment, students, t)

	return dto.LifecycleResponse{
		AssignmentID:     assignment.ID,
		Status:           string(assignment.Status),
		StudentsNotified: len(students),
	}, nil
}

// fanOut notifies and evicts every affected student. It returns once every student was handled.
func (s *lifecycleService) fanOut(ctx context.Context, assignment models.Assignment, students []uint, t transition) {
	if len(students) == 0 {
		return
	}

	// The state change is committed; a cancelled caller must not cut fan-out short.
	ctx = context.WithoutCancel(ctx)

	var group errgroup.Group
	group.SetLimit(s.fanOutLimit)
	for _, studentID := range students {
		studentID := studentID
		group.Go(func() error {
			if s.notifier != nil {
				s.notifier.Notify(ctx, t.event(assignment, studentID))
			}
			if err := evictStudent(ctx, s.cache, studentID); err != nil {
				s.logger.Warn().Err(err).Uint("student_id", studentID).Uint("assignment_id", assignment.ID).Msg("failed to evict student cache")
			}
			return nil
		})
	}
	_ = group.Wait()
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperror.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperror.ErrForbidden):
		return "forbidden"
	case errors.Is(err, apperror.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, apperror.ErrBadRequest):
		return "bad_request"
	case errors.Is(err, apperror.ErrServiceUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

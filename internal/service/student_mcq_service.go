package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assignment-api/internal/apperror"
	"github.com/noah-isme/gema-assignment-api/internal/cache"
	"github.com/noah-isme/gema-assignment-api/internal/dto"
	"github.com/noah-isme/gema-assignment-api/internal/grading"
	"github.com/noah-isme/gema-assignment-api/internal/models"
	"github.com/noah-isme/gema-assignment-api/internal/notification"
	"github.com/noah-isme/gema-assignment-api/internal/observability"
	"github.com/noah-isme/gema-assignment-api/internal/repository"
)

// StudentMcqService exposes the student side of MCQ assignments.
type StudentMcqService interface {
	Get(ctx context.Context, assignmentID, studentID uint) (dto.StudentMcqAssignmentResponse, error)
	Submit(ctx context.Context, assignmentID, studentID uint, payload dto.McqSubmitRequest) (dto.McqSubmissionResponse, error)
	Result(ctx context.Context, assignmentID, studentID uint) (dto.McqSubmissionResponse, error)
}

type studentMcqService struct {
	assignments repository.AssignmentRepository
	banks       repository.QuestionBankRepository
	attempts    repository.McqSubmissionRepository
	batches     BatchDirectory
	admission   admission
	cache       cache.Client
	notifier    Notifier
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewStudentMcqService builds the student MCQ service.
func NewStudentMcqService(
	assignments repository.AssignmentRepository,
	banks repository.QuestionBankRepository,
	attempts repository.McqSubmissionRepository,
	batches BatchDirectory,
	cacheClient cache.Client,
	notifier Notifier,
	validate *validator.Validate,
	logger zerolog.Logger,
) StudentMcqService {
	if cacheClient == nil {
		cacheClient = cache.Disabled{}
	}
	return &studentMcqService{
		assignments: assignments,
		banks:       banks,
		attempts:    attempts,
		batches:     batches,
		admission:   admission{assignments: assignments, batches: batches},
		cache:       cacheClient,
		notifier:    notifier,
		validator:   validate,
		logger:      logger.With().Str("component", "student_mcq_service").Logger(),
		tracer:      otel.Tracer(tracerName + "/mcq"),
		now:         time.Now,
	}
}

func (s *studentMcqService) Get(ctx context.Context, assignmentID, studentID uint) (dto.StudentMcqAssignmentResponse, error) {
	assignment, bank, err := s.visible(ctx, assignmentID, studentID)
	if err != nil {
		return dto.StudentMcqAssignmentResponse{}, err
	}

	submitted, err := s.attempts.Exists(ctx, bank.ID, studentID)
	if err != nil {
		return dto.StudentMcqAssignmentResponse{}, err
	}

	questions := make([]dto.StudentMcqQuestion, 0, len(bank.Questions))
	for _, q := range bank.Questions {
		questions = append(questions, dto.StudentMcqQuestion{
			QuestionNumber: q.QuestionNumber,
			Text:           q.Text,
			Marks:          q.Marks,
			Options:        append([]string(nil), q.Options...),
		})
	}

	return dto.StudentMcqAssignmentResponse{
		AssignmentID:      assignment.ID,
		Title:             assignment.Title,
		Description:       assignment.Description,
		MaxMarks:          assignment.MaxMarks,
		PassingPercentage: bank.PassingPercentage,
		TimeLimitMinutes:  bank.TimeLimitMinutes,
		TotalQuestions:    len(bank.Questions),
		Questions:         questions,
		AlreadySubmitted:  submitted,
	}, nil
}

func (s *studentMcqService) Submit(ctx context.Context, assignmentID, studentID uint, payload dto.McqSubmitRequest) (dto.McqSubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.mcq", trace.WithAttributes(
		attribute.Int64("assignment.id", int64(assignmentID)),
		attribute.Int64("student.id", int64(studentID)),
		attribute.Int("answers", len(payload.Answers)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.McqSubmissionResponse{}, err
	}

	var bank models.McqQuestionBank
	prior := func(ctx context.Context, assignment models.Assignment) (bool, error) {
		var err error
		bank, err = loadQuestionBank(ctx, s.banks, assignment.ID)
		if err != nil {
			return false, err
		}
		return s.attempts.Exists(ctx, bank.ID, studentID)
	}

	assignment, err := s.admission.admit(ctx, assignmentID, studentID, models.AssignmentKindMCQ, prior)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "admission rejected")
		return dto.McqSubmissionResponse{}, err
	}

	answers := storedAnswers(payload.Answers)
	result, err := grading.Evaluate(gradingQuestions(bank.Questions), gradingAnswers(answers), gradingPolicy(assignment, bank))
	if err != nil {
		span.RecordError(err)
		return dto.McqSubmissionResponse{}, err
	}

	attempt := models.McqSubmission{
		QuestionBankID:   bank.ID,
		StudentID:        studentID,
		Answers:          datatypes.NewJSONSlice(answers),
		TotalMarks:       assignment.MaxMarks,
		ObtainedMarks:    result.ObtainedMarks,
		Percentage:       result.Percentage,
		Passed:           result.Passed,
		SubmittedAt:      s.now(),
		TimeTakenSeconds: payload.TimeTakenSeconds,
	}
	if err := s.attempts.Create(ctx, &attempt, bank.ScoringRevision); err != nil {
		span.RecordError(err)
		if errors.Is(err, repository.ErrScoringChanged) {
			return dto.McqSubmissionResponse{}, apperror.InvalidState("the questions changed while you were answering, reload and submit again")
		}
		return dto.McqSubmissionResponse{}, translateDuplicate(err)
	}

	observability.McqGradings().WithLabelValues(strconv.FormatBool(result.Passed)).Inc()
	span.SetAttributes(
		attribute.Int("mcq.obtained_marks", result.ObtainedMarks),
		attribute.Bool("mcq.passed", result.Passed),
	)

	s.logger.Info().
		Uint("assignment_id", assignment.ID).
		Uint("student_id", studentID).
		Int("obtained", result.ObtainedMarks).
		Float64("percentage", result.Percentage).
		Bool("passed", result.Passed).
		Msg("mcq graded")

	if err := evictStudent(ctx, s.cache, studentID); err != nil {
		s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to evict student cache")
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, notification.Event{
			Type:         notification.TypeSubmissionReceived,
			TargetUserID: assignment.TeacherID,
			Role:         notification.RoleTeacher,
			Title:        "New MCQ submission received",
			Body:         fmt.Sprintf("A student submitted %q.", assignment.Title),
		})
	}

	return newMcqSubmissionResponse(assignment, bank, attempt, result, bank.ShowCorrectAnswers), nil
}

func (s *studentMcqService) Result(ctx context.Context, assignmentID, studentID uint) (dto.McqSubmissionResponse, error) {
	assignment, err := findVisibleAssignment(ctx, s.assignments, assignmentID)
	if err != nil {
		return dto.McqSubmissionResponse{}, err
	}
	if assignment.Kind != models.AssignmentKindMCQ {
		return dto.McqSubmissionResponse{}, apperror.BadRequest("assignment is not an MCQ assignment")
	}

	bank, err := loadQuestionBank(ctx, s.banks, assignment.ID)
	if err != nil {
		return dto.McqSubmissionResponse{}, err
	}

	attempt, err := s.attempts.GetByBankAndStudent(ctx, bank.ID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.McqSubmissionResponse{}, apperror.NotFound("you have not submitted this assignment")
		}
		return dto.McqSubmissionResponse{}, err
	}

	result, err := grading.Evaluate(gradingQuestions(bank.Questions), gradingAnswers(attempt.Answers), gradingPolicy(assignment, bank))
	if err != nil {
		return dto.McqSubmissionResponse{}, err
	}

	return newMcqSubmissionResponse(assignment, bank, attempt, result, bank.ShowCorrectAnswers), nil
}

// visible loads an MCQ assignment the student may read. Drafts are hidden.
func (s *studentMcqService) visible(ctx context.Context, assignmentID, studentID uint) (models.Assignment, models.McqQuestionBank, error) {
	assignment, err := findVisibleAssignment(ctx, s.assignments, assignmentID)
	if err != nil {
		return models.Assignment{}, models.McqQuestionBank{}, err
	}
	if assignment.Status == models.AssignmentStatusDraft {
		return models.Assignment{}, models.McqQuestionBank{}, apperror.NotFound("assignment not found")
	}
	if assignment.Kind != models.AssignmentKindMCQ {
		return models.Assignment{}, models.McqQuestionBank{}, apperror.BadRequest("assignment is not an MCQ assignment")
	}
	if err := ensureEnrolled(ctx, s.batches, studentID, assignment.BatchID); err != nil {
		return models.Assignment{}, models.McqQuestionBank{}, err
	}

	bank, err := loadQuestionBank(ctx, s.banks, assignment.ID)
	if err != nil {
		return models.Assignment{}, models.McqQuestionBank{}, err
	}
	return assignment, bank, nil
}

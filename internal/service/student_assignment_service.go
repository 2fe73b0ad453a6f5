package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-assignment-api/internal/apperror"
	"github.com/noah-isme/gema-assignment-api/internal/cache"
	"github.com/noah-isme/gema-assignment-api/internal/dto"
	"github.com/noah-isme/gema-assignment-api/internal/models"
	"github.com/noah-isme/gema-assignment-api/internal/notification"
	"github.com/noah-isme/gema-assignment-api/internal/repository"
	"github.com/noah-isme/gema-assignment-api/internal/storage"
)

// StudentAssignmentService exposes the student side of TEXT and FILE assignments.
type StudentAssignmentService interface {
	List(ctx context.Context, studentID uint) ([]dto.StudentAssignmentResponse, error)
	SubmitText(ctx context.Context, assignmentID, studentID uint, payload dto.TextSubmissionRequest) (dto.StudentSubmissionResponse, error)
	SubmitFile(ctx context.Context, assignmentID, studentID uint, file dto.FileUpload, body io.Reader) (dto.StudentSubmissionResponse, error)
	Refresh(ctx context.Context, studentID uint) error
}

type studentAssignmentService struct {
	assignments    repository.AssignmentRepository
	submissions    repository.SubmissionRepository
	banks          repository.QuestionBankRepository
	mcqSubmissions repository.McqSubmissionRepository
	batches        BatchDirectory
	admission      admission
	cache          cache.Client
	notifier       Notifier
	store          storage.BlobStore
	uploads        storage.UploadPolicy
	validator      *validator.Validate
	sanitizer      *bluemonday.Policy
	logger         zerolog.Logger
	tracer         trace.Tracer
	now            func() time.Time
}

// StudentAssignmentDeps groups the collaborators of the student service.
type StudentAssignmentDeps struct {
	Assignments    repository.AssignmentRepository
	Submissions    repository.SubmissionRepository
	Banks          repository.QuestionBankRepository
	McqSubmissions repository.McqSubmissionRepository
	Batches        BatchDirectory
	Cache          cache.Client
	Notifier       Notifier
	Store          storage.BlobStore
	Uploads        storage.UploadPolicy
	Validator      *validator.Validate
}

// NewStudentAssignmentService builds the student assignment service.
func NewStudentAssignmentService(deps StudentAssignmentDeps, logger zerolog.Logger) StudentAssignmentService {
	cacheClient := deps.Cache
	if cacheClient == nil {
		cacheClient = cache.Disabled{}
	}
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	return &studentAssignmentService{
		assignments:    deps.Assignments,
		submissions:    deps.Submissions,
		banks:          deps.Banks,
		mcqSubmissions: deps.McqSubmissions,
		batches:        deps.Batches,
		admission:      admission{assignments: deps.Assignments, batches: deps.Batches},
		cache:          cacheClient,
		notifier:       deps.Notifier,
		store:          deps.Store,
		uploads:        deps.Uploads,
		validator:      deps.Validator,
		sanitizer:      sanitizer,
		logger:         logger.With().Str("component", "student_assignment_service").Logger(),
		tracer:         otel.Tracer(tracerName + "/student"),
		now:            time.Now,
	}
}

func (s *studentAssignmentService) List(ctx context.Context, studentID uint) ([]dto.StudentAssignmentResponse, error) {
	key := cache.StudentAssignmentsKey(studentID)

	var cached []dto.StudentAssignmentResponse
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("cache read failed, loading from database")
	} else if found {
		return cached, nil
	}

	batchIDs, err := s.batches.StudentBatchIDs(ctx, studentID)
	if err != nil {
		return nil, err
	}

	assignments, err := s.assignments.ListPublishedInBatches(ctx, batchIDs)
	if err != nil {
		return nil, err
	}

	items, err := s.buildView(ctx, studentID, assignments)
	if err != nil {
		return nil, err
	}

	if len(items) > 0 {
		if err := s.cache.Set(ctx, key, items); err != nil {
			s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to cache student assignments")
		}
	}

	return items, nil
}

func (s *studentAssignmentService) buildView(ctx context.Context, studentID uint, assignments []models.Assignment) ([]dto.StudentAssignmentResponse, error) {
	items := make([]dto.StudentAssignmentResponse, 0, len(assignments))
	if len(assignments) == 0 {
		return items, nil
	}

	var regularIDs, mcqIDs []uint
	for _, assignment := range assignments {
		if assignment.Kind == models.AssignmentKindMCQ {
			mcqIDs = append(mcqIDs, assignment.ID)
		} else {
			regularIDs = append(regularIDs, assignment.ID)
		}
	}

	submissions, err := s.submissions.ListByStudent(ctx, studentID, regularIDs)
	if err != nil {
		return nil, err
	}
	byAssignment := make(map[uint]models.Submission, len(submissions))
	for _, submission := range submissions {
		byAssignment[submission.AssignmentID] = submission
	}

	attempts := make(map[uint]models.McqSubmission)
	if len(mcqIDs) > 0 {
		bankIDs, err := s.banks.BankIDsByAssignments(ctx, mcqIDs)
		if err != nil {
			return nil, err
		}
		assignmentByBank := make(map[uint]uint, len(bankIDs))
		ids := make([]uint, 0, len(bankIDs))
		for assignmentID, bankID := range bankIDs {
			assignmentByBank[bankID] = assignmentID
			ids = append(ids, bankID)
		}
		mcqSubmissions, err := s.mcqSubmissions.ListByStudent(ctx, studentID, ids)
		if err != nil {
			return nil, err
		}
		for _, attempt := range mcqSubmissions {
			attempts[assignmentByBank[attempt.QuestionBankID]] = attempt
		}
	}

	for _, assignment := range assignments {
		item := dto.StudentAssignmentResponse{
			AssignmentID: assignment.ID,
			BatchID:      assignment.BatchID,
			Title:        assignment.Title,
			Description:  assignment.Description,
			Kind:         string(assignment.Kind),
			MaxMarks:     assignment.MaxMarks,
		}

		if assignment.Kind == models.AssignmentKindMCQ {
			if attempt, ok := attempts[assignment.ID]; ok {
				obtained, passed, submittedAt := attempt.ObtainedMarks, attempt.Passed, attempt.SubmittedAt
				item.Submitted = true
				item.ObtainedMarks = &obtained
				item.Passed = &passed
				item.SubmittedAt = &submittedAt
				item.EvaluatedAt = &submittedAt
			}
		} else if submission, ok := byAssignment[assignment.ID]; ok {
			submittedAt := submission.SubmittedAt
			item.Submitted = true
			item.ObtainedMarks = submission.ObtainedMarks
			item.Feedback = submission.Feedback
			item.SubmittedAt = &submittedAt
			item.EvaluatedAt = submission.EvaluatedAt
		}

		items = append(items, item)
	}

	return items, nil
}

func (s *studentAssignmentService) SubmitText(ctx context.Context, assignmentID, studentID uint, payload dto.TextSubmissionRequest) (dto.StudentSubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.text", trace.WithAttributes(
		attribute.Int64("assignment.id", int64(assignmentID)),
		attribute.Int64("student.id", int64(studentID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.StudentSubmissionResponse{}, err
	}

	content := strings.TrimSpace(s.sanitizer.Sanitize(payload.Content))
	if content == "" {
		return dto.StudentSubmissionResponse{}, apperror.BadRequest("submission content is empty")
	}

	assignment, err := s.admission.admit(ctx, assignmentID, studentID, models.AssignmentKindText, s.hasSubmitted(studentID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "admission rejected")
		return dto.StudentSubmissionResponse{}, err
	}

	submission := models.Submission{
		AssignmentID: assignment.ID,
		StudentID:    studentID,
		Content:      content,
		SubmittedAt:  s.now(),
	}
	if err := s.submissions.Create(ctx, &submission); err != nil {
		span.RecordError(err)
		return dto.StudentSubmissionResponse{}, translateDuplicate(err)
	}

	s.afterSubmit(ctx, assignment, studentID, "New submission received")

	return dto.StudentSubmissionResponse{
		SubmissionID: submission.ID,
		AssignmentID: assignment.ID,
		Status:       submission.Status(),
		SubmittedAt:  submission.SubmittedAt,
	}, nil
}

func (s *studentAssignmentService) SubmitFile(ctx context.Context, assignmentID, studentID uint, file dto.FileUpload, body io.Reader) (dto.StudentSubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.file", trace.WithAttributes(
		attribute.Int64("assignment.id", int64(assignmentID)),
		attribute.Int64("student.id", int64(studentID)),
		attribute.String("file.name", file.Name),
	))
	defer span.End()

	assignment, err := s.admission.admit(ctx, assignmentID, studentID, models.AssignmentKindFile, s.hasSubmitted(studentID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "admission rejected")
		return dto.StudentSubmissionResponse{}, err
	}

	if err := s.uploads.Validate(file.Name, file.Size); err != nil {
		return dto.StudentSubmissionResponse{}, err
	}
	if s.store == nil {
		return dto.StudentSubmissionResponse{}, fmt.Errorf("file storage is not configured")
	}

	key := storage.SubmissionKey(assignment.ID, studentID, file.Name)
	location, err := s.store.Put(ctx, key, body, file.Size)
	if err != nil {
		span.RecordError(err)
		return dto.StudentSubmissionResponse{}, fmt.Errorf("store submission file: %w", err)
	}

	submission := models.Submission{
		AssignmentID: assignment.ID,
		StudentID:    studentID,
		FileLocation: location,
		SubmittedAt:  s.now(),
	}
	if err := s.submissions.Create(ctx, &submission); err != nil {
		span.RecordError(err)
		s.logger.Warn().Err(err).Str("location", location).Msg("submission rejected after upload, stored file is orphaned")
		return dto.StudentSubmissionResponse{}, translateDuplicate(err)
	}

	s.afterSubmit(ctx, assignment, studentID, "New file submission received")

	return dto.StudentSubmissionResponse{
		SubmissionID: submission.ID,
		AssignmentID: assignment.ID,
		Status:       submission.Status(),
		FileName:     storage.OriginalFileName(location),
		SubmittedAt:  submission.SubmittedAt,
	}, nil
}

func (s *studentAssignmentService) Refresh(ctx context.Context, studentID uint) error {
	return evictStudent(ctx, s.cache, studentID)
}

func (s *studentAssignmentService) hasSubmitted(studentID uint) priorSubmission {
	return func(ctx context.Context, assignment models.Assignment) (bool, error) {
		return s.submissions.Exists(ctx, assignment.ID, studentID)
	}
}

func (s *studentAssignmentService) afterSubmit(ctx context.Context, assignment models.Assignment, studentID uint, title string) {
	s.logger.Info().Uint("assignment_id", assignment.ID).Uint("student_id", studentID).Msg("submission received")

	if err := evictStudent(ctx, s.cache, studentID); err != nil {
		s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to evict student cache")
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, notification.Event{
			Type:         notification.TypeSubmissionReceived,
			TargetUserID: assignment.TeacherID,
			Role:         notification.RoleTeacher,
			Title:        title,
			Body:         fmt.Sprintf("A student submitted %q.", assignment.Title),
		})
	}
}

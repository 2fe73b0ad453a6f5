package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assignment-api/internal/apperror"
	"github.com/noah-isme/gema-assignment-api/internal/cache"
	"github.com/noah-isme/gema-assignment-api/internal/dto"
	"github.com/noah-isme/gema-assignment-api/internal/models"
	"github.com/noah-isme/gema-assignment-api/internal/notification"
	"github.com/noah-isme/gema-assignment-api/internal/repository"
	"github.com/noah-isme/gema-assignment-api/internal/storage"
)

// SubmissionService exposes teacher review of TEXT and FILE submissions.
type SubmissionService interface {
	ListSubmissions(ctx context.Context, assignmentID, teacherID uint) ([]dto.SubmissionResponse, error)
	DownloadFile(ctx context.Context, assignmentID, studentID, teacherID uint) (storage.Object, error)
	Evaluate(ctx context.Context, assignmentID, studentID, teacherID uint, payload dto.EvaluateSubmissionRequest) (dto.SubmissionResponse, error)
}

type submissionService struct {
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	users       UserDirectory
	store       storage.BlobStore
	cache       cache.Client
	notifier    Notifier
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// SubmissionDeps groups the collaborators of the submission service.
type SubmissionDeps struct {
	Assignments repository.AssignmentRepository
	Submissions repository.SubmissionRepository
	Users       UserDirectory
	Store       storage.BlobStore
	Cache       cache.Client
	Notifier    Notifier
	Validator   *validator.Validate
}

// NewSubmissionService constructs the teacher review service.
func NewSubmissionService(deps SubmissionDeps, logger zerolog.Logger) SubmissionService {
	cacheClient := deps.Cache
	if cacheClient == nil {
		cacheClient = cache.Disabled{}
	}
	return &submissionService{
		assignments: deps.Assignments,
		submissions: deps.Submissions,
		users:       deps.Users,
		store:       deps.Store,
		cache:       cacheClient,
		notifier:    deps.Notifier,
		validator:   deps.Validator,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		now:         time.Now,
	}
}

func (s *submissionService) ListSubmissions(ctx context.Context, assignmentID, teacherID uint) ([]dto.SubmissionResponse, error) {
	assignment, err := s.reviewable(ctx, assignmentID, teacherID)
	if err != nil {
		return nil, err
	}

	submissions, err := s.submissions.ListByAssignment(ctx, assignment.ID)
	if err != nil {
		return nil, err
	}

	studentIDs := make([]uint, 0, len(submissions))
	for _, submission := range submissions {
		studentIDs = append(studentIDs, submission.StudentID)
	}
	students := resolveStudents(ctx, s.users, studentIDs)

	responses := make([]dto.SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, dto.NewSubmissionResponse(
			submission,
			assignment.MaxMarks,
			storage.OriginalFileName(submission.FileLocation),
			students[submission.StudentID],
		))
	}
	return responses, nil
}

func (s *submissionService) DownloadFile(ctx context.Context, assignmentID, studentID, teacherID uint) (storage.Object, error) {
	assignment, err := s.reviewable(ctx, assignmentID, teacherID)
	if err != nil {
		return storage.Object{}, err
	}
	if assignment.Kind != models.AssignmentKindFile {
		return storage.Object{}, apperror.BadRequest("only FILE assignments have downloadable submissions")
	}

	submission, err := s.find(ctx, assignment.ID, studentID)
	if err != nil {
		return storage.Object{}, err
	}
	if submission.FileLocation == "" {
		return storage.Object{}, apperror.NotFound("submission has no file")
	}
	if s.store == nil {
		return storage.Object{}, fmt.Errorf("file storage is not configured")
	}

	object, err := s.store.Get(ctx, submission.FileLocation)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return storage.Object{}, apperror.NotFound("submitted file is missing")
		}
		return storage.Object{}, err
	}
	object.FileName = storage.OriginalFileName(submission.FileLocation)
	return object, nil
}

func (s *submissionService) Evaluate(ctx context.Context, assignmentID, studentID, teacherID uint, payload dto.EvaluateSubmissionRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	assignment, err := s.reviewable(ctx, assignmentID, teacherID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	marks := *payload.ObtainedMarks
	if marks < 0 || marks > assignment.MaxMarks {
		return dto.SubmissionResponse{}, apperror.BadRequest("obtained marks must be between 0 and %d", assignment.MaxMarks)
	}

	submission, err := s.find(ctx, assignment.ID, studentID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	now := s.now()
	feedback := strings.TrimSpace(payload.Feedback)
	if err := s.submissions.Evaluate(ctx, submission.ID, marks, feedback, now); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, apperror.NotFound("submission not found")
		}
		return dto.SubmissionResponse{}, err
	}
	submission.ObtainedMarks = &marks
	submission.Feedback = feedback
	submission.EvaluatedAt = &now

	s.logger.Info().
		Uint("assignment_id", assignment.ID).
		Uint("student_id", studentID).
		Int("marks", marks).
		Msg("submission evaluated")

	if err := evictStudent(ctx, s.cache, studentID); err != nil {
		s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to evict student cache")
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, notification.Event{
			Type:         notification.TypeSubmissionEvaluated,
			TargetUserID: studentID,
			Role:         notification.RoleStudent,
			Title:        "Submission evaluated",
			Body:         fmt.Sprintf("Your submission for %q has been evaluated.", assignment.Title),
		})
	}

	students := resolveStudents(ctx, s.users, []uint{studentID})
	return dto.NewSubmissionResponse(submission, assignment.MaxMarks, storage.OriginalFileName(submission.FileLocation), students[studentID]), nil
}

// reviewable loads an owned TEXT or FILE assignment.
func (s *submissionService) reviewable(ctx context.Context, assignmentID, teacherID uint) (models.Assignment, error) {
	assignment, err := findOwnedAssignment(ctx, s.assignments, assignmentID, teacherID)
	if err != nil {
		return models.Assignment{}, err
	}
	if assignment.Kind == models.AssignmentKindMCQ {
		return models.Assignment{}, apperror.BadRequest("only TEXT/FILE assignments can be reviewed here")
	}
	return assignment, nil
}

func (s *submissionService) find(ctx context.Context, assignmentID, studentID uint) (models.Submission, error) {
	submission, err := s.submissions.GetByAssignmentAndStudent(ctx, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, apperror.NotFound("submission not found")
		}
		return models.Submission{}, err
	}
	return submission, nil
}

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assignment-api/internal/apperror"
	"github.com/noah-isme/gema-assignment-api/internal/cache"
	"github.com/noah-isme/gema-assignment-api/internal/dto"
	"github.com/noah-isme/gema-assignment-api/internal/models"
	"github.com/noah-isme/gema-assignment-api/internal/repository"
)

// McqService exposes the teacher use cases of MCQ assignments.
type McqService interface {
	Create(ctx context.Context, teacherID uint, payload dto.McqAssignmentCreateRequest) (dto.McqAssignmentResponse, error)
	Get(ctx context.Context, id, teacherID uint) (dto.McqAssignmentResponse, error)
	Update(ctx context.Context, id, teacherID uint, payload dto.McqAssignmentUpdateRequest) (dto.McqAssignmentResponse, error)
	ListSubmissions(ctx context.Context, id, teacherID uint) ([]dto.McqSubmissionSummary, error)
}

type mcqService struct {
	assignments repository.AssignmentRepository
	banks       repository.QuestionBankRepository
	attempts    repository.McqSubmissionRepository
	batches     BatchDirectory
	users       UserDirectory
	roster      rosterEvictor
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewMcqService builds the teacher MCQ service.
func NewMcqService(
	assignments repository.AssignmentRepository,
	banks repository.QuestionBankRepository,
	attempts repository.McqSubmissionRepository,
	batches BatchDirectory,
	users UserDirectory,
	cacheClient cache.Client,
	validate *validator.Validate,
	logger zerolog.Logger,
) McqService {
	logger = logger.With().Str("component", "mcq_service").Logger()
	return &mcqService{
		assignments: assignments,
		banks:       banks,
		attempts:    attempts,
		batches:     batches,
		users:       users,
		roster:      newRosterEvictor(batches, cacheClient, logger),
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *mcqService) Create(ctx context.Context, teacherID uint, payload dto.McqAssignmentCreateRequest) (dto.McqAssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.McqAssignmentResponse{}, err
	}

	questions, err := buildQuestions(payload.Questions, payload.MaxMarks)
	if err != nil {
		return dto.McqAssignmentResponse{}, err
	}

	if err := ensureTeacherBatch(ctx, s.batches, teacherID, payload.BatchID); err != nil {
		return dto.McqAssignmentResponse{}, err
	}

	now := s.now()
	assignment := models.Assignment{
		TeacherID:   teacherID,
		BatchID:     payload.BatchID,
		Title:       strings.TrimSpace(payload.Title),
		Description: strings.TrimSpace(payload.Description),
		Kind:        models.AssignmentKindMCQ,
		MaxMarks:    payload.MaxMarks,
		Status:      models.AssignmentStatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	bank := models.McqQuestionBank{
		PassingPercentage:  payload.PassingPercentage,
		ShowCorrectAnswers: payload.ShowCorrectAnswers,
		TimeLimitMinutes:   payload.TimeLimitMinutes,
		Questions:          questions,
	}

	if err := s.banks.CreateWithAssignment(ctx, &assignment, &bank); err != nil {
		return dto.McqAssignmentResponse{}, err
	}

	s.logger.Info().Uint("assignment_id", assignment.ID).Int("questions", len(questions)).Msg("mcq assignment created")

	return newMcqAssignmentResponse(assignment, bank), nil
}

func (s *mcqService) Get(ctx context.Context, id, teacherID uint) (dto.McqAssignmentResponse, error) {
	assignment, bank, err := s.load(ctx, id, teacherID)
	if err != nil {
		return dto.McqAssignmentResponse{}, err
	}
	return newMcqAssignmentResponse(assignment, bank), nil
}

func (s *mcqService) Update(ctx context.Context, id, teacherID uint, payload dto.McqAssignmentUpdateRequest) (dto.McqAssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.McqAssignmentResponse{}, err
	}

	assignment, bank, err := s.load(ctx, id, teacherID)
	if err != nil {
		return dto.McqAssignmentResponse{}, err
	}

	replaceQuestions := len(payload.Questions) > 0
	marksChanged := payload.MaxMarks != nil && *payload.MaxMarks != assignment.MaxMarks
	passingChanged := payload.PassingPercentage != nil && *payload.PassingPercentage != bank.PassingPercentage

	change := repository.BankChange{
		ReplaceQuestions: replaceQuestions,
		ScoringChanged:   replaceQuestions || marksChanged || passingChanged,
	}

	if payload.Title != nil {
		assignment.Title = strings.TrimSpace(*payload.Title)
	}
	if payload.Description != nil {
		assignment.Description = strings.TrimSpace(*payload.Description)
	}
	if payload.MaxMarks != nil {
		assignment.MaxMarks = *payload.MaxMarks
	}
	if payload.PassingPercentage != nil {
		bank.PassingPercentage = *payload.PassingPercentage
	}
	if payload.ShowCorrectAnswers != nil {
		bank.ShowCorrectAnswers = *payload.ShowCorrectAnswers
	}
	if payload.TimeLimitMinutes != nil {
		bank.TimeLimitMinutes = payload.TimeLimitMinutes
	}

	switch {
	case replaceQuestions:
		questions, err := buildQuestions(payload.Questions, assignment.MaxMarks)
		if err != nil {
			return dto.McqAssignmentResponse{}, err
		}
		bank.Questions = questions
	case marksChanged:
		marks, err := questionMarks(assignment.MaxMarks, len(bank.Questions))
		if err != nil {
			return dto.McqAssignmentResponse{}, err
		}
		for i := range bank.Questions {
			bank.Questions[i].Marks = marks
		}
	}

	now := s.now()
	assignment.UpdatedAt = now
	bank.UpdatedAt = now

	// Results are replayed from stored answers, so scoring inputs freeze after the first attempt.
	if err := s.banks.Update(ctx, &assignment, &bank, change); err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleStatus):
			return dto.McqAssignmentResponse{}, apperror.InvalidState("deleted assignments cannot be updated")
		case errors.Is(err, repository.ErrScoringFrozen):
			return dto.McqAssignmentResponse{}, apperror.InvalidState("questions, marks and passing percentage cannot change after students have submitted")
		}
		return dto.McqAssignmentResponse{}, err
	}

	s.logger.Info().Uint("assignment_id", assignment.ID).Bool("questions_replaced", replaceQuestions).Msg("mcq assignment updated")
	s.roster.afterEdit(ctx, assignment)

	return newMcqAssignmentResponse(assignment, bank), nil
}

func (s *mcqService) ListSubmissions(ctx context.Context, id, teacherID uint) ([]dto.McqSubmissionSummary, error) {
	assignment, bank, err := s.load(ctx, id, teacherID)
	if err != nil {
		return nil, err
	}

	attempts, err := s.attempts.ListByBank(ctx, bank.ID)
	if err != nil {
		return nil, err
	}

	studentIDs := make([]uint, 0, len(attempts))
	for _, attempt := range attempts {
		studentIDs = append(studentIDs, attempt.StudentID)
	}
	students := resolveStudents(ctx, s.users, studentIDs)

	summaries := make([]dto.McqSubmissionSummary, 0, len(attempts))
	for _, attempt := range attempts {
		student := students[attempt.StudentID]
		summaries = append(summaries, dto.McqSubmissionSummary{
			SubmissionID:  attempt.ID,
			StudentID:     attempt.StudentID,
			StudentName:   student.Name,
			StudentEmail:  student.Email,
			ObtainedMarks: attempt.ObtainedMarks,
			TotalMarks:    assignment.MaxMarks,
			Percentage:    attempt.Percentage,
			Passed:        attempt.Passed,
			Status:        models.SubmissionStatusEvaluated,
			SubmittedAt:   attempt.SubmittedAt,
		})
	}

	return summaries, nil
}

func (s *mcqService) load(ctx context.Context, id, teacherID uint) (models.Assignment, models.McqQuestionBank, error) {
	assignment, err := findOwnedAssignment(ctx, s.assignments, id, teacherID)
	if err != nil {
		return models.Assignment{}, models.McqQuestionBank{}, err
	}
	if assignment.Kind != models.AssignmentKindMCQ {
		return models.Assignment{}, models.McqQuestionBank{}, apperror.BadRequest("assignment is not an MCQ assignment")
	}

	bank, err := loadQuestionBank(ctx, s.banks, assignment.ID)
	if err != nil {
		return models.Assignment{}, models.McqQuestionBank{}, err
	}
	return assignment, bank, nil
}

// loadQuestionBank returns the bank of an MCQ assignment. A missing bank is a data fault.
func loadQuestionBank(ctx context.Context, banks repository.QuestionBankRepository, assignmentID uint) (models.McqQuestionBank, error) {
	bank, err := banks.GetByAssignmentID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.McqQuestionBank{}, apperror.BadRequest("assignment has no question bank")
		}
		return models.McqQuestionBank{}, err
	}
	return bank, nil
}

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assignment-api/internal/apperror"
	"github.com/noah-isme/gema-assignment-api/internal/cache"
	"github.com/noah-isme/gema-assignment-api/internal/dto"
	"github.com/noah-isme/gema-assignment-api/internal/models"
	"github.com/noah-isme/gema-assignment-api/internal/repository"
)

const (
	defaultAssignmentPageSize = 20
	maxAssignmentPageSize     = 100
)

// AssignmentService exposes the teacher use cases shared by every assignment kind.
type AssignmentService interface {
	Create(ctx context.Context, teacherID uint, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error)
	Get(ctx context.Context, id, teacherID uint) (dto.AssignmentResponse, error)
	Update(ctx context.Context, id, teacherID uint, payload dto.AssignmentUpdateRequest) (dto.AssignmentResponse, error)
	ListMine(ctx context.Context, teacherID uint, query dto.AssignmentListQuery) (dto.AssignmentListResponse, error)
}

type assignmentService struct {
	repo           repository.AssignmentRepository
	submissions    repository.SubmissionRepository
	banks          repository.QuestionBankRepository
	mcqSubmissions repository.McqSubmissionRepository
	batches        BatchDirectory
	roster         rosterEvictor
	validator      *validator.Validate
	logger         zerolog.Logger
	now            func() time.Time
}

// NewAssignmentService builds a new assignment service.
func NewAssignmentService(
	repo repository.AssignmentRepository,
	submissions repository.SubmissionRepository,
	banks repository.QuestionBankRepository,
	mcqSubmissions repository.McqSubmissionRepository,
	batches BatchDirectory,
	cacheClient cache.Client,
	validate *validator.Validate,
	logger zerolog.Logger,
) AssignmentService {
	logger = logger.With().Str("component", "assignment_service").Logger()
	return &assignmentService{
		repo:           repo,
		submissions:    submissions,
		banks:          banks,
		mcqSubmissions: mcqSubmissions,
		batches:        batches,
		roster:         newRosterEvictor(batches, cacheClient, logger),
		validator:      validate,
		logger:         logger,
		now:            time.Now,
	}
}

func (s *assignmentService) Create(ctx context.Context, teacherID uint, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error) {
	payload.Title = strings.TrimSpace(payload.Title)
	payload.Kind = strings.ToUpper(strings.TrimSpace(payload.Kind))
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	if err := ensureTeacherBatch(ctx, s.batches, teacherID, payload.BatchID); err != nil {
		return dto.AssignmentResponse{}, err
	}

	now := s.now()
	assignment := models.Assignment{
		TeacherID:   teacherID,
		BatchID:     payload.BatchID,
		Title:       payload.Title,
		Description: strings.TrimSpace(payload.Description),
		Kind:        models.AssignmentKind(payload.Kind),
		MaxMarks:    payload.MaxMarks,
		Status:      models.AssignmentStatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.logger.Info().Uint("assignment_id", assignment.ID).Str("kind", string(assignment.Kind)).Msg("assignment created")

	response := dto.NewAssignmentResponse(assignment)
	response.BatchCode = s.batches.BatchDisplayCode(ctx, assignment.BatchID)
	return response, nil
}

func (s *assignmentService) Get(ctx context.Context, id, teacherID uint) (dto.AssignmentResponse, error) {
	assignment, err := findOwnedAssignment(ctx, s.repo, id, teacherID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	responses, err := s.decorate(ctx, []models.Assignment{assignment})
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	return responses[0], nil
}

func (s *assignmentService) Update(ctx context.Context, id, teacherID uint, payload dto.AssignmentUpdateRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment, err := findOwnedAssignment(ctx, s.repo, id, teacherID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	if assignment.Kind == models.AssignmentKindMCQ {
		return dto.AssignmentResponse{}, apperror.BadRequest("MCQ assignments are updated through the MCQ endpoint")
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
	assignment.UpdatedAt = s.now()

	if err := s.repo.UpdateDetails(ctx, &assignment); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return dto.AssignmentResponse{}, apperror.InvalidState("deleted assignments cannot be updated")
		}
		return dto.AssignmentResponse{}, err
	}

	s.logger.Info().Uint("assignment_id", assignment.ID).Msg("assignment updated")
	s.roster.afterEdit(ctx, assignment)

	responses, err := s.decorate(ctx, []models.Assignment{assignment})
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	return responses[0], nil
}

func (s *assignmentService) ListMine(ctx context.Context, teacherID uint, query dto.AssignmentListQuery) (dto.AssignmentListResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.AssignmentListResponse{}, err
	}

	page := query.Page
	if page <= 0 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = defaultAssignmentPageSize
	}
	if pageSize > maxAssignmentPageSize {
		pageSize = maxAssignmentPageSize
	}

	assignments, total, err := s.repo.ListByTeacher(ctx, repository.AssignmentFilter{
		TeacherID: teacherID,
		Search:    query.Search,
		Kind:      query.Kind,
		Status:    query.Status,
		Sort:      query.Sort,
		Page:      page,
		PageSize:  pageSize,
	})
	if err != nil {
		return dto.AssignmentListResponse{}, err
	}

	items, err := s.decorate(ctx, assignments)
	if err != nil {
		return dto.AssignmentListResponse{}, err
	}

	return dto.AssignmentListResponse{
		Items:      items,
		Pagination: dto.NewPagination(page, pageSize, total),
	}, nil
}

// decorate adds the batch display code and submission count to each assignment.
func (s *assignmentService) decorate(ctx context.Context, assignments []models.Assignment) ([]dto.AssignmentResponse, error) {
	responses := make([]dto.AssignmentResponse, 0, len(assignments))
	if len(assignments) == 0 {
		return responses, nil
	}

	var regularIDs, mcqIDs []uint
	for _, assignment := range assignments {
		if assignment.Kind == models.AssignmentKindMCQ {
			mcqIDs = append(mcqIDs, assignment.ID)
		} else {
			regularIDs = append(regularIDs, assignment.ID)
		}
	}

	counts, err := s.submissions.CountByAssignments(ctx, regularIDs)
	if err != nil {
		return nil, err
	}

	mcqCounts := make(map[uint]int64, len(mcqIDs))
	if len(mcqIDs) > 0 {
		bankIDs, err := s.banks.BankIDsByAssignments(ctx, mcqIDs)
		if err != nil {
			return nil, err
		}
		ids := make([]uint, 0, len(bankIDs))
		for _, bankID := range bankIDs {
			ids = append(ids, bankID)
		}
		byBank, err := s.mcqSubmissions.CountByBanks(ctx, ids)
		if err != nil {
			return nil, err
		}
		for assignmentID, bankID := range bankIDs {
			mcqCounts[assignmentID] = byBank[bankID]
		}
	}

	codes := make(map[uint]string)
	for _, assignment := range assignments {
		code, ok := codes[assignment.BatchID]
		if !ok {
			code = s.batches.BatchDisplayCode(ctx, assignment.BatchID)
			codes[assignment.BatchID] = code
		}

		response := dto.NewAssignmentResponse(assignment)
		response.BatchCode = code
		if assignment.Kind == models.AssignmentKindMCQ {
			response.TotalSubmissions = mcqCounts[assignment.ID]
		} else {
			response.TotalSubmissions = counts[assignment.ID]
		}
		responses = append(responses, response)
	}

	return responses, nil
}

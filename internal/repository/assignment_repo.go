package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-assignment-api/internal/models"
)

// ErrStaleStatus indicates the assignment left the expected status before the update landed.
var ErrStaleStatus = errors.New("assignment status changed concurrently")

// AssignmentFilter describes the teacher listing filters.
type AssignmentFilter struct {
	TeacherID uint
	Search    string
	Kind      string
	Status    string
	Sort      string
	Page      int
	PageSize  int
}

// AssignmentRepository defines persistence operations for assignments.
type AssignmentRepository interface {
	GetByID(ctx context.Context, id uint) (models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	UpdateDetails(ctx context.Context, assignment *models.Assignment) error
	TransitionStatus(ctx context.Context, id uint, from, to models.AssignmentStatus, at time.Time) error
	ListByTeacher(ctx context.Context, filter AssignmentFilter) ([]models.Assignment, int64, error)
	ListPublishedInBatches(ctx context.Context, batchIDs []uint) ([]models.Assignment, error)
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.WithContext(ctx).First(&assignment, id).Error; err != nil {
		return models.Assignment{}, err
	}

	return assignment, nil
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

// UpdateDetails writes the editable fields only. Status and kind are never touched here.
func (r *assignmentRepository) UpdateDetails(ctx context.Context, assignment *models.Assignment) error {
	result := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ? AND status <> ?", assignment.ID, models.AssignmentStatusDeleted).
		Updates(map[string]interface{}{
			"title":       assignment.Title,
			"description": assignment.Description,
			"max_marks":   assignment.MaxMarks,
			"updated_at":  assignment.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

// TransitionStatus moves id from one status to another only if it is still in from.
func (r *assignmentRepository) TransitionStatus(ctx context.Context, id uint, from, to models.AssignmentStatus, at time.Time) error {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": at,
	}
	if to == models.AssignmentStatusDeleted {
		updates["deleted_at"] = at
	}

	result := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

func (r *assignmentRepository) ListByTeacher(ctx context.Context, filter AssignmentFilter) ([]models.Assignment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Assignment{}).
		Where("teacher_id = ?", filter.TeacherID).
		Where("status <> ?", models.AssignmentStatusDeleted)

	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ?", pattern)
	}
	if kind := strings.TrimSpace(filter.Kind); kind != "" {
		query = query.Where("kind = ?", strings.ToUpper(kind))
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", strings.ToUpper(status))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order(normalizeAssignmentSort(filter.Sort))

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		offset := (page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var assignments []models.Assignment
	if err := query.Find(&assignments).Error; err != nil {
		return nil, 0, err
	}

	return assignments, total, nil
}

func (r *assignmentRepository) ListPublishedInBatches(ctx context.Context, batchIDs []uint) ([]models.Assignment, error) {
	if len(batchIDs) == 0 {
		return []models.Assignment{}, nil
	}

	var assignments []models.Assignment
	if err := r.db.WithContext(ctx).
		Where("batch_id IN ?", batchIDs).
		Where("status = ?", models.AssignmentStatusPublished).
		Order("created_at DESC").
		Find(&assignments).Error; err != nil {
		return nil, err
	}

	return assignments, nil
}

func normalizeAssignmentSort(sort string) string {
	switch strings.ToLower(strings.TrimSpace(sort)) {
	case "created_at", "created_at:asc", "created_at.asc":
		return "created_at ASC"
	case "updated_at", "updated_at:asc", "updated_at.asc":
		return "updated_at ASC"
	case "-updated_at", "updated_at:desc", "updated_at.desc":
		return "updated_at DESC"
	case "title", "title:asc", "title.asc":
		return "title ASC"
	case "-title", "title:desc", "title.desc":
		return "title DESC"
	default:
		return "created_at DESC"
	}
}

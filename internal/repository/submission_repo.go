package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-assignment-api/internal/models"
)

// SubmissionCount pairs an assignment with its number of submissions.
type SubmissionCount struct {
	AssignmentID uint
	Total        int64
}

// SubmissionRepository defines data operations for TEXT and FILE submissions.
type SubmissionRepository interface {
	ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Submission, error)
	ListByStudent(ctx context.Context, studentID uint, assignmentIDs []uint) ([]models.Submission, error)
	GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID uint) (models.Submission, error)
	Exists(ctx context.Context, assignmentID, studentID uint) (bool, error)
	CountByAssignments(ctx context.Context, assignmentIDs []uint) (map[uint]int64, error)
	Create(ctx context.Context, submission *models.Submission) error
	Evaluate(ctx context.Context, id uint, marks int, feedback string, at time.Time) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("submitted_at DESC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) ListByStudent(ctx context.Context, studentID uint, assignmentIDs []uint) ([]models.Submission, error) {
	if len(assignmentIDs) == 0 {
		return []models.Submission{}, nil
	}

	var submissions []models.Submission
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Where("assignment_id IN ?", assignmentIDs).
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("student_id = ?", studentID).
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) Exists(ctx context.Context, assignmentID, studentID uint) (bool, error) {
	_, err := r.GetByAssignmentAndStudent(ctx, assignmentID, studentID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

func (r *submissionRepository) CountByAssignments(ctx context.Context, assignmentIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(assignmentIDs))
	if len(assignmentIDs) == 0 {
		return counts, nil
	}

	var rows []SubmissionCount
	if err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Select("assignment_id, COUNT(*) AS total").
		Where("assignment_id IN ?", assignmentIDs).
		Group("assignment_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.AssignmentID] = row.Total
	}
	return counts, nil
}

// Create inserts the submission. A second submission for the same pair yields ErrDuplicate.
func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return translateCreateError(r.db.WithContext(ctx).Create(submission).Error)
}

func (r *submissionRepository) Evaluate(ctx context.Context, id uint, marks int, feedback string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"obtained_marks": marks,
			"feedback":       feedback,
			"evaluated_at":   at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

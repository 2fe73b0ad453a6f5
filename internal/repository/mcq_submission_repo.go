package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-assignment-api/internal/models"
)

// McqSubmissionRepository defines data operations for graded MCQ attempts.
type McqSubmissionRepository interface {
	ListByBank(ctx context.Context, bankID uint) ([]models.McqSubmission, error)
	ListByStudent(ctx context.Context, studentID uint, bankIDs []uint) ([]models.McqSubmission, error)
	GetByBankAndStudent(ctx context.Context, bankID, studentID uint) (models.McqSubmission, error)
	Exists(ctx context.Context, bankID, studentID uint) (bool, error)
	CountByBanks(ctx context.Context, bankIDs []uint) (map[uint]int64, error)
	Create(ctx context.Context, submission *models.McqSubmission, scoringRevision uint) error
}

type mcqSubmissionRepository struct {
	db *gorm.DB
}

// NewMcqSubmissionRepository instantiates the repository.
func NewMcqSubmissionRepository(db *gorm.DB) McqSubmissionRepository {
	return &mcqSubmissionRepository{db: db}
}

func (r *mcqSubmissionRepository) ListByBank(ctx context.Context, bankID uint) ([]models.McqSubmission, error) {
	var submissions []models.McqSubmission
	if err := r.db.WithContext(ctx).
		Where("question_bank_id = ?", bankID).
		Order("submitted_at DESC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *mcqSubmissionRepository) ListByStudent(ctx context.Context, studentID uint, bankIDs []uint) ([]models.McqSubmission, error) {
	if len(bankIDs) == 0 {
		return []models.McqSubmission{}, nil
	}

	var submissions []models.McqSubmission
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Where("question_bank_id IN ?", bankIDs).
		Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *mcqSubmissionRepository) GetByBankAndStudent(ctx context.Context, bankID, studentID uint) (models.McqSubmission, error) {
	var submission models.McqSubmission
	if err := r.db.WithContext(ctx).
		Where("question_bank_id = ? AND student_id = ?", bankID, studentID).
		First(&submission).Error; err != nil {
		return models.McqSubmission{}, err
	}
	return submission, nil
}

func (r *mcqSubmissionRepository) Exists(ctx context.Context, bankID, studentID uint) (bool, error) {
	_, err := r.GetByBankAndStudent(ctx, bankID, studentID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

func (r *mcqSubmissionRepository) CountByBanks(ctx context.Context, bankIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(bankIDs))
	if len(bankIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		QuestionBankID uint
		Total          int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.McqSubmission{}).
		Select("question_bank_id, COUNT(*) AS total").
		Where("question_bank_id IN ?", bankIDs).
		Group("question_bank_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.QuestionBankID] = row.Total
	}
	return counts, nil
}

// Create inserts an attempt graded against scoringRevision of its bank.
// A second attempt for the same pair yields ErrDuplicate. A bank whose
// scoring moved on since grading yields ErrScoringChanged.
func (r *mcqSubmissionRepository) Create(ctx context.Context, submission *models.McqSubmission, scoringRevision uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bank models.McqQuestionBank
		if err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
			Select("id", "scoring_revision").
			First(&bank, submission.QuestionBankID).Error; err != nil {
			return err
		}
		if bank.ScoringRevision != scoringRevision {
			return ErrScoringChanged
		}
		return translateCreateError(tx.Create(submission).Error)
	})
}

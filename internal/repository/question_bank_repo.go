package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-assignment-api/internal/models"
)

// QuestionBankRepository persists MCQ question banks together with their assignment.
type QuestionBankRepository interface {
	CreateWithAssignment(ctx context.Context, assignment *models.Assignment, bank *models.McqQuestionBank) error
	GetByAssignmentID(ctx context.Context, assignmentID uint) (models.McqQuestionBank, error)
	BankIDsByAssignments(ctx context.Context, assignmentIDs []uint) (map[uint]uint, error)
	Update(ctx context.Context, assignment *models.Assignment, bank *models.McqQuestionBank, change BankChange) error
}

// BankChange selects what Update rewrites besides assignment details and bank settings.
type BankChange struct {
	ReplaceQuestions bool
	// ScoringChanged marks edits to questions, marks or the passing
	// percentage. Update refuses them with ErrScoringFrozen once an attempt exists.
	ScoringChanged bool
}

type questionBankRepository struct {
	db *gorm.DB
}

// NewQuestionBankRepository instantiates the repository.
func NewQuestionBankRepository(db *gorm.DB) QuestionBankRepository {
	return &questionBankRepository{db: db}
}

func (r *questionBankRepository) CreateWithAssignment(ctx context.Context, assignment *models.Assignment, bank *models.McqQuestionBank) error {
	if bank.ScoringRevision == 0 {
		bank.ScoringRevision = 1
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(assignment).Error; err != nil {
			return err
		}
		bank.AssignmentID = assignment.ID
		return translateCreateError(tx.Create(bank).Error)
	})
}

func (r *questionBankRepository) GetByAssignmentID(ctx context.Context, assignmentID uint) (models.McqQuestionBank, error) {
	var bank models.McqQuestionBank
	err := r.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_number ASC")
		}).
		Where("assignment_id = ?", assignmentID).
		First(&bank).Error
	if err != nil {
		return models.McqQuestionBank{}, err
	}
	return bank, nil
}

// BankIDsByAssignments maps assignment ids to their question bank ids.
func (r *questionBankRepository) BankIDsByAssignments(ctx context.Context, assignmentIDs []uint) (map[uint]uint, error) {
	ids := make(map[uint]uint, len(assignmentIDs))
	if len(assignmentIDs) == 0 {
		return ids, nil
	}

	var banks []models.McqQuestionBank
	if err := r.db.WithContext(ctx).
		Select("id", "assignment_id").
		Where("assignment_id IN ?", assignmentIDs).
		Find(&banks).Error; err != nil {
		return nil, err
	}

	for _, bank := range banks {
		ids[bank.AssignmentID] = bank.ID
	}
	return ids, nil
}

// Update saves assignment details and bank settings in one transaction.
// Scoring changes lock the bank row, so they serialise with attempt inserts,
// and bump ScoringRevision.
func (r *questionBankRepository) Update(ctx context.Context, assignment *models.Assignment, bank *models.McqQuestionBank, change BankChange) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		settings := map[string]interface{}{
			"passing_percentage":   bank.PassingPercentage,
			"show_correct_answers": bank.ShowCorrectAnswers,
			"time_limit_minutes":   bank.TimeLimitMinutes,
			"updated_at":           bank.UpdatedAt,
		}

		if change.ScoringChanged {
			var locked models.McqQuestionBank
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Select("id", "scoring_revision").
				First(&locked, bank.ID).Error; err != nil {
				return err
			}

			var attempts int64
			if err := tx.Model(&models.McqSubmission{}).
				Where("question_bank_id = ?", bank.ID).
				Count(&attempts).Error; err != nil {
				return err
			}
			if attempts > 0 {
				return ErrScoringFrozen
			}

			bank.ScoringRevision = locked.ScoringRevision + 1
			settings["scoring_revision"] = bank.ScoringRevision
		}

		if err := NewAssignmentRepository(tx).UpdateDetails(ctx, assignment); err != nil {
			return err
		}

		if err := tx.Model(&models.McqQuestionBank{}).
			Where("id = ?", bank.ID).
			Updates(settings).Error; err != nil {
			return err
		}

		if change.ReplaceQuestions {
			if err := tx.Where("question_bank_id = ?", bank.ID).Delete(&models.McqQuestion{}).Error; err != nil {
				return err
			}
			for i := range bank.Questions {
				bank.Questions[i].ID = 0
				bank.Questions[i].QuestionBankID = bank.ID
			}
			if len(bank.Questions) > 0 {
				if err := tx.Create(&bank.Questions).Error; err != nil {
					return err
				}
			}
		} else if len(bank.Questions) > 0 {
			for _, q := range bank.Questions {
				if err := tx.Model(&models.McqQuestion{}).Where("id = ?", q.ID).Update("marks", q.Marks).Error; err != nil {
					return err
				}
			}
		}

		return nil
	})
}

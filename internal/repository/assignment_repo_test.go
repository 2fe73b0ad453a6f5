package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assignment-api/internal/database"
	"github.com/noah-isme/gema-assignment-api/internal/models"
)

func setupAssignmentTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedAssignment(t *testing.T, db *gorm.DB, teacherID uint, title string, kind models.AssignmentKind, status models.AssignmentStatus) models.Assignment {
	t.Helper()
	assignment := models.Assignment{
		TeacherID: teacherID,
		BatchID:   10,
		Title:     title,
		Kind:      kind,
		MaxMarks:  100,
		Status:    status,
	}
	require.NoError(t, db.Create(&assignment).Error)
	return assignment
}

func TestAssignmentRepositoryTransitionStatusIsConditional(t *testing.T) {
	db := setupAssignmentTestDB(t)
	repo := NewAssignmentRepository(db)
	ctx := context.Background()

	assignment := seedAssignment(t, db, 1, "Essay", models.AssignmentKindText, models.AssignmentStatusDraft)
	now := time.Now()

	require.NoError(t, repo.TransitionStatus(ctx, assignment.ID, models.AssignmentStatusDraft, models.AssignmentStatusPublished, now))
	require.ErrorIs(t, repo.TransitionStatus(ctx, assignment.ID, models.AssignmentStatusDraft, models.AssignmentStatusPublished, now), ErrStaleStatus)

	require.NoError(t, repo.TransitionStatus(ctx, assignment.ID, models.AssignmentStatusPublished, models.AssignmentStatusDeleted, now))
	stored, err := repo.GetByID(ctx, assignment.ID)
	require.NoError(t, err)
	require.Equal(t, models.AssignmentStatusDeleted, stored.Status)
	require.NotNil(t, stored.DeletedAt)
}

func TestAssignmentRepositoryListByTeacherFilters(t *testing.T) {
	db := setupAssignmentTestDB(t)
	repo := NewAssignmentRepository(db)
	ctx := context.Background()

	seedAssignment(t, db, 1, "Recursion essay", models.AssignmentKindText, models.AssignmentStatusDraft)
	seedAssignment(t, db, 1, "Graph quiz", models.AssignmentKindMCQ, models.AssignmentStatusPublished)
	seedAssignment(t, db, 1, "Old essay", models.AssignmentKindText, models.AssignmentStatusDeleted)
	seedAssignment(t, db, 2, "Other teacher essay", models.AssignmentKindText, models.AssignmentStatusDraft)

	items, total, err := repo.ListByTeacher(ctx, AssignmentFilter{TeacherID: 1})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, items, 2)

	items, total, err = repo.ListByTeacher(ctx, AssignmentFilter{TeacherID: 1, Search: "ESSAY"})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "Recursion essay", items[0].Title)

	items, _, err = repo.ListByTeacher(ctx, AssignmentFilter{TeacherID: 1, Kind: "mcq", Status: "published"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Graph quiz", items[0].Title)

	paged, total, err := repo.ListByTeacher(ctx, AssignmentFilter{TeacherID: 1, Sort: "title", Page: 2, PageSize: 1})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, paged, 1)
	require.Equal(t, "Recursion essay", paged[0].Title)
}

func TestAssignmentRepositoryListPublishedInBatches(t *testing.T) {
	db := setupAssignmentTestDB(t)
	repo := NewAssignmentRepository(db)

	seedAssignment(t, db, 1, "Open", models.AssignmentKindText, models.AssignmentStatusPublished)
	seedAssignment(t, db, 1, "Draft", models.AssignmentKindText, models.AssignmentStatusDraft)
	seedAssignment(t, db, 1, "Closed", models.AssignmentKindText, models.AssignmentStatusClosed)

	items, err := repo.ListPublishedInBatches(context.Background(), []uint{10, 11})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Open", items[0].Title)

	none, err := repo.ListPublishedInBatches(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestSubmissionRepositoryRejectsDuplicatePair(t *testing.T) {
	db := setupAssignmentTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	assignment := seedAssignment(t, db, 1, "Essay", models.AssignmentKindText, models.AssignmentStatusPublished)

	first := models.Submission{AssignmentID: assignment.ID, StudentID: 5, Content: "v1", SubmittedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, &first))

	second := models.Submission{AssignmentID: assignment.ID, StudentID: 5, Content: "v2", SubmittedAt: time.Now()}
	require.ErrorIs(t, repo.Create(ctx, &second), ErrDuplicate)

	exists, err := repo.Exists(ctx, assignment.ID, 5)
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, repo.Evaluate(ctx, first.ID, 80, "good", time.Now()))
	stored, err := repo.GetByAssignmentAndStudent(ctx, assignment.ID, 5)
	require.NoError(t, err)
	require.Equal(t, 80, *stored.ObtainedMarks)
	require.Equal(t, models.SubmissionStatusEvaluated, stored.Status())

	counts, err := repo.CountByAssignments(ctx, []uint{assignment.ID, 999})
	require.NoError(t, err)
	require.Equal(t, int64(1), counts[assignment.ID])
	require.Zero(t, counts[999])
}

func TestQuestionBankRepositoryStoresOrderedQuestions(t *testing.T) {
	db := setupAssignmentTestDB(t)
	banks := NewQuestionBankRepository(db)
	attempts := NewMcqSubmissionRepository(db)
	ctx := context.Background()

	assignment := models.Assignment{TeacherID: 1, BatchID: 10, Title: "Quiz", Kind: models.AssignmentKindMCQ, MaxMarks: 100, Status: models.AssignmentStatusDraft}
	bank := models.McqQuestionBank{
		PassingPercentage: 50,
		Questions: []models.McqQuestion{
			{QuestionNumber: 2, Text: "Second", Marks: 50, Options: datatypes.NewJSONSlice([]string{"a", "b"}), CorrectOptions: datatypes.NewJSONSlice([]int{0})},
			{QuestionNumber: 1, Text: "First", Marks: 50, Options: datatypes.NewJSONSlice([]string{"a", "b", "c"}), CorrectOptions: datatypes.NewJSONSlice([]int{2})},
		},
	}
	require.NoError(t, banks.CreateWithAssignment(ctx, &assignment, &bank))
	require.NotZero(t, assignment.ID)
	require.Equal(t, assignment.ID, bank.AssignmentID)

	stored, err := banks.GetByAssignmentID(ctx, assignment.ID)
	require.NoError(t, err)
	require.Len(t, stored.Questions, 2)
	require.Equal(t, "First", stored.Questions[0].Text)
	require.Equal(t, []int{2}, []int(stored.Questions[0].CorrectOptions))
	require.Len(t, stored.Questions[0].Options, 3)

	ids, err := banks.BankIDsByAssignments(ctx, []uint{assignment.ID})
	require.NoError(t, err)
	require.Equal(t, bank.ID, ids[assignment.ID])

	answers := datatypes.NewJSONSlice([]models.McqAnswer{{QuestionNumber: intPtr(1), SelectedOptionIndex: intPtr(2)}})
	attempt := models.McqSubmission{QuestionBankID: bank.ID, StudentID: 3, Answers: answers, TotalMarks: 100, ObtainedMarks: 50, Percentage: 50, Passed: true, SubmittedAt: time.Now()}
	require.NoError(t, attempts.Create(ctx, &attempt, bank.ScoringRevision))

	dup := attempt
	dup.ID = 0
	require.ErrorIs(t, attempts.Create(ctx, &dup, bank.ScoringRevision), ErrDuplicate)

	storedAttempt, err := attempts.GetByBankAndStudent(ctx, bank.ID, 3)
	require.NoError(t, err)
	require.Equal(t, 2, *storedAttempt.Answers[0].SelectedOptionIndex)
}

func TestQuestionBankScoringFreezesAfterFirstAttempt(t *testing.T) {
	db := setupAssignmentTestDB(t)
	banks := NewQuestionBankRepository(db)
	attempts := NewMcqSubmissionRepository(db)
	ctx := context.Background()

	assignment := models.Assignment{TeacherID: 1, BatchID: 10, Title: "Quiz", Kind: models.AssignmentKindMCQ, MaxMarks: 10, Status: models.AssignmentStatusPublished}
	bank := models.McqQuestionBank{
		PassingPercentage: 50,
		Questions: []models.McqQuestion{
			{QuestionNumber: 1, Text: "Only", Marks: 10, Options: datatypes.NewJSONSlice([]string{"a", "b"}), CorrectOptions: datatypes.NewJSONSlice([]int{1})},
		},
	}
	require.NoError(t, banks.CreateWithAssignment(ctx, &assignment, &bank))
	require.Equal(t, uint(1), bank.ScoringRevision)
	gradedAgainst := bank.ScoringRevision

	assignment.MaxMarks = 20
	bank.Questions[0].Marks = 20
	require.NoError(t, banks.Update(ctx, &assignment, &bank, BankChange{ScoringChanged: true}))
	require.Equal(t, uint(2), bank.ScoringRevision)

	attempt := models.McqSubmission{QuestionBankID: bank.ID, StudentID: 3, Answers: datatypes.NewJSONSlice([]models.McqAnswer{}), TotalMarks: 10, ObtainedMarks: 10, Percentage: 100, Passed: true, SubmittedAt: time.Now()}
	require.ErrorIs(t, attempts.Create(ctx, &attempt, gradedAgainst), ErrScoringChanged)
	exists, err := attempts.Exists(ctx, bank.ID, 3)
	require.NoError(t, err)
	require.False(t, exists)

	attempt.TotalMarks, attempt.ObtainedMarks = 20, 20
	require.NoError(t, attempts.Create(ctx, &attempt, bank.ScoringRevision))

	bank.PassingPercentage = 80
	require.ErrorIs(t, banks.Update(ctx, &assignment, &bank, BankChange{ScoringChanged: true}), ErrScoringFrozen)

	stored, err := banks.GetByAssignmentID(ctx, assignment.ID)
	require.NoError(t, err)
	require.Equal(t, 50.0, stored.PassingPercentage)
	require.Equal(t, 20, stored.Questions[0].Marks)
	require.Equal(t, uint(2), stored.ScoringRevision)

	stored.ShowCorrectAnswers = true
	assignment.Title = "Quiz, renamed"
	require.NoError(t, banks.Update(ctx, &assignment, &stored, BankChange{}))
}

func intPtr(v int) *int { return &v }

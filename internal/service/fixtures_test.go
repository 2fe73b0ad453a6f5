package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assignment-api/internal/cache"
	"github.com/noah-isme/gema-assignment-api/internal/database"
	"github.com/noah-isme/gema-assignment-api/internal/dto"
	"github.com/noah-isme/gema-assignment-api/internal/gateway"
	"github.com/noah-isme/gema-assignment-api/internal/models"
	"github.com/noah-isme/gema-assignment-api/internal/notification"
	"github.com/noah-isme/gema-assignment-api/internal/repository"
	"github.com/noah-isme/gema-assignment-api/internal/storage"
)

const (
	testTeacherID uint = 1
	testBatchID   uint = 10
)

type fakeBatches struct {
	mu             sync.Mutex
	teacherBatches map[uint][]uint
	studentBatches map[uint][]uint
	batchStudents  map[uint][]uint
	codes          map[uint]string
	err            error
	rosterCalls    int
}

func newFakeBatches() *fakeBatches {
	return &fakeBatches{
		teacherBatches: map[uint][]uint{testTeacherID: {testBatchID}},
		studentBatches: map[uint][]uint{},
		batchStudents:  map[uint][]uint{},
		codes:          map[uint]string{testBatchID: "JAVA-101"},
	}
}

func (f *fakeBatches) enroll(batchID uint, studentIDs ...uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range studentIDs {
		f.studentBatches[id] = append(f.studentBatches[id], batchID)
		f.batchStudents[batchID] = append(f.batchStudents[batchID], id)
	}
}

func (f *fakeBatches) ValidateTeacherBatch(_ context.Context, teacherID, batchID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	for _, id := range f.teacherBatches[teacherID] {
		if id == batchID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBatches) StudentBatchIDs(_ context.Context, studentID uint) ([]uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]uint(nil), f.studentBatches[studentID]...), nil
}

func (f *fakeBatches) BatchStudentIDs(_ context.Context, batchID uint) ([]uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rosterCalls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]uint(nil), f.batchStudents[batchID]...), nil
}

func (f *fakeBatches) BatchDisplayCode(_ context.Context, batchID uint) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if code, ok := f.codes[batchID]; ok && f.err == nil {
		return code
	}
	return gateway.FallbackBatchCode(batchID)
}

type fakeUsers struct {
	users map[uint]gateway.UserSummary
}

func (f fakeUsers) UserSummary(_ context.Context, userID uint) gateway.UserSummary {
	if user, ok := f.users[userID]; ok {
		return user
	}
	return gateway.FallbackUserSummary(userID)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification.Event
}

func (r *recordingNotifier) Notify(_ context.Context, event notification.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingNotifier) Events() []notification.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notification.Event(nil), r.events...)
}

func (r *recordingNotifier) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type fixture struct {
	db             *gorm.DB
	redis          *miniredis.Miniredis
	cache          cache.Client
	batches        *fakeBatches
	users          fakeUsers
	notifier       *recordingNotifier
	validate       *validator.Validate
	assignments    repository.AssignmentRepository
	submissions    repository.SubmissionRepository
	banks          repository.QuestionBankRepository
	mcqSubmissions repository.McqSubmissionRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return &fixture{
		db:             db,
		redis:          mr,
		cache:          cache.NewRedis(rdb, time.Minute, zerolog.Nop()),
		batches:        newFakeBatches(),
		users:          fakeUsers{users: map[uint]gateway.UserSummary{}},
		notifier:       &recordingNotifier{},
		validate:       validator.New(),
		assignments:    repository.NewAssignmentRepository(db),
		submissions:    repository.NewSubmissionRepository(db),
		banks:          repository.NewQuestionBankRepository(db),
		mcqSubmissions: repository.NewMcqSubmissionRepository(db),
	}
}

func (f *fixture) seedAssignment(t *testing.T, kind models.AssignmentKind, status models.AssignmentStatus) models.Assignment {
	t.Helper()
	assignment := models.Assignment{
		TeacherID: testTeacherID,
		BatchID:   testBatchID,
		Title:     fmt.Sprintf("%s assignment", kind),
		Kind:      kind,
		MaxMarks:  100,
		Status:    status,
	}
	require.NoError(t, f.assignments.Create(context.Background(), &assignment))
	return assignment
}

// warmCache stores a placeholder entry for each student so eviction is observable.
func (f *fixture) warmCache(t *testing.T, studentIDs ...uint) {
	t.Helper()
	for _, id := range studentIDs {
		require.NoError(t, f.cache.Set(context.Background(), cache.StudentAssignmentsKey(id), []dto.StudentAssignmentResponse{{AssignmentID: 999}}))
	}
}

func (f *fixture) cached(studentID uint) bool {
	return f.redis.Exists(cache.StudentAssignmentsKey(studentID))
}

func (f *fixture) lifecycle() LifecycleService {
	return NewLifecycleService(f.assignments, f.batches, f.cache, f.notifier, 4, zerolog.Nop())
}

func (f *fixture) studentService() StudentAssignmentService {
	return f.studentServiceWithStore(nil)
}

func (f *fixture) studentServiceWithStore(store storage.BlobStore) StudentAssignmentService {
	return NewStudentAssignmentService(StudentAssignmentDeps{
		Assignments:    f.assignments,
		Submissions:    f.submissions,
		Banks:          f.banks,
		McqSubmissions: f.mcqSubmissions,
		Batches:        f.batches,
		Cache:          f.cache,
		Notifier:       f.notifier,
		Store:          store,
		Uploads:        storage.DefaultUploadPolicy(),
		Validator:      f.validate,
	}, zerolog.Nop())
}

func (f *fixture) submissionService(store storage.BlobStore) SubmissionService {
	return NewSubmissionService(SubmissionDeps{
		Assignments: f.assignments,
		Submissions: f.submissions,
		Users:       f.users,
		Store:       store,
		Cache:       f.cache,
		Notifier:    f.notifier,
		Validator:   f.validate,
	}, zerolog.Nop())
}

func (f *fixture) assignmentService() AssignmentService {
	return NewAssignmentService(f.assignments, f.submissions, f.banks, f.mcqSubmissions, f.batches, f.cache, f.validate, zerolog.Nop())
}

func (f *fixture) mcqService() McqService {
	return NewMcqService(f.assignments, f.banks, f.mcqSubmissions, f.batches, f.users, f.cache, f.validate, zerolog.Nop())
}

func (f *fixture) studentMcqService() StudentMcqService {
	return NewStudentMcqService(f.assignments, f.banks, f.mcqSubmissions, f.batches, f.cache, f.notifier, f.validate, zerolog.Nop())
}

func intPtr(v int) *int { return &v }

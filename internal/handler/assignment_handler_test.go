package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assignment-api/internal/apperror"
	"github.com/noah-isme/gema-assignment-api/internal/cache"
	"github.com/noah-isme/gema-assignment-api/internal/config"
	"github.com/noah-isme/gema-assignment-api/internal/database"
	"github.com/noah-isme/gema-assignment-api/internal/dto"
	"github.com/noah-isme/gema-assignment-api/internal/gateway"
	"github.com/noah-isme/gema-assignment-api/internal/handler"
	"github.com/noah-isme/gema-assignment-api/internal/notification"
	"github.com/noah-isme/gema-assignment-api/internal/repository"
	"github.com/noah-isme/gema-assignment-api/internal/router"
	"github.com/noah-isme/gema-assignment-api/internal/service"
	"github.com/noah-isme/gema-assignment-api/internal/storage"
)

const (
	teacherID uint = 1
	studentID uint = 5
	batchID   uint = 10
)

type stubBatches struct {
	mu  sync.Mutex
	err error
}

func (s *stubBatches) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *stubBatches) ValidateTeacherBatch(_ context.Context, teacher, batch uint) (bool, error) {
	if err := s.failure(); err != nil {
		return false, err
	}
	return teacher == teacherID && batch == batchID, nil
}

func (s *stubBatches) StudentBatchIDs(_ context.Context, student uint) ([]uint, error) {
	if err := s.failure(); err != nil {
		return nil, err
	}
	if student == studentID {
		return []uint{batchID}, nil
	}
	return nil, nil
}

func (s *stubBatches) BatchStudentIDs(_ context.Context, batch uint) ([]uint, error) {
	if err := s.failure(); err != nil {
		return nil, err
	}
	if batch == batchID {
		return []uint{studentID}, nil
	}
	return nil, nil
}

func (s *stubBatches) BatchDisplayCode(_ context.Context, batch uint) string {
	return gateway.FallbackBatchCode(batch)
}

type stubUsers struct{}

func (stubUsers) UserSummary(_ context.Context, id uint) gateway.UserSummary {
	return gateway.FallbackUserSummary(id)
}

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, notification.Event) {}

type testApp struct {
	app     *fiber.App
	batches *stubBatches
}

func setupApp(t *testing.T) testApp {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)
	batches := &stubBatches{}
	notifier := discardNotifier{}
	studentCache := cache.Disabled{}

	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	bankRepo := repository.NewQuestionBankRepository(db)
	mcqRepo := repository.NewMcqSubmissionRepository(db)

	lifecycle := service.NewLifecycleService(assignmentRepo, batches, studentCache, notifier, 2, logger)
	assignments := service.NewAssignmentService(assignmentRepo, submissionRepo, bankRepo, mcqRepo, batches, studentCache, validate, logger)
	submissions := service.NewSubmissionService(service.SubmissionDeps{
		Assignments: assignmentRepo,
		Submissions: submissionRepo,
		Users:       stubUsers{},
		Store:       store,
		Cache:       studentCache,
		Notifier:    notifier,
		Validator:   validate,
	}, logger)
	students := service.NewStudentAssignmentService(service.StudentAssignmentDeps{
		Assignments:    assignmentRepo,
		Submissions:    submissionRepo,
		Banks:          bankRepo,
		McqSubmissions: mcqRepo,
		Batches:        batches,
		Cache:          studentCache,
		Notifier:       notifier,
		Store:          store,
		Uploads:        storage.DefaultUploadPolicy(),
		Validator:      validate,
	}, logger)
	mcqs := service.NewMcqService(assignmentRepo, bankRepo, mcqRepo, batches, stubUsers{}, studentCache, validate, logger)
	studentMcqs := service.NewStudentMcqService(assignmentRepo, bankRepo, mcqRepo, batches, studentCache, notifier, validate, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test"}, router.Dependencies{
		AssignmentHandler:        handler.NewAssignmentHandler(assignments, lifecycle, logger),
		SubmissionHandler:        handler.NewSubmissionHandler(submissions, logger),
		McqHandler:               handler.NewMcqHandler(mcqs, lifecycle, logger),
		StudentAssignmentHandler: handler.NewStudentAssignmentHandler(students, nil, logger),
		StudentMcqHandler:        handler.NewStudentMcqHandler(studentMcqs, nil, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			if id, err := strconv.ParseUint(c.Get("X-Test-User"), 10, 64); err == nil {
				c.Locals("user_id", uint(id))
			}
			c.Locals("user_role", c.Get("X-Test-Role"))
			return c.Next()
		},
	})

	return testApp{app: app, batches: batches}
}

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Meta    json.RawMessage   `json:"meta"`
	Details map[string]string `json:"details"`
}

func (a testApp) do(t *testing.T, method, path string, user uint, role string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.send(t, req, user, role)
}

func (a testApp) send(t *testing.T, req *http.Request, user uint, role string) (int, envelope) {
	t.Helper()
	req.Header.Set("X-Test-User", strconv.FormatUint(uint64(user), 10))
	req.Header.Set("X-Test-Role", role)

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out envelope
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &out))
	}
	return resp.StatusCode, out
}

func createTextAssignment(t *testing.T, a testApp) dto.AssignmentResponse {
	t.Helper()
	status, body := a.do(t, http.MethodPost, "/api/v1/teacher/assignments", teacherID, "teacher", map[string]interface{}{
		"batch_id":  batchID,
		"title":     "Essay on streams",
		"kind":      "TEXT",
		"max_marks": 20,
	})
	require.Equal(t, fiber.StatusCreated, status)

	var created dto.AssignmentResponse
	require.NoError(t, json.Unmarshal(body.Data, &created))
	return created
}

func TestTeacherAndStudentAssignmentFlow(t *testing.T) {
	a := setupApp(t)
	created := createTextAssignment(t, a)
	base := fmt.Sprintf("/api/v1/teacher/assignments/%d", created.ID)
	submitPath := fmt.Sprintf("/api/v1/student/assignments/%d/submissions/text", created.ID)

	status, body := a.do(t, http.MethodPost, submitPath, studentID, "student", map[string]string{"content": "early"})
	require.Equal(t, fiber.StatusConflict, status)
	require.Equal(t, "assignment is not open for submission", body.Message)

	status, body = a.do(t, http.MethodPost, base+"/publish", teacherID, "teacher", nil)
	require.Equal(t, fiber.StatusOK, status)
	var lifecycle dto.LifecycleResponse
	require.NoError(t, json.Unmarshal(body.Data, &lifecycle))
	require.Equal(t, "PUBLISHED", lifecycle.Status)
	require.Equal(t, 1, lifecycle.StudentsNotified)

	status, _ = a.do(t, http.MethodPost, base+"/publish", teacherID, "teacher", nil)
	require.Equal(t, fiber.StatusConflict, status)

	status, body = a.do(t, http.MethodGet, "/api/v1/student/assignments", studentID, "student", nil)
	require.Equal(t, fiber.StatusOK, status)
	var listed []dto.StudentAssignmentResponse
	require.NoError(t, json.Unmarshal(body.Data, &listed))
	require.Len(t, listed, 1)
	require.False(t, listed[0].Submitted)

	status, _ = a.do(t, http.MethodPost, submitPath, studentID, "student", map[string]string{"content": "my essay"})
	require.Equal(t, fiber.StatusCreated, status)
	status, body = a.do(t, http.MethodPost, submitPath, studentID, "student", map[string]string{"content": "again"})
	require.Equal(t, fiber.StatusConflict, status)
	require.Equal(t, "you have already submitted this assignment", body.Message)

	evaluatePath := fmt.Sprintf("%s/submissions/%d/evaluate", base, studentID)
	status, _ = a.do(t, http.MethodPut, evaluatePath, teacherID, "teacher", map[string]interface{}{"obtained_marks": 25})
	require.Equal(t, fiber.StatusBadRequest, status)
	status, _ = a.do(t, http.MethodPut, evaluatePath, 2, "teacher", map[string]interface{}{"obtained_marks": 15})
	require.Equal(t, fiber.StatusForbidden, status)
	status, body = a.do(t, http.MethodPut, evaluatePath, teacherID, "teacher", map[string]interface{}{"obtained_marks": 15, "feedback": "solid"})
	require.Equal(t, fiber.StatusOK, status)
	var evaluated dto.SubmissionResponse
	require.NoError(t, json.Unmarshal(body.Data, &evaluated))
	require.Equal(t, 15, *evaluated.ObtainedMarks)
	require.Equal(t, "Student #5", evaluated.Student.Name)

	status, body = a.do(t, http.MethodGet, "/api/v1/teacher/assignments?status=PUBLISHED", teacherID, "teacher", nil)
	require.Equal(t, fiber.StatusOK, status)
	var items []dto.AssignmentResponse
	require.NoError(t, json.Unmarshal(body.Data, &items))
	require.Len(t, items, 1)
	require.Equal(t, int64(1), items[0].TotalSubmissions)
	require.Equal(t, "BATCH-10", items[0].BatchCode)
	var meta dto.Pagination
	require.NoError(t, json.Unmarshal(body.Meta, &meta))
	require.Equal(t, int64(1), meta.TotalItems)

	status, _ = a.do(t, http.MethodPost, base+"/close", teacherID, "teacher", nil)
	require.Equal(t, fiber.StatusOK, status)
	status, _ = a.do(t, http.MethodDelete, base, teacherID, "teacher", nil)
	require.Equal(t, fiber.StatusConflict, status)
}

func TestHandlerErrorMapping(t *testing.T) {
	a := setupApp(t)

	status, body := a.do(t, http.MethodPost, "/api/v1/teacher/assignments", teacherID, "teacher", map[string]interface{}{
		"batch_id": batchID,
		"title":    "x",
		"kind":     "TEXT",
	})
	require.Equal(t, fiber.StatusBadRequest, status)
	require.False(t, body.Success)
	require.Equal(t, "min", body.Details["Title"])
	require.Equal(t, "required", body.Details["MaxMarks"])

	status, _ = a.do(t, http.MethodGet, "/api/v1/teacher/assignments/9999", teacherID, "teacher", nil)
	require.Equal(t, fiber.StatusNotFound, status)

	status, _ = a.do(t, http.MethodGet, "/api/v1/teacher/assignments/abc", teacherID, "teacher", nil)
	require.Equal(t, fiber.StatusBadRequest, status)

	status, _ = a.do(t, http.MethodGet, "/api/v1/teacher/assignments", studentID, "student", nil)
	require.Equal(t, fiber.StatusForbidden, status)

	created := createTextAssignment(t, a)
	a.batches.mu.Lock()
	a.batches.err = apperror.Unavailable(context.DeadlineExceeded, "batch service unavailable")
	a.batches.mu.Unlock()

	status, body = a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/teacher/assignments/%d/publish", created.ID), teacherID, "teacher", nil)
	require.Equal(t, fiber.StatusServiceUnavailable, status)
	require.Equal(t, "batch service unavailable", body.Message)
}

func TestFileSubmissionUploadAndDownload(t *testing.T) {
	a := setupApp(t)
	status, body := a.do(t, http.MethodPost, "/api/v1/teacher/assignments", teacherID, "teacher", map[string]interface{}{
		"batch_id":  batchID,
		"title":     "Lab report",
		"kind":      "FILE",
		"max_marks": 50,
	})
	require.Equal(t, fiber.StatusCreated, status)
	var created dto.AssignmentResponse
	require.NoError(t, json.Unmarshal(body.Data, &created))

	status, _ = a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/teacher/assignments/%d/publish", created.ID), teacherID, "teacher", nil)
	require.Equal(t, fiber.StatusOK, status)

	content := []byte("%PDF-1.4\n%lab\n")
	form := &bytes.Buffer{}
	writer := multipart.NewWriter(form)
	part, err := writer.CreateFormFile("file", "report.pdf")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/student/assignments/%d/submissions/file", created.ID), form)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	status, _ = a.send(t, req, studentID, "student")
	require.Equal(t, fiber.StatusCreated, status)

	download := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/teacher/assignments/%d/submissions/%d/file", created.ID, studentID), nil)
	download.Header.Set("X-Test-User", strconv.FormatUint(uint64(teacherID), 10))
	download.Header.Set("X-Test-Role", "teacher")
	resp, err := a.app.Test(download, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	require.Contains(t, resp.Header.Get("Content-Disposition"), "report.pdf")

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, content, data)
}

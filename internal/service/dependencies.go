package service

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assignment-api/internal/apperror"
	"github.com/noah-isme/gema-assignment-api/internal/cache"
	"github.com/noah-isme/gema-assignment-api/internal/dto"
	"github.com/noah-isme/gema-assignment-api/internal/gateway"
	"github.com/noah-isme/gema-assignment-api/internal/models"
	"github.com/noah-isme/gema-assignment-api/internal/notification"
	"github.com/noah-isme/gema-assignment-api/internal/repository"
)

const tracerName = "github.com/noah-isme/gema-assignment-api/internal/service"

// BatchDirectory answers batch membership questions. Satisfied by *gateway.BatchGateway.
type BatchDirectory interface {
	ValidateTeacherBatch(ctx context.Context, teacherID, batchID uint) (bool, error)
	StudentBatchIDs(ctx context.Context, studentID uint) ([]uint, error)
	BatchStudentIDs(ctx context.Context, batchID uint) ([]uint, error)
	BatchDisplayCode(ctx context.Context, batchID uint) string
}

// UserDirectory resolves display data for users. Satisfied by *gateway.UserGateway.
type UserDirectory interface {
	UserSummary(ctx context.Context, userID uint) gateway.UserSummary
}

// Notifier delivers best effort notifications. Satisfied by *notification.Dispatcher.
type Notifier interface {
	Notify(ctx context.Context, event notification.Event)
}

var (
	_ BatchDirectory = (*gateway.BatchGateway)(nil)
	_ UserDirectory  = (*gateway.UserGateway)(nil)
	_ Notifier       = (*notification.Dispatcher)(nil)
)

// findAssignment loads an assignment including DELETED ones.
func findAssignment(ctx context.Context, repo repository.AssignmentRepository, id uint) (models.Assignment, error) {
	assignment, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, apperror.NotFound("assignment not found")
		}
		return models.Assignment{}, err
	}
	return assignment, nil
}

// findOwnedAssignment loads a live assignment owned by teacherID.
func findOwnedAssignment(ctx context.Context, repo repository.AssignmentRepository, id, teacherID uint) (models.Assignment, error) {
	assignment, err := findAssignment(ctx, repo, id)
	if err != nil {
		return models.Assignment{}, err
	}
	if assignment.Status == models.AssignmentStatusDeleted {
		return models.Assignment{}, apperror.NotFound("assignment not found")
	}
	if !assignment.IsOwnedBy(teacherID) {
		return models.Assignment{}, apperror.Forbidden("you do not own this assignment")
	}
	return assignment, nil
}

// ensureTeacherBatch checks the teacher teaches batchID.
func ensureTeacherBatch(ctx context.Context, batches BatchDirectory, teacherID, batchID uint) error {
	ok, err := batches.ValidateTeacherBatch(ctx, teacherID, batchID)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.Forbidden("you are not assigned to batch %d", batchID)
	}
	return nil
}

// evictStudent drops the cached assignment list of one student. Failures are logged by the caller.
func evictStudent(ctx context.Context, c cache.Client, studentID uint) error {
	return c.Evict(ctx, cache.StudentAssignmentsKey(studentID))
}

// rosterEvictor drops the cached lists of every student enrolled in a batch
// after an edit that students can see. It never fails the caller.
type rosterEvictor struct {
	batches BatchDirectory
	cache   cache.Client
	limit   int
	logger  zerolog.Logger
}

func newRosterEvictor(batches BatchDirectory, c cache.Client, logger zerolog.Logger) rosterEvictor {
	if c == nil {
		c = cache.Disabled{}
	}
	return rosterEvictor{batches: batches, cache: c, limit: DefaultFanOutLimit, logger: logger}
}

// afterEdit evicts when assignment is visible to students. Drafts never reach a student list.
func (e rosterEvictor) afterEdit(ctx context.Context, assignment models.Assignment) {
	if !assignment.Status.VisibleToStudents() {
		return
	}

	ctx = context.WithoutCancel(ctx)
	students, err := e.batches.BatchStudentIDs(ctx, assignment.BatchID)
	if err != nil {
		e.logger.Warn().Err(err).Uint("assignment_id", assignment.ID).Msg("failed to resolve roster, student caches expire by ttl")
		return
	}

	var group errgroup.Group
	group.SetLimit(e.limit)
	for _, studentID := range students {
		studentID := studentID
		group.Go(func() error {
			if err := evictStudent(ctx, e.cache, studentID); err != nil {
				e.logger.Warn().Err(err).Uint("student_id", studentID).Uint("assignment_id", assignment.ID).Msg("failed to evict student cache")
			}
			return nil
		})
	}
	_ = group.Wait()
}

func studentLite(studentID uint, summary gateway.UserSummary) dto.StudentLite {
	if summary.ID == 0 {
		summary.ID = studentID
	}
	return dto.StudentLite{ID: studentID, Name: summary.DisplayName(), Email: summary.Email}
}

const userLookupLimit = 8

// resolveStudents looks up display data for every distinct student. Lookups never fail.
func resolveStudents(ctx context.Context, users UserDirectory, studentIDs []uint) map[uint]dto.StudentLite {
	resolved := make(map[uint]dto.StudentLite, len(studentIDs))
	if len(studentIDs) == 0 {
		return resolved
	}

	var (
		mu    sync.Mutex
		group errgroup.Group
		seen  = make(map[uint]struct{}, len(studentIDs))
	)
	group.SetLimit(userLookupLimit)
	for _, id := range studentIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		id := id
		group.Go(func() error {
			var summary gateway.UserSummary
			if users != nil {
				summary = users.UserSummary(ctx, id)
			} else {
				summary = gateway.FallbackUserSummary(id)
			}
			mu.Lock()
			resolved[id] = studentLite(id, summary)
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	return resolved
}

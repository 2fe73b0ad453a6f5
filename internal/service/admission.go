package service

import (
	"context"
	"errors"

	"github.com/noah-isme/gema-assignment-api/internal/apperror"
	"github.com/noah-isme/gema-assignment-api/internal/models"
	"github.com/noah-isme/gema-assignment-api/internal/observability"
	"github.com/noah-isme/gema-assignment-api/internal/repository"
)

const alreadySubmittedMessage = "you have already submitted this assignment"

// priorSubmission reports whether the student already answered assignment.
type priorSubmission func(ctx context.Context, assignment models.Assignment) (bool, error)

// admission runs the ordered checks every submission path shares.
type admission struct {
	assignments repository.AssignmentRepository
	batches     BatchDirectory
}

// admit returns the assignment when studentID may submit an answer of kind to it.
func (a admission) admit(ctx context.Context, assignmentID, studentID uint, kind models.AssignmentKind, prior priorSubmission) (models.Assignment, error) {
	assignment, err := a.check(ctx, assignmentID, studentID, kind, prior)
	observability.SubmissionAdmissions().WithLabelValues(string(kind), outcomeOf(err)).Inc()
	return assignment, err
}

func (a admission) check(ctx context.Context, assignmentID, studentID uint, kind models.AssignmentKind, prior priorSubmission) (models.Assignment, error) {
	assignment, err := findVisibleAssignment(ctx, a.assignments, assignmentID)
	if err != nil {
		return models.Assignment{}, err
	}

	if !assignment.IsOpen() {
		return models.Assignment{}, apperror.InvalidState("assignment is not open for submission")
	}

	if assignment.Kind != kind {
		return models.Assignment{}, apperror.BadRequest("assignment expects a %s submission", assignment.Kind)
	}

	submitted, err := prior(ctx, assignment)
	if err != nil {
		return models.Assignment{}, err
	}
	if submitted {
		return models.Assignment{}, apperror.InvalidState(alreadySubmittedMessage)
	}

	if err := ensureEnrolled(ctx, a.batches, studentID, assignment.BatchID); err != nil {
		return models.Assignment{}, err
	}

	return assignment, nil
}

// findVisibleAssignment loads an assignment a student may see. DELETED counts as absent.
func findVisibleAssignment(ctx context.Context, repo repository.AssignmentRepository, id uint) (models.Assignment, error) {
	assignment, err := findAssignment(ctx, repo, id)
	if err != nil {
		return models.Assignment{}, err
	}
	if assignment.Status == models.AssignmentStatusDeleted {
		return models.Assignment{}, apperror.NotFound("assignment not found")
	}
	return assignment, nil
}

// ensureEnrolled checks the student belongs to batchID.
func ensureEnrolled(ctx context.Context, batches BatchDirectory, studentID, batchID uint) error {
	ids, err := batches.StudentBatchIDs(ctx, studentID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == batchID {
			return nil
		}
	}
	return apperror.Forbidden("you are not enrolled in this assignment's batch")
}

// translateDuplicate maps a unique index rejection to the already-submitted error.
func translateDuplicate(err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return apperror.InvalidState(alreadySubmittedMessage)
	}
	return err
}

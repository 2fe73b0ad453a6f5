package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assignment-api/internal/apperror"
	"github.com/noah-isme/gema-assignment-api/internal/observability"
)

const batchDependency = "batch_service"

// BatchClient is the raw transport to the batch membership service.
type BatchClient interface {
	ValidateTeacherBatch(ctx context.Context, teacherID, batchID uint) (bool, error)
	StudentBatchIDs(ctx context.Context, studentID uint) ([]uint, error)
	BatchStudentIDs(ctx context.Context, batchID uint) ([]uint, error)
	BatchCode(ctx context.Context, batchID uint) (string, error)
}

type httpBatchClient struct {
	rest *restClient
}

// NewHTTPBatchClient talks to the batch service's internal endpoints.
func NewHTTPBatchClient(baseURL, serviceName string, timeout time.Duration) BatchClient {
	return &httpBatchClient{rest: newRestClient(batchDependency, baseURL, serviceName, timeout)}
}

func (c *httpBatchClient) ValidateTeacherBatch(ctx context.Context, teacherID, batchID uint) (bool, error) {
	var valid bool
	err := c.rest.getJSON(ctx, fmt.Sprintf("/internal/batches/teacher/%d/validate/%d", teacherID, batchID), &valid)
	return valid, err
}

func (c *httpBatchClient) StudentBatchIDs(ctx context.Context, studentID uint) ([]uint, error) {
	var ids []uint
	err := c.rest.getJSON(ctx, fmt.Sprintf("/internal/batches/student/%d", studentID), &ids)
	return ids, err
}

func (c *httpBatchClient) BatchStudentIDs(ctx context.Context, batchID uint) ([]uint, error) {
	var ids []uint
	err := c.rest.getJSON(ctx, fmt.Sprintf("/internal/batches/%d/students", batchID), &ids)
	return ids, err
}

func (c *httpBatchClient) BatchCode(ctx context.Context, batchID uint) (string, error) {
	return c.rest.getString(ctx, fmt.Sprintf("/internal/batches/%d/code", batchID))
}

// BatchGateway answers batch membership questions for the assignment core.
//
// Membership lookups fail closed with ServiceUnavailable. The display code
// lookup never fails and falls back to "BATCH-<id>".
type BatchGateway struct {
	client BatchClient
	remote *remote
	logger zerolog.Logger
}

// NewBatchGateway wires client behind breaker and retry.
func NewBatchGateway(client BatchClient, breaker *Breaker, retry RetryPolicy, logger zerolog.Logger) *BatchGateway {
	log := logger.With().Str("component", "batch_gateway").Logger()
	return &BatchGateway{
		client: client,
		remote: newRemote(batchDependency, breaker, retry, log),
		logger: log,
	}
}

// ValidateTeacherBatch reports whether the teacher teaches the batch.
func (g *BatchGateway) ValidateTeacherBatch(ctx context.Context, teacherID, batchID uint) (bool, error) {
	var valid bool
	err := g.remote.do(ctx, "validate_teacher_batch", func(ctx context.Context) error {
		var err error
		valid, err = g.client.ValidateTeacherBatch(ctx, teacherID, batchID)
		return err
	})
	if err != nil {
		return false, apperror.Unavailable(err, "batch service unavailable")
	}
	return valid, nil
}

// StudentBatchIDs lists the batches a student is enrolled in.
func (g *BatchGateway) StudentBatchIDs(ctx context.Context, studentID uint) ([]uint, error) {
	var ids []uint
	err := g.remote.do(ctx, "student_batch_ids", func(ctx context.Context) error {
		var err error
		ids, err = g.client.StudentBatchIDs(ctx, studentID)
		return err
	})
	if err != nil {
		return nil, apperror.Unavailable(err, "batch service unavailable")
	}
	return ids, nil
}

// BatchStudentIDs lists the students enrolled in a batch.
func (g *BatchGateway) BatchStudentIDs(ctx context.Context, batchID uint) ([]uint, error) {
	var ids []uint
	err := g.remote.do(ctx, "batch_student_ids", func(ctx context.Context) error {
		var err error
		ids, err = g.client.BatchStudentIDs(ctx, batchID)
		return err
	})
	if err != nil {
		return nil, apperror.Unavailable(err, "batch service unavailable")
	}
	return ids, nil
}

// BatchDisplayCode returns the human readable batch code.
func (g *BatchGateway) BatchDisplayCode(ctx context.Context, batchID uint) string {
	var code string
	err := g.remote.do(ctx, "batch_code", func(ctx context.Context) error {
		var err error
		code, err = g.client.BatchCode(ctx, batchID)
		return err
	})
	if err != nil || code == "" {
		if err != nil {
			g.logger.Warn().Err(err).Uint("batch_id", batchID).Msg("batch code lookup failed, using placeholder")
		}
		observability.GatewayFallbacks().WithLabelValues(batchDependency, "batch_code").Inc()
		return FallbackBatchCode(batchID)
	}
	return code
}

// FallbackBatchCode is the placeholder shown when the batch service cannot answer.
func FallbackBatchCode(batchID uint) string {
	return fmt.Sprintf("BATCH-%d", batchID)
}

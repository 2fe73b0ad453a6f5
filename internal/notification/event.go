// Package notification delivers fire-and-forget user notifications to the
// notification service through a message broker.
package notification

import (
	"context"
	"time"
)

// Roles and channels understood by the notification service.
const (
	RoleStudent = "STUDENT"
	RoleTeacher = "TEACHER"

	ChannelInApp = "IN_APP"
)

// Event types emitted by the assignment service.
const (
	TypeAssignmentPublished = "ASSIGNMENT_PUBLISHED"
	TypeAssignmentClosed    = "ASSIGNMENT_CLOSED"
	TypeAssignmentDeleted   = "ASSIGNMENT_DELETED"
	TypeSubmissionReceived  = "SUBMISSION_RECEIVED"
	TypeSubmissionEvaluated = "SUBMISSION_EVALUATED"
)

// Event is one notification addressed to one user.
type Event struct {
	Type         string    `json:"type"`
	TargetUserID uint      `json:"userId"`
	Role         string    `json:"role"`
	Channel      string    `json:"channel"`
	Title        string    `json:"title"`
	Body         string    `json:"message"`
	Source       string    `json:"source"`
	SentAt       time.Time `json:"sentAt"`
	RequestID    string    `json:"requestId,omitempty"`
}

// Publisher hands an event to a transport.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, event Event) error
}

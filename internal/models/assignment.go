package models

import "time"

// AssignmentKind describes how students answer an assignment.
type AssignmentKind string

const (
	AssignmentKindText AssignmentKind = "TEXT"
	AssignmentKindFile AssignmentKind = "FILE"
	AssignmentKindMCQ  AssignmentKind = "MCQ"
)

// Valid reports whether k is a known kind.
func (k AssignmentKind) Valid() bool {
	switch k {
	case AssignmentKindText, AssignmentKindFile, AssignmentKindMCQ:
		return true
	default:
		return false
	}
}

// AssignmentStatus is the lifecycle state of an assignment.
type AssignmentStatus string

const (
	AssignmentStatusDraft     AssignmentStatus = "DRAFT"
	AssignmentStatusPublished AssignmentStatus = "PUBLISHED"
	AssignmentStatusClosed    AssignmentStatus = "CLOSED"
	AssignmentStatusDeleted   AssignmentStatus = "DELETED"
)

var assignmentTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentStatusDraft:     {AssignmentStatusPublished, AssignmentStatusDeleted},
	AssignmentStatusPublished: {AssignmentStatusClosed, AssignmentStatusDeleted},
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s AssignmentStatus) CanTransitionTo(next AssignmentStatus) bool {
	for _, allowed := range assignmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s AssignmentStatus) IsTerminal() bool {
	return len(assignmentTransitions[s]) == 0
}

// VisibleToStudents reports whether assignments in s appear in student lists.
func (s AssignmentStatus) VisibleToStudents() bool {
	return s == AssignmentStatusPublished
}

// Assignment is a unit of work a teacher hands to one batch.
type Assignment struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	TeacherID   uint             `gorm:"not null;index" json:"teacher_id"`
	BatchID     uint             `gorm:"not null;index" json:"batch_id"`
	Title       string           `gorm:"size:255;not null" json:"title"`
	Description string           `gorm:"type:text" json:"description"`
	Kind        AssignmentKind   `gorm:"size:16;not null;<-:create" json:"kind"`
	MaxMarks    int              `gorm:"not null" json:"max_marks"`
	Status      AssignmentStatus `gorm:"size:16;not null;index" json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	DeletedAt   *time.Time       `json:"deleted_at,omitempty"`
}

// IsOwnedBy reports whether teacherID created the assignment.
func (a Assignment) IsOwnedBy(teacherID uint) bool {
	return a.TeacherID == teacherID
}

// IsOpen reports whether students may submit.
func (a Assignment) IsOpen() bool {
	return a.Status == AssignmentStatusPublished
}

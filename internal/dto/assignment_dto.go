package dto

import (
	"time"

	"github.com/noah-isme/gema-assignment-api/internal/models"
)

// AssignmentCreateRequest describes the payload for creating a TEXT or FILE assignment.
type AssignmentCreateRequest struct {
	BatchID     uint   `json:"batch_id" validate:"required"`
	Title       string `json:"title" validate:"required,min=3,max=255"`
	Description string `json:"description" validate:"max=5000"`
	Kind        string `json:"kind" validate:"required,oneof=TEXT FILE"`
	MaxMarks    int    `json:"max_marks" validate:"required,min=1"`
}

// AssignmentUpdateRequest describes a partial update. Kind is immutable and not accepted.
type AssignmentUpdateRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=3,max=255"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	MaxMarks    *int    `json:"max_marks" validate:"omitempty,min=1"`
}

// AssignmentListQuery captures the teacher listing filters.
type AssignmentListQuery struct {
	Search   string `query:"search"`
	Kind     string `query:"kind" validate:"omitempty,oneof=TEXT FILE MCQ text file mcq"`
	Status   string `query:"status" validate:"omitempty,oneof=DRAFT PUBLISHED CLOSED draft published closed"`
	Sort     string `query:"sort"`
	Page     int    `query:"page" validate:"omitempty,min=1"`
	PageSize int    `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// Pagination describes pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPagination computes the page count for total items.
func NewPagination(page, pageSize int, total int64) Pagination {
	pages := 0
	if pageSize > 0 {
		pages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return Pagination{Page: page, PageSize: pageSize, TotalItems: total, TotalPages: pages}
}

// AssignmentResponse is the teacher facing representation of an assignment.
type AssignmentResponse struct {
	ID               uint       `json:"id"`
	BatchID          uint       `json:"batch_id"`
	BatchCode        string     `json:"batch_code,omitempty"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Kind             string     `json:"kind"`
	MaxMarks         int        `json:"max_marks"`
	Status           string     `json:"status"`
	TotalSubmissions int64      `json:"total_submissions"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
}

// AssignmentListResponse wraps a page of assignments.
type AssignmentListResponse struct {
	Items      []AssignmentResponse `json:"items"`
	Pagination Pagination           `json:"pagination"`
}

// NewAssignmentResponse converts a model into a DTO.
func NewAssignmentResponse(model models.Assignment) AssignmentResponse {
	return AssignmentResponse{
		ID:          model.ID,
		BatchID:     model.BatchID,
		Title:       model.Title,
		Description: model.Description,
		Kind:        string(model.Kind),
		MaxMarks:    model.MaxMarks,
		Status:      string(model.Status),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
		DeletedAt:   model.DeletedAt,
	}
}

// LifecycleResponse reports the outcome of a publish, close or delete.
type LifecycleResponse struct {
	AssignmentID     uint   `json:"assignment_id"`
	Status           string `json:"status"`
	StudentsNotified int    `json:"students_notified"`
}

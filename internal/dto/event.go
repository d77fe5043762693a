package dto

import (
	"time"

	"github.com/noah-isme/academic-approval-api/internal/models"
)

// CreateEventRequest is the payload of POST /events.
type CreateEventRequest struct {
	DepartmentID       string     `json:"departmentId" validate:"required"`
	AcademicYearID     string     `json:"academicYearId" validate:"required"`
	Title              string     `json:"title" validate:"required,max=255"`
	Description        *string    `json:"description,omitempty"`
	EventDate          *time.Time `json:"eventDate,omitempty"`
	BudgetAmount       float64    `json:"budgetAmount" validate:"gte=0"`
	CoordinatorName    *string    `json:"coordinatorName,omitempty" validate:"omitempty,max=255"`
	CoordinatorContact *string    `json:"coordinatorContact,omitempty" validate:"omitempty,max=255"`
}

// UpdateEventStatusRequest is the payload of PATCH /events/:id/status.
type UpdateEventStatusRequest struct {
	Status models.EventStatus `json:"status" validate:"required"`
}

// EventListQuery captures GET /events query parameters.
type EventListQuery struct {
	DepartmentID   string `form:"departmentId"`
	AcademicYearID string `form:"academicYearId"`
	Status         string `form:"status"`
	Page           int    `form:"page"`
	PageSize       int    `form:"pageSize"`
}

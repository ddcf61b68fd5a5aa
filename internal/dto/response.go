package dto

import (
	"github.com/cmyui/experimentation/internal/domain"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"experiments.invalid_transition"`
	Message string `json:"message,omitempty" example:"invalid status transition"`
}

// ListExperimentsResponse represents a page of experiments
type ListExperimentsResponse struct {
	Experiments []*domain.Experiment `json:"experiments"`
	Page        int                  `json:"page" example:"1"`
	PageSize    int                  `json:"page_size" example:"50"`
	TotalCount  int64                `json:"total_count" example:"3"`
}

// AssignmentData represents one resolved (experiment, variant) pair
type AssignmentData struct {
	ExperimentID  string `json:"experiment_id"`
	ExperimentKey string `json:"experiment_key" example:"new-checkout-flow"`
	VariantName   string `json:"variant_name" example:"treatment"`
	Payload       any    `json:"payload,omitempty"`
}

// FetchAssignmentsResponse represents the variants a user resolved to
type FetchAssignmentsResponse struct {
	UserID      string           `json:"user_id" example:"user_123"`
	Assignments []AssignmentData `json:"assignments"`
}

// ExposureResponse represents a tracked exposure
type ExposureResponse struct {
	ExperimentID string `json:"experiment_id"`
	UserID       string `json:"user_id" example:"user_123"`
	VariantName  string `json:"variant_name" example:"treatment"`
	CreatedAt    string `json:"created_at" example:"2025-08-14T10:32:12Z"`
}

// VariantCountData represents aggregated exposures for one variant
type VariantCountData struct {
	VariantName string `json:"variant_name" example:"treatment"`
	TotalCount  uint64 `json:"total_count" example:"1500"`
	UniqueCount uint64 `json:"unique_count" example:"1400"`
}

// ExposureCountsResponse represents per-variant exposure counts for an experiment
type ExposureCountsResponse struct {
	ExperimentID string             `json:"experiment_id"`
	Counts       []VariantCountData `json:"counts"`
}

package dto

import (
	"github.com/cmyui/experimentation/internal/domain"
)

// CreateExperimentRequest represents a create experiment request
type CreateExperimentRequest struct {
	Name string `json:"name" binding:"required" example:"New checkout flow"`
	Type string `json:"type" binding:"required,oneof=hypothesis_testing do_no_harm" example:"hypothesis_testing"`
	Key  string `json:"key" binding:"required" example:"new-checkout-flow"`
}

// UpdateExperimentRequest represents a partial experiment update. Pointer
// fields distinguish "not supplied" (nil) from "explicitly set" (non-nil).
type UpdateExperimentRequest struct {
	Name              *string             `json:"name"`
	Key               *string             `json:"key"`
	Type              *string             `json:"type" binding:"omitempty,oneof=hypothesis_testing do_no_harm"`
	Description       *string             `json:"description"`
	Hypothesis        *domain.Hypothesis  `json:"hypothesis"`
	ExposureEvent     *string             `json:"exposure_event"`
	Variants          *[]domain.Variant   `json:"variants"`
	VariantAllocation *map[string]float64 `json:"variant_allocation"`
	BucketingSalt     *string             `json:"bucketing_salt"`
	Status            *string             `json:"status" binding:"omitempty,oneof=draft running completed"`
}

// ListExperimentsRequest represents an experiment listing query
type ListExperimentsRequest struct {
	Status   string `form:"status" binding:"omitempty,oneof=draft running completed" example:"running"`
	Page     int    `form:"page,default=1" binding:"min=1" example:"1"`
	PageSize int    `form:"page_size,default=50" binding:"min=1,max=200" example:"50"`
}

// FetchAssignmentsRequest represents a request to resolve a user's variants
// across all running experiments
type FetchAssignmentsRequest struct {
	UserID string `json:"user_id" binding:"required" example:"user_123"`
}

// TrackExposureRequest represents an exposure tracking request. The variant
// is never accepted from the caller; it is always copied from the user's
// assignment.
type TrackExposureRequest struct {
	ExperimentID string `json:"experiment_id" binding:"required,uuid" example:"8e1f0652-521c-4ab6-9d6b-491db9acfe54"`
	UserID       string `json:"user_id" binding:"required" example:"user_123"`
}

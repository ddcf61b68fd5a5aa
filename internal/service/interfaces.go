package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/cmyui/experimentation/internal/domain"
	"github.com/cmyui/experimentation/internal/repository"
)

// UpdateExperimentParams carries the fields of a partial experiment update.
// A nil field was not supplied by the caller; a non-nil field is applied,
// even when it points at an empty value.
type UpdateExperimentParams struct {
	Name              *string
	Key               *string
	Type              *domain.ExperimentType
	Description       *string
	Hypothesis        *domain.Hypothesis
	ExposureEvent     *string
	Variants          *[]domain.Variant
	VariantAllocation *map[string]float64
	BucketingSalt     *string
	Status            *domain.ExperimentStatus
}

// ExperimentServicer defines the interface for experiment lifecycle operations
type ExperimentServicer interface {
	CreateExperiment(ctx context.Context, name string, experimentType domain.ExperimentType, key string) (*domain.Experiment, error)
	UpdateExperiment(ctx context.Context, id uuid.UUID, params UpdateExperimentParams) (*domain.Experiment, error)
	GetExperiment(ctx context.Context, id uuid.UUID) (*domain.Experiment, error)
	ListExperiments(ctx context.Context, status *domain.ExperimentStatus, page, pageSize int) ([]*domain.Experiment, int64, error)
}

// ExperimentAssignment pairs an experiment with the variant a user resolved to
type ExperimentAssignment struct {
	Experiment  *domain.Experiment
	VariantName string
}

// AssignmentServicer defines the interface for user bucketing operations
type AssignmentServicer interface {
	FetchAndAssign(ctx context.Context, userID string) ([]ExperimentAssignment, error)
}

// ExposureServicer defines the interface for exposure tracking operations
type ExposureServicer interface {
	TrackExposure(ctx context.Context, experimentID uuid.UUID, userID string) (*domain.Exposure, error)
	GetExposureCounts(ctx context.Context, experimentID uuid.UUID) ([]repository.VariantExposureCount, error)
}

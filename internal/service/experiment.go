package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cmyui/experimentation/internal/apperrors"
	"github.com/cmyui/experimentation/internal/domain"
	"github.com/cmyui/experimentation/internal/repository"
)

// allocationSumEpsilon tolerates float drift in weights that should sum to
// 100, e.g. 33.33 + 33.33 + 33.34.
const allocationSumEpsilon = 1e-9

// ExperimentService manages the experiment lifecycle
type ExperimentService struct {
	store repository.Store
	log   *zap.Logger
}

// NewExperimentService creates a new experiment service
func NewExperimentService(store repository.Store, log *zap.Logger) *ExperimentService {
	return &ExperimentService{
		store: store,
		log:   log,
	}
}

// newBucketingSalt generates a random 8-hex-character bucketing salt
func newBucketingSalt() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// CreateExperiment creates a new experiment in draft status with a freshly
// generated bucketing salt and empty hypothesis, variants and allocation.
func (s *ExperimentService) CreateExperiment(ctx context.Context, name string, experimentType domain.ExperimentType, key string) (*domain.Experiment, error) {
	salt, err := newBucketingSalt()
	if err != nil {
		s.log.Error("Failed to generate bucketing salt", zap.Error(err))
		return nil, apperrors.New(apperrors.CodeExperimentsCreateFailed, "failed to create experiment")
	}

	now := time.Now().UTC()
	experiment := &domain.Experiment{
		ExperimentID:      uuid.New(),
		Name:              name,
		Key:               key,
		Type:              experimentType,
		Hypothesis:        domain.Hypothesis{MetricEffects: []domain.MetricEffect{}},
		Variants:          []domain.Variant{},
		VariantAllocation: map[string]float64{},
		BucketingSalt:     salt,
		Status:            domain.ExperimentStatusDraft,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.store.Repos().Experiments.Create(ctx, experiment); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, apperrors.New(apperrors.CodeExperimentsKeyAlreadyExists,
				"an experiment with this key already exists")
		}
		s.log.Error("Failed to create experiment",
			zap.String("name", name),
			zap.String("type", string(experimentType)),
			zap.String("key", key),
			zap.Error(err))
		return nil, apperrors.New(apperrors.CodeExperimentsCreateFailed, "failed to create experiment")
	}

	return experiment, nil
}

// UpdateExperiment applies a partial update after validating the merged view
// of existing and updated fields. Nothing is persisted on a rejected update.
func (s *ExperimentService) UpdateExperiment(ctx context.Context, id uuid.UUID, params UpdateExperimentParams) (*domain.Experiment, error) {
	repos := s.store.Repos()

	existing, err := repos.Experiments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.New(apperrors.CodeExperimentsNotFound, "experiment not found")
		}
		s.log.Error("Failed to fetch experiment for update",
			zap.String("experiment_id", id.String()),
			zap.Error(err))
		return nil, apperrors.New(apperrors.CodeExperimentsUpdateFailed, "failed to update experiment")
	}

	merged := *existing
	applyParams(&merged, params)

	if err := validateUpdate(existing, &merged, params); err != nil {
		return nil, err
	}

	merged.UpdatedAt = time.Now().UTC()

	if err := repos.Experiments.Update(ctx, &merged); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, apperrors.New(apperrors.CodeExperimentsKeyAlreadyExists,
				"an experiment with this key already exists")
		}
		s.log.Error("Failed to update experiment",
			zap.String("experiment_id", id.String()),
			zap.Error(err))
		return nil, apperrors.New(apperrors.CodeExperimentsUpdateFailed, "failed to update experiment")
	}

	return &merged, nil
}

// GetExperiment fetches a single experiment by id
func (s *ExperimentService) GetExperiment(ctx context.Context, id uuid.UUID) (*domain.Experiment, error) {
	experiment, err := s.store.Repos().Experiments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.New(apperrors.CodeExperimentsNotFound, "experiment not found")
		}
		s.log.Error("Failed to fetch experiment",
			zap.String("experiment_id", id.String()),
			zap.Error(err))
		return nil, apperrors.New(apperrors.CodeExperimentsFetchFailed, "failed to fetch experiment")
	}
	return experiment, nil
}

// ListExperiments returns a page of experiments plus the total count for the
// given status filter
func (s *ExperimentService) ListExperiments(ctx context.Context, status *domain.ExperimentStatus, page, pageSize int) ([]*domain.Experiment, int64, error) {
	repos := s.store.Repos()

	experiments, err := repos.Experiments.List(ctx, repository.ExperimentFilter{
		Status:   status,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		s.log.Error("Failed to list experiments", zap.Error(err))
		return nil, 0, apperrors.New(apperrors.CodeExperimentsFetchFailed, "failed to fetch experiments")
	}

	total, err := repos.Experiments.Count(ctx, status)
	if err != nil {
		s.log.Error("Failed to count experiments", zap.Error(err))
		return nil, 0, apperrors.New(apperrors.CodeExperimentsFetchFailed, "failed to fetch experiments")
	}

	return experiments, total, nil
}

func applyParams(e *domain.Experiment, params UpdateExperimentParams) {
	if params.Name != nil {
		e.Name = *params.Name
	}
	if params.Key != nil {
		e.Key = *params.Key
	}
	if params.Type != nil {
		e.Type = *params.Type
	}
	if params.Description != nil {
		e.Description = *params.Description
	}
	if params.Hypothesis != nil {
		e.Hypothesis = *params.Hypothesis
	}
	if params.ExposureEvent != nil {
		e.ExposureEvent = *params.ExposureEvent
	}
	if params.Variants != nil {
		e.Variants = *params.Variants
	}
	if params.VariantAllocation != nil {
		e.VariantAllocation = *params.VariantAllocation
	}
	if params.BucketingSalt != nil {
		e.BucketingSalt = *params.BucketingSalt
	}
	if params.Status != nil {
		e.Status = *params.Status
	}
}

func validateUpdate(existing, merged *domain.Experiment, params UpdateExperimentParams) error {
	// variants and variant_allocation must change together so the name-set
	// and sum invariants can be checked atomically
	if (params.Variants == nil) != (params.VariantAllocation == nil) {
		return apperrors.New(apperrors.CodeExperimentsVariantMismatch,
			"variants and variant_allocation must be supplied together")
	}
	if params.Variants != nil {
		if err := validateVariantAllocation(merged.Variants, merged.VariantAllocation); err != nil {
			return err
		}
	}

	if params.Status != nil {
		if err := validateTransition(existing.Status, *params.Status, merged); err != nil {
			return err
		}
	}

	return nil
}

// validateVariantAllocation checks the name-set, sign and sum invariants.
// Both sides empty is allowed; a draft starts that way.
func validateVariantAllocation(variants []domain.Variant, allocation map[string]float64) error {
	if len(variants) == 0 && len(allocation) == 0 {
		return nil
	}

	if len(allocation) != len(variants) {
		return apperrors.New(apperrors.CodeExperimentsVariantMismatch,
			"variant_allocation must cover exactly the variant names")
	}
	for _, v := range variants {
		if _, ok := allocation[v.Name]; !ok {
			return apperrors.New(apperrors.CodeExperimentsVariantMismatch,
				"variant_allocation must cover exactly the variant names")
		}
	}

	sum := 0.0
	for _, weight := range allocation {
		if weight < 0 {
			return apperrors.New(apperrors.CodeExperimentsInvalidVariantAllocation,
				"allocation weights must be non-negative")
		}
		sum += weight
	}
	if math.Abs(sum-100) > allocationSumEpsilon {
		return apperrors.New(apperrors.CodeExperimentsInvalidVariantAllocation,
			"allocation weights must sum to 100")
	}

	return nil
}

// validateTransition gates status changes against the merged field set.
// The lifecycle only moves forward: draft -> running -> completed.
func validateTransition(current, requested domain.ExperimentStatus, merged *domain.Experiment) error {
	switch {
	case current == domain.ExperimentStatusDraft && requested == domain.ExperimentStatusRunning:
		if len(merged.Hypothesis.MetricEffects) == 0 {
			return apperrors.New(apperrors.CodeExperimentsNeedsHypothesis,
				"a hypothesis is required to run an experiment")
		}
		if merged.ExposureEvent == "" {
			return apperrors.New(apperrors.CodeExperimentsNeedsExposureEvent,
				"an exposure event is required to run an experiment")
		}
		if len(merged.Variants) == 0 {
			return apperrors.New(apperrors.CodeExperimentsNeedsVariants,
				"variants are required to run an experiment")
		}
		if len(merged.VariantAllocation) == 0 {
			return apperrors.New(apperrors.CodeExperimentsNeedsVariantAllocation,
				"a variant allocation is required to run an experiment")
		}
		if err := validateVariantAllocation(merged.Variants, merged.VariantAllocation); err != nil {
			return err
		}
		if merged.BucketingSalt == "" {
			return apperrors.New(apperrors.CodeExperimentsNeedsBucketingSalt,
				"a bucketing salt is required to run an experiment")
		}
		return nil

	case current == domain.ExperimentStatusRunning && requested == domain.ExperimentStatusCompleted:
		return nil

	default:
		return apperrors.New(apperrors.CodeExperimentsInvalidTransition,
			"invalid status transition")
	}
}

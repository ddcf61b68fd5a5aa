package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cmyui/experimentation/internal/apperrors"
	"github.com/cmyui/experimentation/internal/bucketing"
	"github.com/cmyui/experimentation/internal/domain"
	"github.com/cmyui/experimentation/internal/repository"
)

// AssignmentService buckets users into running experiments
type AssignmentService struct {
	store repository.Store
	log   *zap.Logger
}

// NewAssignmentService creates a new assignment service
func NewAssignmentService(store repository.Store, log *zap.Logger) *AssignmentService {
	return &AssignmentService{
		store: store,
		log:   log,
	}
}

// FetchAndAssign resolves the user's variant for every running experiment,
// lazily creating assignments for experiments the user hasn't been bucketed
// into yet. All assignment writes happen in one transaction: an unexpected
// error partway through rolls back every write made in this call.
func (s *AssignmentService) FetchAndAssign(ctx context.Context, userID string) ([]ExperimentAssignment, error) {
	var results []ExperimentAssignment

	err := s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		running := domain.ExperimentStatusRunning
		experiments, err := repos.Experiments.List(ctx, repository.ExperimentFilter{Status: &running})
		if err != nil {
			return fmt.Errorf("failed to list running experiments: %w", err)
		}

		for _, experiment := range experiments {
			variant, err := s.resolveVariant(ctx, repos, experiment, userID)
			if err != nil {
				return err
			}
			results = append(results, ExperimentAssignment{
				Experiment:  experiment,
				VariantName: variant,
			})
		}
		return nil
	})
	if err != nil {
		s.log.Error("Failed to fetch and assign experiments",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, apperrors.New(apperrors.CodeAssignmentsAssignFailed, "failed to assign experiments")
	}

	return results, nil
}

// resolveVariant returns the authoritative variant for (experiment, user):
// an existing assignment wins; otherwise the bucketing engine computes one
// and we try to persist it. The uniqueness constraint is the sole arbiter of
// concurrent creation, so a duplicate-key rejection means another caller won
// the race and their row is re-read and reused.
func (s *AssignmentService) resolveVariant(ctx context.Context, repos repository.Repositories, experiment *domain.Experiment, userID string) (string, error) {
	existing, err := repos.Assignments.Get(ctx, experiment.ExperimentID, userID)
	if err == nil {
		return existing.VariantName, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("failed to fetch assignment for experiment %q: %w", experiment.Key, err)
	}

	variant, err := bucketing.AssignVariant(experiment.BucketingSalt, allocationWalkOrder(experiment), userID)
	if err != nil {
		return "", fmt.Errorf("failed to bucket user into experiment %q: %w", experiment.Key, err)
	}

	assignment := &domain.Assignment{
		ExperimentID: experiment.ExperimentID,
		UserID:       userID,
		VariantName:  variant,
		CreatedAt:    time.Now().UTC(),
	}
	if err := repos.Assignments.Create(ctx, assignment); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			winner, err := repos.Assignments.Get(ctx, experiment.ExperimentID, userID)
			if err != nil {
				return "", fmt.Errorf("failed to re-read winning assignment for experiment %q: %w", experiment.Key, err)
			}
			return winner.VariantName, nil
		}
		return "", fmt.Errorf("failed to create assignment for experiment %q: %w", experiment.Key, err)
	}

	return variant, nil
}

// allocationWalkOrder fixes the cumulative walk order to the experiment's
// variant list order, so bucketing is reproducible.
func allocationWalkOrder(experiment *domain.Experiment) []bucketing.VariantWeight {
	weights := make([]bucketing.VariantWeight, 0, len(experiment.Variants))
	for _, v := range experiment.Variants {
		weights = append(weights, bucketing.VariantWeight{
			Name:   v.Name,
			Weight: experiment.VariantAllocation[v.Name],
		})
	}
	return weights
}

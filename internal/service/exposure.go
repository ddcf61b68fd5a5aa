package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cmyui/experimentation/internal/apperrors"
	"github.com/cmyui/experimentation/internal/domain"
	"github.com/cmyui/experimentation/internal/queue"
	"github.com/cmyui/experimentation/internal/repository"
)

// ExposureService records which users observed their assigned variant
type ExposureService struct {
	store     repository.Store
	publisher queue.ExposurePublisher
	analytics repository.ExposureAnalyticsRepository
	log       *zap.Logger
}

// NewExposureService creates a new exposure service. The publisher may be nil
// when no downstream analytics stream is configured.
func NewExposureService(
	store repository.Store,
	publisher queue.ExposurePublisher,
	analytics repository.ExposureAnalyticsRepository,
	log *zap.Logger,
) *ExposureService {
	return &ExposureService{
		store:     store,
		publisher: publisher,
		analytics: analytics,
		log:       log,
	}
}

// TrackExposure records that the user observed their assigned variant. The
// exposure's variant is always copied from the assignment; a user without an
// assignment cannot be exposed, and a repeat exposure for the same pair is a
// reported conflict rather than a silent dedup, since duplicate rows would
// bias downstream metric counts.
func (s *ExposureService) TrackExposure(ctx context.Context, experimentID uuid.UUID, userID string) (*domain.Exposure, error) {
	repos := s.store.Repos()

	assignment, err := repos.Assignments.Get(ctx, experimentID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// also covers experiments that don't exist
			return nil, apperrors.New(apperrors.CodeAssignmentsNotFound,
				"no assignment exists for this experiment and user")
		}
		s.log.Error("Failed to fetch assignment for exposure",
			zap.String("experiment_id", experimentID.String()),
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, apperrors.New(apperrors.CodeExposuresTrackFailed, "failed to track exposure")
	}

	exposure := &domain.Exposure{
		ExperimentID: experimentID,
		UserID:       userID,
		VariantName:  assignment.VariantName,
		CreatedAt:    time.Now().UTC(),
	}
	if err := repos.Exposures.Create(ctx, exposure); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, apperrors.New(apperrors.CodeExposuresAlreadyExists,
				"an exposure already exists for this experiment and user")
		}
		s.log.Error("Failed to create exposure",
			zap.String("experiment_id", experimentID.String()),
			zap.String("user_id", userID),
			zap.String("variant_name", assignment.VariantName),
			zap.Error(err))
		return nil, apperrors.New(apperrors.CodeExposuresTrackFailed, "failed to track exposure")
	}

	s.publishExposure(ctx, exposure)

	return exposure, nil
}

// publishExposure streams the exposure to the analytics queue. Best effort:
// the relational row is the source of truth, so a publish failure is logged
// and the exposure still counts as tracked.
func (s *ExposureService) publishExposure(ctx context.Context, exposure *domain.Exposure) {
	if s.publisher == nil {
		return
	}

	record := &domain.ExposureRecord{
		ExperimentID: exposure.ExperimentID.String(),
		UserID:       exposure.UserID,
		VariantName:  exposure.VariantName,
		Timestamp:    exposure.CreatedAt.Unix(),
	}
	if err := s.publisher.PublishExposure(ctx, record); err != nil {
		s.log.Warn("Failed to publish exposure to analytics stream",
			zap.String("experiment_id", record.ExperimentID),
			zap.String("user_id", record.UserID),
			zap.Error(err))
	}
}

// GetExposureCounts returns per-variant exposure counts from the analytics
// sink for an experiment
func (s *ExposureService) GetExposureCounts(ctx context.Context, experimentID uuid.UUID) ([]repository.VariantExposureCount, error) {
	if s.analytics == nil {
		return nil, apperrors.New(apperrors.CodeExposuresFetchFailed, "exposure analytics are not configured")
	}

	counts, err := s.analytics.GetExposureCounts(ctx, experimentID.String())
	if err != nil {
		s.log.Error("Failed to fetch exposure counts",
			zap.String("experiment_id", experimentID.String()),
			zap.Error(err))
		return nil, apperrors.New(apperrors.CodeExposuresFetchFailed, "failed to fetch exposure counts")
	}
	return counts, nil
}

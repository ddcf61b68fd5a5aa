package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/cmyui/experimentation/internal/apperrors"
	"github.com/cmyui/experimentation/internal/domain"
	"github.com/cmyui/experimentation/internal/repository"
)

func TestExposureService_TrackExposure_Success(t *testing.T) {
	store := newMockStore()
	publisher := new(MockExposurePublisher)
	service := NewExposureService(store, publisher, nil, zap.NewNop())

	experimentID := uuid.New()
	store.assignments.On("Get", mock.Anything, experimentID, "user42").
		Return(&domain.Assignment{
			ExperimentID: experimentID,
			UserID:       "user42",
			VariantName:  "treatment",
		}, nil)
	store.exposures.On("Create", mock.Anything, mock.AnythingOfType("*domain.Exposure")).Return(nil)
	publisher.On("PublishExposure", mock.Anything, mock.AnythingOfType("*domain.ExposureRecord")).Return(nil)

	exposure, err := service.TrackExposure(context.Background(), experimentID, "user42")

	assert.NoError(t, err)
	// the variant always comes from the assignment, never the caller
	assert.Equal(t, "treatment", exposure.VariantName)
	assert.Equal(t, experimentID, exposure.ExperimentID)
	assert.Equal(t, "user42", exposure.UserID)
	store.exposures.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestExposureService_TrackExposure_NoAssignment(t *testing.T) {
	store := newMockStore()
	service := NewExposureService(store, nil, nil, zap.NewNop())

	experimentID := uuid.New()
	store.assignments.On("Get", mock.Anything, experimentID, "user42").
		Return(nil, repository.ErrNotFound)

	_, err := service.TrackExposure(context.Background(), experimentID, "user42")

	assert.Equal(t, apperrors.CodeAssignmentsNotFound, apperrors.CodeOf(err))
	store.exposures.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestExposureService_TrackExposure_Duplicate(t *testing.T) {
	store := newMockStore()
	service := NewExposureService(store, nil, nil, zap.NewNop())

	experimentID := uuid.New()
	store.assignments.On("Get", mock.Anything, experimentID, "user42").
		Return(&domain.Assignment{
			ExperimentID: experimentID,
			UserID:       "user42",
			VariantName:  "control",
		}, nil)
	store.exposures.On("Create", mock.Anything, mock.Anything).Return(repository.ErrDuplicateKey)

	_, err := service.TrackExposure(context.Background(), experimentID, "user42")

	assert.Equal(t, apperrors.CodeExposuresAlreadyExists, apperrors.CodeOf(err))
}

func TestExposureService_TrackExposure_StorageError(t *testing.T) {
	store := newMockStore()
	service := NewExposureService(store, nil, nil, zap.NewNop())

	experimentID := uuid.New()
	store.assignments.On("Get", mock.Anything, experimentID, "user42").
		Return(&domain.Assignment{
			ExperimentID: experimentID,
			UserID:       "user42",
			VariantName:  "control",
		}, nil)
	store.exposures.On("Create", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	_, err := service.TrackExposure(context.Background(), experimentID, "user42")

	assert.Equal(t, apperrors.CodeExposuresTrackFailed, apperrors.CodeOf(err))
}

func TestExposureService_TrackExposure_PublishFailureTolerated(t *testing.T) {
	store := newMockStore()
	publisher := new(MockExposurePublisher)
	service := NewExposureService(store, publisher, nil, zap.NewNop())

	experimentID := uuid.New()
	store.assignments.On("Get", mock.Anything, experimentID, "user42").
		Return(&domain.Assignment{
			ExperimentID: experimentID,
			UserID:       "user42",
			VariantName:  "treatment",
		}, nil)
	store.exposures.On("Create", mock.Anything, mock.Anything).Return(nil)
	publisher.On("PublishExposure", mock.Anything, mock.Anything).Return(errors.New("queue unavailable"))

	// the relational row is the source of truth; publish failure is logged only
	exposure, err := service.TrackExposure(context.Background(), experimentID, "user42")

	assert.NoError(t, err)
	assert.Equal(t, "treatment", exposure.VariantName)
}

func TestExposureService_TrackExposure_PublishedRecordMatchesExposure(t *testing.T) {
	store := newMockStore()
	publisher := new(MockExposurePublisher)
	service := NewExposureService(store, publisher, nil, zap.NewNop())

	experimentID := uuid.New()
	store.assignments.On("Get", mock.Anything, experimentID, "user42").
		Return(&domain.Assignment{
			ExperimentID: experimentID,
			UserID:       "user42",
			VariantName:  "treatment",
		}, nil)
	store.exposures.On("Create", mock.Anything, mock.Anything).Return(nil)
	publisher.On("PublishExposure", mock.Anything, mock.Anything).Return(nil)

	_, err := service.TrackExposure(context.Background(), experimentID, "user42")
	assert.NoError(t, err)

	record := publisher.Calls[0].Arguments.Get(1).(*domain.ExposureRecord)
	assert.Equal(t, experimentID.String(), record.ExperimentID)
	assert.Equal(t, "user42", record.UserID)
	assert.Equal(t, "treatment", record.VariantName)
	assert.NotZero(t, record.Timestamp)
}

func TestExposureService_GetExposureCounts_Success(t *testing.T) {
	store := newMockStore()
	analytics := new(MockAnalyticsRepository)
	service := NewExposureService(store, nil, analytics, zap.NewNop())

	experimentID := uuid.New()
	counts := []repository.VariantExposureCount{
		{VariantName: "control", TotalCount: 120, UniqueCount: 100},
		{VariantName: "treatment", TotalCount: 130, UniqueCount: 105},
	}
	analytics.On("GetExposureCounts", mock.Anything, experimentID.String()).Return(counts, nil)

	result, err := service.GetExposureCounts(context.Background(), experimentID)

	assert.NoError(t, err)
	assert.Equal(t, counts, result)
}

func TestExposureService_GetExposureCounts_SinkError(t *testing.T) {
	store := newMockStore()
	analytics := new(MockAnalyticsRepository)
	service := NewExposureService(store, nil, analytics, zap.NewNop())

	experimentID := uuid.New()
	analytics.On("GetExposureCounts", mock.Anything, experimentID.String()).
		Return(nil, errors.New("connection refused"))

	_, err := service.GetExposureCounts(context.Background(), experimentID)

	assert.Equal(t, apperrors.CodeExposuresFetchFailed, apperrors.CodeOf(err))
}

func TestExposureService_GetExposureCounts_NotConfigured(t *testing.T) {
	store := newMockStore()
	service := NewExposureService(store, nil, nil, zap.NewNop())

	_, err := service.GetExposureCounts(context.Background(), uuid.New())

	assert.Equal(t, apperrors.CodeExposuresFetchFailed, apperrors.CodeOf(err))
}

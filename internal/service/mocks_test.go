package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/cmyui/experimentation/internal/domain"
	"github.com/cmyui/experimentation/internal/repository"
)

// MockExperimentRepository is a mock implementation of repository.ExperimentRepository
type MockExperimentRepository struct {
	mock.Mock
}

func (m *MockExperimentRepository) Create(ctx context.Context, experiment *domain.Experiment) error {
	args := m.Called(ctx, experiment)
	return args.Error(0)
}

func (m *MockExperimentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Experiment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Experiment), args.Error(1)
}

func (m *MockExperimentRepository) List(ctx context.Context, filter repository.ExperimentFilter) ([]*domain.Experiment, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Experiment), args.Error(1)
}

func (m *MockExperimentRepository) Count(ctx context.Context, status *domain.ExperimentStatus) (int64, error) {
	args := m.Called(ctx, status)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockExperimentRepository) Update(ctx context.Context, experiment *domain.Experiment) error {
	args := m.Called(ctx, experiment)
	return args.Error(0)
}

// MockAssignmentRepository is a mock implementation of repository.AssignmentRepository
type MockAssignmentRepository struct {
	mock.Mock
}

func (m *MockAssignmentRepository) Get(ctx context.Context, experimentID uuid.UUID, userID string) (*domain.Assignment, error) {
	args := m.Called(ctx, experimentID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Assignment), args.Error(1)
}

func (m *MockAssignmentRepository) Create(ctx context.Context, assignment *domain.Assignment) error {
	args := m.Called(ctx, assignment)
	return args.Error(0)
}

// MockExposureRepository is a mock implementation of repository.ExposureRepository
type MockExposureRepository struct {
	mock.Mock
}

func (m *MockExposureRepository) Get(ctx context.Context, experimentID uuid.UUID, userID string) (*domain.Exposure, error) {
	args := m.Called(ctx, experimentID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Exposure), args.Error(1)
}

func (m *MockExposureRepository) Create(ctx context.Context, exposure *domain.Exposure) error {
	args := m.Called(ctx, exposure)
	return args.Error(0)
}

// MockExposurePublisher is a mock implementation of queue.ExposurePublisher
type MockExposurePublisher struct {
	mock.Mock
}

func (m *MockExposurePublisher) PublishExposure(ctx context.Context, record *domain.ExposureRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// MockAnalyticsRepository is a mock implementation of repository.ExposureAnalyticsRepository
type MockAnalyticsRepository struct {
	mock.Mock
}

func (m *MockAnalyticsRepository) InsertBatch(ctx context.Context, records []*domain.ExposureRecord) (int, error) {
	args := m.Called(ctx, records)
	return args.Int(0), args.Error(1)
}

func (m *MockAnalyticsRepository) GetExposureCounts(ctx context.Context, experimentID string) ([]repository.VariantExposureCount, error) {
	args := m.Called(ctx, experimentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.VariantExposureCount), args.Error(1)
}

func (m *MockAnalyticsRepository) InitSchema(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockAnalyticsRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockAnalyticsRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}

// mockStore satisfies repository.Store with mock repositories. RunInTx simply
// invokes fn against the same repositories, so tests observe the calls a real
// transaction would make.
type mockStore struct {
	experiments *MockExperimentRepository
	assignments *MockAssignmentRepository
	exposures   *MockExposureRepository
}

func newMockStore() *mockStore {
	return &mockStore{
		experiments: new(MockExperimentRepository),
		assignments: new(MockAssignmentRepository),
		exposures:   new(MockExposureRepository),
	}
}

func (s *mockStore) Repos() repository.Repositories {
	return repository.Repositories{
		Experiments: s.experiments,
		Assignments: s.assignments,
		Exposures:   s.exposures,
	}
}

func (s *mockStore) RunInTx(ctx context.Context, fn func(repos repository.Repositories) error) error {
	return fn(s.Repos())
}

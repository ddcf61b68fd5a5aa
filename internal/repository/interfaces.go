package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/cmyui/experimentation/internal/domain"
)

// Sentinel errors the storage implementations translate driver errors into.
// Services interpret these; everything else is treated as an infrastructure
// failure.
var (
	// ErrNotFound indicates the requested record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey indicates a uniqueness constraint rejected a write
	ErrDuplicateKey = errors.New("duplicate key")
)

// ExperimentFilter narrows and pages an experiment listing
type ExperimentFilter struct {
	Status   *domain.ExperimentStatus
	Page     int
	PageSize int
}

// ExperimentRepository defines storage operations for experiments
type ExperimentRepository interface {
	// Create persists a new experiment; returns ErrDuplicateKey if the
	// lookup key is already taken
	Create(ctx context.Context, experiment *domain.Experiment) error

	// GetByID fetches an experiment by id; returns ErrNotFound if missing
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Experiment, error)

	// List returns experiments matching the filter, newest first
	List(ctx context.Context, filter ExperimentFilter) ([]*domain.Experiment, error)

	// Count returns the number of experiments, optionally filtered by status
	Count(ctx context.Context, status *domain.ExperimentStatus) (int64, error)

	// Update overwrites all mutable fields of an existing experiment
	Update(ctx context.Context, experiment *domain.Experiment) error
}

// AssignmentRepository defines storage operations for assignments
type AssignmentRepository interface {
	// Get fetches the assignment for (experiment, user); ErrNotFound if missing
	Get(ctx context.Context, experimentID uuid.UUID, userID string) (*domain.Assignment, error)

	// Create persists a new assignment; ErrDuplicateKey if the pair already
	// has one (a concurrent caller won the race)
	Create(ctx context.Context, assignment *domain.Assignment) error
}

// ExposureRepository defines storage operations for exposures
type ExposureRepository interface {
	// Get fetches the exposure for (experiment, user); ErrNotFound if missing
	Get(ctx context.Context, experimentID uuid.UUID, userID string) (*domain.Exposure, error)

	// Create persists a new exposure; ErrDuplicateKey if the pair was
	// already exposed
	Create(ctx context.Context, exposure *domain.Exposure) error
}

// Repositories bundles the per-aggregate repositories bound to one querier,
// so a transaction can span all of them.
type Repositories struct {
	Experiments ExperimentRepository
	Assignments AssignmentRepository
	Exposures   ExposureRepository
}

// Store provides repository access plus an explicit transactional scope.
type Store interface {
	// Repos returns repositories bound to the store's base connection
	Repos() Repositories

	// RunInTx runs fn with repositories bound to a single transaction.
	// Any error returned by fn rolls back every write made within it.
	RunInTx(ctx context.Context, fn func(repos Repositories) error) error
}

// VariantExposureCount aggregates recorded exposures for one variant
type VariantExposureCount struct {
	VariantName string
	TotalCount  uint64
	UniqueCount uint64
}

// ExposureAnalyticsRepository defines the analytics sink for exposure events
type ExposureAnalyticsRepository interface {
	// InsertBatch inserts a batch of exposure records into the sink
	InsertBatch(ctx context.Context, records []*domain.ExposureRecord) (int, error)

	// GetExposureCounts aggregates exposures per variant for an experiment
	GetExposureCounts(ctx context.Context, experimentID string) ([]VariantExposureCount, error)

	// InitSchema initializes the sink schema (creates tables if they don't exist)
	InitSchema(ctx context.Context) error

	// Ping checks if the sink connection is alive
	Ping(ctx context.Context) error

	// Close closes the repository and releases resources
	Close() error
}

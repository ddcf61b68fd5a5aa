package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cmyui/experimentation/internal/domain"
	"github.com/cmyui/experimentation/internal/repository"
)

type exposureRepository struct {
	q querier
}

func (r *exposureRepository) Get(ctx context.Context, experimentID uuid.UUID, userID string) (*domain.Exposure, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT experiment_id, user_id, variant_name, created_at
		  FROM exposures
		 WHERE experiment_id = ? AND user_id = ?`,
		experimentID.String(), userID,
	)

	e, err := scanExposure(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *exposureRepository) Create(ctx context.Context, e *domain.Exposure) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO exposures (experiment_id, user_id, variant_name, created_at)
		VALUES (?, ?, ?, ?)`,
		e.ExperimentID.String(), e.UserID, e.VariantName, formatTime(e.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateKey
		}
		return err
	}
	return nil
}

func scanExposure(row rowScanner) (*domain.Exposure, error) {
	var (
		idStr     string
		createdAt string
	)

	e := &domain.Exposure{}
	if err := row.Scan(&idStr, &e.UserID, &e.VariantName, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if e.ExperimentID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("failed to parse experiment id: %w", err)
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return e, nil
}

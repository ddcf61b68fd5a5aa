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

type assignmentRepository struct {
	q querier
}

func (r *assignmentRepository) Get(ctx context.Context, experimentID uuid.UUID, userID string) (*domain.Assignment, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT experiment_id, user_id, variant_name, created_at
		  FROM assignments
		 WHERE experiment_id = ? AND user_id = ?`,
		experimentID.String(), userID,
	)

	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *assignmentRepository) Create(ctx context.Context, a *domain.Assignment) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO assignments (experiment_id, user_id, variant_name, created_at)
		VALUES (?, ?, ?, ?)`,
		a.ExperimentID.String(), a.UserID, a.VariantName, formatTime(a.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateKey
		}
		return err
	}
	return nil
}

func scanAssignment(row rowScanner) (*domain.Assignment, error) {
	var (
		idStr     string
		createdAt string
	)

	a := &domain.Assignment{}
	if err := row.Scan(&idStr, &a.UserID, &a.VariantName, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if a.ExperimentID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("failed to parse experiment id: %w", err)
	}
	if a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return a, nil
}

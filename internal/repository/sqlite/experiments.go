package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cmyui/experimentation/internal/domain"
	"github.com/cmyui/experimentation/internal/repository"
)

const experimentColumns = `experiment_id, name, key, type, description, hypothesis,
	exposure_event, variants, variant_allocation, bucketing_salt, status,
	created_at, updated_at`

type experimentRepository struct {
	q querier
}

type experimentDocs struct {
	hypothesis string
	variants   string
	allocation string
}

// encodeDocs serializes the structured experiment fields to their stored
// JSON representation.
func encodeDocs(e *domain.Experiment) (experimentDocs, error) {
	hypothesis, err := json.Marshal(e.Hypothesis)
	if err != nil {
		return experimentDocs{}, fmt.Errorf("failed to marshal hypothesis: %w", err)
	}

	variants := e.Variants
	if variants == nil {
		variants = []domain.Variant{}
	}
	variantsJSON, err := json.Marshal(variants)
	if err != nil {
		return experimentDocs{}, fmt.Errorf("failed to marshal variants: %w", err)
	}

	allocation := e.VariantAllocation
	if allocation == nil {
		allocation = map[string]float64{}
	}
	allocationJSON, err := json.Marshal(allocation)
	if err != nil {
		return experimentDocs{}, fmt.Errorf("failed to marshal variant allocation: %w", err)
	}

	return experimentDocs{
		hypothesis: string(hypothesis),
		variants:   string(variantsJSON),
		allocation: string(allocationJSON),
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExperiment(row rowScanner) (*domain.Experiment, error) {
	var (
		idStr         string
		description   sql.NullString
		exposureEvent sql.NullString
		hypothesis    string
		variants      string
		allocation    string
		createdAt     string
		updatedAt     string
	)

	e := &domain.Experiment{}
	err := row.Scan(
		&idStr,
		&e.Name,
		&e.Key,
		&e.Type,
		&description,
		&hypothesis,
		&exposureEvent,
		&variants,
		&allocation,
		&e.BucketingSalt,
		&e.Status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.ExperimentID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse experiment id: %w", err)
	}
	e.Description = description.String
	e.ExposureEvent = exposureEvent.String

	if err := json.Unmarshal([]byte(hypothesis), &e.Hypothesis); err != nil {
		return nil, fmt.Errorf("failed to unmarshal hypothesis: %w", err)
	}
	if err := json.Unmarshal([]byte(variants), &e.Variants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variants: %w", err)
	}
	if err := json.Unmarshal([]byte(allocation), &e.VariantAllocation); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variant allocation: %w", err)
	}

	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return e, nil
}

func (r *experimentRepository) Create(ctx context.Context, e *domain.Experiment) error {
	docs, err := encodeDocs(e)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO experiments (`+experimentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ExperimentID.String(),
		e.Name,
		e.Key,
		string(e.Type),
		nullString(e.Description),
		docs.hypothesis,
		nullString(e.ExposureEvent),
		docs.variants,
		docs.allocation,
		e.BucketingSalt,
		string(e.Status),
		formatTime(e.CreatedAt),
		formatTime(e.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateKey
		}
		return err
	}
	return nil
}

func (r *experimentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Experiment, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+experimentColumns+`
		  FROM experiments
		 WHERE experiment_id = ?`,
		id.String(),
	)

	e, err := scanExperiment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *experimentRepository) List(ctx context.Context, filter repository.ExperimentFilter) ([]*domain.Experiment, error) {
	query := `
		SELECT ` + experimentColumns + `
		  FROM experiments`
	var args []any

	if filter.Status != nil {
		query += `
		 WHERE status = ?`
		args = append(args, string(*filter.Status))
	}

	query += `
		 ORDER BY rowid DESC`

	if filter.Page > 0 && filter.PageSize > 0 {
		query += `
		 LIMIT ? OFFSET ?`
		args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var experiments []*domain.Experiment
	for rows.Next() {
		e, err := scanExperiment(rows)
		if err != nil {
			return nil, err
		}
		experiments = append(experiments, e)
	}
	return experiments, rows.Err()
}

func (r *experimentRepository) Count(ctx context.Context, status *domain.ExperimentStatus) (int64, error) {
	query := `SELECT COUNT(*) FROM experiments`
	var args []any

	if status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*status))
	}

	var count int64
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *experimentRepository) Update(ctx context.Context, e *domain.Experiment) error {
	docs, err := encodeDocs(e)
	if err != nil {
		return err
	}

	result, err := r.q.ExecContext(ctx, `
		UPDATE experiments
		   SET name = ?,
		       key = ?,
		       type = ?,
		       description = ?,
		       hypothesis = ?,
		       exposure_event = ?,
		       variants = ?,
		       variant_allocation = ?,
		       bucketing_salt = ?,
		       status = ?,
		       updated_at = ?
		 WHERE experiment_id = ?`,
		e.Name,
		e.Key,
		string(e.Type),
		nullString(e.Description),
		docs.hypothesis,
		nullString(e.ExposureEvent),
		docs.variants,
		docs.allocation,
		e.BucketingSalt,
		string(e.Status),
		formatTime(e.UpdatedAt),
		e.ExperimentID.String(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateKey
		}
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

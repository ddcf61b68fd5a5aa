package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/cmyui/experimentation/internal/domain"
	"github.com/cmyui/experimentation/internal/repository"
)

// Repository implements ExposureAnalyticsRepository for ClickHouse
type Repository struct {
	client *Client
	log    *zap.Logger
}

// NewRepository creates a new ClickHouse repository
func NewRepository(client *Client, log *zap.Logger) *Repository {
	return &Repository{
		client: client,
		log:    log,
	}
}

// InitSchema initializes the ClickHouse schema with ReplacingMergeTree engine.
// The engine deduplicates on (experiment_id, user_id) at merge time, so
// redelivered exposure events from the queue don't inflate counts.
func (r *Repository) InitSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS exposure_events (
		experiment_id String,
		user_id String,
		variant_name LowCardinality(String),
		timestamp Int64,
		processed_at DateTime64(3) DEFAULT now64(3),
		version UInt64
	) ENGINE = ReplacingMergeTree(version)
	PRIMARY KEY (experiment_id, user_id)
	ORDER BY (experiment_id, user_id)
	PARTITION BY toYYYYMM(toDateTime(timestamp))
	SETTINGS index_granularity = 8192
	`

	if err := r.client.Conn().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create exposure_events table: %w", err)
	}

	r.log.Info("ClickHouse schema initialized successfully")
	return nil
}

// InsertBatch inserts a batch of exposure records into ClickHouse
func (r *Repository) InsertBatch(ctx context.Context, records []*domain.ExposureRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	batch, err := r.client.Conn().PrepareBatch(ctx, "INSERT INTO exposure_events")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare batch: %w", err)
	}

	insertedCount := 0
	for _, record := range records {
		if record.Version == 0 {
			record.Version = uint64(time.Now().UnixNano())
		}
		if record.ProcessedAt.IsZero() {
			record.ProcessedAt = time.Now()
		}

		err := batch.Append(
			record.ExperimentID,
			record.UserID,
			record.VariantName,
			record.Timestamp,
			record.ProcessedAt,
			record.Version,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to append exposure record to batch: %w", err)
		}
		insertedCount++
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("failed to send batch: %w", err)
	}

	return insertedCount, nil
}

// GetExposureCounts aggregates recorded exposures per variant for an experiment
func (r *Repository) GetExposureCounts(ctx context.Context, experimentID string) ([]repository.VariantExposureCount, error) {
	query := `
		SELECT
			variant_name,
			count() AS total_count,
			uniqExact(user_id) AS unique_count
		FROM exposure_events FINAL
		WHERE experiment_id = ?
		GROUP BY variant_name
		ORDER BY variant_name ASC
	`

	rows, err := r.client.Conn().Query(ctx, query, experimentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query exposure counts: %w", err)
	}
	defer func(rows driver.Rows) {
		if err := rows.Close(); err != nil {
			r.log.Error("Failed to close exposure count rows", zap.Error(err))
		}
	}(rows)

	var counts []repository.VariantExposureCount
	for rows.Next() {
		var count repository.VariantExposureCount
		if err := rows.Scan(&count.VariantName, &count.TotalCount, &count.UniqueCount); err != nil {
			return nil, fmt.Errorf("failed to scan exposure count row: %w", err)
		}
		counts = append(counts, count)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exposure count rows: %w", err)
	}

	return counts, nil
}

// Ping checks if the ClickHouse connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Conn().Ping(ctx)
}

// Close closes the ClickHouse connection
func (r *Repository) Close() error {
	return r.client.Close()
}

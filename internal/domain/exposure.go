package domain

import (
	"time"

	"github.com/google/uuid"
)

// Exposure records that a user actually observed their assigned variant.
// The variant name is always copied from the corresponding Assignment.
// Unique per (experiment, user).
type Exposure struct {
	ExperimentID uuid.UUID `json:"experiment_id"`
	UserID       string    `json:"user_id"`
	VariantName  string    `json:"variant_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// ExposureRecord represents an exposure event stored in ClickHouse
type ExposureRecord struct {
	ExperimentID string    `ch:"experiment_id" json:"experiment_id"`
	UserID       string    `ch:"user_id" json:"user_id"`
	VariantName  string    `ch:"variant_name" json:"variant_name"`
	Timestamp    int64     `ch:"timestamp" json:"timestamp"`
	ProcessedAt  time.Time `ch:"processed_at" json:"-"`
	Version      uint64    `ch:"version" json:"-"`
}

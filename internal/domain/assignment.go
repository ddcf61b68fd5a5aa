package domain

import (
	"time"

	"github.com/google/uuid"
)

// Assignment records which variant a user was bucketed into for an experiment.
// Immutable once created; unique per (experiment, user).
type Assignment struct {
	ExperimentID uuid.UUID `json:"experiment_id"`
	UserID       string    `json:"user_id"`
	VariantName  string    `json:"variant_name"`
	CreatedAt    time.Time `json:"created_at"`
}

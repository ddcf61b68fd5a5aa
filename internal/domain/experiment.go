package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExperimentType classifies what an experiment is trying to establish
type ExperimentType string

const (
	ExperimentTypeHypothesisTesting ExperimentType = "hypothesis_testing"
	ExperimentTypeDoNoHarm          ExperimentType = "do_no_harm"
)

// ExperimentStatus is the lifecycle state of an experiment
type ExperimentStatus string

const (
	ExperimentStatusDraft     ExperimentStatus = "draft"
	ExperimentStatusRunning   ExperimentStatus = "running"
	ExperimentStatusCompleted ExperimentStatus = "completed"
)

// Direction is the expected direction of a metric effect
type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
)

// MetricType identifies how a metric is computed from events
type MetricType string

const (
	MetricTypeUniques         MetricType = "uniques"
	MetricTypeEventTotals     MetricType = "event_totals"
	MetricTypePropertySum     MetricType = "property_sum"
	MetricTypePropertyAverage MetricType = "property_average"
)

// PropertyFilter narrows a metric to events matching a property condition
type PropertyFilter struct {
	Property string `json:"property"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// Metric describes an event-segmentation metric
type Metric struct {
	Name            string           `json:"name"`
	Type            MetricType       `json:"type"`
	Event           string           `json:"event"`
	PropertyFilters []PropertyFilter `json:"property_filters,omitempty"`

	// Property is only used for property_sum and property_average metrics
	Property string `json:"property,omitempty"`
}

// MetricEffect is an expected change in a metric, with a minimum goal in percent
type MetricEffect struct {
	Metric      Metric    `json:"metric"`
	Direction   Direction `json:"direction"`
	MinimumGoal float64   `json:"minimum_goal"`
}

// Hypothesis is the ordered set of metric effects an experiment aims to produce
type Hypothesis struct {
	MetricEffects []MetricEffect `json:"metric_effects"`
}

// Variant is a single arm of an experiment
type Variant struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Payload     any    `json:"payload,omitempty"`
}

// Experiment represents a controlled experiment and its bucketing configuration.
// VariantAllocation maps variant names to percentages of traffic (0-100) and must
// cover exactly the names in Variants, summing to 100, before the experiment may run.
type Experiment struct {
	ExperimentID      uuid.UUID          `json:"experiment_id"`
	Name              string             `json:"name"`
	Key               string             `json:"key"`
	Type              ExperimentType     `json:"type"`
	Description       string             `json:"description,omitempty"`
	Hypothesis        Hypothesis         `json:"hypothesis"`
	ExposureEvent     string             `json:"exposure_event,omitempty"`
	Variants          []Variant          `json:"variants"`
	VariantAllocation map[string]float64 `json:"variant_allocation"`
	BucketingSalt     string             `json:"bucketing_salt"`
	Status            ExperimentStatus   `json:"status"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

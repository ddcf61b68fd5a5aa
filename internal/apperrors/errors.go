// Package apperrors defines the closed set of domain errors exposed by the
// service layer. Every error carries a stable machine-readable code that the
// HTTP layer maps to a status; infrastructure detail is never leaked past it.
package apperrors

import (
	"errors"
	"fmt"
)

// Error codes, grouped by operation family.
const (
	CodeExperimentsCreateFailed = "experiments.create_failed"
	CodeExperimentsFetchFailed  = "experiments.fetch_failed"
	CodeExperimentsNotFound     = "experiments.not_found"
	CodeExperimentsUpdateFailed = "experiments.update_failed"

	CodeExperimentsNeedsHypothesis        = "experiments.needs_hypothesis"
	CodeExperimentsNeedsExposureEvent     = "experiments.needs_exposure_event"
	CodeExperimentsNeedsVariants          = "experiments.needs_variants"
	CodeExperimentsNeedsVariantAllocation = "experiments.needs_variant_allocation"
	CodeExperimentsNeedsBucketingSalt     = "experiments.needs_bucketing_salt"

	CodeExperimentsKeyAlreadyExists         = "experiments.key_already_exists"
	CodeExperimentsVariantMismatch          = "experiments.variant_mismatch"
	CodeExperimentsInvalidVariantAllocation = "experiments.invalid_variant_allocation"
	CodeExperimentsInvalidTransition        = "experiments.invalid_transition"

	CodeAssignmentsNotFound     = "assignments.not_found"
	CodeAssignmentsAssignFailed = "assignments.assign_failed"

	CodeExposuresAlreadyExists = "exposures.already_exists"
	CodeExposuresTrackFailed   = "exposures.track_failed"
	CodeExposuresFetchFailed   = "exposures.fetch_failed"
)

// Error is a domain error with a stable code and a human-readable message
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors by code, so callers can compare against sentinel values
// without caring about wrapped causes.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New creates a domain error with the given code and message
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a domain error that wraps an underlying cause
func Wrap(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the machine-readable code of err, or "internal_error" if err
// is not a domain error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal_error"
}

// Package bucketing deterministically maps users onto experiment variants.
// It is pure: no I/O, no state, and the same inputs always produce the same
// variant across runs and platforms.
package bucketing

import (
	"crypto/md5"
	"encoding/binary"
	"errors"
	"math"
)

// ErrInvalidAllocation is returned when the allocation walk exhausts all
// variants without covering the hashed value. The lifecycle validation is
// responsible for rejecting allocations that don't sum to 100 before they
// reach here, so hitting this indicates a data-integrity bug.
var ErrInvalidAllocation = errors.New("variant allocation does not sum to 100")

// allocationEpsilon absorbs float drift when the cumulative weights land a
// hair under 1.0 for an allocation that sums to 100.
const allocationEpsilon = 1e-9

// VariantWeight pairs a variant name with its percentage of traffic (0-100).
// The slice order is the walk order, so the same ordered allocation always
// buckets a user identically.
type VariantWeight struct {
	Name   string
	Weight float64
}

// normalizeValue hashes an identifier onto a uniformly distributed value in
// [0, 1). The first 8 digest bytes are enough for a stable float64.
func normalizeValue(value string) float64 {
	digest := md5.Sum([]byte(value))
	return float64(binary.BigEndian.Uint64(digest[:8])) / (1 << 64)
}

// AssignVariant buckets a user into one of the weighted variants. The salt is
// mixed into the hash input so assignment is experiment-specific.
func AssignVariant(salt string, allocation []VariantWeight, userID string) (string, error) {
	normalized := normalizeValue(salt + ":" + userID)

	cumulative := 0.0
	for _, vw := range allocation {
		cumulative += vw.Weight / 100
		if normalized < cumulative {
			return vw.Name, nil
		}
	}

	// A valid allocation can still leave cumulative fractionally below 1.
	if len(allocation) > 0 && math.Abs(cumulative-1) <= allocationEpsilon {
		return allocation[len(allocation)-1].Name, nil
	}

	return "", ErrInvalidAllocation
}

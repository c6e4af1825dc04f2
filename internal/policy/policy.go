package policy

import (
	"fmt"
)

const gib = 1024 * 1024 * 1024

const (
	FreeMaxSize    int64 = 1 * gib
	PremiumMaxSize int64 = 5 * gib
)

// LimitFor returns the byte ceiling for a download given the user tier.
func LimitFor(premium bool) int64 {
	if premium {
		return PremiumMaxSize
	}
	return FreeMaxSize
}

//nolint:govet // disable field alignment for better reading
type Verdict struct {
	Accepted bool
	// Measured and allowed sizes in GiB, for user-facing messaging.
	ActualGiB float64
	LimitGiB  float64
}

// Reason is the record-facing rejection text, e.g.
// "File too large (2.0GB > 1GB limit)".
func (v Verdict) Reason() string {
	return fmt.Sprintf("File too large (%.1fGB > %.0fGB limit)", v.ActualGiB, v.LimitGiB)
}

// Evaluate classifies a completed file against a byte ceiling. It is only
// called after extraction, when a concrete byte size is known.
func Evaluate(actual, limit int64) Verdict {
	return Verdict{
		Accepted:  actual <= limit,
		ActualGiB: float64(actual) / gib,
		LimitGiB:  float64(limit) / gib,
	}
}

// Package outcome separates values produced on the happy path from values
// that were substituted after a recoverable data problem.
package outcome

// Reason names the recovery that produced a value.
type Reason string

const (
	// CorruptState: a persisted blob was missing fields, unreadable or not
	// valid JSON, and documented defaults were used instead.
	CorruptState Reason = "corrupt_state"
	// MissingReference: a lookup found nothing to act on (e.g. a reversal
	// whose completion entry no longer exists).
	MissingReference Reason = "missing_reference"
	// InvalidRankTable: no rank interval matched an XP value.
	InvalidRankTable Reason = "invalid_rank_table"
	// Expired: a restored countdown ran out while the app was closed.
	Expired Reason = "expired"
)

// Result carries a value and, when it was recovered, why.
type Result[T any] struct {
	Value  T
	Reason Reason
	Cause  error
}

func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

func Recovered[T any](v T, reason Reason, cause error) Result[T] {
	return Result[T]{Value: v, Reason: reason, Cause: cause}
}

func (r Result[T]) IsRecovered() bool {
	return r.Reason != ""
}

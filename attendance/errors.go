/*
errors.go - Centralized error types for the attendance engine

PURPOSE:
  All error kinds in one place for consistency and discoverability.
  Every gateway/adapter boundary returns explicit errors; callers classify
  them with errors.Is/errors.As instead of string matching.

ERROR CATEGORIES:
  1. Validation errors    - Rejected before any store access
  2. Transaction failures - Tier 1 only; store guaranteed unchanged
  3. Partial-apply risk   - Tiers 2/3 only; the two-call apply broke mid-way
  4. Network failures     - Gateway unreachable; nothing was attempted

RECOVERY SEMANTICS:
  The ledger's dirty state is the durable record of what still needs saving.
  No error ever clears it. After a partial-apply failure the caller must
  re-fetch baseline before permitting a new save.

SEE ALSO:
  - gateway/gateway.go: Maps these to the batch response
  - api/handlers.go: Maps these to HTTP status codes
*/
package attendance

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the base of every pre-store rejection.
	ErrValidation = errors.New("validation failed")

	// ErrTransactionFailed means a tier 1 transaction was rolled back.
	// The store is guaranteed unchanged.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrPartialApply means a tier 2/3 apply broke between its deletion and
	// upsert steps. The store may reflect only part of the batch.
	ErrPartialApply = errors.New("batch may be partially applied")

	// ErrNetwork means the backing store was unreachable. Nothing was applied.
	ErrNetwork = errors.New("backing store unreachable")

	// ErrSaveInFlight is returned for a manual save while another save is
	// still awaiting its response.
	ErrSaveInFlight = errors.New("a save is already in flight")

	// ErrRowNotFound is returned when a referenced attendance row does not exist.
	ErrRowNotFound = errors.New("attendance row not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports which field of a batch request was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// PartialApplyError records how far a tier 2/3 apply got before failing.
// DeletionsApplied tells the caller whether the store may already reflect
// the deletion step.
type PartialApplyError struct {
	Tier             string
	DeletionsApplied bool
	Cause            error
}

func (e *PartialApplyError) Error() string {
	step := "before deletions"
	if e.DeletionsApplied {
		step = "after deletions, before upserts completed"
	}
	return fmt.Sprintf("apply via %s failed %s: %v", e.Tier, step, e.Cause)
}

func (e *PartialApplyError) Unwrap() error {
	if e.DeletionsApplied {
		return ErrPartialApply
	}
	return ErrNetwork
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation reports whether the error is client-correctable input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsRetryable reports whether an identical retry may succeed without any
// re-hydration. Partial applies are deliberately NOT retryable: baseline
// must be re-fetched first.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrTransactionFailed)
}

// NeedsRehydrate reports whether the store may no longer match the ledger's
// baseline and must be re-read before the next save.
func NeedsRehydrate(err error) bool {
	return errors.Is(err, ErrPartialApply)
}

/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is; structured errors carry the details
  needed to name the specific invariant violated.

ERROR CATEGORIES:
  1. Validation errors - malformed/unbalanced input, caller's fault
  2. Not-found errors  - referenced entity absent
  3. State errors      - operation not permitted in current lifecycle state
  4. Concurrency/store - lost a race, or the store itself failed

PROPAGATION POLICY:
  All validation happens before any write. Once a transaction begins
  writing, failures roll back completely: no partial entry, no partial
  balance update.

SEE ALSO:
  - engine.go: Primary producer of state errors
  - registry.go, calendar.go: Producers of validation/not-found errors
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all malformed-input failures.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateNumber is returned when an account number already exists.
	ErrDuplicateNumber = errors.New("account number already exists")

	// ErrInvalidParent is returned when a parent account is missing,
	// inactive, or would create a cycle in the chart of accounts.
	ErrInvalidParent = errors.New("invalid parent account")

	// ErrTypeBalanceMismatch is returned when an account's normal balance
	// side contradicts its type.
	ErrTypeBalanceMismatch = errors.New("normal balance contradicts account type")

	// ErrAccountNotFound is returned when a referenced account doesn't exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountInactive is returned when an operation references a
	// deactivated account.
	ErrAccountInactive = errors.New("account is inactive")

	// ErrNoPeriodForDate is returned when no fiscal period covers a date.
	ErrNoPeriodForDate = errors.New("no fiscal period for date")

	// ErrPeriodNotFound is returned when a referenced period doesn't exist.
	ErrPeriodNotFound = errors.New("fiscal period not found")

	// ErrPeriodAlreadyClosed is returned when closing a closed period.
	ErrPeriodAlreadyClosed = errors.New("fiscal period is already closed")

	// ErrPeriodNotClosed is returned when reopening a period that isn't closed.
	ErrPeriodNotClosed = errors.New("fiscal period is not closed")

	// ErrEntryNotFound is returned when a referenced entry doesn't exist.
	ErrEntryNotFound = errors.New("journal entry not found")

	// ErrNotDraft is returned when posting or editing a non-draft entry.
	// This is also what the loser of a concurrent double-post observes
	// after serialization.
	ErrNotDraft = errors.New("journal entry is not a draft")

	// ErrNotPosted is returned when reversing an entry that isn't posted.
	ErrNotPosted = errors.New("journal entry is not posted")

	// ErrAlreadyReversed is returned when an entry already has a reversal.
	ErrAlreadyReversed = errors.New("journal entry is already reversed")

	// ErrSubsidiaryNotFound is returned when a referenced subsidiary doesn't exist.
	ErrSubsidiaryNotFound = errors.New("subsidiary not found")

	// ErrFundNotFound is returned when a referenced fund doesn't exist.
	ErrFundNotFound = errors.New("fund not found")

	// ErrConflict is returned when a transition lost a race and may be
	// retried once after re-reading state.
	ErrConflict = errors.New("concurrent modification detected")

	// ErrStore wraps persistence failures. Never silently dropped.
	ErrStore = errors.New("ledger store failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// UnbalancedError reports an entry whose debits do not equal credits.
type UnbalancedError struct {
	Debits  decimal.Decimal
	Credits decimal.Decimal
}

func (e *UnbalancedError) Error() string {
	return fmt.Sprintf("entry is not balanced: debits %s != credits %s",
		FormatAmount(e.Debits), FormatAmount(e.Credits))
}

func (e *UnbalancedError) Unwrap() error { return ErrValidation }

// PeriodClosedError reports a posting attempt against a period that does
// not accept postings at the moment of posting.
type PeriodClosedError struct {
	Code   string
	Status PeriodStatus
}

func (e *PeriodClosedError) Error() string {
	return fmt.Sprintf("fiscal period %s is %s and does not accept postings", e.Code, e.Status)
}

// LineError reports a line violating the exactly-one-side invariant or
// carrying a malformed amount.
type LineError struct {
	LineNo int
	Reason string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.LineNo, e.Reason)
}

func (e *LineError) Unwrap() error { return ErrValidation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is the caller's fault and must
// not be retried automatically.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrDuplicateNumber) ||
		errors.Is(err, ErrInvalidParent) ||
		errors.Is(err, ErrTypeBalanceMismatch)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrPeriodNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrSubsidiaryNotFound) ||
		errors.Is(err, ErrFundNotFound) ||
		errors.Is(err, ErrNoPeriodForDate)
}

// IsRetryable returns true if re-reading state and retrying once may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

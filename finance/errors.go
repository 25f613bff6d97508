/*
errors.go - Centralized error types for the wallet engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every failure in the core returns control to the caller with state
  unchanged; nothing here is fatal to the process.

ERROR CLASSES:
  1. Validation           - Bad or missing user input
  2. Policy violation     - Budget exceeded, insufficient balance
  3. Confirmation needed  - Near-limit expense, needs an explicit yes
  4. External unavailable - Exchange rate could not be resolved
  5. Persistence degraded - Stored blob was unreadable or malformed

USAGE:
  Callers test with errors.Is / errors.As:

    var over *finance.BudgetExceededError
    if errors.As(err, &over) {
        fmt.Println("over by", over.Over)
    }

SEE ALSO:
  - notice.go: Maps errors to user-facing titles and messages
  - api/handlers.go: Maps error classes to HTTP status codes
*/
package finance

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// Validation errors
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrMissingDescription  = errors.New("missing description")
	ErrMissingDeadline     = errors.New("missing deadline")
	ErrPastDeadline        = errors.New("deadline must be in the future")
	ErrInvalidPhoneNumber  = errors.New("invalid phone number")
	ErrInvalidProvider     = errors.New("unknown mobile money provider")
	ErrInvalidTransferKind = errors.New("unknown transfer kind")
	ErrInvalidCurrency     = errors.New("invalid currency code")

	// Policy violations
	ErrNoBudgetSet         = errors.New("no weekly budget set")
	ErrBudgetExceeded      = errors.New("weekly budget exceeded")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNoPendingConversion = errors.New("no pending conversion")
	ErrTransferNotFound    = errors.New("transfer not found")

	// ErrConfirmationRequired is not a failure: the caller must ask the
	// user and retry with an explicit answer.
	ErrConfirmationRequired = errors.New("confirmation required")

	// ErrExpenseDeclined is returned when the user answered no at the
	// confirmation gate.
	ErrExpenseDeclined = errors.New("expense declined by user")

	// ErrRateUnavailable is returned when a currency is neither in the live
	// response nor in the fallback table.
	ErrRateUnavailable = errors.New("exchange rate unavailable")

	// ErrPersistenceDegraded marks a load that fell back to defaults.
	ErrPersistenceDegraded = errors.New("persisted data degraded")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// BudgetExceededError reports by how much an expense would overshoot the budget.
type BudgetExceededError struct {
	Budget    decimal.Decimal
	Spent     decimal.Decimal
	Requested decimal.Decimal
	Over      decimal.Decimal
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("weekly budget exceeded: budget %s, spent %s, requested %s, over by %s",
		e.Budget.StringFixed(2), e.Spent.StringFixed(2), e.Requested.StringFixed(2), e.Over.StringFixed(2))
}

func (e *BudgetExceededError) Unwrap() error {
	return ErrBudgetExceeded
}

// InsufficientBalanceError reports a withdrawal larger than the balance.
type InsufficientBalanceError struct {
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %s, requested %s",
		e.Available.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// ConfirmationRequiredError is returned when an expense would leave less
// than the warning share of the budget and no confirmation was supplied.
type ConfirmationRequiredError struct {
	Amount    decimal.Decimal
	Remaining decimal.Decimal
}

func (e *ConfirmationRequiredError) Error() string {
	return fmt.Sprintf("confirmation required: expense of %s leaves only %s for the week",
		e.Amount.StringFixed(2), e.Remaining.StringFixed(2))
}

func (e *ConfirmationRequiredError) Unwrap() error {
	return ErrConfirmationRequired
}

// RateUnavailableError names the currency that could not be resolved.
type RateUnavailableError struct {
	Currency string
}

func (e *RateUnavailableError) Error() string {
	return fmt.Sprintf("exchange rate unavailable for %s", e.Currency)
}

func (e *RateUnavailableError) Unwrap() error {
	return ErrRateUnavailable
}

// =============================================================================
// ERROR CLASSIFICATION
// =============================================================================

// ErrorClass groups errors by how the presentation layer should react.
type ErrorClass string

const (
	ClassNone                 ErrorClass = ""
	ClassValidation           ErrorClass = "validation"
	ClassPolicyViolation      ErrorClass = "policy_violation"
	ClassConfirmationRequired ErrorClass = "confirmation_required"
	ClassExternalUnavailable  ErrorClass = "external_unavailable"
	ClassPersistenceDegraded  ErrorClass = "persistence_degraded"
	ClassInternal             ErrorClass = "internal"
)

// Classify returns the class of err. Unknown errors are ClassInternal.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassNone
	case IsValidationError(err):
		return ClassValidation
	case IsPolicyViolation(err):
		return ClassPolicyViolation
	case errors.Is(err, ErrConfirmationRequired):
		return ClassConfirmationRequired
	case errors.Is(err, ErrRateUnavailable):
		return ClassExternalUnavailable
	case errors.Is(err, ErrPersistenceDegraded):
		return ClassPersistenceDegraded
	default:
		return ClassInternal
	}
}

// IsValidationError returns true if err is due to bad or missing input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrMissingDescription) ||
		errors.Is(err, ErrMissingDeadline) ||
		errors.Is(err, ErrPastDeadline) ||
		errors.Is(err, ErrInvalidPhoneNumber) ||
		errors.Is(err, ErrInvalidProvider) ||
		errors.Is(err, ErrInvalidTransferKind) ||
		errors.Is(err, ErrInvalidCurrency)
}

// IsPolicyViolation returns true if err aborted an otherwise valid request.
func IsPolicyViolation(err error) bool {
	return errors.Is(err, ErrNoBudgetSet) ||
		errors.Is(err, ErrBudgetExceeded) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrNoPendingConversion) ||
		errors.Is(err, ErrExpenseDeclined)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTransferNotFound)
}

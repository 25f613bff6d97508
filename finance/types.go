/*
Package finance provides the wallet's core state machine.

PURPOSE:
  This package owns every rule that governs how the balance, the weekly
  budget period and the savings goal evolve under user actions. Callers
  (HTTP API, CLI) parse raw input, invoke State operations, persist the
  result and render the read models.

KEY CONCEPTS IN THIS FILE (types.go):
  - TransferKind: Direction of a mobile-money transfer
  - Expense / ExpenseResult: Input and outcome of logging an expense
  - ConfirmFunc: The yes/no gate for near-limit expenses

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for every amount
  2. Explicit time: Operations take "now" as a parameter, never read the wall clock
  3. All-or-nothing: A failed operation leaves State untouched

SEE ALSO:
  - state.go: The State aggregate and its operations
  - persist.go: The persisted blob format
  - errors.go: Error taxonomy
*/
package finance

import (
	"strings"

	"github.com/shopspring/decimal"
)

// LocalCurrency is the ISO code every balance is denominated in.
const LocalCurrency = "GHS"

// CurrencySymbol prefixes formatted local amounts.
const CurrencySymbol = "₵"

// =============================================================================
// TRANSFER KIND
// =============================================================================

type TransferKind string

const (
	Deposit  TransferKind = "deposit"
	Withdraw TransferKind = "withdraw"
)

// ParseTransferKind accepts "deposit" or "withdraw" in any case.
func ParseTransferKind(s string) (TransferKind, error) {
	switch TransferKind(strings.ToLower(strings.TrimSpace(s))) {
	case Deposit:
		return Deposit, nil
	case Withdraw:
		return Withdraw, nil
	default:
		return "", ErrInvalidTransferKind
	}
}

func (k TransferKind) String() string { return string(k) }

// =============================================================================
// EXPENSE
// =============================================================================

type Expense struct {
	Amount      decimal.Decimal
	Description string
}

type ExpenseResult struct {
	Applied     decimal.Decimal
	Description string
	Remaining   decimal.Decimal // budget left in the current period
	Confirmed   bool            // true if the near-limit gate was passed
}

// ConfirmFunc is asked before committing an expense that leaves less than
// the warning share of the weekly budget. Returning false aborts.
type ConfirmFunc func(remaining decimal.Decimal) bool

// AlwaysConfirm answers yes. Used when the caller already collected consent.
func AlwaysConfirm(decimal.Decimal) bool { return true }

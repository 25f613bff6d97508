/*
state.go - The wallet aggregate and its mutation rules

PURPOSE:
  State is the single in-memory ledger of a wallet session: balance,
  weekly budget period and savings goal. Every mutation rule and
  invariant lives here. State performs no I/O; the session layer persists
  it after each successful mutation.

CRITICAL INVARIANTS:
  1. Budget.PeriodStart is nil iff a budget has never been set
  2. Spent never exceeds Amount through AddExpense (hard block)
  3. Every failed operation leaves State unchanged
  4. Balance changes only via expense, transfer result or conversion

EXPENSE GUARD:
  An expense is rejected outright if it would push Spent past Amount.
  If it would leave less than WarnShare of the budget, the ConfirmFunc
  is asked first:

    budget 100, spent 85, expense 10 -> remaining 5 < 10 -> confirm

WEEKLY ROLLOVER:
  CheckWeeklyRollover must be called before each read. Once seven days
  have passed since PeriodStart, Spent resets and a new period starts at
  now. Calling it again inside the new window does nothing.

SEE ALSO:
  - status.go: Read models derived from State
  - persist.go: Blob encoding of State
  - session/session.go: Locking, persistence and collaborators
*/
package finance

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// WarnShare is the fraction of the budget below which an expense needs
// explicit confirmation.
var WarnShare = decimal.RequireFromString("0.1")

// =============================================================================
// STATE
// =============================================================================

type State struct {
	Balance           decimal.Decimal
	Budget            Budget
	Savings           Savings
	PendingConversion *decimal.Decimal
}

type Budget struct {
	Amount      decimal.Decimal
	Spent       decimal.Decimal
	PeriodStart *time.Time
}

// IsSet reports whether a weekly budget is active.
func (b Budget) IsSet() bool {
	return b.Amount.IsPositive()
}

// Remaining is Amount - Spent. It can be negative for loaded data.
func (b Budget) Remaining() decimal.Decimal {
	return b.Amount.Sub(b.Spent)
}

// Period returns the current budget window, if a budget was ever set.
func (b Budget) Period() (Period, bool) {
	if b.PeriodStart == nil {
		return Period{}, false
	}
	return WeekFrom(*b.PeriodStart), true
}

type Savings struct {
	Goal     decimal.Decimal
	Saved    decimal.Decimal
	Deadline *time.Time
}

// NewState returns the first-run state: everything zero, no period.
func NewState() *State {
	return &State{}
}

// Clone returns a deep copy, safe to hand to other goroutines.
func (s *State) Clone() State {
	c := *s
	if s.Budget.PeriodStart != nil {
		t := *s.Budget.PeriodStart
		c.Budget.PeriodStart = &t
	}
	if s.Savings.Deadline != nil {
		t := *s.Savings.Deadline
		c.Savings.Deadline = &t
	}
	if s.PendingConversion != nil {
		d := *s.PendingConversion
		c.PendingConversion = &d
	}
	return c
}

// =============================================================================
// BUDGET OPERATIONS
// =============================================================================

// SetWeeklyBudget starts a fresh period at now with nothing spent.
// Any existing period is overwritten; unspent funds do not carry over.
func (s *State) SetWeeklyBudget(amount decimal.Decimal, now time.Time) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	start := storedInstant(now)
	s.Budget = Budget{
		Amount:      amount,
		Spent:       decimal.Zero,
		PeriodStart: &start,
	}
	return nil
}

// AddExpense logs e against the weekly budget and deducts it from the
// balance. See the EXPENSE GUARD section above for the rejection rules.
func (s *State) AddExpense(e Expense, confirm ConfirmFunc) (ExpenseResult, error) {
	if !e.Amount.IsPositive() {
		return ExpenseResult{}, ErrInvalidAmount
	}
	desc := strings.TrimSpace(e.Description)
	if desc == "" {
		return ExpenseResult{}, ErrMissingDescription
	}
	if !s.Budget.IsSet() {
		return ExpenseResult{}, ErrNoBudgetSet
	}

	newSpent := s.Budget.Spent.Add(e.Amount)
	if newSpent.GreaterThan(s.Budget.Amount) {
		return ExpenseResult{}, &BudgetExceededError{
			Budget:    s.Budget.Amount,
			Spent:     s.Budget.Spent,
			Requested: e.Amount,
			Over:      newSpent.Sub(s.Budget.Amount),
		}
	}

	remaining := s.Budget.Amount.Sub(newSpent)
	confirmed := false
	if remaining.LessThan(s.Budget.Amount.Mul(WarnShare)) {
		if confirm == nil {
			return ExpenseResult{}, &ConfirmationRequiredError{Amount: e.Amount, Remaining: remaining}
		}
		if !confirm(remaining) {
			return ExpenseResult{}, ErrExpenseDeclined
		}
		confirmed = true
	}

	s.Budget.Spent = newSpent
	s.Balance = s.Balance.Sub(e.Amount)

	return ExpenseResult{
		Applied:     e.Amount,
		Description: desc,
		Remaining:   remaining,
		Confirmed:   confirmed,
	}, nil
}

// CheckWeeklyRollover resets the period if seven days have elapsed since
// it started. Returns true if a reset happened.
func (s *State) CheckWeeklyRollover(now time.Time) bool {
	period, ok := s.Budget.Period()
	if !ok || !period.Expired(now) {
		return false
	}
	start := storedInstant(now)
	s.Budget.Spent = decimal.Zero
	s.Budget.PeriodStart = &start
	return true
}

// =============================================================================
// SAVINGS OPERATIONS
// =============================================================================

// SetSavingsGoal sets the target and its deadline. The deadline must be a
// calendar day after today. Progress already saved is kept.
func (s *State) SetSavingsGoal(goal decimal.Decimal, deadline, now time.Time) error {
	if !goal.IsPositive() {
		return ErrInvalidAmount
	}
	if deadline.IsZero() {
		return ErrMissingDeadline
	}
	if !afterToday(deadline, now) {
		return ErrPastDeadline
	}
	dl := storedInstant(deadline)
	s.Savings.Goal = goal
	s.Savings.Deadline = &dl
	return nil
}

// =============================================================================
// EXTERNAL RESULTS
// =============================================================================

// ApplyMobileMoneyResult commits a resolved transfer. Approved deposits
// count as savings; approved withdrawals only reduce the balance.
// Sufficiency for withdrawals is checked by the caller at initiation.
func (s *State) ApplyMobileMoneyResult(kind TransferKind, amount decimal.Decimal, approved bool) {
	if !approved {
		return
	}
	switch kind {
	case Deposit:
		s.Balance = s.Balance.Add(amount)
		s.Savings.Saved = s.Savings.Saved.Add(amount)
	case Withdraw:
		s.Balance = s.Balance.Sub(amount)
	}
}

// SetPendingConversion remembers a computed, not yet applied, conversion.
func (s *State) SetPendingConversion(amount decimal.Decimal) {
	s.PendingConversion = &amount
}

// ClearPendingConversion drops the pending conversion, e.g. when the
// conversion input changed.
func (s *State) ClearPendingConversion() {
	s.PendingConversion = nil
}

// ApplyConversion credits converted funds to the balance and to savings,
// then clears the pending conversion.
func (s *State) ApplyConversion(amount decimal.Decimal) {
	s.Balance = s.Balance.Add(amount)
	s.Savings.Saved = s.Savings.Saved.Add(amount)
	s.PendingConversion = nil
}

// CheckWithdrawal reports whether amount can be withdrawn right now.
func (s *State) CheckWithdrawal(amount decimal.Decimal) error {
	if amount.GreaterThan(s.Balance) {
		return &InsufficientBalanceError{Available: s.Balance, Requested: amount}
	}
	return nil
}

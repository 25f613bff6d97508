package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BUDGET STATUS - Read model for the budget card
// =============================================================================

type StatusLevel string

const (
	LevelNone    StatusLevel = "none" // no budget set
	LevelSafe    StatusLevel = "safe"
	LevelWarning StatusLevel = "warning"
	LevelDanger  StatusLevel = "danger"
)

// Thresholds on percentage of the budget spent.
var (
	halfwayPercent  = decimal.NewFromInt(60)
	closePercent    = decimal.NewFromInt(80)
	exceededPercent = decimal.NewFromInt(100)
)

type BudgetStatus struct {
	Amount     decimal.Decimal
	Spent      decimal.Decimal
	Remaining  decimal.Decimal
	Percentage decimal.Decimal // spent / amount * 100, unclamped
	Level      StatusLevel
	Message    string
	Period     *Period
	DaysLeft   int
}

// ProgressPercent clamps Percentage to [0, 100] for progress bars.
func (b BudgetStatus) ProgressPercent() decimal.Decimal {
	return clampPercent(b.Percentage)
}

// BudgetStatus classifies spending in the current period.
func (s *State) BudgetStatus(now time.Time) BudgetStatus {
	st := BudgetStatus{
		Amount:     s.Budget.Amount,
		Spent:      s.Budget.Spent,
		Remaining:  s.Budget.Remaining(),
		Percentage: decimal.Zero,
		Level:      LevelNone,
		Message:    "No weekly budget set.",
	}
	if p, ok := s.Budget.Period(); ok {
		st.Period = &p
		st.DaysLeft = p.DaysLeft(now)
	}
	if !s.Budget.IsSet() {
		return st
	}

	st.Percentage = s.Budget.Spent.Div(s.Budget.Amount).Mul(hundred)
	switch {
	case st.Percentage.GreaterThanOrEqual(exceededPercent):
		st.Level = LevelDanger
		st.Message = "Budget Exceeded! Consider reducing expenses."
	case st.Percentage.GreaterThanOrEqual(closePercent):
		st.Level = LevelWarning
		st.Message = "Close to budget limit. Spend carefully!"
	case st.Percentage.GreaterThanOrEqual(halfwayPercent):
		st.Level = LevelWarning
		st.Message = "Over halfway through your budget."
	default:
		st.Level = LevelSafe
		st.Message = "You're doing great! Keep it up!"
	}
	return st
}

// =============================================================================
// SAVINGS PROGRESS - Read model for the savings card
// =============================================================================

type SavingsProgress struct {
	Goal        decimal.Decimal
	Saved       decimal.Decimal
	Remaining   decimal.Decimal // max(0, goal - saved)
	Percentage  decimal.Decimal // saved / goal * 100, 0 without a goal
	GoalReached bool
	Deadline    *time.Time
}

func (p SavingsProgress) ProgressPercent() decimal.Decimal {
	return clampPercent(p.Percentage)
}

// SavingsProgress reports progress towards the savings goal.
func (s *State) SavingsProgress() SavingsProgress {
	p := SavingsProgress{
		Goal:       s.Savings.Goal,
		Saved:      s.Savings.Saved,
		Remaining:  decimal.Max(decimal.Zero, s.Savings.Goal.Sub(s.Savings.Saved)),
		Percentage: decimal.Zero,
		Deadline:   s.Savings.Deadline,
	}
	if s.Savings.Goal.IsPositive() {
		p.Percentage = s.Savings.Saved.Div(s.Savings.Goal).Mul(hundred)
		p.GoalReached = p.Percentage.GreaterThanOrEqual(exceededPercent)
	}
	return p
}

func clampPercent(p decimal.Decimal) decimal.Decimal {
	return decimal.Min(decimal.Max(p, decimal.Zero), hundred)
}

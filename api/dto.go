/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the wallet model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Amounts are decimal.Decimal. They marshal as JSON strings ("12.50") and
  unmarshal from either strings or numbers.

VALIDATION:
  Validation is done by the session and the finance package, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bensave/wallet/finance"
	"github.com/bensave/wallet/rates"
	"github.com/bensave/wallet/session"
)

// =============================================================================
// STATE
// =============================================================================

// StateDTO is the full wallet view.
type StateDTO struct {
	Balance           decimal.Decimal `json:"balance"`
	BalanceDisplay    string          `json:"balance_display"`
	Budget            BudgetDTO       `json:"budget"`
	Savings           SavingsDTO      `json:"savings"`
	PendingConversion *ConversionDTO  `json:"pending_conversion,omitempty"`
	Notice            *finance.Notice `json:"notice,omitempty"`
	AsOf              string          `json:"as_of"`
}

type BudgetDTO struct {
	Amount      decimal.Decimal `json:"amount"`
	Spent       decimal.Decimal `json:"spent"`
	Remaining   decimal.Decimal `json:"remaining"`
	Percentage  decimal.Decimal `json:"percentage"`
	Progress    decimal.Decimal `json:"progress"` // percentage capped at 100, for progress bars
	Level       string          `json:"level"`
	Message     string          `json:"message"`
	PeriodStart string          `json:"period_start,omitempty"`
	PeriodEnd   string          `json:"period_end,omitempty"`
	DaysLeft    int             `json:"days_left"`
}

type SavingsDTO struct {
	Goal        decimal.Decimal `json:"goal"`
	Saved       decimal.Decimal `json:"saved"`
	Remaining   decimal.Decimal `json:"remaining"`
	Percentage  decimal.Decimal `json:"percentage"`
	GoalReached bool            `json:"goal_reached"`
	Deadline    string          `json:"deadline,omitempty"`
}

// =============================================================================
// BUDGET / EXPENSES / GOAL
// =============================================================================

type SetBudgetRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// AddExpenseRequest adds an expense. Confirm must be true to accept an
// expense that leaves less than 10% of the budget.
type AddExpenseRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Confirm     bool            `json:"confirm"`
}

type ExpenseDTO struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Remaining   decimal.Decimal `json:"remaining"`
	Confirmed   bool            `json:"confirmed"`
	Notice      finance.Notice  `json:"notice"`
	State       StateDTO        `json:"state"`
}

type SetGoalRequest struct {
	Goal     decimal.Decimal `json:"goal"`
	Deadline string          `json:"deadline"` // YYYY-MM-DD
}

// =============================================================================
// TRANSFERS
// =============================================================================

type TransferRequest struct {
	Provider    string          `json:"provider"`
	Kind        string          `json:"kind"` // deposit | withdraw
	PhoneNumber string          `json:"phone_number"`
	Amount      decimal.Decimal `json:"amount"`
}

type TransferDTO struct {
	ID          string          `json:"id"`
	Provider    string          `json:"provider"`
	Kind        string          `json:"kind"`
	PhoneNumber string          `json:"phone_number"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	CreatedAt   string          `json:"created_at"`
	ResolvedAt  string          `json:"resolved_at,omitempty"`
	Notice      finance.Notice  `json:"notice"`
}

type ProviderDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

type ConvertRequest struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

type RateDTO struct {
	Currency string          `json:"currency"`
	Target   string          `json:"target"`
	Rate     decimal.Decimal `json:"rate"`
	Live     bool            `json:"live"`
	Source   string          `json:"source"`
	AsOf     string          `json:"as_of"`
}

type ConversionDTO struct {
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Converted decimal.Decimal `json:"converted"`
	Display   string          `json:"display"`
	Rate      RateDTO         `json:"rate"`
}

type ApplyConversionDTO struct {
	Conversion ConversionDTO  `json:"conversion"`
	Notice     finance.Notice `json:"notice"`
	State      StateDTO       `json:"state"`
}

// =============================================================================
// ACTIVITY
// =============================================================================

type ActivityDTO struct {
	ID           string            `json:"id"`
	Kind         string            `json:"kind"`
	At           string            `json:"at"`
	Amount       decimal.Decimal   `json:"amount"`
	Description  string            `json:"description"`
	BalanceAfter decimal.Decimal   `json:"balance_after"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string           `json:"error"`
	Class     string           `json:"class,omitempty"`
	Details   string           `json:"details,omitempty"`
	Notice    *finance.Notice  `json:"notice,omitempty"`
	Remaining *decimal.Decimal `json:"remaining,omitempty"` // set when confirmation is required
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toStateDTO(v session.View) StateDTO {
	dto := StateDTO{
		Balance:        v.Balance,
		BalanceDisplay: finance.FormatCedi(v.Balance),
		Budget: BudgetDTO{
			Amount:     v.Budget.Amount,
			Spent:      v.Budget.Spent,
			Remaining:  v.Budget.Remaining,
			Percentage: v.Budget.Percentage,
			Progress:   v.Budget.ProgressPercent(),
			Level:      string(v.Budget.Level),
			Message:    v.Budget.Message,
			DaysLeft:   v.Budget.DaysLeft,
		},
		Savings: SavingsDTO{
			Goal:        v.Savings.Goal,
			Saved:       v.Savings.Saved,
			Remaining:   v.Savings.Remaining,
			Percentage:  v.Savings.Percentage,
			GoalReached: v.Savings.GoalReached,
		},
		AsOf: v.AsOf.Format(time.RFC3339),
	}
	if p := v.Budget.Period; p != nil {
		dto.Budget.PeriodStart = p.Start.Format(time.RFC3339)
		dto.Budget.PeriodEnd = p.End.Format(time.RFC3339)
	}
	if v.Savings.Deadline != nil {
		dto.Savings.Deadline = v.Savings.Deadline.Format(finance.DeadlineLayout)
	}
	if v.PendingConversion != nil {
		c := toConversionDTO(*v.PendingConversion)
		dto.PendingConversion = &c
	}
	if v.RolledOver {
		n := finance.NewWeekNotice()
		dto.Notice = &n
	}
	return dto
}

func toRateDTO(r rates.Rate) RateDTO {
	return RateDTO{
		Currency: r.Currency,
		Target:   r.Target,
		Rate:     r.Value,
		Live:     r.Live,
		Source:   r.SourceLabel(),
		AsOf:     r.AsOf.Format(time.RFC3339),
	}
}

func toConversionDTO(c rates.Conversion) ConversionDTO {
	return ConversionDTO{
		Amount:    c.Amount,
		Currency:  c.Rate.Currency,
		Converted: c.Converted,
		Display:   finance.FormatCedi(c.Converted),
		Rate:      toRateDTO(c.Rate),
	}
}

func toTransferDTO(t session.Transfer) TransferDTO {
	dto := TransferDTO{
		ID:          t.ID,
		Provider:    string(t.Request.Provider),
		Kind:        t.Request.Kind.String(),
		PhoneNumber: t.Request.PhoneNumber,
		Amount:      t.Request.Amount,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
		Notice:      t.Notice,
	}
	if t.ResolvedAt != nil {
		dto.ResolvedAt = t.ResolvedAt.Format(time.RFC3339)
	}
	return dto
}

func toActivityDTOs(entries []finance.Entry) []ActivityDTO {
	dtos := make([]ActivityDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, ActivityDTO{
			ID:           e.ID,
			Kind:         string(e.Kind),
			At:           e.At.Format(time.RFC3339),
			Amount:       e.Amount,
			Description:  e.Description,
			BalanceAfter: e.BalanceAfter,
			Metadata:     e.Metadata,
		})
	}
	return dtos
}

/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built wallets for demos and manual testing. Each scenario
	replaces the whole wallet state, with dates relative to the session
	clock so a scenario always looks "current".

AVAILABLE SCENARIOS:

	fresh:         First run, nothing set
	mid-week:      Budget 3 days in, comfortably under the limit
	near-limit:    Budget 85% spent, next expense hits the confirmation gate
	goal-reached:  Savings goal met

HOW SCENARIOS WORK:
 1. Build a finance.State relative to now
 2. Session.Restore wipes the activity log and replaces the state

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "near-limit"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Add a builder to 'scenarioBuilders'

NOTE:

	Scenarios overwrite the wallet. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler and helpers
  - session/session.go: Restore
*/
package api

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bensave/wallet/finance"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "fresh",
		Name:        "Fresh Wallet",
		Description: "First run: no budget, no savings goal, zero balance",
	},
	{
		ID:          "mid-week",
		Name:        "Mid-Week",
		Description: "₵500 weekly budget, 3 days in, 36% spent, savings goal in progress",
	},
	{
		ID:          "near-limit",
		Name:        "Near The Limit",
		Description: "₵300 weekly budget with ₵255 spent; small expenses need confirmation",
	},
	{
		ID:          "goal-reached",
		Name:        "Goal Reached",
		Description: "Savings goal of ₵1,000 fully saved two weeks before the deadline",
	},
}

var scenarioBuilders = map[string]func(now time.Time) finance.State{
	"fresh":        freshScenario,
	"mid-week":     midWeekScenario,
	"near-limit":   nearLimitScenario,
	"goal-reached": goalReachedScenario,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario replaces the wallet with a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}

	build, ok := scenarioBuilders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err := h.Session.Restore(r.Context(), build(h.Session.Now())); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.setCurrentScenario(req.ScenarioID)
	h.log.WithField("scenario", req.ScenarioID).Info("Scenario loaded")

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO BUILDERS
// =============================================================================

func freshScenario(time.Time) finance.State {
	return *finance.NewState()
}

func midWeekScenario(now time.Time) finance.State {
	start := now.Add(-3 * 24 * time.Hour)
	deadline := dateAfter(now, 60)
	return finance.State{
		Balance: decimal.NewFromInt(1200),
		Budget: finance.Budget{
			Amount:      decimal.NewFromInt(500),
			Spent:       decimal.NewFromInt(180),
			PeriodStart: &start,
		},
		Savings: finance.Savings{
			Goal:     decimal.NewFromInt(2000),
			Saved:    decimal.NewFromInt(650),
			Deadline: &deadline,
		},
	}
}

func nearLimitScenario(now time.Time) finance.State {
	start := now.Add(-5 * 24 * time.Hour)
	deadline := dateAfter(now, 30)
	return finance.State{
		Balance: decimal.NewFromInt(400),
		Budget: finance.Budget{
			Amount:      decimal.NewFromInt(300),
			Spent:       decimal.NewFromInt(255),
			PeriodStart: &start,
		},
		Savings: finance.Savings{
			Goal:     decimal.NewFromInt(1500),
			Saved:    decimal.NewFromInt(200),
			Deadline: &deadline,
		},
	}
}

func goalReachedScenario(now time.Time) finance.State {
	start := now.Add(-24 * time.Hour)
	deadline := dateAfter(now, 14)
	return finance.State{
		Balance: decimal.NewFromInt(1500),
		Budget: finance.Budget{
			Amount:      decimal.NewFromInt(400),
			Spent:       decimal.NewFromInt(100),
			PeriodStart: &start,
		},
		Savings: finance.Savings{
			Goal:     decimal.NewFromInt(1000),
			Saved:    decimal.NewFromInt(1000),
			Deadline: &deadline,
		},
	}
}

// dateAfter returns midnight, days calendar days after now.
func dateAfter(now time.Time, days int) time.Time {
	y, m, d := now.AddDate(0, 0, days).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

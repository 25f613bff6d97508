/*
handlers.go - HTTP API handlers for the BenSave wallet

PURPOSE:
  Exposes a wallet session via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the session.

ENDPOINTS:
  State:
    GET    /api/state                   Wallet view (runs weekly rollover)
    POST   /api/reset                   Wipe wallet and activity

  Budget:
    POST   /api/budget                  Set weekly budget
    POST   /api/expenses                Add expense (409 until confirmed near the limit)

  Savings:
    POST   /api/savings/goal            Set savings goal and deadline

  Mobile money:
    GET    /api/providers               Supported providers
    POST   /api/transfers               Start deposit/withdrawal (202)
    GET    /api/transfers/{id}          Poll transfer status

  Conversions:
    GET    /api/rates/{currency}        Rate into cedis
    POST   /api/conversions             Compute pending conversion
    POST   /api/conversions/apply       Credit pending conversion
    DELETE /api/conversions             Discard pending conversion

  Activity:
    GET    /api/activity?limit=N        Newest first

  Scenarios:
    GET    /api/scenarios               List demo scenarios
    POST   /api/scenarios/load          Load a demo scenario

REQUEST FLOW:
  1. Parse HTTP request
  2. Call the session (validation lives in the finance package)
  3. Serialize response
  4. Map errors by class

ERROR HANDLING:
  Errors are returned as ErrorResponse with a user-facing notice:
  - 400: Validation errors, invalid input
  - 404: Unknown transfer
  - 409: Confirmation required (body carries "remaining")
  - 422: Policy violations (budget exceeded, insufficient balance)
  - 503: Exchange rate unavailable
  - 500: Internal errors

SECURITY NOTE:
  No authentication. One wallet per process.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/bensave/wallet/finance"
	"github.com/bensave/wallet/mobilemoney"
	"github.com/bensave/wallet/rates"
	"github.com/bensave/wallet/session"
)

const defaultActivityLimit = 50

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Session *session.Session
	log     logrus.FieldLogger

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler for the given session.
func NewHandler(s *session.Session, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		Session: s,
		log:     log.WithField("component", "api"),
	}
}

// =============================================================================
// STATE
// =============================================================================

// GetState returns the wallet view.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	view, err := h.Session.View(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStateDTO(view))
}

// ResetWallet wipes the wallet back to first-run defaults.
func (h *Handler) ResetWallet(w http.ResponseWriter, r *http.Request) {
	if err := h.Session.Reset(r.Context()); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.setCurrentScenario("")
	h.GetState(w, r)
}

// =============================================================================
// BUDGET
// =============================================================================

// SetBudget sets the weekly budget and starts a new period.
func (h *Handler) SetBudget(w http.ResponseWriter, r *http.Request) {
	var req SetBudgetRequest
	if !decodeBody(w, r, &req) {
		return
	}

	view, err := h.Session.SetWeeklyBudget(r.Context(), req.Amount)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dto := toStateDTO(view)
	n := finance.BudgetSetNotice(req.Amount)
	dto.Notice = &n
	writeJSON(w, http.StatusOK, dto)
}

// AddExpense logs an expense against the weekly budget.
func (h *Handler) AddExpense(w http.ResponseWriter, r *http.Request) {
	var req AddExpenseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	// Without an explicit confirm the gate answers 409.
	var confirm finance.ConfirmFunc
	if req.Confirm {
		confirm = finance.AlwaysConfirm
	}

	result, err := h.Session.AddExpense(r.Context(), req.Amount, req.Description, confirm)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	view, err := h.Session.View(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ExpenseDTO{
		Amount:      result.Applied,
		Description: result.Description,
		Remaining:   result.Remaining,
		Confirmed:   result.Confirmed,
		Notice:      finance.ExpenseAddedNotice(result),
		State:       toStateDTO(view),
	})
}

// =============================================================================
// SAVINGS
// =============================================================================

// SetSavingsGoal sets the savings target and deadline.
func (h *Handler) SetSavingsGoal(w http.ResponseWriter, r *http.Request) {
	var req SetGoalRequest
	if !decodeBody(w, r, &req) {
		return
	}

	deadline, err := finance.ParseDeadline(req.Deadline, h.Session.Now().Location())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	view, err := h.Session.SetSavingsGoal(r.Context(), req.Goal, deadline)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dto := toStateDTO(view)
	n := finance.GoalSetNotice(req.Goal)
	dto.Notice = &n
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// MOBILE MONEY
// =============================================================================

// ListProviders returns the supported mobile-money providers.
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	providers := mobilemoney.Providers()
	dtos := make([]ProviderDTO, 0, len(providers))
	for _, p := range providers {
		dtos = append(dtos, ProviderDTO{ID: string(p), Name: p.DisplayName()})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// StartTransfer sends a simulated approval prompt. The response is 202;
// poll GetTransfer for the outcome.
func (h *Handler) StartTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !decodeBody(w, r, &req) {
		return
	}

	provider, err := mobilemoney.ParseProvider(req.Provider)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	kind, err := finance.ParseTransferKind(req.Kind)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	t, err := h.Session.StartTransfer(r.Context(), mobilemoney.Request{
		Provider:    provider,
		Kind:        kind,
		PhoneNumber: req.PhoneNumber,
		Amount:      req.Amount,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	w.Header().Set("Location", "/api/transfers/"+t.ID)
	writeJSON(w, http.StatusAccepted, toTransferDTO(t))
}

// GetTransfer returns a transfer's current status.
func (h *Handler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	t, err := h.Session.Transfer(chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransferDTO(t))
}

// =============================================================================
// CONVERSIONS
// =============================================================================

// GetRate returns the rate for one unit of a currency.
func (h *Handler) GetRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.Session.Rate(r.Context(), chi.URLParam(r, "currency"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRateDTO(rate))
}

// Convert computes a conversion and holds it as pending.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if !decodeBody(w, r, &req) {
		return
	}

	conv, err := h.Session.Convert(r.Context(), req.Currency, req.Amount)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConversionDTO(conv))
}

// ApplyConversion credits the pending conversion.
func (h *Handler) ApplyConversion(w http.ResponseWriter, r *http.Request) {
	conv, err := h.Session.ApplyConversion(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	view, err := h.Session.View(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ApplyConversionDTO{
		Conversion: toConversionDTO(conv),
		Notice:     rates.AppliedNotice(conv),
		State:      toStateDTO(view),
	})
}

// DiscardConversion drops the pending conversion.
func (h *Handler) DiscardConversion(w http.ResponseWriter, r *http.Request) {
	h.Session.DiscardConversion()
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ACTIVITY
// =============================================================================

// ListActivity returns recent activity, newest first.
func (h *Handler) ListActivity(w http.ResponseWriter, r *http.Request) {
	limit := defaultActivityLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	entries, err := h.Session.Activity(r.Context(), limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityDTOs(entries))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// writeDomainError maps an error to its HTTP status by class and attaches
// the notice a user should see.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	class := finance.Classify(err)
	notice := finance.NoticeFor(err)
	resp := ErrorResponse{
		Error:   notice.Title,
		Class:   string(class),
		Details: err.Error(),
		Notice:  &notice,
	}

	status := http.StatusInternalServerError
	switch {
	case finance.IsNotFound(err):
		status = http.StatusNotFound
	case class == finance.ClassValidation:
		status = http.StatusBadRequest
	case class == finance.ClassPolicyViolation:
		status = http.StatusUnprocessableEntity
	case class == finance.ClassConfirmationRequired:
		status = http.StatusConflict
		var gate *finance.ConfirmationRequiredError
		if errors.As(err, &gate) {
			remaining := gate.Remaining
			resp.Remaining = &remaining
		}
	case class == finance.ClassExternalUnavailable:
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.log.WithError(err).Error("Request failed")
	}
	writeJSON(w, status, resp)
}

func (h *Handler) setCurrentScenario(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentScenario = id
}

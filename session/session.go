/*
session.go - The single owner of a wallet's state

PURPOSE:
  Session wires finance.State to its collaborators: persistence, the
  activity log, the rate source and the mobile-money simulator. Every
  entry point (HTTP handlers, CLI commands) goes through a Session.

LOCKING:
  One mutex guards the state. The simulator delay and the live rate
  lookup happen outside it, so reads and other mutations interleave with
  an unresolved transfer.

MUTATION FLOW:
  1. Lock, run the weekly rollover check
  2. Apply the operation to a clone of the state
  3. Persist the clone; on failure the live state is untouched
  4. Swap the clone in, append to the activity log, unlock

WITHDRAWAL RACE:
  A withdrawal's sufficiency is checked when it is initiated. The result
  is applied at resolution without re-checking, so two overlapping
  withdrawals can drive the balance negative. This is logged as a
  warning, not prevented.

SEE ALSO:
  - finance/state.go: The state machine
  - mobilemoney/simulator.go: Transfer resolution
  - api/handlers.go: HTTP entry points
*/
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/bensave/wallet/finance"
	"github.com/bensave/wallet/mobilemoney"
	"github.com/bensave/wallet/rates"
)

// RateSource resolves exchange rates. *rates.Source implements it.
type RateSource interface {
	GetRate(ctx context.Context, from string) (rates.Rate, error)
	Convert(ctx context.Context, from string, amount decimal.Decimal) (rates.Conversion, error)
}

// Options configures Open. Blobs is required; the rest have defaults.
type Options struct {
	Blobs     finance.BlobStore
	Activity  finance.ActivityLog
	Rates     RateSource
	Simulator *mobilemoney.Simulator
	Clock     finance.Clock
	Logger    logrus.FieldLogger
	Key       string

	// TransferRetention is how long an applied transfer stays queryable.
	// Defaults to DefaultTransferRetention.
	TransferRetention time.Duration
}

// DefaultTransferRetention keeps applied transfers around for an hour.
const DefaultTransferRetention = time.Hour

type Session struct {
	mu         sync.Mutex
	state      *finance.State
	conversion *rates.Conversion
	transfers  map[string]*transfer
	retention  time.Duration
	report     finance.LoadReport

	persist  *finance.Persistence
	activity finance.ActivityLog
	rates    RateSource
	sim      *mobilemoney.Simulator
	clock    finance.Clock
	log      logrus.FieldLogger

	inflight sync.WaitGroup
}

// Open loads the persisted state and returns a ready session. Loading
// never fails; a degraded load is logged and reported by LoadReport.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.Blobs == nil {
		return nil, errors.New("session: blob store is required")
	}
	if opts.Activity == nil {
		opts.Activity = finance.NopActivityLog{}
	}
	if opts.Rates == nil {
		opts.Rates = rates.NewSource(rates.Config{}, nil, opts.Logger)
	}
	if opts.Simulator == nil {
		opts.Simulator = mobilemoney.NewSimulator()
	}
	if opts.Clock == nil {
		opts.Clock = finance.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.TransferRetention <= 0 {
		opts.TransferRetention = DefaultTransferRetention
	}

	persist := finance.NewPersistence(opts.Blobs)
	if opts.Key != "" {
		persist.Key = opts.Key
	}

	s := &Session{
		transfers: make(map[string]*transfer),
		retention: opts.TransferRetention,
		persist:   persist,
		activity:  opts.Activity,
		rates:     opts.Rates,
		sim:       opts.Simulator,
		clock:     opts.Clock,
		log:       opts.Logger.WithField("component", "session"),
	}

	state, report := persist.Load(ctx)
	s.state = state
	s.report = report
	if report.Degraded() {
		s.log.WithFields(logrus.Fields{
			"missing":   report.Missing,
			"malformed": report.Malformed,
		}).WithError(report.Err).Warn("Stored wallet data degraded, using defaults for affected fields")
	}
	return s, nil
}

// LoadReport describes how the initial load went.
func (s *Session) LoadReport() finance.LoadReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// Close waits for in-flight transfers to be applied, or for ctx to end.
func (s *Session) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for pending transfers: %w", ctx.Err())
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View is a consistent snapshot for rendering.
type View struct {
	Balance           decimal.Decimal
	Budget            finance.BudgetStatus
	Savings           finance.SavingsProgress
	PendingConversion *rates.Conversion
	RolledOver        bool
	AsOf              time.Time
}

// View returns the current state, starting a new budget week first if the
// current one has ended.
func (s *Session) View(ctx context.Context) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	rolled, err := s.rollover(ctx, now)
	if err != nil {
		return View{}, err
	}
	return s.viewLocked(now, rolled), nil
}

func (s *Session) viewLocked(now time.Time, rolled bool) View {
	v := View{
		Balance:    s.state.Balance,
		Budget:     s.state.BudgetStatus(now),
		Savings:    s.state.SavingsProgress(),
		RolledOver: rolled,
		AsOf:       now,
	}
	if s.conversion != nil {
		c := *s.conversion
		v.PendingConversion = &c
	}
	return v
}

// Now is the session clock's current time.
func (s *Session) Now() time.Time {
	return s.clock.Now()
}

// State returns a copy of the raw state.
func (s *Session) State() finance.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// =============================================================================
// MUTATIONS
// =============================================================================

// mutate applies fn to a clone, persists it and commits. Callers hold s.mu.
func (s *Session) mutate(ctx context.Context, fn func(st *finance.State) error) error {
	next := s.state.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := s.persist.Save(ctx, next); err != nil {
		s.log.WithError(err).Error("Failed to persist wallet")
		return fmt.Errorf("persist wallet: %w", err)
	}
	*s.state = next
	return nil
}

// rollover runs the weekly reset check. Callers hold s.mu.
func (s *Session) rollover(ctx context.Context, now time.Time) (bool, error) {
	rolled := false
	err := s.mutate(ctx, func(st *finance.State) error {
		rolled = st.CheckWeeklyRollover(now)
		if !rolled {
			return errNoChange
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.log.WithField("period_start", now.Format(time.RFC3339)).Info("New budget week started")
	s.record(ctx, finance.Entry{
		Kind:        finance.ActivityRollover,
		At:          now,
		Amount:      s.state.Budget.Amount,
		Description: "New budget week",
	})
	return rolled, nil
}

var errNoChange = errors.New("no change")

// record appends to the activity log. Log failures never fail the
// operation that produced the entry.
func (s *Session) record(ctx context.Context, e finance.Entry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.IdempotencyKey == "" {
		e.IdempotencyKey = string(e.Kind) + ":" + e.ID
	}
	e.BalanceAfter = s.state.Balance
	err := s.activity.Append(ctx, e)
	switch {
	case errors.Is(err, finance.ErrDuplicateIdempotencyKey):
		s.log.WithField("key", e.IdempotencyKey).Debug("Activity entry already recorded")
	case err != nil:
		s.log.WithError(err).WithField("kind", e.Kind).Warn("Failed to record activity")
	}
}

// SetWeeklyBudget starts a new week with amount to spend.
func (s *Session) SetWeeklyBudget(ctx context.Context, amount decimal.Decimal) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if err := s.mutate(ctx, func(st *finance.State) error {
		return st.SetWeeklyBudget(amount, now)
	}); err != nil {
		return View{}, err
	}

	s.log.WithField("amount", amount.String()).Info("Weekly budget set")
	s.record(ctx, finance.Entry{
		Kind:        finance.ActivityBudgetSet,
		At:          now,
		Amount:      amount,
		Description: "Weekly budget",
	})
	return s.viewLocked(now, false), nil
}

// AddExpense logs an expense. confirm is consulted only when the expense
// would leave less than the warning share of the budget; with a nil
// confirm that case returns *finance.ConfirmationRequiredError.
func (s *Session) AddExpense(ctx context.Context, amount decimal.Decimal, description string, confirm finance.ConfirmFunc) (finance.ExpenseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if _, err := s.rollover(ctx, now); err != nil {
		return finance.ExpenseResult{}, err
	}

	var result finance.ExpenseResult
	err := s.mutate(ctx, func(st *finance.State) error {
		var err error
		result, err = st.AddExpense(finance.Expense{Amount: amount, Description: description}, confirm)
		return err
	})
	if err != nil {
		s.log.WithError(err).WithField("amount", amount.String()).Debug("Expense rejected")
		return finance.ExpenseResult{}, err
	}

	s.log.WithFields(logrus.Fields{
		"amount":    result.Applied.String(),
		"remaining": result.Remaining.String(),
	}).Info("Expense added")
	s.record(ctx, finance.Entry{
		Kind:        finance.ActivityExpense,
		At:          now,
		Amount:      result.Applied.Neg(),
		Description: result.Description,
	})
	return result, nil
}

// SetSavingsGoal sets the savings target and its deadline.
func (s *Session) SetSavingsGoal(ctx context.Context, goal decimal.Decimal, deadline time.Time) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if err := s.mutate(ctx, func(st *finance.State) error {
		return st.SetSavingsGoal(goal, deadline, now)
	}); err != nil {
		return View{}, err
	}

	s.record(ctx, finance.Entry{
		Kind:        finance.ActivityGoalSet,
		At:          now,
		Amount:      goal,
		Description: "Savings goal",
		Metadata:    map[string]string{"deadline": deadline.Format(finance.DeadlineLayout)},
	})
	return s.viewLocked(now, false), nil
}

// Reset overwrites the wallet with first-run defaults, clears the pending
// conversion and wipes the activity log. Transfers already in flight still
// apply.
func (s *Session) Reset(ctx context.Context) error {
	return s.Restore(ctx, *finance.NewState())
}

// activityClearer is implemented by logs that can be wiped.
type activityClearer interface {
	ClearActivity(ctx context.Context) error
}

// Restore replaces the whole state, e.g. to load a demo scenario. The
// activity log is wiped once the new state is saved.
func (s *Session) Restore(ctx context.Context, st finance.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st.PendingConversion = nil
	if err := s.mutate(ctx, func(next *finance.State) error {
		*next = st.Clone()
		return nil
	}); err != nil {
		return err
	}
	if c, ok := s.activity.(activityClearer); ok {
		if err := c.ClearActivity(ctx); err != nil {
			s.log.WithError(err).Warn("Failed to clear activity log")
		}
	}
	s.conversion = nil

	s.log.Info("Wallet reset")
	s.record(ctx, finance.Entry{
		Kind:        finance.ActivityReset,
		At:          s.clock.Now(),
		Amount:      st.Balance,
		Description: "Wallet reset",
	})
	return nil
}

// Activity returns the newest entries first. limit <= 0 returns all.
func (s *Session) Activity(ctx context.Context, limit int) ([]finance.Entry, error) {
	entries, err := s.activity.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return entries, nil
}

package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bensave/wallet/finance"
	"github.com/bensave/wallet/finance/store"
	"github.com/bensave/wallet/mobilemoney"
	"github.com/bensave/wallet/rates"
)

// =============================================================================
// FIXTURES
// =============================================================================

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

func immediate(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

type fakeRates struct {
	rate decimal.Decimal
	live bool
	err  error
}

func (f *fakeRates) GetRate(_ context.Context, from string) (rates.Rate, error) {
	if f.err != nil {
		return rates.Rate{}, f.err
	}
	return rates.Rate{Currency: from, Target: finance.LocalCurrency, Value: f.rate, Live: f.live}, nil
}

func (f *fakeRates) Convert(ctx context.Context, from string, amount decimal.Decimal) (rates.Conversion, error) {
	r, err := f.GetRate(ctx, from)
	if err != nil {
		return rates.Conversion{}, err
	}
	return rates.Conversion{Rate: r, Amount: amount, Converted: amount.Mul(r.Value)}, nil
}

// flakyBlobs fails every Put while failing is set.
type flakyBlobs struct {
	*store.Memory
	failing atomic.Bool
}

func (f *flakyBlobs) Put(ctx context.Context, key string, value []byte) error {
	if f.failing.Load() {
		return errors.New("disk full")
	}
	return f.Memory.Put(ctx, key, value)
}

type fixture struct {
	session *Session
	store   *store.Memory
	clock   *fakeClock
	sim     *mobilemoney.Simulator
	rates   *fakeRates
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: store.NewMemory(),
		clock: &fakeClock{now: time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)},
		sim: &mobilemoney.Simulator{
			ApprovalRate: mobilemoney.DefaultApprovalRate,
			Rand:         fixedRand(0),
			After:        immediate,
		},
		rates: &fakeRates{rate: decimal.RequireFromString("11.89"), live: true},
	}
	f.session = f.open(t)
	return f
}

func (f *fixture) open(t *testing.T) *Session {
	t.Helper()
	log, _ := test.NewNullLogger()
	s, err := Open(context.Background(), Options{
		Blobs:     f.store,
		Activity:  f.store,
		Rates:     f.rates,
		Simulator: f.sim,
		Clock:     f.clock,
		Logger:    log,
	})
	require.NoError(t, err)
	return s
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func kinds(entries []finance.Entry) []finance.ActivityKind {
	out := make([]finance.ActivityKind, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Kind)
	}
	return out
}

func depositRequest(amount string) mobilemoney.Request {
	return mobilemoney.Request{
		Provider:    mobilemoney.MTN,
		Kind:        finance.Deposit,
		PhoneNumber: "0241234567",
		Amount:      dec(amount),
	}
}

// =============================================================================
// TESTS
// =============================================================================

func TestOpen_FirstRun(t *testing.T) {
	f := newFixture(t)

	report := f.session.LoadReport()
	assert.False(t, report.Found)
	assert.False(t, report.Degraded())

	v, err := f.session.View(context.Background())
	require.NoError(t, err)
	assert.True(t, v.Balance.IsZero())
	assert.Equal(t, finance.LevelNone, v.Budget.Level)
	assert.False(t, v.RolledOver)
}

func TestOpen_RequiresBlobStore(t *testing.T) {
	_, err := Open(context.Background(), Options{})
	assert.Error(t, err)
}

func TestSession_MutationsPersist(t *testing.T) {
	// GIVEN: A budget and an expense
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.session.SetWeeklyBudget(ctx, dec("100"))
	require.NoError(t, err)
	res, err := f.session.AddExpense(ctx, dec("30"), "lunch", nil)
	require.NoError(t, err)
	assertDecimal(t, "70", res.Remaining)

	// WHEN: A new session opens over the same store
	reopened := f.open(t)

	// THEN: It sees the same numbers
	st := reopened.State()
	assertDecimal(t, "100", st.Budget.Amount)
	assertDecimal(t, "30", st.Budget.Spent)
	assertDecimal(t, "-30", st.Balance)

	v, err := reopened.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, finance.LevelSafe, v.Budget.Level)

	entries, err := reopened.Activity(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []finance.ActivityKind{finance.ActivityExpense, finance.ActivityBudgetSet}, kinds(entries))
	assertDecimal(t, "-30", entries[0].Amount)
	assertDecimal(t, "-30", entries[0].BalanceAfter)
	assert.Equal(t, "lunch", entries[0].Description)
}

func TestSession_ExpenseConfirmation(t *testing.T) {
	// GIVEN: Budget 100 with 85 spent
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.session.SetWeeklyBudget(ctx, dec("100"))
	require.NoError(t, err)
	_, err = f.session.AddExpense(ctx, dec("85"), "groceries", func(decimal.Decimal) bool { return true })
	require.NoError(t, err)

	// WHEN: Adding 10 with no confirmation available
	_, err = f.session.AddExpense(ctx, dec("10"), "snacks", nil)

	// THEN: Confirmation is required and nothing changes
	var confirmErr *finance.ConfirmationRequiredError
	require.ErrorAs(t, err, &confirmErr)
	assertDecimal(t, "5", confirmErr.Remaining)
	assertDecimal(t, "85", f.session.State().Budget.Spent)

	// WHEN: The user declines
	_, err = f.session.AddExpense(ctx, dec("10"), "snacks", func(decimal.Decimal) bool { return false })

	// THEN: Spent stays at 85
	assert.ErrorIs(t, err, finance.ErrExpenseDeclined)
	assertDecimal(t, "85", f.session.State().Budget.Spent)

	// WHEN: The user confirms
	res, err := f.session.AddExpense(ctx, dec("10"), "snacks", finance.AlwaysConfirm)

	// THEN: The expense applies
	require.NoError(t, err)
	assert.True(t, res.Confirmed)
	assertDecimal(t, "95", f.session.State().Budget.Spent)
}

func TestSession_BudgetExceededLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.session.SetWeeklyBudget(ctx, dec("100"))
	require.NoError(t, err)
	_, err = f.session.AddExpense(ctx, dec("95"), "rent", finance.AlwaysConfirm)
	require.NoError(t, err)
	before := f.session.State()

	_, err = f.session.AddExpense(ctx, dec("10"), "taxi", finance.AlwaysConfirm)

	var exceeded *finance.BudgetExceededError
	require.ErrorAs(t, err, &exceeded)
	assertDecimal(t, "5", exceeded.Over)
	assert.Equal(t, before, f.session.State())
}

func TestSession_RolloverOnView(t *testing.T) {
	// GIVEN: A week with spending
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.session.SetWeeklyBudget(ctx, dec("200"))
	require.NoError(t, err)
	_, err = f.session.AddExpense(ctx, dec("50"), "fuel", nil)
	require.NoError(t, err)

	// WHEN: Seven days pass and the wallet is viewed
	f.clock.Advance(7 * 24 * time.Hour)
	v, err := f.session.View(ctx)

	// THEN: A new week starts at now with nothing spent
	require.NoError(t, err)
	assert.True(t, v.RolledOver)
	assert.True(t, v.Budget.Spent.IsZero())
	assertDecimal(t, "200", v.Budget.Amount)
	assertDecimal(t, "-50", v.Balance)
	require.NotNil(t, v.Budget.Period)
	assert.True(t, v.Budget.Period.Start.Equal(f.clock.Now()))

	// AND: Viewing again is a no-op
	v, err = f.session.View(ctx)
	require.NoError(t, err)
	assert.False(t, v.RolledOver)

	entries, _ := f.session.Activity(ctx, 0)
	assert.Equal(t, finance.ActivityRollover, entries[0].Kind)

	// AND: The reset was persisted
	assert.True(t, f.open(t).State().Budget.Spent.IsZero())
}

func TestSession_RolloverBeforeExpense(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.session.SetWeeklyBudget(ctx, dec("100"))
	require.NoError(t, err)
	_, err = f.session.AddExpense(ctx, dec("90"), "market", finance.AlwaysConfirm)
	require.NoError(t, err)

	f.clock.Advance(8 * 24 * time.Hour)

	// Last week's spending no longer counts against the new week
	res, err := f.session.AddExpense(ctx, dec("40"), "market", nil)
	require.NoError(t, err)
	assertDecimal(t, "60", res.Remaining)
}

func TestSession_SetSavingsGoal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	deadline := f.clock.Now().AddDate(0, 2, 0)

	v, err := f.session.SetSavingsGoal(ctx, dec("500"), deadline)
	require.NoError(t, err)
	assertDecimal(t, "500", v.Savings.Goal)
	assertDecimal(t, "500", v.Savings.Remaining)

	_, err = f.session.SetSavingsGoal(ctx, dec("500"), f.clock.Now())
	assert.ErrorIs(t, err, finance.ErrPastDeadline)
}

func TestSession_DepositApproved(t *testing.T) {
	// GIVEN: An approving simulator
	ctx := context.Background()
	f := newFixture(t)

	// WHEN: Depositing 100
	tr, err := f.session.StartTransfer(ctx, depositRequest("100"))
	require.NoError(t, err)
	assert.Equal(t, mobilemoney.StatusPending, tr.Status)
	assert.Equal(t, "Prompt Sent!", tr.Notice.Title)

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	tr, err = f.session.WaitTransfer(waitCtx, tr.ID)

	// THEN: Balance and savings grow, the log has one deposit
	require.NoError(t, err)
	assert.Equal(t, mobilemoney.StatusApproved, tr.Status)
	assert.NotNil(t, tr.ResolvedAt)
	assert.Equal(t, "Transaction Approved!", tr.Notice.Title)

	st := f.session.State()
	assertDecimal(t, "100", st.Balance)
	assertDecimal(t, "100", st.Savings.Saved)

	entries, _ := f.session.Activity(ctx, 0)
	require.Len(t, entries, 1)
	assert.Equal(t, finance.ActivityDeposit, entries[0].Kind)
	assert.Equal(t, "transfer:"+tr.ID, entries[0].IdempotencyKey)
	assert.Equal(t, "mtn", entries[0].Metadata["provider"])

	require.NoError(t, f.session.Close(ctx))
}

func TestSession_TransferDeclined(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sim.Rand = fixedRand(0.95)

	tr, err := f.session.StartTransfer(ctx, depositRequest("100"))
	require.NoError(t, err)
	tr, err = f.session.WaitTransfer(ctx, tr.ID)
	require.NoError(t, err)

	assert.Equal(t, mobilemoney.StatusDeclined, tr.Status)
	assert.True(t, f.session.State().Balance.IsZero())
	entries, _ := f.session.Activity(ctx, 0)
	assert.Equal(t, []finance.ActivityKind{finance.ActivityDeclined}, kinds(entries))
}

func TestSession_WithdrawalOverBalance(t *testing.T) {
	// GIVEN: Balance 30
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.session.Restore(ctx, finance.State{Balance: dec("30")}))

	// WHEN: Withdrawing 50
	req := depositRequest("50")
	req.Kind = finance.Withdraw
	_, err := f.session.StartTransfer(ctx, req)

	// THEN: Rejected before any prompt, balance untouched
	assert.ErrorIs(t, err, finance.ErrInsufficientBalance)
	assertDecimal(t, "30", f.session.State().Balance)
	assert.Empty(t, f.session.transfers)
}

func TestSession_OverlappingWithdrawals(t *testing.T) {
	// GIVEN: Balance 100 and two 80 withdrawals held open
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.session.Restore(ctx, finance.State{Balance: dec("100")}))

	release := make(chan time.Time)
	f.sim.After = func(time.Duration) <-chan time.Time { return release }

	req := depositRequest("80")
	req.Kind = finance.Withdraw
	a, err := f.session.StartTransfer(ctx, req)
	require.NoError(t, err)
	b, err := f.session.StartTransfer(ctx, req)
	require.NoError(t, err)

	// WHEN: Both resolve approved
	close(release)
	_, err = f.session.WaitTransfer(ctx, a.ID)
	require.NoError(t, err)
	_, err = f.session.WaitTransfer(ctx, b.ID)
	require.NoError(t, err)

	// THEN: Both apply; the balance goes negative
	assertDecimal(t, "-60", f.session.State().Balance)
}

func TestSession_TransferNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.session.Transfer("nope")
	assert.ErrorIs(t, err, finance.ErrTransferNotFound)
	_, err = f.session.WaitTransfer(context.Background(), "nope")
	assert.ErrorIs(t, err, finance.ErrTransferNotFound)
}

func TestSession_AppliedTransfersExpire(t *testing.T) {
	// GIVEN: One applied deposit and one held pending
	ctx := context.Background()
	f := newFixture(t)

	done, err := f.session.StartTransfer(ctx, depositRequest("20"))
	require.NoError(t, err)
	_, err = f.session.WaitTransfer(ctx, done.ID)
	require.NoError(t, err)

	hold := make(chan time.Time)
	f.sim.After = func(time.Duration) <-chan time.Time { return hold }
	held, err := f.session.StartTransfer(ctx, depositRequest("5"))
	require.NoError(t, err)

	// WHEN: The retention window passes and another transfer starts
	f.clock.Advance(DefaultTransferRetention + time.Minute)
	f.sim.After = immediate
	next, err := f.session.StartTransfer(ctx, depositRequest("1"))
	require.NoError(t, err)

	// THEN: Only the old applied transfer is forgotten
	_, err = f.session.Transfer(done.ID)
	assert.ErrorIs(t, err, finance.ErrTransferNotFound)
	_, err = f.session.Transfer(held.ID)
	assert.NoError(t, err, "pending transfers are kept")
	_, err = f.session.Transfer(next.ID)
	assert.NoError(t, err)

	close(hold)
	require.NoError(t, f.session.Close(ctx))
}

func TestSession_CloseWaitsForTransfers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	release := make(chan time.Time)
	f.sim.After = func(time.Duration) <-chan time.Time { return release }

	_, err := f.session.StartTransfer(ctx, depositRequest("20"))
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.Error(t, f.session.Close(short), "transfer still pending")

	close(release)
	done, cancel2 := context.WithTimeout(ctx, 2*time.Second)
	defer cancel2()
	require.NoError(t, f.session.Close(done))
	assertDecimal(t, "20", f.session.State().Balance)
}

func TestSession_Conversion(t *testing.T) {
	// GIVEN: A live USD rate of 11.89
	ctx := context.Background()
	f := newFixture(t)

	// WHEN: Converting 100 USD
	conv, err := f.session.Convert(ctx, "USD", dec("100"))
	require.NoError(t, err)
	assertDecimal(t, "1189", conv.Converted)

	// THEN: Nothing is credited until applied
	v, _ := f.session.View(ctx)
	require.NotNil(t, v.PendingConversion)
	assert.True(t, v.Balance.IsZero())

	applied, err := f.session.ApplyConversion(ctx)
	require.NoError(t, err)
	assertDecimal(t, "1189", applied.Converted)

	st := f.session.State()
	assertDecimal(t, "1189", st.Balance)
	assertDecimal(t, "1189", st.Savings.Saved)
	assert.Nil(t, st.PendingConversion)

	entries, _ := f.session.Activity(ctx, 1)
	require.Len(t, entries, 1)
	assert.Equal(t, finance.ActivityConversion, entries[0].Kind)
	assert.Equal(t, "Live rates", entries[0].Metadata["source"])

	// AND: It cannot be applied twice
	_, err = f.session.ApplyConversion(ctx)
	assert.ErrorIs(t, err, finance.ErrNoPendingConversion)
}

func TestSession_ConversionDiscardedOrFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.session.Convert(ctx, "EUR", dec("10"))
	require.NoError(t, err)
	f.session.DiscardConversion()
	_, err = f.session.ApplyConversion(ctx)
	assert.ErrorIs(t, err, finance.ErrNoPendingConversion)

	// A failed lookup clears an earlier pending conversion
	_, err = f.session.Convert(ctx, "EUR", dec("10"))
	require.NoError(t, err)
	f.rates.err = &finance.RateUnavailableError{Currency: "XYZ"}
	_, err = f.session.Convert(ctx, "XYZ", dec("10"))
	assert.ErrorIs(t, err, finance.ErrRateUnavailable)
	assert.Nil(t, f.session.State().PendingConversion)
	_, err = f.session.ApplyConversion(ctx)
	assert.ErrorIs(t, err, finance.ErrNoPendingConversion)
}

func TestSession_RestoreWipesActivity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.session.SetWeeklyBudget(ctx, dec("100"))
	require.NoError(t, err)
	_, err = f.session.Convert(ctx, "USD", dec("1"))
	require.NoError(t, err)

	start := f.clock.Now().Add(-48 * time.Hour)
	scenario := finance.State{
		Balance: dec("1200"),
		Budget:  finance.Budget{Amount: dec("500"), Spent: dec("180"), PeriodStart: &start},
	}
	require.NoError(t, f.session.Restore(ctx, scenario))

	st := f.session.State()
	assertDecimal(t, "1200", st.Balance)
	assertDecimal(t, "180", st.Budget.Spent)
	assert.Nil(t, st.PendingConversion)

	entries, err := f.session.Activity(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []finance.ActivityKind{finance.ActivityReset}, kinds(entries))

	require.NoError(t, f.session.Reset(ctx))
	assert.Equal(t, *finance.NewState(), f.session.State())
}

func TestSession_PersistFailureLeavesStateUnchanged(t *testing.T) {
	// GIVEN: A store that starts failing after the budget is set
	ctx := context.Background()
	blobs := &flakyBlobs{Memory: store.NewMemory()}
	log, _ := test.NewNullLogger()
	clock := &fakeClock{now: time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)}
	s, err := Open(ctx, Options{Blobs: blobs, Clock: clock, Logger: log, Rates: &fakeRates{rate: dec("1")}})
	require.NoError(t, err)
	_, err = s.SetWeeklyBudget(ctx, dec("100"))
	require.NoError(t, err)
	before := s.State()

	blobs.failing.Store(true)

	// WHEN: Mutating
	_, err = s.AddExpense(ctx, dec("10"), "coffee", nil)

	// THEN: The error surfaces and memory matches disk
	require.Error(t, err)
	assert.Equal(t, finance.ClassInternal, finance.Classify(err))
	assert.Equal(t, before, s.State())
}

func TestSession_FailedResetKeepsWalletAndHistory(t *testing.T) {
	// GIVEN: One store backing both the wallet and its history
	ctx := context.Background()
	blobs := &flakyBlobs{Memory: store.NewMemory()}
	log, _ := test.NewNullLogger()
	clock := &fakeClock{now: time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)}
	opts := Options{Blobs: blobs, Activity: blobs, Clock: clock, Logger: log, Rates: &fakeRates{rate: dec("1")}}
	s, err := Open(ctx, opts)
	require.NoError(t, err)
	_, err = s.SetWeeklyBudget(ctx, dec("100"))
	require.NoError(t, err)
	before := s.State()

	blobs.failing.Store(true)

	// WHEN: Resetting while saves fail
	err = s.Reset(ctx)

	// THEN: The error surfaces and nothing was wiped
	require.Error(t, err)
	assert.Equal(t, before, s.State())

	entries, err := s.Activity(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []finance.ActivityKind{finance.ActivityBudgetSet}, kinds(entries))

	// AND: A reopened session still sees the budget
	blobs.failing.Store(false)
	reopened, err := Open(ctx, opts)
	require.NoError(t, err)
	assertDecimal(t, "100", reopened.State().Budget.Amount)
}

package session

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/bensave/wallet/finance"
	"github.com/bensave/wallet/mobilemoney"
)

// Transfer is a snapshot of a mobile-money transfer. Status stays pending
// until the outcome has been applied to the wallet.
type Transfer struct {
	ID         string
	Request    mobilemoney.Request
	Status     mobilemoney.Status
	CreatedAt  time.Time
	ResolvedAt *time.Time
	Notice     finance.Notice
}

type transfer struct {
	pending    *mobilemoney.Pending
	status     mobilemoney.Status
	resolvedAt *time.Time
	notice     finance.Notice
	applied    chan struct{}
	appliedAt  time.Time // session clock; zero while pending
}

func (t *transfer) snapshot() Transfer {
	out := Transfer{
		ID:        t.pending.ID,
		Request:   t.pending.Request,
		Status:    t.status,
		CreatedAt: t.pending.CreatedAt,
		Notice:    t.notice,
	}
	if t.resolvedAt != nil {
		at := *t.resolvedAt
		out.ResolvedAt = &at
	}
	return out
}

// StartTransfer validates req against the current balance and sends the
// simulated approval prompt. The outcome is applied in the background.
func (s *Session) StartTransfer(ctx context.Context, req mobilemoney.Request) (Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.rollover(ctx, s.clock.Now()); err != nil {
		return Transfer{}, err
	}

	s.pruneTransfersLocked(s.clock.Now())

	p, err := s.sim.Initiate(req, s.state.Balance)
	if err != nil {
		return Transfer{}, err
	}

	t := &transfer{
		pending: p,
		status:  mobilemoney.StatusPending,
		notice:  mobilemoney.PromptSentNotice(p.Request),
		applied: make(chan struct{}),
	}
	s.transfers[p.ID] = t

	s.log.WithFields(logrus.Fields{
		"transfer_id": p.ID,
		"kind":        p.Request.Kind,
		"provider":    p.Request.Provider,
		"amount":      p.Request.Amount.String(),
	}).Info("Mobile money prompt sent")

	s.inflight.Add(1)
	go s.awaitTransfer(t)

	return t.snapshot(), nil
}

// awaitTransfer applies the outcome once the simulator resolves.
func (s *Session) awaitTransfer(t *transfer) {
	defer s.inflight.Done()
	<-t.pending.Done()
	outcome, _ := t.pending.Outcome()

	// The request context is long gone by now.
	ctx := context.Background()

	s.mu.Lock()
	defer s.mu.Unlock()
	defer close(t.applied)
	defer func() { t.appliedAt = s.clock.Now() }()

	req := t.pending.Request
	log := s.log.WithFields(logrus.Fields{
		"transfer_id": t.pending.ID,
		"kind":        req.Kind,
		"approved":    outcome.Approved,
	})

	err := s.mutate(ctx, func(st *finance.State) error {
		st.ApplyMobileMoneyResult(req.Kind, req.Amount, outcome.Approved)
		return nil
	})
	if err != nil {
		// mutate already logged; the outcome is lost like an unsaved write
		t.status = mobilemoney.StatusDeclined
		t.notice = finance.NoticeFor(err)
		resolved := outcome.ResolvedAt
		t.resolvedAt = &resolved
		return
	}

	t.status = outcome.Status()
	t.notice = mobilemoney.OutcomeNotice(req, outcome)
	resolved := outcome.ResolvedAt
	t.resolvedAt = &resolved

	if s.state.Balance.IsNegative() {
		log.WithField("balance", s.state.Balance.String()).Warn("Balance went negative after overlapping withdrawals")
	}
	log.Info("Mobile money transfer resolved")

	entry := finance.Entry{
		ID:             t.pending.ID,
		At:             outcome.ResolvedAt,
		IdempotencyKey: "transfer:" + t.pending.ID,
		Metadata: map[string]string{
			"provider": string(req.Provider),
			"phone":    req.PhoneNumber,
		},
	}
	switch {
	case !outcome.Approved:
		entry.Kind = finance.ActivityDeclined
		entry.Amount = decimal.Zero
		entry.Description = req.Kind.String() + " declined"
	case req.Kind == finance.Withdraw:
		entry.Kind = finance.ActivityWithdraw
		entry.Amount = req.Amount.Neg()
		entry.Description = "Withdrawal via " + req.Provider.DisplayName()
	default:
		entry.Kind = finance.ActivityDeposit
		entry.Amount = req.Amount
		entry.Description = "Deposit via " + req.Provider.DisplayName()
	}
	s.record(ctx, entry)
}

// pruneTransfersLocked forgets transfers applied more than the retention
// window ago. Pending transfers are always kept.
func (s *Session) pruneTransfersLocked(now time.Time) {
	for id, t := range s.transfers {
		if !t.appliedAt.IsZero() && now.Sub(t.appliedAt) > s.retention {
			delete(s.transfers, id)
		}
	}
}

// Transfer returns the current state of a transfer started by this session.
func (s *Session) Transfer(id string) (Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transfers[id]
	if !ok {
		return Transfer{}, finance.ErrTransferNotFound
	}
	return t.snapshot(), nil
}

// WaitTransfer blocks until the transfer's outcome has been applied or ctx
// ends. Cancelling ctx does not cancel the transfer.
func (s *Session) WaitTransfer(ctx context.Context, id string) (Transfer, error) {
	s.mu.Lock()
	t, ok := s.transfers[id]
	s.mu.Unlock()
	if !ok {
		return Transfer{}, finance.ErrTransferNotFound
	}

	select {
	case <-t.applied:
		return s.Transfer(id)
	case <-ctx.Done():
		return Transfer{}, ctx.Err()
	}
}

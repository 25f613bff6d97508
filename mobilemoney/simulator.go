/*
Package mobilemoney simulates phone-approved mobile-money transfers.

PURPOSE:
  A real mobile-money transfer sends an approval prompt to the user's
  phone and completes when they accept it. Simulator models that: it
  validates the request synchronously, then resolves a Pending handle
  after Delay to approved or declined.

FLOW:
  1. Initiate(req, balance) validates phone, amount, provider and, for a
     withdrawal, that amount <= balance at initiation time
  2. The returned Pending resolves after Delay; each resolution draws once
     from the RandSource: approved iff draw < ApprovalRate
  3. The caller applies the Outcome (finance.State.ApplyMobileMoneyResult)

  Resolution cannot be cancelled. Waiting on a context only stops the
  waiter, not the transfer.

SEE ALSO:
  - session/session.go: Applies outcomes and persists
  - finance/state.go: ApplyMobileMoneyResult
*/
package mobilemoney

import (
	"context"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bensave/wallet/finance"
)

const (
	DefaultDelay        = 3 * time.Second
	DefaultApprovalRate = 0.8
)

// phonePattern is a Ghanaian mobile number: 0, a digit 2-9, 8 more digits.
var phonePattern = regexp.MustCompile(`^0[2-9][0-9]{8}$`)

// ValidatePhoneNumber checks the local mobile number format.
func ValidatePhoneNumber(number string) error {
	if !phonePattern.MatchString(number) {
		return finance.ErrInvalidPhoneNumber
	}
	return nil
}

// =============================================================================
// PROVIDERS
// =============================================================================

type Provider string

const (
	MTN        Provider = "mtn"
	Telecel    Provider = "telecel"
	AirtelTigo Provider = "airtel-tigo"
)

var providerNames = map[Provider]string{
	MTN:        "MTN Mobile Money",
	Telecel:    "Telecel Cash",
	AirtelTigo: "AirtelTigo Money",
}

// ParseProvider accepts a provider id in any case.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := providerNames[p]; !ok {
		return "", finance.ErrInvalidProvider
	}
	return p, nil
}

// Providers lists the supported providers.
func Providers() []Provider {
	return []Provider{MTN, Telecel, AirtelTigo}
}

// DisplayName is the full product name, e.g. "MTN Mobile Money".
func (p Provider) DisplayName() string { return providerNames[p] }

// ShortName is the label used in prompts, e.g. "AIRTELTIGO".
func (p Provider) ShortName() string {
	return strings.ToUpper(strings.ReplaceAll(string(p), "-", ""))
}

// =============================================================================
// REQUEST / OUTCOME
// =============================================================================

type Request struct {
	Provider    Provider
	Kind        finance.TransferKind
	PhoneNumber string
	Amount      decimal.Decimal
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDeclined Status = "declined"
)

type Outcome struct {
	Approved   bool
	ResolvedAt time.Time
}

func (o Outcome) Status() Status {
	if o.Approved {
		return StatusApproved
	}
	return StatusDeclined
}

// RandSource yields uniform draws in [0, 1).
type RandSource interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// =============================================================================
// SIMULATOR
// =============================================================================

type Simulator struct {
	Delay        time.Duration
	ApprovalRate float64
	Rand         RandSource

	// After returns a channel that fires once d has elapsed. Defaults to time.After.
	After func(d time.Duration) <-chan time.Time
	Now   func() time.Time
}

// NewSimulator returns a simulator with the default delay and approval rate
// and an unseeded random source.
func NewSimulator() *Simulator {
	return &Simulator{
		Delay:        DefaultDelay,
		ApprovalRate: DefaultApprovalRate,
	}
}

// Validate checks req against the balance at this instant.
func (s *Simulator) Validate(req Request, balance decimal.Decimal) error {
	if _, ok := providerNames[req.Provider]; !ok {
		return finance.ErrInvalidProvider
	}
	if req.Kind != finance.Deposit && req.Kind != finance.Withdraw {
		return finance.ErrInvalidTransferKind
	}
	if err := ValidatePhoneNumber(strings.TrimSpace(req.PhoneNumber)); err != nil {
		return err
	}
	if !req.Amount.IsPositive() {
		return finance.ErrInvalidAmount
	}
	if req.Kind == finance.Withdraw && req.Amount.GreaterThan(balance) {
		return &finance.InsufficientBalanceError{Available: balance, Requested: req.Amount}
	}
	return nil
}

// Initiate validates req and starts the simulated approval. The returned
// handle always resolves, after Delay.
func (s *Simulator) Initiate(req Request, balance decimal.Decimal) (*Pending, error) {
	if err := s.Validate(req, balance); err != nil {
		return nil, err
	}
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)

	p := &Pending{
		ID:        uuid.NewString(),
		Request:   req,
		CreatedAt: s.now(),
		done:      make(chan struct{}),
	}
	fire := s.after()(s.Delay)
	go func() {
		<-fire
		p.resolve(Outcome{
			Approved:   s.source().Float64() < s.ApprovalRate,
			ResolvedAt: s.now(),
		})
	}()
	return p, nil
}

func (s *Simulator) source() RandSource {
	if s.Rand != nil {
		return s.Rand
	}
	return globalRand{}
}

func (s *Simulator) after() func(time.Duration) <-chan time.Time {
	if s.After != nil {
		return s.After
	}
	return time.After
}

func (s *Simulator) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// =============================================================================
// PENDING - Handle to an unresolved transfer
// =============================================================================

type Pending struct {
	ID        string
	Request   Request
	CreatedAt time.Time

	mu      sync.Mutex
	outcome *Outcome
	done    chan struct{}
}

func (p *Pending) resolve(o Outcome) {
	p.mu.Lock()
	p.outcome = &o
	p.mu.Unlock()
	close(p.done)
}

// Done is closed once the transfer has resolved.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Outcome returns the result if resolved.
func (p *Pending) Outcome() (Outcome, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.outcome == nil {
		return Outcome{}, false
	}
	return *p.outcome, true
}

// Status is pending until resolution, then approved or declined.
func (p *Pending) Status() Status {
	if o, ok := p.Outcome(); ok {
		return o.Status()
	}
	return StatusPending
}

// Wait blocks until the transfer resolves or ctx is done.
func (p *Pending) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-p.done:
		o, _ := p.Outcome()
		return o, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

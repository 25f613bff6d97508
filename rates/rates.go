/*
Package rates resolves exchange rates into the local currency.

PURPOSE:
  Source answers "how many cedis is one unit of X worth?". It prefers a
  live lookup and falls back to a static table, always telling the caller
  which one it used.

LIVE LOOKUP:
  GET {BaseURL}/latest?base={code}&symbols={target}
  Expected body: {"success": true, "rates": {"GHS": 11.89}}
  Bounded by Timeout (default 5s).

FALLBACK:
  Any live failure (transport error, timeout, non-2xx, malformed body,
  success=false, missing or non-positive rate) falls back to the static
  table. Only a currency absent from both is an error
  (finance.ErrRateUnavailable).

CONCURRENCY:
  Concurrent lookups of the same currency share one HTTP request
  (singleflight). The shared request is bounded by Timeout only; a caller
  whose ctx ends falls back without cancelling it for the others.

SEE ALSO:
  - internal/config/config.go: Base URL, timeout and fallback table
  - session/session.go: Convert and the pending conversion
*/
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/bensave/wallet/finance"
)

const (
	DefaultBaseURL = "https://api.exchangerate.host"
	DefaultTimeout = 5 * time.Second
)

// DefaultFallback is the offline table, approximate rates as of September 2025.
func DefaultFallback() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"USD": decimal.RequireFromString("11.89"),
		"EUR": decimal.RequireFromString("13.12"),
		"GBP": decimal.RequireFromString("14.98"),
		"NGN": decimal.RequireFromString("0.0074"),
		"ZAR": decimal.RequireFromString("0.66"),
		"CAD": decimal.RequireFromString("8.72"),
		"AUD": decimal.RequireFromString("7.98"),
		"JPY": decimal.RequireFromString("0.082"),
		"CNY": decimal.RequireFromString("1.67"),
		"INR": decimal.RequireFromString("0.14"),
	}
}

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

// NormalizeCode upper-cases and validates a three-letter currency code.
func NormalizeCode(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if !currencyCode.MatchString(c) {
		return "", finance.ErrInvalidCurrency
	}
	return c, nil
}

// =============================================================================
// TYPES
// =============================================================================

// Rate is the value of one unit of Currency in Target.
type Rate struct {
	Currency string
	Target   string
	Value    decimal.Decimal
	Live     bool // false when the static table was used
	AsOf     time.Time
}

// Conversion is a computed, not yet applied, conversion.
type Conversion struct {
	Rate      Rate
	Amount    decimal.Decimal // in Rate.Currency
	Converted decimal.Decimal // in Rate.Target
}

// SourceLabel is the "Live rates" / "Offline rates" label shown to users.
func (r Rate) SourceLabel() string {
	if r.Live {
		return "Live rates"
	}
	return "Offline rates"
}

// =============================================================================
// SOURCE
// =============================================================================

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Target   string
	Fallback map[string]decimal.Decimal
}

type Source struct {
	client   *http.Client
	baseURL  string
	timeout  time.Duration
	target   string
	fallback map[string]decimal.Decimal
	now      func() time.Time
	group    singleflight.Group
	log      logrus.FieldLogger
}

// NewSource builds a Source. Zero config fields take the defaults; a nil
// client uses http.DefaultClient with the per-request timeout.
func NewSource(cfg Config, client *http.Client, log logrus.FieldLogger) *Source {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Target == "" {
		cfg.Target = finance.LocalCurrency
	}
	if cfg.Fallback == nil {
		cfg.Fallback = DefaultFallback()
	}
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	fallback := make(map[string]decimal.Decimal, len(cfg.Fallback))
	for code, v := range cfg.Fallback {
		fallback[strings.ToUpper(code)] = v
	}

	return &Source{
		client:   client,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		timeout:  cfg.Timeout,
		target:   strings.ToUpper(cfg.Target),
		fallback: fallback,
		now:      time.Now,
		log:      log.WithField("component", "rates"),
	}
}

// GetRate resolves the rate for one unit of from. It never surfaces a live
// failure; see the FALLBACK section above.
func (s *Source) GetRate(ctx context.Context, from string) (Rate, error) {
	code, err := NormalizeCode(from)
	if err != nil {
		return Rate{}, err
	}
	if code == s.target {
		return Rate{Currency: code, Target: s.target, Value: decimal.NewFromInt(1), Live: false, AsOf: s.now()}, nil
	}

	// The lookup is shared, so it must outlive any one caller's ctx.
	ch := s.group.DoChan(code, func() (any, error) {
		return s.fetchLive(context.WithoutCancel(ctx), code)
	})
	select {
	case res := <-ch:
		if res.Err == nil {
			return Rate{Currency: code, Target: s.target, Value: res.Val.(decimal.Decimal), Live: true, AsOf: s.now()}, nil
		}
		err = res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}

	s.log.WithError(err).WithField("currency", code).Info("Using fallback rates")

	if rate, ok := s.fallback[code]; ok {
		return Rate{Currency: code, Target: s.target, Value: rate, Live: false, AsOf: s.now()}, nil
	}
	return Rate{}, &finance.RateUnavailableError{Currency: code}
}

// Convert resolves the rate for from and applies it to amount.
func (s *Source) Convert(ctx context.Context, from string, amount decimal.Decimal) (Conversion, error) {
	if !amount.IsPositive() {
		return Conversion{}, finance.ErrInvalidAmount
	}
	rate, err := s.GetRate(ctx, from)
	if err != nil {
		return Conversion{}, err
	}
	return Conversion{
		Rate:      rate,
		Amount:    amount,
		Converted: amount.Mul(rate.Value),
	}, nil
}

// Fallback returns a copy of the static table.
func (s *Source) Fallback() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(s.fallback))
	for k, v := range s.fallback {
		out[k] = v
	}
	return out
}

// =============================================================================
// LIVE LOOKUP
// =============================================================================

type liveResponse struct {
	Success bool                       `json:"success"`
	Rates   map[string]decimal.Decimal `json:"rates"`
}

func (s *Source) fetchLive(ctx context.Context, code string) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("base", code)
	q.Set("symbols", s.target)
	endpoint := s.baseURL + "/latest?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decimal.Zero, fmt.Errorf("fetch rates: unexpected status %d", resp.StatusCode)
	}

	var body liveResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("decode rates: %w", err)
	}
	if !body.Success {
		return decimal.Zero, fmt.Errorf("invalid API response: success=false")
	}
	rate, ok := body.Rates[s.target]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("invalid API response: no %s rate", s.target)
	}
	return rate, nil
}

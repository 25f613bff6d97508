package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bensave/wallet/finance"
)

func quietLogger() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

func newTestSource(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewSource(Config{BaseURL: srv.URL, Timeout: timeout}, srv.Client(), quietLogger())
}

func TestGetRate_Live(t *testing.T) {
	// GIVEN: A rates API answering for USD
	var gotQuery string
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		assert.Equal(t, "/latest", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"rates":{"GHS":12.05}}`))
	}, time.Second)

	// WHEN: Resolving a lower-case code
	rate, err := src.GetRate(context.Background(), "usd")

	// THEN: The live value is used and labelled live
	require.NoError(t, err)
	assert.True(t, rate.Live)
	assert.Equal(t, "Live rates", rate.SourceLabel())
	assert.Equal(t, "USD", rate.Currency)
	assert.Equal(t, "GHS", rate.Target)
	assert.True(t, decimal.RequireFromString("12.05").Equal(rate.Value))
	assert.Contains(t, gotQuery, "base=USD")
	assert.Contains(t, gotQuery, "symbols=GHS")
}

func TestGetRate_TimeoutFallsBack(t *testing.T) {
	// GIVEN: An API slower than the lookup timeout
	release := make(chan struct{})
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	// WHEN: Resolving USD
	rate, err := src.GetRate(context.Background(), "USD")

	// THEN: The static table answers and the rate is not live
	require.NoError(t, err)
	assert.False(t, rate.Live)
	assert.Equal(t, "Offline rates", rate.SourceLabel())
	assert.True(t, DefaultFallback()["USD"].Equal(rate.Value))
}

func TestGetRate_CancelledCallerDoesNotSpoilSharedLookup(t *testing.T) {
	// GIVEN: A slow API and a first caller waiting on it
	arrived := make(chan struct{}, 4)
	release := make(chan struct{})
	var hits atomic.Int32
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		arrived <- struct{}{}
		<-release
		w.Write([]byte(`{"success":true,"rates":{"GHS":12.05}}`))
	}, 2*time.Second)

	first, cancel := context.WithCancel(context.Background())
	firstDone := make(chan Rate, 1)
	go func() {
		rate, _ := src.GetRate(first, "USD")
		firstDone <- rate
	}()
	<-arrived

	secondDone := make(chan Rate, 1)
	go func() {
		rate, err := src.GetRate(context.Background(), "USD")
		assert.NoError(t, err)
		secondDone <- rate
	}()
	time.Sleep(20 * time.Millisecond)

	// WHEN: The first caller gives up before the API answers
	cancel()
	rate := <-firstDone
	assert.False(t, rate.Live, "the cancelled caller falls back")
	close(release)

	// THEN: The other caller still gets the live rate
	rate = <-secondDone
	assert.True(t, rate.Live)
	assert.True(t, decimal.RequireFromString("12.05").Equal(rate.Value))
	assert.Equal(t, int32(1), hits.Load(), "one shared request")
}

func TestGetRate_BadResponsesFallBack(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"success":true,"rates":{"GHS":12}}`},
		{"malformed body", http.StatusOK, `not json`},
		{"success false", http.StatusOK, `{"success":false}`},
		{"missing target", http.StatusOK, `{"success":true,"rates":{"EUR":0.9}}`},
		{"zero rate", http.StatusOK, `{"success":true,"rates":{"GHS":0}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}, time.Second)

			rate, err := src.GetRate(context.Background(), "EUR")

			require.NoError(t, err)
			assert.False(t, rate.Live)
			assert.True(t, DefaultFallback()["EUR"].Equal(rate.Value))
		})
	}
}

func TestGetRate_UnknownCurrencyOffline(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, time.Second)

	_, err := src.GetRate(context.Background(), "XYZ")

	var rateErr *finance.RateUnavailableError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, "XYZ", rateErr.Currency)
	assert.ErrorIs(t, err, finance.ErrRateUnavailable)
	assert.Equal(t, finance.ClassExternalUnavailable, finance.Classify(err))
}

func TestGetRate_UnknownCurrencyLive(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"rates":{"GHS":0.5}}`))
	}, time.Second)

	rate, err := src.GetRate(context.Background(), "XYZ")

	require.NoError(t, err)
	assert.True(t, rate.Live)
}

func TestGetRate_TargetCurrency(t *testing.T) {
	var calls atomic.Int32
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}, time.Second)

	rate, err := src.GetRate(context.Background(), "GHS")

	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1).Equal(rate.Value))
	assert.Zero(t, calls.Load(), "no lookup for the local currency")
}

func TestGetRate_InvalidCode(t *testing.T) {
	src := NewSource(Config{}, nil, quietLogger())

	for _, code := range []string{"", "US", "USDT", "U$D", "123"} {
		_, err := src.GetRate(context.Background(), code)
		assert.ErrorIs(t, err, finance.ErrInvalidCurrency, code)
	}
}

func TestConvert(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"rates":{"GHS":12}}`))
	}, time.Second)

	c, err := src.Convert(context.Background(), "USD", decimal.RequireFromString("2.5"))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(30).Equal(c.Converted))
	assert.True(t, decimal.RequireFromString("2.5").Equal(c.Amount))

	for _, bad := range []string{"0", "-1"} {
		_, err := src.Convert(context.Background(), "USD", decimal.RequireFromString(bad))
		assert.ErrorIs(t, err, finance.ErrInvalidAmount, bad)
	}
}

func TestNewSource_FallbackCodesNormalized(t *testing.T) {
	src := NewSource(Config{
		BaseURL:  "http://127.0.0.1:0",
		Fallback: map[string]decimal.Decimal{"usd": decimal.NewFromInt(10)},
	}, nil, quietLogger())

	table := src.Fallback()
	assert.Len(t, table, 1)
	assert.True(t, decimal.NewFromInt(10).Equal(table["USD"]))
}

func TestAppliedNotice(t *testing.T) {
	n := AppliedNotice(Conversion{Converted: decimal.NewFromInt(1189)})
	assert.Equal(t, "Money Added!", n.Title)
	assert.Contains(t, n.Message, "₵1,189.00")
}

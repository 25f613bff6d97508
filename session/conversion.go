package session

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/bensave/wallet/finance"
	"github.com/bensave/wallet/rates"
)

// Rate looks up the rate for one unit of currency.
func (s *Session) Rate(ctx context.Context, currency string) (rates.Rate, error) {
	return s.rates.GetRate(ctx, currency)
}

// Convert computes a conversion into the local currency and holds it as
// the pending conversion. Nothing is credited until ApplyConversion.
// A failed conversion clears any earlier pending one.
func (s *Session) Convert(ctx context.Context, currency string, amount decimal.Decimal) (rates.Conversion, error) {
	// The lookup may wait on the network; keep it outside the lock.
	conv, err := s.rates.Convert(ctx, currency, amount)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.clearConversionLocked()
		return rates.Conversion{}, err
	}

	s.state.SetPendingConversion(conv.Converted)
	s.conversion = &conv

	s.log.WithFields(logrus.Fields{
		"currency":  conv.Rate.Currency,
		"amount":    conv.Amount.String(),
		"converted": conv.Converted.String(),
		"live":      conv.Rate.Live,
	}).Debug("Conversion computed")
	return conv, nil
}

// ApplyConversion credits the pending conversion to the balance and to
// savings.
func (s *Session) ApplyConversion(ctx context.Context) (rates.Conversion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.PendingConversion == nil || s.conversion == nil {
		return rates.Conversion{}, finance.ErrNoPendingConversion
	}
	conv := *s.conversion
	amount := *s.state.PendingConversion

	now := s.clock.Now()
	if err := s.mutate(ctx, func(st *finance.State) error {
		st.ApplyConversion(amount)
		return nil
	}); err != nil {
		return rates.Conversion{}, err
	}
	s.conversion = nil

	s.log.WithField("amount", amount.String()).Info("Conversion applied")
	s.record(ctx, finance.Entry{
		Kind:        finance.ActivityConversion,
		At:          now,
		Amount:      amount,
		Description: "Converted " + conv.Amount.String() + " " + conv.Rate.Currency,
		Metadata: map[string]string{
			"currency": conv.Rate.Currency,
			"rate":     conv.Rate.Value.String(),
			"source":   conv.Rate.SourceLabel(),
		},
	})
	return conv, nil
}

// DiscardConversion drops the pending conversion, if any.
func (s *Session) DiscardConversion() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearConversionLocked()
}

func (s *Session) clearConversionLocked() {
	s.state.ClearPendingConversion()
	s.conversion = nil
}

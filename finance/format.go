package finance

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FORMATTING
// =============================================================================

var hundred = decimal.NewFromInt(100)

// FormatCurrency renders d with two decimals and thousands separators,
// e.g. 1234.5 -> "1,234.50".
func FormatCurrency(d decimal.Decimal) string {
	s := d.StringFixed(2)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	intPart, frac, _ := strings.Cut(s, ".")
	if len(intPart) > 3 {
		var b strings.Builder
		lead := len(intPart) % 3
		if lead > 0 {
			b.WriteString(intPart[:lead])
		}
		for i := lead; i < len(intPart); i += 3 {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(intPart[i : i+3])
		}
		intPart = b.String()
	}
	return sign + intPart + "." + frac
}

// FormatCedi prefixes FormatCurrency with the local currency symbol.
func FormatCedi(d decimal.Decimal) string {
	return CurrencySymbol + FormatCurrency(d)
}

// FormatPercent renders a percentage rounded to a whole number, e.g. "85%".
func FormatPercent(p decimal.Decimal) string {
	return p.Round(0).String() + "%"
}

// =============================================================================
// PARSING - Raw presentation input
// =============================================================================

// DeadlineLayout is the date format accepted for savings deadlines.
const DeadlineLayout = "2006-01-02"

// ParseAmount parses a user-entered amount. It must be a positive number.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseDeadline parses a YYYY-MM-DD date in loc. An empty string is
// ErrMissingDeadline.
func ParseDeadline(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrMissingDeadline
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DeadlineLayout, s, loc)
	if err != nil {
		return time.Time{}, ErrMissingDeadline
	}
	return t, nil
}

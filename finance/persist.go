/*
persist.go - Persisted blob format for State

PURPOSE:
  Serializes State to a flat JSON object stored under a single key and
  reads it back. The format is shared with earlier releases, so unknown
  fields are ignored and missing ones default.

BLOB FORMAT (key "bensaveData"):
  {
    "currentBalance":  number,
    "weeklyBudget":    number,
    "weeklySpent":     number,
    "budgetStartDate": number | null,   // epoch milliseconds
    "savingsGoal":     number,
    "savedAmount":     number,
    "savingsDeadline": number | null    // epoch milliseconds
  }

  Absent timestamps are written as null, never omitted.

DEGRADATION:
  Load never fails. Each field is decoded on its own; a missing or
  malformed field falls back to its zero value and is listed in the
  LoadReport. An unreadable blob yields the first-run state.

SEE ALSO:
  - finance/store/memory.go: In-memory BlobStore
  - store/sqlite/sqlite.go: SQLite BlobStore
*/
package finance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultKey is the blob key the wallet state lives under.
const DefaultKey = "bensaveData"

// Blob field names.
const (
	fieldBalance         = "currentBalance"
	fieldWeeklyBudget    = "weeklyBudget"
	fieldWeeklySpent     = "weeklySpent"
	fieldBudgetStartDate = "budgetStartDate"
	fieldSavingsGoal     = "savingsGoal"
	fieldSavedAmount     = "savedAmount"
	fieldSavingsDeadline = "savingsDeadline"
)

// =============================================================================
// BLOB STORE - Durable key-value storage
// =============================================================================

// BlobStore persists opaque values by key. Writes are last-writer-wins.
type BlobStore interface {
	// Get returns the value for key. found is false if nothing is stored.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Put overwrites the value for key.
	Put(ctx context.Context, key string, value []byte) error
}

// =============================================================================
// ENCODING
// =============================================================================

type blob struct {
	CurrentBalance  json.Number `json:"currentBalance"`
	WeeklyBudget    json.Number `json:"weeklyBudget"`
	WeeklySpent     json.Number `json:"weeklySpent"`
	BudgetStartDate *int64      `json:"budgetStartDate"`
	SavingsGoal     json.Number `json:"savingsGoal"`
	SavedAmount     json.Number `json:"savedAmount"`
	SavingsDeadline *int64      `json:"savingsDeadline"`
}

// Encode serializes s into the blob format.
func Encode(s State) ([]byte, error) {
	b := blob{
		CurrentBalance:  json.Number(s.Balance.String()),
		WeeklyBudget:    json.Number(s.Budget.Amount.String()),
		WeeklySpent:     json.Number(s.Budget.Spent.String()),
		BudgetStartDate: epochMillis(s.Budget.PeriodStart),
		SavingsGoal:     json.Number(s.Savings.Goal.String()),
		SavedAmount:     json.Number(s.Savings.Saved.String()),
		SavingsDeadline: epochMillis(s.Savings.Deadline),
	}
	return json.Marshal(b)
}

func epochMillis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

// LoadReport describes how a blob was decoded.
type LoadReport struct {
	Found     bool     // a blob existed under the key
	Missing   []string // fields absent from the blob
	Malformed []string // fields present but unusable
	Err       error    // blob unreadable or store failure
}

// Degraded reports whether any field fell back to its default because it
// was malformed or the blob could not be read.
func (r LoadReport) Degraded() bool {
	return r.Err != nil || len(r.Malformed) > 0
}

// AsError summarizes the degradation, wrapping ErrPersistenceDegraded.
// Returns nil when nothing degraded.
func (r LoadReport) AsError() error {
	if !r.Degraded() {
		return nil
	}
	if r.Err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceDegraded, r.Err)
	}
	return fmt.Errorf("%w: malformed fields %s", ErrPersistenceDegraded, strings.Join(r.Malformed, ", "))
}

// Decode parses a blob field by field. It never fails; see LoadReport.
func Decode(data []byte) (*State, LoadReport) {
	report := LoadReport{Found: true}
	s := NewState()

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		report.Err = fmt.Errorf("decode blob: %w", err)
		return s, report
	}

	s.Balance = report.number(fields, fieldBalance, true)
	s.Budget.Amount = report.number(fields, fieldWeeklyBudget, false)
	s.Budget.Spent = report.number(fields, fieldWeeklySpent, false)
	s.Budget.PeriodStart = report.timestamp(fields, fieldBudgetStartDate)
	s.Savings.Goal = report.number(fields, fieldSavingsGoal, false)
	s.Savings.Saved = report.number(fields, fieldSavedAmount, false)
	s.Savings.Deadline = report.timestamp(fields, fieldSavingsDeadline)
	return s, report
}

func (r *LoadReport) number(fields map[string]json.RawMessage, name string, allowNegative bool) decimal.Decimal {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		r.Missing = append(r.Missing, name)
		return decimal.Zero
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil || (!allowNegative && d.IsNegative()) {
		r.Malformed = append(r.Malformed, name)
		return decimal.Zero
	}
	return d
}

func (r *LoadReport) timestamp(fields map[string]json.RawMessage, name string) *time.Time {
	raw, ok := fields[name]
	if !ok {
		r.Missing = append(r.Missing, name)
		return nil
	}
	if isNull(raw) {
		return nil
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil || d.IsNegative() {
		r.Malformed = append(r.Malformed, name)
		return nil
	}
	t := time.UnixMilli(d.IntPart())
	return &t
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// =============================================================================
// PERSISTENCE - Save/Load through a BlobStore
// =============================================================================

type Persistence struct {
	Blobs BlobStore
	Key   string
}

func NewPersistence(blobs BlobStore) *Persistence {
	return &Persistence{Blobs: blobs, Key: DefaultKey}
}

// Save writes s synchronously. The pending conversion is not persisted.
func (p *Persistence) Save(ctx context.Context, s State) error {
	data, err := Encode(s)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := p.Blobs.Put(ctx, p.Key, data); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Load reads the stored state. It never fails: a missing blob is a first
// run, and a store error or bad blob degrades to defaults.
func (p *Persistence) Load(ctx context.Context) (*State, LoadReport) {
	data, found, err := p.Blobs.Get(ctx, p.Key)
	if err != nil {
		return NewState(), LoadReport{Err: fmt.Errorf("load state: %w", err)}
	}
	if !found {
		return NewState(), LoadReport{}
	}
	return Decode(data)
}

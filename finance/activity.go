/*
activity.go - Append-only activity log

PURPOSE:
  Records every effect applied to a wallet: budget changes, expenses,
  transfers, conversions and weekly rollovers. The log is an audit trail
  for display ("what happened to my money?"). It is never replayed: the
  persisted blob stays the source of truth for State.

INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete (Reset wipes the whole log)
  2. IDEMPOTENT: An entry whose key already exists is rejected with
     ErrDuplicateIdempotencyKey, so retried writes never double-log

SEE ALSO:
  - finance/store/memory.go: In-memory implementation
  - store/sqlite/sqlite.go: SQLite implementation
*/
package finance

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrDuplicateIdempotencyKey is returned when an entry with the same
// idempotency key was already logged. Safe to ignore on retries.
var ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

type ActivityKind string

const (
	ActivityBudgetSet  ActivityKind = "budget_set"
	ActivityExpense    ActivityKind = "expense"
	ActivityDeposit    ActivityKind = "deposit"
	ActivityWithdraw   ActivityKind = "withdraw"
	ActivityDeclined   ActivityKind = "transfer_declined"
	ActivityConversion ActivityKind = "conversion"
	ActivityRollover   ActivityKind = "rollover"
	ActivityGoalSet    ActivityKind = "goal_set"
	ActivityReset      ActivityKind = "reset"
)

// Entry is one line of the activity log.
type Entry struct {
	ID             string
	Kind           ActivityKind
	At             time.Time
	Amount         decimal.Decimal // signed effect on the balance, or the configured amount
	Description    string
	BalanceAfter   decimal.Decimal
	IdempotencyKey string
	Metadata       map[string]string
}

// ActivityLog stores entries. Recent returns the newest first.
type ActivityLog interface {
	Append(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// NopActivityLog discards entries.
type NopActivityLog struct{}

func (NopActivityLog) Append(context.Context, Entry) error           { return nil }
func (NopActivityLog) Recent(context.Context, int) ([]Entry, error) { return nil, nil }

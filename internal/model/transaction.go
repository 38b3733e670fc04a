package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Direction classifies a transaction as money in or money out.
type Direction string

const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

// DirectionOf returns expense for negative amounts and income otherwise.
func DirectionOf(raw decimal.Decimal) Direction {
	if raw.IsNegative() {
		return DirectionExpense
	}
	return DirectionIncome
}

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	return d == DirectionIncome || d == DirectionExpense
}

// Signed returns the unsigned amount negated for expenses. Zero stays
// unsigned so it never renders as "-0.00".
func (d Direction) Signed(amount decimal.Decimal) decimal.Decimal {
	if d == DirectionExpense && !amount.IsZero() {
		return amount.Neg()
	}
	return amount
}

// MatchState is the reconciliation state of one imported row.
type MatchState string

const (
	StateUnmatched       MatchState = "unmatched"
	StateAutoMatched     MatchState = "auto-matched"
	StateManuallyMatched MatchState = "manually-matched"
	StateCreated         MatchState = "created"
)

// Uncategorized is the category of rows that have not been matched.
const Uncategorized = "uncategorized"

// DateFormat is the calendar-date layout used in files and index keys.
const DateFormat = "2006-01-02"

// ImportedTransaction is one row of a bank export. It lives only as long
// as the import batch it belongs to.
type ImportedTransaction struct {
	ID             int // zero-based row index within the batch
	Date           time.Time
	Description    string
	Amount         decimal.Decimal // always >= 0, sign lives in Direction
	Direction      Direction
	Category       string
	State          MatchState
	LinkedLedgerID string
	Warnings       []string // non-fatal parse problems, empty for clean rows
}

// Flagged reports whether the row was kept with defaulted fields.
func (t ImportedTransaction) Flagged() bool {
	return len(t.Warnings) > 0
}

// CheckInvariants verifies the amount, direction and state/link pairing.
func (t ImportedTransaction) CheckInvariants() error {
	if t.Amount.IsNegative() {
		return fmt.Errorf("row %d: negative amount %s", t.ID, t.Amount)
	}
	if !t.Direction.Valid() {
		return fmt.Errorf("row %d: invalid direction %q", t.ID, t.Direction)
	}
	switch t.State {
	case StateUnmatched:
		if t.LinkedLedgerID != "" {
			return fmt.Errorf("row %d: unmatched row linked to %s", t.ID, t.LinkedLedgerID)
		}
	case StateAutoMatched, StateManuallyMatched, StateCreated:
		if t.LinkedLedgerID == "" {
			return fmt.Errorf("row %d: %s row has no linked ledger id", t.ID, t.State)
		}
	default:
		return fmt.Errorf("row %d: invalid state %q", t.ID, t.State)
	}
	return nil
}

// DateKey normalizes a time to its calendar date string.
func DateKey(t time.Time) string {
	return t.Format(DateFormat)
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

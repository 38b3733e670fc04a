package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerTransaction is a durable income/expense entry owned by one owner.
type LedgerTransaction struct {
	ID             string
	Description    string
	Amount         decimal.Decimal // unsigned
	Direction      Direction
	Date           time.Time
	Category       string
	CreatedAt      time.Time
	ReconciledWith string // back-reference written after a confirmed match
	ImportKey      string // idempotency key for rows created from an import
}

// LedgerFields holds the caller-supplied fields of a new ledger transaction.
type LedgerFields struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Direction   Direction
	Category    string
	ImportKey   string
}

// MatchResult is the Matcher's verdict for one imported row.
type MatchResult struct {
	ImportedID         int
	CandidateLedgerIDs []string // best first
	Selected           string   // empty when nothing qualified automatically
}

// HasSelection reports whether an automatic match was chosen.
func (r MatchResult) HasSelection() bool {
	return r.Selected != ""
}

// CreateIntent asks the Materializer to create a ledger transaction for a row.
type CreateIntent struct {
	ImportedID  int
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Direction   Direction
	Category    string
}

// Fields converts the intent to ledger write fields under an import key.
func (c CreateIntent) Fields(importKey string) LedgerFields {
	return LedgerFields{
		Date:        c.Date,
		Description: c.Description,
		Amount:      c.Amount,
		Direction:   c.Direction,
		Category:    c.Category,
		ImportKey:   importKey,
	}
}

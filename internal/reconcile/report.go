package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/reconcile/internal/model"
)

// Report is the final view of a batch for a person or a client.
type Report struct {
	Owner      string      `json:"owner"`
	Batch      string      `json:"batch"`
	LedgerSize int         `json:"ledger_size"` // ledger transactions matched against
	Summary    Summary     `json:"summary"`
	Rows       []RowReport `json:"rows"`
}

// Summary counts rows by state.
type Summary struct {
	Total           int `json:"total"`
	AutoMatched     int `json:"auto_matched"`
	ManuallyMatched int `json:"manually_matched"`
	Created         int `json:"created"`
	Unmatched       int `json:"unmatched"`
	Flagged         int `json:"flagged"`
}

// RowReport is one imported row with its outcome.
type RowReport struct {
	ID             int              `json:"id"`
	Date           string           `json:"date"`
	Description    string           `json:"description"`
	Amount         decimal.Decimal  `json:"amount"`
	Direction      model.Direction  `json:"direction"`
	Category       string           `json:"category"`
	State          model.MatchState `json:"state"`
	LinkedLedgerID string           `json:"linked_ledger_id,omitempty"`
	Warnings       []string         `json:"warnings,omitempty"`
	Candidates     []Candidate      `json:"candidates,omitempty"`
}

// Candidate is a ledger transaction offered for a row, for display.
type Candidate struct {
	ID          string          `json:"id"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Direction   model.Direction `json:"direction"`
	Category    string          `json:"category"`
}

// BuildReport assembles a Report. Matched rows list their ranked
// candidates; unmatched rows list every same-day ledger transaction so a
// person can pick one.
func BuildReport(owner, batchID string, rows []model.ImportedTransaction, results []model.MatchResult, ix *Index) *Report {
	rep := &Report{
		Owner:      owner,
		Batch:      batchID,
		LedgerSize: ix.Len(),
		Rows:       make([]RowReport, 0, len(rows)),
	}

	byRow := make(map[int]model.MatchResult, len(results))
	for _, r := range results {
		byRow[r.ImportedID] = r
	}

	for _, row := range rows {
		rr := RowReport{
			ID:             row.ID,
			Date:           model.DateKey(row.Date),
			Description:    row.Description,
			Amount:         row.Amount,
			Direction:      row.Direction,
			Category:       row.Category,
			State:          row.State,
			LinkedLedgerID: row.LinkedLedgerID,
			Warnings:       row.Warnings,
		}

		switch row.State {
		case model.StateUnmatched:
			rep.Summary.Unmatched++
			for _, t := range SameDay(row, ix) {
				rr.Candidates = append(rr.Candidates, candidateView(t))
			}
		case model.StateAutoMatched:
			rep.Summary.AutoMatched++
			rr.Candidates = candidateViews(byRow[row.ID].CandidateLedgerIDs, ix)
		case model.StateManuallyMatched:
			rep.Summary.ManuallyMatched++
			rr.Candidates = candidateViews(byRow[row.ID].CandidateLedgerIDs, ix)
		case model.StateCreated:
			rep.Summary.Created++
		}
		if row.Flagged() {
			rep.Summary.Flagged++
		}
		rep.Summary.Total++
		rep.Rows = append(rep.Rows, rr)
	}
	return rep
}

func candidateViews(ids []string, ix *Index) []Candidate {
	var out []Candidate
	for _, id := range ids {
		if t, ok := ix.Get(id); ok {
			out = append(out, candidateView(t))
		}
	}
	return out
}

func candidateView(t model.LedgerTransaction) Candidate {
	return Candidate{
		ID:          t.ID,
		Date:        model.DateKey(t.Date),
		Description: t.Description,
		Amount:      t.Amount,
		Direction:   t.Direction,
		Category:    t.Category,
	}
}

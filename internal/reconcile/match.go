package reconcile

import (
	"cmp"
	"context"
	"runtime"
	"slices"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/cleared-dev/reconcile/internal/model"
)

// DefaultTolerance is the largest amount difference (exclusive) at which a
// same-date ledger transaction is still a candidate.
var DefaultTolerance = decimal.RequireFromString("1.00")

// Matcher selects automatic matches for imported rows.
type Matcher struct {
	Tolerance decimal.Decimal // zero means DefaultTolerance
	Workers   int             // zero means runtime.NumCPU()
}

func (m Matcher) tolerance() decimal.Decimal {
	if m.Tolerance.IsZero() {
		return DefaultTolerance
	}
	return m.Tolerance
}

func (m Matcher) workers() int {
	if m.Workers > 0 {
		return m.Workers
	}
	return runtime.NumCPU()
}

// Match runs the matching policy over every row and returns the updated
// rows and one MatchResult per row, both in input order. Rows are matched
// independently; two rows may select the same ledger transaction.
//
// Only rows in the Unmatched state are considered. Other rows are returned
// unchanged with an empty result. The only error is ctx cancellation.
func (m Matcher) Match(ctx context.Context, rows []model.ImportedTransaction, ix *Index) ([]model.ImportedTransaction, []model.MatchResult, error) {
	out := make([]model.ImportedTransaction, len(rows))
	results := make([]model.MatchResult, len(rows))
	tol := m.tolerance()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers())
	for i := range rows {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i], results[i] = matchRow(rows[i], ix, tol)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return out, results, nil
}

type candidate struct {
	txn  model.LedgerTransaction
	diff decimal.Decimal
}

func matchRow(row model.ImportedTransaction, ix *Index, tol decimal.Decimal) (model.ImportedTransaction, model.MatchResult) {
	res := model.MatchResult{ImportedID: row.ID}
	if row.State != model.StateUnmatched {
		return row, res
	}

	cands := Candidates(row, ix, tol)
	if len(cands) == 0 {
		return row, res
	}

	res.CandidateLedgerIDs = make([]string, len(cands))
	for i, c := range cands {
		res.CandidateLedgerIDs[i] = c.ID
	}
	best := cands[0]
	res.Selected = best.ID

	row.State = model.StateAutoMatched
	row.LinkedLedgerID = best.ID
	row.Category = best.Category
	return row, res
}

// Candidates returns the same-date ledger transactions whose amount is
// within tol of row, best first: smallest difference, then earliest
// CreatedAt, then smallest ID.
func Candidates(row model.ImportedTransaction, ix *Index, tol decimal.Decimal) []model.LedgerTransaction {
	return rank(row, ix, func(diff decimal.Decimal) bool { return diff.LessThan(tol) })
}

// SameDay returns every ledger transaction on the row's date in candidate
// order, ignoring the tolerance. It feeds manual resolution of rows the
// matcher left unmatched.
func SameDay(row model.ImportedTransaction, ix *Index) []model.LedgerTransaction {
	return rank(row, ix, func(decimal.Decimal) bool { return true })
}

func rank(row model.ImportedTransaction, ix *Index, keep func(diff decimal.Decimal) bool) []model.LedgerTransaction {
	bucket := ix.Lookup(row.Date)
	if len(bucket) == 0 {
		return nil
	}

	var cands []candidate
	for _, t := range bucket {
		diff := t.Amount.Sub(row.Amount).Abs()
		if keep(diff) {
			cands = append(cands, candidate{txn: t, diff: diff})
		}
	}
	if len(cands) == 0 {
		return nil
	}

	slices.SortFunc(cands, func(a, b candidate) int {
		if c := a.diff.Cmp(b.diff); c != 0 {
			return c
		}
		if c := a.txn.CreatedAt.Compare(b.txn.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.txn.ID, b.txn.ID)
	})

	out := make([]model.LedgerTransaction, len(cands))
	for i, c := range cands {
		out[i] = c.txn
	}
	return out
}

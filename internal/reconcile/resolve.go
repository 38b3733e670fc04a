package reconcile

import (
	"errors"
	"fmt"

	"github.com/cleared-dev/reconcile/internal/model"
)

var (
	// ErrUnknownLedger is returned when a manual match names a ledger
	// transaction the owner does not have.
	ErrUnknownLedger = errors.New("unknown ledger transaction")

	// ErrAlreadyCreated is returned when a manual match targets a row that
	// already produced its own ledger transaction.
	ErrAlreadyCreated = errors.New("row already created a ledger transaction")

	// ErrUnknownRow is returned for an imported row ID outside the batch.
	ErrUnknownRow = errors.New("unknown imported row")
)

// ApplyManualMatch links txn to chosenID regardless of date or amount.
// The caller is trusted to have checked suitability; only existence of the
// ledger transaction is verified. The category is copied from it.
func ApplyManualMatch(ix *Index, txn model.ImportedTransaction, result model.MatchResult, chosenID string) (model.ImportedTransaction, model.MatchResult, error) {
	if result.ImportedID != txn.ID {
		return txn, result, fmt.Errorf("result for row %d applied to row %d: %w", result.ImportedID, txn.ID, ErrUnknownRow)
	}
	if txn.State == model.StateCreated {
		return txn, result, fmt.Errorf("row %d: %w", txn.ID, ErrAlreadyCreated)
	}
	chosen, ok := ix.Get(chosenID)
	if !ok {
		return txn, result, fmt.Errorf("row %d: %q: %w", txn.ID, chosenID, ErrUnknownLedger)
	}

	txn.State = model.StateManuallyMatched
	txn.LinkedLedgerID = chosen.ID
	txn.Category = chosen.Category
	result.Selected = chosen.ID
	return txn, result, nil
}

// ApplyBulkCreate returns one CreateIntent per row still Unmatched, in row
// order.
func ApplyBulkCreate(rows []model.ImportedTransaction) []model.CreateIntent {
	var intents []model.CreateIntent
	for _, r := range rows {
		if r.State != model.StateUnmatched {
			continue
		}
		intents = append(intents, model.CreateIntent{
			ImportedID:  r.ID,
			Date:        r.Date,
			Description: r.Description,
			Amount:      r.Amount,
			Direction:   r.Direction,
			Category:    r.Category,
		})
	}
	return intents
}

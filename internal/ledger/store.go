package ledger

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/cleared-dev/reconcile/internal/model"
)

// ErrNotFound is returned when a ledger transaction ID does not exist for
// the owner.
var ErrNotFound = errors.New("ledger transaction not found")

// Store is the ledger data access the reconciliation engine depends on.
//
// Create must be idempotent on a non-empty ImportKey: a second call with
// the same key returns the transaction created by the first.
type Store interface {
	List(ctx context.Context, owner string) ([]model.LedgerTransaction, error)
	Create(ctx context.Context, owner string, fields model.LedgerFields) (model.LedgerTransaction, error)
	MarkReconciled(ctx context.Context, owner, ledgerID, ref string) error
}

var ownerPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// CheckOwner rejects owner IDs that cannot be used as a file name or key.
func CheckOwner(owner string) error {
	if !ownerPattern.MatchString(owner) {
		return fmt.Errorf("invalid owner %q", owner)
	}
	return nil
}

func findByImportKey(txns []model.LedgerTransaction, key string) (model.LedgerTransaction, bool) {
	if key == "" {
		return model.LedgerTransaction{}, false
	}
	for _, t := range txns {
		if t.ImportKey == key {
			return t, true
		}
	}
	return model.LedgerTransaction{}, false
}

func newTransaction(id string, createdAt time.Time, fields model.LedgerFields) model.LedgerTransaction {
	return model.LedgerTransaction{
		ID:          id,
		Description: fields.Description,
		Amount:      fields.Amount,
		Direction:   fields.Direction,
		Date:        model.Day(fields.Date),
		Category:    fields.Category,
		CreatedAt:   createdAt.UTC(),
		ImportKey:   fields.ImportKey,
	}
}

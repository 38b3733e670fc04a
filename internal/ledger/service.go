package ledger

import (
	"context"

	"github.com/cleared-dev/reconcile/internal/model"
)

// Service validates writes before passing them to a Store.
type Service struct {
	store Store
	cats  CategoryChecker
}

// NewService creates a ledger Service. cats may be nil to skip the
// category check.
func NewService(store Store, cats CategoryChecker) *Service {
	return &Service{store: store, cats: cats}
}

// List returns the owner's ledger.
func (s *Service) List(ctx context.Context, owner string) ([]model.LedgerTransaction, error) {
	return s.store.List(ctx, owner)
}

// Create validates fields and writes one transaction. Nothing is written
// when validation fails.
func (s *Service) Create(ctx context.Context, owner string, fields model.LedgerFields) (model.LedgerTransaction, error) {
	if verrs := ValidateFields(fields, s.cats); len(verrs) > 0 {
		return model.LedgerTransaction{}, verrs
	}
	return s.store.Create(ctx, owner, fields)
}

// MarkReconciled sets the back-reference on a ledger transaction.
func (s *Service) MarkReconciled(ctx context.Context, owner, ledgerID, ref string) error {
	return s.store.MarkReconciled(ctx, owner, ledgerID, ref)
}

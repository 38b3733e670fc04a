package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/reconcile/internal/model"
)

var errStoreDown = errors.New("store down")

// memStore is an in-memory Store. Unlike the real stores it does not
// dedupe import keys, so tests can see every Create call.
type memStore struct {
	mu      sync.Mutex
	txns    []model.LedgerTransaction
	creates int
	marks   map[string]string
	seq     int

	failCreate func(f model.LedgerFields) error
	failMark   func(ledgerID string) error
}

func newMemStore(txns ...model.LedgerTransaction) *memStore {
	return &memStore{txns: txns, marks: make(map[string]string)}
}

func (s *memStore) List(_ context.Context, _ string) ([]model.LedgerTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.LedgerTransaction(nil), s.txns...), nil
}

func (s *memStore) Create(_ context.Context, _ string, f model.LedgerFields) (model.LedgerTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		if err := s.failCreate(f); err != nil {
			return model.LedgerTransaction{}, err
		}
	}
	s.creates++
	s.seq++
	t := model.LedgerTransaction{
		ID:          fmt.Sprintf("new-%d", s.seq),
		Date:        f.Date,
		Description: f.Description,
		Amount:      f.Amount,
		Direction:   f.Direction,
		Category:    f.Category,
		CreatedAt:   time.Date(2024, 2, 1, 0, 0, s.seq, 0, time.UTC),
		ImportKey:   f.ImportKey,
	}
	s.txns = append(s.txns, t)
	return t, nil
}

func (s *memStore) MarkReconciled(_ context.Context, _ string, ledgerID, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMark != nil {
		if err := s.failMark(ledgerID); err != nil {
			return err
		}
	}
	s.marks[ledgerID] = ref
	return nil
}

func (s *memStore) createCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates
}

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ledgerTxn(id string, date time.Time, amount string, createdSec int) model.LedgerTransaction {
	return model.LedgerTransaction{
		ID:          id,
		Date:        date,
		Description: "ledger " + id,
		Amount:      amt(amount),
		Direction:   model.DirectionExpense,
		Category:    "cat-" + id,
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, createdSec, 0, time.UTC),
	}
}

func importedRow(id int, date time.Time, amount string) model.ImportedTransaction {
	return model.ImportedTransaction{
		ID:          id,
		Date:        date,
		Description: fmt.Sprintf("row %d", id),
		Amount:      amt(amount),
		Direction:   model.DirectionExpense,
		Category:    model.Uncategorized,
		State:       model.StateUnmatched,
	}
}

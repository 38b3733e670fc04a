// Package reconcile matches imported bank rows against an owner's ledger
// and turns the outcome into ledger writes.
//
// A batch flows Importer -> Matcher -> Resolver -> Materializer. Index,
// Matcher and Resolver are pure over their inputs; only the Materializer
// touches the ledger store.
package reconcile

import (
	"time"

	"github.com/cleared-dev/reconcile/internal/model"
)

// Index buckets ledger transactions by calendar date. It is built once per
// batch and read-only afterwards, so it is safe for concurrent lookups.
type Index struct {
	byDate map[string][]model.LedgerTransaction
	byID   map[string]model.LedgerTransaction
}

// BuildIndex indexes txns by date and ID. Bucket order follows input order.
func BuildIndex(txns []model.LedgerTransaction) *Index {
	ix := &Index{
		byDate: make(map[string][]model.LedgerTransaction),
		byID:   make(map[string]model.LedgerTransaction, len(txns)),
	}
	for _, t := range txns {
		key := model.DateKey(t.Date)
		ix.byDate[key] = append(ix.byDate[key], t)
		ix.byID[t.ID] = t
	}
	return ix
}

// Lookup returns the transactions on date, or nil.
func (ix *Index) Lookup(date time.Time) []model.LedgerTransaction {
	return ix.byDate[model.DateKey(date)]
}

// Get returns the transaction with the given ID.
func (ix *Index) Get(id string) (model.LedgerTransaction, bool) {
	t, ok := ix.byID[id]
	return t, ok
}

// Len returns the number of indexed transactions.
func (ix *Index) Len() int {
	return len(ix.byID)
}

package reconcile

import (
	"context"
	"fmt"
	"sync"

	"github.com/cleared-dev/reconcile/internal/id"
	"github.com/cleared-dev/reconcile/internal/metrics"
	"github.com/cleared-dev/reconcile/internal/model"
)

// LedgerWriter is the ledger access the Materializer needs.
type LedgerWriter interface {
	Create(ctx context.Context, owner string, fields model.LedgerFields) (model.LedgerTransaction, error)
	MarkReconciled(ctx context.Context, owner, ledgerID, ref string) error
}

// CreateFailure records a ledger create the store rejected.
type CreateFailure struct {
	ImportedID int
	ImportKey  string
	Err        error
}

func (f CreateFailure) Error() string {
	return fmt.Sprintf("row %d (%s): %v", f.ImportedID, f.ImportKey, f.Err)
}

func (f CreateFailure) Unwrap() error { return f.Err }

// LinkFailure records a back-reference write the store rejected.
type LinkFailure struct {
	ImportedID int
	LedgerID   string
	Err        error
}

func (f LinkFailure) Error() string {
	return fmt.Sprintf("row %d link to %s: %v", f.ImportedID, f.LedgerID, f.Err)
}

func (f LinkFailure) Unwrap() error { return f.Err }

// Creation pairs an imported row with the ledger transaction created for it.
type Creation struct {
	ImportedID int
	Ledger     model.LedgerTransaction
}

// CommitResult is everything one Commit did and failed to do.
type CommitResult struct {
	Created      []Creation
	Failures     []CreateFailure
	Linked       []Link
	LinkFailures []LinkFailure
}

// Link is a back-reference written for a resolved match.
type Link struct {
	ImportedID int
	LedgerID   string
}

// Apply moves every successfully created row to the Created state.
func (r *CommitResult) Apply(rows []model.ImportedTransaction) {
	byRow := make(map[int]string, len(r.Created))
	for _, c := range r.Created {
		byRow[c.ImportedID] = c.Ledger.ID
	}
	for i := range rows {
		if ledgerID, ok := byRow[rows[i].ID]; ok {
			rows[i].State = model.StateCreated
			rows[i].LinkedLedgerID = ledgerID
		}
	}
}

// Materializer writes one batch's outcome to the ledger. It may be called
// repeatedly, including concurrently: creates are serialized per
// idempotency key and a key that already produced a transaction is never
// written again.
type Materializer struct {
	store   LedgerWriter
	owner   string
	batchID string

	// LinkMatches enables ReconciledWith back-references for resolved
	// matches.
	LinkMatches bool

	locks keyedMutex

	mu   sync.Mutex
	done map[string]model.LedgerTransaction
}

// NewMaterializer creates a Materializer for one owner's batch.
func NewMaterializer(store LedgerWriter, owner, batchID string) *Materializer {
	return &Materializer{
		store:   store,
		owner:   owner,
		batchID: batchID,
		done:    make(map[string]model.LedgerTransaction),
	}
}

// ImportKey returns the idempotency key for an imported row of this batch.
func (m *Materializer) ImportKey(importedID int) string {
	return id.FormatImportKey(m.batchID, importedID)
}

// Commit creates one ledger transaction per intent and, when LinkMatches
// is set, writes back-references for resolved rows. A failing row is
// recorded and the remaining rows still run.
func (m *Materializer) Commit(ctx context.Context, intents []model.CreateIntent, resolved []model.ImportedTransaction) *CommitResult {
	res := &CommitResult{}

	for _, in := range intents {
		key := m.ImportKey(in.ImportedID)
		txn, err := m.create(ctx, key, in)
		metrics.ObserveWrite(metrics.KindCreate, err)
		if err != nil {
			res.Failures = append(res.Failures, CreateFailure{ImportedID: in.ImportedID, ImportKey: key, Err: err})
			continue
		}
		res.Created = append(res.Created, Creation{ImportedID: in.ImportedID, Ledger: txn})
	}

	if !m.LinkMatches {
		return res
	}
	for _, r := range resolved {
		if r.State != model.StateAutoMatched && r.State != model.StateManuallyMatched {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = m.store.MarkReconciled(ctx, m.owner, r.LinkedLedgerID, m.ImportKey(r.ID))
		}
		metrics.ObserveWrite(metrics.KindLink, err)
		if err != nil {
			res.LinkFailures = append(res.LinkFailures, LinkFailure{ImportedID: r.ID, LedgerID: r.LinkedLedgerID, Err: err})
			continue
		}
		res.Linked = append(res.Linked, Link{ImportedID: r.ID, LedgerID: r.LinkedLedgerID})
	}
	return res
}

func (m *Materializer) create(ctx context.Context, key string, in model.CreateIntent) (model.LedgerTransaction, error) {
	unlock := m.locks.lock(key)
	defer unlock()

	m.mu.Lock()
	txn, ok := m.done[key]
	m.mu.Unlock()
	if ok {
		return txn, nil
	}

	if err := ctx.Err(); err != nil {
		return model.LedgerTransaction{}, err
	}
	txn, err := m.store.Create(ctx, m.owner, in.Fields(key))
	if err != nil {
		return model.LedgerTransaction{}, err
	}

	m.mu.Lock()
	m.done[key] = txn
	m.mu.Unlock()
	return txn, nil
}

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &refMutex{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

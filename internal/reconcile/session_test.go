package reconcile

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/reconcile/internal/importer"
	"github.com/cleared-dev/reconcile/internal/ledger"
	"github.com/cleared-dev/reconcile/internal/model"
)

var sessionNow = func() time.Time { return time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC) }

const icaLon = `date,description,amount
"2024-01-15","ICA",-250.00
"2024-01-16","Lön",5000.00
`

func parse(t *testing.T, raw string) *importer.Result {
	t.Helper()
	p := &importer.GenericParser{Now: sessionNow}
	res, err := p.Parse(strings.NewReader(raw))
	require.NoError(t, err)
	return res
}

func seedMatvaror(t *testing.T, store ledger.Store) model.LedgerTransaction {
	t.Helper()
	txn, err := store.Create(context.Background(), "household", model.LedgerFields{
		Date:        day(2024, 1, 15),
		Description: "Matvaror",
		Amount:      amt("250"),
		Direction:   model.DirectionExpense,
		Category:    "groceries",
	})
	require.NoError(t, err)
	return txn
}

func TestSession_EndToEnd(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewFileStore(t.TempDir())
	matvaror := seedMatvaror(t, store)

	batch := parse(t, icaLon)
	s, err := NewSession(ctx, store, "household", batch.BatchID, batch.Transactions, Options{Now: sessionNow})
	require.NoError(t, err)

	require.NoError(t, s.Match(ctx))
	rows := s.Rows()
	require.Len(t, rows, 2)

	assert.Equal(t, model.StateAutoMatched, rows[0].State)
	assert.Equal(t, matvaror.ID, rows[0].LinkedLedgerID)
	assert.Equal(t, "groceries", rows[0].Category)
	assert.Equal(t, model.StateUnmatched, rows[1].State)
	assert.Empty(t, s.Results()[1].CandidateLedgerIDs)
	assert.True(t, s.Results()[0].HasSelection())
	assert.False(t, s.Results()[1].HasSelection())

	events := s.Events()
	require.Len(t, events, 1)
	assert.Equal(t, ActionAutoMatch, events[0].Action)
	assert.Equal(t, matvaror.ID, events[0].LedgerID)

	intents := s.BulkCreate()
	require.Len(t, intents, 1)
	assert.Equal(t, 1, intents[0].ImportedID)

	res := s.Commit(ctx)
	require.Empty(t, res.Failures)
	require.Len(t, res.Created, 1)

	created := res.Created[0].Ledger
	assert.Equal(t, "2024-01-16", model.DateKey(created.Date))
	assert.True(t, created.Amount.Equal(amt("5000")))
	assert.Equal(t, model.DirectionIncome, created.Direction)
	assert.Equal(t, "Lön", created.Description)

	rows = s.Rows()
	assert.Equal(t, model.StateCreated, rows[1].State)
	assert.Equal(t, created.ID, rows[1].LinkedLedgerID)
	for _, r := range rows {
		require.NoError(t, r.CheckInvariants())
	}

	txns, err := store.List(ctx, "household")
	require.NoError(t, err)
	assert.Len(t, txns, 2)

	rep := s.Report()
	assert.Equal(t, Summary{Total: 2, AutoMatched: 1, Created: 1}, rep.Summary)
	require.Len(t, rep.Rows[0].Candidates, 1)
	assert.Equal(t, "Matvaror", rep.Rows[0].Candidates[0].Description)
	assert.Empty(t, s.Pending())
}

func TestSession_ReimportDoesNotDuplicate(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewFileStore(t.TempDir())

	for i := 0; i < 2; i++ {
		batch := parse(t, icaLon)
		s, err := NewSession(ctx, store, "household", batch.BatchID, batch.Transactions, Options{})
		require.NoError(t, err)
		require.NoError(t, s.Match(ctx))
		s.BulkCreate()
		res := s.Commit(ctx)
		require.Empty(t, res.Failures)
	}

	txns, err := store.List(ctx, "household")
	require.NoError(t, err)
	// The second import auto-matches its own earlier creations.
	assert.Len(t, txns, 2)
}

func TestSession_SameBatchRecommitUsesStoreIdempotency(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewFileStore(t.TempDir())
	batch := parse(t, icaLon)

	// Two independent sessions over the same batch both commit before
	// either sees the other's rows.
	a, err := NewSession(ctx, store, "household", batch.BatchID, batch.Transactions, Options{})
	require.NoError(t, err)
	b, err := NewSession(ctx, store, "household", batch.BatchID, batch.Transactions, Options{})
	require.NoError(t, err)

	for _, s := range []*Session{a, b} {
		require.NoError(t, s.Match(ctx))
		s.BulkCreate()
	}
	ra := a.Commit(ctx)
	rb := b.Commit(ctx)
	require.Len(t, ra.Created, 2)
	require.Len(t, rb.Created, 2)
	assert.Equal(t, ra.Created[0].Ledger.ID, rb.Created[0].Ledger.ID)

	txns, err := store.List(ctx, "household")
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}

func TestSession_ManualMatch(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(ledgerTxn("rent", day(2024, 1, 1), "12000", 1))
	rows := []model.ImportedTransaction{
		importedRow(0, day(2024, 1, 15), "10"),
		importedRow(1, day(2024, 1, 16), "20"),
	}
	s, err := NewSession(ctx, store, "household", "b", rows, Options{Now: sessionNow})
	require.NoError(t, err)
	require.NoError(t, s.Match(ctx))

	require.Len(t, s.BulkCreate(), 2)
	require.NoError(t, s.ManualMatch(0, "rent"))
	// The manual match removed its queued intent.
	require.Len(t, s.Pending(), 1)

	assert.ErrorIs(t, s.ManualMatch(9, "rent"), ErrUnknownRow)
	assert.ErrorIs(t, s.ManualMatch(1, "nope"), ErrUnknownLedger)

	res := s.Commit(ctx)
	require.Len(t, res.Created, 1)
	assert.Equal(t, 1, res.Created[0].ImportedID)

	assert.ErrorIs(t, s.ManualMatch(1, "rent"), ErrAlreadyCreated)

	got := s.Rows()
	assert.Equal(t, model.StateManuallyMatched, got[0].State)
	assert.Equal(t, "cat-rent", got[0].Category)

	events := s.Events()
	require.Len(t, events, 2)
	assert.Equal(t, ActionManualMatch, events[0].Action)
	assert.Equal(t, "rent", events[0].LedgerID)
	assert.Equal(t, "was unmatched", events[0].Details)
	assert.Equal(t, ActionCreated, events[1].Action)
	assert.Equal(t, "b", events[1].Batch)
	assert.Equal(t, sessionNow(), events[1].Time)
}

func TestSession_RetryCommitsOnlyFailedRows(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.failCreate = func(f model.LedgerFields) error {
		if f.ImportKey == "b/0001" {
			return errStoreDown
		}
		return nil
	}
	rows := []model.ImportedTransaction{
		importedRow(0, day(2024, 1, 15), "10"),
		importedRow(1, day(2024, 1, 15), "20"),
		importedRow(2, day(2024, 1, 15), "30"),
	}
	s, err := NewSession(ctx, store, "household", "b", rows, Options{})
	require.NoError(t, err)
	require.NoError(t, s.Match(ctx))
	s.BulkCreate()

	res := s.Commit(ctx)
	require.Len(t, res.Failures, 1)
	require.Len(t, s.Pending(), 1)
	assert.Equal(t, 1, s.Pending()[0].ImportedID)
	assert.Equal(t, Summary{Total: 3, Created: 2, Unmatched: 1}, s.Report().Summary)

	store.mu.Lock()
	store.failCreate = nil
	store.mu.Unlock()

	res = s.Commit(ctx)
	require.Empty(t, res.Failures)
	require.Len(t, res.Created, 1)
	assert.Equal(t, 3, store.createCount())
	assert.Empty(t, s.Pending())

	var actions []string
	for _, e := range s.Events() {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{ActionCreateFailed, ActionCreated, ActionCreated, ActionCreated}, actions)
}

func TestSession_LinkMatches(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewFileStore(t.TempDir())
	matvaror := seedMatvaror(t, store)

	batch := parse(t, icaLon)
	s, err := NewSession(ctx, store, "household", batch.BatchID, batch.Transactions, Options{LinkMatches: true})
	require.NoError(t, err)
	require.NoError(t, s.Match(ctx))

	res := s.Commit(ctx)
	require.Len(t, res.Linked, 1)
	assert.Empty(t, res.Created)

	txns, err := store.List(ctx, "household")
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, matvaror.ID, txns[0].ID)
	assert.Equal(t, batch.BatchID+"/0000", txns[0].ReconciledWith)
}

func TestSession_ListError(t *testing.T) {
	_, err := NewSession(context.Background(), ledger.NewFileStore(t.TempDir()), "../x", "b", nil, Options{})
	assert.ErrorContains(t, err, "listing ledger")
}

func TestReport_UnmatchedShowsSameDayAlternatives(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(
		ledgerTxn("far", day(2024, 1, 15), "80", 1),
		ledgerTxn("farther", day(2024, 1, 15), "500", 2),
	)
	s, err := NewSession(ctx, store, "household", "b",
		[]model.ImportedTransaction{importedRow(0, day(2024, 1, 15), "100")}, Options{})
	require.NoError(t, err)
	require.NoError(t, s.Match(ctx))

	rep := s.Report()
	require.Len(t, rep.Rows, 1)
	assert.Equal(t, model.StateUnmatched, rep.Rows[0].State)
	require.Len(t, rep.Rows[0].Candidates, 2)
	assert.Equal(t, "far", rep.Rows[0].Candidates[0].ID)
	assert.Equal(t, 2, rep.LedgerSize)

	data, err := json.Marshal(rep)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"ledger_size":2`)
	assert.Contains(t, string(data), `"state":"unmatched"`)
	assert.Contains(t, string(data), `"amount":"100"`)
	assert.NotContains(t, string(data), "linked_ledger_id")
}

func TestReport_CountsFlaggedRows(t *testing.T) {
	row := importedRow(0, day(2024, 1, 15), "0")
	row.Warnings = []string{"amount"}
	rep := BuildReport("o", "b", []model.ImportedTransaction{row}, nil, BuildIndex(nil))
	assert.Equal(t, 1, rep.Summary.Flagged)
	assert.Equal(t, 0, rep.LedgerSize)
	assert.Equal(t, []string{"amount"}, rep.Rows[0].Warnings)
}

package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/reconcile/internal/metrics"
	"github.com/cleared-dev/reconcile/internal/model"
)

// Store is the ledger data access a Session needs.
type Store interface {
	List(ctx context.Context, owner string) ([]model.LedgerTransaction, error)
	LedgerWriter
}

// Event actions recorded by a Session.
const (
	ActionAutoMatch    = "auto_match"
	ActionManualMatch  = "manual_match"
	ActionCreated      = "created"
	ActionCreateFailed = "create_failed"
	ActionLinked       = "linked"
	ActionLinkFailed   = "link_failed"
)

// Event is one state transition in a batch.
type Event struct {
	Time       time.Time
	Batch      string
	Action     string
	ImportedID int
	LedgerID   string
	Details    string
}

// Options configures a Session.
type Options struct {
	Tolerance   decimal.Decimal
	Workers     int
	LinkMatches bool
	Now         func() time.Time
}

// Session holds one reconciliation batch: the owner's ledger index, the
// imported rows, their match results and the event log. Nothing in a
// Session outlives the batch; discarding it cancels the run.
type Session struct {
	owner   string
	batchID string
	opts    Options

	index *Index
	mat   *Materializer

	mu      sync.Mutex
	rows    []model.ImportedTransaction
	results []model.MatchResult
	pending []model.CreateIntent
	events  []Event
}

// NewSession lists the owner's ledger once and indexes it for the batch.
func NewSession(ctx context.Context, store Store, owner, batchID string, rows []model.ImportedTransaction, opts Options) (*Session, error) {
	txns, err := store.List(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("listing ledger for %s: %w", owner, err)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Session{
		owner:   owner,
		batchID: batchID,
		opts:    opts,
		index:   BuildIndex(txns),
		mat:     NewMaterializer(store, owner, batchID),
		rows:    append([]model.ImportedTransaction(nil), rows...),
		results: make([]model.MatchResult, len(rows)),
	}
	for i := range s.rows {
		s.results[i].ImportedID = s.rows[i].ID
	}
	s.mat.LinkMatches = opts.LinkMatches
	return s, nil
}

// BatchID returns the batch identifier.
func (s *Session) BatchID() string { return s.batchID }

// Owner returns the ledger owner.
func (s *Session) Owner() string { return s.owner }

// Index returns the batch's ledger index.
func (s *Session) Index() *Index { return s.index }

// Match runs the automatic matcher over all unmatched rows.
func (s *Session) Match(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	m := Matcher{Tolerance: s.opts.Tolerance, Workers: s.opts.Workers}
	rows, results, err := m.Match(ctx, s.rows, s.index)
	if err != nil {
		return fmt.Errorf("matching batch %s: %w", s.batchID, err)
	}
	metrics.MatchDuration.Observe(time.Since(start).Seconds())

	for i := range rows {
		if s.rows[i].State == model.StateUnmatched {
			s.results[i] = results[i]
			if results[i].HasSelection() {
				s.record(ActionAutoMatch, rows[i].ID, rows[i].LinkedLedgerID,
					fmt.Sprintf("%d candidate(s), category %s", len(results[i].CandidateLedgerIDs), rows[i].Category))
			}
		}
		metrics.MatchOutcomes.WithLabelValues(string(rows[i].State)).Inc()
	}
	s.rows = rows
	return nil
}

// ManualMatch links one row to a ledger transaction chosen by a person.
func (s *Session) ManualMatch(importedID int, ledgerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.rowIndex(importedID)
	if err != nil {
		return err
	}
	prev := s.rows[i].State
	row, res, err := ApplyManualMatch(s.index, s.rows[i], s.results[i], ledgerID)
	if err != nil {
		return err
	}
	s.rows[i], s.results[i] = row, res
	s.dropPending(importedID)
	s.record(ActionManualMatch, importedID, ledgerID, fmt.Sprintf("was %s", prev))
	return nil
}

// BulkCreate queues a create intent for every row still unmatched and
// returns the queued intents.
func (s *Session) BulkCreate() []model.CreateIntent {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = ApplyBulkCreate(s.rows)
	return append([]model.CreateIntent(nil), s.pending...)
}

// Pending returns the create intents not yet committed successfully.
func (s *Session) Pending() []model.CreateIntent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.CreateIntent(nil), s.pending...)
}

// Commit materializes the queued intents and, when enabled, the
// back-references of resolved matches. Intents that fail stay queued so a
// later Commit retries only those.
func (s *Session) Commit(ctx context.Context) *CommitResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var resolved []model.ImportedTransaction
	for _, r := range s.rows {
		if r.State == model.StateAutoMatched || r.State == model.StateManuallyMatched {
			resolved = append(resolved, r)
		}
	}

	res := s.mat.Commit(ctx, s.pending, resolved)
	res.Apply(s.rows)

	failed := make(map[int]bool, len(res.Failures))
	for _, f := range res.Failures {
		failed[f.ImportedID] = true
		s.record(ActionCreateFailed, f.ImportedID, "", f.Err.Error())
	}
	for _, c := range res.Created {
		s.record(ActionCreated, c.ImportedID, c.Ledger.ID, s.mat.ImportKey(c.ImportedID))
	}
	for _, l := range res.Linked {
		s.record(ActionLinked, l.ImportedID, l.LedgerID, s.mat.ImportKey(l.ImportedID))
	}
	for _, f := range res.LinkFailures {
		s.record(ActionLinkFailed, f.ImportedID, f.LedgerID, f.Err.Error())
	}

	var still []model.CreateIntent
	for _, in := range s.pending {
		if failed[in.ImportedID] {
			still = append(still, in)
		}
	}
	s.pending = still
	return res
}

// Rows returns a copy of the batch rows in their current state.
func (s *Session) Rows() []model.ImportedTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ImportedTransaction(nil), s.rows...)
}

// Results returns a copy of the match results, one per row.
func (s *Session) Results() []model.MatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.MatchResult(nil), s.results...)
}

// Events returns the batch's state transitions in order.
func (s *Session) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// Report builds the reconciliation report for the current state.
func (s *Session) Report() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return BuildReport(s.owner, s.batchID, s.rows, s.results, s.index)
}

func (s *Session) rowIndex(importedID int) (int, error) {
	for i := range s.rows {
		if s.rows[i].ID == importedID {
			return i, nil
		}
	}
	return 0, fmt.Errorf("row %d: %w", importedID, ErrUnknownRow)
}

func (s *Session) dropPending(importedID int) {
	out := s.pending[:0]
	for _, in := range s.pending {
		if in.ImportedID != importedID {
			out = append(out, in)
		}
	}
	s.pending = out
}

func (s *Session) record(action string, importedID int, ledgerID, details string) {
	s.events = append(s.events, Event{
		Time:       s.opts.Now().UTC(),
		Batch:      s.batchID,
		Action:     action,
		ImportedID: importedID,
		LedgerID:   ledgerID,
		Details:    details,
	})
}

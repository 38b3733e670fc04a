package api

import (
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/reconcile/internal/importer"
	"github.com/cleared-dev/reconcile/internal/model"
	"github.com/cleared-dev/reconcile/internal/reconcile"
	"github.com/cleared-dev/reconcile/internal/workspace"
)

type ledgerView struct {
	ID             string          `json:"id"`
	Date           string          `json:"date"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	Direction      model.Direction `json:"direction"`
	Category       string          `json:"category"`
	CreatedAt      string          `json:"created_at"`
	ReconciledWith string          `json:"reconciled_with,omitempty"`
	ImportKey      string          `json:"import_key,omitempty"`
}

func newLedgerView(t model.LedgerTransaction) ledgerView {
	return ledgerView{
		ID:             t.ID,
		Date:           model.DateKey(t.Date),
		Description:    t.Description,
		Amount:         t.Amount,
		Direction:      t.Direction,
		Category:       t.Category,
		CreatedAt:      t.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		ReconciledWith: t.ReconciledWith,
		ImportKey:      t.ImportKey,
	}
}

type warningView struct {
	Row    int    `json:"row"`
	Field  string `json:"field"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

type createdView struct {
	ImportedID int        `json:"imported_id"`
	Ledger     ledgerView `json:"ledger"`
}

type failureView struct {
	ImportedID int    `json:"imported_id"`
	ImportKey  string `json:"import_key,omitempty"`
	LedgerID   string `json:"ledger_id,omitempty"`
	Error      string `json:"error"`
}

type linkView struct {
	ImportedID int    `json:"imported_id"`
	LedgerID   string `json:"ledger_id"`
}

type commitView struct {
	Created      []createdView `json:"created"`
	Failures     []failureView `json:"failures"`
	Linked       []linkView    `json:"linked"`
	LinkFailures []failureView `json:"link_failures"`
}

type batchResponse struct {
	Format     string            `json:"format"`
	DryRun     bool              `json:"dry_run"`
	Report     *reconcile.Report `json:"report"`
	Warnings   []warningView     `json:"warnings"`
	Pending    int               `json:"pending_creates"`
	Commit     *commitView       `json:"commit,omitempty"`
	CommitHash string            `json:"commit_hash,omitempty"`
}

func newBatchResponse(out *workspace.BatchOutcome) batchResponse {
	resp := batchResponse{
		Format:     out.Format,
		DryRun:     out.Commit == nil,
		Report:     out.Report,
		Warnings:   warningViews(out.Warnings),
		Pending:    len(out.Intents),
		CommitHash: out.CommitHash,
	}
	if out.Commit != nil {
		resp.Commit = newCommitView(out.Commit)
	}
	return resp
}

func warningViews(ws []importer.RowWarning) []warningView {
	out := make([]warningView, len(ws))
	for i, w := range ws {
		out[i] = warningView{Row: w.Row, Field: w.Field, Value: w.Value, Reason: w.Reason}
	}
	return out
}

func newCommitView(res *reconcile.CommitResult) *commitView {
	cv := &commitView{
		Created:      make([]createdView, len(res.Created)),
		Failures:     make([]failureView, len(res.Failures)),
		Linked:       make([]linkView, len(res.Linked)),
		LinkFailures: make([]failureView, len(res.LinkFailures)),
	}
	for i, c := range res.Created {
		cv.Created[i] = createdView{ImportedID: c.ImportedID, Ledger: newLedgerView(c.Ledger)}
	}
	for i, f := range res.Failures {
		cv.Failures[i] = failureView{ImportedID: f.ImportedID, ImportKey: f.ImportKey, Error: f.Err.Error()}
	}
	for i, l := range res.Linked {
		cv.Linked[i] = linkView{ImportedID: l.ImportedID, LedgerID: l.LedgerID}
	}
	for i, f := range res.LinkFailures {
		cv.LinkFailures[i] = failureView{ImportedID: f.ImportedID, LedgerID: f.LedgerID, Error: f.Err.Error()}
	}
	return cv
}

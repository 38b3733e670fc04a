package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/cleared-dev/reconcile/internal/auditlog"
	"github.com/cleared-dev/reconcile/internal/gitops"
	"github.com/cleared-dev/reconcile/internal/importer"
	"github.com/cleared-dev/reconcile/internal/metrics"
	"github.com/cleared-dev/reconcile/internal/model"
	"github.com/cleared-dev/reconcile/internal/reconcile"
)

// ErrUnknownFormat is returned for a format no parser is registered for.
var ErrUnknownFormat = errors.New("unknown import format")

// BatchRequest describes one reconciliation run over a bank export.
type BatchRequest struct {
	Owner   string // empty means the configured owner
	Format  string // empty means the configured import format
	Source  string // file name or other label, for the audit log and commit message
	Raw     []byte
	Matches map[int]string // manual matches, imported row ID -> ledger ID
	Create  bool           // bulk-create ledger transactions for unmatched rows
	Link    *bool          // nil means the configured materialize.link_matches
	DryRun  bool           // match and resolve only; write nothing
}

// BatchOutcome is what one run did.
type BatchOutcome struct {
	Format     string
	Report     *reconcile.Report
	Warnings   []importer.RowWarning
	Intents    []model.CreateIntent // queued creates; on a dry run nothing was written
	Commit     *reconcile.CommitResult
	CommitHash string
}

// RunBatch parses, matches, resolves and, unless DryRun is set, commits a
// batch. Import and manual-match errors abort before any write. Per-row
// write failures are reported in the outcome and do not fail the call.
func (w *Workspace) RunBatch(ctx context.Context, req BatchRequest) (*BatchOutcome, error) {
	owner := req.Owner
	if owner == "" {
		owner = w.Config.Owner
	}
	format := req.Format
	if format == "" {
		format = w.Config.Import.Format
	}
	parser := w.Parsers.Get(format)
	if parser == nil {
		return nil, fmt.Errorf("%w %q (have %v)", ErrUnknownFormat, format, w.Parsers.Formats())
	}

	parsed, err := parser.Parse(bytes.NewReader(req.Raw))
	if err != nil {
		return nil, err
	}
	metrics.ImportedRows.WithLabelValues(parser.Format()).Add(float64(len(parsed.Transactions)))
	metrics.RowWarnings.Add(float64(len(parsed.Warnings)))

	tol, err := w.Config.ToleranceAmount()
	if err != nil {
		return nil, err
	}
	link := w.Config.Materialize.LinkMatches
	if req.Link != nil {
		link = *req.Link
	}

	sess, err := reconcile.NewSession(ctx, w.Ledger, owner, parsed.BatchID, parsed.Transactions, reconcile.Options{
		Tolerance:   tol,
		Workers:     w.Config.Matching.Workers,
		LinkMatches: link,
	})
	if err != nil {
		return nil, err
	}
	if err := sess.Match(ctx); err != nil {
		return nil, err
	}

	rows := make([]int, 0, len(req.Matches))
	for row := range req.Matches {
		rows = append(rows, row)
	}
	sort.Ints(rows)
	for _, row := range rows {
		if err := sess.ManualMatch(row, req.Matches[row]); err != nil {
			return nil, fmt.Errorf("manual match: %w", err)
		}
	}

	if req.Create {
		sess.BulkCreate()
	}

	out := &BatchOutcome{
		Format:   parser.Format(),
		Warnings: parsed.Warnings,
		Intents:  sess.Pending(),
	}
	if req.DryRun {
		out.Report = sess.Report()
		return out, nil
	}

	out.Commit = sess.Commit(ctx)
	out.Report = sess.Report()

	if err := auditlog.Append(w.Root, auditlog.FromEvents(owner, sess.Events())); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write audit log: %v\n", err)
	}

	if wrote(out.Commit) && w.Config.Git.AutoCommit && w.FileBacked() && gitops.IsRepo(w.Root) {
		msg := fmt.Sprintf("reconcile: %s batch %s (%d created, %d linked)",
			label(req.Source), parsed.BatchID, len(out.Commit.Created), len(out.Commit.Linked))
		hash, err := gitops.Commit(ctx, w.Root, msg,
			gitops.Author{Name: w.Config.Git.AuthorName, Email: w.Config.Git.AuthorEmail},
			"ledger", "logs")
		switch {
		case err == nil:
			out.CommitHash = hash
		case errors.Is(err, gitops.ErrNothingToCommit):
		default:
			fmt.Fprintf(os.Stderr, "warning: git commit failed: %v\n", err)
		}
	}
	return out, nil
}

func wrote(res *reconcile.CommitResult) bool {
	return res != nil && (len(res.Created) > 0 || len(res.Linked) > 0)
}

func label(source string) string {
	if source == "" {
		return "import"
	}
	return source
}

// ParseMatches parses "row<sep>ledgerID" pairs into a manual match map.
func ParseMatches(pairs []string, sep string) (map[int]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[int]string, len(pairs))
	for _, p := range pairs {
		row, ledgerID, ok := strings.Cut(p, sep)
		if !ok || ledgerID == "" {
			return nil, fmt.Errorf("match %q: want row%sledger-id", p, sep)
		}
		n, err := strconv.Atoi(row)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("match %q: row must be a non-negative integer", p)
		}
		if _, dup := out[n]; dup {
			return nil, fmt.Errorf("match %q: row %d given twice", p, n)
		}
		out[n] = ledgerID
	}
	return out, nil
}

package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/reconcile/internal/importer"
	"github.com/cleared-dev/reconcile/internal/reconcile"
	"github.com/cleared-dev/reconcile/internal/workspace"
)

type runOptions struct {
	repoDir string
	owner   string
	format  string
	matches []string
	create  bool
	link    bool
	dryRun  bool
	json    bool
}

func newRunCommand() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Reconcile a bank export, or every CSV in import/",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd.Context(), opts.repoDir)
			if err != nil {
				return err
			}
			defer ws.Close()

			matches, err := workspace.ParseMatches(opts.matches, "=")
			if err != nil {
				return err
			}

			var link *bool
			if cmd.Flags().Changed("link") {
				link = &opts.link
			}

			if len(args) == 1 {
				return runFile(cmd, ws, opts, args[0], "", matches, link)
			}

			if len(matches) > 0 {
				return errors.New("--match needs a single file argument")
			}
			files, err := importer.Scan(ws.Root)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No CSV files in import/")
				return nil
			}
			var failed int
			for _, f := range files {
				if err := runFile(cmd, ws, opts, f.Path, f.Name, nil, link); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", f.Name, err)
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(files))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.repoDir, "repo", ".", "path to reconcile project")
	cmd.Flags().StringVar(&opts.owner, "owner", "", "ledger owner (default from config)")
	cmd.Flags().StringVar(&opts.format, "format", "", "export format (default from config)")
	cmd.Flags().StringArrayVar(&opts.matches, "match", nil, "manual match as row=ledger-id, repeatable")
	cmd.Flags().BoolVar(&opts.create, "create", false, "create ledger transactions for unmatched rows")
	cmd.Flags().BoolVar(&opts.link, "link", false, "write back-references to matched ledger transactions")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "match and report without writing")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the report as JSON")

	return cmd
}

// runFile reconciles one export. importName is set for files found in
// import/, which move to import/processed/ once a committed run leaves no
// row unmatched.
func runFile(cmd *cobra.Command, ws *workspace.Workspace, opts runOptions, path, importName string, matches map[int]string, link *bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	out, err := ws.RunBatch(cmd.Context(), workspace.BatchRequest{
		Owner:   opts.owner,
		Format:  opts.format,
		Source:  filepath.Base(path),
		Raw:     raw,
		Matches: matches,
		Create:  opts.create,
		Link:    link,
		DryRun:  opts.dryRun,
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if opts.json {
		if err := printJSON(w, filepath.Base(path), out); err != nil {
			return err
		}
	} else {
		printReport(w, filepath.Base(path), out)
	}

	if out.Commit != nil && len(out.Commit.Failures) > 0 {
		return fmt.Errorf("%d of %d creates failed; re-run to retry", len(out.Commit.Failures), len(out.Intents))
	}
	if importName == "" || opts.dryRun {
		return nil
	}
	if n := out.Report.Summary.Unmatched; n > 0 {
		fmt.Fprintf(w, "%d unmatched row(s) remain; leaving %s in import/\n", n, importName)
		return nil
	}
	return importer.MarkProcessed(ws.Root, importName)
}

func printReport(w io.Writer, name string, out *workspace.BatchOutcome) {
	rep := out.Report
	fmt.Fprintf(w, "%s (%s, batch %s, %d ledger transaction(s) for %s)\n",
		name, out.Format, rep.Batch, rep.LedgerSize, rep.Owner)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tDATE\tAMOUNT\tDESCRIPTION\tSTATE\tLEDGER\tCATEGORY")
	for _, r := range rep.Rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Date, r.Direction.Signed(r.Amount).StringFixed(2), r.Description, r.State, dash(r.LinkedLedgerID), r.Category)
	}
	tw.Flush()

	for _, warn := range out.Warnings {
		fmt.Fprintf(w, "warning: %v\n", warn)
	}

	s := rep.Summary
	fmt.Fprintf(w, "%d rows: %d auto-matched, %d manually matched, %d created, %d unmatched",
		s.Total, s.AutoMatched, s.ManuallyMatched, s.Created, s.Unmatched)
	if s.Flagged > 0 {
		fmt.Fprintf(w, ", %d flagged", s.Flagged)
	}
	fmt.Fprintln(w)

	if out.Commit == nil {
		fmt.Fprintf(w, "Dry run: %d ledger transaction(s) would be created\n", len(out.Intents))
		return
	}
	for _, f := range out.Commit.Failures {
		fmt.Fprintf(w, "failed: %v\n", f)
	}
	for _, f := range out.Commit.LinkFailures {
		fmt.Fprintf(w, "failed: %v\n", f)
	}
	if out.CommitHash != "" {
		fmt.Fprintf(w, "Committed %s\n", out.CommitHash)
	}
}

type jsonOutcome struct {
	File         string            `json:"file"`
	Format       string            `json:"format"`
	DryRun       bool              `json:"dry_run"`
	Report       *reconcile.Report `json:"report"`
	Warnings     []string          `json:"warnings,omitempty"`
	Failures     []string          `json:"failures,omitempty"`
	LinkFailures []string          `json:"link_failures,omitempty"`
	CommitHash   string            `json:"commit_hash,omitempty"`
}

func printJSON(w io.Writer, name string, out *workspace.BatchOutcome) error {
	res := jsonOutcome{
		File:       name,
		Format:     out.Format,
		DryRun:     out.Commit == nil,
		Report:     out.Report,
		CommitHash: out.CommitHash,
	}
	for _, warn := range out.Warnings {
		res.Warnings = append(res.Warnings, warn.Error())
	}
	if out.Commit != nil {
		for _, f := range out.Commit.Failures {
			res.Failures = append(res.Failures, f.Error())
		}
		for _, f := range out.Commit.LinkFailures {
			res.LinkFailures = append(res.LinkFailures, f.Error())
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

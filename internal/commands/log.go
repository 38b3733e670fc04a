package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/reconcile/internal/auditlog"
)

func newLogCommand() *cobra.Command {
	var repoDir, owner, batch string
	var limit int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the reconciliation audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd.Context(), repoDir)
			if err != nil {
				return err
			}
			defer ws.Close()

			entries, err := auditlog.Read(ws.Root)
			if err != nil {
				return err
			}

			var shown []auditlog.Entry
			for _, e := range entries {
				if owner != "" && e.Owner != owner {
					continue
				}
				if batch != "" && e.Batch != batch {
					continue
				}
				shown = append(shown, e)
			}
			if limit > 0 && len(shown) > limit {
				shown = shown[len(shown)-limit:]
			}
			if len(shown) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No audit log entries")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tOWNER\tBATCH\tACTION\tROW\tLEDGER\tDETAILS")
			for _, e := range shown {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					e.Timestamp.Local().Format(time.DateTime), e.Owner, e.Batch, e.Action,
					e.ImportedID, dash(e.LedgerID), e.Details)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&repoDir, "repo", ".", "path to reconcile project")
	cmd.Flags().StringVar(&owner, "owner", "", "only entries for this owner")
	cmd.Flags().StringVar(&batch, "batch", "", "only entries for this batch")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most the last n entries")
	return cmd
}

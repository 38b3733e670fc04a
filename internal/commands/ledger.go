package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/reconcile/internal/id"
	"github.com/cleared-dev/reconcile/internal/model"
)

func newLedgerCommand() *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}
	ledgerCmd.AddCommand(newLedgerListCommand())
	ledgerCmd.AddCommand(newLedgerAddCommand())
	return ledgerCmd
}

func newLedgerListCommand() *cobra.Command {
	var repoDir, owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List an owner's ledger transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd.Context(), repoDir)
			if err != nil {
				return err
			}
			defer ws.Close()

			if owner == "" {
				owner = ws.Config.Owner
			}
			txns, err := ws.Ledger.List(cmd.Context(), owner)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tAMOUNT\tDIRECTION\tCATEGORY\tDESCRIPTION\tBATCH\tRECONCILED")
			for _, t := range txns {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					t.ID, model.DateKey(t.Date), t.Amount.StringFixed(2), t.Direction,
					t.Category, t.Description, importSource(t.ImportKey), dash(t.ReconciledWith))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&repoDir, "repo", ".", "path to reconcile project")
	cmd.Flags().StringVar(&owner, "owner", "", "ledger owner (default from config)")
	return cmd
}

func newLedgerAddCommand() *cobra.Command {
	var repoDir, owner, date, description, amount, direction, category string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a ledger transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := time.Parse(model.DateFormat, date)
			if err != nil {
				return fmt.Errorf("--date %q: want YYYY-MM-DD", date)
			}
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("--amount %q: %w", amount, err)
			}

			ws, err := openWorkspace(cmd.Context(), repoDir)
			if err != nil {
				return err
			}
			defer ws.Close()

			if owner == "" {
				owner = ws.Config.Owner
			}
			txn, err := ws.Ledger.Create(cmd.Context(), owner, model.LedgerFields{
				Date:        d,
				Description: description,
				Amount:      amt,
				Direction:   model.Direction(direction),
				Category:    category,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", txn.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&repoDir, "repo", ".", "path to reconcile project")
	cmd.Flags().StringVar(&owner, "owner", "", "ledger owner (default from config)")
	cmd.Flags().StringVar(&date, "date", "", "transaction date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&description, "description", "", "description (required)")
	cmd.Flags().StringVar(&amount, "amount", "", "unsigned amount (required)")
	cmd.Flags().StringVar(&direction, "direction", string(model.DirectionExpense), "income or expense")
	cmd.Flags().StringVar(&category, "category", model.Uncategorized, "category name")
	for _, f := range []string{"date", "description", "amount"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

// importSource shows which batch row created a transaction.
func importSource(key string) string {
	batch, row, err := id.ParseImportKey(key)
	if err != nil {
		return "-"
	}
	return fmt.Sprintf("%s row %d", batch, row)
}

package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/reconcile/internal/workspace"
)

func newInitCommand() *cobra.Command {
	var owner string
	var profile string
	var noGit bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new reconcile project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			hash, err := workspace.Init(cmd.Context(), absDir, workspace.InitOptions{
				Owner:   owner,
				Profile: profile,
				Git:     !noGit,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if hash == "" {
				fmt.Fprintf(out, "Initialized reconcile project at %s\n", absDir)
			} else {
				fmt.Fprintf(out, "Initialized reconcile project at %s (%s)\n", absDir, hash)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "ledger owner ID (required)")
	_ = cmd.MarkFlagRequired("owner")
	cmd.Flags().StringVar(&profile, "profile", "household", "category profile: household or small_business")
	cmd.Flags().BoolVar(&noGit, "no-git", false, "do not create a git repository")

	return cmd
}

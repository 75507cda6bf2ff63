package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/idguard/internal/cli"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recent training runs or show one in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				run, err := store.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(out, cli.RenderRun(run))
				return nil
			}

			runs, err := store.GetRecentRuns(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, cli.FormatInfo("No training runs recorded yet"))
				return nil
			}
			fmt.Fprintln(out, cli.RenderRuns(runs))
			return nil
		},
	}

	cmd.Flags().Int("limit", 10, "Number of runs to list")
	return cmd
}

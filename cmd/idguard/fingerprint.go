package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/idguard/internal/cli"
	"github.com/Veraticus/idguard/internal/fingerprint"
)

func fingerprintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fingerprint ID...",
		Short: "Print the identifier features the classifier sees",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			strict, _ := cmd.Flags().GetBool("strict")
			out := cmd.OutOrStdout()
			for _, id := range args {
				if strict {
					if err := fingerprint.Validate(id); err != nil {
						fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("%s: %v", id, err)))
						continue
					}
				}
				fmt.Fprintln(out, cli.RenderFingerprint(id, fingerprint.Compute(id)))
			}
			return nil
		},
	}

	cmd.Flags().Bool("strict", false, "Reject identifiers that contain non-digit characters")
	return cmd
}

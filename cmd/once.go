package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newOnceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single watch cycle now and print its outcome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := wireApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.scheduler.RunOnce(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintln(out, result.String()); err != nil {
				return err
			}
			return printLoads(out, result.Accepted)
		},
	}
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bnema/truck-load-watch/internal/config"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Watch the market until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := wireApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			return app.scheduler.Run(cmd.Context())
		},
	}

	cmd.Flags().String("interval", "", "poll interval, e.g. 5s")
	if err := opts.v.BindPFlag(config.KeyPollInterval, cmd.Flags().Lookup("interval")); err != nil {
		panic(err)
	}

	return cmd
}

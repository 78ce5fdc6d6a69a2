package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/truck-load-watch/internal/application"
	"github.com/bnema/truck-load-watch/internal/domain"
)

func newAcceptedCmd(opts *rootOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "accepted",
		Short: "List loads accepted since the start of the UTC day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days < 0 {
				return fmt.Errorf("--days must not be negative")
			}

			app, err := wireApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			since := application.StartOfDayUTC(time.Now()).AddDate(0, 0, -days)
			loads, err := app.store.ListAcceptedSince(cmd.Context(), since)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(out, "%d accepted since %s\n", len(loads), since.Format(time.DateOnly)); err != nil {
				return err
			}
			return printLoads(out, loads)
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "also include this many previous days")
	return cmd
}

func printLoads(out io.Writer, loads []domain.AcceptedLoad) error {
	for _, load := range loads {
		if _, err := fmt.Fprintf(out, "  %s  %s -> %s  %d lbs  %s\n",
			load.ExternalID, load.OriginLocation, load.DestLocation, load.WeightLbs, load.Consignee); err != nil {
			return err
		}
	}
	return nil
}

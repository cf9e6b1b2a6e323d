package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuongbtq/boq-ai/internal/boq/history"
)

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history CLIENT_KEY",
		Short: "Show the recorded status trail of a submitted job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Client.HistoryPath == "" {
				return errors.New("history is disabled: set client.history_path")
			}

			journal, err := history.Open(a.cfg.Client.HistoryPath, a.logger.Logger)
			if err != nil {
				return err
			}
			defer journal.Close()

			entries, err := journal.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return fmt.Errorf("no history for %s", args[0])
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "Recorded\tStatus\tProgress\tServer ID\tError")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%d%%\t%s\t%s\n",
					e.RecordedAt.Local().Format(time.DateTime), e.Status, e.Progress, e.ServerID, e.Error)
			}
			return tw.Flush()
		},
	}
}

package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"transcodehost/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent transcoder launches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg.HistoryPath())
			if err != nil {
				return fmt.Errorf("open launch history: %w", err)
			}
			defer store.Close()

			launches, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list launches: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(launches) == 0 {
				fmt.Fprintln(out, "No launches recorded")
				return nil
			}

			rows := make([][]string, 0, len(launches))
			for _, launch := range launches {
				rows = append(rows, launchRow(launch))
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Started", "Run", "PID", "Restarts", "Outcome", "Exit", "Duration"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignRight, alignRight},
				shouldColorize(out),
			))

			counts, err := store.Counts(cmd.Context())
			if err != nil {
				return fmt.Errorf("count launches: %w", err)
			}
			fmt.Fprintf(out, "Totals: %d clean, %d failure, %d spawn_failed, %d running\n",
				counts[history.OutcomeClean],
				counts[history.OutcomeFailure],
				counts[history.OutcomeSpawnFailed],
				counts[history.OutcomeRunning],
			)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of launches to show")
	return cmd
}

func launchRow(launch history.Launch) []string {
	runID := launch.RunID
	if len(runID) > 8 {
		runID = runID[:8]
	}
	pid := "-"
	if launch.PID > 0 {
		pid = strconv.Itoa(launch.PID)
	}
	exit := "-"
	if launch.ExitCode != nil {
		exit = strconv.Itoa(*launch.ExitCode)
	}
	outcome := string(launch.Outcome)
	if launch.Error != "" {
		outcome += ": " + launch.Error
	}
	return []string{
		launch.StartedAt.Local().Format("2006-01-02 15:04:05"),
		runID,
		pid,
		strconv.Itoa(launch.Restarts),
		outcome,
		exit,
		launch.Duration().Round(time.Second).String(),
	}
}

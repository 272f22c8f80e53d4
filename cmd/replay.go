package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shreedharv16/accesslint/internal/output"
)

var replayCmd = &cobra.Command{
	Use:   "replay <session-id>",
	Short: "Print the stored transcript of a past session",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recent sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessions,
}

var sessionsLimit int

func init() {
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 20, "Maximum sessions to list")
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	sessionID := args[0]
	ctx := cmd.Context()

	s, err := getStore()
	if err != nil {
		return err
	}

	rec, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	ui.Info("session %s (%s/%s)", rec.ID, rec.Provider, rec.Model)
	ui.Info("goal:\n%s", rec.Goal)

	transcript, err := s.GetTranscript(ctx, sessionID)
	if err != nil {
		return err
	}
	for _, iter := range transcript {
		fmt.Fprintf(ui.Out, "\n=== iteration %d ===\n", iter.Iteration)
		fmt.Fprintln(ui.Out, strings.TrimSpace(iter.RawReply))
		for _, r := range iter.Results {
			label := "ok"
			if !r.Success {
				label = "error: " + r.ErrorMessage
			}
			fmt.Fprintf(ui.Out, "--- %s (%dms) %s\n", r.ToolName, r.DurationMs, label)
			if r.Output != "" {
				fmt.Fprintln(ui.Out, r.Output)
			}
		}
	}

	ui.Info("ended %s: %s", rec.Status, rec.Reason)

	changes, err := s.GetChanges(ctx, sessionID)
	if err != nil {
		return err
	}
	for _, c := range changes {
		fmt.Fprintf(ui.Out, "%s %s\n", output.ChangeColor(c.Kind), c.Path)
	}
	return nil
}

func runSessions(cmd *cobra.Command, args []string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	records, err := s.ListSessions(cmd.Context(), sessionsLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		ui.Info("no sessions recorded")
		return nil
	}

	table := ui.Table([]string{"ID", "Status", "Iterations", "Started", "Reason"})
	for _, rec := range records {
		table.Append([]string{
			rec.ID,
			rec.Status,
			fmt.Sprintf("%d", rec.Iterations),
			rec.StartedAt.Format("2006-01-02 15:04"),
			truncateReason(rec.Reason),
		})
	}
	return table.Render()
}

func truncateReason(reason string) string {
	reason = strings.ReplaceAll(reason, "\n", " ")
	if len(reason) > 60 {
		return reason[:57] + "..."
	}
	return reason
}

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/tickeasy/internal/models"
	"github.com/joescharf/tickeasy/internal/output"
	"github.com/joescharf/tickeasy/internal/store"
)

var (
	logConcert string
	logFailed  bool
	logLimit   int
	pruneOlder string
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Inspect the local log of submitted review decisions",
}

var reviewLogCmd = &cobra.Command{
	Use:   "log",
	Short: "List review submissions made from this console",
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewLogRun()
	},
}

var reviewShowCmd = &cobra.Command{
	Use:   "show <submission-id>",
	Short: "Show one logged submission",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewShowRun(args[0])
	},
}

var reviewPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete logged submissions older than a cutoff",
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewPruneRun()
	},
}

func init() {
	reviewLogCmd.Flags().StringVarP(&logConcert, "concert", "c", "", "Only submissions for this concert")
	reviewLogCmd.Flags().BoolVar(&logFailed, "failed", false, "Only failed submissions")
	reviewLogCmd.Flags().IntVarP(&logLimit, "limit", "l", 20, "Maximum rows to show (0 for all)")

	reviewPruneCmd.Flags().StringVar(&pruneOlder, "older-than", "30d", "Age cutoff, e.g. 30d or 72h")

	reviewCmd.AddCommand(reviewLogCmd)
	reviewCmd.AddCommand(reviewShowCmd)
	reviewCmd.AddCommand(reviewPruneCmd)
	rootCmd.AddCommand(reviewCmd)
}

func reviewLogRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	filter := store.SubmissionFilter{ConcertID: logConcert, Limit: logLimit}
	if logFailed {
		filter.Outcome = models.SubmissionFailed
	}
	subs, err := s.ListSubmissions(cmdContext(), filter)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		ui.Info("No submissions logged.")
		return nil
	}

	table := ui.Table([]string{"ID", "Concert", "Decision", "Outcome", "Actor", "Detail", "When"})
	for _, sub := range subs {
		detail := sub.ErrorDetail
		if detail == "" {
			detail = sub.Note
		}
		_ = table.Append([]string{
			shortID(sub.ID),
			shortID(sub.ConcertID),
			string(sub.Decision),
			output.OutcomeColor(string(sub.Outcome)),
			sub.ActorID,
			truncate(detail, 40),
			timeAgo(sub.CreatedAt),
		})
	}
	_ = table.Render()
	return nil
}

func reviewShowRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	sub, err := s.GetSubmission(cmdContext(), id)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(shortID(sub.ID)), output.OutcomeColor(string(sub.Outcome)))
	fmt.Fprintf(ui.Out, "  Concert:    %s\n", sub.ConcertID)
	fmt.Fprintf(ui.Out, "  Decision:   %s\n", sub.Decision)
	if sub.Note != "" {
		fmt.Fprintf(ui.Out, "  Note:       %s\n", sub.Note)
	}
	if sub.ActorID != "" {
		fmt.Fprintf(ui.Out, "  Actor:      %s\n", sub.ActorID)
	}
	if sub.ErrorKind != "" {
		fmt.Fprintf(ui.Out, "  Error:      %s: %s\n", sub.ErrorKind, sub.ErrorDetail)
	}
	fmt.Fprintf(ui.Out, "  Created:    %s\n", sub.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "  Full ID:    %s\n", sub.ID)
	return nil
}

func reviewPruneRun() error {
	age, err := parseAge(pruneOlder)
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-age)

	if dryRun {
		ui.DryRunMsg("Would delete submissions logged before %s", cutoff.Format(time.RFC3339))
		return nil
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	n, err := s.PruneSubmissions(cmdContext(), cutoff)
	if err != nil {
		return err
	}
	ui.Success("Pruned %d submission(s)", n)
	return nil
}

// parseAge accepts a Go duration or a whole number of days ("30d").
func parseAge(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if days, ok := strings.CutSuffix(v, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid age %q", v)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid age %q", v)
	}
	return d, nil
}

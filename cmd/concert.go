package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/tickeasy/internal/apperr"
	"github.com/joescharf/tickeasy/internal/backend"
	"github.com/joescharf/tickeasy/internal/ledger"
	"github.com/joescharf/tickeasy/internal/lifecycle"
	"github.com/joescharf/tickeasy/internal/models"
	"github.com/joescharf/tickeasy/internal/output"
	"github.com/joescharf/tickeasy/internal/review"
)

var (
	reviewsType    string
	reviewDecision string
	reviewNote     string
	reviewYes      bool
	reviewSuggest  bool
)

var concertCmd = &cobra.Command{
	Use:   "concert",
	Short: "Inspect and moderate concerts",
}

var concertShowCmd = &cobra.Command{
	Use:   "show <concert-id>",
	Short: "Show a concert with its status badges and review history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return concertShowRun(args[0])
	},
}

var concertReviewsCmd = &cobra.Command{
	Use:   "reviews <concert-id>",
	Short: "List the review ledger of a concert, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return concertReviewsRun(args[0])
	},
}

var concertReviewCmd = &cobra.Command{
	Use:   "review <concert-id>",
	Short: "Submit a manual review decision",
	Long: `Submit a manual review decision for a concert.

Every decision needs a reviewer note. The decision is shown for confirmation
before anything is sent. --suggest drafts the note from the latest automated
review when --note is empty (requires an Anthropic API key).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return concertReviewRun(args[0])
	},
}

func init() {
	concertReviewsCmd.Flags().StringVarP(&reviewsType, "type", "t", "", "Filter by review type (manual, automated)")

	concertReviewCmd.Flags().StringVarP(&reviewDecision, "decision", "d", "", "Decision: approved or rejected (required)")
	concertReviewCmd.Flags().StringVar(&reviewNote, "note", "", "Reviewer note (required)")
	concertReviewCmd.Flags().BoolVarP(&reviewYes, "yes", "y", false, "Skip the confirmation prompt")
	concertReviewCmd.Flags().BoolVar(&reviewSuggest, "suggest", false, "Draft the note with the LLM when --note is empty")
	_ = concertReviewCmd.MarkFlagRequired("decision")

	concertCmd.AddCommand(concertShowCmd)
	concertCmd.AddCommand(concertReviewsCmd)
	concertCmd.AddCommand(concertReviewCmd)
	rootCmd.AddCommand(concertCmd)
}

func concertShowRun(id string) error {
	sess, err := cliSession()
	if err != nil {
		return err
	}
	tok, err := requireToken(sess)
	if err != nil {
		return err
	}
	ctx := cmdContext()
	client := newBackend()

	c, err := client.GetConcert(ctx, tok, id)
	if err != nil {
		return fmt.Errorf("load concert: %s", apperr.Detail(err))
	}
	_, reader, err := newEngine(client, nil)
	if err != nil {
		return err
	}
	res := reader.FetchReviews(ctx, id, tok)

	printConcert(c)
	fmt.Fprintln(ui.Out)
	if res.Err != nil {
		ui.Warning("Review history unavailable: %s", apperr.Detail(res.Err))
		return nil
	}
	printReviews(res.Records)
	return nil
}

func printConcert(c *models.Concert) {
	p := lifecycle.ProjectConcert(c)

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(shortID(c.ConcertID)), c.Title)
	fmt.Fprintf(ui.Out, "  Lifecycle:  %s\n", output.BadgeColor(p.Lifecycle))
	if p.Review != nil {
		fmt.Fprintf(ui.Out, "  Review:     %s\n", output.BadgeColor(*p.Review))
	}
	if c.Organization != nil && c.Organization.Name != "" {
		fmt.Fprintf(ui.Out, "  Organizer:  %s\n", c.Organization.Name)
	}
	if venue := c.VenueName(); venue != "" {
		fmt.Fprintf(ui.Out, "  Venue:      %s\n", venue)
	}
	if c.EventStartDate != "" {
		fmt.Fprintf(ui.Out, "  Starts:     %s\n", c.EventStartDate)
	}
	if c.ReviewNote != "" {
		fmt.Fprintf(ui.Out, "  Note:       %s\n", c.ReviewNote)
	}
	if !c.UpdatedAt.IsZero() {
		fmt.Fprintf(ui.Out, "  Updated:    %s\n", c.UpdatedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(ui.Out, "  Full ID:    %s\n", c.ConcertID)
	if p.CanReview {
		fmt.Fprintf(ui.Out, "\n  Awaiting a decision: tickeasy concert review %s --decision approved|rejected\n", c.ConcertID)
	}
}

func printReviews(records []models.ReviewRecord) {
	if len(records) == 0 {
		ui.Info("No reviews recorded.")
		return
	}

	table := ui.Table([]string{"ID", "Type", "Status", "Reviewer", "Note", "When"})
	for _, r := range records {
		note := r.ReviewerNote
		if note == "" && r.Analysis != nil {
			note = r.Analysis.Summary
		}
		_ = table.Append([]string{
			shortID(r.ReviewID),
			string(r.Type),
			output.BadgeColor(lifecycle.ReviewBadge(r.Status)),
			r.Reviewer(),
			truncate(note, 48),
			timeAgo(r.CreatedAt),
		})
	}
	_ = table.Render()
}

func concertReviewsRun(id string) error {
	var filter models.ReviewType
	if reviewsType != "" {
		filter = models.ReviewType(strings.ToLower(reviewsType))
		if filter != models.ReviewTypeManual && filter != models.ReviewTypeAutomated {
			return fmt.Errorf("invalid --type %q (use manual or automated)", reviewsType)
		}
	}

	sess, err := cliSession()
	if err != nil {
		return err
	}
	tok, err := requireToken(sess)
	if err != nil {
		return err
	}
	_, reader, err := newEngine(newBackend(), nil)
	if err != nil {
		return err
	}

	res := reader.FetchReviews(cmdContext(), id, tok)
	if res.Err != nil {
		return fmt.Errorf("fetch reviews: %s", apperr.Detail(res.Err))
	}
	ui.VerboseLog("Ledger shape: %s", res.Shape)

	records := res.Records
	if filter != "" {
		kept := records[:0:0]
		for _, r := range records {
			if r.Type == filter {
				kept = append(kept, r)
			}
		}
		records = kept
	}
	printReviews(records)
	return nil
}

func concertReviewRun(id string) error {
	decision := models.Decision(strings.ToLower(strings.TrimSpace(reviewDecision)))

	sess, err := cliSession()
	if err != nil {
		return err
	}
	tok, err := requireToken(sess)
	if err != nil {
		return err
	}
	ctx := cmdContext()
	client := newBackend()

	engine, reader, err := newEngine(client, nil)
	if err != nil {
		return err
	}
	if err := engine.Precheck(tok); err != nil {
		ui.Warning("%s; the service will likely refuse this decision", apperr.Detail(err))
	}

	note := reviewNote
	if note == "" && reviewSuggest {
		drafted, err := suggestNote(ctx, client, reader, tok, id, decision)
		if err != nil {
			ui.Warning("Could not draft a note: %v", err)
		} else {
			note = drafted
			fmt.Fprintf(ui.Out, "Drafted note: %s\n", note)
		}
	}

	flow := review.NewFlow(engine, id)
	if err := flow.Propose(decision, note); err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would submit %s for concert %s", decision, id)
		return flow.Cancel()
	}

	if !reviewYes {
		prompt := fmt.Sprintf("Submit %s for concert %s?", output.OutcomeColor(string(decision)), id)
		if note != "" {
			prompt = fmt.Sprintf("Submit %s for concert %s with note %q?", output.OutcomeColor(string(decision)), id, note)
		}
		if !ui.Confirm("%s", prompt) {
			ui.Info("Cancelled, nothing was sent.")
			return flow.Cancel()
		}
	}

	ack, err := flow.Confirm(ctx, tok)
	if err != nil {
		return fmt.Errorf("submit review: %s", apperr.Detail(err))
	}

	ui.Success("Concert %s is now %s", id, output.BadgeColor(lifecycle.LifecycleBadge(ack.Lifecycle)))
	if ack.LedgerErr != nil {
		ui.Warning("Review history unavailable: %s", apperr.Detail(ack.LedgerErr))
		return nil
	}
	fmt.Fprintln(ui.Out)
	printReviews(ack.Reviews)
	return nil
}

// suggestNote drafts a reviewer note from the concert and its ledger.
func suggestNote(ctx context.Context, client *backend.Client, reader *ledger.Reader, tok, id string, want models.Decision) (string, error) {
	llmClient := newLLMClient()
	if llmClient == nil {
		return "", fmt.Errorf("no Anthropic API key configured (set anthropic.api_key or ANTHROPIC_API_KEY)")
	}
	c, err := client.GetConcert(ctx, tok, id)
	if err != nil {
		return "", err
	}
	res := reader.FetchReviews(ctx, id, tok)
	draft, err := llmClient.DraftReviewNote(ctx, c, res.Records, want)
	if err != nil {
		return "", err
	}
	return draft.Note, nil
}

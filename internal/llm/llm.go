// Package llm drafts reviewer notes from a concert and its automated
// pre-screening result. The operator always edits and confirms the note.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joescharf/tickeasy/internal/models"
)

// DraftNote is a suggested decision and reviewer note.
type DraftNote struct {
	Decision models.Decision `json:"decision"`
	Note     string          `json:"note"`
}

// Client wraps the Anthropic API for note drafting.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// latestAutomated returns the most recent automated record, or nil. records
// are expected newest first.
func latestAutomated(records []models.ReviewRecord) *models.ReviewRecord {
	for i := range records {
		if records[i].Type == models.ReviewTypeAutomated {
			return &records[i]
		}
	}
	return nil
}

// buildDraftPrompt constructs the system and user prompts for note drafting.
// want may be empty to let the model suggest a decision.
func buildDraftPrompt(c *models.Concert, records []models.ReviewRecord, want models.Decision) (system string, user string) {
	system = `You assist a ticketing platform moderator reviewing a submitted concert listing. Return ONLY a JSON object with two fields:
- "decision": "approved" or "rejected"
- "note": a reviewer note of 1-3 sentences, written for the organizer, stating the reason for the decision

Rules:
- If a decision is given, keep it and write the note to justify it
- Base the note on the listing and the automated analysis; do not invent facts
- Mention flagged content explicitly when rejecting
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	fmt.Fprintf(&sb, "Concert: %s (%s)\n", c.Title, c.ConcertID)
	if v := c.VenueName(); v != "" {
		fmt.Fprintf(&sb, "Venue: %s\n", v)
	}
	if c.EventStartDate != "" {
		fmt.Fprintf(&sb, "Schedule: %s - %s\n", c.EventStartDate, c.EventEndDate)
	}
	if c.Introduction != "" {
		fmt.Fprintf(&sb, "\nIntroduction:\n%s\n", c.Introduction)
	}

	if rec := latestAutomated(records); rec != nil && rec.Analysis != nil {
		a := rec.Analysis
		sb.WriteString("\nAutomated analysis:\n")
		if a.Summary != "" {
			fmt.Fprintf(&sb, "- Summary: %s\n", a.Summary)
		}
		if a.Recommended != nil {
			fmt.Fprintf(&sb, "- Appropriate: %t\n", *a.Recommended)
		}
		if a.Confidence != nil {
			fmt.Fprintf(&sb, "- Confidence: %.2f\n", *a.Confidence)
		}
		if len(a.Reasons) > 0 {
			fmt.Fprintf(&sb, "- Reasons: %s\n", strings.Join(a.Reasons, "; "))
		}
		if len(a.FlaggedContent) > 0 {
			fmt.Fprintf(&sb, "- Flagged: %s\n", strings.Join(a.FlaggedContent, "; "))
		}
		if len(a.Suggestions) > 0 {
			fmt.Fprintf(&sb, "- Suggestions: %s\n", strings.Join(a.Suggestions, "; "))
		}
	} else {
		sb.WriteString("\nNo automated analysis is available.\n")
	}

	if want != "" {
		fmt.Fprintf(&sb, "\nDecision: %s\n", want)
	}
	user = sb.String()
	return
}

// stripFence removes a surrounding markdown code fence.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}

func parseDraft(text string, want models.Decision) (*DraftNote, error) {
	var d DraftNote
	if err := json.Unmarshal([]byte(stripFence(text)), &d); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}
	if want != "" {
		d.Decision = want
	}
	if !d.Decision.Valid() {
		return nil, fmt.Errorf("LLM suggested invalid decision %q", d.Decision)
	}
	d.Note = strings.TrimSpace(d.Note)
	if d.Note == "" {
		return nil, fmt.Errorf("LLM returned an empty note")
	}
	return &d, nil
}

// DraftReviewNote asks the model for a reviewer note. want fixes the
// decision when non-empty.
func (c *Client) DraftReviewNote(ctx context.Context, concert *models.Concert, records []models.ReviewRecord, want models.Decision) (*DraftNote, error) {
	systemPrompt, userPrompt := buildDraftPrompt(concert, records, want)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return parseDraft(text, want)
}

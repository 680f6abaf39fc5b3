package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/tickeasy/internal/apperr"
	"github.com/joescharf/tickeasy/internal/lifecycle"
	"github.com/joescharf/tickeasy/internal/models"
	"github.com/joescharf/tickeasy/internal/review"
	"github.com/joescharf/tickeasy/internal/session"
)

// Concerts reads concert detail from the moderation service.
type Concerts interface {
	GetConcert(ctx context.Context, token, concertID string) (*models.Concert, error)
}

// Server exposes the moderation console as MCP tools. All calls run as the
// operator signed in to the local session.
type Server struct {
	session  *session.Context
	concerts Concerts
	reader   review.LedgerReader
	engine   *review.Engine
}

// NewServer creates the MCP server wrapper with all required dependencies.
func NewServer(sess *session.Context, concerts Concerts, reader review.LedgerReader, engine *review.Engine) *Server {
	return &Server{session: sess, concerts: concerts, reader: reader, engine: engine}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("tickeasy", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.concertStatusTool())
	srv.AddTool(s.listReviewsTool())
	srv.AddTool(s.submitReviewTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) token(ctx context.Context) (string, *mcp.CallToolResult) {
	tok, err := s.session.Token(ctx)
	if err != nil {
		return "", mcp.NewToolResultError(fmt.Sprintf("read session: %v", err))
	}
	if tok == "" {
		return "", mcp.NewToolResultError("not signed in: run `tickeasy login` first")
	}
	return tok, nil
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// tickeasy_concert_status
func (s *Server) concertStatusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tickeasy_concert_status",
		mcp.WithDescription("Get a concert's lifecycle and review status, and whether a manual review can be submitted now."),
		mcp.WithString("concert_id", mcp.Required(), mcp.Description("Concert ID")),
	)
	return tool, s.handleConcertStatus
}

func (s *Server) handleConcertStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("concert_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: concert_id"), nil
	}
	tok, errResult := s.token(ctx)
	if errResult != nil {
		return errResult, nil
	}

	c, err := s.concerts.GetConcert(ctx, tok, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get concert: %s", apperr.Detail(err))), nil
	}

	type statusOut struct {
		ConcertID       string                 `json:"concertId"`
		Title           string                 `json:"title"`
		Venue           string                 `json:"venue,omitempty"`
		LifecycleStatus models.LifecycleStatus `json:"lifecycleStatus"`
		ReviewStatus    models.ReviewStatus    `json:"reviewStatus,omitempty"`
		ReviewNote      string                 `json:"reviewNote,omitempty"`
		Projection      lifecycle.Projection   `json:"projection"`
	}
	return jsonResult(statusOut{
		ConcertID:       c.ConcertID,
		Title:           c.Title,
		Venue:           c.VenueName(),
		LifecycleStatus: c.LifecycleStatus,
		ReviewStatus:    c.ReviewStatus,
		ReviewNote:      c.ReviewNote,
		Projection:      lifecycle.ProjectConcert(c),
	}), nil
}

// tickeasy_list_reviews
func (s *Server) listReviewsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tickeasy_list_reviews",
		mcp.WithDescription("List a concert's review history, newest first, including automated pre-screening results."),
		mcp.WithString("concert_id", mcp.Required(), mcp.Description("Concert ID")),
		mcp.WithString("type", mcp.Description("Filter by review type: manual or automated")),
	)
	return tool, s.handleListReviews
}

func (s *Server) handleListReviews(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("concert_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: concert_id"), nil
	}
	tok, errResult := s.token(ctx)
	if errResult != nil {
		return errResult, nil
	}

	res := s.reader.FetchReviews(ctx, id, tok)
	records := res.Records
	if typ := request.GetString("type", ""); typ != "" {
		filtered := make([]models.ReviewRecord, 0, len(records))
		for _, r := range records {
			if string(r.Type) == typ {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}

	out := map[string]any{"reviews": records}
	if res.Err != nil {
		out["error"] = apperr.Detail(res.Err)
	}
	return jsonResult(out), nil
}

// tickeasy_submit_review
func (s *Server) submitReviewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tickeasy_submit_review",
		mcp.WithDescription("Approve or reject a concert awaiting review. Without confirm=true the decision is only validated and echoed back for confirmation; nothing is sent."),
		mcp.WithString("concert_id", mcp.Required(), mcp.Description("Concert ID")),
		mcp.WithString("decision", mcp.Required(), mcp.Description("approved or rejected")),
		mcp.WithString("note", mcp.Required(), mcp.Description("Reviewer note recorded in the review history")),
		mcp.WithBoolean("confirm", mcp.Description("Set to true to actually submit")),
	)
	return tool, s.handleSubmitReview
}

func (s *Server) handleSubmitReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("concert_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: concert_id"), nil
	}
	decision, err := request.RequireString("decision")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: decision"), nil
	}
	note := request.GetString("note", "")

	flow := review.NewFlow(s.engine, id)
	if err := flow.Propose(models.Decision(decision), note); err != nil {
		return mcp.NewToolResultError(apperr.Detail(err)), nil
	}

	if !request.GetBool("confirm", false) {
		return jsonResult(map[string]any{
			"submitted": false,
			"concertId": id,
			"decision":  decision,
			"note":      note,
			"message":   "call again with confirm=true to submit this decision",
		}), nil
	}

	tok, errResult := s.token(ctx)
	if errResult != nil {
		return errResult, nil
	}
	ack, err := flow.Confirm(ctx, tok)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("review not recorded: %s", apperr.Detail(err))), nil
	}

	out := map[string]any{
		"submitted":       true,
		"concertId":       ack.ConcertID,
		"reviewStatus":    ack.ReviewStatus,
		"lifecycleStatus": ack.Lifecycle,
		"reviews":         ack.Reviews,
	}
	if ack.LedgerErr != nil {
		out["reviewsError"] = apperr.Detail(ack.LedgerErr)
	}
	return jsonResult(out), nil
}

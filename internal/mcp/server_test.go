package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/tickeasy/internal/apperr"
	"github.com/joescharf/tickeasy/internal/ledger"
	"github.com/joescharf/tickeasy/internal/models"
	"github.com/joescharf/tickeasy/internal/review"
	"github.com/joescharf/tickeasy/internal/session"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

// mockRemote implements Concerts, review.Submitter and ledger.Fetcher.
type mockRemote struct {
	concerts  map[string]*models.Concert
	ledger    string
	submitted []models.Decision
	submitErr error
}

func (m *mockRemote) GetConcert(_ context.Context, _, id string) (*models.Concert, error) {
	c, ok := m.concerts[id]
	if !ok {
		return nil, apperr.Remote("fetch concert", 404, "concert not found: "+id)
	}
	return c, nil
}

func (m *mockRemote) SubmitManualReview(_ context.Context, _, _ string, d models.Decision, _ string) error {
	if m.submitErr != nil {
		return m.submitErr
	}
	m.submitted = append(m.submitted, d)
	m.ledger = fmt.Sprintf(`[{"reviewId":"r2","reviewType":"manual","reviewStatus":%q,"createdAt":"2025-02-01T00:00:00Z"},
		{"reviewId":"r1","reviewType":"ai_auto","reviewStatus":"pending","createdAt":"2025-01-01T00:00:00Z"}]`, d)
	return nil
}

func (m *mockRemote) FetchReviews(context.Context, string, string) ([]byte, error) {
	return []byte(m.ledger), nil
}

func newTestServer(t *testing.T, signedIn bool) (*Server, *mockRemote) {
	t.Helper()
	mr := &mockRemote{
		concerts: map[string]*models.Concert{
			"c1": {ConcertID: "c1", Title: "Spring Live", LifecycleStatus: models.LifecycleReviewing, ReviewStatus: models.ReviewPending,
				Venue: &models.Venue{Name: "Legacy Taipei"}},
		},
		ledger: `{"reviews":[{"reviewId":"r1","reviewType":"ai_auto","reviewStatus":"pending","createdAt":"2025-01-01T00:00:00Z"}]}`,
	}
	st := session.NewMemoryStore()
	if signedIn {
		require.NoError(t, st.SetValue(context.Background(), session.TokenKey, "tok"))
	}
	reader := ledger.NewReader(mr, nil, nil)
	engine := review.NewEngine(mr, reader, nil, review.Config{})
	return NewServer(session.New(st, nil), mr, reader, engine), mr
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into the provided target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	err := json.Unmarshal([]byte(text), target)
	require.NoError(t, err, "failed to parse result JSON: %s", text)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestMCPServer_RegistersTools(t *testing.T) {
	srv, _ := newTestServer(t, true)
	require.NotNil(t, srv.MCPServer())

	var names []string
	for _, def := range []func() (mcpgo.Tool, mcpserver.ToolHandlerFunc){srv.concertStatusTool, srv.listReviewsTool, srv.submitReviewTool} {
		tool, handler := def()
		assert.NotNil(t, handler)
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"tickeasy_concert_status", "tickeasy_list_reviews", "tickeasy_submit_review"}, names)
}

func TestConcertStatus(t *testing.T) {
	srv, _ := newTestServer(t, true)

	result, err := srv.handleConcertStatus(context.Background(), callToolReq("tickeasy_concert_status", map[string]any{"concert_id": "c1"}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out struct {
		Title      string `json:"title"`
		Venue      string `json:"venue"`
		Projection struct {
			CanReview bool `json:"canReview"`
		} `json:"projection"`
	}
	resultJSON(t, result, &out)
	assert.Equal(t, "Spring Live", out.Title)
	assert.Equal(t, "Legacy Taipei", out.Venue)
	assert.True(t, out.Projection.CanReview)
}

func TestConcertStatus_Errors(t *testing.T) {
	srv, _ := newTestServer(t, true)

	result, err := srv.handleConcertStatus(context.Background(), callToolReq("tickeasy_concert_status", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = srv.handleConcertStatus(context.Background(), callToolReq("tickeasy_concert_status", map[string]any{"concert_id": "nope"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "concert not found: nope")
}

func TestConcertStatus_NotSignedIn(t *testing.T) {
	srv, _ := newTestServer(t, false)

	result, err := srv.handleConcertStatus(context.Background(), callToolReq("tickeasy_concert_status", map[string]any{"concert_id": "c1"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "not signed in")
}

func TestListReviews(t *testing.T) {
	srv, _ := newTestServer(t, true)

	result, err := srv.handleListReviews(context.Background(), callToolReq("tickeasy_list_reviews", map[string]any{"concert_id": "c1"}))
	require.NoError(t, err)

	var out struct {
		Reviews []models.ReviewRecord `json:"reviews"`
		Error   string                `json:"error"`
	}
	resultJSON(t, result, &out)
	require.Len(t, out.Reviews, 1)
	assert.Equal(t, models.ReviewTypeAutomated, out.Reviews[0].Type)
	assert.Empty(t, out.Error)
}

func TestListReviews_TypeFilterAndUnrecognized(t *testing.T) {
	srv, mr := newTestServer(t, true)

	result, err := srv.handleListReviews(context.Background(), callToolReq("tickeasy_list_reviews", map[string]any{"concert_id": "c1", "type": "manual"}))
	require.NoError(t, err)
	var out struct {
		Reviews []models.ReviewRecord `json:"reviews"`
		Error   string                `json:"error"`
	}
	resultJSON(t, result, &out)
	assert.Empty(t, out.Reviews)

	mr.ledger = `{}`
	result, err = srv.handleListReviews(context.Background(), callToolReq("tickeasy_list_reviews", map[string]any{"concert_id": "c1"}))
	require.NoError(t, err)
	assert.False(t, result.IsError, "unrecognized ledger degrades, it does not fail")
	resultJSON(t, result, &out)
	assert.Empty(t, out.Reviews)
	assert.NotEmpty(t, out.Error)
}

func TestSubmitReview_RequiresConfirm(t *testing.T) {
	srv, mr := newTestServer(t, true)

	result, err := srv.handleSubmitReview(context.Background(), callToolReq("tickeasy_submit_review", map[string]any{
		"concert_id": "c1", "decision": "approved", "note": "verified",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out map[string]any
	resultJSON(t, result, &out)
	assert.Equal(t, false, out["submitted"])
	assert.Empty(t, mr.submitted, "nothing sent without confirm")
}

func TestSubmitReview_Confirmed(t *testing.T) {
	srv, mr := newTestServer(t, true)

	result, err := srv.handleSubmitReview(context.Background(), callToolReq("tickeasy_submit_review", map[string]any{
		"concert_id": "c1", "decision": "rejected", "note": "misleading lineup", "confirm": true,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out struct {
		Submitted       bool                  `json:"submitted"`
		LifecycleStatus string                `json:"lifecycleStatus"`
		Reviews         []models.ReviewRecord `json:"reviews"`
	}
	resultJSON(t, result, &out)
	assert.True(t, out.Submitted)
	assert.Equal(t, "rejected", out.LifecycleStatus)
	require.Len(t, out.Reviews, 2)
	assert.Equal(t, models.ReviewRejected, out.Reviews[0].Status)
	assert.Equal(t, []models.Decision{models.DecisionRejected}, mr.submitted)
}

func TestSubmitReview_Invalid(t *testing.T) {
	srv, mr := newTestServer(t, true)

	for _, args := range []map[string]any{
		{"concert_id": "c1", "decision": "approved", "note": "", "confirm": true},
		{"concert_id": "c1", "decision": "maybe", "note": "x", "confirm": true},
		{"concert_id": "c1", "note": "x"},
	} {
		result, err := srv.handleSubmitReview(context.Background(), callToolReq("tickeasy_submit_review", args))
		require.NoError(t, err)
		assert.True(t, result.IsError, "%v", args)
	}
	assert.Empty(t, mr.submitted)
}

func TestSubmitReview_RemoteRejection(t *testing.T) {
	srv, mr := newTestServer(t, true)
	mr.submitErr = apperr.Remote("submit review", 409, "concert already decided")

	result, err := srv.handleSubmitReview(context.Background(), callToolReq("tickeasy_submit_review", map[string]any{
		"concert_id": "c1", "decision": "approved", "note": "ok", "confirm": true,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "concert already decided")
}

func TestSubmitReview_NotSignedIn(t *testing.T) {
	srv, mr := newTestServer(t, false)

	result, err := srv.handleSubmitReview(context.Background(), callToolReq("tickeasy_submit_review", map[string]any{
		"concert_id": "c1", "decision": "approved", "note": "ok", "confirm": true,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Empty(t, mr.submitted)
}

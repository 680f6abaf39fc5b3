package review

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/joescharf/tickeasy/internal/apperr"
	"github.com/joescharf/tickeasy/internal/ledger"
	"github.com/joescharf/tickeasy/internal/models"
)

// fakeRemote stands in for the moderation service: accepted decisions are
// appended to its ledger, served back in the nested response shape.
type fakeRemote struct {
	mu      sync.Mutex
	calls   int
	fail    error
	reviews []map[string]any
}

func (f *fakeRemote) SubmitManualReview(_ context.Context, _, concertID string, d models.Decision, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return f.fail
	}
	f.reviews = append(f.reviews, map[string]any{
		"reviewId":     fmt.Sprintf("r%d", len(f.reviews)+1),
		"concertId":    concertID,
		"reviewType":   "manual",
		"reviewStatus": string(d),
		"reviewerNote": note,
		"createdAt":    time.Date(2025, 2, 1, 0, 0, len(f.reviews), 0, time.UTC).Format(time.RFC3339),
	})
	return nil
}

func (f *fakeRemote) FetchReviews(context.Context, string, string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return json.Marshal(map[string]any{"status": "success", "data": map[string]any{"reviews": f.reviews}})
}

type memRecorder struct {
	subs []*models.Submission
}

func (m *memRecorder) RecordSubmission(_ context.Context, s *models.Submission) error {
	m.subs = append(m.subs, s)
	return nil
}

func newTestEngine(remote *fakeRemote, rec *memRecorder) *Engine {
	var r Recorder
	if rec != nil {
		r = rec
	}
	return NewEngine(remote, ledger.NewReader(remote, nil, nil), r, Config{PrecheckRole: true})
}

func tokenWithRole(t *testing.T, role string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": "u-42", "email": "op@tickeasy.test", "role": role,
	}).SignedString([]byte("test"))
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestSubmit_SuccessAppearsInLedger(t *testing.T) {
	for _, d := range []models.Decision{models.DecisionApproved, models.DecisionRejected} {
		t.Run(string(d), func(t *testing.T) {
			remote := &fakeRemote{}
			rec := &memRecorder{}
			e := newTestEngine(remote, rec)

			ack, err := e.Submit(context.Background(), "c1", d, "checked the lineup", tokenWithRole(t, "admin"))
			if err != nil {
				t.Fatalf("submit: %v", err)
			}
			if len(ack.Reviews) != 1 {
				t.Fatalf("expected 1 ledger record, got %d", len(ack.Reviews))
			}
			if got := ack.Reviews[0].Status; got != models.ReviewStatus(d) {
				t.Errorf("ledger status = %s, want %s", got, d)
			}
			if ack.ReviewStatus != models.ReviewStatus(d) {
				t.Errorf("ack review status = %s", ack.ReviewStatus)
			}
			if len(rec.subs) != 1 || rec.subs[0].Outcome != models.SubmissionSucceeded {
				t.Fatalf("expected one successful audit row, got %+v", rec.subs)
			}
			if rec.subs[0].ActorID != "u-42" {
				t.Errorf("audit actor = %q", rec.subs[0].ActorID)
			}
		})
	}
}

func TestSubmit_LifecycleOutcome(t *testing.T) {
	e := newTestEngine(&fakeRemote{}, nil)

	ack, err := e.Submit(context.Background(), "c1", models.DecisionApproved, "ok", "tok")
	if err != nil {
		t.Fatal(err)
	}
	if ack.Lifecycle != models.LifecyclePublished {
		t.Errorf("approved lifecycle = %s", ack.Lifecycle)
	}

	ack, err = e.Submit(context.Background(), "c2", models.DecisionRejected, "no", "tok")
	if err != nil {
		t.Fatal(err)
	}
	if ack.Lifecycle != models.LifecycleRejected {
		t.Errorf("rejected lifecycle = %s", ack.Lifecycle)
	}
}

func TestSubmit_Preconditions(t *testing.T) {
	tests := []struct {
		name      string
		concertID string
		decision  models.Decision
		note      string
		token     string
		kind      apperr.Kind
	}{
		{"empty token", "c1", models.DecisionApproved, "fine", "", apperr.Unauthenticated},
		{"blank token", "c1", models.DecisionApproved, "fine", "   ", apperr.Unauthenticated},
		{"empty note", "c1", models.DecisionApproved, "", "tok", apperr.InvalidInput},
		{"whitespace note", "c1", models.DecisionRejected, " \n", "tok", apperr.InvalidInput},
		{"bad decision", "c1", "pending", "fine", "tok", apperr.InvalidInput},
		{"no concert", "", models.DecisionApproved, "fine", "tok", apperr.InvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &fakeRemote{}
			rec := &memRecorder{}
			e := newTestEngine(remote, rec)

			_, err := e.Submit(context.Background(), tt.concertID, tt.decision, tt.note, tt.token)
			if !apperr.Is(err, tt.kind) {
				t.Fatalf("expected %s, got %v", tt.kind, err)
			}
			if remote.calls != 0 {
				t.Errorf("expected no network call, got %d", remote.calls)
			}
			if len(rec.subs) != 0 {
				t.Errorf("expected no audit row, got %d", len(rec.subs))
			}
		})
	}
}

func TestSubmit_RemoteErrorVerbatim(t *testing.T) {
	remote := &fakeRemote{fail: apperr.Remote("submit review", 409, "concert is not in reviewing state")}
	rec := &memRecorder{}
	e := newTestEngine(remote, rec)

	_, err := e.Submit(context.Background(), "c1", models.DecisionApproved, "ok", "tok")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := apperr.Detail(err); got != "concert is not in reviewing state" {
		t.Errorf("detail = %q", got)
	}
	if len(rec.subs) != 1 {
		t.Fatalf("expected one audit row, got %d", len(rec.subs))
	}
	sub := rec.subs[0]
	if sub.Outcome != models.SubmissionFailed || sub.ErrorKind != string(apperr.RemoteFailure) {
		t.Errorf("unexpected audit row: %+v", sub)
	}
}

func TestSubmit_DoesNotGateOnLocalRole(t *testing.T) {
	remote := &fakeRemote{}
	e := newTestEngine(remote, nil)

	// The remote service decides; a user-role token still reaches it.
	if _, err := e.Submit(context.Background(), "c1", models.DecisionApproved, "ok", tokenWithRole(t, "user")); err != nil {
		t.Fatal(err)
	}
	if remote.calls != 1 {
		t.Errorf("expected 1 call, got %d", remote.calls)
	}
}

func TestPrecheck(t *testing.T) {
	e := newTestEngine(&fakeRemote{}, nil)

	if err := e.Precheck(tokenWithRole(t, "user")); !apperr.Is(err, apperr.Forbidden) {
		t.Errorf("user role: expected forbidden, got %v", err)
	}
	for _, role := range []string{"admin", "superuser", ""} {
		if err := e.Precheck(tokenWithRole(t, role)); err != nil {
			t.Errorf("role %q: unexpected %v", role, err)
		}
	}
	if err := e.Precheck("opaque-token"); err != nil {
		t.Errorf("opaque token: unexpected %v", err)
	}

	off := NewEngine(&fakeRemote{}, nil, nil, Config{PrecheckRole: false})
	if err := off.Precheck(tokenWithRole(t, "user")); err != nil {
		t.Errorf("disabled precheck: unexpected %v", err)
	}
}

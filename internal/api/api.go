// Package api serves the operator console: the session bridge and route
// guard in front of a small JSON surface over concerts, reviews and users.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joescharf/tickeasy/internal/apperr"
	"github.com/joescharf/tickeasy/internal/bridge"
	"github.com/joescharf/tickeasy/internal/guard"
	"github.com/joescharf/tickeasy/internal/lifecycle"
	"github.com/joescharf/tickeasy/internal/metrics"
	"github.com/joescharf/tickeasy/internal/models"
	"github.com/joescharf/tickeasy/internal/review"
	"github.com/joescharf/tickeasy/internal/session"
)

// Remote is the subset of the moderation service the handlers call
// directly. Review submission and ledger reads go through the engine and
// reader.
type Remote interface {
	Profile(ctx context.Context, token string) (*models.Actor, error)
	GetConcert(ctx context.Context, token, concertID string) (*models.Concert, error)
	UpdateUserRole(ctx context.Context, token, userID string, role models.Role) (*models.User, error)
}

// Deps are the collaborators of a Server. Logger and Metrics may be nil.
type Deps struct {
	Remote  Remote
	Reader  review.LedgerReader
	Engine  *review.Engine
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Server provides the console HTTP handlers.
type Server struct {
	remote   Remote
	reader   review.LedgerReader
	engine   *review.Engine
	metrics  *metrics.Metrics
	logger   *slog.Logger
	guard    *guard.Guard
	bridge   *bridge.Bridge
	loginURL string
}

// NewServer creates a new console server.
func NewServer(d Deps, cfg guard.Config) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		remote:   d.Remote,
		reader:   d.Reader,
		engine:   d.Engine,
		metrics:  d.Metrics,
		logger:   logger,
		guard:    guard.New(cfg, logger, d.Metrics),
		bridge:   bridge.New(logger, d.Metrics),
		loginURL: cfg.LoginURL,
	}
}

// Router returns the full handler chain: cors, bridge, guard, routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.healthz)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /auth/logout", s.logout)

	mux.HandleFunc("GET /dashboard/api/me", s.me)
	mux.HandleFunc("GET /dashboard/api/concerts/{id}", s.getConcert)
	mux.HandleFunc("GET /dashboard/api/concerts/{id}/reviews", s.listReviews)
	mux.HandleFunc("POST /dashboard/api/concerts/{id}/review", s.submitReview)
	mux.HandleFunc("PATCH /dashboard/api/users/{id}/role", s.updateUserRole)

	guarded := s.guard.Middleware(s.session, mux)
	return corsMiddleware(s.bridge.Middleware(s.session, guarded))
}

// session scopes a session to this request. The request's cookie carries the
// token; handoff and logout writes stay within the request.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Context {
	return session.NewRequest(session.NewCookieChannel(w, r)).WithLogger(s.logger)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// writeAppError maps a classified error onto its status and detail.
func writeAppError(w http.ResponseWriter, err error) {
	writeError(w, apperr.HTTPStatus(err), apperr.Detail(err))
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return apperr.Detail(err)
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) (string, bool) {
	tok, err := s.session(w, r).Token(r.Context())
	if err != nil {
		writeAppError(w, err)
		return "", false
	}
	if tok == "" {
		writeAppError(w, apperr.New(apperr.Unauthenticated, "", "not signed in"))
		return "", false
	}
	return tok, true
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.session(w, r).Clear(r.Context()); err != nil {
		s.logger.Warn("logout", "error", err)
	}
	http.Redirect(w, r, s.loginURL, http.StatusFound)
}

// --- Actor ---

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	ctx := r.Context()

	if r.URL.Query().Get("refresh") == "true" {
		tok, ok := s.token(w, r)
		if !ok {
			return
		}
		profile, err := s.remote.Profile(ctx, tok)
		if err != nil {
			writeAppError(w, err)
			return
		}
		if err := sess.RefreshActor(ctx, profile); err != nil {
			writeAppError(w, err)
			return
		}
	}

	actor, err := sess.Actor(ctx)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": actor})
}

// --- Concerts ---

type concertView struct {
	Concert      *models.Concert       `json:"concert"`
	Projection   lifecycle.Projection  `json:"projection"`
	Reviews      []models.ReviewRecord `json:"reviews"`
	ReviewsError string                `json:"reviewsError,omitempty"`
	RoleHint     string                `json:"roleHint,omitempty"`
}

func (s *Server) getConcert(w http.ResponseWriter, r *http.Request) {
	tok, ok := s.token(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	concert, err := s.remote.GetConcert(r.Context(), tok, id)
	if err != nil {
		writeAppError(w, err)
		return
	}

	view := concertView{
		Concert:    concert,
		Projection: lifecycle.ProjectConcert(concert),
	}
	// Local role hint only hides the action; the service still decides.
	if view.Projection.CanReview {
		if hint := s.engine.Precheck(tok); hint != nil {
			view.Projection.CanReview = false
			view.RoleHint = apperr.Detail(hint)
		}
	}

	res := s.reader.FetchReviews(r.Context(), id, tok)
	view.Reviews = res.Records
	view.ReviewsError = errString(res.Err)
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	tok, ok := s.token(w, r)
	if !ok {
		return
	}
	res := s.reader.FetchReviews(r.Context(), r.PathValue("id"), tok)
	writeJSON(w, http.StatusOK, map[string]any{
		"reviews": res.Records,
		"shape":   res.Shape,
		"error":   errString(res.Err),
	})
}

type reviewRequest struct {
	Decision models.Decision `json:"decision"`
	Note     string          `json:"note"`
}

func (s *Server) submitReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	// A missing token is reported by the engine as Unauthenticated.
	tok, err := s.session(w, r).Token(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}

	ack, err := s.engine.Submit(r.Context(), r.PathValue("id"), req.Decision, req.Note, tok)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"lifecycleStatus": ack.Lifecycle,
		"reviewStatus":    ack.ReviewStatus,
		"reviews":         ack.Reviews,
		"reviewsError":    errString(ack.LedgerErr),
	})
}

// --- Users ---

func (s *Server) updateUserRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role models.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	req.Role = models.Role(strings.ToLower(string(req.Role)))
	if !req.Role.Valid() {
		writeError(w, http.StatusBadRequest, "role must be one of user, admin, superuser")
		return
	}
	tok, ok := s.token(w, r)
	if !ok {
		return
	}

	user, err := s.remote.UpdateUserRole(r.Context(), tok, r.PathValue("id"), req.Role)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": user})
}

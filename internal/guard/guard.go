// Package guard gates protected paths on the presence of a bearer token.
// It does not validate tokens; the remote service does that at point of use.
package guard

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/joescharf/tickeasy/internal/bridge"
	"github.com/joescharf/tickeasy/internal/metrics"
	"github.com/joescharf/tickeasy/internal/session"
)

// State is the per-request guard outcome.
type State string

const (
	Unprotected     State = "unprotected"
	HasServerToken  State = "has_server_token"
	HasURLToken     State = "has_url_token"
	Unauthenticated State = "unauthenticated"
)

// NextParam carries the original destination to the login surface.
const NextParam = "next"

// Config configures a Guard.
type Config struct {
	ProtectedPrefix string // e.g. "/dashboard"
	LoginURL        string // external login surface
	PreserveNext    bool   // append the requested path as ?next=
}

// Decision is what the guard does with one request.
type Decision struct {
	State    State
	Token    string // token to install into the server-visible channel
	Location string // redirect target, empty when admitting
}

// Guard decides admission for protected paths.
type Guard struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Guard.
func New(cfg Config, logger *slog.Logger, m *metrics.Metrics) *Guard {
	if cfg.ProtectedPrefix == "" {
		cfg.ProtectedPrefix = "/dashboard"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{cfg: cfg, logger: logger, metrics: m}
}

// Protected reports whether path falls under the protected prefix.
func (g *Guard) Protected(path string) bool {
	p := g.cfg.ProtectedPrefix
	return path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/")
}

// Decide evaluates r against the server-visible token first, then the URL
// token parameter.
func (g *Guard) Decide(r *http.Request, serverToken string) Decision {
	if !g.Protected(r.URL.Path) {
		return Decision{State: Unprotected}
	}
	if serverToken != "" {
		return Decision{State: HasServerToken}
	}

	q := r.URL.Query()
	if token := q.Get(bridge.TokenParam); token != "" {
		cleaned := *r.URL
		q.Del(bridge.TokenParam)
		cleaned.RawQuery = q.Encode()
		return Decision{State: HasURLToken, Token: token, Location: cleaned.RequestURI()}
	}

	return Decision{State: Unauthenticated, Location: g.loginLocation(r)}
}

func (g *Guard) loginLocation(r *http.Request) string {
	login, err := url.Parse(g.cfg.LoginURL)
	if err != nil || g.cfg.LoginURL == "" {
		login = &url.URL{Path: "/login"}
	}
	if g.cfg.PreserveNext {
		q := login.Query()
		q.Set(NextParam, r.URL.RequestURI())
		login.RawQuery = q.Encode()
	}
	return login.String()
}

// Middleware applies Decide to every request. newSession builds the session
// bound to the request so the URL token lands in the same cookie the bridge
// writes.
func (g *Guard) Middleware(newSession func(http.ResponseWriter, *http.Request) *session.Context, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := newSession(w, r)
		d := g.Decide(r, sess.ServerToken())
		g.metrics.GuardDecision(string(d.State))
		g.logger.Debug("guard decision", "path", r.URL.Path, "state", d.State)

		switch d.State {
		case HasURLToken:
			sess.SetServerToken(d.Token)
			http.Redirect(w, r, d.Location, http.StatusFound)
		case Unauthenticated:
			http.Redirect(w, r, d.Location, http.StatusFound)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

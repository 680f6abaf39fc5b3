// Package bridge adopts an authentication handoff from a cooperating
// front-end that arrives as query parameters on the entry URL.
package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/joescharf/tickeasy/internal/metrics"
	"github.com/joescharf/tickeasy/internal/session"
)

// Handoff query parameters. TokenParam is shared with the route guard.
const (
	TokenParam    = "token"
	UserInfoParam = "userInfo"
)

// Bridge installs inbound handoffs into a session.
type Bridge struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Bridge. Both arguments may be nil.
func New(logger *slog.Logger, m *metrics.Metrics) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{logger: logger, metrics: m}
}

// TryAdoptInboundAuth materializes a session from the token and userInfo
// parameters of u. Both must be present and userInfo must be a JSON object
// after percent-decoding; otherwise nothing is written and it returns false.
// On success both parameters are removed from u in place.
func (b *Bridge) TryAdoptInboundAuth(ctx context.Context, sess *session.Context, u *url.URL) bool {
	q := u.Query()
	token := q.Get(TokenParam)
	userInfo := q.Get(UserInfoParam)
	if token == "" || userInfo == "" {
		return false
	}

	payload := decodeUserInfo(userInfo)
	if !session.IsActorPayload(payload) {
		b.logger.Warn("ignoring handoff with malformed userInfo")
		b.metrics.BridgeAdoption("invalid")
		return false
	}

	if err := sess.Establish(ctx, token, payload); err != nil {
		b.logger.Error("adopt inbound handoff", "error", err)
		b.metrics.BridgeAdoption("error")
		return false
	}

	q.Del(TokenParam)
	q.Del(UserInfoParam)
	u.RawQuery = q.Encode()

	b.logger.Info("adopted cross-domain session")
	b.metrics.BridgeAdoption("adopted")
	return true
}

// decodeUserInfo undoes the sender's encodeURIComponent. Query parsing has
// already removed one layer; a second layer is removed when present.
func decodeUserInfo(v string) string {
	if json.Valid([]byte(v)) {
		return v
	}
	if decoded, err := url.PathUnescape(v); err == nil {
		return decoded
	}
	return v
}

// Middleware adopts handoffs on any request and redirects to the cleaned URL
// so a refresh never re-processes the credentials. newSession builds the
// session bound to the request.
func (b *Bridge) Middleware(newSession func(http.ResponseWriter, *http.Request) *session.Context, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || !r.URL.Query().Has(UserInfoParam) {
			next.ServeHTTP(w, r)
			return
		}
		cleaned := *r.URL
		if b.TryAdoptInboundAuth(r.Context(), newSession(w, r), &cleaned) {
			http.Redirect(w, r, cleaned.RequestURI(), http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

package guard

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/tickeasy/internal/metrics"
	"github.com/joescharf/tickeasy/internal/session"
)

const loginURL = "https://frontend.tickeasy.io/login"

func newGuard(m *metrics.Metrics) *Guard {
	return New(Config{ProtectedPrefix: "/dashboard", LoginURL: loginURL, PreserveNext: true}, nil, m)
}

func newTestHandler(g *Guard) http.Handler {
	newSess := func(w http.ResponseWriter, r *http.Request) *session.Context {
		return session.New(session.NewMemoryStore(), session.NewCookieChannel(w, r))
	}
	return g.Middleware(newSess, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestProtected(t *testing.T) {
	g := newGuard(nil)
	assert.True(t, g.Protected("/dashboard"))
	assert.True(t, g.Protected("/dashboard/concerts/1"))
	assert.False(t, g.Protected("/dashboards"))
	assert.False(t, g.Protected("/auth/login"))
}

func TestDecide_States(t *testing.T) {
	g := newGuard(nil)

	d := g.Decide(httptest.NewRequest("GET", "/healthz", nil), "")
	assert.Equal(t, Unprotected, d.State)

	d = g.Decide(httptest.NewRequest("GET", "/dashboard", nil), "cookie")
	assert.Equal(t, HasServerToken, d.State)

	d = g.Decide(httptest.NewRequest("GET", "/dashboard/concerts?token=abc&tab=1", nil), "")
	assert.Equal(t, HasURLToken, d.State)
	assert.Equal(t, "abc", d.Token)
	assert.Equal(t, "/dashboard/concerts?tab=1", d.Location)

	d = g.Decide(httptest.NewRequest("GET", "/dashboard/concerts", nil), "")
	assert.Equal(t, Unauthenticated, d.State)
}

func TestMiddleware_UnauthenticatedRedirectsToLoginWithNext(t *testing.T) {
	m := metrics.New()
	w := httptest.NewRecorder()
	newTestHandler(newGuard(m)).ServeHTTP(w, httptest.NewRequest("GET", "/dashboard/concerts", nil))

	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "frontend.tickeasy.io", loc.Host)
	assert.Equal(t, "/login", loc.Path)
	assert.Equal(t, "/dashboard/concerts", loc.Query().Get(NextParam))
}

func TestMiddleware_NoNextWhenDisabled(t *testing.T) {
	g := New(Config{ProtectedPrefix: "/dashboard", LoginURL: loginURL}, nil, nil)
	w := httptest.NewRecorder()
	newTestHandler(g).ServeHTTP(w, httptest.NewRequest("GET", "/dashboard", nil))

	assert.Equal(t, loginURL, w.Header().Get("Location"))
}

func TestMiddleware_URLTokenSetsCookieAndStripsParam(t *testing.T) {
	w := httptest.NewRecorder()
	newTestHandler(newGuard(nil)).ServeHTTP(w, httptest.NewRequest("GET", "/dashboard/orders?token=abc", nil))

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard/orders", w.Header().Get("Location"))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.CookieName, cookies[0].Name)
	assert.Equal(t, "abc", cookies[0].Value)
}

func TestMiddleware_ServerTokenAdmits(t *testing.T) {
	req := httptest.NewRequest("GET", "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "abc"})
	w := httptest.NewRecorder()
	newTestHandler(newGuard(nil)).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Result().Cookies())
}

func TestMiddleware_UnprotectedPassesThrough(t *testing.T) {
	w := httptest.NewRecorder()
	newTestHandler(newGuard(nil)).ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

// The cookie written on the URL-token redirect must admit the follow-up
// request, or the guard and the browser loop.
func TestMiddleware_NoRedirectLoop(t *testing.T) {
	h := newTestHandler(newGuard(nil))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/dashboard?token=abc", nil))
	require.Equal(t, http.StatusFound, w.Code)

	follow := httptest.NewRequest("GET", w.Header().Get("Location"), nil)
	for _, c := range w.Result().Cookies() {
		follow.AddCookie(c)
	}
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, follow)
	assert.Equal(t, http.StatusOK, w2.Code)
}

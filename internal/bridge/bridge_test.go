package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/tickeasy/internal/session"
)

func newSession() (*session.Context, *session.MemoryStore, *session.MemoryChannel) {
	store := session.NewMemoryStore()
	ch := &session.MemoryChannel{}
	return session.New(store, ch), store, ch
}

func TestTryAdoptInboundAuth_Success(t *testing.T) {
	ctx := context.Background()
	sess, store, ch := newSession()
	u, err := url.Parse("https://admin.tickeasy.io/dashboard?token=abc&userInfo=%7B%22email%22%3A%22a%40b.com%22%7D")
	require.NoError(t, err)

	ok := New(nil, nil).TryAdoptInboundAuth(ctx, sess, u)
	require.True(t, ok)

	token, _ := store.GetValue(ctx, session.TokenKey)
	assert.Equal(t, "abc", token)
	assert.Equal(t, "abc", ch.Token())

	actor, err := sess.CachedActor(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", actor.Email)

	assert.NotContains(t, u.String(), "token")
	assert.NotContains(t, u.String(), "userInfo")
	assert.Equal(t, "/dashboard", u.RequestURI())
}

func TestTryAdoptInboundAuth_KeepsOtherParams(t *testing.T) {
	sess, _, _ := newSession()
	u, _ := url.Parse("/dashboard/concerts?tab=reviewing&token=abc&userInfo=%7B%7D")

	require.True(t, New(nil, nil).TryAdoptInboundAuth(context.Background(), sess, u))
	assert.Equal(t, "tab=reviewing", u.RawQuery)
}

func TestTryAdoptInboundAuth_DoubleEncodedPayload(t *testing.T) {
	ctx := context.Background()
	sess, _, _ := newSession()
	u, _ := url.Parse("/dashboard?token=abc&userInfo=" + url.QueryEscape(url.PathEscape(`{"email":"a@b.com"}`)))

	require.True(t, New(nil, nil).TryAdoptInboundAuth(ctx, sess, u))
	actor, err := sess.CachedActor(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", actor.Email)
}

func TestTryAdoptInboundAuth_InvalidJSONWritesNothing(t *testing.T) {
	ctx := context.Background()
	sess, store, ch := newSession()
	u, _ := url.Parse("/dashboard?token=abc&userInfo=%7Bnot-json")

	assert.False(t, New(nil, nil).TryAdoptInboundAuth(ctx, sess, u))

	token, _ := store.GetValue(ctx, session.TokenKey)
	assert.Empty(t, token)
	actorRaw, _ := store.GetValue(ctx, session.ActorKey)
	assert.Empty(t, actorRaw)
	assert.Empty(t, ch.Token())
	assert.Contains(t, u.RawQuery, "token=abc", "url left untouched")
}

func TestTryAdoptInboundAuth_NonObjectPayloadWritesNothing(t *testing.T) {
	ctx := context.Background()
	for _, payload := range []string{"%5B1%5D", "%22abc%22", "null", "42"} {
		sess, store, ch := newSession()
		u, _ := url.Parse("/dashboard?token=abc&userInfo=" + payload)

		assert.False(t, New(nil, nil).TryAdoptInboundAuth(ctx, sess, u), payload)

		token, _ := store.GetValue(ctx, session.TokenKey)
		assert.Empty(t, token, payload)
		assert.Empty(t, ch.Token(), payload)
	}
}

func TestTryAdoptInboundAuth_MissingParam(t *testing.T) {
	sess, store, _ := newSession()
	for _, raw := range []string{"/dashboard?token=abc", "/dashboard?userInfo=%7B%7D", "/dashboard"} {
		u, _ := url.Parse(raw)
		assert.False(t, New(nil, nil).TryAdoptInboundAuth(context.Background(), sess, u), raw)
	}
	token, _ := store.GetValue(context.Background(), session.TokenKey)
	assert.Empty(t, token)
}

func TestMiddleware_RedirectsToCleanedURL(t *testing.T) {
	store := session.NewMemoryStore()
	newSess := func(w http.ResponseWriter, r *http.Request) *session.Context {
		return session.New(store, session.NewCookieChannel(w, r))
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := New(nil, nil).Middleware(newSess, next)

	req := httptest.NewRequest("GET", "/dashboard/concerts?token=abc&userInfo=%7B%22email%22%3A%22a%40b.com%22%7D", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard/concerts", w.Header().Get("Location"))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.CookieName, cookies[0].Name)
	assert.Equal(t, "abc", cookies[0].Value)
}

func TestMiddleware_PassesThroughWithoutHandoff(t *testing.T) {
	newSess := func(w http.ResponseWriter, r *http.Request) *session.Context {
		return session.New(session.NewMemoryStore(), session.NewCookieChannel(w, r))
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := New(nil, nil).Middleware(newSess, next)

	for _, target := range []string{"/dashboard", "/dashboard?token=abc", "/dashboard?token=abc&userInfo=bad"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", target, nil))
		assert.Equal(t, http.StatusTeapot, w.Code, target)
	}
}

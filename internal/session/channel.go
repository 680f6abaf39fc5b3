package session

import (
	"net/http"
	"time"
)

// CookieName is the server-visible channel key. The guard and the bridge
// must agree on it or the guard redirects forever.
const CookieName = "tickeasy_token"

// CookieMaxAge is how long the server-visible token survives.
const CookieMaxAge = 24 * time.Hour

// Channel is the server-visible token storage, readable by routing logic
// that runs before any page content is served.
type Channel interface {
	Token() string
	SetToken(token string)
	ClearToken()
}

// TokenCookie returns the cookie that mirrors token for server-side routing.
func TokenCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(CookieMaxAge / time.Second),
		SameSite: http.SameSiteLaxMode,
	}
}

// CookieChannel reads the token cookie from a request and writes changes to
// the paired response. Writes are visible to later reads in the same request.
type CookieChannel struct {
	w       http.ResponseWriter
	r       *http.Request
	token   string
	written bool
}

// NewCookieChannel binds a channel to one request/response pair.
func NewCookieChannel(w http.ResponseWriter, r *http.Request) *CookieChannel {
	return &CookieChannel{w: w, r: r}
}

func (c *CookieChannel) Token() string {
	if c.written {
		return c.token
	}
	cookie, err := c.r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (c *CookieChannel) SetToken(token string) {
	http.SetCookie(c.w, TokenCookie(token))
	c.token = token
	c.written = true
}

func (c *CookieChannel) ClearToken() {
	http.SetCookie(c.w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		SameSite: http.SameSiteLaxMode,
	})
	c.token = ""
	c.written = true
}

// MemoryChannel is a Channel for contexts without an HTTP response, such as
// the CLI; it lives as long as the process.
type MemoryChannel struct {
	token string
}

func (m *MemoryChannel) Token() string         { return m.token }
func (m *MemoryChannel) SetToken(token string) { m.token = token }
func (m *MemoryChannel) ClearToken()           { m.token = "" }

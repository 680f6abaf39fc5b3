// Package session owns the operator's authentication state. All writes to the
// persistent store and to the server-visible channel go through Context.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joescharf/tickeasy/internal/apperr"
	"github.com/joescharf/tickeasy/internal/models"
)

// Context is the session of one client context: a persistent store plus a
// server-visible channel. Writes are last-writer-wins and unlocked, since all
// writers come from the same operator action stream.
type Context struct {
	store   Store
	channel Channel
	logger  *slog.Logger

	// channelFirst makes the server-visible channel the token source.
	channelFirst bool
}

// New creates a Context over the given store and channel. A nil channel is
// replaced by a MemoryChannel.
func New(store Store, channel Channel) *Context {
	if channel == nil {
		channel = &MemoryChannel{}
	}
	return &Context{store: store, channel: channel, logger: slog.Default()}
}

// NewRequest creates a Context for one HTTP request. The request's own
// channel is the token source, and writes land in a fresh in-memory store,
// so a request can neither borrow nor overwrite another client's session.
func NewRequest(channel Channel) *Context {
	c := New(NewMemoryStore(), channel)
	c.channelFirst = true
	return c
}

// WithLogger sets the logger used for session diagnostics.
func (c *Context) WithLogger(l *slog.Logger) *Context {
	if l != nil {
		c.logger = l
	}
	return c
}

// Token returns the bearer token, preferring the persistent store and falling
// back to the server-visible channel. A request-scoped Context reads its
// channel first. It returns "" when neither holds one.
func (c *Context) Token(ctx context.Context) (string, error) {
	if c.channelFirst {
		if token := c.channel.Token(); token != "" {
			return token, nil
		}
	}
	token, err := c.store.GetValue(ctx, TokenKey)
	if err != nil {
		return "", fmt.Errorf("read session token: %w", err)
	}
	if token != "" {
		return token, nil
	}
	return c.channel.Token(), nil
}

// ServerToken returns the token carried by the server-visible channel.
func (c *Context) ServerToken() string {
	return c.channel.Token()
}

// HasToken reports whether either channel holds a token.
func (c *Context) HasToken(ctx context.Context) bool {
	token, err := c.Token(ctx)
	return err == nil && token != ""
}

// CachedActor returns the actor profile stored at login or adoption, or nil.
func (c *Context) CachedActor(ctx context.Context) (*models.Actor, error) {
	raw, err := c.store.GetValue(ctx, ActorKey)
	if err != nil {
		return nil, fmt.Errorf("read session actor: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	var a models.Actor
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil, apperr.Wrap(apperr.ParseFailure, "decode session actor", err)
	}
	return &a, nil
}

// Actor returns the operator for the current token. Identity claims decoded
// from the token take precedence over the cached profile, so a stale cache
// cannot grant a role the current token does not carry.
func (c *Context) Actor(ctx context.Context) (*models.Actor, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, apperr.New(apperr.Unauthenticated, "session actor", "not logged in")
	}

	cached, err := c.CachedActor(ctx)
	if err != nil {
		c.logger.Warn("ignoring unreadable cached actor", "error", err)
		cached = nil
	}

	derived, ok := ActorFromToken(token)
	switch {
	case ok && cached != nil:
		if derived.Email == "" {
			derived.Email = cached.Email
		}
		if derived.Name == "" {
			derived.Name = cached.Name
		}
		if derived.ID == "" {
			derived.ID = cached.ID
		}
		derived.Avatar = cached.Avatar
		return derived, nil
	case ok:
		return derived, nil
	case cached != nil:
		return cached, nil
	}
	return &models.Actor{}, nil
}

// Establish installs a session from a token and a JSON actor payload. It
// writes the persistent token, mirrors it into the server-visible channel,
// stores the payload, then reads the persistent token back.
//
// The writes are not transactional. If the process stops between them the
// session is partially established; the guard still admits on either channel
// and Actor re-derives identity from the token, so the window only affects
// the cached profile.
func (c *Context) Establish(ctx context.Context, token, actorJSON string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperr.New(apperr.InvalidInput, "establish session", "token is required")
	}
	if !IsActorPayload(actorJSON) {
		return apperr.New(apperr.InvalidInput, "establish session", "actor payload must be a JSON object")
	}

	if err := c.store.SetValue(ctx, TokenKey, token); err != nil {
		return fmt.Errorf("store session token: %w", err)
	}
	c.channel.SetToken(token)
	if err := c.store.SetValue(ctx, ActorKey, actorJSON); err != nil {
		return fmt.Errorf("store session actor: %w", err)
	}

	got, err := c.store.GetValue(ctx, TokenKey)
	if err != nil {
		return fmt.Errorf("verify session token: %w", err)
	}
	if got != token {
		return fmt.Errorf("verify session token: stored token does not match")
	}
	return nil
}

// IsActorPayload reports whether s is a JSON object that decodes as an
// actor, the only form CachedActor can read back.
func IsActorPayload(s string) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return false
	}
	var a models.Actor
	return json.Unmarshal([]byte(s), &a) == nil
}

// Login installs a session for an actor returned by the login endpoint.
func (c *Context) Login(ctx context.Context, token string, actor *models.Actor) error {
	if actor == nil {
		actor = &models.Actor{}
	}
	data, err := json.Marshal(actor)
	if err != nil {
		return fmt.Errorf("encode actor: %w", err)
	}
	return c.Establish(ctx, token, string(data))
}

// SetServerToken mirrors token into the server-visible channel only.
func (c *Context) SetServerToken(token string) {
	c.channel.SetToken(token)
}

// RefreshActor replaces the cached profile.
func (c *Context) RefreshActor(ctx context.Context, actor *models.Actor) error {
	data, err := json.Marshal(actor)
	if err != nil {
		return fmt.Errorf("encode actor: %w", err)
	}
	if err := c.store.SetValue(ctx, ActorKey, string(data)); err != nil {
		return fmt.Errorf("store session actor: %w", err)
	}
	return nil
}

// Clear destroys the session in both channels.
func (c *Context) Clear(ctx context.Context) error {
	c.channel.ClearToken()
	if err := c.store.DeleteValue(ctx, TokenKey); err != nil {
		return fmt.Errorf("delete session token: %w", err)
	}
	if err := c.store.DeleteValue(ctx, ActorKey); err != nil {
		return fmt.Errorf("delete session actor: %w", err)
	}
	return nil
}

// Package backend is the console's client for the remote ticketing service,
// which owns concerts, users, review records and authentication.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/joescharf/tickeasy/internal/apperr"
	"github.com/joescharf/tickeasy/internal/models"
)

const apiPrefix = "/api/v1"

// Client calls the remote service. It imposes no timeout of its own;
// callers bound calls through the context.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client for baseURL. A nil httpClient uses a default client.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP:    httpClient,
	}
}

// LoginResult is the payload of a successful login.
type LoginResult struct {
	Token string        `json:"token"`
	User  *models.Actor `json:"user"`
}

// envelope covers the common {status, message, error, data} wrapper.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func (e envelope) reason() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.BaseURL + apiPrefix + "/" + strings.Join(escaped, "/")
}

// do sends one request and returns the status and body. Transport failures
// are NetworkFailure; HTTP statuses are left to the caller.
func (c *Client) do(ctx context.Context, op, method, target, token string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, apperr.Wrap(apperr.NetworkFailure, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, apperr.Wrap(apperr.NetworkFailure, op, err)
	}
	return resp.StatusCode, data, nil
}

func ok(status int) bool { return status >= 200 && status < 300 }

// remoteError surfaces a non-success response; detail is the body text.
func remoteError(op string, status int, body []byte) error {
	return apperr.Remote(op, status, strings.TrimSpace(string(body)))
}

// Login exchanges credentials for a bearer token and actor profile.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	const op = "login"
	status, body, err := c.do(ctx, op, http.MethodPost, c.endpoint("auth", "login"), "", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	var out struct {
		LoginResult
		envelope
	}
	_ = json.Unmarshal(body, &out)

	if !ok(status) {
		if msg := out.reason(); msg != "" {
			return nil, apperr.Remote(op, status, msg)
		}
		return nil, remoteError(op, status, body)
	}
	if out.Token == "" {
		msg := out.reason()
		if msg == "" {
			msg = "login failed"
		}
		return nil, apperr.New(apperr.Unauthenticated, op, msg)
	}
	return &LoginResult{Token: out.Token, User: out.User}, nil
}

// Register creates an account and logs in with it.
func (c *Client) Register(ctx context.Context, email, password, name string) (*LoginResult, error) {
	const op = "register"
	status, body, err := c.do(ctx, op, http.MethodPost, c.endpoint("auth", "register"), "", map[string]string{
		"email":    email,
		"password": password,
		"name":     name,
	})
	if err != nil {
		return nil, err
	}

	var env envelope
	_ = json.Unmarshal(body, &env)
	if !ok(status) || env.Status != "success" {
		msg := env.reason()
		if msg == "" {
			msg = "registration failed"
		}
		if !ok(status) {
			return nil, apperr.Remote(op, status, msg)
		}
		return nil, apperr.New(apperr.RemoteFailure, op, msg)
	}
	return c.Login(ctx, email, password)
}

// Profile fetches the actor behind token.
func (c *Client) Profile(ctx context.Context, token string) (*models.Actor, error) {
	const op = "fetch profile"
	if token == "" {
		return nil, apperr.New(apperr.Unauthenticated, op, "not logged in")
	}
	status, body, err := c.do(ctx, op, http.MethodGet, c.endpoint("users", "profile"), token, nil)
	if err != nil {
		return nil, err
	}
	if !ok(status) {
		return nil, remoteError(op, status, body)
	}

	var out struct {
		Data struct {
			User *models.Actor `json:"user"`
			models.Actor
		} `json:"data"`
		User *models.Actor `json:"user"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperr.Wrap(apperr.ParseFailure, op, err)
	}
	switch {
	case out.Data.User != nil:
		return out.Data.User, nil
	case out.User != nil:
		return out.User, nil
	case out.Data.Email != "" || out.Data.ID != "":
		a := out.Data.Actor
		return &a, nil
	}
	return nil, apperr.New(apperr.ParseFailure, op, "profile missing from response")
}

// GetConcert fetches one concert. token may be empty.
func (c *Client) GetConcert(ctx context.Context, token, concertID string) (*models.Concert, error) {
	const op = "fetch concert"
	status, body, err := c.do(ctx, op, http.MethodGet, c.endpoint("concerts", concertID), token, nil)
	if err != nil {
		return nil, err
	}
	if !ok(status) {
		return nil, remoteError(op, status, body)
	}

	var out struct {
		Data *models.Concert `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperr.Wrap(apperr.ParseFailure, op, err)
	}
	if out.Data == nil {
		return nil, &apperr.Error{Kind: apperr.RemoteFailure, Op: op, Status: http.StatusNotFound, Detail: "concert not found: " + concertID}
	}
	return out.Data, nil
}

// SubmitManualReview posts a decision to the moderation endpoint. The remote
// service is the authority on role and review-state rules; its rejection
// text is returned verbatim.
func (c *Client) SubmitManualReview(ctx context.Context, token, concertID string, decision models.Decision, note string) error {
	const op = "submit review"
	status, body, err := c.do(ctx, op, http.MethodPost, c.endpoint("concerts", concertID, "manual-review"), token, map[string]string{
		"reviewStatus": string(decision),
		"reviewerNote": note,
	})
	if err != nil {
		return err
	}
	if !ok(status) {
		return remoteError(op, status, body)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Success != nil && !*env.Success {
		msg := env.reason()
		if msg == "" {
			msg = "review rejected by remote service"
		}
		return &apperr.Error{Kind: apperr.RemoteFailure, Op: op, Status: status, Detail: msg}
	}
	return nil
}

// FetchReviews returns the raw ledger body for a concert. Its shape varies
// and is normalized by the ledger package.
func (c *Client) FetchReviews(ctx context.Context, token, concertID string) ([]byte, error) {
	const op = "fetch reviews"
	status, body, err := c.do(ctx, op, http.MethodGet, c.endpoint("concerts", concertID, "reviews"), token, nil)
	if err != nil {
		return nil, err
	}
	if !ok(status) {
		return nil, remoteError(op, status, body)
	}
	return body, nil
}

// UpdateUserRole changes a platform user's role, forwarding the operator's
// token. Only superusers are accepted by the remote service.
func (c *Client) UpdateUserRole(ctx context.Context, token, userID string, role models.Role) (*models.User, error) {
	const op = "update role"
	if token == "" {
		return nil, apperr.New(apperr.Unauthenticated, op, "not logged in")
	}
	if userID == "" || !role.Valid() {
		return nil, apperr.New(apperr.InvalidInput, op, "user id and a valid role are required")
	}
	status, body, err := c.do(ctx, op, http.MethodPatch, c.endpoint("users", userID, "role"), token, map[string]string{
		"role": string(role),
	})
	if err != nil {
		return nil, err
	}

	var env envelope
	_ = json.Unmarshal(body, &env)
	if !ok(status) {
		if msg := env.reason(); msg != "" {
			return nil, apperr.Remote(op, status, msg)
		}
		return nil, remoteError(op, status, body)
	}

	u := &models.User{UserID: userID, Role: role}
	if len(env.Data) > 0 {
		var nested struct {
			User *models.User `json:"user"`
		}
		if err := json.Unmarshal(env.Data, &nested); err == nil && nested.User != nil {
			return nested.User, nil
		}
		var flat models.User
		if err := json.Unmarshal(env.Data, &flat); err == nil && flat.UserID != "" {
			return &flat, nil
		}
	}
	return u, nil
}

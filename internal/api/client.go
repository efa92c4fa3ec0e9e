// Package api is the typed client for the OmniBot backend. Every request
// goes through the error-reporting transport, so views only handle the
// errors that change their own state.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"omnibot-console/internal/flow"
)

// ErrStatus marks responses the backend answered with a non-2xx status.
// The transport has already broadcast the toast by the time callers see it.
var ErrStatus = errors.New("unexpected status")

// AuthStrategy selects how Login authenticates. The dual-provider chain
// mirrors a behavior inherited from the product's early experiments; it
// stays configuration-selectable rather than hard-coded.
type AuthStrategy string

const (
	// AuthBackend authenticates against the platform's own auth endpoint.
	AuthBackend AuthStrategy = "backend"
	// AuthBackendThenIdP falls back to the external identity provider
	// when the backend attempt is rejected.
	AuthBackendThenIdP AuthStrategy = "backend-then-idp"
)

type Client struct {
	hc       *http.Client
	base     string
	idpBase  string
	strategy AuthStrategy
	token    func() (string, bool)
}

// Config wires a Client. TokenSource supplies the bearer token per
// request so a foreign-process sign-out takes effect immediately.
type Config struct {
	BaseURL     string
	IdPBaseURL  string
	Strategy    AuthStrategy
	HTTPClient  *http.Client
	TokenSource func() (string, bool)
}

func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	strategy := cfg.Strategy
	if strategy == "" {
		strategy = AuthBackend
	}
	token := cfg.TokenSource
	if token == nil {
		token = func() (string, bool) { return "", false }
	}
	return &Client{
		hc:       hc,
		base:     strings.TrimRight(cfg.BaseURL, "/"),
		idpBase:  strings.TrimRight(cfg.IdPBaseURL, "/"),
		strategy: strategy,
		token:    token,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", path, err)
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok, ok := c.token(); ok {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return c.hc.Do(req)
}

func (c *Client) json(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %w (%d)", method, path, ErrStatus, resp.StatusCode)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// Health checks backend liveness.
func (c *Client) Health(ctx context.Context) error {
	return c.json(ctx, http.MethodGet, "/health", nil, nil)
}

// Login authenticates and returns a bearer token. Under
// AuthBackendThenIdP a backend rejection falls through to the identity
// provider; transport failures do not, so an unreachable backend is
// reported rather than silently rerouted.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	tok, err := c.passwordLogin(ctx, c.base+"/auth/login", email, password)
	if err == nil {
		return tok, nil
	}
	if c.strategy != AuthBackendThenIdP || c.idpBase == "" || !errors.Is(err, ErrStatus) {
		return "", err
	}
	return c.passwordLogin(ctx, c.idpBase+"/token?grant_type=password", email, password)
}

func (c *Client) passwordLogin(ctx context.Context, url, email, password string) (string, error) {
	buf, err := json.Marshal(credentials{Email: email, Password: password})
	if err != nil {
		return "", fmt.Errorf("encode credentials: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return "", fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("login: %w (%d)", ErrStatus, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	return tr.Token, nil
}

func (c *Client) Register(ctx context.Context, email, password string) (string, error) {
	var tr tokenResponse
	err := c.json(ctx, http.MethodPost, "/auth/register", credentials{Email: email, Password: password}, &tr)
	if err != nil {
		return "", err
	}
	return tr.Token, nil
}

// DevToken fetches the local-development token the backend exposes when
// running without a real identity provider.
func (c *Client) DevToken(ctx context.Context) (string, error) {
	var tr tokenResponse
	if err := c.json(ctx, http.MethodPost, "/auth/dev-token", nil, &tr); err != nil {
		return "", err
	}
	return tr.Token, nil
}

func (c *Client) ResetPassword(ctx context.Context, email string) error {
	return c.json(ctx, http.MethodPost, "/auth/reset-password", map[string]string{"email": email}, nil)
}

func (c *Client) Me(ctx context.Context) (User, error) {
	var u User
	err := c.json(ctx, http.MethodGet, "/users/me", nil, &u)
	return u, err
}

func (c *Client) ListBots(ctx context.Context) ([]Bot, error) {
	var out []Bot
	err := c.json(ctx, http.MethodGet, "/bots", nil, &out)
	return out, err
}

func (c *Client) CreateBot(ctx context.Context, name, channel string) (Bot, error) {
	var b Bot
	err := c.json(ctx, http.MethodPost, "/bots", map[string]string{"name": name, "channel": channel}, &b)
	return b, err
}

func (c *Client) ListNumbers(ctx context.Context) ([]Number, error) {
	var out []Number
	err := c.json(ctx, http.MethodGet, "/numbers", nil, &out)
	return out, err
}

// InitWhatsAppSession starts pairing for a number; the returned session
// carries the QR payload to scan.
func (c *Client) InitWhatsAppSession(ctx context.Context, numberID string) (WhatsAppSession, error) {
	var ws WhatsAppSession
	err := c.json(ctx, http.MethodPost, "/numbers/"+numberID+"/whatsapp/session", nil, &ws)
	return ws, err
}

func (c *Client) WhatsAppStatus(ctx context.Context, numberID string) (WhatsAppSession, error) {
	var ws WhatsAppSession
	err := c.json(ctx, http.MethodGet, "/numbers/"+numberID+"/whatsapp/status", nil, &ws)
	return ws, err
}

// MockScan simulates a successful QR scan against a dev backend.
func (c *Client) MockScan(ctx context.Context, numberID string) (WhatsAppSession, error) {
	var ws WhatsAppSession
	err := c.json(ctx, http.MethodPost, "/numbers/"+numberID+"/whatsapp/mock-scan", nil, &ws)
	return ws, err
}

func (c *Client) GetFlow(ctx context.Context, botID string) (flow.Graph, error) {
	var g flow.Graph
	err := c.json(ctx, http.MethodGet, "/bot_flows/"+botID, nil, &g)
	return g, err
}

func (c *Client) SaveFlow(ctx context.Context, botID string, g flow.Graph) (flow.Graph, error) {
	var saved flow.Graph
	err := c.json(ctx, http.MethodPost, "/bot_flows/"+botID, g, &saved)
	return saved, err
}

func (c *Client) PublishFlow(ctx context.Context, botID string) (flow.Graph, error) {
	var g flow.Graph
	err := c.json(ctx, http.MethodPost, "/bot_flows/"+botID+"/publish", nil, &g)
	return g, err
}

func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	var out []Conversation
	err := c.json(ctx, http.MethodGet, "/conversations", nil, &out)
	return out, err
}

func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	var out []Message
	err := c.json(ctx, http.MethodGet, "/conversations/"+conversationID+"/messages", nil, &out)
	return out, err
}

func (c *Client) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	var out []Workspace
	err := c.json(ctx, http.MethodGet, "/workspaces", nil, &out)
	return out, err
}

func (c *Client) Members(ctx context.Context, workspaceID string) ([]Member, error) {
	var out []Member
	err := c.json(ctx, http.MethodGet, "/workspaces/"+workspaceID+"/members", nil, &out)
	return out, err
}

func (c *Client) Plan(ctx context.Context, workspaceID string) (Plan, error) {
	var p Plan
	err := c.json(ctx, http.MethodGet, "/workspaces/"+workspaceID+"/plan", nil, &p)
	return p, err
}

func (c *Client) Usage(ctx context.Context, workspaceID string) (Usage, error) {
	var u Usage
	err := c.json(ctx, http.MethodGet, "/workspaces/"+workspaceID+"/usage", nil, &u)
	return u, err
}

func (c *Client) CreateCheckoutSession(ctx context.Context, workspaceID, plan string) (CheckoutSession, error) {
	var cs CheckoutSession
	err := c.json(ctx, http.MethodPost, "/workspaces/"+workspaceID+"/checkout", map[string]string{"plan": plan}, &cs)
	return cs, err
}

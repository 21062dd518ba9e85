// ABOUTME: HTTP fetch gateway performing the REST calls for every entity type
// ABOUTME: One transparent re-auth on 401, typed error mapping, bounded per-request timeout

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/2389/fintrack/internal/entity"
)

const defaultTimeout = 15 * time.Second

// Config configures a Gateway.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.example.com/v1".
	BaseURL string
	// Credentials supplies the bearer/refresh pair. Required.
	Credentials CredentialStore
	// Timeout bounds each request's wall-clock duration. Expiry is treated
	// as a network failure. Defaults to 15s.
	Timeout time.Duration
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
	// Logger may be nil for the default.
	Logger *slog.Logger
}

// Gateway performs the network calls per entity type. It owns envelope
// normalization and the single 401 re-authentication; it never retries on
// its own beyond that (retry policy belongs to callers, see retry.go).
type Gateway struct {
	baseURL string
	client  *http.Client
	creds   CredentialStore
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a gateway.
func New(cfg Config) (*Gateway, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("gateway: base URL required")
	}
	if cfg.Credentials == nil {
		return nil, errors.New("gateway: credential store required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
		creds:   cfg.Credentials,
		timeout: timeout,
		logger:  logger.With("component", "gateway"),
	}, nil
}

// List fetches a collection. Params may include include_deleted and
// entity-specific filters; they are passed through verbatim.
func (g *Gateway) List(ctx context.Context, t entity.Type, params url.Values) (*entity.Collection, error) {
	body, err := g.do(ctx, http.MethodGet, "/"+t.Plural(), params, nil)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", t, err)
	}
	return decodeCollection(t, body)
}

// Get fetches a single record by id.
func (g *Gateway) Get(ctx context.Context, t entity.Type, id string) (entity.Record, error) {
	body, err := g.do(ctx, http.MethodGet, "/"+t.Plural()+"/"+id, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("getting %s %s: %w", t, id, err)
	}
	return decodeRecord(t, body)
}

// Create posts a new record and returns the server's authoritative copy,
// with id and computed fields assigned.
func (g *Gateway) Create(ctx context.Context, rec entity.Record) (entity.Record, error) {
	t := rec.EntityType()
	body, err := g.do(ctx, http.MethodPost, "/"+t.Plural(), nil, rec)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", t, err)
	}
	return decodeRecord(t, body)
}

// Update puts a full record and returns the server's authoritative copy.
func (g *Gateway) Update(ctx context.Context, rec entity.Record) (entity.Record, error) {
	t := rec.EntityType()
	body, err := g.do(ctx, http.MethodPut, "/"+t.Plural()+"/"+rec.RecordID(), nil, rec)
	if err != nil {
		return nil, fmt.Errorf("updating %s %s: %w", t, rec.RecordID(), err)
	}
	return decodeRecord(t, body)
}

// Delete soft-deletes a record and returns it with status "deleted".
func (g *Gateway) Delete(ctx context.Context, t entity.Type, id string) (entity.Record, error) {
	body, err := g.do(ctx, http.MethodDelete, "/"+t.Plural()+"/"+id, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("deleting %s %s: %w", t, id, err)
	}
	return decodeRecord(t, body)
}

// Restore reverses a soft delete and returns the record with status "active".
func (g *Gateway) Restore(ctx context.Context, t entity.Type, id string) (entity.Record, error) {
	body, err := g.do(ctx, http.MethodPost, "/"+t.Plural()+"/"+id+"/restore", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("restoring %s %s: %w", t, id, err)
	}
	return decodeRecord(t, body)
}

// UpdateStatus transitions a record's lifecycle status and returns the
// authoritative record.
func (g *Gateway) UpdateStatus(ctx context.Context, t entity.Type, id string, status entity.Status) (entity.Record, error) {
	payload := map[string]entity.Status{"status": status}
	body, err := g.do(ctx, http.MethodPatch, "/"+t.Plural()+"/"+id+"/status", nil, payload)
	if err != nil {
		return nil, fmt.Errorf("updating %s %s status: %w", t, id, err)
	}
	return decodeRecord(t, body)
}

// do performs one request with auth, mapping failures onto the error
// taxonomy. On 401 it attempts exactly one re-authentication with the
// refresh credential and retries the original request once.
func (g *Gateway) do(ctx context.Context, method, path string, params url.Values, payload any) ([]byte, error) {
	creds, err := g.creds.Get(ctx)
	if err != nil {
		return nil, &APIError{Err: ErrAuthenticationExpired}
	}

	// A bearer that is already known-expired would only earn a 401; refresh
	// it up front and save the round-trip.
	if creds.Refresh != "" && bearerExpired(creds.Bearer, time.Now()) {
		if creds, err = g.reauthenticate(ctx, creds); err != nil {
			return nil, err
		}
	}

	body, status, err := g.send(ctx, method, path, params, payload, creds.Bearer)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		if creds, err = g.reauthenticate(ctx, creds); err != nil {
			return nil, err
		}
		body, status, err = g.send(ctx, method, path, params, payload, creds.Bearer)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			return nil, &APIError{Status: status, Err: ErrAuthenticationExpired}
		}
	}
	if status < 200 || status > 299 {
		return nil, &APIError{Status: status, Body: string(body), Err: classifyStatus(status)}
	}
	return body, nil
}

// send performs a single HTTP exchange. Transport failures are mapped to
// ErrTimeout or ErrNetworkFailure; HTTP status handling is the caller's.
func (g *Gateway) send(ctx context.Context, method, path string, params url.Values, payload any, bearer string) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	endpoint := g.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, 0, &APIError{Err: ErrTimeout}
		}
		return nil, 0, &APIError{Err: fmt.Errorf("%w: %v", ErrNetworkFailure, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &APIError{Err: fmt.Errorf("%w: reading body: %v", ErrNetworkFailure, err)}
	}
	return body, resp.StatusCode, nil
}

// refreshResponse is the auth endpoint's reply.
type refreshResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

// reauthenticate exchanges the refresh credential for a new bearer pair and
// persists it. Any failure surfaces as AuthenticationExpired; the caller
// must not retry further.
func (g *Gateway) reauthenticate(ctx context.Context, creds Credentials) (Credentials, error) {
	if creds.Refresh == "" {
		return Credentials{}, &APIError{Err: ErrAuthenticationExpired}
	}

	payload := map[string]string{"refresh_token": creds.Refresh}
	body, status, err := g.send(ctx, http.MethodPost, "/auth/refresh", nil, payload, "")
	if err != nil || status < 200 || status > 299 {
		g.logger.Warn("re-authentication failed", "status", status, "error", err)
		_ = g.creds.Clear(ctx)
		return Credentials{}, &APIError{Status: status, Err: ErrAuthenticationExpired}
	}

	var rr refreshResponse
	if err := json.Unmarshal(body, &rr); err != nil || rr.Token == "" {
		_ = g.creds.Clear(ctx)
		return Credentials{}, &APIError{Err: ErrAuthenticationExpired}
	}

	next := Credentials{Bearer: rr.Token, Refresh: rr.RefreshToken}
	if next.Refresh == "" {
		next.Refresh = creds.Refresh
	}
	if err := g.creds.Set(ctx, next); err != nil {
		return Credentials{}, &APIError{Err: ErrAuthenticationExpired}
	}
	g.logger.Debug("re-authenticated")
	return next, nil
}

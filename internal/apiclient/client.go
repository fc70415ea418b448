package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"photoflow-web/internal/model"
	"photoflow-web/pkg/apierror"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultProfilePath = "/users/me"

	maxResponseBytes = 1 << 20
)

// ErrSessionExpired is matched by the error returned when a 401 could not be
// recovered by refreshing. The tokens have been cleared by then.
var ErrSessionExpired = errors.New("session expired")

// TokenStore is the credential storage the pipeline reads and updates.
type TokenStore interface {
	Access(ctx context.Context) string
	Refresh(ctx context.Context) string
	Set(ctx context.Context, tokens model.Tokens) error
	Clear(ctx context.Context) error
}

type Config struct {
	BaseURL     string
	Timeout     time.Duration
	ProfilePath string
	HTTPClient  *http.Client
	// OnSessionExpired runs after the tokens are cleared by an unrecoverable 401.
	OnSessionExpired func(ctx context.Context)
	Logger           *slog.Logger
}

// Client is the authorized request pipeline for one token store.
type Client struct {
	baseURL     string
	timeout     time.Duration
	profilePath string
	http        *http.Client
	tokens      TokenStore
	onExpired   func(ctx context.Context)
	logger      *slog.Logger
}

func New(cfg Config, tokens TokenStore) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	profilePath := strings.TrimSpace(cfg.ProfilePath)
	if profilePath == "" {
		profilePath = DefaultProfilePath
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		timeout:     timeout,
		profilePath: profilePath,
		http:        httpClient,
		tokens:      tokens,
		onExpired:   cfg.OnSessionExpired,
		logger:      logger.With("component", "apiclient"),
	}
}

// call describes one API operation. Public operations (login, register, ...)
// still carry a present token but never enter the refresh protocol: a 401
// there means "bad credentials", not "expired session".
type call struct {
	method string
	path   string
	body   any
	public bool
}

type tokenOverrideKey struct{}

// WithAccessToken pins the access token used for calls made with ctx,
// bypassing the token store. Used for calls that outlive the stored tokens.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenOverrideKey{}, token)
}

func (c *Client) accessToken(ctx context.Context) string {
	if token, ok := ctx.Value(tokenOverrideKey{}).(string); ok {
		return token
	}

	return c.tokens.Access(ctx)
}

func (c *Client) do(ctx context.Context, req call, out any) error {
	return c.attempt(ctx, req, out, c.accessToken(ctx), 0)
}

// attempt issues req once. attempt counts prior tries of this same request;
// only attempt 0 may refresh and retry.
func (c *Client) attempt(ctx context.Context, req call, out any, token string, attempt int) error {
	status, env, err := c.send(ctx, req, token)
	if err != nil {
		return err
	}

	// Every authenticated 401 refreshes and retries once. Public calls are the
	// exception: their 401 rejects credentials, so tokens stay untouched.
	if status != http.StatusUnauthorized || req.public || attempt > 0 {
		return c.decode(req, status, env, out)
	}

	original := c.failure(status, env)

	refreshToken := c.tokens.Refresh(ctx)
	if refreshToken == "" {
		c.logger.Info("no refresh token after 401", "path", req.path)
		return c.expire(ctx, original)
	}

	result, err := c.refresh(ctx, refreshToken)
	if err != nil {
		c.logger.Warn("token refresh failed", "path", req.path, "error", err)
		return c.expire(ctx, original)
	}

	tokens := result.Tokens()
	if err := c.tokens.Set(ctx, tokens); err != nil {
		c.logger.Warn("failed to persist refreshed tokens", "error", err)
	}

	retryToken := c.tokens.Access(ctx)
	if tokens.AccessToken != nil {
		retryToken = *tokens.AccessToken
	}

	return c.attempt(ctx, req, out, retryToken, attempt+1)
}

// refresh calls the refresh endpoint directly, outside the 401 protocol.
func (c *Client) refresh(ctx context.Context, refreshToken string) (model.AuthResult, error) {
	req := call{
		method: http.MethodPost,
		path:   "/auth/refresh",
		body:   model.RefreshRequest{RefreshToken: refreshToken},
		public: true,
	}

	status, env, err := c.send(ctx, req, "")
	if err != nil {
		return model.AuthResult{}, err
	}

	var result model.AuthResult
	if err := c.decode(req, status, env, &result); err != nil {
		return model.AuthResult{}, err
	}
	if result.AccessToken == nil || *result.AccessToken == "" {
		return model.AuthResult{}, apierror.Malformed(status, errors.New("refresh returned no access token"))
	}

	return result, nil
}

func (c *Client) expire(ctx context.Context, original *apierror.APIError) error {
	if err := c.tokens.Clear(ctx); err != nil {
		c.logger.Error("failed to clear tokens after expired session", "error", err)
	}
	if c.onExpired != nil {
		c.onExpired(ctx)
	}

	return &expiredError{cause: original}
}

// send performs the HTTP exchange. A nil envelope with a nil error means the
// body was empty or not JSON.
func (c *Client) send(ctx context.Context, req call, token string) (int, *model.Envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return 0, nil, fmt.Errorf("encode %s %s: %w", req.method, req.path, err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("build %s %s: %w", req.method, req.path, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("api request", "method", req.method, "path", req.path, "with_token", token != "")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, nil, apierror.Network(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, apierror.Network(err)
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return resp.StatusCode, nil, nil
	}

	var env model.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Debug("api response is not an envelope", "path", req.path, "status", resp.StatusCode, "error", err)
		return resp.StatusCode, nil, nil
	}

	return resp.StatusCode, &env, nil
}

func (c *Client) decode(req call, status int, env *model.Envelope, out any) error {
	if status >= 400 || env == nil || !env.Success {
		apiErr := c.failure(status, env)
		switch apiErr.Kind {
		case apierror.KindForbidden:
			c.logger.Warn("access forbidden", "path", req.path, "message", apiErr.Message)
		case apierror.KindRateLimited:
			c.logger.Warn("rate limited", "path", req.path, "message", apiErr.Message)
		case apierror.KindMalformed:
			c.logger.Warn("malformed api response", "path", req.path, "status", status)
		}
		return apiErr
	}

	if err := env.Validate(); err != nil {
		c.logger.Warn("malformed api response", "path", req.path, "status", status, "error", err)
		return apierror.Malformed(status, err)
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		c.logger.Warn("api data did not match expected shape", "path", req.path, "error", err)
		return apierror.Malformed(status, err)
	}

	return nil
}

// failure converts a non-success response into an APIError. Error and
// Message are both populated whenever the server supplied either.
func (c *Client) failure(status int, env *model.Envelope) *apierror.APIError {
	if env == nil {
		if status >= 200 && status < 300 {
			return apierror.Malformed(status, errors.New("empty or non-JSON body"))
		}
		text := http.StatusText(status)
		return apierror.New(text, text, "", status)
	}

	if err := env.Validate(); err != nil && status < 400 {
		return apierror.Malformed(status, err)
	}

	code, message := env.Error, env.Message
	if code == "" && message == "" {
		code = http.StatusText(status)
	}
	if code == "" {
		code = message
	}
	if message == "" {
		message = code
	}

	apiErr := apierror.New(code, message, env.DetailsText(), status)
	apiErr.Timestamp = env.Timestamp
	return apiErr
}

type expiredError struct {
	cause *apierror.APIError
}

func (e *expiredError) Error() string {
	return e.cause.Error()
}

func (e *expiredError) Unwrap() []error {
	return []error{ErrSessionExpired, e.cause}
}

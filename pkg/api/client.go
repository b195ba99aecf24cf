// Package api implements the low-level MWDB REST API client: authentication,
// request/response handling, rate-limit obedience and downtime retries.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mwdb/pkg/logger"
	"mwdb/pkg/serrors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// LibraryVersion is reported in the User-Agent header.
const LibraryVersion = "1.0.0"

// UserAgent is sent with every request.
const UserAgent = "mwdblib-go/" + LibraryVersion

// Client talks to the MWDB REST API. It is safe for concurrent use.
type Client struct {
	opts       Options
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter

	mu         sync.RWMutex
	token      *AuthToken
	serverMeta map[string]any
}

// AuthInfo is the response of the auth/validate endpoint.
type AuthInfo struct {
	Login        string   `json:"login"`
	Token        string   `json:"token"`
	Capabilities []string `json:"capabilities"`
	Groups       []string `json:"groups"`
}

// New constructs a Client. If an API key is given it is used for
// authentication, otherwise the client logs in when both username and password
// are given. A client without credentials can still call NoAuth endpoints.
func New(ctx context.Context, opts Options) (*Client, error) {
	opts.APIURL = NormalizeAPIURL(ctx, opts.APIURL)
	base, err := url.Parse(opts.APIURL)
	if err != nil {
		return nil, fmt.Errorf("could not parse api url: %w", err)
	}
	if opts.DowntimeTimeout <= 0 {
		opts.DowntimeTimeout = DefaultDowntimeTimeout
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone() //nolint: forcetypeassert
		if opts.Insecure {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint: gosec
		}
		httpClient = &http.Client{Transport: transport, Timeout: opts.Timeout}
	}

	c := &Client{
		opts:       opts,
		baseURL:    base,
		httpClient: httpClient,
	}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	switch {
	case opts.APIKey != "":
		if err := c.SetAPIKey(opts.APIKey); err != nil {
			return nil, err
		}
	case opts.Username != "" && opts.Password != "":
		if err := c.Login(ctx, opts.Username, opts.Password); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// APIURL returns the normalized API root.
func (c *Client) APIURL() string {
	return c.opts.APIURL
}

// Login authenticates with username and password. The credentials are kept
// so that an expired session can be renewed transparently.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var res struct {
		Token string `json:"token"`
	}
	err := c.Post(ctx, "auth/login", &res, NoAuth(), JSON(map[string]string{
		"login":    username,
		"password": password,
	}))
	if err != nil {
		return fmt.Errorf("could not login as %s: %w", username, err)
	}

	token, err := ParseAuthToken(res.Token)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.token = token
	c.opts.Username = username
	c.opts.Password = password
	c.mu.Unlock()

	return nil
}

// SetAPIKey authenticates with an API key.
func (c *Client) SetAPIKey(apiKey string) error {
	token, err := ParseAuthToken(apiKey)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.token = token
	c.opts.APIKey = apiKey
	c.mu.Unlock()

	return nil
}

// Logout forgets the current token. Stored credentials are kept.
func (c *Client) Logout() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}

// AuthToken returns the current token or nil.
func (c *Client) AuthToken() *AuthToken {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.token
}

// LoggedUser returns the login of the authenticated user, or "".
func (c *Client) LoggedUser() string {
	if t := c.AuthToken(); t != nil {
		return t.Username()
	}

	return ""
}

// ValidateAuth asks the server whether the current credentials are valid.
func (c *Client) ValidateAuth(ctx context.Context) (*AuthInfo, error) {
	var info AuthInfo
	if err := c.Get(ctx, "auth/validate", &info); err != nil {
		return nil, fmt.Errorf("could not validate credentials: %w", err)
	}

	return &info, nil
}

// Get sends a GET request and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodGet, path, out, opts...)
}

// Post sends a POST request and decodes the JSON response into out.
func (c *Client) Post(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPost, path, out, opts...)
}

// Put sends a PUT request and decodes the JSON response into out.
func (c *Client) Put(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPut, path, out, opts...)
}

// Delete sends a DELETE request and decodes the JSON response into out.
func (c *Client) Delete(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodDelete, path, out, opts...)
}

// GetRaw sends a GET request and returns the raw response body.
func (c *Client) GetRaw(ctx context.Context, path string, opts ...RequestOption) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, opts)
}

// Do sends a request to an endpoint relative to the API root and decodes the
// JSON response into out. out may be nil, in which case the response is only
// checked to be JSON.
func (c *Client) Do(ctx context.Context, method, path string, out any, opts ...RequestOption) error {
	b, err := c.do(ctx, method, path, opts)
	if err != nil {
		return err
	}

	if out == nil {
		if !json.Valid(b) {
			return badResponse(nil)
		}

		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return badResponse(err)
	}

	return nil
}

func badResponse(err error) error {
	const msg = "could not decode json response from server, the api url probably points to " +
		"the MWDB web app instead of the REST API"
	if err == nil {
		return serrors.With(serrors.ErrBadResponse, msg)
	}

	return serrors.Wrap(serrors.ErrBadResponse, err, msg)
}

func (c *Client) do(ctx context.Context, method, path string, opts []RequestOption) ([]byte, error) {
	r := &request{}
	for _, o := range opts {
		o(r)
	}
	if r.err != nil {
		return nil, r.err
	}
	if !r.noauth && c.AuthToken() == nil {
		return nil, serrors.With(serrors.ErrUnauthorized,
			"API credentials for MWDB were not set, pass an API key or login first")
	}

	endpoint, err := c.resolve(path, r.params)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithFields(ctx, zap.String("method", method), zap.String("path", path))
	downtime := Backoff{
		MaxAttempts:  c.opts.MaxDowntimeRetries,
		InitialDelay: c.opts.DowntimeTimeout,
		MaxDelay:     MaxDowntimeDelay,
	}
	downtimeAttempt := 0
	relogged := false

	for {
		status, header, body, err := c.send(ctx, method, endpoint, r)
		if err != nil {
			if ctx.Err() == nil && c.retryOnDowntime(method) {
				downtimeAttempt++
				if delay, ok := downtime.Next(downtimeAttempt); ok {
					if err := c.pause(ctx, "downtime", delay, err); err != nil {
						return nil, err
					}

					continue
				}
			}

			return nil, fmt.Errorf("could not send request: %w", err)
		}
		if status >= 200 && status < 300 {
			return body, nil
		}

		apiErr := serrors.FromResponse(status, body)
		switch {
		case status == http.StatusUnauthorized && !r.noauth:
			c.Logout()
			username, password := c.credentials()
			if password == "" || relogged {
				return nil, apiErr
			}
			relogged = true
			c.opts.Metrics.Retry("reauth")
			logger.Info(ctx, "session expired, logging in again", zap.String("user", username))
			if err := c.Login(ctx, username, password); err != nil {
				return nil, err
			}

			continue
		case status == http.StatusTooManyRequests && c.opts.ObeyRateLimiter:
			if err := c.pause(ctx, "ratelimit", retryAfter(header), apiErr); err != nil {
				return nil, err
			}

			continue
		case errors.Is(apiErr, serrors.ErrGateway) && c.retryOnDowntime(method):
			downtimeAttempt++
			if delay, ok := downtime.Next(downtimeAttempt); ok {
				if err := c.pause(ctx, "downtime", delay, apiErr); err != nil {
					return nil, err
				}

				continue
			}
		}

		return nil, apiErr
	}
}

func (c *Client) send(ctx context.Context, method, endpoint string, r *request) (int, http.Header, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, nil, fmt.Errorf("could not wait for request slot: %w", err)
		}
	}

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("could not create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("X-Request-Id", requestID)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if token := c.AuthToken(); token != nil {
		req.Header.Set("Authorization", "Bearer "+token.String())
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Debug(ctx, "mwdb request failed", zap.String("requestId", requestID), zap.Error(err))

		return 0, nil, nil, err //nolint: wrapcheck
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	took := time.Since(start)
	c.opts.Metrics.ObserveRequest(method, resp.StatusCode, took)
	logger.Debug(ctx, "mwdb request",
		zap.String("requestId", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", took))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("could not read response body: %w", err)
	}

	return resp.StatusCode, resp.Header, b, nil
}

func (c *Client) pause(ctx context.Context, reason string, d time.Duration, cause error) error {
	c.opts.Metrics.Retry(reason)
	logger.Warn(ctx, "retrying mwdb request",
		zap.String("reason", reason),
		zap.Duration("pause", d),
		zap.Error(cause))
	if err := c.opts.Sleep(ctx, d); err != nil {
		return fmt.Errorf("could not wait before retrying: %w", err)
	}

	return nil
}

func (c *Client) retryOnDowntime(method string) bool {
	return c.opts.RetryOnDowntime && (method != http.MethodPost || c.opts.RetryIdempotent)
}

func (c *Client) credentials() (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.opts.Username, c.opts.Password
}

func (c *Client) resolve(path string, params url.Values) (string, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return "", fmt.Errorf("could not parse endpoint %q: %w", path, err)
	}

	u := c.baseURL.ResolveReference(ref)
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return DefaultRetryAfter
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return DefaultRetryAfter
	}

	return time.Duration(n) * time.Second
}

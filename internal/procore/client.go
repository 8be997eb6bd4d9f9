package procore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the versioned REST root every API path is appended to.
const DefaultBaseURL = "https://api.procore.com/rest/v1.0"

// Retry and backoff defaults.
const (
	defaultMaxRateLimitRetries = 10
	defaultRateLimitWait       = 60 * time.Second
	defaultMaxServerRetries    = 4
	defaultBaseBackoff         = 1 * time.Second
	defaultMaxBackoff          = 30 * time.Second
	backoffFactor              = 2.0
	jitterFraction             = 0.25
	defaultUserAgent           = "procore-go/0.1"
)

// companyHeader scopes a request to one company. Folder listings require it.
const companyHeader = "Procore-Company-Id"

// RetryPolicy bounds how long a single call may keep retrying.
// 429 responses and 5xx/transport failures have separate budgets.
type RetryPolicy struct {
	MaxRateLimitRetries int           // 429 retries before ErrRateLimitExceeded
	RateLimitWait       time.Duration // wait when a 429 has no usable Retry-After
	MaxServerRetries    int           // 5xx and transport retries before giving up
	BaseBackoff         time.Duration
	MaxBackoff          time.Duration
}

// DefaultRetryPolicy returns the bounds used when the config leaves them unset.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRateLimitRetries: defaultMaxRateLimitRetries,
		RateLimitWait:       defaultRateLimitWait,
		MaxServerRetries:    defaultMaxServerRetries,
		BaseBackoff:         defaultBaseBackoff,
		MaxBackoff:          defaultMaxBackoff,
	}
}

// withDefaults fills zero fields so a partially specified policy still works.
// Negative retry counts mean "no retries".
func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()

	if p.MaxRateLimitRetries == 0 {
		p.MaxRateLimitRetries = d.MaxRateLimitRetries
	}

	if p.RateLimitWait <= 0 {
		p.RateLimitWait = d.RateLimitWait
	}

	if p.MaxServerRetries == 0 {
		p.MaxServerRetries = d.MaxServerRetries
	}

	if p.BaseBackoff <= 0 {
		p.BaseBackoff = d.BaseBackoff
	}

	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}

	return p
}

// ClientConfig holds the static settings of a Client.
type ClientConfig struct {
	BaseURL   string // empty = DefaultBaseURL
	UserAgent string // empty = defaultUserAgent
	PageSize  int    // per_page for collection endpoints; 0 = default
	Retry     RetryPolicy
}

// Response is the raw outcome of a successful GET. The client never
// interprets the body, so the same call serves JSON listings and binary data.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client performs every authenticated call against the Procore API. It
// attaches the bearer credential, retries 429 responses after the server's
// Retry-After, and retries 5xx and transport failures with capped
// exponential backoff. The credential is set once and never mutated.
type Client struct {
	baseURL    string
	apiHost    string
	httpClient *http.Client
	credential Credential
	companyID  int64
	pageSize   int
	policy     RetryPolicy
	userAgent  string
	logger     *slog.Logger

	// sleepFunc is called to wait between retries. Defaults to timeSleep.
	// Tests override this to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Procore API client that authenticates with cred.
func NewClient(cfg ClientConfig, httpClient *http.Client, cred Credential, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	var host string
	if u, err := url.Parse(baseURL); err == nil {
		host = u.Host
	}

	return &Client{
		baseURL:    baseURL,
		apiHost:    host,
		httpClient: httpClient,
		credential: cred,
		pageSize:   cfg.PageSize,
		policy:     cfg.Retry.withDefaults(),
		userAgent:  ua,
		logger:     logger,
		sleepFunc:  timeSleep,
	}
}

// ForCompany returns a copy of the client whose requests carry the
// Procore-Company-Id header. The receiver is not modified.
func (c *Client) ForCompany(companyID int64) *Client {
	cp := *c
	cp.companyID = companyID

	return &cp
}

// Get issues an authenticated GET. path is appended to the base URL unless
// it is already absolute. query is merged into the URL's own query string.
// Non-2xx outcomes come back as errors after the retry policy is exhausted.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	target, err := c.resolve(path, query)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, "GET "+path, func() (*http.Request, error) {
		return c.newRequest(ctx, target)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("procore: reading response body for %s: %w", path, err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// resolve builds the absolute request URL.
func (c *Client) resolve(path string, query url.Values) (string, error) {
	raw := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		raw = c.baseURL + path
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("procore: invalid request path %q: %w", path, err)
	}

	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}

		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// newRequest builds a GET with the bearer credential and headers. The
// credential is only attached for the API host itself. Pre-signed storage
// URLs carry their own authorization and reject a second one.
func (c *Client) newRequest(ctx context.Context, target string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("procore: creating request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)

	if req.URL.Host == c.apiHost {
		req.Header.Set("Authorization", "Bearer "+c.credential.AccessToken)

		if c.companyID != 0 {
			req.Header.Set(companyHeader, strconv.FormatInt(c.companyID, 10))
		}
	}

	return req, nil
}

// do runs the request built by build until it succeeds or a retry budget is
// spent. The builder is called once per attempt so every retry sends an
// identical, fresh request. On success the caller owns the response body.
func (c *Client) do(ctx context.Context, op string, build func() (*http.Request, error)) (*http.Response, error) {
	var throttled, retried int

	for {
		req, err := build()
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Context cancellation is not retryable.
			if ctx.Err() != nil {
				return nil, fmt.Errorf("procore: request canceled: %w", ctx.Err())
			}

			if retried < c.policy.MaxServerRetries {
				backoff := c.calcBackoff(retried)
				c.logger.Warn("retrying after network error",
					slog.String("op", op),
					slog.Int("attempt", retried+1),
					slog.Duration("backoff", backoff),
					slog.String("error", err.Error()),
				)

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("procore: request canceled: %w", sleepErr)
				}

				retried++

				continue
			}

			return nil, fmt.Errorf("%w: %s failed after %d retries: %w", ErrAPI, op, retried, err)
		}

		// 2xx: success.
		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			c.logger.Debug("request succeeded",
				slog.String("op", op),
				slog.Int("status", resp.StatusCode),
			)

			return resp, nil
		}

		// Read and close body for error responses.
		errBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if throttled >= c.policy.MaxRateLimitRetries {
				c.logger.Error("rate limit retries exhausted",
					slog.String("op", op),
					slog.Int("retries", throttled),
				)

				return nil, fmt.Errorf("%w: %s still throttled after %d retries", ErrRateLimitExceeded, op, throttled)
			}

			wait := c.rateLimitWait(resp.Header)
			c.logger.Warn("rate limited, waiting before retry",
				slog.String("op", op),
				slog.Int("attempt", throttled+1),
				slog.Duration("wait", wait),
			)

			if err := c.sleepFunc(ctx, wait); err != nil {
				return nil, fmt.Errorf("procore: request canceled: %w", err)
			}

			throttled++

			continue
		}

		if isServerError(resp.StatusCode) && retried < c.policy.MaxServerRetries {
			backoff := c.calcBackoff(retried)
			c.logger.Warn("retrying after server error",
				slog.String("op", op),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", retried+1),
				slog.Duration("backoff", backoff),
			)

			if err := c.sleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("procore: request canceled: %w", err)
			}

			retried++

			continue
		}

		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			RequestID:  resp.Header.Get("X-Request-Id"),
			Message:    string(errBody),
			Err:        classifyStatus(resp.StatusCode),
		}

		if retried > 0 {
			c.logger.Error("request failed after retries",
				slog.String("op", op),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempts", retried+1),
			)
		}

		return nil, apiErr
	}
}

// rateLimitWait reads Retry-After as delay-seconds or an HTTP date. A
// missing or unusable header falls back to the policy default.
func (c *Client) rateLimitWait(h http.Header) time.Duration {
	ra := strings.TrimSpace(h.Get("Retry-After"))
	if ra == "" {
		return c.policy.RateLimitWait
	}

	if seconds, err := strconv.Atoi(ra); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}

	if at, err := http.ParseTime(ra); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}

		return 0
	}

	return c.policy.RateLimitWait
}

// calcBackoff computes exponential backoff with ±25% jitter, capped at
// the policy's MaxBackoff.
func (c *Client) calcBackoff(attempt int) time.Duration {
	backoff := float64(c.policy.BaseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(c.policy.MaxBackoff) {
		backoff = float64(c.policy.MaxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// timeSleep waits for the given duration or until the context is canceled.
// It is the default sleepFunc for Client.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

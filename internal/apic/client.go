package apic

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultUserAgent = "apicsync"
	DefaultRealm     = "provider/default-idp-2"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10.0
	DefaultRateBurst = 5
)

// ClientConfig configures the client of a single provider.
type ClientConfig struct {
	// Identifies the provider. Used as the token cache key.
	ProviderID string
	// Base URL of the platform API, e.g. https://apic.example.com/api
	BaseURL      string
	Realm        string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string

	// Deadline of each individual request (default: 30s).
	Timeout            time.Duration
	InsecureSkipVerify bool
	// Requests per second (default: 10).
	RateLimit float64
	RateBurst int
	UserAgent string
	// The zero value means DefaultRetryPolicy.
	Retry RetryPolicy

	// Transport allows injecting a custom HTTP transport in tests.
	Transport http.RoundTripper
}

func (c *ClientConfig) userAgent() string {
	if c.UserAgent == "" {
		return DefaultUserAgent
	}
	return c.UserAgent
}

func (c *ClientConfig) retryPolicy() RetryPolicy {
	if c.Retry.MaxAttempts == 0 {
		return DefaultRetryPolicy()
	}
	return c.Retry
}

// Response is a fully read 2xx response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON unmarshals the response body into the given target.
func (r *Response) JSON(target any) error {
	return json.Unmarshal(r.Body, target)
}

// Client is a rate-limited client for the platform API that authenticates
// every request with a token from its Issuer.
type Client struct {
	config  ClientConfig
	http    *http.Client
	limiter *rate.Limiter
	issuer  *Issuer
	log     *zap.SugaredLogger
}

// NewClient returns a client for the provider described by config.
// tokens is shared between the clients of all providers.
func NewClient(config ClientConfig, tokens *TokenCache, log *zap.SugaredLogger) *Client {
	if config.Realm == "" {
		config.Realm = DefaultRealm
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.RateLimit == 0 {
		config.RateLimit = DefaultRateLimit
	}
	if config.RateBurst == 0 {
		config.RateBurst = DefaultRateBurst
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	transport := config.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		if config.InsecureSkipVerify {
			t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		transport = t
	}
	c := &Client{
		config: config,
		http: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
		log:     log,
	}
	c.issuer = &Issuer{
		config:  &c.config,
		http:    c.http,
		tokens:  tokens,
		limiter: c.limiter,
		log:     log,
		now:     time.Now,
	}
	return c
}

func (c *Client) BaseURL() string { return c.config.BaseURL }

func (c *Client) Issuer() *Issuer { return c.issuer }

// Get performs an authenticated GET request.
// A non-empty fields list is sent as a single fields=a,b,c query parameter.
// header values are applied after the default headers and may override them.
func (c *Client) Get(ctx context.Context, rawURL string, fields []string, header http.Header) (*Response, error) {
	u, err := withFields(rawURL, fields)
	if err != nil {
		return nil, err
	}
	var resp *Response
	err = c.config.retryPolicy().Do(ctx, func(ctx context.Context, attempt int) (bool, error) {
		token, err := c.issuer.Token(ctx)
		if err != nil {
			return false, err
		}
		r, err := c.doOnce(ctx, u, token, header)
		if err != nil {
			if IsUnauthorized(err) {
				c.log.Warnw("Request was rejected, refreshing token", "url", u, "attempt", attempt)
				c.issuer.Invalidate()
				return true, err
			}
			return false, err
		}
		resp = r
		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	return resp, nil
}

// GetJSON performs a GET request and decodes the response body into target.
func (c *Client) GetJSON(ctx context.Context, rawURL string, fields []string, target any) error {
	resp, err := c.Get(ctx, rawURL, fields, nil)
	if err != nil {
		return err
	}
	if err := resp.JSON(target); err != nil {
		return fmt.Errorf("decode response of %s: %w", rawURL, err)
	}
	return nil
}

func (c *Client) doOnce(ctx context.Context, u string, token string, header http.Header) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.userAgent())
	req.Header.Set("X-Ibm-Consumer-Context", "admin")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	c.log.Debugf("Performing request to '%s'", u)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// withFields returns rawURL with its fields query parameter replaced by
// fields=<f1>,<f2>,... The commas are not escaped.
func withFields(rawURL string, fields []string) (string, error) {
	if len(fields) == 0 {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	q := u.Query()
	q.Del("fields")
	escaped := make([]string, len(fields))
	for i, f := range fields {
		escaped[i] = url.QueryEscape(f)
	}
	param := "fields=" + strings.Join(escaped, ",")
	if rest := q.Encode(); rest != "" {
		u.RawQuery = rest + "&" + param
	} else {
		u.RawQuery = param
	}
	return u.String(), nil
}

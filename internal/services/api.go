// HTTP plumbing shared by the REST store and the auth service
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/desertthunder/marquee/internal/metrics"
	"github.com/desertthunder/marquee/internal/shared"
)

const (
	defaultTimeout = 15 * time.Second
	defaultRate    = 10
)

// ClientOptions configures a [Client].
type ClientOptions struct {
	BaseURL string
	AnonKey string

	// Tokens supplies the user's bearer token. When nil or signed out, the anon key is sent instead.
	Tokens oauth2.TokenSource

	// Network, when set, is marked offline on transport failures and online
	// whenever the server answers.
	Network *shared.NetworkStatus

	RequestsPerSecond float64
	Timeout           time.Duration
	Base              http.RoundTripper
	Logger            *log.Logger
}

// Client makes rate-limited requests against the hosted backend.
type Client struct {
	baseURL    string
	anonKey    string
	base       http.RoundTripper
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	network    *shared.NetworkStatus
	logger     *log.Logger
}

// NewClient creates a [Client]. A base URL and anon key are required.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseURL == "" || opts.AnonKey == "" {
		return nil, fmt.Errorf("%w: base url and anon key", shared.ErrMissingCredentials)
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = defaultRate
	}
	if opts.Base == nil {
		opts.Base = http.DefaultTransport
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		anonKey: opts.AnonKey,
		base:    opts.Base,
		timeout: opts.Timeout,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		network: opts.Network,
		logger:  shared.WithLogger(opts.Logger, "component", "http"),
	}
	c.httpClient = c.clientFor(anonFallback{src: opts.Tokens, anon: opts.AnonKey})
	return c, nil
}

func (c *Client) clientFor(ts oauth2.TokenSource) *http.Client {
	return &http.Client{
		Timeout:   c.timeout,
		Transport: &oauth2.Transport{Source: ts, Base: c.base},
	}
}

// WithToken returns a copy of c that always sends accessToken as the bearer.
func (c *Client) WithToken(accessToken string) *Client {
	cp := *c
	cp.httpClient = c.clientFor(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}))
	return &cp
}

// anonFallback sends the user's token when there is one and the anon key otherwise.
type anonFallback struct {
	src  oauth2.TokenSource
	anon string
}

func (a anonFallback) Token() (*oauth2.Token, error) {
	if a.src != nil {
		if tok, err := a.src.Token(); err == nil && tok.AccessToken != "" {
			return tok, nil
		}
	}
	return &oauth2.Token{AccessToken: a.anon, TokenType: "Bearer"}, nil
}

// APIResponse is a raw response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the body into v.
func (r *APIResponse) Decode(v any) error {
	dec := json.NewDecoder(bytes.NewReader(r.Body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Do sends a request to path with the given query and JSON body. Any status is
// returned as an [APIResponse]; only transport failures are errors.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any, header http.Header) (*APIResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordRESTRequest(method, 0)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.setOnline(false)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	metrics.RecordRESTRequest(method, resp.StatusCode)
	c.setOnline(true)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("request", "method", method, "path", path, "status", resp.StatusCode)
	return &APIResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: data}, nil
}

func (c *Client) setOnline(online bool) {
	if !c.network.SetOnline(online) {
		return
	}
	if online {
		c.logger.Info("backend reachable again")
	} else {
		c.logger.Warn("backend unreachable, marking offline", "url", c.baseURL)
	}
}

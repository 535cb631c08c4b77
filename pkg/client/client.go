// Package client provides the page-fetching HTTP client: one typed GET per
// page, rate limit gating, conditional caching and error classification.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Sternrassler/pagefeed/pkg/cache"
	"github.com/Sternrassler/pagefeed/pkg/logging"
	"github.com/Sternrassler/pagefeed/pkg/ratelimit"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for fetch operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagefeed_requests_total",
		Help: "Total page requests by resource and status",
	}, []string{"resource", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pagefeed_request_duration_seconds",
		Help:    "Page request duration in seconds by resource",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
	}, []string{"resource"})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagefeed_fetch_errors_total",
		Help: "Total failed fetches by error kind",
	}, []string{"kind"})

	fetchCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagefeed_fetch_cancelled_total",
		Help: "Total fetches abandoned because the caller cancelled them",
	})
)

// Defaults for Config.
const (
	DefaultBaseURL    = "https://jsonplaceholder.typicode.com"
	DefaultUserAgent  = "pagefeed/0.1.0"
	DefaultTimeout    = 15 * time.Second
	DefaultPageParam  = "_page"
	DefaultLimitParam = "_limit"
)

// Client fetches pages of remote collections. It is stateless from the
// caller's point of view and safe for concurrent use.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the collection server root, e.g. "https://jsonplaceholder.typicode.com"
	BaseURL string

	// UserAgent header sent with every request
	UserAgent string

	// Timeout bounds a whole request including reading the body
	Timeout time.Duration

	// Query parameter names for page index and page size
	PageParam  string
	LimitParam string

	// Redis shares rate limit state between processes (optional)
	Redis *redis.Client

	// EnableCache keeps page responses in memory for conditional requests
	EnableCache     bool
	CacheMaxEntries int

	// Logger overrides the component logger (optional)
	Logger *zerolog.Logger
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		UserAgent:       DefaultUserAgent,
		Timeout:         DefaultTimeout,
		PageParam:       DefaultPageParam,
		LimitParam:      DefaultLimitParam,
		EnableCache:     true,
		CacheMaxEntries: cache.DefaultMaxEntries,
	}
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !base.IsAbs() || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	if cfg.PageParam == "" || cfg.LimitParam == "" {
		return nil, fmt.Errorf("page and limit parameter names are required")
	}

	logger := logging.NewLogger("pagefeed-client")
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	var store ratelimit.Store = ratelimit.NewMemoryStore()
	if cfg.Redis != nil {
		store = ratelimit.NewRedisStore(cfg.Redis)
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:     base,
		rateLimiter: ratelimit.NewTracker(store, logger),
		config:      cfg,
		logger:      logger,
	}
	if cfg.EnableCache {
		c.cache = cache.NewManager(cfg.CacheMaxEntries)
	}

	return c, nil
}

// FetchPage fetches one page of resource.
//
// The error is ErrCancelled if ctx was cancelled before or while the request
// was in flight, otherwise a *FetchError.
func (c *Client) FetchPage(ctx context.Context, resource string, req PageRequest) ([]Item, error) {
	if err := req.Validate(); err != nil {
		return nil, c.fail(resource, invalidRequest(err))
	}

	query := url.Values{}
	query.Set(c.config.PageParam, strconv.Itoa(req.Page))
	query.Set(c.config.LimitParam, strconv.Itoa(req.Size))

	var items []Item
	if err := c.Get(ctx, resource, query, &items); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("resource", resource).
		Int("page", req.Page).
		Int("count", len(items)).
		Msg("Page fetched")

	return items, nil
}

// Get performs a GET on resource and decodes the JSON payload into out.
// Errors follow the same classification as FetchPage.
func (c *Client) Get(ctx context.Context, resource string, query url.Values, out any) error {
	if ctx.Err() != nil {
		return c.cancelled(resource)
	}

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(resource).Observe(time.Since(start).Seconds())
	}()

	target, err := c.buildURL(resource, query)
	if err != nil {
		return c.fail(resource, invalidRequest(err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return c.fail(resource, invalidRequest(fmt.Errorf("create request: %w", err)))
	}

	allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return c.cancelled(resource)
		}
		return c.fail(resource, transport(fmt.Errorf("rate limit check: %w", err)))
	}
	if !allowed {
		requestsTotal.WithLabelValues(resource, "rate_limited").Inc()
		return c.fail(resource, transport(ratelimit.ErrBlocked))
	}

	cacheKey := cache.CacheKey{Resource: resource, QueryParams: query}
	var cached *cache.CacheEntry
	if c.cache != nil {
		cached, err = c.cache.Get(ctx, cacheKey)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("resource", resource).Msg("Cache get error")
		}
		if cache.ShouldMakeConditionalRequest(cached) {
			cache.AddConditionalHeaders(req, cached)
			cache.ConditionalRequestsSent.Inc()
		}
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	c.logger.Debug().
		Str("resource", resource).
		Str("url", target.String()).
		Str("request_id", req.Header.Get("X-Request-ID")).
		Msg("GET")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return c.cancelled(resource)
		}
		requestsTotal.WithLabelValues(resource, "network_error").Inc()
		return c.fail(resource, transport(err))
	}
	defer resp.Body.Close()

	if err := c.rateLimiter.UpdateFromHeaders(ctx, resp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
	}

	body, err := io.ReadAll(resp.Body)
	if ctx.Err() != nil {
		return c.cancelled(resource)
	}
	if err != nil {
		return c.fail(resource, transport(fmt.Errorf("read response body: %w", err)))
	}

	requestsTotal.WithLabelValues(resource, strconv.Itoa(resp.StatusCode)).Inc()

	c.logger.Debug().
		Str("resource", resource).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Msg("Response received")

	switch {
	case resp.StatusCode == http.StatusNotModified && cached != nil:
		cache.NotModifiedResponses.Inc()
		body = cached.Data
		if expiresStr := resp.Header.Get("Expires"); expiresStr != "" {
			if newExpires, err := http.ParseTime(expiresStr); err == nil {
				if err := c.cache.UpdateTTL(ctx, cacheKey, newExpires); err != nil {
					c.logger.Debug().Err(err).Msg("Failed to update cache TTL")
				}
			}
		}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return c.fail(resource, httpStatus(resp.StatusCode, body))
	}

	if err := decodeJSON(body, out); err != nil {
		c.logger.Debug().
			Err(err).
			Str("resource", resource).
			Bytes("payload", truncate(body, maxBodyExcerpt)).
			Msg("Decoding failed")
		return c.fail(resource, decoding(err))
	}

	if c.cache != nil {
		if entry := cache.NewEntry(resp, body); entry != nil {
			if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to cache response")
			}
		}
	}

	return nil
}

// buildURL joins resource onto the base URL and attaches query.
func (c *Client) buildURL(resource string, query url.Values) (*url.URL, error) {
	resource = strings.Trim(resource, "/")
	if resource == "" {
		return nil, fmt.Errorf("resource is required")
	}
	if strings.ContainsAny(resource, "?#") {
		return nil, fmt.Errorf("resource must not contain a query or fragment (got %q)", resource)
	}

	target := c.baseURL.JoinPath(resource)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}
	return target, nil
}

func (c *Client) fail(resource string, err *FetchError) error {
	fetchErrorsTotal.WithLabelValues(string(err.Kind)).Inc()
	c.logger.Warn().
		Str("resource", resource).
		Str("error_kind", string(err.Kind)).
		Int("status", err.StatusCode).
		Err(err.Err).
		Msg("Fetch failed")
	return err
}

func (c *Client) cancelled(resource string) error {
	fetchCancelledTotal.Inc()
	c.logger.Debug().Str("resource", resource).Msg("Fetch cancelled")
	return ErrCancelled
}

// truncate cuts b to at most n bytes without splitting a UTF-8 sequence.
func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	cut := n
	for cut > 0 && cut > n-utf8.UTFMax && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return b[:cut]
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// RateLimiter returns the rate limit tracker (for testing).
func (c *Client) RateLimiter() *ratelimit.Tracker {
	return c.rateLimiter
}

// Package client is the Geoapify HTTP client: single-shot lookups with
// retries and an optional Redis response cache, plus batch jobs through
// package batch.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/huels-originals/geobatch/pkg/batch"
	"github.com/huels-originals/geobatch/pkg/cache"
)

// Prometheus metrics for Geoapify requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geoapify_requests_total",
		Help: "Total Geoapify requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geoapify_request_duration_seconds",
		Help:    "Geoapify request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geoapify_errors_total",
		Help: "Total Geoapify errors by class",
	}, []string{"class"})
)

// versionPrefix matches the leading API version of a route, e.g. "/v2/".
var versionPrefix = regexp.MustCompile(`^/v\d+/`)

// Client is the main Geoapify client.
type Client struct {
	httpClient *http.Client
	cache      *cache.Manager
	batch      *batch.Orchestrator
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// APIKey authenticates every request (REQUIRED)
	APIKey string

	// BaseURL is the API root (default: https://api.geoapify.com)
	BaseURL string

	// Timeout per HTTP request
	Timeout time.Duration

	// Retry for synchronous requests. Batch job submission is never retried.
	MaxRetries     int // Retries after the initial attempt
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Redis enables the response cache for synchronous GETs when set
	Redis    *redis.Client
	CacheTTL time.Duration

	// Batch tunes the batch orchestrator. APIKey, BaseURL and HTTPClient are
	// taken from the client.
	Batch batch.Config
}

// DefaultConfig returns a default configuration without caching.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:         apiKey,
		BaseURL:        batch.DefaultBaseURL,
		Timeout:        30 * time.Second,
		MaxRetries:     2,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		CacheTTL:       cache.DefaultTTL,
		Batch:          batch.DefaultConfig(apiKey),
	}
}

// New creates a new Geoapify client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidArgument)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = batch.DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("%w: max_retries must be >= 0 (got %d)", ErrInvalidArgument, cfg.MaxRetries)
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 1 * time.Second
	}

	logger := log.With().Str("component", "geoapify-client").Logger()

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		logger:     logger,
	}

	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis, cfg.CacheTTL)
	}

	bcfg := cfg.Batch
	bcfg.APIKey = cfg.APIKey
	bcfg.BaseURL = cfg.BaseURL
	bcfg.HTTPClient = doerFunc(c.send)
	orch, err := batch.New(bcfg)
	if err != nil {
		return nil, fmt.Errorf("batch orchestrator: %w", err)
	}
	c.batch = orch

	return c, nil
}

// doerFunc adapts a function to batch.Doer.
type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Do performs a request against Geoapify with caching and retries.
// The apiKey query parameter is added when missing. Responses with a client
// error status are returned to the caller; server errors, 429 and network
// failures are retried.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path
	c.ensureAPIKey(req)

	cacheable := c.cache != nil && req.Method == http.MethodGet
	var cacheKey cache.CacheKey
	if cacheable {
		cacheKey = cache.KeyFromRequest(req)
		entry, err := c.cache.Get(ctx, cacheKey)
		if err == nil {
			c.logger.Debug().Str("endpoint", endpoint).Msg("Cache hit")
			requestsTotal.WithLabelValues(endpoint, "cached").Inc()
			return cache.EntryToResponse(entry, req), nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	retryCfg := RetryConfig{
		MaxAttempts:       c.config.MaxRetries + 1,
		InitialBackoff:    c.config.InitialBackoff,
		MaxBackoff:        c.config.MaxBackoff,
		BackoffMultiplier: 2.0,
	}

	var resp *http.Response
	retryErr := retryWithBackoff(ctx, retryCfg, func(attempt int) error {
		if attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return fmt.Errorf("reset request body: %w", err)
			}
			req.Body = body
		}

		r, err := c.send(req)
		if err != nil {
			return err
		}

		errClass := classifyStatus(r.StatusCode)
		if shouldRetry(errClass) {
			apiErr := &APIError{
				StatusCode: r.StatusCode,
				ErrorClass: errClass,
				Message:    readMessage(r),
				RetryAfter: parseRetryAfter(r.Header),
			}
			r.Body.Close()
			return apiErr
		}

		resp = r
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}

	if cacheable && cache.Cacheable(resp) {
		entry, err := cache.ResponseToEntry(resp, c.cache.TTL())
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		} else {
			c.logger.Debug().
				Str("endpoint", endpoint).
				Dur("ttl", entry.TTL()).
				Msg("Cached response")
		}
	}

	return resp, nil
}

// send performs exactly one instrumented HTTP attempt. The batch orchestrator
// uses it directly so job submissions are never retried or cached.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	endpoint := req.URL.Path
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing Geoapify request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error repeats the request URL, which carries the key.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = fmt.Errorf("%s %s: %w", uerr.Op, endpoint, uerr.Err)
		}
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, err
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	if errClass := classifyStatus(resp.StatusCode); errClass != "" {
		errorsTotal.WithLabelValues(string(errClass)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Geoapify request error")
	}

	return resp, nil
}

// ensureAPIKey adds the apiKey query parameter unless present.
func (c *Client) ensureAPIKey(req *http.Request) {
	q := req.URL.Query()
	if q.Get("apiKey") != "" {
		return
	}
	q.Set("apiKey", c.config.APIKey)
	req.URL.RawQuery = q.Encode()
}

// APIURL returns the full URL of an API route including the key. A positive
// version replaces the route's version segment, e.g. /v2/places → /v3/places.
func (c *Client) APIURL(api string, version int) string {
	if version > 0 && versionPrefix.MatchString(api) {
		api = versionPrefix.ReplaceAllString(api, fmt.Sprintf("/v%d/", version))
	}
	q := url.Values{"apiKey": {c.config.APIKey}}
	return c.config.BaseURL + api + "?" + q.Encode()
}

// Get performs a GET on an API route with the given query.
func (c *Client) Get(ctx context.Context, api string, query url.Values) (*http.Response, error) {
	u := c.config.BaseURL + api
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.Do(req)
}

// getJSON performs a GET and decodes a 200 response into out. Any other
// status becomes an *APIError.
func (c *Client) getJSON(ctx context.Context, api string, query url.Values, out any) error {
	resp, err := c.Get(ctx, api, query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: classifyStatus(resp.StatusCode),
			Message:    readMessage(resp),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", api, err)
	}
	return nil
}

// readMessage extracts the "message" of a Geoapify error body, falling back
// to the HTTP status text.
func readMessage(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(body) == 0 {
		return resp.Status
	}
	var e struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	return resp.Status
}

// Batch returns the batch orchestrator sharing this client's transport.
func (c *Client) Batch() *batch.Orchestrator {
	return c.batch
}

// Close releases resources held by the client.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetCache returns the cache manager, nil when caching is disabled.
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}

package batch

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/huels-originals/geobatch/pkg/logging"
	"github.com/huels-originals/geobatch/pkg/ratelimit"
)

// Geoapify routes that accept batch jobs.
const (
	APIGeocode        = "/v1/geocode/search"
	APIReverseGeocode = "/v1/geocode/reverse"
	APIPlaceDetails   = "/v2/place-details"
)

const (
	// DefaultBaseURL is the Geoapify API root.
	DefaultBaseURL = "https://api.geoapify.com"

	// DefaultMaxConcurrency is the number of jobs polled in parallel.
	DefaultMaxConcurrency = 10

	// batchPath is the job creation endpoint.
	batchPath = "/v1/batch"
)

// Doer executes a single HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds orchestrator configuration.
type Config struct {
	// BaseURL is the Geoapify API root (default: DefaultBaseURL).
	BaseURL string

	// APIKey authenticates job creation and polling (required).
	APIKey string

	// HTTPClient performs requests (default: http.Client with 30s timeout).
	// Requests are sent exactly once; no retries.
	HTTPClient Doer

	// MaxConcurrency caps the number of jobs polled at once (default: 10).
	MaxConcurrency int

	// SubmitDelay spaces job creation requests (default: 100ms).
	// Negative disables the delay.
	SubmitDelay time.Duration

	// PollInterval overrides the size-derived poll interval when > 0.
	PollInterval time.Duration

	// Backoff derives the poll interval from the batch size.
	Backoff BackoffPolicy

	// MaxPollAttempts bounds polls per job; 0 polls until the context ends.
	MaxPollAttempts int

	// Logger receives submission and progress events
	// (default: global logger with component=batch).
	Logger *zerolog.Logger
}

// DefaultConfig returns the default configuration for apiKey.
func DefaultConfig(apiKey string) Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		APIKey:         apiKey,
		MaxConcurrency: DefaultMaxConcurrency,
		SubmitDelay:    ratelimit.DefaultDelay,
		Backoff:        DefaultBackoffPolicy(),
	}
}

// withDefaults validates cfg and fills in zero values.
func (cfg Config) withDefaults() (Config, error) {
	if cfg.APIKey == "" {
		return cfg, invalidArgument("API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return cfg, invalidArgument("base URL must be http(s), got %q", cfg.BaseURL)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.SubmitDelay == 0 {
		cfg.SubmitDelay = ratelimit.DefaultDelay
	}
	if cfg.Logger == nil {
		l := logging.NewLogger("batch")
		cfg.Logger = &l
	}
	if cfg.MaxPollAttempts < 0 {
		return cfg, invalidArgument("max poll attempts must be >= 0, got %d", cfg.MaxPollAttempts)
	}
	return cfg, nil
}

// batchURL returns the job creation URL including the API key.
func (cfg Config) batchURL() string {
	q := url.Values{apiKeyParam: {cfg.APIKey}}
	return fmt.Sprintf("%s%s?%s", cfg.BaseURL, batchPath, q.Encode())
}

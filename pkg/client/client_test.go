package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/twpayne/go-geom"

	"github.com/huels-originals/geobatch/internal/testutil"
	"github.com/huels-originals/geobatch/pkg/batch"
	"github.com/huels-originals/geobatch/pkg/cache"
)

const featureCollectionBody = `{
	"type": "FeatureCollection",
	"features": [{
		"type": "Feature",
		"geometry": {"type": "Point", "coordinates": [13.3888599, 52.5170365]},
		"properties": {"formatted": "Berlin, Germany", "place_id": "51abc"}
	}],
	"query": {"text": "Berlin"}
}`

// setupTestRedis starts an in-memory Redis.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return client
}

func testClientConfig(mock *testutil.MockGeoapify) Config {
	cfg := DefaultConfig("test-key")
	cfg.BaseURL = mock.URL()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	cfg.Batch.SubmitDelay = -1
	cfg.Batch.PollInterval = 5 * time.Millisecond
	nop := zerolog.Nop()
	cfg.Batch.Logger = &nop
	return cfg
}

func newTestClient(t *testing.T, mock *testutil.MockGeoapify, redisClient *redis.Client) *Client {
	t.Helper()

	cfg := testClientConfig(mock)
	cfg.Redis = redisClient
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// countingHandler answers with the given statuses in order, then 200 + body.
func countingHandler(calls *atomic.Int32, statuses []int, body string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		w.Header().Set("Content-Type", "application/json")
		if n <= len(statuses) {
			w.WriteHeader(statuses[n-1])
			w.Write([]byte(`{"message":"scripted failure"}`))
			return
		}
		w.Write([]byte(body))
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
	}{
		{name: "valid config", config: DefaultConfig("key"), expectError: false},
		{name: "minimal config", config: Config{APIKey: "key"}, expectError: false},
		{name: "missing key", config: Config{}, expectError: true},
		{name: "negative retries", config: Config{APIKey: "key", MaxRetries: -1}, expectError: true},
		{name: "bad base url", config: Config{APIKey: "key", BaseURL: "api.geoapify.com"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config)
			if tt.expectError {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Errorf("Expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if c.Batch() == nil {
				t.Error("Batch orchestrator not initialised")
			}
			if c.GetCache() != nil {
				t.Error("Cache should be disabled without Redis")
			}
		})
	}
}

func TestDo_AddsAPIKeyAndAccept(t *testing.T) {
	mock := testutil.NewMockGeoapify()
	defer mock.Close()
	mock.SetResponse(APIGeocode, testutil.MockResponse{StatusCode: http.StatusOK, Body: featureCollectionBody})

	c := newTestClient(t, mock, nil)
	resp, err := c.Get(context.Background(), APIGeocode, url.Values{"text": {"Berlin"}})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	resp.Body.Close()

	q, _ := url.ParseQuery(mock.GetLastRequestQuery())
	if q.Get("apiKey") != "test-key" || q.Get("text") != "Berlin" {
		t.Errorf("query = %v", q)
	}
	if mock.GetLastRequestHeader().Get("Accept") != "application/json" {
		t.Errorf("Accept = %q", mock.GetLastRequestHeader().Get("Accept"))
	}
}

func TestDo_RetriesServerErrors(t *testing.T) {
	mock := testutil.NewMockGeoapify()
	defer mock.Close()

	var calls atomic.Int32
	mock.SetHandler(APIGeocode, countingHandler(&calls, []int{500, 503}, featureCollectionBody))

	c := newTestClient(t, mock, nil)
	resp, err := c.Get(context.Background(), APIGeocode, url.Values{"text": {"Berlin"}})
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 calls, got %d", calls.Load())
	}
}

func TestDo_RetriesRateLimit(t *testing.T) {
	mock := testutil.NewMockGeoapify()
	defer mock.Close()

	var calls atomic.Int32
	mock.SetHandler(APIGeocode, countingHandler(&calls, []int{http.StatusTooManyRequests}, featureCollectionBody))

	c := newTestClient(t, mock, nil)
	resp, err := c.Get(context.Background(), APIGeocode, url.Values{"text": {"Berlin"}})
	if err != nil {
		t.Fatalf("Expected success after 429, got %v", err)
	}
	resp.Body.Close()

	if calls.Load() != 2 {
		t.Errorf("Expected 2 calls, got %d", calls.Load())
	}
}

func TestDo_ClientErrorReturnedWithoutRetry(t *testing.T) {
	mock := testutil.NewMockGeoapify()
	defer mock.Close()

	var calls atomic.Int32
	mock.SetHandler(APIGeocode, countingHandler(&calls, []int{401, 401, 401}, featureCollectionBody))

	c := newTestClient(t, mock, nil)
	resp, err := c.Get(context.Background(), APIGeocode, url.Values{"text": {"Berlin"}})
	if err != nil {
		t.Fatalf("Do should return client errors as responses, got %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 call, got %d", calls.Load())
	}
}

func TestDo_RetryExhausted(t *testing.T) {
	mock := testutil.NewMockGeoapify()
	defer mock.Close()
	mock.SetResponse(APIGeocode, testutil.MockResponse{StatusCode: http.StatusServiceUnavailable, Body: `{"message":"down"}`})

	c := newTestClient(t, mock, nil)
	_, err := c.Get(context.Background(), APIGeocode, url.Values{"text": {"Berlin"}})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("Expected ErrRetryExhausted, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 503 || apiErr.Message != "down" {
		t.Errorf("Expected 503 APIError with message, got %v", err)
	}
	if got := mock.GetRequestCount(); got != 3 {
		t.Errorf("Expected 3 attempts (MaxRetries=2), got %d", got)
	}
}

func TestDo_CachesSuccessfulGets(t *testing.T) {
	mock := testutil.NewMockGeoapify()
	defer mock.Close()

	var calls atomic.Int32
	mock.SetHandler(APIGeocode, countingHandler(&calls, nil, featureCollectionBody))

	c := newTestClient(t, mock, setupTestRedis(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		resp, err := c.Get(ctx, APIGeocode, url.Values{"text": {"Berlin"}})
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if !strings.Contains(string(body), "Berlin, Germany") {
			t.Errorf("request %d body = %s", i, body)
		}
		if i > 0 && resp.Header.Get("X-Cache") != "HIT" {
			t.Errorf("request %d should be served from cache", i)
		}
	}

	if calls.Load() != 1 {
		t.Errorf("Expected 1 upstream call, got %d", calls.Load())
	}

	key := cache.CacheKey{Endpoint: APIGeocode, QueryParams: url.Values{"text": {"Berlin"}}}
	if _, err := c.GetCache().Get(ctx, key); err != nil {
		t.Errorf("entry should be stored under a key without apiKey: %v", err)
	}
}

func TestDo_DoesNotCacheErrors(t *testing.T) {
	mock := testutil.NewMockGeoapify()
	defer mock.Close()

	var calls atomic.Int32
	mock.SetHandler(APIGeocode, countingHandler(&calls, []int{404, 404}, featureCollectionBody))

	c := newTestClient(t, mock, setupTestRedis(t))
	for i := 0; i < 2; i++ {
		resp, err := c.Get(context.Background(), APIGeocode, url.Values{"text": {"Nowhere"}})
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
	}

	if calls.Load() != 2 {
		t.Errorf("404 responses must not be cached, got %d calls", calls.Load())
	}
}

func TestAPIURL(t *testing.T) {
	c, err := New(Config{APIKey: "k"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		api     string
		version int
		want    string
	}{
		{APIPlaces, 0, "https://api.geoapify.com/v2/places?apiKey=k"},
		{APIPlaces, 3, "https://api.geoapify.com/v3/places?apiKey=k"},
		{APIGeocode, 2, "https://api.geoapify.com/v2/geocode/search?apiKey=k"},
	}
	for _, tt := range tests {
		if got := c.APIURL(tt.api, tt.version); got != tt.want {
			t.Errorf("APIURL(%q, %d) = %q, want %q", tt.api, tt.version, got, tt.want)
		}
	}
}

func TestBatchGeocode_EndToEnd(t *testing.T) {
	mock := testutil.NewMockGeoapify()
	defer mock.Close()
	mock.SetJobScript(0, testutil.JobScript{Pending: 2})

	c := newTestClient(t, mock, nil)
	records, err := c.BatchGeocode(context.Background(), batch.FromText([]string{"Berlin", "Paris", "Rome"}), map[string]string{"lang": "en"}, 2)
	if err != nil {
		t.Fatalf("BatchGeocode error: %v", err)
	}

	simple, err := SimplifyGeocode(records)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Berlin", "Paris", "Rome"}
	for i, w := range want {
		if simple[i]["formatted"] != w {
			t.Errorf("simple[%d].formatted = %v, want %s", i, simple[i]["formatted"], w)
		}
		query, _ := simple[i]["query"].(map[string]any)
		if query["text"] != w {
			t.Errorf("simple[%d].query = %v", i, simple[i]["query"])
		}
	}

	if got := mock.Submissions()[0].Params["lang"]; got != "en" {
		t.Errorf("lang param = %q", got)
	}
}

func TestBatch_SubmissionNotRetried(t *testing.T) {
	mock := testutil.NewMockGeoapify()
	defer mock.Close()
	mock.FailSubmission(0, testutil.SubmitFailure{StatusCode: http.StatusInternalServerError, Body: `{"message":"boom"}`})

	c := newTestClient(t, mock, nil)
	_, err := c.BatchGeocode(context.Background(), batch.FromText([]string{"a", "b"}), nil, 2)

	var jcErr *batch.JobCreationError
	if !errors.As(err, &jcErr) {
		t.Fatalf("Expected *batch.JobCreationError, got %v", err)
	}
	if mock.SubmitCount() != 1 {
		t.Errorf("job creation must not be retried, got %d submissions", mock.SubmitCount())
	}
}

func TestBatchReverseGeocode(t *testing.T) {
	mock := testutil.NewMockGeoapify()
	defer mock.Close()

	c := newTestClient(t, mock, nil)
	points := []*geom.Point{
		geom.NewPointFlat(geom.XY, []float64{13.4, 52.5}),
		geom.NewPointFlat(geom.XY, []float64{2.35, 48.85}),
	}

	records, err := c.BatchReverseGeocode(context.Background(), points, nil, 1000)
	if err != nil {
		t.Fatalf("BatchReverseGeocode error: %v", err)
	}
	simple, err := SimplifyReverseGeocode(records)
	if err != nil {
		t.Fatal(err)
	}
	if simple[1]["formatted"] != "2.35,48.85" {
		t.Errorf("simple[1] = %v", simple[1])
	}

	sub := mock.Submissions()[0]
	if sub.API != batch.APIReverseGeocode || sub.Inputs[0].Params["lon"] != 13.4 {
		t.Errorf("submission = %+v", sub)
	}
}

func TestBatchPlaceDetails(t *testing.T) {
	mock := testutil.NewMockGeoapify()
	defer mock.Close()

	c := newTestClient(t, mock, nil)

	_, err := c.BatchPlaceDetails(context.Background(), PlaceDetailsBatch{}, 10)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("no inputs: expected ErrInvalidArgument, got %v", err)
	}
	_, err = c.BatchPlaceDetails(context.Background(), PlaceDetailsBatch{
		IDs:    []string{"a"},
		Points: []*geom.Point{geom.NewPointFlat(geom.XY, []float64{1, 2})},
	}, 10)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("both inputs: expected ErrInvalidArgument, got %v", err)
	}

	records, err := c.BatchPlaceDetails(context.Background(), PlaceDetailsBatch{
		IDs:      []string{"51a", "51b", "51c"},
		Features: []string{"details", "building"},
		Lang:     "de",
	}, 2)
	if err != nil {
		t.Fatalf("BatchPlaceDetails error: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("expected 3 records, got %d", len(records))
	}

	sub := mock.Submissions()[0]
	if sub.API != batch.APIPlaceDetails {
		t.Errorf("api = %q", sub.API)
	}
	if sub.Params["features"] != "details,building" || sub.Params["lang"] != "de" {
		t.Errorf("params = %v", sub.Params)
	}
	if sub.Inputs[1].Params["id"] != "51b" {
		t.Errorf("inputs = %+v", sub.Inputs)
	}
}

func TestSimplify_EmptyResults(t *testing.T) {
	records := []json.RawMessage{json.RawMessage(`{"result":{"results":[],"query":{"text":"nowhere"}}}`)}

	geo, err := SimplifyGeocode(records)
	if err != nil {
		t.Fatal(err)
	}
	if len(geo[0]) != 1 || geo[0]["query"] == nil {
		t.Errorf("SimplifyGeocode = %v", geo[0])
	}

	rev, err := SimplifyReverseGeocode(records)
	if err != nil {
		t.Fatal(err)
	}
	if len(rev[0]) != 0 {
		t.Errorf("SimplifyReverseGeocode = %v", rev[0])
	}

	if _, err := SimplifyGeocode([]json.RawMessage{json.RawMessage(`[]`)}); err == nil {
		t.Error("expected error for a non-object record")
	}
}

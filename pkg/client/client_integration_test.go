//go:build integration

package client

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/huels-originals/geobatch/internal/testutil"
	"github.com/huels-originals/geobatch/pkg/batch"
	"github.com/huels-originals/geobatch/pkg/cache"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestIntegration_CachedGeocodeFlow(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockGeoapify()
	defer mock.Close()

	var upstream atomic.Int32
	mock.SetHandler(APIGeocode, func(w http.ResponseWriter, r *http.Request) {
		upstream.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(featureCollectionBody))
	})

	c := newTestClient(t, mock, redisClient)
	ctx := context.Background()

	// Phase 1: miss, stored in Redis
	fc, err := c.Geocode(ctx, "Berlin", nil)
	if err != nil {
		t.Fatalf("first Geocode failed: %v", err)
	}
	if len(fc.Features) != 1 {
		t.Errorf("expected 1 feature, got %d", len(fc.Features))
	}

	// Phase 2: hit
	if _, err := c.Geocode(ctx, "Berlin", nil); err != nil {
		t.Fatalf("second Geocode failed: %v", err)
	}
	if upstream.Load() != 1 {
		t.Errorf("expected 1 upstream request, got %d", upstream.Load())
	}

	// Phase 3: a different query misses
	if _, err := c.Geocode(ctx, "Paris", nil); err != nil {
		t.Fatalf("third Geocode failed: %v", err)
	}
	if upstream.Load() != 2 {
		t.Errorf("expected 2 upstream requests, got %d", upstream.Load())
	}

	key := cache.CacheKey{Endpoint: APIGeocode, QueryParams: url.Values{"text": {"Berlin"}}}
	ttl, err := redisClient.TTL(ctx, key.String()).Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > cache.DefaultTTL {
		t.Errorf("unexpected TTL %v", ttl)
	}
}

func TestIntegration_CacheExpiration(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockGeoapify()
	defer mock.Close()

	var upstream atomic.Int32
	mock.SetHandler(APIGeocode, func(w http.ResponseWriter, r *http.Request) {
		upstream.Add(1)
		w.Write([]byte(featureCollectionBody))
	})

	cfg := testClientConfig(mock)
	cfg.Redis = redisClient
	cfg.CacheTTL = time.Second
	c, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx := context.Background()
	get := func() {
		resp, err := c.Get(ctx, APIGeocode, url.Values{"text": {"Rome"}})
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}

	get()
	get()
	if upstream.Load() != 1 {
		t.Fatalf("expected cached second request, got %d upstream calls", upstream.Load())
	}

	time.Sleep(1500 * time.Millisecond)
	get()
	if upstream.Load() != 2 {
		t.Errorf("expected refetch after TTL, got %d upstream calls", upstream.Load())
	}
}

func TestIntegration_BatchBypassesCache(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockGeoapify()
	defer mock.Close()

	c := newTestClient(t, mock, redisClient)
	ctx := context.Background()

	inputs := batch.FromText([]string{"Berlin", "Paris", "Rome", "Madrid"})
	for i := 0; i < 2; i++ {
		records, err := c.BatchGeocode(ctx, inputs, nil, 2)
		if err != nil {
			t.Fatalf("run %d: BatchGeocode failed: %v", i, err)
		}
		if len(records) != 4 {
			t.Errorf("run %d: expected 4 records, got %d", i, len(records))
		}
	}

	if mock.SubmitCount() != 4 {
		t.Errorf("expected 4 job submissions over two runs, got %d", mock.SubmitCount())
	}
	keys, err := redisClient.Keys(ctx, "geoapify:*").Result()
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 0 {
		t.Errorf("batch traffic must not be cached, found keys %v", keys)
	}
}

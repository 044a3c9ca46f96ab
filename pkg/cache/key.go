package cache

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// keyPrefix namespaces cache keys in Redis.
const keyPrefix = "geoapify"

// excludedParams are query parameters that never become part of a key.
var excludedParams = map[string]bool{"apiKey": true}

// CacheKey identifies a cached Geoapify response.
type CacheKey struct {
	// Endpoint is the API path (e.g., "/v1/geocode/search")
	Endpoint string

	// QueryParams are the request's query parameters
	QueryParams url.Values
}

// KeyFromRequest builds the cache key of a request.
func KeyFromRequest(req *http.Request) CacheKey {
	return CacheKey{
		Endpoint:    req.URL.Path,
		QueryParams: req.URL.Query(),
	}
}

// String generates a deterministic cache key string.
// Format: geoapify:endpoint:param1=val1:param2=val2
//
// Example:
//
//	geoapify:v1/geocode/search:format=geojson:text=Berlin
func (k CacheKey) String() string {
	parts := []string{keyPrefix}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			if excludedParams[key] {
				continue
			}
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			values := append([]string(nil), k.QueryParams[key]...)
			sort.Strings(values)
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(values, ",")))
		}
	}

	return strings.Join(parts, ":")
}

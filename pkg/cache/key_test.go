package cache

import (
	"net/http"
	"net/url"
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "simple endpoint no params",
			key:  CacheKey{Endpoint: "/v1/isoline"},
			want: "geoapify:v1/isoline",
		},
		{
			name: "query params sorted",
			key: CacheKey{
				Endpoint: "/v1/geocode/search",
				QueryParams: url.Values{
					"text":   []string{"Berlin"},
					"format": []string{"geojson"},
				},
			},
			want: "geoapify:v1/geocode/search:format=geojson:text=Berlin",
		},
		{
			name: "api key excluded",
			key: CacheKey{
				Endpoint: "/v2/place-details",
				QueryParams: url.Values{
					"id":     []string{"51abc"},
					"apiKey": []string{"secret"},
				},
			},
			want: "geoapify:v2/place-details:id=51abc",
		},
		{
			name: "multi-value params sorted",
			key: CacheKey{
				Endpoint:    "/v2/places",
				QueryParams: url.Values{"categories": []string{"catering", "accommodation"}},
			},
			want: "geoapify:v2/places:categories=accommodation,catering",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("CacheKey.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKeyFromRequest_IgnoresAPIKey(t *testing.T) {
	a, _ := http.NewRequest(http.MethodGet, "https://api.geoapify.com/v1/geocode/search?text=Rome&apiKey=one", nil)
	b, _ := http.NewRequest(http.MethodGet, "https://api.geoapify.com/v1/geocode/search?apiKey=two&text=Rome", nil)

	if KeyFromRequest(a).String() != KeyFromRequest(b).String() {
		t.Errorf("keys differ: %s vs %s", KeyFromRequest(a), KeyFromRequest(b))
	}
}

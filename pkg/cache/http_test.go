package cache

import (
	"bytes"
	"io"
	"net/http"
	"testing"
	"time"
)

func TestResponseToEntry(t *testing.T) {
	tests := []struct {
		name    string
		resp    *http.Response
		ttl     time.Duration
		wantTTL time.Duration
		wantErr bool
	}{
		{
			name: "configured ttl",
			resp: &http.Response{
				StatusCode: 200,
				Header:     http.Header{"Content-Type": []string{"application/json"}},
				Body:       io.NopCloser(bytes.NewReader([]byte(`{"features": []}`))),
			},
			ttl:     time.Hour,
			wantTTL: time.Hour,
		},
		{
			name: "default ttl",
			resp: &http.Response{
				StatusCode: 200,
				Header:     http.Header{},
				Body:       io.NopCloser(bytes.NewReader([]byte(`{}`))),
			},
			wantTTL: DefaultTTL,
		},
		{
			name:    "nil response",
			resp:    nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := ResponseToEntry(tt.resp, tt.ttl)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResponseToEntry() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			body, _ := io.ReadAll(tt.resp.Body)
			if !bytes.Equal(body, entry.Data) {
				t.Errorf("Response body was not restored: %q", body)
			}
			if entry.StatusCode != tt.resp.StatusCode {
				t.Errorf("StatusCode = %v, want %v", entry.StatusCode, tt.resp.StatusCode)
			}
			ttl := entry.Expires.Sub(entry.CachedAt)
			if ttl != tt.wantTTL {
				t.Errorf("TTL = %v, want %v", ttl, tt.wantTTL)
			}
		})
	}
}

func TestCacheable(t *testing.T) {
	tests := []struct {
		name string
		resp *http.Response
		want bool
	}{
		{name: "ok", resp: &http.Response{StatusCode: 200, Header: http.Header{}}, want: true},
		{name: "no-store", resp: &http.Response{StatusCode: 200, Header: http.Header{"Cache-Control": []string{"No-Store"}}}, want: false},
		{name: "not found", resp: &http.Response{StatusCode: 404, Header: http.Header{}}, want: false},
		{name: "nil", resp: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cacheable(tt.resp); got != tt.want {
				t.Errorf("Cacheable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntryToResponse(t *testing.T) {
	entry := &CacheEntry{
		Data:       []byte(`{"ok":true}`),
		StatusCode: 200,
		Headers:    http.Header{"Content-Type": []string{"application/json"}},
	}

	resp := EntryToResponse(entry, nil)
	if resp.StatusCode != 200 || resp.Header.Get("X-Cache") != "HIT" {
		t.Errorf("unexpected response: %d %v", resp.StatusCode, resp.Header)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %s", body)
	}
	if entry.Headers.Get("X-Cache") != "" {
		t.Error("entry headers must not be modified")
	}
}

func TestCacheEntry_TTL(t *testing.T) {
	fresh := &CacheEntry{Expires: time.Now().Add(time.Minute)}
	if fresh.IsExpired() || fresh.TTL() <= 0 {
		t.Errorf("fresh entry reported expired (ttl %v)", fresh.TTL())
	}

	stale := &CacheEntry{Expires: time.Now().Add(-time.Minute)}
	if !stale.IsExpired() || stale.TTL() != 0 {
		t.Errorf("stale entry: expired=%v ttl=%v", stale.IsExpired(), stale.TTL())
	}
}

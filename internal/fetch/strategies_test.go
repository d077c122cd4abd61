package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/price-tracker/internal/ratelimit"
)

func noDelay() ratelimit.RateLimiter {
	return ratelimit.NewSimpleRateLimiter(0, 0)
}

func TestDirectStrategyFetches(t *testing.T) {
	body := strings.Repeat("<html>product</html>", 100)
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	s := NewDirectStrategy(DirectOptions{
		Timeout:      5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
	}, noDelay(), slog.Default())

	doc, err := s.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, 200, doc.StatusCode)
	assert.Equal(t, body, doc.Body)
	assert.Equal(t, "direct", doc.Strategy)
	assert.Contains(t, gotUA, "Mozilla/5.0")
}

func TestDirectStrategyRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "<html>finally</html>")
	}))
	defer server.Close()

	s := NewDirectStrategy(DirectOptions{
		Timeout:      5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
	}, noDelay(), slog.Default())

	doc, err := s.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 200, doc.StatusCode)
}

func TestDirectStrategyExhaustsRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	s := NewDirectStrategy(DirectOptions{
		Timeout:      5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
	}, noDelay(), slog.Default())

	_, err := s.Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStrategyExhausted)
	assert.Equal(t, 3, attempts)
}

func TestDirectStrategyRotatesUserAgents(t *testing.T) {
	seen := make(map[string]struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen[r.Header.Get("User-Agent")] = struct{}{}
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	s := NewDirectStrategy(DirectOptions{
		Timeout:      5 * time.Second,
		MaxRetries:   1,
		RetryBackoff: time.Millisecond,
		UserAgents:   []string{"agent-a", "agent-b"},
	}, noDelay(), slog.Default())

	for i := 0; i < 4; i++ {
		_, err := s.Fetch(context.Background(), server.URL)
		require.NoError(t, err)
	}

	assert.Len(t, seen, 2)
}

func TestRelayStrategyUnwrapsEnvelope(t *testing.T) {
	page := strings.Repeat("<html>relayed product page</html>", 50)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("url"))
		json.NewEncoder(w).Encode(map[string]string{"contents": page})
	}))
	defer server.Close()

	s := NewRelayStrategy(RelayOptions{
		Timeout:      5 * time.Second,
		RetryBackoff: time.Millisecond,
		Endpoints:    []RelayEndpoint{{Template: server.URL + "/get?url=%s", Envelope: "contents"}},
	}, noDelay(), slog.Default())

	doc, err := s.Fetch(context.Background(), "https://amazon.in/dp/B0BQHS5P9R")
	require.NoError(t, err)
	assert.Equal(t, page, doc.Body)
	assert.Equal(t, "relay", doc.Strategy)
}

func TestRelayStrategyFallsThroughEndpoints(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()

	page := "<html>raw relayed page</html>"
	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer working.Close()

	s := NewRelayStrategy(RelayOptions{
		Timeout:      5 * time.Second,
		RetryBackoff: time.Millisecond,
		Endpoints: []RelayEndpoint{
			{Template: broken.URL + "/get?url=%s", Envelope: "contents"},
			{Template: working.URL + "/fetch/%s"},
		},
	}, noDelay(), slog.Default())

	doc, err := s.Fetch(context.Background(), "https://amazon.in/dp/B0BQHS5P9R")
	require.NoError(t, err)
	assert.Equal(t, page, doc.Body)
}

func TestRelayStrategyExhaustsEndpoints(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	s := NewRelayStrategy(RelayOptions{
		Timeout:      5 * time.Second,
		RetryBackoff: time.Millisecond,
		Endpoints:    []RelayEndpoint{{Template: server.URL + "/get?url=%s", Envelope: "contents"}},
	}, noDelay(), slog.Default())

	_, err := s.Fetch(context.Background(), "https://amazon.in/dp/B0BQHS5P9R")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStrategyExhausted)
}

func TestDocumentSanity(t *testing.T) {
	tests := []struct {
		name string
		doc  RawDocument
		sane bool
	}{
		{"small block page", RawDocument{Body: "blocked", StatusCode: 200}, false},
		{"non-200 status", RawDocument{Body: strings.Repeat("x", 500), StatusCode: 503}, false},
		{"real page", RawDocument{Body: strings.Repeat("x", 500), StatusCode: 200}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.sane, tt.doc.Sane(100))
		})
	}
}

package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/maltedev/price-tracker/internal/ratelimit"
)

// RelayEndpoint is one third-party content-relay service. Template must
// contain a single %s placeholder for the URL-encoded target. Services that
// wrap the page in a JSON envelope set Envelope to the field holding the
// HTML ("contents" for allorigins-style relays).
type RelayEndpoint struct {
	Template string
	Envelope string
}

func DefaultRelayEndpoints() []RelayEndpoint {
	return []RelayEndpoint{
		{Template: "https://api.allorigins.win/get?url=%s", Envelope: "contents"},
		{Template: "https://thingproxy.freeboard.io/fetch/%s"},
	}
}

// RelayOptions configures the relay strategy.
type RelayOptions struct {
	Timeout      time.Duration
	RetryBackoff time.Duration
	Endpoints    []RelayEndpoint
}

func DefaultRelayOptions() RelayOptions {
	return RelayOptions{
		Timeout:      15 * time.Second,
		RetryBackoff: time.Second,
		Endpoints:    DefaultRelayEndpoints(),
	}
}

// RelayStrategy fetches the page through a content-relay service, giving us
// a fresh network origin when the target has started blocking ours. Each
// configured endpoint counts as one retry.
type RelayStrategy struct {
	client  *resty.Client
	limiter ratelimit.RateLimiter
	logger  *slog.Logger
	opts    RelayOptions
}

func NewRelayStrategy(opts RelayOptions, limiter ratelimit.RateLimiter, logger *slog.Logger) *RelayStrategy {
	if len(opts.Endpoints) == 0 {
		opts.Endpoints = DefaultRelayEndpoints()
	}

	client := resty.New()
	client.SetTimeout(opts.Timeout)
	client.SetHeader("Accept", "application/json, text/html")
	client.SetHeader("Accept-Language", "en-US,en;q=0.9")
	client.SetHeader("User-Agent", DefaultUserAgents[0])

	return &RelayStrategy{
		client:  client,
		limiter: limiter,
		logger:  logger.With("component", "fetch_relay"),
		opts:    opts,
	}
}

func (s *RelayStrategy) Name() string { return "relay" }

func (s *RelayStrategy) Fetch(ctx context.Context, target string) (*RawDocument, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var lastErr error
	for i, endpoint := range s.opts.Endpoints {
		if i > 0 {
			if err := sleepCtx(ctx, s.opts.RetryBackoff); err != nil {
				return nil, err
			}
		}

		relayURL := fmt.Sprintf(endpoint.Template, url.QueryEscape(target))
		if !strings.Contains(endpoint.Template, "?") {
			// Path-style relays take the raw URL, not an escaped query value.
			relayURL = fmt.Sprintf(endpoint.Template, target)
		}

		resp, err := s.client.R().SetContext(ctx).Get(relayURL)
		if err != nil {
			lastErr = err
			s.logger.Warn("relay fetch failed", "endpoint", endpoint.Template, "error", err)
			continue
		}
		if resp.StatusCode() != 200 {
			lastErr = fmt.Errorf("relay returned status %d", resp.StatusCode())
			continue
		}

		body := string(resp.Body())
		if endpoint.Envelope != "" {
			unwrapped, err := unwrapEnvelope(body, endpoint.Envelope)
			if err != nil {
				lastErr = err
				continue
			}
			body = unwrapped
		}

		doc := &RawDocument{
			Body:       body,
			StatusCode: 200,
			Strategy:   s.Name(),
			FetchedAt:  time.Now().UTC(),
		}

		s.logger.Debug("relay fetch succeeded", "endpoint", endpoint.Template, "bytes", doc.Bytes())
		return doc, nil
	}

	return nil, fmt.Errorf("%w: relay after %d endpoints: %v", ErrStrategyExhausted, len(s.opts.Endpoints), lastErr)
}

func unwrapEnvelope(body, field string) (string, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return "", fmt.Errorf("relay envelope is not JSON: %w", err)
	}

	raw, ok := envelope[field]
	if !ok {
		return "", fmt.Errorf("relay envelope missing %q field", field)
	}

	var contents string
	if err := json.Unmarshal(raw, &contents); err != nil {
		return "", fmt.Errorf("relay envelope %q is not a string: %w", field, err)
	}
	return contents, nil
}

package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/maltedev/price-tracker/internal/ratelimit"
)

// browserHeaders make our requests look like an ordinary navigation rather
// than an API client. Amazon serves interstitials to anything that doesn't.
var browserHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9,hi;q=0.8",
	"DNT":                       "1",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Cache-Control":             "max-age=0",
}

// DefaultUserAgents is the rotation pool for the HTTP strategies.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:109.0) Gecko/20100101 Firefox/121.0",
}

// DirectOptions configures the direct-request strategy.
type DirectOptions struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	UserAgents   []string
}

func DefaultDirectOptions() DirectOptions {
	return DirectOptions{
		Timeout:      45 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 2 * time.Second,
		UserAgents:   DefaultUserAgents,
	}
}

// DirectStrategy fetches the target origin straight over HTTPS. Cheapest and
// first in the chain; also the first thing the origin blocks.
type DirectStrategy struct {
	client  *resty.Client
	limiter ratelimit.RateLimiter
	logger  *slog.Logger
	opts    DirectOptions
	uaIndex atomic.Uint64
}

func NewDirectStrategy(opts DirectOptions, limiter ratelimit.RateLimiter, logger *slog.Logger) *DirectStrategy {
	if len(opts.UserAgents) == 0 {
		opts.UserAgents = DefaultUserAgents
	}

	client := resty.New()
	client.SetTimeout(opts.Timeout)
	client.SetHeaders(browserHeaders)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))

	return &DirectStrategy{
		client:  client,
		limiter: limiter,
		logger:  logger.With("component", "fetch_direct"),
		opts:    opts,
	}
}

func (s *DirectStrategy) Name() string { return "direct" }

func (s *DirectStrategy) Fetch(ctx context.Context, url string) (*RawDocument, error) {
	// Courtesy delay before the first attempt keeps burst rate down.
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxRetries; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, backoffDelay(s.opts.RetryBackoff, attempt-1)); err != nil {
				return nil, err
			}
		}

		resp, err := s.client.R().
			SetContext(ctx).
			SetHeader("User-Agent", s.nextUserAgent()).
			Get(url)
		if err != nil {
			lastErr = err
			s.logger.Warn("direct fetch attempt failed", "url", url, "attempt", attempt, "error", err)
			continue
		}

		doc := &RawDocument{
			Body:       string(resp.Body()),
			StatusCode: resp.StatusCode(),
			Strategy:   s.Name(),
			FetchedAt:  time.Now().UTC(),
		}

		s.logger.Debug("direct fetch attempt",
			"url", url, "attempt", attempt, "status", doc.StatusCode, "bytes", doc.Bytes())

		if doc.StatusCode == 200 {
			return doc, nil
		}
		lastErr = fmt.Errorf("unexpected status %d", doc.StatusCode)
	}

	return nil, fmt.Errorf("%w: direct after %d attempts: %v", ErrStrategyExhausted, s.opts.MaxRetries, lastErr)
}

func (s *DirectStrategy) nextUserAgent() string {
	i := s.uaIndex.Add(1)
	return s.opts.UserAgents[int(i)%len(s.opts.UserAgents)]
}

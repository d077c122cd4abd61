package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/price-tracker/internal/browser"
	"github.com/maltedev/price-tracker/internal/ratelimit"
)

// RenderedOptions configures the rendered-document strategy.
type RenderedOptions struct {
	NavRetries int
}

func DefaultRenderedOptions() RenderedOptions {
	return RenderedOptions{NavRetries: 3}
}

// RenderedStrategy loads the page in headless Chromium and reads the DOM it
// produced. It defeats layouts that only exist after script execution, at
// the cost of a full browser session per fetch, so it sits last in the
// chain. The rendered document is returned in memory, never through a file.
type RenderedStrategy struct {
	browser *browser.Browser
	limiter ratelimit.RateLimiter
	logger  *slog.Logger
	opts    RenderedOptions
}

func NewRenderedStrategy(b *browser.Browser, opts RenderedOptions, limiter ratelimit.RateLimiter, logger *slog.Logger) *RenderedStrategy {
	return &RenderedStrategy{
		browser: b,
		limiter: limiter,
		logger:  logger.With("component", "fetch_rendered"),
		opts:    opts,
	}
}

func (s *RenderedStrategy) Name() string { return "rendered" }

func (s *RenderedStrategy) Fetch(ctx context.Context, url string) (*RawDocument, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	type result struct {
		content string
		err     error
	}

	// Playwright calls don't take a context, so run the navigation in a
	// goroutine and let the context abandon it.
	done := make(chan result, 1)
	go func() {
		content, err := s.browser.FetchDocument(url, s.opts.NavRetries)
		done <- result{content: content, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("%w: rendered: %v", ErrStrategyExhausted, r.err)
		}
		return &RawDocument{
			Body:       r.content,
			StatusCode: 200,
			Strategy:   s.Name(),
			FetchedAt:  time.Now().UTC(),
		}, nil
	}
}

package fetch

import (
	"context"
	"errors"
	"net/http"
	"time"
)

var (
	// ErrStrategyExhausted means one strategy used up all its retries.
	ErrStrategyExhausted = errors.New("strategy exhausted its retries")
	// ErrChainExhausted means every strategy in the chain failed.
	ErrChainExhausted = errors.New("all retrieval strategies exhausted")
)

// RawDocument is one fetched page body plus retrieval metadata. It is
// ephemeral: created per attempt, handed to extraction, then discarded.
type RawDocument struct {
	Body       string
	StatusCode int
	Strategy   string
	FetchedAt  time.Time
}

// Bytes is the body length, used by the minimum-size sanity gate.
func (d *RawDocument) Bytes() int {
	return len(d.Body)
}

// Sane reports whether the document passes the early sanity check: a 200
// response whose body is large enough to be a real product page rather than
// a block or interstitial stub.
func (d *RawDocument) Sane(minBytes int) bool {
	return d.StatusCode == http.StatusOK && d.Bytes() >= minBytes
}

// Strategy is one way of obtaining a document for a URL. Implementations own
// their retry/backoff/timeout policy; Fetch returns ErrStrategyExhausted
// (wrapped) once that policy is spent.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, url string) (*RawDocument, error)
}

// sleepCtx waits for d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoffDelay is the exponential backoff before retry attempt n (1-based).
func backoffDelay(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

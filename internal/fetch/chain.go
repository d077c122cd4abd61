package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ChainOptions configures chain-level behavior shared by all strategies.
type ChainOptions struct {
	// MinBodyBytes is the sanity floor: smaller bodies are treated as block
	// or interstitial pages and trigger escalation.
	MinBodyBytes int
	// OverallTimeout bounds one whole Retrieve call across every strategy,
	// so escalation through increasingly expensive strategies can't run
	// unbounded.
	OverallTimeout time.Duration
}

func DefaultChainOptions() ChainOptions {
	return ChainOptions{
		MinBodyBytes:   10_000,
		OverallTimeout: 3 * time.Minute,
	}
}

// ExhaustedError reports that every strategy failed. Rejected counts sane
// documents that the caller's accept gate turned down; callers use it to
// distinguish "nothing retrieved" from "retrieved but unusable".
type ExhaustedError struct {
	Rejected int
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	if e.Rejected > 0 {
		return fmt.Sprintf("all retrieval strategies exhausted (%d documents rejected): %v", e.Rejected, e.LastErr)
	}
	return fmt.Sprintf("all retrieval strategies exhausted: %v", e.LastErr)
}

func (e *ExhaustedError) Unwrap() error { return ErrChainExhausted }

// Chain tries an ordered list of strategies until one produces a document
// the caller accepts. Order is priority order: strategies are never skipped
// or reordered, and escalation happens only when the current strategy is
// exhausted, its document fails the sanity gate, or the accept gate rejects
// the document.
type Chain struct {
	strategies []Strategy
	opts       ChainOptions
	logger     *slog.Logger
}

func NewChain(strategies []Strategy, opts ChainOptions, logger *slog.Logger) *Chain {
	return &Chain{
		strategies: strategies,
		opts:       opts,
		logger:     logger.With("component", "fetch_chain"),
	}
}

// Retrieve walks the strategies in declared order. Each sane document is
// offered to accept exactly once; a rejected document triggers escalation,
// never a re-fetch under the same strategy for the same attempt. A nil
// accept takes the first sane document.
func (c *Chain) Retrieve(ctx context.Context, url string, accept func(*RawDocument) bool) (*RawDocument, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.OverallTimeout)
	defer cancel()

	var lastErr error
	rejected := 0

	for _, strategy := range c.strategies {
		doc, err := strategy.Fetch(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &ExhaustedError{Rejected: rejected, LastErr: ctx.Err()}
			}
			c.logger.Info("strategy failed, escalating", "strategy", strategy.Name(), "error", err)
			lastErr = err
			continue
		}

		if !doc.Sane(c.opts.MinBodyBytes) {
			c.logger.Info("document failed sanity check, escalating",
				"strategy", strategy.Name(), "status", doc.StatusCode, "bytes", doc.Bytes())
			lastErr = fmt.Errorf("document from %s failed sanity check (status %d, %d bytes)",
				strategy.Name(), doc.StatusCode, doc.Bytes())
			continue
		}

		if accept == nil || accept(doc) {
			return doc, nil
		}

		rejected++
		c.logger.Info("document rejected by caller, escalating", "strategy", strategy.Name())
		lastErr = fmt.Errorf("document from %s rejected", strategy.Name())
	}

	return nil, &ExhaustedError{Rejected: rejected, LastErr: lastErr}
}

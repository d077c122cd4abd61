package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/price-tracker/internal/fetch"
	"github.com/maltedev/price-tracker/internal/models"
	"github.com/maltedev/price-tracker/internal/parser"
)

// FailureKind classifies why a scrape produced no snapshot.
type FailureKind string

const (
	// FailureInvalidIdentifier: the ASIN or marketplace failed validation.
	// No network activity happened.
	FailureInvalidIdentifier FailureKind = "invalid_identifier"
	// FailureNoDocument: every retrieval strategy was exhausted without a
	// single sane document.
	FailureNoDocument FailureKind = "no_document_retrieved"
	// FailureDocumentRejected: at least one sane document was retrieved but
	// none yielded an acceptable snapshot.
	FailureDocumentRejected FailureKind = "document_rejected"
)

// ScrapeFailure is the typed error returned for every unsuccessful scrape.
// A failed scrape never produces a snapshot; callers must not substitute
// placeholder data for the missing result.
type ScrapeFailure struct {
	Kind        FailureKind
	ASIN        string
	Marketplace string
	Err         error
}

func (f *ScrapeFailure) Error() string {
	return fmt.Sprintf("scrape %s/%s failed (%s): %v", f.ASIN, f.Marketplace, f.Kind, f.Err)
}

func (f *ScrapeFailure) Unwrap() error { return f.Err }

// FailureKindOf extracts the failure classification from an error chain,
// or "" if err is not a scrape failure.
func FailureKindOf(err error) FailureKind {
	var f *ScrapeFailure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// Retriever is the document-retrieval chain the scraper escalates through.
type Retriever interface {
	Retrieve(ctx context.Context, url string, accept func(*fetch.RawDocument) bool) (*fetch.RawDocument, error)
}

// Scraper turns a product identifier into a validated snapshot by driving
// the retrieval chain and the extractor.
type Scraper struct {
	chain     Retriever
	extractor *parser.Extractor
	logger    *slog.Logger
}

func New(chain Retriever, extractor *parser.Extractor, logger *slog.Logger) *Scraper {
	return &Scraper{
		chain:     chain,
		extractor: extractor,
		logger:    logger.With("component", "scraper"),
	}
}

// Scrape fetches and extracts the current product state for one ASIN on one
// marketplace. The identifier is validated before any network activity.
// Extraction runs at most once per retrieved document; a document whose
// extraction is unacceptable triggers escalation to the next strategy.
func (s *Scraper) Scrape(ctx context.Context, asin, marketplace string) (*models.ProductSnapshot, error) {
	id, err := models.NewProductIdentifier(asin, marketplace)
	if err != nil {
		return nil, &ScrapeFailure{
			Kind:        FailureInvalidIdentifier,
			ASIN:        asin,
			Marketplace: marketplace,
			Err:         err,
		}
	}

	url := id.ProductURL()
	started := time.Now()
	s.logger.Info("scrape started", "asin", id.ASIN, "marketplace", id.Marketplace, "url", url)

	var snapshot *models.ProductSnapshot
	doc, err := s.chain.Retrieve(ctx, url, func(d *fetch.RawDocument) bool {
		candidate, ok := s.extractor.Extract(d.Body, id)
		if !ok {
			return false
		}
		snapshot = candidate
		return true
	})
	if err != nil {
		kind := FailureNoDocument
		var exhausted *fetch.ExhaustedError
		if errors.As(err, &exhausted) && exhausted.Rejected > 0 {
			kind = FailureDocumentRejected
		}
		s.logger.Error("scrape failed",
			"asin", id.ASIN, "marketplace", id.Marketplace, "kind", kind,
			"duration", time.Since(started), "error", err)
		return nil, &ScrapeFailure{
			Kind:        kind,
			ASIN:        id.ASIN,
			Marketplace: string(id.Marketplace),
			Err:         err,
		}
	}

	snapshot.Strategy = doc.Strategy
	snapshot.ScrapedAt = doc.FetchedAt

	s.logger.Info("scrape succeeded",
		"asin", id.ASIN, "marketplace", id.Marketplace, "strategy", doc.Strategy,
		"price", snapshot.Price, "duration", time.Since(started))
	return snapshot, nil
}

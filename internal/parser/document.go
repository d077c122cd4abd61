package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document wraps one fetched HTML body for rule evaluation. Rules read it but
// never mutate it, so a single Document can be shared across all field rules.
type Document struct {
	html string
	doc  *goquery.Document
}

// NewDocument parses the raw HTML body once for selector-based rules while
// keeping the original text available for regex-based rules.
func NewDocument(html string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return &Document{html: html, doc: doc}, nil
}

// HTML returns the raw document text.
func (d *Document) HTML() string {
	return d.html
}

// Find runs a CSS selector against the parsed document.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

package stores

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/matpris/backend/internal/domain"
	"github.com/matpris/backend/internal/infrastructure/browser"
)

// retryBackoff is the pause between the two navigation attempts.
const retryBackoff = 500 * time.Millisecond

// pageOpener is the slice of the browser session a source needs: navigate to
// a URL and hand back the rendered page.
type pageOpener interface {
	Open(ctx context.Context, url string) (*browser.SearchPage, error)
}

// Source is one retail site's search-by-free-text entry point. Both stores
// share the same extraction machinery and differ only in their URL template,
// payload spec and document selectors.
type Source struct {
	store     domain.Store
	session   pageOpener
	limiter   *rate.Limiter
	searchURL string // fmt template with one %s for the escaped query
	payload   payloadSpec
	document  documentSpec
	logTag    string
}

// Search issues one free-text query against the store and returns extracted
// raw products, at most limit entries.
func (s *Source) Search(ctx context.Context, query string, limit int) ([]domain.RawProduct, error) {
	if limit <= 0 {
		return nil, nil
	}

	// Shared browser session and rate-sensitive upstream: pace queries.
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	target := fmt.Sprintf(s.searchURL, url.QueryEscape(query))

	// One retry on navigation failure before degrading to an empty list.
	var page *browser.SearchPage
	var err error
	for attempt := 1; attempt <= 2; attempt++ {
		page, err = s.session.Open(ctx, target)
		if err == nil {
			break
		}
		log.Printf("%s Navigation failed for %q (attempt %d): %v", s.logTag, query, attempt, err)
		if attempt == 1 {
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, s.store, ctx.Err())
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, s.store, err)
	}
	defer page.Close()

	// Prefer structured extraction from intercepted API responses.
	if payloads, err := page.Responses(); err == nil {
		if products := extractFromPayloads(payloads, s.payload, limit); len(products) > 0 {
			log.Printf("%s %d products for %q from %d intercepted responses", s.logTag, len(products), query, len(payloads))
			return products, nil
		}
	} else {
		log.Printf("%s Response collector failed for %q: %v", s.logTag, query, err)
	}

	// Fall back to the rendered document.
	products, err := s.extractFromDocument(page, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, s.store, err)
	}
	log.Printf("%s %d products for %q from document", s.logTag, len(products), query)
	return products, nil
}

// Store returns the source's store identity.
func (s *Source) Store() domain.Store {
	return s.store
}

// extractFromDocument queries the rendered page with the source's item
// selector and parses each item's combined text blob. Items sharing a
// canonical product link are counted once.
func (s *Source) extractFromDocument(page *browser.SearchPage, limit int) ([]domain.RawProduct, error) {
	elements, err := page.Elements(s.document.itemSelector)
	if err != nil {
		return nil, fmt.Errorf("querying %q: %w", s.document.itemSelector, err)
	}

	seen := make(map[string]struct{}, len(elements))
	var out []domain.RawProduct
	for _, el := range elements {
		text, err := el.Text()
		if err != nil {
			continue
		}
		title, price, unitPrice, packageSize, ok := parseLabelBlob(text)
		if !ok {
			continue
		}

		var link string
		if anchor, err := el.Element("a"); err == nil {
			if href, err := anchor.Attribute("href"); err == nil && href != nil {
				link = canonicalLink(*href)
			}
		}
		if link != "" {
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
		}

		out = append(out, domain.RawProduct{
			ID:          productIDFromLink(link),
			Title:       title,
			Price:       price,
			UnitPrice:   unitPrice,
			PackageSize: packageSize,
			URL:         link,
		})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// productIDFromLink derives a stable-ish id from the link tail
func productIDFromLink(link string) string {
	if link == "" {
		return ""
	}
	if i := strings.LastIndex(link, "/"); i >= 0 && i < len(link)-1 {
		return link[i+1:]
	}
	return link
}

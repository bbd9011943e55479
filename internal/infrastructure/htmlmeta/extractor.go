// Package htmlmeta extracts product snapshots straight from a product page's
// embedded metadata: OpenGraph/product meta tags, schema.org microdata and
// JSON-LD Product blocks. No external extraction service is involved.
package htmlmeta

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/nombiemugi/rastreador-de-precios/internal/domain"
	logx "github.com/nombiemugi/rastreador-de-precios/pkg/logger"
	"golang.org/x/time/rate"
)

const maxPageBytes = 5 << 20

// Extractor fetches a page and reads its price metadata
type Extractor struct {
	httpClient  *http.Client
	userAgent   string
	rateLimiter *rate.Limiter
}

// NewExtractor creates a new metadata extractor. perMinute <= 0 disables rate limiting.
func NewExtractor(perMinute, burst int) *Extractor {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if perMinute > 0 {
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst)
	}

	return &Extractor{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		userAgent:   "Mozilla/5.0 (compatible; PriceWatch/1.0)",
		rateLimiter: limiter,
	}
}

// Extract implements domain.Extractor.
func (e *Extractor) Extract(ctx context.Context, productURL string) *domain.ExtractionResult {
	doc, err := e.fetch(ctx, productURL)
	if err != nil {
		logx.Warn().Err(err).Str("url", productURL).Msg("page fetch failed")
		return nil
	}

	result := ParseDocument(doc)
	if result == nil {
		logx.Debug().Str("url", productURL).Msg("no product metadata found")
	}
	return result
}

func (e *Extractor) fetch(ctx context.Context, productURL string) (*goquery.Document, error) {
	if err := e.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, productURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrExtractionFailed, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return doc, nil
}

// ParseDocument reads product metadata from doc. JSON-LD wins over meta tags,
// which win over microdata. It returns nil when neither a name nor a price is
// present.
func ParseDocument(doc *goquery.Document) *domain.ExtractionResult {
	var result domain.ExtractionResult

	if ld := parseJSONLD(doc); ld != nil {
		result = *ld
	}

	fill(&result.ProductName,
		metaContent(doc, `meta[property="og:title"]`),
		metaContent(doc, `meta[name="twitter:title"]`),
		itemprop(doc, "name"),
		cleanTitle(doc.Find("title").First().Text()),
	)
	fill(&result.CurrentPrice,
		metaContent(doc, `meta[property="product:price:amount"]`),
		metaContent(doc, `meta[property="og:price:amount"]`),
		itemprop(doc, "price"),
	)
	fill(&result.CurrencyCode,
		metaContent(doc, `meta[property="product:price:currency"]`),
		metaContent(doc, `meta[property="og:price:currency"]`),
		itemprop(doc, "priceCurrency"),
	)
	fill(&result.ProductImageURL,
		metaContent(doc, `meta[property="og:image"]`),
		metaContent(doc, `meta[name="twitter:image"]`),
		itemprop(doc, "image"),
	)

	if result.ProductName == "" && result.CurrentPrice == "" {
		return nil
	}
	return &result
}

// fill sets *dst to the first non-empty candidate when *dst is empty.
func fill(dst *string, candidates ...string) {
	if *dst != "" {
		return
	}
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			*dst = c
			return
		}
	}
}

func metaContent(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().AttrOr("content", ""))
}

// itemprop reads schema.org microdata, preferring content/src attributes over text.
func itemprop(doc *goquery.Document, name string) string {
	sel := doc.Find(`[itemprop="` + name + `"]`).First()
	if sel.Length() == 0 {
		return ""
	}
	for _, attr := range []string{"content", "src", "href"} {
		if v, ok := sel.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return strings.TrimSpace(sel.Text())
}

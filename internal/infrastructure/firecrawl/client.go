package firecrawl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nombiemugi/rastreador-de-precios/internal/domain"
	logx "github.com/nombiemugi/rastreador-de-precios/pkg/logger"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the hosted Firecrawl API
const DefaultBaseURL = "https://api.firecrawl.dev"

const extractionPrompt = "Extract product info: name as 'productName', price as 'currentPrice', " +
	"currency code as 'currencyCode', and image URL as 'productImageUrl'."

// productSchema is the structured output requested from the scrape endpoint.
var productSchema = map[string]any{
	"type":     "object",
	"required": []string{"productName", "currentPrice"},
	"properties": map[string]any{
		"productName":     map[string]string{"type": "string"},
		"currentPrice":    map[string]string{"type": "string"},
		"currencyCode":    map[string]string{"type": "string"},
		"productImageUrl": map[string]string{"type": "string"},
	},
}

// Client handles communication with the Firecrawl scrape API
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	rateLimiter *rate.Limiter
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit caps outbound scrapes at perMinute with the given burst.
// perMinute <= 0 removes the limit.
func WithRateLimit(perMinute, burst int) Option {
	return func(c *Client) {
		if perMinute <= 0 {
			c.rateLimiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.rateLimiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst)
	}
}

// NewClient creates a new Firecrawl API client
func NewClient(apiKey, baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		// Free plan allows 10 scrapes per minute
		rateLimiter: rate.NewLimiter(rate.Limit(10.0/60.0), 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type scrapeRequest struct {
	URL             string         `json:"url"`
	OnlyMainContent bool           `json:"onlyMainContent"`
	Formats         []scrapeFormat `json:"formats"`
}

type scrapeFormat struct {
	Type   string         `json:"type"`
	Schema map[string]any `json:"schema"`
	Prompt string         `json:"prompt"`
}

type scrapeResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// Extract implements domain.Extractor. It makes exactly one request and
// returns nil on any transport, status or decoding failure.
func (c *Client) Extract(ctx context.Context, productURL string) *domain.ExtractionResult {
	result, err := c.scrape(ctx, productURL)
	if err != nil {
		logx.Warn().Err(err).Str("url", productURL).Msg("firecrawl scrape failed")
		return nil
	}
	return result
}

func (c *Client) scrape(ctx context.Context, productURL string) (*domain.ExtractionResult, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	body, err := json.Marshal(scrapeRequest{
		URL:             productURL,
		OnlyMainContent: true,
		Formats: []scrapeFormat{{
			Type:   "json",
			Schema: productSchema,
			Prompt: extractionPrompt,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := c.doRequest(ctx, c.baseURL+"/v2/scrape", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d, body: %s", domain.ErrExtractionFailed, resp.StatusCode, string(snippet))
	}

	var scraped scrapeResponse
	if err := json.NewDecoder(resp.Body).Decode(&scraped); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return parseData(scraped.Data)
}

// doRequest executes an authenticated HTTP POST request
func (c *Client) doRequest(ctx context.Context, reqURL string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "PriceWatch/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
	}
	return resp, nil
}

// parseData accepts both {"json": {...}} and a bare product object.
func parseData(data json.RawMessage) (*domain.ExtractionResult, error) {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, fmt.Errorf("%w: empty data", domain.ErrExtractionFailed)
	}

	var wrapped struct {
		JSON *domain.ExtractionResult `json:"json"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode data: %w", err)
	}
	if wrapped.JSON != nil {
		return wrapped.JSON, nil
	}

	var bare domain.ExtractionResult
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, fmt.Errorf("failed to decode data: %w", err)
	}
	return &bare, nil
}

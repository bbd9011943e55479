package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/nombiemugi/rastreador-de-precios/internal/domain"
	logx "github.com/nombiemugi/rastreador-de-precios/pkg/logger"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured
const DefaultModel = "gemini-2.5-flash"

const (
	maxPageBytes  = 5 << 20
	maxPromptText = 24000
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// productSchema constrains the model's JSON output.
var productSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"productName":     {Type: genai.TypeString},
		"currentPrice":    {Type: genai.TypeString, Description: "Price exactly as displayed, including symbols"},
		"currencyCode":    {Type: genai.TypeString, Description: "ISO 4217 code"},
		"productImageUrl": {Type: genai.TypeString},
	},
	Required: []string{"productName", "currentPrice"},
}

// Generator returns the raw JSON text produced for prompt.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// Config holds configuration for the Gemini extractor
type Config struct {
	APIKey        string
	BaseURL       string
	Model         string
	RatePerMinute int
	Burst         int
}

// Extractor fetches a page itself and asks Gemini to read the product off
// its visible text.
type Extractor struct {
	httpClient  *http.Client
	generator   Generator
	rateLimiter *rate.Limiter
}

// NewExtractor creates a Gemini-backed extractor
func NewExtractor(ctx context.Context, config Config) (*Extractor, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = DefaultModel
	}

	return newExtractor(&genaiGenerator{client: client, model: model}, config.RatePerMinute, config.Burst), nil
}

func newExtractor(generator Generator, perMinute, burst int) *Extractor {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if perMinute > 0 {
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst)
	}
	return &Extractor{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		generator:   generator,
		rateLimiter: limiter,
	}
}

// Extract implements domain.Extractor.
func (e *Extractor) Extract(ctx context.Context, productURL string) *domain.ExtractionResult {
	text, err := e.pageText(ctx, productURL)
	if err != nil {
		logx.Warn().Err(err).Str("url", productURL).Msg("page fetch failed")
		return nil
	}

	if err := e.rateLimiter.Wait(ctx); err != nil {
		logx.Warn().Err(err).Str("url", productURL).Msg("rate limiter error")
		return nil
	}

	raw, err := e.generator.GenerateJSON(ctx, buildPrompt(productURL, text))
	if err != nil {
		logx.Warn().Err(err).Str("url", productURL).Msg("gemini extraction failed")
		return nil
	}

	result, err := parseResult(raw)
	if err != nil {
		logx.Warn().Err(err).Str("url", productURL).Msg("gemini returned malformed product json")
		return nil
	}
	return result
}

func (e *Extractor) pageText(ctx context.Context, productURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, productURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; PriceWatch/1.0)")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", domain.ErrExtractionFailed, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	return visibleText(doc), nil
}

// visibleText flattens the page to text, keeping og:image since images are
// not visible as text.
func visibleText(doc *goquery.Document) string {
	var b strings.Builder
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		b.WriteString("Title: " + title + "\n")
	}
	if image := doc.Find(`meta[property="og:image"]`).First().AttrOr("content", ""); image != "" {
		b.WriteString("Image: " + image + "\n")
	}

	body := doc.Find("body")
	body.Find("script, style, noscript, svg, iframe").Remove()
	b.WriteString(whitespaceRegex.ReplaceAllString(strings.TrimSpace(body.Text()), " "))

	text := b.String()
	if len(text) > maxPromptText {
		text = text[:maxPromptText]
	}
	return text
}

func buildPrompt(productURL, text string) string {
	return fmt.Sprintf(`Extract the product on this page.
Return productName, currentPrice (as displayed, with currency symbol), currencyCode (ISO 4217, if known) and productImageUrl (absolute URL, if known).

URL: %s

Page:
%s`, productURL, text)
}

// parseResult decodes the model output, tolerating a fenced code block.
func parseResult(raw string) (*domain.ExtractionResult, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty response", domain.ErrExtractionFailed)
	}

	var result domain.ExtractionResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("failed to decode product json: %w", err)
	}
	return &result, nil
}

type genaiGenerator struct {
	client *genai.Client
	model  string
}

func (g *genaiGenerator) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
		ResponseSchema:   productSchema,
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

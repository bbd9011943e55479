package htmlmeta

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nombiemugi/rastreador-de-precios/internal/domain"
)

// parseJSONLD returns the first schema.org Product found in the page's
// ld+json blocks, or nil.
func parseJSONLD(doc *goquery.Document) *domain.ExtractionResult {
	var found *domain.ExtractionResult
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var node any
		if err := json.Unmarshal([]byte(s.Text()), &node); err != nil {
			return true
		}
		if product := findProduct(node); product != nil {
			found = productResult(product)
			return false
		}
		return true
	})
	return found
}

// findProduct walks arrays and @graph containers looking for @type Product.
func findProduct(node any) map[string]any {
	switch v := node.(type) {
	case []any:
		for _, item := range v {
			if p := findProduct(item); p != nil {
				return p
			}
		}
	case map[string]any:
		if hasType(v["@type"], "Product") {
			return v
		}
		if graph, ok := v["@graph"]; ok {
			return findProduct(graph)
		}
	}
	return nil
}

func hasType(t any, want string) bool {
	switch v := t.(type) {
	case string:
		return strings.EqualFold(v, want)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.EqualFold(s, want) {
				return true
			}
		}
	}
	return false
}

func productResult(p map[string]any) *domain.ExtractionResult {
	result := &domain.ExtractionResult{
		ProductName:     scalar(p["name"]),
		ProductImageURL: imageURL(p["image"]),
	}

	offer := firstOffer(p["offers"])
	if offer != nil {
		result.CurrentPrice = scalar(offer["price"])
		if result.CurrentPrice == "" {
			result.CurrentPrice = scalar(offer["lowPrice"])
		}
		result.CurrencyCode = scalar(offer["priceCurrency"])
		if spec, ok := offer["priceSpecification"].(map[string]any); ok {
			if result.CurrentPrice == "" {
				result.CurrentPrice = scalar(spec["price"])
			}
			if result.CurrencyCode == "" {
				result.CurrencyCode = scalar(spec["priceCurrency"])
			}
		}
	}
	return result
}

func firstOffer(offers any) map[string]any {
	switch v := offers.(type) {
	case map[string]any:
		return v
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}

func imageURL(image any) string {
	switch v := image.(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		for _, item := range v {
			if u := imageURL(item); u != "" {
				return u
			}
		}
	case map[string]any:
		return scalar(v["url"])
	}
	return ""
}

// scalar renders JSON strings and numbers as text.
func scalar(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return ""
}

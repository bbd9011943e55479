package gemini

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/nombiemugi/rastreador-de-precios/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeGenerator) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

const productPage = `<html><head>
	<title>Kettle | Shop</title>
	<meta property="og:image" content="https://cdn.example.com/k.jpg">
	<style>.price{color:red}</style>
</head><body>
	<h1>Kettle</h1>
	<script>window.tracking = "ignore me";</script>
	<span class="price">€45,50</span>
</body></html>`

func TestParseResult(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    *domain.ExtractionResult
		wantErr bool
	}{
		{
			name: "plain json",
			raw:  `{"productName":"Kettle","currentPrice":"€45,50","currencyCode":"EUR"}`,
			want: &domain.ExtractionResult{ProductName: "Kettle", CurrentPrice: "€45,50", CurrencyCode: "EUR"},
		},
		{
			name: "fenced json",
			raw:  "```json\n{\"productName\":\"Lamp\",\"currentPrice\":\"$19.99\"}\n```",
			want: &domain.ExtractionResult{ProductName: "Lamp", CurrentPrice: "$19.99"},
		},
		{name: "empty", raw: "  ", wantErr: true},
		{name: "not json", raw: "I could not find a price", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseResult(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVisibleText(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(productPage))
	require.NoError(t, err)

	text := visibleText(doc)

	assert.Contains(t, text, "Title: Kettle | Shop")
	assert.Contains(t, text, "Image: https://cdn.example.com/k.jpg")
	assert.Contains(t, text, "Kettle €45,50")
	assert.NotContains(t, text, "ignore me")
	assert.NotContains(t, text, "color:red")
}

func TestExtract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/kettle" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(productPage))
	}))
	defer server.Close()

	t.Run("success", func(t *testing.T) {
		gen := &fakeGenerator{response: `{"productName":"Kettle","currentPrice":"€45,50","productImageUrl":"https://cdn.example.com/k.jpg"}`}
		e := newExtractor(gen, 0, 0)

		got := e.Extract(context.Background(), server.URL+"/kettle")

		require.NotNil(t, got)
		assert.Equal(t, "Kettle", got.ProductName)
		assert.Equal(t, "€45,50", got.CurrentPrice)
		require.Len(t, gen.prompts, 1)
		assert.Contains(t, gen.prompts[0], server.URL+"/kettle")
		assert.Contains(t, gen.prompts[0], "€45,50")
	})

	t.Run("page not found skips the model", func(t *testing.T) {
		gen := &fakeGenerator{}
		e := newExtractor(gen, 0, 0)

		assert.Nil(t, e.Extract(context.Background(), server.URL+"/missing"))
		assert.Empty(t, gen.prompts)
	})

	t.Run("model error", func(t *testing.T) {
		e := newExtractor(&fakeGenerator{err: errors.New("quota exceeded")}, 0, 0)
		assert.Nil(t, e.Extract(context.Background(), server.URL+"/kettle"))
	})

	t.Run("malformed model output", func(t *testing.T) {
		e := newExtractor(&fakeGenerator{response: "nope"}, 0, 0)
		assert.Nil(t, e.Extract(context.Background(), server.URL+"/kettle"))
	})
}

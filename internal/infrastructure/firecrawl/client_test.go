package firecrawl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	client := NewClient("test-api-key", "https://api.example.com/")

	assert.NotNil(t, client)
	assert.Equal(t, "test-api-key", client.apiKey)
	assert.Equal(t, "https://api.example.com", client.baseURL)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.rateLimiter)

	client = NewClient("k", "")
	assert.Equal(t, DefaultBaseURL, client.baseURL)
}

func TestExtract_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/scrape", r.URL.Path)
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req scrapeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://shop.example.com/p/1", req.URL)
		assert.True(t, req.OnlyMainContent)
		require.Len(t, req.Formats, 1)
		assert.Equal(t, "json", req.Formats[0].Type)
		assert.NotEmpty(t, req.Formats[0].Prompt)
		assert.ElementsMatch(t, []any{"productName", "currentPrice"}, req.Formats[0].Schema["required"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"json":{
			"productName":"Espresso Machine",
			"currentPrice":"US$1,398.00",
			"currencyCode":"USD",
			"productImageUrl":"https://cdn.example.com/e.jpg"}}}`))
	}))
	defer server.Close()

	client := NewClient("test-api-key", server.URL, WithRateLimit(0, 0))
	result := client.Extract(context.Background(), "https://shop.example.com/p/1")

	require.NotNil(t, result)
	assert.Equal(t, "Espresso Machine", result.ProductName)
	assert.Equal(t, "US$1,398.00", result.CurrentPrice)
	assert.Equal(t, "USD", result.CurrencyCode)
	assert.Equal(t, "https://cdn.example.com/e.jpg", result.ProductImageURL)
}

func TestExtract_BareDataObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"productName":"Kettle","currentPrice":"€45,50"}}`))
	}))
	defer server.Close()

	client := NewClient("test-api-key", server.URL, WithRateLimit(0, 0))
	result := client.Extract(context.Background(), "https://shop.example.com/k")

	require.NotNil(t, result)
	assert.Equal(t, "Kettle", result.ProductName)
	assert.Equal(t, "€45,50", result.CurrentPrice)
	assert.Empty(t, result.CurrencyCode)
}

func TestExtract_FailuresReturnNil(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, payload: `{"error":"invalid key"}`},
		{name: "server error", status: http.StatusInternalServerError, payload: `oops`},
		{name: "malformed json", status: http.StatusOK, payload: `{"success":true,"data":`},
		{name: "missing data", status: http.StatusOK, payload: `{"success":false}`},
		{name: "null data", status: http.StatusOK, payload: `{"success":true,"data":null}`},
		{name: "wrong field type", status: http.StatusOK, payload: `{"success":true,"data":{"json":{"currentPrice":12}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			}))
			defer server.Close()

			client := NewClient("test-api-key", server.URL, WithRateLimit(0, 0))

			assert.Nil(t, client.Extract(context.Background(), "https://shop.example.com/x"))
			assert.Equal(t, int32(1), calls.Load(), "no retries")
		})
	}
}

func TestExtract_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient("test-api-key", url, WithRateLimit(0, 0))
	assert.Nil(t, client.Extract(context.Background(), "https://shop.example.com/x"))
}

func TestExtract_ContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient("test-api-key", server.URL, WithRateLimit(0, 0))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	assert.Nil(t, client.Extract(ctx, "https://shop.example.com/slow"))
	assert.Less(t, time.Since(start), time.Second)
}

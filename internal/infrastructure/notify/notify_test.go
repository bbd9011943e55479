package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nombiemugi/rastreador-de-precios/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAlert() domain.PriceDropAlert {
	return domain.PriceDropAlert{
		Product: domain.TrackedProduct{
			ID:       "prod-a",
			Name:     "Headphones <Pro>",
			URL:      "https://shop.example.com/a?x=1&y=2",
			ImageURL: "https://cdn.example.com/a.jpg",
		},
		OldPrice: decimal.RequireFromString("100"),
		NewPrice: decimal.RequireFromString("80"),
		Currency: "USD",
	}
}

func TestMessages(t *testing.T) {
	alert := testAlert()

	assert.Equal(t, "Price drop: Headphones <Pro> is now 80.00 USD", Subject(alert))

	body := HTMLBody(alert)
	assert.Contains(t, body, "Headphones &lt;Pro&gt;")
	assert.Contains(t, body, "<s>100.00 USD</s> <strong>80.00 USD</strong>")
	assert.Contains(t, body, "You save 20.00 USD (20.0%)")
	assert.Contains(t, body, `href="https://shop.example.com/a?x=1&amp;y=2"`)

	tg := TelegramHTML(alert)
	assert.Contains(t, tg, "<b>Headphones &lt;Pro&gt;</b>")
	assert.Contains(t, tg, "(-20.0%)")

	alert.Product.Name = ""
	assert.Contains(t, Subject(alert), alert.Product.URL)
}

func TestMessages_OldPriceKeepsItsCurrency(t *testing.T) {
	alert := testAlert()
	alert.OldCurrency = "EUR"

	body := HTMLBody(alert)
	assert.Contains(t, body, "<s>100.00 EUR</s> <strong>80.00 USD</strong>")
	assert.NotContains(t, body, "You save")

	tg := TelegramHTML(alert)
	assert.Contains(t, tg, "<s>100.00 EUR</s> → <b>80.00 USD</b>")
	assert.NotContains(t, tg, "%")
}

func TestMessages_ThreeDecimalCurrency(t *testing.T) {
	alert := testAlert()
	alert.OldPrice = decimal.RequireFromString("12.500")
	alert.NewPrice = decimal.RequireFromString("12.345")
	alert.Currency = "KWD"

	assert.Equal(t, "Price drop: Headphones <Pro> is now 12.345 KWD", Subject(alert))
	assert.Contains(t, HTMLBody(alert), "<s>12.500 KWD</s> <strong>12.345 KWD</strong>")
}

type sentEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func TestEmailSink_SendPriceDrop(t *testing.T) {
	var got sentEmail
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"email-1"}`))
	}))
	defer server.Close()

	sink, err := NewEmailSink("re_test", "alerts@example.com", server.URL+"/")
	require.NoError(t, err)

	err = sink.SendPriceDrop(context.Background(), "ana@example.com", testAlert())
	require.NoError(t, err)

	assert.Equal(t, "alerts@example.com", got.From)
	assert.Equal(t, []string{"ana@example.com"}, got.To)
	assert.Contains(t, got.Subject, "80.00 USD")
	assert.Contains(t, got.HTML, "View product")
}

func TestEmailSink_Failures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid from"}`))
	}))
	defer server.Close()

	sink, err := NewEmailSink("re_test", "bad", server.URL)
	require.NoError(t, err)
	err = sink.SendPriceDrop(context.Background(), "ana@example.com", testAlert())
	assert.ErrorIs(t, err, domain.ErrNotificationFailed)

	server.Close()
	err = sink.SendPriceDrop(context.Background(), "ana@example.com", testAlert())
	assert.ErrorIs(t, err, domain.ErrNotificationFailed)
}

func TestEmailSink_Recipient(t *testing.T) {
	sink, err := NewEmailSink("k", "from@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultResendBaseURL, sink.client.BaseURL.String())
	assert.Equal(t, "ana@example.com", sink.Recipient(&domain.User{Email: " ana@example.com "}))
	assert.Empty(t, sink.Recipient(&domain.User{ID: "u1"}))
}

type fakeSender struct {
	chatID int64
	text   string
	err    error
}

func (f *fakeSender) SendHTML(ctx context.Context, chatID int64, text string) (int, error) {
	f.chatID, f.text = chatID, text
	return 1, f.err
}

func TestTelegramSink(t *testing.T) {
	sender := &fakeSender{}
	sink := NewTelegramSink(sender)

	assert.Empty(t, sink.Recipient(&domain.User{Email: "ana@example.com"}))
	to := sink.Recipient(&domain.User{TelegramChatID: -100123})
	assert.Equal(t, "-100123", to)

	require.NoError(t, sink.SendPriceDrop(context.Background(), to, testAlert()))
	assert.Equal(t, int64(-100123), sender.chatID)
	assert.Contains(t, sender.text, "Headphones")

	assert.ErrorIs(t, sink.SendPriceDrop(context.Background(), "not-a-chat", testAlert()), domain.ErrNotificationFailed)

	sender.err = errors.New("Forbidden: bot was blocked by the user")
	assert.ErrorIs(t, sink.SendPriceDrop(context.Background(), to, testAlert()), domain.ErrNotificationFailed)
}

func TestLogSink(t *testing.T) {
	sink := NewLogSink()
	assert.Equal(t, "ana@example.com", sink.Recipient(&domain.User{Email: "ana@example.com"}))
	assert.NoError(t, sink.SendPriceDrop(context.Background(), "ana@example.com", testAlert()))
}

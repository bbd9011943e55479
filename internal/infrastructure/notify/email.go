package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/nombiemugi/rastreador-de-precios/internal/domain"
	logx "github.com/nombiemugi/rastreador-de-precios/pkg/logger"
	"github.com/resend/resend-go/v2"
)

// DefaultResendBaseURL is the hosted Resend API
const DefaultResendBaseURL = "https://api.resend.com/"

// EmailSink delivers alerts through the Resend e-mail API
type EmailSink struct {
	client *resend.Client
	from   string
}

// NewEmailSink creates a new Resend-backed sink. An empty baseURL keeps the
// client's hosted default.
func NewEmailSink(apiKey, from, baseURL string) (*EmailSink, error) {
	client := resend.NewClient(apiKey)
	if baseURL != "" {
		u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid resend base url: %w", err)
		}
		client.BaseURL = u
	}
	return &EmailSink{client: client, from: from}, nil
}

// Recipient returns the user's e-mail address.
func (s *EmailSink) Recipient(user *domain.User) string {
	return strings.TrimSpace(user.Email)
}

// SendPriceDrop implements domain.Notifier.
func (s *EmailSink) SendPriceDrop(ctx context.Context, to string, alert domain.PriceDropAlert) error {
	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: Subject(alert),
		Html:    HTMLBody(alert),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNotificationFailed, err)
	}

	logx.Debug().Str("product_id", alert.Product.ID).Str("email_id", sent.Id).Msg("price drop email accepted")
	return nil
}

var _ domain.Notifier = (*EmailSink)(nil)

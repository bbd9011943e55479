package notify

import (
	"context"

	"github.com/nombiemugi/rastreador-de-precios/internal/domain"
	logx "github.com/nombiemugi/rastreador-de-precios/pkg/logger"
)

// LogSink writes alerts to the application log. Used in development.
type LogSink struct{}

// NewLogSink creates a new log sink
func NewLogSink() *LogSink {
	return &LogSink{}
}

// Recipient returns the user's e-mail address.
func (LogSink) Recipient(user *domain.User) string {
	return user.Email
}

// SendPriceDrop implements domain.Notifier.
func (LogSink) SendPriceDrop(ctx context.Context, to string, alert domain.PriceDropAlert) error {
	logx.Info().
		Str("to", to).
		Str("product_id", alert.Product.ID).
		Str("product", productName(alert.Product)).
		Str("old_price", alert.OldPrice.String()).
		Str("new_price", alert.NewPrice.String()).
		Str("currency", alert.Currency).
		Str("savings_percent", alert.SavingsPercent().String()).
		Msg("price drop alert")
	return nil
}

var _ domain.Notifier = LogSink{}

package notify

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/nombiemugi/rastreador-de-precios/internal/domain"
)

// MessageSender sends messages to Telegram.
type MessageSender interface {
	SendHTML(ctx context.Context, chatID int64, text string) (int, error)
}

// BotSender implements MessageSender using tgbotapi.
type BotSender struct {
	api *tgbotapi.BotAPI
}

// NewBotSender authenticates with token and returns a sender.
func NewBotSender(token string) (*BotSender, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	return &BotSender{api: api}, nil
}

// SendHTML sends an HTML-formatted message.
func (s *BotSender) SendHTML(ctx context.Context, chatID int64, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	resp, err := s.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return resp.MessageID, nil
}

// TelegramSink delivers alerts as Telegram chat messages
type TelegramSink struct {
	sender MessageSender
}

// NewTelegramSink creates a new Telegram sink
func NewTelegramSink(sender MessageSender) *TelegramSink {
	return &TelegramSink{sender: sender}
}

// Recipient returns the user's chat id, or "" when the user never linked one.
func (s *TelegramSink) Recipient(user *domain.User) string {
	if user.TelegramChatID == 0 {
		return ""
	}
	return strconv.FormatInt(user.TelegramChatID, 10)
}

// SendPriceDrop implements domain.Notifier.
func (s *TelegramSink) SendPriceDrop(ctx context.Context, to string, alert domain.PriceDropAlert) error {
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid chat id %q", domain.ErrNotificationFailed, to)
	}
	if _, err := s.sender.SendHTML(ctx, chatID, TelegramHTML(alert)); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNotificationFailed, err)
	}
	return nil
}

var _ domain.Notifier = (*TelegramSink)(nil)

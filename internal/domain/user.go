package domain

import "time"

// User is the owner of tracked products and the target of price drop alerts.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email,omitempty"`
	TelegramChatID int64     `json:"telegramChatId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/nombiemugi/rastreador-de-precios/internal/domain"
	"github.com/nombiemugi/rastreador-de-precios/internal/usecase"
	"gopkg.in/yaml.v3"
)

type productAdder interface {
	SaveUser(ctx context.Context, user *domain.User) error
	AddProduct(ctx context.Context, userID, rawURL string) (*usecase.AddResult, error)
}

type manifest struct {
	Users []manifestUser `yaml:"users"`
}

type manifestUser struct {
	ID             string   `yaml:"id"`
	Email          string   `yaml:"email"`
	TelegramChatID int64    `yaml:"telegram_chat_id"`
	Products       []string `yaml:"products"`
}

func (u manifestUser) toDomain() *domain.User {
	return &domain.User{
		ID:             strings.TrimSpace(u.ID),
		Email:          strings.TrimSpace(u.Email),
		TelegramChatID: u.TelegramChatID,
	}
}

func parseManifest(r io.Reader) (*manifest, error) {
	var m manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if err == io.EOF {
			return &m, nil
		}
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	for i, u := range m.Users {
		if strings.TrimSpace(u.ID) == "" {
			return nil, fmt.Errorf("users[%d]: id is required", i)
		}
	}
	return &m, nil
}

package config

import (
	"errors"
	"fmt"
	"log"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "worklog"
	keyringUser    = "telegram-token"
)

// SaveToken stores the Telegram bot token in the system keychain.
func SaveToken(token string) error {
	if token == "" {
		return fmt.Errorf("token is empty")
	}
	if err := keyring.Set(keyringService, keyringUser, token); err != nil {
		return fmt.Errorf("store token in keychain: %w", err)
	}
	return nil
}

// DeleteToken removes a stored token. A missing entry is not an error.
func DeleteToken() error {
	err := keyring.Delete(keyringService, keyringUser)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete token from keychain: %w", err)
	}
	return nil
}

// ResolveToken fills TelegramToken from the keychain when the environment left it empty.
// It reports whether a token is available.
func (c *Config) ResolveToken() bool {
	if c.TelegramToken != "" {
		return true
	}
	token, err := keyring.Get(keyringService, keyringUser)
	switch {
	case err == nil:
		c.TelegramToken = token
		return token != ""
	case errors.Is(err, keyring.ErrNotFound):
		return false
	default:
		log.Printf("[warn] keychain unavailable: %v", err)
		return false
	}
}

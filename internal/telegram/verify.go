package telegram

import (
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Verifier checks bot tokens against the Telegram Bot API.
type Verifier struct {
	logger  *slog.Logger
	enabled bool
}

// NewVerifier returns a token verifier. When disabled, only the token shape
// is checked and the username from the token prefix is returned empty.
func NewVerifier(enabled bool, logger *slog.Logger) *Verifier {
	return &Verifier{
		logger:  logger.With("component", "telegram"),
		enabled: enabled,
	}
}

// ValidShape reports whether the token has the <bot_id>:<secret> shape
// Telegram issues.
func ValidShape(token string) bool {
	return strings.Contains(token, ":")
}

// Verify resolves the bot username behind the token via getMe. With live
// verification disabled it returns an empty username and no error.
func (v *Verifier) Verify(token string) (string, error) {
	if !ValidShape(token) {
		return "", fmt.Errorf("invalid bot token format")
	}
	if !v.enabled {
		return "", nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return "", fmt.Errorf("verify bot token: %w", err)
	}
	v.logger.Info("verified bot token", "username", bot.Self.UserName)
	return bot.Self.UserName, nil
}

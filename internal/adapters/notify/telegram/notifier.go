package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bnema/truck-load-watch/internal/adapters/notify"
	"github.com/bnema/truck-load-watch/internal/domain"
	"github.com/bnema/truck-load-watch/internal/ports"
)

type Config struct {
	Token  string
	ChatID int64
	// APIEndpoint overrides tgbotapi.APIEndpoint, mainly for tests.
	APIEndpoint string
	HTTPClient  *http.Client
}

type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

var _ ports.Notifier = (*Notifier)(nil)

func New(cfg Config) (*Notifier, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is required")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is required")
	}

	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Notifier{bot: bot, chatID: cfg.ChatID}, nil
}

func (n *Notifier) Notify(ctx context.Context, notice domain.AcceptanceNotice) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(n.chatID, Render(notice))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	return nil
}

// Render builds the MarkdownV2 body: values as inline code, everything
// else escaped. EscapeText leaves backslashes alone, and inside code they
// must be doubled.
func Render(notice domain.AcceptanceNotice) string {
	return notify.Render(notice, func(value string) string {
		value = strings.ReplaceAll(value, `\`, `\\`)
		return "`" + tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, value) + "`"
	})
}

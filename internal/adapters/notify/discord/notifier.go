package discord

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/bnema/truck-load-watch/internal/adapters/notify"
	"github.com/bnema/truck-load-watch/internal/domain"
	"github.com/bnema/truck-load-watch/internal/ports"
)

// Discord rejects messages longer than this.
const maxMessageLen = 2000

type messageSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Notifier struct {
	sender    messageSender
	channelID string
}

var _ ports.Notifier = (*Notifier)(nil)

// New uses the REST API only; no gateway connection is opened.
func New(token, channelID string) (*Notifier, error) {
	if token == "" {
		return nil, errors.New("discord token is required")
	}
	if channelID == "" {
		return nil, errors.New("discord channel id is required")
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &Notifier{sender: session, channelID: channelID}, nil
}

func (n *Notifier) Notify(ctx context.Context, notice domain.AcceptanceNotice) error {
	for _, chunk := range chunks(notify.Markdown(notice), maxMessageLen) {
		if _, err := n.sender.ChannelMessageSend(n.channelID, chunk, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("discord: failed to send message: %w", err)
		}
	}
	return nil
}

// chunks splits text on line boundaries into pieces of at most limit bytes.
// A line longer than limit is cut at rune boundaries.
func chunks(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var out []string
	var current []byte
	for len(text) > 0 {
		line := text
		rest := ""
		for i := 0; i < len(text); i++ {
			if text[i] == '\n' {
				line, rest = text[:i+1], text[i+1:]
				break
			}
		}
		text = rest

		if len(current)+len(line) > limit && len(current) > 0 {
			out = append(out, string(current))
			current = current[:0]
		}
		for len(line) > limit {
			cut := limit
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
			out = append(out, line[:cut])
			line = line[cut:]
		}
		current = append(current, line...)
	}
	if len(current) > 0 {
		out = append(out, string(current))
	}
	return out
}

package slack

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/slack-go/slack"

	"github.com/bnema/truck-load-watch/internal/adapters/notify"
	"github.com/bnema/truck-load-watch/internal/domain"
	"github.com/bnema/truck-load-watch/internal/ports"
)

type Config struct {
	Token   string
	Channel string
	// APIURL overrides the Slack Web API base, with a trailing slash.
	APIURL     string
	HTTPClient *http.Client
}

type Notifier struct {
	client  *slack.Client
	channel string
}

var _ ports.Notifier = (*Notifier)(nil)

func New(cfg Config) (*Notifier, error) {
	if cfg.Token == "" {
		return nil, errors.New("slack token is required")
	}
	if cfg.Channel == "" {
		return nil, errors.New("slack channel is required")
	}

	var opts []slack.Option
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, slack.OptionHTTPClient(cfg.HTTPClient))
	}

	return &Notifier{client: slack.New(cfg.Token, opts...), channel: cfg.Channel}, nil
}

func (n *Notifier) Notify(ctx context.Context, notice domain.AcceptanceNotice) error {
	_, _, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionText(notify.Markdown(notice), false))
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/bnema/truck-load-watch/internal/adapters/market"
	"github.com/bnema/truck-load-watch/internal/adapters/notify/discord"
	"github.com/bnema/truck-load-watch/internal/adapters/notify/fanout"
	"github.com/bnema/truck-load-watch/internal/adapters/notify/logsink"
	"github.com/bnema/truck-load-watch/internal/adapters/notify/slack"
	"github.com/bnema/truck-load-watch/internal/adapters/notify/telegram"
	"github.com/bnema/truck-load-watch/internal/adapters/schedule"
	"github.com/bnema/truck-load-watch/internal/adapters/secrets"
	"github.com/bnema/truck-load-watch/internal/adapters/store"
	"github.com/bnema/truck-load-watch/internal/application"
	"github.com/bnema/truck-load-watch/internal/config"
	"github.com/bnema/truck-load-watch/internal/ports"
)

const (
	submitX                = "30"
	submitY                = "13"
	biddingLocationIDField = "biddingLocationId"
)

type app struct {
	store     ports.Store
	scheduler *schedule.Scheduler
}

func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

func wireApp(ctx context.Context, opts *rootOptions, logOut io.Writer) (*app, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	cfg, err := config.Load(opts.v, config.Options{
		ConfigFile: opts.configFile,
		EnvFile:    opts.envFile,
		HomeDir:    homeDir,
	})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(cfg.Log, logOut)
	resolver := secrets.NewResolver(filepath.Join(config.Dir(homeDir), "secrets"))

	password, err := resolver.Value(ctx, cfg.Market.Password, cfg.Market.PasswordRef)
	if err != nil {
		return nil, fmt.Errorf("resolve market password: %w", err)
	}

	location, err := time.LoadLocation(cfg.Hours.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load hours timezone: %w", err)
	}

	notifier, err := wireNotifier(ctx, cfg.Notify, resolver, logger)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	client := &market.Client{
		BaseURL:        cfg.Market.BaseURL,
		Credentials:    market.Credentials{Username: cfg.Market.Username, Password: password},
		HTTPClient:     newHTTPClient(),
		RequestTimeout: cfg.Market.Timeout,
		Limiter:        market.NewLimiter(cfg.Market.RateLimit),
	}
	clock := ports.SystemClock{}

	pipeline := application.NewPipeline(application.PipelineDeps{
		Store:     st,
		Sessions:  application.NewSessionService(st, client, clock, cfg.Session.Freshness, logger),
		Market:    client,
		Extractor: market.NewExtractor(),
		Notifier:  notifier,
		Clock:     clock,
		Logger:    logger,
	}, application.PipelineConfig{
		Hours: application.OperatingHours{
			Location: location,
			Start:    cfg.Hours.Start,
			End:      cfg.Hours.End,
		},
		DefaultDailyThreshold: cfg.Watcher.DefaultDailyThreshold,
		ExtraSubmitFields:     extraSubmitFields(cfg.Market),
	})

	scheduler, err := schedule.New(pipeline, schedule.Config{
		Interval:     cfg.PollInterval,
		CycleTimeout: cfg.CycleTimeout,
	}, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &app{store: st, scheduler: scheduler}, nil
}

// wireNotifier fans out to every configured chat destination and falls
// back to the log when none is set.
func wireNotifier(ctx context.Context, cfg config.Notify, resolver *secrets.Resolver, logger *slog.Logger) (ports.Notifier, error) {
	var sinks []fanout.Sink

	if cfg.Telegram.Enabled() {
		token, err := resolver.Value(ctx, cfg.Telegram.Token, cfg.Telegram.TokenRef)
		if err != nil {
			return nil, fmt.Errorf("resolve telegram token: %w", err)
		}
		notifier, err := telegram.New(telegram.Config{Token: token, ChatID: cfg.Telegram.ChatID})
		if err != nil {
			return nil, fmt.Errorf("wire telegram notifier: %w", err)
		}
		sinks = append(sinks, fanout.Sink{Name: "telegram", Notifier: notifier})
	}

	if cfg.Slack.Enabled() {
		token, err := resolver.Value(ctx, cfg.Slack.Token, cfg.Slack.TokenRef)
		if err != nil {
			return nil, fmt.Errorf("resolve slack token: %w", err)
		}
		notifier, err := slack.New(slack.Config{Token: token, Channel: cfg.Slack.Channel})
		if err != nil {
			return nil, fmt.Errorf("wire slack notifier: %w", err)
		}
		sinks = append(sinks, fanout.Sink{Name: "slack", Notifier: notifier})
	}

	if cfg.Discord.Enabled() {
		token, err := resolver.Value(ctx, cfg.Discord.Token, cfg.Discord.TokenRef)
		if err != nil {
			return nil, fmt.Errorf("resolve discord token: %w", err)
		}
		notifier, err := discord.New(token, cfg.Discord.ChannelID)
		if err != nil {
			return nil, fmt.Errorf("wire discord notifier: %w", err)
		}
		sinks = append(sinks, fanout.Sink{Name: "discord", Notifier: notifier})
	}

	if len(sinks) == 0 {
		logger.Info("no chat destination configured; acceptances are logged only")
		return logsink.New(logger), nil
	}
	return fanout.New(sinks...), nil
}

func extraSubmitFields(cfg config.Market) []application.SubmitField {
	fields := []application.SubmitField{
		{Name: "submit.x", Value: submitX},
		{Name: "submit.y", Value: submitY},
	}
	if id := strings.TrimSpace(cfg.BiddingLocationID); id != "" {
		fields = append(fields, application.SubmitField{Name: biddingLocationIDField, Value: id})
	}
	return fields
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          4,
			MaxIdleConnsPerHost:   2,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 20 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}

func newLogger(cfg config.Log, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Package config loads watcher settings from a TOML file, a .env file and
// TLW_-prefixed environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/bnema/truck-load-watch/internal/adapters/store"
)

const (
	EnvPrefix  = "TLW"
	configDir  = ".truck-load-watch"
	configName = "config"
	configType = "toml"
)

const (
	KeyPollInterval          = "poll_interval"
	KeyCycleTimeout          = "cycle_timeout"
	KeyMarketBaseURL         = "market.base_url"
	KeyMarketUsername        = "market.username"
	KeyMarketPassword        = "market.password"
	KeyMarketPasswordRef     = "market.password_ref"
	KeyMarketTimeout         = "market.timeout"
	KeyMarketRateLimit       = "market.rate_limit"
	KeyMarketBiddingLocation = "market.bidding_location_id"
	KeyStoreDSN              = "store.dsn"
	KeySessionFreshness      = "session.freshness"
	KeyHoursTimezone         = "hours.timezone"
	KeyHoursStart            = "hours.start"
	KeyHoursEnd              = "hours.end"
	KeyDefaultThreshold      = "watcher.default_daily_threshold"
	KeyTelegramToken         = "notify.telegram.token"
	KeyTelegramTokenRef      = "notify.telegram.token_ref"
	KeyTelegramChatID        = "notify.telegram.chat_id"
	KeySlackToken            = "notify.slack.token"
	KeySlackTokenRef         = "notify.slack.token_ref"
	KeySlackChannel          = "notify.slack.channel"
	KeyDiscordToken          = "notify.discord.token"
	KeyDiscordTokenRef       = "notify.discord.token_ref"
	KeyDiscordChannelID      = "notify.discord.channel_id"
	KeyLogLevel              = "log.level"
	KeyLogFormat             = "log.format"
)

var allKeys = []string{
	KeyPollInterval, KeyCycleTimeout,
	KeyMarketBaseURL, KeyMarketUsername, KeyMarketPassword, KeyMarketPasswordRef,
	KeyMarketTimeout, KeyMarketRateLimit, KeyMarketBiddingLocation,
	KeyStoreDSN, KeySessionFreshness,
	KeyHoursTimezone, KeyHoursStart, KeyHoursEnd,
	KeyDefaultThreshold,
	KeyTelegramToken, KeyTelegramTokenRef, KeyTelegramChatID,
	KeySlackToken, KeySlackTokenRef, KeySlackChannel,
	KeyDiscordToken, KeyDiscordTokenRef, KeyDiscordChannelID,
	KeyLogLevel, KeyLogFormat,
}

type Config struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	CycleTimeout time.Duration `mapstructure:"cycle_timeout"`
	Market       Market        `mapstructure:"market"`
	Store        Store         `mapstructure:"store"`
	Session      Session       `mapstructure:"session"`
	Hours        Hours         `mapstructure:"hours"`
	Watcher      Watcher       `mapstructure:"watcher"`
	Notify       Notify        `mapstructure:"notify"`
	Log          Log           `mapstructure:"log"`
}

type Market struct {
	BaseURL           string        `mapstructure:"base_url"`
	Username          string        `mapstructure:"username"`
	Password          string        `mapstructure:"password"`
	PasswordRef       string        `mapstructure:"password_ref"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RateLimit         float64       `mapstructure:"rate_limit"`
	BiddingLocationID string        `mapstructure:"bidding_location_id"`
}

type Store struct {
	DSN string `mapstructure:"dsn"`
}

type Session struct {
	Freshness time.Duration `mapstructure:"freshness"`
}

type Hours struct {
	Timezone string `mapstructure:"timezone"`
	Start    int    `mapstructure:"start"`
	End      int    `mapstructure:"end"`
}

type Watcher struct {
	DefaultDailyThreshold int `mapstructure:"default_daily_threshold"`
}

type Notify struct {
	Telegram Telegram `mapstructure:"telegram"`
	Slack    Slack    `mapstructure:"slack"`
	Discord  Discord  `mapstructure:"discord"`
}

type Telegram struct {
	Token    string `mapstructure:"token"`
	TokenRef string `mapstructure:"token_ref"`
	ChatID   int64  `mapstructure:"chat_id"`
}

func (t Telegram) Enabled() bool {
	return t.ChatID != 0 && (t.Token != "" || t.TokenRef != "")
}

type Slack struct {
	Token    string `mapstructure:"token"`
	TokenRef string `mapstructure:"token_ref"`
	Channel  string `mapstructure:"channel"`
}

func (s Slack) Enabled() bool {
	return s.Channel != "" && (s.Token != "" || s.TokenRef != "")
}

type Discord struct {
	Token     string `mapstructure:"token"`
	TokenRef  string `mapstructure:"token_ref"`
	ChannelID string `mapstructure:"channel_id"`
}

func (d Discord) Enabled() bool {
	return d.ChannelID != "" && (d.Token != "" || d.TokenRef != "")
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Options locate the config and .env files. Empty fields fall back to
// ~/.truck-load-watch/config.toml and ./.env.
type Options struct {
	ConfigFile string
	EnvFile    string
	HomeDir    string
}

// Dir returns the directory holding the config file, the default database
// and file secrets.
func Dir(homeDir string) string {
	return filepath.Join(homeDir, configDir)
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyPollInterval, "5s")
	v.SetDefault(KeyCycleTimeout, "2m")
	v.SetDefault(KeyMarketTimeout, "30s")
	v.SetDefault(KeyMarketRateLimit, 2.0)
	v.SetDefault(KeyStoreDSN, "sqlite://~/"+configDir+"/watch.db")
	v.SetDefault(KeySessionFreshness, "1h")
	v.SetDefault(KeyHoursTimezone, "America/New_York")
	v.SetDefault(KeyHoursStart, 6)
	v.SetDefault(KeyHoursEnd, 18)
	v.SetDefault(KeyDefaultThreshold, 1)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
}

// Load reads configuration into v and decodes it. Flags already bound to v
// win over every other source.
func Load(v *viper.Viper, opts Options) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	if err := loadDotEnv(opts.EnvFile); err != nil {
		return Config{}, err
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range allKeys {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		homeDir := opts.HomeDir
		if homeDir == "" {
			var err error
			homeDir, err = os.UserHomeDir()
			if err != nil {
				return Config{}, fmt.Errorf("resolve home directory: %w", err)
			}
		}
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(Dir(homeDir))
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

// loadDotEnv never overrides variables already present in the process
// environment. A missing default .env is fine; a missing explicit one is not.
func loadDotEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Market.BaseURL) == "" {
		errs = append(errs, errors.New("market.base_url is required"))
	}
	if strings.TrimSpace(c.Market.Username) == "" {
		errs = append(errs, errors.New("market.username is required"))
	}
	if c.Market.Password == "" && strings.TrimSpace(c.Market.PasswordRef) == "" {
		errs = append(errs, errors.New("market.password or market.password_ref is required"))
	}

	for key, d := range map[string]time.Duration{
		KeyPollInterval:     c.PollInterval,
		KeyCycleTimeout:     c.CycleTimeout,
		KeyMarketTimeout:    c.Market.Timeout,
		KeySessionFreshness: c.Session.Freshness,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", key, d))
		}
	}
	// The scheduler ticks in whole seconds.
	if c.PollInterval > 0 && c.PollInterval%time.Second != 0 {
		errs = append(errs, fmt.Errorf("%s must be a whole number of seconds, got %s", KeyPollInterval, c.PollInterval))
	}
	if c.Market.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyMarketRateLimit))
	}

	if c.Hours.Start < 0 || c.Hours.Start > 23 || c.Hours.End < 0 || c.Hours.End > 23 {
		errs = append(errs, fmt.Errorf("hours must be within 0-23, got %d-%d", c.Hours.Start, c.Hours.End))
	} else if c.Hours.Start > c.Hours.End {
		errs = append(errs, fmt.Errorf("hours.start %d is after hours.end %d", c.Hours.Start, c.Hours.End))
	}
	if _, err := time.LoadLocation(c.Hours.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("hours.timezone: %w", err))
	}

	if c.Watcher.DefaultDailyThreshold < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyDefaultThreshold))
	}

	if err := store.Validate(c.Store.DSN); err != nil {
		errs = append(errs, fmt.Errorf("store.dsn: %w", err))
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}

	return errors.Join(errs...)
}

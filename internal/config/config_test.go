package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), Options{HomeDir: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 2*time.Minute, cfg.CycleTimeout)
	assert.Equal(t, 30*time.Second, cfg.Market.Timeout)
	assert.InDelta(t, 2.0, cfg.Market.RateLimit, 0.0001)
	assert.Equal(t, "sqlite://~/.truck-load-watch/watch.db", cfg.Store.DSN)
	assert.Equal(t, time.Hour, cfg.Session.Freshness)
	assert.Equal(t, Hours{Timezone: "America/New_York", Start: 6, End: 18}, cfg.Hours)
	assert.Equal(t, 1, cfg.Watcher.DefaultDailyThreshold)
	assert.Equal(t, Log{Level: "info", Format: "text"}, cfg.Log)
}

func TestLoadReadsConfigFileFromHome(t *testing.T) {
	home := t.TempDir()
	writeFile(t, filepath.Join(Dir(home), "config.toml"), `
poll_interval = "10s"

[market]
base_url = "https://market.example"
username = "carrier"
password_ref = "pass:market/password"
bidding_location_id = "227871"

[hours]
timezone = "America/Chicago"
start = 7
end = 17

[notify.telegram]
token_ref = "env:TELEGRAM_TOKEN"
chat_id = -100123
`)

	cfg, err := Load(viper.New(), Options{HomeDir: home})
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, "https://market.example", cfg.Market.BaseURL)
	assert.Equal(t, "carrier", cfg.Market.Username)
	assert.Equal(t, "pass:market/password", cfg.Market.PasswordRef)
	assert.Equal(t, "227871", cfg.Market.BiddingLocationID)
	assert.Equal(t, Hours{Timezone: "America/Chicago", Start: 7, End: 17}, cfg.Hours)
	assert.Equal(t, int64(-100123), cfg.Notify.Telegram.ChatID)
	assert.True(t, cfg.Notify.Telegram.Enabled())
	assert.False(t, cfg.Notify.Slack.Enabled())
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	home := t.TempDir()
	writeFile(t, filepath.Join(Dir(home), "config.toml"), `
[market]
username = "from-file"
`)
	t.Setenv("TLW_MARKET_USERNAME", "from-env")
	t.Setenv("TLW_MARKET_PASSWORD", "hunter2")
	t.Setenv("TLW_HOURS_END", "20")

	cfg, err := Load(viper.New(), Options{HomeDir: home})
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Market.Username)
	assert.Equal(t, "hunter2", cfg.Market.Password)
	assert.Equal(t, 20, cfg.Hours.End)
}

func TestLoadReadsDotEnvWithoutOverridingProcessEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "watch.env")
	writeFile(t, envFile, "TLW_MARKET_BASE_URL=https://from-dotenv.example\nTLW_MARKET_USERNAME=dotenv-user\n")
	t.Setenv("TLW_MARKET_USERNAME", "process-user")
	// Unset after the test so dotenv values do not leak into other tests.
	t.Setenv("TLW_MARKET_BASE_URL", "")
	require.NoError(t, os.Unsetenv("TLW_MARKET_BASE_URL"))

	cfg, err := Load(viper.New(), Options{HomeDir: dir, EnvFile: envFile})
	require.NoError(t, err)

	assert.Equal(t, "https://from-dotenv.example", cfg.Market.BaseURL)
	assert.Equal(t, "process-user", cfg.Market.Username)
}

func TestLoadFailsOnMissingExplicitFiles(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(viper.New(), Options{HomeDir: dir, EnvFile: filepath.Join(dir, "missing.env")})
	require.ErrorContains(t, err, "load env file")

	_, err = Load(viper.New(), Options{HomeDir: dir, ConfigFile: filepath.Join(dir, "missing.toml")})
	require.ErrorContains(t, err, "read config file")
}

func TestLoadHonoursBoundFlags(t *testing.T) {
	v := viper.New()
	v.Set(KeyStoreDSN, "toml:///tmp/watch.toml")

	cfg, err := Load(v, Options{HomeDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "toml:///tmp/watch.toml", cfg.Store.DSN)
}

func validConfig(t *testing.T) Config {
	t.Helper()

	cfg, err := Load(viper.New(), Options{HomeDir: t.TempDir()})
	require.NoError(t, err)
	cfg.Market.BaseURL = "https://market.example"
	cfg.Market.Username = "carrier"
	cfg.Market.Password = "hunter2"
	return cfg
}

func TestValidateAcceptsDefaultsWithCredentials(t *testing.T) {
	require.NoError(t, validConfig(t).Validate())
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := validConfig(t)
	cfg.Market.BaseURL = ""
	cfg.Market.Password = ""
	cfg.PollInterval = 0
	cfg.Hours.Start = 19
	cfg.Store.DSN = "redis://localhost"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"market.base_url is required",
		"market.password or market.password_ref is required",
		"poll_interval must be positive",
		"hours.start 19 is after hours.end 18",
		"unsupported store scheme",
		"log.format must be text or json",
	} {
		assert.ErrorContains(t, err, want)
	}
}

func TestValidateRejectsFractionalPollInterval(t *testing.T) {
	for _, interval := range []time.Duration{500 * time.Millisecond, 1500 * time.Millisecond} {
		cfg := validConfig(t)
		cfg.PollInterval = interval

		err := cfg.Validate()
		require.Error(t, err, interval)
		assert.ErrorContains(t, err, "poll_interval must be a whole number of seconds")
	}

	cfg := validConfig(t)
	cfg.PollInterval = 2 * time.Second
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsOutOfRangeHoursAndTimezone(t *testing.T) {
	cfg := validConfig(t)
	cfg.Hours.End = 24
	cfg.Hours.Timezone = "Mars/Olympus_Mons"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "hours must be within 0-23")
	assert.ErrorContains(t, err, "hours.timezone")
}

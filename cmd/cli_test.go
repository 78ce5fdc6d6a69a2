package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/truck-load-watch/internal/adapters/market/markettest"
	"github.com/bnema/truck-load-watch/internal/adapters/store/sqlite"
	"github.com/bnema/truck-load-watch/internal/config"
	"github.com/bnema/truck-load-watch/internal/domain"
)

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeConfigFixture(t *testing.T, home string, baseURL string) {
	t.Helper()

	dir := config.Dir(home)
	require.NoError(t, os.MkdirAll(dir, 0o700))

	content := fmt.Sprintf(`[market]
base_url = %q
username = %q
password = %q
rate_limit = 0

[hours]
timezone = "UTC"
start = 0
end = 23
`, baseURL, markettest.Username, markettest.Password)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o600))
}

func seedRules(t *testing.T, dbPath string) {
	t.Helper()

	st, err := sqlite.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.SaveRules(context.Background(), domain.MatchingRules{
		Destinations: []string{"greensboro"},
		Consignees:   []string{"coilplus"},
		ShipModes:    []string{"coil"},
	}))
}

func TestVersionPrintsBuildVersion(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", stdout)
}

func TestOnceRejectsIncompleteConfig(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "once")
	require.Error(t, err)
	assert.ErrorContains(t, err, "invalid config")
	assert.ErrorContains(t, err, "market.base_url is required")
	assert.ErrorContains(t, err, "market.username is required")
}

func TestOnceRejectsUnknownStoreFlag(t *testing.T) {
	home := t.TempDir()
	writeConfigFixture(t, home, "http://127.0.0.1:1")

	_, _, err := executeCLI(t, home, "once", "--store", "redis://localhost")
	require.Error(t, err)
	assert.ErrorContains(t, err, "unsupported store scheme")
}

func TestOnceAcceptsLightestMatchingLoadThenStopsAtThreshold(t *testing.T) {
	home := t.TempDir()
	server := markettest.NewServer(markettest.Page(
		markettest.NewRow("300", 300),
		markettest.NewRow("100", 100),
	))
	defer server.Close()

	writeConfigFixture(t, home, server.URL)
	dbPath := filepath.Join(home, "watch.db")
	seedRules(t, dbPath)
	storeFlag := "--store=sqlite://" + dbPath

	stdout, stderr, err := executeCLI(t, home, "once", storeFlag)
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "accepted 1")
	assert.Contains(t, stdout, "100  Decatur, AL -> Greensboro, NC  100 lbs  CoilPlus Carolinas")
	assert.Contains(t, stderr, "load accepted")
	assert.Equal(t, 1, server.Logins())

	submissions := server.Submissions()
	require.Len(t, submissions, 1)
	assert.Equal(t, "accept", submissions[0].Get("action100"))
	assert.Equal(t, "reject", submissions[0].Get("action300"))
	assert.Equal(t, "30", submissions[0].Get("submit.x"))
	assert.Equal(t, "13", submissions[0].Get("submit.y"))

	stdout, _, err = executeCLI(t, home, "once", storeFlag)
	require.NoError(t, err)
	assert.Contains(t, stdout, "skipped: threshold met")
	assert.Equal(t, 1, server.Logins())
	assert.Len(t, server.Submissions(), 1)

	stdout, _, err = executeCLI(t, home, "accepted", storeFlag)
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 accepted since")
	assert.Contains(t, stdout, "100  Decatur, AL -> Greensboro, NC  100 lbs  CoilPlus Carolinas")
	assert.NotContains(t, stdout, "300 lbs")
}

func TestAcceptedRejectsNegativeDays(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "accepted", "--days=-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--days")
}

func TestOnceLogsAsJSONWhenRequested(t *testing.T) {
	home := t.TempDir()
	server := markettest.NewServer(markettest.Page())
	defer server.Close()

	writeConfigFixture(t, home, server.URL)

	stdout, stderr, err := executeCLI(t, home, "once",
		"--store=toml://"+filepath.Join(home, "watch.toml"),
		"--log-format=json",
		"--log-level=debug",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "no_new_loads")
	assert.Contains(t, stderr, `"msg":"cycle finished"`)
}

package logsink

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/truck-load-watch/internal/domain"
)

func TestNotifyLogsOneRecordPerLoad(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	notifier := New(slog.New(slog.NewJSONHandler(&buf, nil)))

	at := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	notice := domain.AcceptanceNotice{CycleID: "01HZX", Loads: []domain.AcceptedLoad{
		domain.NewAcceptedLoad(domain.LoadOffer{ExternalID: "150", WeightLbs: 150, DestLocation: "Greensboro, NC"}, at),
		domain.NewAcceptedLoad(domain.LoadOffer{ExternalID: "200", WeightLbs: 200}, at),
	}}
	require.NoError(t, notifier.Notify(context.Background(), notice))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "load accepted", record["msg"])
	assert.Equal(t, "01HZX", record["cycle"])
	assert.Equal(t, "150", record["external_id"])
	assert.Equal(t, "Greensboro, NC", record["dest"])
	assert.EqualValues(t, 150, record["weight_lbs"])
}

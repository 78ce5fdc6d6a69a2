package application

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bnema/truck-load-watch/internal/adapters/market"
	"github.com/bnema/truck-load-watch/internal/adapters/market/markettest"
	"github.com/bnema/truck-load-watch/internal/adapters/store/sqlite"
	"github.com/bnema/truck-load-watch/internal/domain"
	"github.com/bnema/truck-load-watch/internal/ports/mocks"
)

var eastern = time.FixedZone("EST", -5*60*60)

type pipelineFixture struct {
	pipeline *Pipeline
	store    *sqlite.Store
	server   *markettest.Server
	client   *market.Client
	notifier *mocks.MockNotifier
	clock    *fixedClock
}

func newPipelineFixture(t *testing.T, page string) *pipelineFixture {
	t.Helper()

	server := markettest.NewServer(page)
	t.Cleanup(server.Close)

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "watch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.SaveRules(context.Background(), domain.MatchingRules{
		Destinations: []string{"greensboro", " "},
		Consignees:   []string{"coilplus"},
		ShipModes:    []string{"coil"},
	}))

	clock := newFixedClock(time.Date(2026, 3, 2, 10, 0, 0, 0, eastern))
	client := &market.Client{
		BaseURL:        server.URL,
		Credentials:    market.Credentials{Username: markettest.Username, Password: markettest.Password},
		HTTPClient:     server.Client(),
		RequestTimeout: 5 * time.Second,
	}
	notifier := mocks.NewMockNotifier(t)

	pipeline := NewPipeline(PipelineDeps{
		Store:     store,
		Sessions:  NewSessionService(store, client, clock, time.Hour, nil),
		Market:    client,
		Extractor: market.NewExtractor(),
		Notifier:  notifier,
		Clock:     clock,
	}, PipelineConfig{
		Hours:                 OperatingHours{Location: eastern, Start: DefaultHoursStart, End: DefaultHoursEnd},
		DefaultDailyThreshold: domain.DefaultDailyThreshold,
		ExtraSubmitFields: []SubmitField{
			{Name: "submit.x", Value: "30"},
			{Name: "submit.y", Value: "13"},
			{Name: "biddingLocationId", Value: "227871"},
		},
	})

	return &pipelineFixture{pipeline: pipeline, store: store, server: server, client: client, notifier: notifier, clock: clock}
}

func (f *pipelineFixture) setSettings(t *testing.T, settings domain.WatcherSettings) {
	t.Helper()
	require.NoError(t, f.store.SaveSettings(context.Background(), settings))
}

func (f *pipelineFixture) acceptedToday(t *testing.T) []domain.AcceptedLoad {
	t.Helper()
	loads, err := f.store.ListAcceptedSince(context.Background(), StartOfDayUTC(f.clock.Now()))
	require.NoError(t, err)
	return loads
}

func (f *pipelineFixture) captureNotices() *[]domain.AcceptanceNotice {
	var notices []domain.AcceptanceNotice
	f.notifier.EXPECT().Notify(mockAnyContext(), mock.Anything).RunAndReturn(func(_ context.Context, notice domain.AcceptanceNotice) error {
		notices = append(notices, notice)
		return nil
	}).Maybe()
	return &notices
}

func threeOfferPage() string {
	return markettest.Page(
		markettest.NewRow("200", 200),
		markettest.NewRow("150", 150),
		markettest.NewRow("400", 400),
	)
}

func ids(loads []domain.AcceptedLoad) []string {
	out := make([]string, 0, len(loads))
	for _, load := range loads {
		out = append(out, load.ExternalID)
	}
	return out
}

func TestPipelineAcceptsLightestOffersUpToThreshold(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t, threeOfferPage())
	f.setSettings(t, domain.WatcherSettings{Enabled: true, DailyThreshold: 2})
	notices := f.captureNotices()

	ctx := WithCycleID(context.Background(), "cycle-1")
	result, err := f.pipeline.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.CycleAccepted, result.Kind)
	assert.Equal(t, []string{"150", "200"}, ids(result.Accepted))

	stored := f.acceptedToday(t)
	assert.ElementsMatch(t, []string{"150", "200"}, ids(stored))
	for _, load := range stored {
		assert.Equal(t, domain.LoadStatusAccept, load.Status)
	}

	require.Len(t, *notices, 1)
	assert.Equal(t, "cycle-1", (*notices)[0].CycleID)
	assert.Equal(t, []string{"150", "200"}, ids((*notices)[0].Loads))

	submissions := f.server.Submissions()
	require.Len(t, submissions, 1)
	form := submissions[0]
	assert.Equal(t, "accept", form.Get("action150"))
	assert.Equal(t, "accept", form.Get("action200"))
	assert.Equal(t, "reject", form.Get("action400"))
	assert.Equal(t, "true", form.Get("initialized"))
	assert.Equal(t, "false", form.Get("refreshLoads"))
	assert.Equal(t, "tok-1", form.Get("pageToken"))
	assert.Equal(t, "30", form.Get("submit.x"))
	assert.Equal(t, "13", form.Get("submit.y"))
	assert.Equal(t, "227871", form.Get("biddingLocationId"))

	again, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Skipped(domain.ReasonThresholdMet), again)
	assert.Len(t, f.acceptedToday(t), 2)
	assert.Len(t, f.server.Submissions(), 1)
}

func TestPipelineRerunAfterAcceptingEverythingFindsNoNewLoads(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t, threeOfferPage())
	f.setSettings(t, domain.WatcherSettings{Enabled: true, DailyThreshold: 10})
	notices := f.captureNotices()

	first, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"150", "200", "400"}, ids(first.Accepted))

	second, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.NoNewLoads(), second)

	assert.Len(t, f.acceptedToday(t), 3)
	assert.Len(t, *notices, 1)
	assert.Len(t, f.server.Submissions(), 1)
	assert.Equal(t, 1, f.server.Logins(), "the cached session is reused")
}

func TestPipelineSkipsOffersAcceptedOnEarlierDays(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t, threeOfferPage())
	f.setSettings(t, domain.WatcherSettings{Enabled: true, DailyThreshold: 2})
	notices := f.captureNotices()

	yesterday := f.clock.Now().Add(-24 * time.Hour)
	require.NoError(t, f.store.SaveAccepted(context.Background(), []domain.AcceptedLoad{
		domain.NewAcceptedLoad(domain.LoadOffer{ExternalID: "150", WeightLbs: 150, AcceptActionToken: "action150"}, yesterday),
	}))

	result, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"200", "400"}, ids(result.Accepted))
	require.Len(t, *notices, 1)

	form := f.server.Submissions()[0]
	assert.Equal(t, "reject", form.Get("action150"))
}

func TestPipelineSkipsNonMatchingOffers(t *testing.T) {
	t.Parallel()

	van := markettest.NewRow("300", 300)
	van.ShipMode = "DRY VAN"
	elsewhere := markettest.NewRow("100", 100)
	elsewhere.Dest = "Atlanta, GA"

	f := newPipelineFixture(t, markettest.Page(van, elsewhere, markettest.NewRow("500", 500)))
	f.setSettings(t, domain.WatcherSettings{Enabled: true, DailyThreshold: 5})
	f.captureNotices()

	result, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"500"}, ids(result.Accepted))

	require.NoError(t, f.store.SaveRules(context.Background(), domain.MatchingRules{
		Destinations: []string{"atlanta"},
		Consignees:   []string{"coilplus"},
		ShipModes:    []string{"van"},
	}))
	result, err = f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.NoNewLoads(), result)
}

func TestPipelineOutsideHoursTouchesNothing(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t, threeOfferPage())
	f.clock.Advance(9 * time.Hour) // 19:00 local

	result, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Skipped(domain.ReasonOutsideHours), result)
	assert.Equal(t, 0, f.server.Logins())
	assert.Equal(t, 0, f.server.Fetches())

	_, err = f.store.GetSettings(context.Background())
	require.ErrorIs(t, err, domain.ErrSettingsNotFound)
}

func TestOperatingHoursBoundaries(t *testing.T) {
	t.Parallel()

	hours := OperatingHours{Location: eastern, Start: 6, End: 18}
	day := func(hour, minute int) time.Time { return time.Date(2026, 3, 2, hour, minute, 0, 0, eastern) }

	assert.False(t, hours.Contains(day(5, 59)))
	assert.True(t, hours.Contains(day(6, 0)))
	assert.True(t, hours.Contains(day(18, 59)))
	assert.False(t, hours.Contains(day(19, 0)))
	assert.True(t, hours.Contains(time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)))
}

func TestPipelineDisabledWatcherSkips(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t, threeOfferPage())
	f.setSettings(t, domain.WatcherSettings{Enabled: false, DailyThreshold: 5})

	result, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Skipped(domain.ReasonDisabled), result)
	assert.Equal(t, 0, f.server.Fetches())
}

func TestPipelineInitializesMissingSettings(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t, threeOfferPage())
	f.captureNotices()

	result, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"150"}, ids(result.Accepted))

	settings, err := f.store.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultWatcherSettings(domain.DefaultDailyThreshold), settings)
}

// missingStatusStore reports settings as absent while the threshold is
// already stored, the way a store with a hand-set threshold and no status
// record looks.
type missingStatusStore struct {
	*sqlite.Store
	t *testing.T
}

func (s missingStatusStore) GetSettings(context.Context) (domain.WatcherSettings, error) {
	return domain.WatcherSettings{}, domain.ErrSettingsNotFound
}

func (s missingStatusStore) SaveSettings(context.Context, domain.WatcherSettings) error {
	s.t.Error("the watcher must not overwrite operator settings")
	return nil
}

func TestPipelineInitKeepsOperatorThreshold(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t, threeOfferPage())
	f.setSettings(t, domain.WatcherSettings{Enabled: true, DailyThreshold: 2})
	f.pipeline.store = missingStatusStore{Store: f.store, t: t}
	f.captureNotices()

	result, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"150", "200"}, ids(result.Accepted))

	settings, err := f.store.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, settings.DailyThreshold)
}

func TestPipelineFetchFailureAborts(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t, threeOfferPage())
	f.setSettings(t, domain.WatcherSettings{Enabled: true, DailyThreshold: 2})
	f.server.SetFetchStatus(http.StatusServiceUnavailable)

	result, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.CycleAborted, result.Kind)
	assert.Contains(t, result.Reason, "503")
	assert.Empty(t, f.acceptedToday(t))
}

func TestPipelineParseFailureIsReturned(t *testing.T) {
	t.Parallel()

	broken := markettest.NewRow("1", 100)
	broken.Weight = "n/a"

	f := newPipelineFixture(t, markettest.Page(broken))
	f.setSettings(t, domain.WatcherSettings{Enabled: true, DailyThreshold: 2})

	_, err := f.pipeline.RunCycle(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrParse))
	assert.Empty(t, f.acceptedToday(t))
}

func TestPipelineAuthFailureIsReturned(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t, threeOfferPage())
	f.setSettings(t, domain.WatcherSettings{Enabled: true, DailyThreshold: 2})
	f.client.Credentials.Password = "wrong"

	_, err := f.pipeline.RunCycle(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAuth))
	assert.Equal(t, 0, f.server.Fetches())
}

func TestPipelineUnreachableLoginAbortsCycle(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t, threeOfferPage())
	f.setSettings(t, domain.WatcherSettings{Enabled: true, DailyThreshold: 2})
	f.server.Close()

	result, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.CycleAborted, result.Kind)
	assert.Empty(t, f.acceptedToday(t))
}

func TestPipelineExpiredServerSessionForcesLoginNextCycle(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t, threeOfferPage())
	f.setSettings(t, domain.WatcherSettings{Enabled: true, DailyThreshold: 10})
	f.captureNotices()

	require.NoError(t, f.store.SaveSession(context.Background(), domain.SessionToken{
		Cookies:  map[string]string{markettest.SessionCookie: "expired"},
		IssuedAt: f.clock.Now().Add(-10 * time.Minute),
	}))

	_, err := f.pipeline.RunCycle(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAuth))
	assert.Equal(t, 0, f.server.Logins())

	result, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.CycleAccepted, result.Kind)
	assert.Equal(t, 1, f.server.Logins())
}

func TestPipelineSubmissionFailureStillPersistsAndNotifies(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t, threeOfferPage())
	f.setSettings(t, domain.WatcherSettings{Enabled: true, DailyThreshold: 1})
	f.server.SetSubmitStatus(http.StatusInternalServerError)
	notices := f.captureNotices()

	result, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"150"}, ids(result.Accepted))
	assert.Equal(t, []string{"150"}, ids(f.acceptedToday(t)))
	assert.Len(t, *notices, 1)
}

func TestPipelineNotificationFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t, threeOfferPage())
	f.setSettings(t, domain.WatcherSettings{Enabled: true, DailyThreshold: 1})
	f.notifier.EXPECT().Notify(mockAnyContext(), mock.Anything).Return(errors.New("telegram down")).Once()

	result, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.CycleAccepted, result.Kind)
	assert.Len(t, f.acceptedToday(t), 1)
}

func TestPipelineQuotaInvariantAcrossCycles(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t, threeOfferPage())
	f.setSettings(t, domain.WatcherSettings{Enabled: true, DailyThreshold: 2})
	f.captureNotices()

	for i := 0; i < 3; i++ {
		_, err := f.pipeline.RunCycle(context.Background())
		require.NoError(t, err)
		assert.LessOrEqual(t, len(f.acceptedToday(t)), 2)
	}

	f.server.SetPage(markettest.Page(markettest.NewRow("900", 90), markettest.NewRow("901", 91)))
	result, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Skipped(domain.ReasonThresholdMet), result)

	f.clock.Advance(24 * time.Hour)
	result, err = f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"900", "901"}, ids(result.Accepted))
}

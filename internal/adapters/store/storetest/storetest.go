// Package storetest is a behaviour suite every ports.Store adapter runs
// against itself.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/truck-load-watch/internal/domain"
	"github.com/bnema/truck-load-watch/internal/ports"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) ports.Store

func Load(id string, weight int, at time.Time) domain.AcceptedLoad {
	return domain.NewAcceptedLoad(domain.LoadOffer{
		ExternalID:        id,
		OriginLocation:    "Decatur, AL",
		OriginDateTime:    "03/02/2026 08:00",
		DestLocation:      "Greensboro, NC",
		DestDateTime:      "03/03/2026 14:00",
		Consignee:         "CoilPlus Carolinas",
		WeightLbs:         weight,
		ShipMode:          "COIL FLATBED",
		AcceptActionToken: "action" + id,
	}, at)
}

func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("session round trip", func(t *testing.T) {
		store := open(t, newStore)
		ctx := context.Background()

		_, err := store.GetSession(ctx)
		require.ErrorIs(t, err, domain.ErrSessionNotFound)

		issued := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
		first := domain.SessionToken{Cookies: map[string]string{"JSESSIONID": "one"}, IssuedAt: issued}
		require.NoError(t, store.SaveSession(ctx, first))

		second := domain.SessionToken{Cookies: map[string]string{"JSESSIONID": "two", "locale": "lo_DF"}, IssuedAt: issued.Add(time.Hour)}
		require.NoError(t, store.SaveSession(ctx, second))

		got, err := store.GetSession(ctx)
		require.NoError(t, err)
		assert.True(t, second.Equal(got), "got %+v", got)
	})

	t.Run("settings and rules", func(t *testing.T) {
		store := open(t, newStore)
		ctx := context.Background()

		_, err := store.GetSettings(ctx)
		require.ErrorIs(t, err, domain.ErrSettingsNotFound)
		_, err = store.GetRules(ctx)
		require.ErrorIs(t, err, domain.ErrRulesNotFound)

		require.NoError(t, store.SaveSettings(ctx, domain.WatcherSettings{Enabled: true, DailyThreshold: 3}))
		require.NoError(t, store.SaveSettings(ctx, domain.WatcherSettings{Enabled: false, DailyThreshold: 2}))
		settings, err := store.GetSettings(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.WatcherSettings{Enabled: false, DailyThreshold: 2}, settings)

		rules := domain.MatchingRules{
			Destinations: []string{"Greensboro", "Charlotte"},
			Consignees:   []string{"CoilPlus"},
			ShipModes:    []string{"COIL"},
		}
		require.NoError(t, store.SaveRules(ctx, rules))
		got, err := store.GetRules(ctx)
		require.NoError(t, err)
		assert.Equal(t, rules, got)
	})

	t.Run("settings init never overwrites", func(t *testing.T) {
		store := open(t, newStore)
		ctx := context.Background()
		defaults := domain.DefaultWatcherSettings(1)

		got, err := store.InitSettings(ctx, defaults)
		require.NoError(t, err)
		assert.Equal(t, defaults, got)

		require.NoError(t, store.SaveSettings(ctx, domain.WatcherSettings{Enabled: false, DailyThreshold: 5}))
		got, err = store.InitSettings(ctx, defaults)
		require.NoError(t, err)
		assert.Equal(t, domain.WatcherSettings{Enabled: false, DailyThreshold: 5}, got)

		stored, err := store.GetSettings(ctx)
		require.NoError(t, err)
		assert.Equal(t, got, stored)
	})

	t.Run("accepted loads", func(t *testing.T) {
		store := open(t, newStore)
		ctx := context.Background()

		today := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
		yesterday := today.Add(-24 * time.Hour)
		startOfToday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

		require.NoError(t, store.SaveAccepted(ctx, nil))
		require.NoError(t, store.SaveAccepted(ctx, []domain.AcceptedLoad{Load("old", 100, yesterday)}))
		require.NoError(t, store.SaveAccepted(ctx, []domain.AcceptedLoad{
			Load("a", 150, today),
			Load("b", 200, today.Add(time.Minute)),
		}))

		accepted, err := store.IsAccepted(ctx, "a")
		require.NoError(t, err)
		assert.True(t, accepted)
		accepted, err = store.IsAccepted(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, accepted)

		count, err := store.CountAcceptedSince(ctx, startOfToday)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		count, err = store.CountAcceptedSince(ctx, yesterday.Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		loads, err := store.ListAcceptedSince(ctx, startOfToday)
		require.NoError(t, err)
		require.Len(t, loads, 2)
		byID := map[string]domain.AcceptedLoad{}
		for _, load := range loads {
			byID[load.ExternalID] = load
		}
		want := Load("a", 150, today)
		got := byID["a"]
		assert.Equal(t, want.LoadOffer, got.LoadOffer)
		assert.Equal(t, domain.LoadStatusAccept, got.Status)
		assert.True(t, want.AcceptedAt.Equal(got.AcceptedAt), "accepted at %s", got.AcceptedAt)
	})

	t.Run("duplicate external id rejected atomically", func(t *testing.T) {
		store := open(t, newStore)
		ctx := context.Background()
		at := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

		require.NoError(t, store.SaveAccepted(ctx, []domain.AcceptedLoad{Load("dup", 100, at)}))

		err := store.SaveAccepted(ctx, []domain.AcceptedLoad{Load("fresh", 200, at), Load("dup", 100, at)})
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrLoadAlreadyAccepted), "got %v", err)

		accepted, err := store.IsAccepted(ctx, "fresh")
		require.NoError(t, err)
		assert.False(t, accepted, "a failed batch must not leave partial rows")
	})
}

func open(t *testing.T, newStore Factory) ports.Store {
	t.Helper()

	store := newStore(t)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

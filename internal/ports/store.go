package ports

import (
	"context"
	"time"

	"github.com/bnema/truck-load-watch/internal/domain"
)

// SessionCache holds the single market session shared by every cycle.
type SessionCache interface {
	GetSession(ctx context.Context) (domain.SessionToken, error)
	SaveSession(ctx context.Context, token domain.SessionToken) error
}

// AcceptedLoadRepository is the durable acceptance history. Entries are
// unique by ExternalID and never updated.
type AcceptedLoadRepository interface {
	IsAccepted(ctx context.Context, externalID string) (bool, error)
	CountAcceptedSince(ctx context.Context, since time.Time) (int, error)
	SaveAccepted(ctx context.Context, loads []domain.AcceptedLoad) error
	ListAcceptedSince(ctx context.Context, since time.Time) ([]domain.AcceptedLoad, error)
}

// SettingsRepository exposes the records owned by the operator control
// surface. The watcher only writes settings to initialize them.
type SettingsRepository interface {
	GetSettings(ctx context.Context) (domain.WatcherSettings, error)
	SaveSettings(ctx context.Context, settings domain.WatcherSettings) error
	// InitSettings stores defaults for whatever part of the settings is
	// missing, never overwriting an existing value, and returns the
	// settings now in effect.
	InitSettings(ctx context.Context, defaults domain.WatcherSettings) (domain.WatcherSettings, error)
	GetRules(ctx context.Context) (domain.MatchingRules, error)
	SaveRules(ctx context.Context, rules domain.MatchingRules) error
}

type Store interface {
	SessionCache
	AcceptedLoadRepository
	SettingsRepository
	Close() error
}

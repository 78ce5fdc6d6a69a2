package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bnema/truck-load-watch/internal/domain"
	"github.com/bnema/truck-load-watch/internal/ports"
)

// SessionService keeps one authenticated market session alive across
// cycles. The cached token in the store is the source of truth; the active
// token is only the copy the current process last handed out.
type SessionService struct {
	cache  ports.SessionCache
	market ports.MarketClient
	clock  ports.Clock
	window time.Duration
	logger *slog.Logger

	mu     sync.Mutex
	active domain.SessionToken
}

func NewSessionService(cache ports.SessionCache, market ports.MarketClient, clock ports.Clock, window time.Duration, logger *slog.Logger) *SessionService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if window <= 0 {
		window = domain.DefaultSessionFreshness
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SessionService{
		cache:  cache,
		market: market,
		clock:  clock,
		window: window,
		logger: logger,
	}
}

func (s *SessionService) EnsureSession(ctx context.Context) (domain.SessionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached, err := s.cache.GetSession(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return domain.SessionToken{}, fmt.Errorf("get cached session: %w", err)
		}
		cached = domain.SessionToken{}
	}

	now := s.clock.Now()
	if cached.IsFresh(now, s.window) {
		if !s.active.Equal(cached) {
			s.logger.DebugContext(ctx, "loaded cached market session", "issued_at", cached.IssuedAt)
			s.active = cached
		}
		return s.active, nil
	}

	token, err := s.market.Login(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrAuth) || errors.Is(err, domain.ErrFetch) {
			return domain.SessionToken{}, err
		}
		return domain.SessionToken{}, fmt.Errorf("%w: %w", domain.ErrAuth, err)
	}
	token.IssuedAt = now.UTC()

	if err := s.cache.SaveSession(ctx, token); err != nil {
		return domain.SessionToken{}, fmt.Errorf("save session: %w", err)
	}

	s.logger.InfoContext(ctx, "logged in to market", "cookies", len(token.Cookies))
	s.active = token
	return token, nil
}

// Invalidate marks the cached session stale so the next EnsureSession logs
// in again. The market serves its login page once a session has expired
// server side, even inside the freshness window.
func (s *SessionService) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = domain.SessionToken{}
	if err := s.cache.SaveSession(ctx, domain.SessionToken{IssuedAt: time.Unix(0, 0).UTC()}); err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	return nil
}

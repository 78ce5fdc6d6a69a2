package application

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/bnema/truck-load-watch/internal/domain"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(now time.Time) *fixedClock {
	return &fixedClock{now: now}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type inMemorySessionCache struct {
	mu    sync.Mutex
	token *domain.SessionToken
	saves int
}

func (c *inMemorySessionCache) GetSession(_ context.Context) (domain.SessionToken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil {
		return domain.SessionToken{}, domain.ErrSessionNotFound
	}
	return *c.token, nil
}

func (c *inMemorySessionCache) SaveSession(_ context.Context, token domain.SessionToken) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = &token
	c.saves++
	return nil
}

type countingLoads struct {
	count int
	err   error
	since time.Time
}

func (r *countingLoads) IsAccepted(context.Context, string) (bool, error) { return false, nil }

func (r *countingLoads) CountAcceptedSince(_ context.Context, since time.Time) (int, error) {
	r.since = since
	return r.count, r.err
}

func (r *countingLoads) SaveAccepted(context.Context, []domain.AcceptedLoad) error { return nil }

func (r *countingLoads) ListAcceptedSince(context.Context, time.Time) ([]domain.AcceptedLoad, error) {
	return nil, nil
}

func mockAnyContext() interface{} {
	return mock.MatchedBy(func(context.Context) bool { return true })
}

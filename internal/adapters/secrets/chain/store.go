// Package chain looks a secret up in several backends in order.
package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/truck-load-watch/internal/ports"
)

type Backend struct {
	Name  string
	Store ports.SecretStore
}

type Store struct {
	backends []Backend
}

var _ ports.SecretStore = (*Store)(nil)

var errNoBackends = errors.New("secret chain has no backends")

func NewStore(backends ...Backend) (*Store, error) {
	if len(backends) == 0 {
		return nil, errNoBackends
	}
	for i, backend := range backends {
		if backend.Store == nil {
			return nil, fmt.Errorf("secret backend %d (%s) is nil", i, backend.Name)
		}
	}

	return &Store{backends: backends}, nil
}

// Get returns the first value found. A context error stops the walk at
// once; otherwise every backend failure is reported.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var errs []error
	for _, backend := range s.backends {
		value, err := backend.Store.Get(ctx, key)
		if err == nil {
			return value, nil
		}
		if shouldStop(err) {
			return "", err
		}
		errs = append(errs, fmt.Errorf("%s backend get failed: %w", backend.Name, err))
	}

	return "", errors.Join(errs...)
}

func shouldStop(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

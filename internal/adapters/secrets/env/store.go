// Package env reads secrets from process environment variables.
package env

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bnema/truck-load-watch/internal/ports"
)

type lookupFunc func(key string) (string, bool)

type Store struct {
	lookup lookupFunc
}

var _ ports.SecretStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{lookup: os.LookupEnv}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := strings.TrimSpace(key)
	if name == "" {
		return "", errors.New("environment secret name is empty")
	}

	value, ok := s.lookup(name)
	if !ok || value == "" {
		return "", fmt.Errorf("environment secret %q is not set", name)
	}

	return value, nil
}

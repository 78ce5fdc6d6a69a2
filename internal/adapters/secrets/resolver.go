// Package secrets turns credential references from the config file into
// values.
//
// A reference is either "<scheme>:<key>" with scheme pass, file or env, or
// a bare key that is looked up in pass and then in the file store.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/truck-load-watch/internal/adapters/secrets/chain"
	envstore "github.com/bnema/truck-load-watch/internal/adapters/secrets/env"
	filestore "github.com/bnema/truck-load-watch/internal/adapters/secrets/file"
	passstore "github.com/bnema/truck-load-watch/internal/adapters/secrets/pass"
	"github.com/bnema/truck-load-watch/internal/ports"
)

const (
	SchemePass = "pass"
	SchemeFile = "file"
	SchemeEnv  = "env"
)

var ErrEmptyReference = errors.New("secret reference is empty")

type Resolver struct {
	Pass ports.SecretStore
	File ports.SecretStore
	Env  ports.SecretStore
}

func NewResolver(fileRoot string) *Resolver {
	return &Resolver{
		Pass: passstore.NewStore(),
		File: filestore.NewStore(fileRoot),
		Env:  envstore.NewStore(),
	}
}

func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrEmptyReference
	}

	scheme, key, ok := strings.Cut(ref, ":")
	if !ok {
		return r.resolveBare(ctx, ref)
	}

	var store ports.SecretStore
	switch scheme {
	case SchemePass:
		store = r.Pass
	case SchemeFile:
		store = r.File
	case SchemeEnv:
		store = r.Env
	default:
		return r.resolveBare(ctx, ref)
	}
	if store == nil {
		return "", fmt.Errorf("secret backend %q is not configured", scheme)
	}

	value, err := store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("resolve secret %q: %w", ref, err)
	}
	return value, nil
}

// Value returns inline when set and resolves ref otherwise. Both empty is
// not an error; callers decide whether the value is required.
func (r *Resolver) Value(ctx context.Context, inline string, ref string) (string, error) {
	if inline != "" {
		return inline, nil
	}
	if strings.TrimSpace(ref) == "" {
		return "", nil
	}
	return r.Resolve(ctx, ref)
}

func (r *Resolver) resolveBare(ctx context.Context, key string) (string, error) {
	var backends []chain.Backend
	if r.Pass != nil {
		backends = append(backends, chain.Backend{Name: SchemePass, Store: r.Pass})
	}
	if r.File != nil {
		backends = append(backends, chain.Backend{Name: SchemeFile, Store: r.File})
	}

	store, err := chain.NewStore(backends...)
	if err != nil {
		return "", fmt.Errorf("resolve secret %q: %w", key, err)
	}

	value, err := store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("resolve secret %q: %w", key, err)
	}
	return value, nil
}

// Package store picks a ports.Store adapter from a DSN.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bnema/truck-load-watch/internal/adapters/store/mongo"
	"github.com/bnema/truck-load-watch/internal/adapters/store/postgres"
	"github.com/bnema/truck-load-watch/internal/adapters/store/sqlite"
	"github.com/bnema/truck-load-watch/internal/adapters/store/toml"
	"github.com/bnema/truck-load-watch/internal/ports"
)

var ErrUnsupportedScheme = errors.New("unsupported store scheme")

// Scheme returns the lowercased scheme of dsn, without "://".
func Scheme(dsn string) string {
	scheme, _, ok := strings.Cut(dsn, "://")
	if !ok {
		return ""
	}
	return strings.ToLower(scheme)
}

// Validate checks the scheme without opening anything.
func Validate(dsn string) error {
	switch Scheme(dsn) {
	case "sqlite", "toml", "postgres", "postgresql", "mongodb", "mongodb+srv":
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedScheme, dsn)
	}
}

func Open(ctx context.Context, dsn string) (ports.Store, error) {
	switch Scheme(dsn) {
	case "sqlite":
		path, err := filePath(dsn)
		if err != nil {
			return nil, err
		}
		return sqlite.Open(path)
	case "toml":
		path, err := filePath(dsn)
		if err != nil {
			return nil, err
		}
		return toml.New(path)
	case "postgres", "postgresql":
		return postgres.Open(ctx, dsn)
	case "mongodb", "mongodb+srv":
		return mongo.Open(ctx, dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, dsn)
	}
}

// filePath turns "sqlite://~/x.db" or "sqlite:///abs/x.db" into a local path.
func filePath(dsn string) (string, error) {
	_, path, _ := strings.Cut(dsn, "://")
	if path == "" {
		return "", fmt.Errorf("store dsn %q has no path", dsn)
	}
	return ExpandHome(path)
}

func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

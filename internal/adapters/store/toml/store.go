// Package toml stores watcher state in a single TOML file. It suits a
// single operator running one watcher without a database.
package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/bnema/truck-load-watch/internal/domain"
	"github.com/bnema/truck-load-watch/internal/ports"
)

const (
	watchFileMode   = 0o600
	watchDirMode    = 0o700
	tempFilePattern = ".watch-*.toml.tmp"
)

type Store struct {
	path string
	mu   *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.Store = (*Store)(nil)

func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("watch file path is empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve watch file path: %w", err)
	}
	absPath = filepath.Clean(absPath)

	return &Store{path: absPath, mu: lockForPath(absPath)}, nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) GetSession(ctx context.Context) (domain.SessionToken, error) {
	file, err := s.read(ctx)
	if err != nil {
		return domain.SessionToken{}, err
	}
	if file.Session == nil {
		return domain.SessionToken{}, domain.ErrSessionNotFound
	}

	return domain.SessionToken{
		Cookies:  file.Session.Cookies,
		IssuedAt: parseTime(file.Session.IssuedAt),
	}, nil
}

func (s *Store) SaveSession(ctx context.Context, token domain.SessionToken) error {
	return s.update(ctx, func(file *fileSchema) error {
		file.Session = &sessionSchema{Cookies: token.Cookies, IssuedAt: formatTime(token.IssuedAt)}
		return nil
	})
}

func (s *Store) IsAccepted(ctx context.Context, externalID string) (bool, error) {
	file, err := s.read(ctx)
	if err != nil {
		return false, err
	}
	for _, entry := range file.Loads {
		if entry.ExternalID == externalID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CountAcceptedSince(ctx context.Context, since time.Time) (int, error) {
	loads, err := s.ListAcceptedSince(ctx, since)
	if err != nil {
		return 0, err
	}
	return len(loads), nil
}

func (s *Store) ListAcceptedSince(ctx context.Context, since time.Time) ([]domain.AcceptedLoad, error) {
	file, err := s.read(ctx)
	if err != nil {
		return nil, err
	}

	loads := make([]domain.AcceptedLoad, 0, len(file.Loads))
	for _, entry := range file.Loads {
		load := fromLoadSchema(entry)
		if load.Status != domain.LoadStatusAccept || load.AcceptedAt.Before(since) {
			continue
		}
		loads = append(loads, load)
	}
	return loads, nil
}

// SaveAccepted appends all loads or none. A load whose external id is
// already stored fails the whole batch with ErrLoadAlreadyAccepted.
func (s *Store) SaveAccepted(ctx context.Context, loads []domain.AcceptedLoad) error {
	if len(loads) == 0 {
		return nil
	}

	return s.update(ctx, func(file *fileSchema) error {
		known := make(map[string]struct{}, len(file.Loads)+len(loads))
		for _, entry := range file.Loads {
			known[entry.ExternalID] = struct{}{}
		}
		for _, load := range loads {
			if _, ok := known[load.ExternalID]; ok {
				return fmt.Errorf("%w: %s", domain.ErrLoadAlreadyAccepted, load.ExternalID)
			}
			known[load.ExternalID] = struct{}{}
			file.Loads = append(file.Loads, toLoadSchema(load))
		}
		return nil
	})
}

func (s *Store) GetSettings(ctx context.Context) (domain.WatcherSettings, error) {
	file, err := s.read(ctx)
	if err != nil {
		return domain.WatcherSettings{}, err
	}
	if file.Settings == nil {
		return domain.WatcherSettings{}, domain.ErrSettingsNotFound
	}
	return domain.WatcherSettings{Enabled: file.Settings.Enabled, DailyThreshold: file.Settings.DailyThreshold}, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings domain.WatcherSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	return s.update(ctx, func(file *fileSchema) error {
		file.Settings = &settingsSchema{Enabled: settings.Enabled, DailyThreshold: settings.DailyThreshold}
		return nil
	})
}

func (s *Store) InitSettings(ctx context.Context, defaults domain.WatcherSettings) (domain.WatcherSettings, error) {
	if err := defaults.Validate(); err != nil {
		return domain.WatcherSettings{}, err
	}

	var current domain.WatcherSettings
	err := s.update(ctx, func(file *fileSchema) error {
		if file.Settings == nil {
			file.Settings = &settingsSchema{Enabled: defaults.Enabled, DailyThreshold: defaults.DailyThreshold}
		}
		current = domain.WatcherSettings{Enabled: file.Settings.Enabled, DailyThreshold: file.Settings.DailyThreshold}
		return nil
	})
	if err != nil {
		return domain.WatcherSettings{}, err
	}
	return current, nil
}

func (s *Store) GetRules(ctx context.Context) (domain.MatchingRules, error) {
	file, err := s.read(ctx)
	if err != nil {
		return domain.MatchingRules{}, err
	}
	if file.Rules == nil {
		return domain.MatchingRules{}, domain.ErrRulesNotFound
	}
	return domain.MatchingRules{
		Destinations: file.Rules.Destinations,
		Consignees:   file.Rules.Consignees,
		ShipModes:    file.Rules.ShipModes,
	}, nil
}

func (s *Store) SaveRules(ctx context.Context, rules domain.MatchingRules) error {
	return s.update(ctx, func(file *fileSchema) error {
		file.Rules = &rulesSchema{
			Destinations: rules.Destinations,
			Consignees:   rules.Consignees,
			ShipModes:    rules.ShipModes,
		}
		return nil
	})
}

func (s *Store) read(ctx context.Context) (fileSchema, error) {
	if err := ctx.Err(); err != nil {
		return fileSchema{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.readSchema()
}

func (s *Store) update(ctx context.Context, apply func(*fileSchema) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.readSchema()
	if err != nil {
		return err
	}
	if err := apply(&file); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.writeSchema(file)
}

func (s *Store) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			file := fileSchema{}
			file.applyDefaults()
			return file, nil
		}
		return fileSchema{}, fmt.Errorf("read watch file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode watch file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func (s *Store) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(s.path), watchDirMode); err != nil {
		return fmt.Errorf("create watch directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode watch file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(s.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp watch file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp watch file: %w", err)
	}
	if err := tempFile.Chmod(watchFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp watch file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp watch file: %w", err)
	}

	if err := os.Rename(tempName, s.path); err != nil {
		return fmt.Errorf("replace watch file: %w", err)
	}
	cleanup = false

	return nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

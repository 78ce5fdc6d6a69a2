package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bnema/truck-load-watch/internal/domain"
	"github.com/bnema/truck-load-watch/internal/ports"
)

const (
	sessionKey         = "market"
	uniqueViolationSQL = "23505"
)

type Store struct {
	Pool *pgxpool.Pool
}

var _ ports.Store = (*Store)(nil)

func Open(ctx context.Context, connStr string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	s := &Store{Pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS session_cache (
			key       TEXT PRIMARY KEY,
			cookies   JSONB NOT NULL,
			issued_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS accepted_loads (
			external_id     TEXT PRIMARY KEY,
			action_token    TEXT NOT NULL,
			origin_location TEXT NOT NULL,
			origin_datetime TEXT NOT NULL,
			dest_location   TEXT NOT NULL,
			dest_datetime   TEXT NOT NULL,
			consignee       TEXT NOT NULL,
			weight_lbs      INT NOT NULL,
			ship_mode       TEXT NOT NULL,
			status          TEXT NOT NULL,
			accepted_at     TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_accepted_loads_status_at ON accepted_loads (status, accepted_at)`,
		`CREATE TABLE IF NOT EXISTS watcher_settings (
			id              INT PRIMARY KEY CHECK (id = 1),
			enabled         BOOLEAN NOT NULL,
			daily_threshold INT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS matching_rules (
			id           INT PRIMARY KEY CHECK (id = 1),
			destinations TEXT[] NOT NULL,
			consignees   TEXT[] NOT NULL,
			ship_modes   TEXT[] NOT NULL
		)`,
	}

	for _, q := range queries {
		if _, err := s.Pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	s.Pool.Close()
	return nil
}

func (s *Store) GetSession(ctx context.Context) (domain.SessionToken, error) {
	var token domain.SessionToken
	err := s.Pool.QueryRow(ctx, `SELECT cookies, issued_at FROM session_cache WHERE key = $1`, sessionKey).
		Scan(&token.Cookies, &token.IssuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SessionToken{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.SessionToken{}, fmt.Errorf("query session: %w", err)
	}
	token.IssuedAt = token.IssuedAt.UTC()
	return token, nil
}

func (s *Store) SaveSession(ctx context.Context, token domain.SessionToken) error {
	cookies := token.Cookies
	if cookies == nil {
		cookies = map[string]string{}
	}
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO session_cache (key, cookies, issued_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET cookies = EXCLUDED.cookies, issued_at = EXCLUDED.issued_at`,
		sessionKey, cookies, token.IssuedAt.UTC())
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *Store) IsAccepted(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	err := s.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accepted_loads WHERE external_id = $1)`, externalID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query accepted load: %w", err)
	}
	return exists, nil
}

func (s *Store) CountAcceptedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM accepted_loads WHERE status = $1 AND accepted_at >= $2`,
		string(domain.LoadStatusAccept), since.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count accepted loads: %w", err)
	}
	return count, nil
}

func (s *Store) ListAcceptedSince(ctx context.Context, since time.Time) ([]domain.AcceptedLoad, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT external_id, action_token, origin_location, origin_datetime, dest_location,
		        dest_datetime, consignee, weight_lbs, ship_mode, status, accepted_at
		 FROM accepted_loads
		 WHERE status = $1 AND accepted_at >= $2
		 ORDER BY accepted_at, external_id`,
		string(domain.LoadStatusAccept), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query accepted loads: %w", err)
	}

	loads, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.AcceptedLoad, error) {
		var load domain.AcceptedLoad
		var status string
		err := row.Scan(
			&load.ExternalID, &load.AcceptActionToken, &load.OriginLocation, &load.OriginDateTime,
			&load.DestLocation, &load.DestDateTime, &load.Consignee, &load.WeightLbs,
			&load.ShipMode, &status, &load.AcceptedAt,
		)
		load.Status = domain.LoadStatus(status)
		load.AcceptedAt = load.AcceptedAt.UTC()
		return load, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan accepted loads: %w", err)
	}
	return loads, nil
}

func (s *Store) SaveAccepted(ctx context.Context, loads []domain.AcceptedLoad) error {
	if len(loads) == 0 {
		return nil
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, load := range loads {
		_, err := tx.Exec(ctx,
			`INSERT INTO accepted_loads (external_id, action_token, origin_location, origin_datetime,
				dest_location, dest_datetime, consignee, weight_lbs, ship_mode, status, accepted_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			load.ExternalID, load.AcceptActionToken, load.OriginLocation, load.OriginDateTime,
			load.DestLocation, load.DestDateTime, load.Consignee, load.WeightLbs,
			load.ShipMode, string(load.Status), load.AcceptedAt.UTC())
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationSQL {
				return fmt.Errorf("%w: %s", domain.ErrLoadAlreadyAccepted, load.ExternalID)
			}
			return fmt.Errorf("insert accepted load %s: %w", load.ExternalID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit accepted loads: %w", err)
	}
	return nil
}

func (s *Store) GetSettings(ctx context.Context) (domain.WatcherSettings, error) {
	var settings domain.WatcherSettings
	err := s.Pool.QueryRow(ctx, `SELECT enabled, daily_threshold FROM watcher_settings WHERE id = 1`).
		Scan(&settings.Enabled, &settings.DailyThreshold)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.WatcherSettings{}, domain.ErrSettingsNotFound
	}
	if err != nil {
		return domain.WatcherSettings{}, fmt.Errorf("query watcher settings: %w", err)
	}
	return settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings domain.WatcherSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	_, err := s.Pool.Exec(ctx,
		`INSERT INTO watcher_settings (id, enabled, daily_threshold) VALUES (1, $1, $2)
		 ON CONFLICT (id) DO UPDATE SET enabled = EXCLUDED.enabled, daily_threshold = EXCLUDED.daily_threshold`,
		settings.Enabled, settings.DailyThreshold)
	if err != nil {
		return fmt.Errorf("save watcher settings: %w", err)
	}
	return nil
}

func (s *Store) InitSettings(ctx context.Context, defaults domain.WatcherSettings) (domain.WatcherSettings, error) {
	if err := defaults.Validate(); err != nil {
		return domain.WatcherSettings{}, err
	}

	_, err := s.Pool.Exec(ctx,
		`INSERT INTO watcher_settings (id, enabled, daily_threshold) VALUES (1, $1, $2)
		 ON CONFLICT (id) DO NOTHING`,
		defaults.Enabled, defaults.DailyThreshold)
	if err != nil {
		return domain.WatcherSettings{}, fmt.Errorf("init watcher settings: %w", err)
	}
	return s.GetSettings(ctx)
}

func (s *Store) GetRules(ctx context.Context) (domain.MatchingRules, error) {
	var rules domain.MatchingRules
	err := s.Pool.QueryRow(ctx, `SELECT destinations, consignees, ship_modes FROM matching_rules WHERE id = 1`).
		Scan(&rules.Destinations, &rules.Consignees, &rules.ShipModes)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MatchingRules{}, domain.ErrRulesNotFound
	}
	if err != nil {
		return domain.MatchingRules{}, fmt.Errorf("query matching rules: %w", err)
	}
	return rules, nil
}

func (s *Store) SaveRules(ctx context.Context, rules domain.MatchingRules) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO matching_rules (id, destinations, consignees, ship_modes) VALUES (1, $1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET destinations = EXCLUDED.destinations,
		   consignees = EXCLUDED.consignees, ship_modes = EXCLUDED.ship_modes`,
		nonNil(rules.Destinations), nonNil(rules.Consignees), nonNil(rules.ShipModes))
	if err != nil {
		return fmt.Errorf("save matching rules: %w", err)
	}
	return nil
}

func nonNil(patterns []string) []string {
	if patterns == nil {
		return []string{}
	}
	return patterns
}

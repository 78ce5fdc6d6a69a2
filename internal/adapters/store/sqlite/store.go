package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bnema/truck-load-watch/internal/domain"
	"github.com/bnema/truck-load-watch/internal/ports"
)

const sessionKey = "market"

// Store keeps watcher state in a local SQLite database.
type Store struct {
	db *sql.DB
}

var _ ports.Store = (*Store)(nil)

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS session_cache (
		key       TEXT PRIMARY KEY,
		cookies   TEXT NOT NULL,
		issued_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS accepted_loads (
		external_id     TEXT PRIMARY KEY,
		action_token    TEXT NOT NULL,
		origin_location TEXT NOT NULL,
		origin_datetime TEXT NOT NULL,
		dest_location   TEXT NOT NULL,
		dest_datetime   TEXT NOT NULL,
		consignee       TEXT NOT NULL,
		weight_lbs      INTEGER NOT NULL,
		ship_mode       TEXT NOT NULL,
		status          TEXT NOT NULL,
		accepted_at     INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_accepted_loads_status_at ON accepted_loads(status, accepted_at);

	CREATE TABLE IF NOT EXISTS watcher_settings (
		id              INTEGER PRIMARY KEY CHECK (id = 1),
		enabled         INTEGER NOT NULL,
		daily_threshold INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS matching_rules (
		id           INTEGER PRIMARY KEY CHECK (id = 1),
		destinations TEXT NOT NULL,
		consignees   TEXT NOT NULL,
		ship_modes   TEXT NOT NULL
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetSession(ctx context.Context) (domain.SessionToken, error) {
	var cookies string
	var issuedAt int64
	err := s.db.QueryRowContext(ctx, `SELECT cookies, issued_at FROM session_cache WHERE key = ?`, sessionKey).Scan(&cookies, &issuedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SessionToken{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.SessionToken{}, fmt.Errorf("query session: %w", err)
	}

	token := domain.SessionToken{IssuedAt: time.Unix(0, issuedAt).UTC()}
	if err := json.Unmarshal([]byte(cookies), &token.Cookies); err != nil {
		return domain.SessionToken{}, fmt.Errorf("decode session cookies: %w", err)
	}
	return token, nil
}

func (s *Store) SaveSession(ctx context.Context, token domain.SessionToken) error {
	cookies, err := json.Marshal(token.Cookies)
	if err != nil {
		return fmt.Errorf("encode session cookies: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_cache (key, cookies, issued_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET cookies = excluded.cookies, issued_at = excluded.issued_at`,
		sessionKey, string(cookies), token.IssuedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *Store) IsAccepted(ctx context.Context, externalID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM accepted_loads WHERE external_id = ?`, externalID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query accepted load: %w", err)
	}
	return exists > 0, nil
}

func (s *Store) CountAcceptedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM accepted_loads WHERE status = ? AND accepted_at >= ?`,
		string(domain.LoadStatusAccept), since.UnixNano()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count accepted loads: %w", err)
	}
	return count, nil
}

func (s *Store) ListAcceptedSince(ctx context.Context, since time.Time) ([]domain.AcceptedLoad, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT external_id, action_token, origin_location, origin_datetime, dest_location,
		       dest_datetime, consignee, weight_lbs, ship_mode, status, accepted_at
		FROM accepted_loads
		WHERE status = ? AND accepted_at >= ?
		ORDER BY accepted_at, external_id`,
		string(domain.LoadStatusAccept), since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query accepted loads: %w", err)
	}
	defer rows.Close()

	var loads []domain.AcceptedLoad
	for rows.Next() {
		var load domain.AcceptedLoad
		var status string
		var acceptedAt int64
		if err := rows.Scan(
			&load.ExternalID, &load.AcceptActionToken, &load.OriginLocation, &load.OriginDateTime,
			&load.DestLocation, &load.DestDateTime, &load.Consignee, &load.WeightLbs,
			&load.ShipMode, &status, &acceptedAt,
		); err != nil {
			return nil, fmt.Errorf("scan accepted load: %w", err)
		}
		load.Status = domain.LoadStatus(status)
		load.AcceptedAt = time.Unix(0, acceptedAt).UTC()
		loads = append(loads, load)
	}
	return loads, rows.Err()
}

// SaveAccepted inserts every load in one transaction.
func (s *Store) SaveAccepted(ctx context.Context, loads []domain.AcceptedLoad) error {
	if len(loads) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, load := range loads {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM accepted_loads WHERE external_id = ?`, load.ExternalID).Scan(&exists); err != nil {
			return fmt.Errorf("query accepted load: %w", err)
		}
		if exists > 0 {
			return fmt.Errorf("%w: %s", domain.ErrLoadAlreadyAccepted, load.ExternalID)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO accepted_loads (external_id, action_token, origin_location, origin_datetime,
				dest_location, dest_datetime, consignee, weight_lbs, ship_mode, status, accepted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			load.ExternalID, load.AcceptActionToken, load.OriginLocation, load.OriginDateTime,
			load.DestLocation, load.DestDateTime, load.Consignee, load.WeightLbs,
			load.ShipMode, string(load.Status), load.AcceptedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("insert accepted load %s: %w", load.ExternalID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit accepted loads: %w", err)
	}
	return nil
}

func (s *Store) GetSettings(ctx context.Context) (domain.WatcherSettings, error) {
	var settings domain.WatcherSettings
	err := s.db.QueryRowContext(ctx, `SELECT enabled, daily_threshold FROM watcher_settings WHERE id = 1`).
		Scan(&settings.Enabled, &settings.DailyThreshold)
	if errors.Is(err, sql.ErrNoRows) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watcher_settings (id, enabled, daily_threshold) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET enabled = excluded.enabled, daily_threshold = excluded.daily_threshold`,
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watcher_settings (id, enabled, daily_threshold) VALUES (1, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		defaults.Enabled, defaults.DailyThreshold)
	if err != nil {
		return domain.WatcherSettings{}, fmt.Errorf("init watcher settings: %w", err)
	}
	return s.GetSettings(ctx)
}

func (s *Store) GetRules(ctx context.Context) (domain.MatchingRules, error) {
	var destinations, consignees, shipModes string
	err := s.db.QueryRowContext(ctx, `SELECT destinations, consignees, ship_modes FROM matching_rules WHERE id = 1`).
		Scan(&destinations, &consignees, &shipModes)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MatchingRules{}, domain.ErrRulesNotFound
	}
	if err != nil {
		return domain.MatchingRules{}, fmt.Errorf("query matching rules: %w", err)
	}

	var rules domain.MatchingRules
	for _, field := range []struct {
		raw  string
		into *[]string
	}{
		{destinations, &rules.Destinations},
		{consignees, &rules.Consignees},
		{shipModes, &rules.ShipModes},
	} {
		if err := json.Unmarshal([]byte(field.raw), field.into); err != nil {
			return domain.MatchingRules{}, fmt.Errorf("decode matching rules: %w", err)
		}
	}
	return rules, nil
}

func (s *Store) SaveRules(ctx context.Context, rules domain.MatchingRules) error {
	encoded := make([]string, 0, 3)
	for _, patterns := range [][]string{rules.Destinations, rules.Consignees, rules.ShipModes} {
		if patterns == nil {
			patterns = []string{}
		}
		raw, err := json.Marshal(patterns)
		if err != nil {
			return fmt.Errorf("encode matching rules: %w", err)
		}
		encoded = append(encoded, string(raw))
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO matching_rules (id, destinations, consignees, ship_modes) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET destinations = excluded.destinations,
			consignees = excluded.consignees, ship_modes = excluded.ship_modes`,
		encoded[0], encoded[1], encoded[2])
	if err != nil {
		return fmt.Errorf("save matching rules: %w", err)
	}
	return nil
}

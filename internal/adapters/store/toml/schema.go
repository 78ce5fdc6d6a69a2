package toml

import (
	"fmt"
	"time"

	"github.com/bnema/truck-load-watch/internal/domain"
)

const currentSchemaVersion = 1

type fileSchema struct {
	Version  int                  `toml:"version"`
	Session  *sessionSchema       `toml:"session,omitempty"`
	Settings *settingsSchema      `toml:"settings,omitempty"`
	Rules    *rulesSchema         `toml:"rules,omitempty"`
	Loads    []acceptedLoadSchema `toml:"loads"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported watch file schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type sessionSchema struct {
	Cookies  map[string]string `toml:"cookies"`
	IssuedAt string            `toml:"issued_at"`
}

type settingsSchema struct {
	Enabled        bool `toml:"enabled"`
	DailyThreshold int  `toml:"daily_threshold"`
}

type rulesSchema struct {
	Destinations []string `toml:"destinations"`
	Consignees   []string `toml:"consignees"`
	ShipModes    []string `toml:"ship_modes"`
}

type acceptedLoadSchema struct {
	ExternalID     string `toml:"external_id"`
	ActionToken    string `toml:"action_token"`
	OriginLocation string `toml:"origin_location"`
	OriginDateTime string `toml:"origin_datetime"`
	DestLocation   string `toml:"dest_location"`
	DestDateTime   string `toml:"dest_datetime"`
	Consignee      string `toml:"consignee"`
	WeightLbs      int    `toml:"weight_lbs"`
	ShipMode       string `toml:"ship_mode"`
	Status         string `toml:"status"`
	AcceptedAt     string `toml:"accepted_at"`
}

func toLoadSchema(load domain.AcceptedLoad) acceptedLoadSchema {
	return acceptedLoadSchema{
		ExternalID:     load.ExternalID,
		ActionToken:    load.AcceptActionToken,
		OriginLocation: load.OriginLocation,
		OriginDateTime: load.OriginDateTime,
		DestLocation:   load.DestLocation,
		DestDateTime:   load.DestDateTime,
		Consignee:      load.Consignee,
		WeightLbs:      load.WeightLbs,
		ShipMode:       load.ShipMode,
		Status:         string(load.Status),
		AcceptedAt:     formatTime(load.AcceptedAt),
	}
}

func fromLoadSchema(entry acceptedLoadSchema) domain.AcceptedLoad {
	return domain.AcceptedLoad{
		LoadOffer: domain.LoadOffer{
			ExternalID:        entry.ExternalID,
			OriginLocation:    entry.OriginLocation,
			OriginDateTime:    entry.OriginDateTime,
			DestLocation:      entry.DestLocation,
			DestDateTime:      entry.DestDateTime,
			Consignee:         entry.Consignee,
			WeightLbs:         entry.WeightLbs,
			ShipMode:          entry.ShipMode,
			AcceptActionToken: entry.ActionToken,
		},
		Status:     domain.LoadStatus(entry.Status),
		AcceptedAt: parseTime(entry.AcceptedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

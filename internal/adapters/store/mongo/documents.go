package mongo

import (
	"time"

	"github.com/bnema/truck-load-watch/internal/domain"
)

// Settings documents share one collection and are told apart by key.
const (
	sessionDocKey   = "cookies"
	statusDocKey    = "status"
	thresholdDocKey = "load-threshold"
	logicDocKey     = "logic"
)

type sessionDoc struct {
	Key     string            `bson:"key"`
	Cookies map[string]string `bson:"cookies"`
	Dt      time.Time         `bson:"dt"`
}

type loadDoc struct {
	DSM         dsm       `bson:"dsm"`
	ActionID    string    `bson:"action_id"`
	OriginLoc   string    `bson:"origin_loc"`
	OriginDt    string    `bson:"origin_dt"`
	DestLoc     string    `bson:"dest_loc"`
	DestDt      string    `bson:"dest_dt"`
	Consignee   string    `bson:"consignee"`
	Weight      int       `bson:"weight"`
	ExcShipMode string    `bson:"exc_ship_mode"`
	Status      string    `bson:"status"`
	Dt          time.Time `bson:"dt"`
}

type statusDoc struct {
	Key     string `bson:"key"`
	Enabled bool   `bson:"enabled"`
}

type thresholdDoc struct {
	Key       string `bson:"key"`
	Threshold int    `bson:"threshold"`
}

type logicDoc struct {
	Key          string   `bson:"key"`
	Destinations []string `bson:"destinations"`
	Consignees   []string `bson:"consignees"`
	ShipModes    []string `bson:"ship_modes"`
}

func toLoadDoc(load domain.AcceptedLoad) loadDoc {
	return loadDoc{
		DSM:         dsm(load.ExternalID),
		ActionID:    load.AcceptActionToken,
		OriginLoc:   load.OriginLocation,
		OriginDt:    load.OriginDateTime,
		DestLoc:     load.DestLocation,
		DestDt:      load.DestDateTime,
		Consignee:   load.Consignee,
		Weight:      load.WeightLbs,
		ExcShipMode: load.ShipMode,
		Status:      string(load.Status),
		Dt:          load.AcceptedAt.UTC(),
	}
}

func (d loadDoc) toDomain() domain.AcceptedLoad {
	return domain.AcceptedLoad{
		LoadOffer: domain.LoadOffer{
			ExternalID:        string(d.DSM),
			OriginLocation:    d.OriginLoc,
			OriginDateTime:    d.OriginDt,
			DestLocation:      d.DestLoc,
			DestDateTime:      d.DestDt,
			Consignee:         d.Consignee,
			WeightLbs:         d.Weight,
			ShipMode:          d.ExcShipMode,
			AcceptActionToken: d.ActionID,
		},
		Status:     domain.LoadStatus(d.Status),
		AcceptedAt: d.Dt.UTC(),
	}
}

package domain

import "time"

type LoadStatus string

const LoadStatusAccept LoadStatus = "accept"

// LoadOffer is one row of the market listing. The origin and destination
// fields are already split out of the combined "<location> P:<datetime>"
// and "<location> D:<datetime>" cells.
type LoadOffer struct {
	ExternalID        string
	OriginLocation    string
	OriginDateTime    string
	DestLocation      string
	DestDateTime      string
	Consignee         string
	WeightLbs         int
	ShipMode          string
	AcceptActionToken string
}

type AcceptedLoad struct {
	LoadOffer
	Status     LoadStatus
	AcceptedAt time.Time
}

func NewAcceptedLoad(offer LoadOffer, acceptedAt time.Time) AcceptedLoad {
	return AcceptedLoad{
		LoadOffer:  offer,
		Status:     LoadStatusAccept,
		AcceptedAt: acceptedAt.UTC(),
	}
}

type Listing struct {
	Offers []LoadOffer
	Fields HiddenFields
}

type AcceptanceNotice struct {
	CycleID string
	Loads   []AcceptedLoad
}

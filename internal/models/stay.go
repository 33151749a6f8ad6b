package models

import "time"

// Stay — дедуплицированная запись о найденном жилье. Одна строка на
// identity hash; цена/рейтинг мутируют при каждом новом наблюдении.
type Stay struct {
	ID           uint64
	IdentityHash string
	Title        string
	Price        float64
	Currency     string
	Rating       float64
	Location     string
	URL          string
	ImageURL     *string
	Description  *string
	Amenities    []string
	Source       string
	FirstSeen    time.Time
	LastSeen     time.Time
	TimesSeen    int32
	Notified     bool
}

// Candidate is an unvalidated listing produced by a source fetch.
// It has no identity until the store hashes it.
type Candidate struct {
	Title       string
	Price       float64
	Currency    string
	Rating      float64
	Location    string
	URL         string
	ImageURL    *string
	Description *string
	Amenities   []string
	Source      string
}

type PriceObservation struct {
	ID         uint64
	StayID     uint64
	Price      float64
	Currency   string
	ObservedAt time.Time
}

// PriceDropReport compares the most recent observation of a stay against the
// most recent prior one inside the lookback window.
type PriceDropReport struct {
	StayID        uint64
	Title         string
	Location      string
	Source        string
	CurrentPrice  float64
	PreviousPrice float64
	Currency      string
	CurrentAt     time.Time
	PreviousAt    time.Time
	DropPercent   float64
}

type SearchCriteria struct {
	Destination   string    `json:"destination" yaml:"destination"`
	CheckIn       time.Time `json:"check_in" yaml:"check_in"`
	CheckOut      time.Time `json:"check_out" yaml:"check_out"`
	Guests        int       `json:"guests" yaml:"guests"`
	MaxPrice      float64   `json:"max_price" yaml:"max_price"`
	Currency      string    `json:"currency" yaml:"currency"`
	PropertyTypes []string  `json:"property_types" yaml:"property_types"`
	MinRating     float64   `json:"min_rating" yaml:"min_rating"`
}

type SearchRecord struct {
	ID           uint64
	CriteriaHash string
	ResultsCount int
	CriteriaJSON string
	ExecutionMs  int64
	CreatedAt    time.Time
}

const (
	NotificationKindNewStays   = "NEW_STAYS"
	NotificationKindPriceDrops = "PRICE_DROPS"
	NotificationKindTest       = "TEST"
)

type NotificationRecord struct {
	ID        uint64
	StayIDs   []uint64
	Kind      string
	Success   bool
	Error     *string
	CreatedAt time.Time
}

type Statistics struct {
	TotalSearches  int64            `json:"totalSearches"`
	AvgResults     float64          `json:"avgResults"`
	CountsBySource map[string]int64 `json:"countsBySource"`
}

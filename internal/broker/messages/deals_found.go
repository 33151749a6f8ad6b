package messages

import "time"

const (
	DealKindNewStays   = "NEW_STAYS"
	DealKindPriceDrops = "PRICE_DROPS"
)

// DealsFound публикуется агентом в Kafka после каждого прохода с находками.
// Потребители (бот, дашборд) реагируют на событие, не опрашивая базу.
type DealsFound struct {
	Kind    string    `json:"kind"`
	FoundAt time.Time `json:"found_at"`

	Stays []DealStay `json:"stays,omitempty"`
	Drops []DealDrop `json:"drops,omitempty"`
}

type DealStay struct {
	StayID   uint64  `json:"stay_id"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	Rating   float64 `json:"rating,omitempty"`
	Location string  `json:"location"`
	URL      string  `json:"url,omitempty"`
	Source   string  `json:"source"`
}

type DealDrop struct {
	StayID        uint64    `json:"stay_id"`
	Title         string    `json:"title"`
	Location      string    `json:"location"`
	Source        string    `json:"source"`
	CurrentPrice  float64   `json:"current_price"`
	PreviousPrice float64   `json:"previous_price"`
	Currency      string    `json:"currency"`
	DropPercent   float64   `json:"drop_percent"`
	CurrentAt     time.Time `json:"current_at"`
	PreviousAt    time.Time `json:"previous_at"`
}

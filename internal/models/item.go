package models

import (
	"github.com/uptrace/bun"
)

// Item is the physical row of the events_register table. Participant records
// and counters share the table and the partition: counters only use Count,
// records use every other attribute.
type Item struct {
	bun.BaseModel `bun:"table:events_register"`

	EventName   string `bun:"event_name,pk" json:"event_name"`
	SortKey     string `bun:"email,pk" json:"email"`
	Paid        bool   `bun:"paid,notnull" json:"paid"`
	CheckedIn   bool   `bun:"checked_in,notnull" json:"checked_in"`
	VehicleType string `bun:"vehicle_type,nullzero" json:"vehicle_type,omitempty"`
	PhoneNumber string `bun:"phone_number,nullzero" json:"phone_number,omitempty"`
	Metadata    string `bun:"metadata,nullzero" json:"metadata,omitempty"`
	Count       int64  `bun:"count,notnull" json:"count"`
}

// NewCounterItem builds the row that stores a counter value.
func NewCounterItem(eventName, counterName string, count int64) Item {
	return Item{
		EventName: eventName,
		SortKey:   counterName,
		Count:     count,
	}
}

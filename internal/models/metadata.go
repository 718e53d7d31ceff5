package models

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	PersonDriver = "driver"
	PersonGuest  = "guest"
)

type Person struct {
	Type           string `json:"type"`
	Name           string `json:"name,omitempty"`
	DriversLicense string `json:"driversLicense,omitempty"`
	PhoneNumber    string `json:"phoneNumber,omitempty"`
	CC             string `json:"cc,omitempty"`
}

type Vehicle struct {
	Plate string `json:"plate,omitempty"`
	Make  string `json:"make,omitempty"`
	Model string `json:"model,omitempty"`
}

type PaymentInfo struct {
	Amount      *float64   `json:"amount,omitempty"`
	ByWho       string     `json:"byWho,omitempty"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
	PaymentFile string     `json:"paymentFile,omitempty"`
}

type CheckIn struct {
	CheckInAt *time.Time `json:"checkInAt,omitempty"`
	ByWho     string     `json:"byWho,omitempty"`
}

// Metadata is the structured blob stored in the metadata column of a record.
type Metadata struct {
	Vehicle      *Vehicle     `json:"vehicle,omitempty"`
	People       []Person     `json:"people"`
	PhoneNumber  string       `json:"phoneNumber,omitempty"`
	RegisteredAt *time.Time   `json:"registeredAt,omitempty"`
	CheckIn      *CheckIn     `json:"checkIn,omitempty"`
	RawWebhook   string       `json:"rawWebhook,omitempty"`
	PaymentInfo  *PaymentInfo `json:"paymentInfo,omitempty"`
	Comment      string       `json:"comment,omitempty"`

	// Deprecated: CommentsHistory only receives previous comments. Read ChangeHistory instead.
	CommentsHistory []string      `json:"commentsHistory,omitempty"`
	ChangeHistory   []ChangeEntry `json:"changeHistory,omitempty"`
}

// ParticipantCount is the driver plus the guests, never less than one.
func (m *Metadata) ParticipantCount() int {
	if m == nil || len(m.People) == 0 {
		return 1
	}
	return len(m.People)
}

// EnsureDriver keeps the people list non-empty with the driver first.
func (m *Metadata) EnsureDriver() {
	if len(m.People) == 0 {
		m.People = []Person{{Type: PersonDriver, PhoneNumber: m.PhoneNumber}}
		return
	}
	m.People[0].Type = PersonDriver
	for i := 1; i < len(m.People); i++ {
		if m.People[i].Type == "" || m.People[i].Type == PersonDriver {
			m.People[i].Type = PersonGuest
		}
	}
}

func ParseMetadata(raw string) (*Metadata, error) {
	var md Metadata
	if raw == "" {
		return &md, nil
	}
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %v: %w", err, ErrSerialization)
	}
	return &md, nil
}

func (m *Metadata) Encode() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %v: %w", err, ErrSerialization)
	}
	return string(b), nil
}

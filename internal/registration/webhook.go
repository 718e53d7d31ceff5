package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"ms-registration/internal/models"
)

var guestSeparator = regexp.MustCompile(`<BR/>|\n|,`)

// Submission is the payload posted by the registration form.
type Submission struct {
	SubmittedAt  *FormTime `json:"submittedAt,omitempty"`
	Email        string    `json:"email"`
	DriverName   string    `json:"driverName"`
	DriverCc     string    `json:"driverCc"`
	Address      string    `json:"address"`
	PhoneNumber  string    `json:"phoneNumber"`
	VehicleType  string    `json:"vehicleType"`
	VehiclePlate string    `json:"vehiclePlate"`
	VehicleBrand string    `json:"vehicleBrand"`
	GuestsNumber int       `json:"guestsNumber"`
	GuestsNames  string    `json:"guestsNames"`
	GuestsCc     string    `json:"guestsCc"`
	Payment      string    `json:"payment"`
	Comment      string    `json:"comment"`
}

// FormTime accepts RFC 3339 strings or epoch milliseconds.
type FormTime struct {
	time.Time
}

func (t *FormTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
		t.Time = parsed.UTC()
		return nil
	}
	ms, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	t.Time = time.UnixMilli(ms).UTC()
	return nil
}

// ParseWebhook turns a raw form submission into a Registration.
func ParseWebhook(body []byte) (Registration, error) {
	var sub Submission
	if err := json.Unmarshal(body, &sub); err != nil {
		return Registration{}, fmt.Errorf("invalid webhook payload: %v: %w", err, models.ErrValidation)
	}
	if strings.TrimSpace(sub.Email) == "" {
		return Registration{}, fmt.Errorf("webhook email is required: %w", models.ErrValidation)
	}

	reg := Registration{
		Email:       sub.Email,
		VehicleType: string(models.NormalizeVehicleType(sub.VehicleType)),
		People:      webhookPeople(sub),
		PhoneNumber: strings.TrimSpace(sub.PhoneNumber),
		Comment:     sub.Comment,
		PaymentFile: strings.TrimSpace(sub.Payment),
		RawWebhook:  string(body),
		Source:      "webhook",
	}
	if sub.VehiclePlate != "" || sub.VehicleBrand != "" {
		reg.Vehicle = &models.Vehicle{Plate: strings.TrimSpace(sub.VehiclePlate), Make: strings.TrimSpace(sub.VehicleBrand)}
	}
	if sub.SubmittedAt != nil && !sub.SubmittedAt.IsZero() {
		at := sub.SubmittedAt.Time
		reg.RegisteredAt = &at
	}
	return reg, nil
}

func webhookPeople(sub Submission) []models.Person {
	people := []models.Person{{
		Type:        models.PersonDriver,
		Name:        strings.TrimSpace(sub.DriverName),
		PhoneNumber: strings.TrimSpace(sub.PhoneNumber),
		CC:          strings.TrimSpace(sub.DriverCc),
	}}

	names := splitGuests(sub.GuestsNames)
	ccs := splitGuests(sub.GuestsCc)
	for i, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		guest := models.Person{Type: models.PersonGuest, Name: name}
		if i < len(ccs) {
			guest.CC = strings.TrimSpace(ccs[i])
		}
		people = append(people, guest)
	}
	return people
}

func splitGuests(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return guestSeparator.Split(raw, -1)
}

// RegisterWebhook normalises a form submission and registers it.
func (s *Service) RegisterWebhook(ctx context.Context, eventID string, body []byte) (*models.Record, error) {
	reg, err := ParseWebhook(body)
	if err != nil {
		return nil, err
	}
	return s.Register(ctx, eventID, reg)
}

package registration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ms-registration/internal/counters"
	"ms-registration/internal/models"
)

// Registration is a normalised sign-up for an event.
type Registration struct {
	Email        string
	VehicleType  string
	People       []models.Person
	Vehicle      *models.Vehicle
	PhoneNumber  string
	Comment      string
	PaymentFile  string
	RawWebhook   string
	RegisteredAt *time.Time

	// Source names the channel in the history entry, "webhook" when empty.
	Source string
}

// Register creates a participant or, when the key already exists, merges the
// new submission into it. Paid and check-in state, payment confirmation and
// both history lists survive a re-registration.
func (s *Service) Register(ctx context.Context, eventID string, in Registration) (*models.Record, error) {
	eventID = strings.TrimSpace(eventID)
	email := NormalizeKey(in.Email)
	if eventID == "" {
		return nil, fmt.Errorf("event is required: %w", models.ErrValidation)
	}
	if email == "" {
		return nil, fmt.Errorf("email is required: %w", models.ErrValidation)
	}
	if counters.IsCounterKey(email) {
		return nil, fmt.Errorf("email %q is reserved: %w", email, models.ErrValidation)
	}
	source := in.Source
	if source == "" {
		source = "webhook"
	}

	item, err := s.Store.Get(ctx, eventID, email)
	if err != nil {
		return nil, fmt.Errorf("failed to load participant %s: %w", email, err)
	}

	md := s.metadataFrom(in)
	rec := &models.Record{
		EventName:   eventID,
		UserEmail:   email,
		VehicleType: models.NormalizeVehicleType(in.VehicleType),
		Metadata:    md,
	}

	var before *counters.State
	if item == nil {
		md.Comment = in.Comment
		if err := s.History.Record(md, models.ActionUserRegistered, "User registered via "+source); err != nil {
			return nil, err
		}
	} else {
		existing, err := models.RecordFromItem(*item)
		if err != nil {
			return nil, fmt.Errorf("participant %s: %w", email, err)
		}
		st := counters.StateOf(existing)
		before = &st
		if err := s.merge(rec, existing, in, source); err != nil {
			return nil, err
		}
	}

	if err := s.commit(ctx, rec, before, item == nil); err != nil {
		return nil, err
	}
	if before == nil {
		s.Logger.LogTransition("REGISTER", eventID, email, fmt.Sprintf("%s with %d people", rec.VehicleType, rec.Participants()))
	} else {
		s.Logger.LogTransition("REREGISTER", eventID, email, fmt.Sprintf("%s with %d people", rec.VehicleType, rec.Participants()))
	}

	s.notify(ctx, TemplateUserRegistration, rec)
	return rec, nil
}

func (s *Service) metadataFrom(in Registration) *models.Metadata {
	registeredAt := in.RegisteredAt
	if registeredAt == nil {
		now := s.now()
		registeredAt = &now
	}
	md := &models.Metadata{
		People:       append([]models.Person(nil), in.People...),
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
		RegisteredAt: registeredAt,
		RawWebhook:   in.RawWebhook,
	}
	if in.Vehicle != nil {
		v := *in.Vehicle
		md.Vehicle = &v
	}
	if in.PaymentFile != "" {
		md.PaymentInfo = &models.PaymentInfo{PaymentFile: in.PaymentFile}
	}
	md.EnsureDriver()
	if md.People[0].PhoneNumber == "" {
		md.People[0].PhoneNumber = md.PhoneNumber
	}
	return md
}

func (s *Service) merge(rec, existing *models.Record, in Registration, source string) error {
	md, old := rec.Metadata, existing.Metadata

	rec.Paid = existing.Paid
	rec.CheckedIn = existing.CheckedIn
	md.CheckIn = old.CheckIn
	md.ChangeHistory = old.ChangeHistory
	md.CommentsHistory = old.CommentsHistory
	md.Comment = old.Comment

	if old.PaymentInfo != nil {
		pi := *old.PaymentInfo
		if in.PaymentFile != "" {
			pi.PaymentFile = in.PaymentFile
		}
		md.PaymentInfo = &pi
	}

	if err := s.History.Record(md, models.ActionUserRegistered, "User re-registered with updated information via "+source); err != nil {
		return err
	}
	if _, err := s.History.ApplyComment(md, in.Comment); err != nil {
		return err
	}
	return nil
}

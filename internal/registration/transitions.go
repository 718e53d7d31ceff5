package registration

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"ms-registration/internal/counters"
	"ms-registration/internal/history"
	"ms-registration/internal/models"
)

func (s *Service) CheckIn(ctx context.Context, eventID, email, who string) (*models.Record, error) {
	rec, err := s.Get(ctx, eventID, email)
	if err != nil {
		return nil, err
	}
	if rec.CheckedIn {
		return nil, fmt.Errorf("participant %s: %w", rec.UserEmail, models.ErrAlreadyCheckedIn)
	}
	who = actor(who)
	before := counters.StateOf(rec)

	now := s.now()
	rec.CheckedIn = true
	rec.Metadata.CheckIn = &models.CheckIn{CheckInAt: &now, ByWho: who}
	if err := s.History.Record(rec.Metadata, models.ActionCheckInAdded, "User checked in by "+who); err != nil {
		return nil, err
	}

	if err := s.commit(ctx, rec, &before, false); err != nil {
		return nil, err
	}
	s.Logger.LogTransition("CHECKIN", rec.EventName, rec.UserEmail, "by "+who)
	return rec, nil
}

func (s *Service) CancelCheckIn(ctx context.Context, eventID, email, who string) (*models.Record, error) {
	rec, err := s.Get(ctx, eventID, email)
	if err != nil {
		return nil, err
	}
	if !rec.CheckedIn {
		return nil, fmt.Errorf("participant %s: %w", rec.UserEmail, models.ErrNotCheckedIn)
	}
	who = actor(who)
	before := counters.StateOf(rec)

	rec.CheckedIn = false
	rec.Metadata.CheckIn = nil
	if err := s.History.Record(rec.Metadata, models.ActionCheckInRemoved, "Check-in cancelled by "+who); err != nil {
		return nil, err
	}

	if err := s.commit(ctx, rec, &before, false); err != nil {
		return nil, err
	}
	s.Logger.LogTransition("CHECKOUT", rec.EventName, rec.UserEmail, "by "+who)
	return rec, nil
}

// ConfirmPayment marks the participant paid. Confirming an already paid
// participant refreshes the payment details without moving the paid counters.
func (s *Service) ConfirmPayment(ctx context.Context, eventID, email string, req models.PaymentRequest) (*models.Record, error) {
	rec, err := s.Get(ctx, eventID, email)
	if err != nil {
		return nil, err
	}
	before := counters.StateOf(rec)

	now := s.now()
	pi := rec.Metadata.PaymentInfo
	if pi == nil {
		pi = &models.PaymentInfo{}
	}
	pi.ConfirmedAt = &now
	pi.ByWho = req.ByWho
	pi.Amount = req.Amount
	if strings.TrimSpace(req.PaymentFile) != "" {
		pi.PaymentFile = req.PaymentFile
	}
	rec.Metadata.PaymentInfo = pi
	rec.Paid = true

	amount := "unknown amount"
	if req.Amount != nil {
		amount = strconv.FormatFloat(*req.Amount, 'f', 2, 64)
	}
	byWho := req.ByWho
	if strings.TrimSpace(byWho) == "" {
		byWho = "system"
	}
	desc := fmt.Sprintf("Payment confirmed: %s by %s", amount, history.Sanitize(byWho))
	if err := s.History.Record(rec.Metadata, models.ActionPaymentAdded, desc); err != nil {
		return nil, err
	}

	if err := s.commit(ctx, rec, &before, false); err != nil {
		return nil, err
	}
	s.Logger.LogTransition("PAYMENT", rec.EventName, rec.UserEmail, desc)
	return rec, nil
}

// UpdateMetadata applies the supplied fields of req. Tracked field changes are
// recorded as one USER_UPDATED entry and comment changes as COMMENT_UPDATED.
func (s *Service) UpdateMetadata(ctx context.Context, eventID, email string, req models.UpdateRequest) (*models.Record, error) {
	rec, err := s.Get(ctx, eventID, email)
	if err != nil {
		return nil, err
	}
	before := counters.StateOf(rec)
	oldTracked := history.TrackedOf(rec)
	md := rec.Metadata

	var commentChanged bool
	if in := req.Metadata; in != nil {
		if len(in.People) > 0 {
			mergePeople(md, in.People)
		}
		if in.PhoneNumber != nil {
			md.PhoneNumber = strings.TrimSpace(*in.PhoneNumber)
			md.EnsureDriver()
			md.People[0].PhoneNumber = md.PhoneNumber
		}
		if in.Vehicle != nil {
			mergeVehicle(md, *in.Vehicle)
		}
		if in.PaymentInfo != nil && in.PaymentInfo.PaymentFile != nil {
			if md.PaymentInfo == nil {
				md.PaymentInfo = &models.PaymentInfo{}
			}
			md.PaymentInfo.PaymentFile = *in.PaymentInfo.PaymentFile
		}
		if in.Comment != nil {
			if commentChanged, err = s.History.ApplyComment(md, *in.Comment); err != nil {
				return nil, err
			}
		}
	}
	if req.VehicleType != nil {
		rec.VehicleType = models.NormalizeVehicleType(*req.VehicleType)
	}
	if req.Paid != nil {
		rec.Paid = *req.Paid
	}

	updated, err := s.History.RecordDiff(md, oldTracked, history.TrackedOf(rec))
	if err != nil {
		return nil, err
	}
	if !updated && !commentChanged {
		return rec, nil
	}

	if err := s.commit(ctx, rec, &before, false); err != nil {
		return nil, err
	}
	s.Logger.LogTransition("UPDATE", rec.EventName, rec.UserEmail, fmt.Sprintf("fields=%t comment=%t", updated, commentChanged))
	return rec, nil
}

// mergePeople updates the driver's name, cc and licence and, when guests are
// supplied, replaces the guest list.
func mergePeople(md *models.Metadata, incoming []models.Person) {
	md.EnsureDriver()
	driver := md.People[0]
	in := incoming[0]
	if in.Name != "" {
		driver.Name = in.Name
	}
	if in.CC != "" {
		driver.CC = in.CC
	}
	if in.DriversLicense != "" {
		driver.DriversLicense = in.DriversLicense
	}

	people := []models.Person{driver}
	if len(incoming) > 1 {
		for _, g := range incoming[1:] {
			people = append(people, models.Person{Type: models.PersonGuest, Name: g.Name, CC: g.CC, DriversLicense: g.DriversLicense})
		}
	} else {
		people = append(people, md.People[1:]...)
	}
	md.People = people
}

func mergeVehicle(md *models.Metadata, in models.Vehicle) {
	v := models.Vehicle{}
	if md.Vehicle != nil {
		v = *md.Vehicle
	}
	if in.Plate != "" {
		v.Plate = in.Plate
	}
	if in.Make != "" {
		v.Make = in.Make
	}
	if in.Model != "" {
		v.Model = in.Model
	}
	md.Vehicle = &v
}

func actor(who string) string {
	who = strings.TrimSpace(who)
	if who == "" {
		return "system"
	}
	return history.Sanitize(who)
}

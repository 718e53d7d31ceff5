package registration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ms-registration/internal/counters"
	"ms-registration/internal/history"
	"ms-registration/internal/logger"
	"ms-registration/internal/metrics"
	"ms-registration/internal/models"
	"ms-registration/internal/store"
)

const (
	TemplateUserRegistration = "userRegistration"
	TemplateAlmostThere      = "almostThere"
)

// Notifier is told about a participant after registration or on request.
type Notifier interface {
	Notify(ctx context.Context, template string, rec *models.Record) error
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, *models.Record) error { return nil }

// Service runs the participant state machine: it loads a record, applies a
// transition with its audit entries, persists it and then moves the counters
// by the difference the transition made.
type Service struct {
	Store    store.Store
	Ledger   *counters.Ledger
	History  *history.Recorder
	Notifier Notifier
	Logger   *logger.Logger
	Now      func() time.Time
}

func NewService(s store.Store, ledger *counters.Ledger, notifier Notifier, l *logger.Logger) *Service {
	if l == nil {
		l = logger.Discard()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if ledger == nil {
		ledger = counters.NewLedger(s, l)
	}
	svc := &Service{
		Store:    s,
		Ledger:   ledger,
		Notifier: notifier,
		Logger:   l,
		Now:      time.Now,
	}
	svc.History = &history.Recorder{Now: svc.now}
	return svc
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// NormalizeKey is the canonical form of a participant key.
func NormalizeKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) load(ctx context.Context, eventID, email string) (*models.Record, error) {
	if eventID == "" || email == "" || counters.IsCounterKey(email) {
		return nil, fmt.Errorf("participant %q in event %q: %w", email, eventID, models.ErrNotFound)
	}
	item, err := s.Store.Get(ctx, eventID, email)
	if err != nil {
		return nil, fmt.Errorf("failed to load participant %s: %w", email, err)
	}
	if item == nil {
		return nil, fmt.Errorf("participant %q in event %q: %w", email, eventID, models.ErrNotFound)
	}
	rec, err := models.RecordFromItem(*item)
	if err != nil {
		return nil, fmt.Errorf("participant %s: %w", email, err)
	}
	if rec.Metadata == nil {
		rec.Metadata = &models.Metadata{}
	}
	return rec, nil
}

// commit persists rec and applies the counter deltas of the transition from
// before. Counters are only touched once the record write succeeded.
func (s *Service) commit(ctx context.Context, rec *models.Record, before *counters.State, create bool) error {
	item, err := rec.Item()
	if err != nil {
		return err
	}
	if create {
		err = s.Store.Put(ctx, item)
	} else {
		err = s.Store.Update(ctx, item)
	}
	if err != nil {
		return fmt.Errorf("failed to save participant %s: %w", rec.UserEmail, err)
	}
	s.Logger.LogDatabase("SAVE", rec.EventName, rec.UserEmail)

	deltas := counters.Diff(before, counters.StateOf(rec))
	if err := s.Ledger.AdjustMany(ctx, rec.EventName, deltas); err != nil {
		s.Logger.Error("COUNTER", fmt.Sprintf("[%s] counters not updated for %s: %v", rec.EventName, rec.UserEmail, err))
		return fmt.Errorf("participant %s saved but counters not updated: %w", rec.UserEmail, err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, eventID, email string) (*models.Record, error) {
	return s.load(ctx, strings.TrimSpace(eventID), NormalizeKey(email))
}

// GetByPhoneNumber returns the first participant, in key order, registered with phone.
func (s *Service) GetByPhoneNumber(ctx context.Context, eventID, phone string) (*models.Record, error) {
	eventID, phone = strings.TrimSpace(eventID), strings.TrimSpace(phone)
	if phone == "" {
		return nil, fmt.Errorf("phone number is required: %w", models.ErrValidation)
	}
	items, err := s.Store.Scan(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to scan event %s: %w", eventID, err)
	}
	for _, item := range items {
		if counters.IsCounterKey(item.SortKey) || item.PhoneNumber != phone {
			continue
		}
		return models.RecordFromItem(item)
	}
	return nil, fmt.Errorf("no participant with phone %q in event %q: %w", phone, eventID, models.ErrNotFound)
}

func (s *Service) Counters(ctx context.Context, eventID string) (counters.Snapshot, error) {
	return s.Ledger.Snapshot(ctx, strings.TrimSpace(eventID))
}

// ResendNotification publishes a notification template for an existing participant.
func (s *Service) ResendNotification(ctx context.Context, eventID, email, template string) error {
	switch template {
	case TemplateUserRegistration, TemplateAlmostThere:
	default:
		return fmt.Errorf("unknown template %q: %w", template, models.ErrNotFound)
	}
	rec, err := s.Get(ctx, eventID, email)
	if err != nil {
		return err
	}
	if err := s.Notifier.Notify(ctx, template, rec); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to send %s to %s: %w", template, rec.UserEmail, err)
	}
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	return nil
}

func (s *Service) notify(ctx context.Context, template string, rec *models.Record) {
	if err := s.Notifier.Notify(ctx, template, rec); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		s.Logger.Error("NOTIFY", fmt.Sprintf("[%s] %s for %s failed: %v", rec.EventName, template, rec.UserEmail, err))
		return
	}
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
}

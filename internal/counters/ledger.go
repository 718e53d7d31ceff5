package counters

import (
	"context"
	"fmt"
	"sort"

	"ms-registration/internal/logger"
	"ms-registration/internal/metrics"
	"ms-registration/internal/models"
	"ms-registration/internal/store"

	"golang.org/x/sync/errgroup"
)

// Ledger keeps the denormalised counters next to the records. Adjustments are
// read-modify-write without a lock: concurrent writers on the same counter can
// lose updates, which reconciliation repairs.
type Ledger struct {
	Store  store.Store
	Logger *logger.Logger
}

func NewLedger(s store.Store, l *logger.Logger) *Ledger {
	if l == nil {
		l = logger.Discard()
	}
	return &Ledger{Store: s, Logger: l}
}

// Adjust applies delta to a counter. A missing counter starts at zero and
// decrements never take a value below zero.
func (l *Ledger) Adjust(ctx context.Context, eventID string, name Name, delta int64) error {
	if delta == 0 {
		return nil
	}
	if !IsCounterKey(string(name)) {
		return fmt.Errorf("unknown counter %q: %w", name, models.ErrValidation)
	}

	current, err := l.Store.Get(ctx, eventID, string(name))
	if err != nil {
		metrics.CounterErrorsTotal.Inc()
		return fmt.Errorf("failed to read counter %s: %w", name, err)
	}

	var before int64
	if current != nil {
		before = current.Count
	}
	after := before + delta
	if after < 0 {
		if current == nil {
			l.Logger.Warn("COUNTER", fmt.Sprintf("[%s] %s missing, decrement %d starts it at 0", eventID, name, delta))
		} else {
			l.Logger.Warn("COUNTER", fmt.Sprintf("[%s] %s would go negative (%d%+d), clamped to 0", eventID, name, before, delta))
		}
		metrics.CounterClampsTotal.WithLabelValues(string(name)).Inc()
		after = 0
	}

	if err := l.Store.Put(ctx, models.NewCounterItem(eventID, string(name), after)); err != nil {
		metrics.CounterErrorsTotal.Inc()
		return fmt.Errorf("failed to write counter %s: %w", name, err)
	}
	metrics.CounterAdjustmentsTotal.WithLabelValues(string(name)).Inc()
	l.Logger.LogCounter(eventID, string(name), before, after)
	return nil
}

// AdjustMany applies independent adjustments concurrently. A failure can leave
// the others applied; the first error is returned.
func (l *Ledger) AdjustMany(ctx context.Context, eventID string, deltas Deltas) error {
	names := make([]Name, 0, len(deltas))
	for name, v := range deltas {
		if v != 0 {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name, delta := name, deltas[name]
		g.Go(func() error {
			return l.Adjust(gctx, eventID, name, delta)
		})
	}
	return g.Wait()
}

// Set overwrites a counter without reading it.
func (l *Ledger) Set(ctx context.Context, eventID string, name Name, value int64) error {
	if !IsCounterKey(string(name)) {
		return fmt.Errorf("unknown counter %q: %w", name, models.ErrValidation)
	}
	if value < 0 {
		value = 0
	}
	if err := l.Store.Put(ctx, models.NewCounterItem(eventID, string(name), value)); err != nil {
		metrics.CounterErrorsTotal.Inc()
		return fmt.Errorf("failed to set counter %s: %w", name, err)
	}
	return nil
}

// SetAll overwrites every counter of the vocabulary from a snapshot.
func (l *Ledger) SetAll(ctx context.Context, eventID string, s Snapshot) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range registry {
		name, value := name, s.Get(name)
		g.Go(func() error {
			return l.Set(gctx, eventID, name, value)
		})
	}
	return g.Wait()
}

// Snapshot reads every counter of the event. Missing counters read as zero.
func (l *Ledger) Snapshot(ctx context.Context, eventID string) (Snapshot, error) {
	values := make([]int64, len(registry))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range registry {
		i, name := i, name
		g.Go(func() error {
			item, err := l.Store.Get(gctx, eventID, string(name))
			if err != nil {
				metrics.CounterErrorsTotal.Inc()
				return fmt.Errorf("failed to read counter %s: %w", name, err)
			}
			if item != nil {
				values[i] = item.Count
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	var s Snapshot
	for i, name := range registry {
		s.set(name, values[i])
	}
	return s, nil
}

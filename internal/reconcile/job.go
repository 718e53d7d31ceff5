package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ms-registration/internal/counters"
	"ms-registration/internal/logger"
	"ms-registration/internal/metrics"
	"ms-registration/internal/models"
	"ms-registration/internal/store"

	"github.com/google/uuid"
)

const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

type Result struct {
	RunID          string            `json:"runId"`
	EventID        string            `json:"eventId"`
	Status         string            `json:"status"`
	Before         counters.Snapshot `json:"before"`
	After          counters.Snapshot `json:"after"`
	RecordsScanned int               `json:"recordsScanned"`
	Fallbacks      int               `json:"fallbacks"`
	Message        string            `json:"message"`
}

// Job recomputes an event's counters from its records and overwrites them.
// It is the only path that repairs counter drift.
type Job struct {
	Store  store.Store
	Ledger *counters.Ledger
	Logger *logger.Logger
}

func NewJob(s store.Store, ledger *counters.Ledger, l *logger.Logger) *Job {
	if l == nil {
		l = logger.Discard()
	}
	if ledger == nil {
		ledger = counters.NewLedger(s, l)
	}
	return &Job{Store: s, Ledger: ledger, Logger: l}
}

func (j *Job) Run(ctx context.Context, eventID string) (*Result, error) {
	start := time.Now()
	eventID = strings.TrimSpace(eventID)
	res := &Result{RunID: uuid.NewString(), EventID: eventID, Status: StatusFailed}
	defer func() {
		metrics.ReconcileRunsTotal.WithLabelValues(res.Status).Inc()
		metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	}()

	if eventID == "" {
		res.Message = "event is required"
		return res, fmt.Errorf("event is required: %w", models.ErrValidation)
	}
	j.Logger.Info("RECONCILE", fmt.Sprintf("[%s] run %s started", eventID, res.RunID))

	before, err := j.Ledger.Snapshot(ctx, eventID)
	if err != nil {
		res.Message = err.Error()
		return res, fmt.Errorf("failed to read counters before reconcile: %w", err)
	}
	res.Before = before

	items, err := j.Store.Scan(ctx, eventID)
	if err != nil {
		res.Message = err.Error()
		return res, fmt.Errorf("failed to scan event %s: %w", eventID, err)
	}

	states := make([]counters.State, 0, len(items))
	for _, item := range items {
		if counters.IsCounterKey(item.SortKey) {
			continue
		}
		states = append(states, j.stateOf(item, res))
	}
	res.RecordsScanned = len(states)

	if err := j.Ledger.SetAll(ctx, eventID, counters.SnapshotOf(states)); err != nil {
		res.Message = err.Error()
		return res, fmt.Errorf("failed to write counters: %w", err)
	}

	after, err := j.Ledger.Snapshot(ctx, eventID)
	if err != nil {
		res.Message = err.Error()
		return res, fmt.Errorf("failed to read counters after reconcile: %w", err)
	}
	res.After = after
	res.Status = StatusSuccess
	res.Message = fmt.Sprintf("Reconciled %d records", res.RecordsScanned)
	if res.Fallbacks > 0 {
		res.Message += fmt.Sprintf(", %d counted as one participant", res.Fallbacks)
	}

	j.logChanges(res)
	return res, nil
}

// stateOf reads the counter inputs straight from the stored columns. A record
// whose metadata does not parse still counts, as a single participant.
func (j *Job) stateOf(item models.Item, res *Result) counters.State {
	st := counters.State{
		VehicleType: models.NormalizeVehicleType(item.VehicleType),
		Paid:        item.Paid,
		CheckedIn:   item.CheckedIn,
		People:      1,
	}
	md, err := models.ParseMetadata(item.Metadata)
	if err != nil {
		res.Fallbacks++
		metrics.ReconcileFallbacksTotal.Inc()
		j.Logger.Warn("RECONCILE", fmt.Sprintf("[%s] %s: %v, counting 1 participant", item.EventName, item.SortKey, err))
		return st
	}
	st.People = md.ParticipantCount()
	return st
}

func (j *Job) logChanges(res *Result) {
	before, after := res.Before.Values(), res.After.Values()
	changed := 0
	for _, name := range counters.All() {
		if before[name] != after[name] {
			changed++
			j.Logger.LogCounter(res.EventID, string(name), before[name], after[name])
		}
	}
	j.Logger.Info("RECONCILE", fmt.Sprintf("[%s] run %s done: %d records, %d counters corrected", res.EventID, res.RunID, res.RecordsScanned, changed))
}

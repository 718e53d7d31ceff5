package reconcile_test

import (
	"context"
	"testing"
	"time"

	"ms-registration/internal/counters"
	"ms-registration/internal/models"
	"ms-registration/internal/reconcile"
	"ms-registration/internal/registration"
	"ms-registration/internal/store/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store  *db.DB
	ledger *counters.Ledger
	svc    *registration.Service
	job    *reconcile.Job
}

func setup(t *testing.T) fixture {
	d, err := db.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	ledger := counters.NewLedger(d, nil)
	return fixture{
		store:  d,
		ledger: ledger,
		svc:    registration.NewService(d, ledger, nil, nil),
		job:    reconcile.NewJob(d, ledger, nil),
	}
}

func seed(t *testing.T, f fixture) {
	ctx := context.Background()
	people := func(n int) []models.Person {
		out := make([]models.Person, n)
		for i := range out {
			out[i].Name = "p"
		}
		return out
	}

	_, err := f.svc.Register(ctx, "E", registration.Registration{Email: "a@example.com", VehicleType: "car", People: people(2)})
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, "E", registration.Registration{Email: "b@example.com", VehicleType: "Mota", People: people(1)})
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, "E", registration.Registration{Email: "c@example.com", VehicleType: "Quad", People: people(3)})
	require.NoError(t, err)
	_, err = f.svc.CheckIn(ctx, "E", "c@example.com", "door")
	require.NoError(t, err)
	_, err = f.svc.ConfirmPayment(ctx, "E", "a@example.com", models.PaymentRequest{})
	require.NoError(t, err)
}

func assertInvariants(t *testing.T, s counters.Snapshot) {
	assert.Equal(t, s.Total, s.TotalCar+s.TotalMotorcycle+s.TotalQuad)
	assert.Equal(t, s.TotalParticipants, s.ParticipantsCheckedIn+s.ParticipantsNotCheckedIn)
}

func TestRunMatchesIncrementalCounters(t *testing.T) {
	f := setup(t)
	seed(t, f)

	res, err := f.job.Run(context.Background(), "E")
	require.NoError(t, err)
	assert.Equal(t, reconcile.StatusSuccess, res.Status)
	assert.Equal(t, 3, res.RecordsScanned)
	assert.Equal(t, res.Before, res.After)
	assert.NotEmpty(t, res.RunID)

	assert.Equal(t, int64(3), res.After.Total)
	assert.Equal(t, int64(6), res.After.TotalParticipants)
	assert.Equal(t, int64(3), res.After.ParticipantsCheckedIn)
	assert.Equal(t, int64(1), res.After.CheckedInQuad)
	assert.Equal(t, int64(1), res.After.PaidCar)
	assertInvariants(t, res.After)
}

func TestRunRepairsDrift(t *testing.T) {
	f := setup(t)
	seed(t, f)
	ctx := context.Background()

	// simulate lost updates and an orphan decrement
	require.NoError(t, f.ledger.Set(ctx, "E", counters.Total, 7))
	require.NoError(t, f.ledger.Set(ctx, "E", counters.TotalCar, 0))
	require.NoError(t, f.ledger.Set(ctx, "E", counters.ParticipantsNotCheckedIn, 40))

	res, err := f.job.Run(ctx, "E")
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.Before.Total)
	assert.Equal(t, int64(3), res.After.Total)
	assert.Equal(t, int64(1), res.After.TotalCar)
	assert.Equal(t, int64(3), res.After.ParticipantsNotCheckedIn)
	assertInvariants(t, res.After)

	snap, err := f.ledger.Snapshot(ctx, "E")
	require.NoError(t, err)
	assert.Equal(t, res.After, snap)
}

func TestRunIsIdempotent(t *testing.T) {
	f := setup(t)
	seed(t, f)
	ctx := context.Background()
	require.NoError(t, f.ledger.Set(ctx, "E", counters.PaidQuad, 5))

	first, err := f.job.Run(ctx, "E")
	require.NoError(t, err)
	second, err := f.job.Run(ctx, "E")
	require.NoError(t, err)

	assert.Equal(t, first.After, second.After)
	assert.Equal(t, second.Before, second.After)
}

func TestRunFallsBackOnBadMetadata(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.store.Put(ctx, models.Item{EventName: "E", SortKey: "broken@example.com", VehicleType: "quad", CheckedIn: true, Metadata: "{oops"}))
	require.NoError(t, f.store.Put(ctx, models.Item{EventName: "E", SortKey: "empty@example.com", VehicleType: "jipe"}))

	res, err := f.job.Run(ctx, "E")
	require.NoError(t, err)
	assert.Equal(t, 2, res.RecordsScanned)
	assert.Equal(t, 1, res.Fallbacks)
	assert.Contains(t, res.Message, "1 counted as one participant")

	assert.Equal(t, int64(2), res.After.TotalParticipants)
	assert.Equal(t, int64(1), res.After.ParticipantsCheckedIn)
	assert.Equal(t, int64(1), res.After.CheckedInQuad)
	assert.Equal(t, int64(1), res.After.TotalCar)
}

func TestRunExcludesCounterRows(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for _, name := range counters.All() {
		require.NoError(t, f.ledger.Set(ctx, "E", name, 9))
	}

	res, err := f.job.Run(ctx, "E")
	require.NoError(t, err)
	assert.Equal(t, 0, res.RecordsScanned)
	assert.Equal(t, counters.Snapshot{}, res.After)
}

func TestRunRequiresEvent(t *testing.T) {
	f := setup(t)
	res, err := f.job.Run(context.Background(), " ")
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Equal(t, reconcile.StatusFailed, res.Status)
}

func TestSchedulerRunAll(t *testing.T) {
	f := setup(t)
	seed(t, f)
	require.NoError(t, f.ledger.Set(context.Background(), "E", counters.Total, 0))

	s := reconcile.NewScheduler(f.job, []string{"E", "F"}, time.Hour, nil)
	results := s.RunAll(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, int64(3), results[0].After.Total)
	assert.Equal(t, 0, results[1].RecordsScanned)
}

func TestSchedulerStartStop(t *testing.T) {
	f := setup(t)
	s := reconcile.NewScheduler(f.job, []string{"E"}, time.Hour, nil)
	require.NoError(t, s.Start(context.Background()))
	assert.NoError(t, s.Stop())

	bad := reconcile.NewScheduler(f.job, nil, 0, nil)
	assert.Error(t, bad.Start(context.Background()))
}

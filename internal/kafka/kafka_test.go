package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ms-registration/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestProducerNotify(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{Writer: w, Topic: TopicNotifications}

	rec := &models.Record{EventName: "E", UserEmail: "a@example.com", VehicleType: models.VehicleCar}
	require.NoError(t, p.Notify(context.Background(), "userRegistration", rec))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "E/a@example.com", string(w.msgs[0].Key))
	assert.Equal(t, "template", w.msgs[0].Headers[0].Key)

	var n Notification
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &n))
	assert.Equal(t, "userRegistration", n.Template)
	assert.Equal(t, "E", n.EventName)
	assert.Equal(t, "a@example.com", n.Record.UserEmail)
	assert.NotEmpty(t, n.MessageID)
}

func TestProducerNotifyError(t *testing.T) {
	p := &Producer{Writer: &fakeWriter{err: errors.New("no leader")}, Topic: TopicNotifications}
	err := p.Notify(context.Background(), "almostThere", &models.Record{EventName: "E", UserEmail: "a@example.com"})
	assert.Error(t, err)
}

type fakeReader struct {
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type MockRegistrar struct {
	mock.Mock
}

func (m *MockRegistrar) RegisterWebhook(ctx context.Context, eventID string, body []byte) (*models.Record, error) {
	args := m.Called(eventID, string(body))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Record), args.Error(1)
}

func TestConsumerCommitsHandledMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{cancel: cancel, msgs: []kafka.Message{
		{Offset: 1, Key: []byte("E"), Value: []byte(`{"email":"a@example.com"}`)},
		{Offset: 2, Key: []byte("E"), Value: []byte(`{}`)},
		{Offset: 3, Key: []byte("E"), Value: []byte(`{"email":"b@example.com"}`)},
		{Offset: 4, Value: []byte(`{"email":"c@example.com"}`)},
	}}

	registrar := new(MockRegistrar)
	registrar.On("RegisterWebhook", "E", `{"email":"a@example.com"}`).Return(&models.Record{UserEmail: "a@example.com"}, nil)
	registrar.On("RegisterWebhook", "E", `{}`).Return(nil, fmt.Errorf("email is required: %w", models.ErrValidation))
	registrar.On("RegisterWebhook", "E", `{"email":"b@example.com"}`).Return(nil, errors.New("store unavailable")).Twice()
	registrar.On("RegisterWebhook", "E", `{"email":"b@example.com"}`).Return(&models.Record{UserEmail: "b@example.com"}, nil).Once()

	c := &Consumer{Reader: reader, Registrar: registrar, Backoff: time.Millisecond}
	require.NoError(t, c.Start(ctx))

	// offset 3 is retried until the store recovers, then committed in order
	assert.Equal(t, []int64{1, 2, 3, 4}, reader.committed)
	registrar.AssertNumberOfCalls(t, "RegisterWebhook", 5)
	registrar.AssertExpectations(t)
}

func TestConsumerNeverCommitsPastFailedMessage(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	reader := &fakeReader{cancel: cancel, msgs: []kafka.Message{
		{Offset: 1, Key: []byte("E"), Value: []byte(`{"email":"a@example.com"}`)},
		{Offset: 2, Key: []byte("E"), Value: []byte(`{"email":"b@example.com"}`)},
		{Offset: 3, Key: []byte("E"), Value: []byte(`{"email":"c@example.com"}`)},
	}}

	registrar := new(MockRegistrar)
	registrar.On("RegisterWebhook", "E", `{"email":"a@example.com"}`).Return(&models.Record{UserEmail: "a@example.com"}, nil)
	registrar.On("RegisterWebhook", "E", `{"email":"b@example.com"}`).Return(nil, errors.New("store unavailable"))

	c := &Consumer{Reader: reader, Registrar: registrar, Backoff: 5 * time.Millisecond, MaxBackoff: 20 * time.Millisecond}
	require.NoError(t, c.Start(ctx))

	assert.Equal(t, []int64{1}, reader.committed)
	// offset 3 was never fetched while offset 2 kept failing
	require.Len(t, reader.msgs, 1)
	assert.Equal(t, int64(3), reader.msgs[0].Offset)
	registrar.AssertNotCalled(t, "RegisterWebhook", "E", `{"email":"c@example.com"}`)
}

type brokenReader struct {
	fetches int
}

func (r *brokenReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.fetches++
	return kafka.Message{}, errors.New("broker unreachable")
}

func (r *brokenReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error { return nil }

func (r *brokenReader) Close() error { return nil }

func TestConsumerBacksOffOnFetchErrors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	reader := &brokenReader{}
	c := &Consumer{Reader: reader, Registrar: new(MockRegistrar), Backoff: 10 * time.Millisecond, MaxBackoff: 40 * time.Millisecond}
	require.NoError(t, c.Start(ctx))

	// 10+20+40+40 ms of waiting fits at most a handful of fetches in 100ms
	assert.GreaterOrEqual(t, reader.fetches, 2)
	assert.LessOrEqual(t, reader.fetches, 6)
}

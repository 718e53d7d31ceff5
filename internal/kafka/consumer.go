package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-registration/internal/logger"
	"ms-registration/internal/models"

	"github.com/segmentio/kafka-go"
)

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Registrar accepts raw form submissions for an event.
type Registrar interface {
	RegisterWebhook(ctx context.Context, eventID string, body []byte) (*models.Record, error)
}

// Consumer feeds form submissions published on a topic into the registrar. The
// message key is the event and the value the raw form payload.
type Consumer struct {
	Reader    MessageReader
	Registrar Registrar
	Logger    *logger.Logger

	// Backoff is the first wait after a failed fetch or submission. It doubles
	// per consecutive failure up to MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration
}

const (
	defaultBackoff    = 500 * time.Millisecond
	defaultMaxBackoff = 30 * time.Second
)

func NewConsumer(brokers []string, topic, groupID string, r Registrar, l *logger.Logger) *Consumer {
	if l == nil {
		l = logger.Discard()
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{
		Reader:     reader,
		Registrar:  r,
		Logger:     l,
		Backoff:    defaultBackoff,
		MaxBackoff: defaultMaxBackoff,
	}
}

// Start consumes until ctx is cancelled. Submissions that fail validation are
// committed and dropped. Any other failure retries the same message with
// backoff, so no later offset is committed past it.
func (c *Consumer) Start(ctx context.Context) error {
	c.Logger.Info("KAFKA", "Submission consumer started")
	fetchFailures := 0
	for {
		msg, err := c.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fetchFailures++
			c.Logger.Error("KAFKA", fmt.Sprintf("Error reading message: %v", err))
			if !c.wait(ctx, fetchFailures) {
				return nil
			}
			continue
		}
		fetchFailures = 0

		for attempt := 1; ; attempt++ {
			err := c.handle(ctx, msg)
			if err == nil {
				break
			}
			c.Logger.Error("KAFKA", fmt.Sprintf("Submission at offset %d failed (attempt %d): %v", msg.Offset, attempt, err))
			if !c.wait(ctx, attempt) {
				return nil
			}
		}
		if err := c.Reader.CommitMessages(ctx, msg); err != nil {
			c.Logger.Error("KAFKA", fmt.Sprintf("Failed to commit offset %d: %v", msg.Offset, err))
		}
	}
}

// wait sleeps for the backoff of the given consecutive failure and reports
// false when ctx ended first.
func (c *Consumer) wait(ctx context.Context, failures int) bool {
	d := c.Backoff
	if d <= 0 {
		d = defaultBackoff
	}
	limit := c.MaxBackoff
	if limit <= 0 {
		limit = defaultMaxBackoff
	}
	for i := 1; i < failures && d < limit; i++ {
		d *= 2
	}
	if d > limit {
		d = limit
	}

	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	eventID := string(msg.Key)
	if eventID == "" {
		c.Logger.Warn("KAFKA", fmt.Sprintf("Dropping submission at offset %d without an event key", msg.Offset))
		return nil
	}
	rec, err := c.Registrar.RegisterWebhook(ctx, eventID, msg.Value)
	if errors.Is(err, models.ErrValidation) {
		c.Logger.Warn("KAFKA", fmt.Sprintf("Dropping invalid submission for %s: %v", eventID, err))
		return nil
	}
	if err != nil {
		return err
	}
	c.Logger.LogKafka("CONSUME", eventID, "registered "+rec.UserEmail)
	return nil
}

func (c *Consumer) Close() error {
	return c.Reader.Close()
}

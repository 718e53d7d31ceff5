package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-registration/internal/logger"
	"ms-registration/internal/models"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	TopicNotifications = "registrations.notifications"
	TopicSubmissions   = "registrations.submissions"
)

// MessageWriter is the part of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Notification asks the mailer to send a template to a participant.
type Notification struct {
	MessageID string         `json:"messageId"`
	Template  string         `json:"template"`
	EventName string         `json:"eventName"`
	UserEmail string         `json:"userEmail"`
	Record    *models.Record `json:"record"`
	SentAt    time.Time      `json:"sentAt"`
}

type Producer struct {
	Writer MessageWriter
	Topic  string
	Logger *logger.Logger
}

func NewProducer(brokers []string, topic string, l *logger.Logger) *Producer {
	if l == nil {
		l = logger.Discard()
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &Producer{Writer: writer, Topic: topic, Logger: l}
}

// Notify publishes a notification keyed by event/email so that messages for a
// participant stay ordered.
func (p *Producer) Notify(ctx context.Context, template string, rec *models.Record) error {
	n := Notification{
		MessageID: uuid.NewString(),
		Template:  template,
		EventName: rec.EventName,
		UserEmail: rec.UserEmail,
		Record:    rec,
		SentAt:    time.Now().UTC(),
	}
	msgBytes, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.EventName + "/" + rec.UserEmail),
		Value: msgBytes,
		Headers: []kafka.Header{
			{Key: "template", Value: []byte(template)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s notification: %w", template, err)
	}
	p.Logger.LogKafka("PUBLISH", p.Topic, fmt.Sprintf("%s for %s/%s", template, rec.EventName, rec.UserEmail))
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// Package events publishes appointment changes to Kafka after they commit.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type Type string

const (
	AppointmentBooked        Type = "appointment.booked.v1"
	AppointmentMoved         Type = "appointment.moved.v1"
	AppointmentStatusChanged Type = "appointment.status_changed.v1"
	PaymentRecorded          Type = "appointment.payment_recorded.v1"
	AppointmentDeleted       Type = "appointment.deleted.v1"
)

type Event struct {
	ID            uuid.UUID       `json:"event_id"`
	Type          Type            `json:"event_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	AppointmentID uuid.UUID       `json:"appointment_id"`
	ResourceID    uuid.UUID       `json:"resource_id"`
	Date          string          `json:"date"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// New builds an event with data marshalled as its payload.
func New(t Type, appointmentID, resourceID uuid.UUID, date string, data any) (Event, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Event{}, err
	}
	e := Event{
		ID:            id,
		Type:          t,
		OccurredAt:    time.Now().UTC(),
		AppointmentID: appointmentID,
		ResourceID:    resourceID,
		Date:          date,
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Event{}, err
		}
		e.Data = raw
	}
	return e, nil
}

type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, ...Event) error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}
	if topic == "" {
		return nil, errors.New("kafka topic not configured")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return newKafkaPublisher(w, topic, logger), nil
}

func newKafkaPublisher(w messageWriter, topic string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{
		writer: w,
		topic:  topic,
		logger: logger.With(slog.String("component", "events")),
	}
}

// Publish keys messages by appointment so one appointment's events stay in
// order on a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(e)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(e.AppointmentID.String()),
			Value: value,
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(e.ID.String())},
				{Key: "event_type", Value: []byte(e.Type)},
			},
			Time: e.OccurredAt,
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("publish events", slog.Int("count", len(msgs)), slog.Any("err", err))
		return err
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// ReadyCheck dials the first broker.
func ReadyCheck(brokers []string) func(context.Context) error {
	return func(ctx context.Context) error {
		if len(brokers) == 0 {
			return errors.New("kafka brokers not configured")
		}
		dialer := kafka.Dialer{Timeout: 2 * time.Second}
		conn, err := dialer.DialContext(ctx, "tcp", brokers[0])
		if err != nil {
			return err
		}
		return conn.Close()
	}
}

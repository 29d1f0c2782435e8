// Package kafka forwards domain events to a Kafka topic for downstream
// consumers such as order fulfilment.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/uniedit/checkout/internal/infra/events"
	"go.uber.org/zap"
)

// Config holds the sink configuration.
type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
	// Async makes writes return before the broker acknowledges them.
	Async bool
}

// ParseBrokers splits a comma-separated broker list.
func ParseBrokers(csv string) []string {
	brokers := []string{}
	for _, b := range strings.Split(csv, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// Enabled reports whether any broker is configured.
func (c Config) Enabled() bool {
	return len(c.Brokers) > 0 && c.Topic != ""
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink is an events.Handler that writes every event it receives as JSON,
// keyed by aggregate ID so events of one record land on one partition.
type Sink struct {
	writer  messageWriter
	timeout time.Duration
	logger  *zap.Logger
}

// NewSink creates a sink writing to cfg.Topic.
func NewSink(cfg Config, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("kafka")

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        cfg.Async,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("failed to deliver events",
					zap.Int("count", len(messages)),
					zap.Error(err))
			}
		},
	}
	return newSink(writer, cfg.WriteTimeout, logger)
}

func newSink(writer messageWriter, timeout time.Duration, logger *zap.Logger) *Sink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Sink{writer: writer, timeout: timeout, logger: logger}
}

// Handles subscribes the sink to every event type.
func (s *Sink) Handles() []string {
	return []string{events.Wildcard}
}

// Handle writes the event to Kafka.
func (s *Sink) Handle(event events.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.EventType(), err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.AggregateID().String()),
		Value: value,
		Time:  event.OccurredAt(),
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.EventType())},
			{Key: "event-id", Value: []byte(event.EventID().String())},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s: %w", event.EventType(), err)
	}

	s.logger.Debug("event forwarded",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()))
	return nil
}

// Close flushes pending writes.
func (s *Sink) Close() error {
	return s.writer.Close()
}

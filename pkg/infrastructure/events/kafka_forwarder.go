package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/vsinha/wholelot/pkg/infrastructure/tracing"
)

const (
	headerEventType = "event_type"

	defaultWriteTimeout = 10 * time.Second
)

// MessageWriter is the subset of *kafka.Writer the forwarder needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter creates a writer producing to topic on the given brokers
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// KafkaForwarder relays events to Kafka, keyed by stream so that the events
// of one demand stay ordered within a partition
type KafkaForwarder struct {
	writer  MessageWriter
	logger  *slog.Logger
	timeout time.Duration
}

// NewKafkaForwarder creates a forwarder writing through writer
func NewKafkaForwarder(writer MessageWriter, logger *slog.Logger) *KafkaForwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaForwarder{writer: writer, logger: logger, timeout: defaultWriteTimeout}
}

// Verify interface compliance
var _ EventHandler = (*KafkaForwarder)(nil)

type envelope struct {
	Type      string      `json:"type"`
	StreamID  string      `json:"stream_id"`
	Version   int         `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// CanHandle accepts every allocation event
func (f *KafkaForwarder) CanHandle(eventType string) bool {
	for _, t := range AllocationEventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}

// Handle writes the event as a JSON message carrying the trace context of ctx
func (f *KafkaForwarder) Handle(ctx context.Context, event Event) error {
	payload, err := json.Marshal(envelope{
		Type:      event.Type(),
		StreamID:  event.StreamID(),
		Version:   event.Version(),
		Timestamp: event.Timestamp(),
		Data:      event.Data(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event.Type(), err)
	}

	headers := tracing.InjectKafkaHeaders(ctx, []kafka.Header{{Key: headerEventType, Value: []byte(event.Type())}})

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	err = f.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(event.StreamID()),
		Value:   payload,
		Headers: headers,
	})
	if err != nil {
		return fmt.Errorf("failed to forward %s event: %w", event.Type(), err)
	}

	f.logger.Debug("event forwarded",
		slog.String("event_type", event.Type()),
		slog.String("stream_id", event.StreamID()))
	return nil
}

// Close flushes and closes the underlying writer
func (f *KafkaForwarder) Close() error {
	return f.writer.Close()
}

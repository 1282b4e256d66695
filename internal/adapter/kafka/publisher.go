package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/trail-shelter-stats/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Shelter source header values.
const (
	SourceReference = "reference"
	SourceAdHoc     = "adhoc"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces one message per shelter record to a Kafka topic.
// It implements pipeline.Sink.
type Publisher struct {
	writer messageWriter
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the given brokers and topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, logger: logger}
}

func (p *Publisher) Name() string { return "kafka" }

// Save publishes every record in a single WriteMessages call. Records are
// keyed by shelter name so repeated runs land on the same partition.
func (p *Publisher) Save(ctx context.Context, records []domain.ShelterRecord) error {
	if len(records) == 0 {
		return nil
	}
	generatedAt := domain.Now()
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i], generatedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish shelter records: %w", err)
	}
	p.logger.Debug("shelter records published", "count", len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a ShelterRecord into a Kafka message.
func serializeToMessage(record domain.ShelterRecord, generatedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize shelter record: %w", err)
	}
	source := SourceAdHoc
	if record.Reference {
		source = SourceReference
	}
	return kafkago.Message{
		Key:   []byte(record.Name),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "shelter_source", Value: []byte(source)},
			{Key: "generated_at", Value: []byte(generatedAt.Format(time.RFC3339))},
		},
	}, nil
}

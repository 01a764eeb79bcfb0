// Package kafka publishes extracted events and cycles for downstream
// consumers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ntentasd/bopstack-api/internal/metrics"
	"github.com/ntentasd/bopstack-api/pkg/types"
)

const (
	DefaultEventsTopic = "bop.valve-events"
	DefaultCyclesTopic = "bop.pressure-cycles"
)

// Topics names the destinations of a Publisher.
type Topics struct {
	Events string
	Cycles string
}

func (t Topics) withDefaults() Topics {
	if t.Events == "" {
		t.Events = DefaultEventsTopic
	}
	if t.Cycles == "" {
		t.Cycles = DefaultCyclesTopic
	}
	return t
}

// Envelope wraps each record with the rig it came from.
type Envelope[T any] struct {
	Rig         string    `json:"rig"`
	PublishedAt time.Time `json:"published_at"`
	Record      T         `json:"record"`
}

type Publisher struct {
	producer sarama.SyncProducer
	topics   Topics
	logger   zerolog.Logger
}

func NewConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_8_0_0
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Producer.Compression = sarama.CompressionSnappy
	return cfg
}

// NewPublisher connects a synchronous producer to the brokers.
func NewPublisher(brokers []string, topics Topics, logger zerolog.Logger) (*Publisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewConfig())
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return NewPublisherWithProducer(producer, topics, logger), nil
}

func NewPublisherWithProducer(producer sarama.SyncProducer, topics Topics, logger zerolog.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		topics:   topics.withDefaults(),
		logger:   logger.With().Str("component", "kafka").Logger(),
	}
}

func (p *Publisher) Topics() Topics {
	return p.topics
}

// Publish sends every event and cycle of the report, keyed by valve so a
// valve's records stay ordered within one partition.
func (p *Publisher) Publish(ctx context.Context, report *types.Report) error {
	_, span := otel.Tracer("bopstack-kafka").Start(ctx, "kafka.Publish")
	defer span.End()

	span.SetAttributes(
		attribute.String("rig", report.Rig),
		attribute.Int("kafka.events", len(report.Events)),
		attribute.Int("kafka.cycles", len(report.Cycles)),
	)

	now := time.Now().UTC()
	msgs := make([]*sarama.ProducerMessage, 0, len(report.Events)+len(report.Cycles))

	for _, ev := range report.Events {
		msg, err := message(p.topics.Events, ev.Valve, Envelope[types.Event]{report.Rig, now, ev})
		if err != nil {
			return p.fail(span, p.topics.Events, err)
		}
		msgs = append(msgs, msg)
	}
	for _, c := range report.Cycles {
		msg, err := message(p.topics.Cycles, c.Valve, Envelope[types.Cycle]{report.Rig, now, c})
		if err != nil {
			return p.fail(span, p.topics.Cycles, err)
		}
		msgs = append(msgs, msg)
	}

	if len(msgs) == 0 {
		return nil
	}

	if err := p.producer.SendMessages(msgs); err != nil {
		return p.fail(span, p.topics.Events, err)
	}

	p.logger.Debug().
		Str("rig", report.Rig).
		Int("messages", len(msgs)).
		Msg("published report")
	span.SetStatus(codes.Ok, "")
	return nil
}

func (p *Publisher) fail(span trace.Span, topic string, err error) error {
	metrics.PublishErrorsTotal.WithLabelValues(topic).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return fmt.Errorf("publish to %s: %w", topic, err)
}

func message(topic, key string, v any) (*sarama.ProducerMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(b),
	}, nil
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}

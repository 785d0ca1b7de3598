package repository

import (
	"context"

	"ExecCore/internal/domain/models"
	domrepo "ExecCore/internal/domain/repository"
	pkgkafka "ExecCore/pkg/kafka"
)

// KafkaRecordPublisher ships terminal execution records to a topic, keyed by
// symbol so one symbol's records stay ordered within a partition.
type KafkaRecordPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaRecordPublisher(producer *pkgkafka.Producer, topic string) *KafkaRecordPublisher {
	return &KafkaRecordPublisher{producer: producer, topic: topic}
}

func (p *KafkaRecordPublisher) Publish(ctx context.Context, rec models.ExecutionRecord) error {
	return p.producer.Publish(ctx, p.topic, []byte(rec.Plan.Symbol), rec)
}

func (p *KafkaRecordPublisher) Close() error {
	return p.producer.Close()
}

// NoopPublisher drops records. Used when Kafka is not configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, models.ExecutionRecord) error { return nil }
func (NoopPublisher) Close() error                                          { return nil }

var (
	_ domrepo.RecordPublisher = (*KafkaRecordPublisher)(nil)
	_ domrepo.RecordPublisher = NoopPublisher{}
)

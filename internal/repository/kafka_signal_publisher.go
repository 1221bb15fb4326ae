package repository

import (
	"context"

	"PulseScan/internal/domain/models"
	"PulseScan/internal/domain/repository"
	pkgkafka "PulseScan/pkg/kafka"
)

// KafkaSignalPublisher emits dispatched alerts keyed by symbol, so every
// alert for one asset lands on the same partition.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

func (p *KafkaSignalPublisher) Publish(ctx context.Context, rec *models.SignalRecord) error {
	return p.producer.Publish(ctx, p.topic, []byte(rec.Symbol), rec)
}

func (p *KafkaSignalPublisher) PublishBatch(ctx context.Context, recs []*models.SignalRecord) error {
	if len(recs) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(recs))
	for i, r := range recs {
		msgs[i] = pkgkafka.Message{Key: []byte(r.Symbol), Value: r}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaSignalPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ repository.SignalPublisher = (*KafkaSignalPublisher)(nil)

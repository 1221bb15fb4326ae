package usecase

import (
	"context"
	"fmt"
	"time"

	"PulseScan/internal/domain/models"
	drepo "PulseScan/internal/domain/repository"
)

const (
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
	BackendNone       = "none"
)

// Broadcaster pushes a delivered alert to live subscribers.
type Broadcaster interface {
	Broadcast(rec *models.SignalRecord)
}

// SignalProcessor routes dispatched alerts to the configured backend. Once
// the backend accepts a record it is kept in the in-memory history and
// broadcast, so a retried record shows up there exactly once.
type SignalProcessor struct {
	pub         drepo.SignalPublisher
	store       drepo.SignalStore
	history     drepo.SignalStore
	broadcaster Broadcaster
	metrics     drepo.Metrics
	backend     string
}

func NewSignalProcessor(
	pub drepo.SignalPublisher,
	store drepo.SignalStore,
	history drepo.SignalStore,
	broadcaster Broadcaster,
	metrics drepo.Metrics,
	backend string,
) *SignalProcessor {
	return &SignalProcessor{
		pub:         pub,
		store:       store,
		history:     history,
		broadcaster: broadcaster,
		metrics:     metrics,
		backend:     backend,
	}
}

func (p *SignalProcessor) Process(ctx context.Context, rec *models.SignalRecord) error {
	if rec == nil {
		return fmt.Errorf("signal record is nil")
	}
	start := time.Now()

	var err error
	switch p.backend {
	case BackendKafka:
		err = p.pub.Publish(ctx, rec)
	case BackendClickHouse:
		err = p.store.Store(ctx, rec)
	case BackendNone, "":
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}
	if err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process signal: %w", err)
	}

	p.accept(ctx, rec)
	p.metrics.RecordLatency("process", time.Since(start).Seconds())
	return nil
}

func (p *SignalProcessor) ProcessBatch(ctx context.Context, recs []*models.SignalRecord) error {
	if len(recs) == 0 {
		return nil
	}
	start := time.Now()

	var err error
	switch p.backend {
	case BackendKafka:
		err = p.pub.PublishBatch(ctx, recs)
	case BackendClickHouse:
		err = p.store.StoreBatch(ctx, recs)
	case BackendNone, "":
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}
	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}

	for _, r := range recs {
		p.accept(ctx, r)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())
	return nil
}

func (p *SignalProcessor) accept(ctx context.Context, rec *models.SignalRecord) {
	if p.history != nil {
		_ = p.history.Store(ctx, rec)
	}
	if p.broadcaster != nil {
		p.broadcaster.Broadcast(rec)
	}
}

// Recent serves the history API: ClickHouse when it is the backend, the
// memory ring otherwise.
func (p *SignalProcessor) Recent(ctx context.Context, q drepo.SignalQuery) ([]*models.SignalRecord, error) {
	if p.store != nil && p.backend != BackendNone {
		recs, err := p.store.Recent(ctx, q)
		if err == nil {
			return recs, nil
		}
		p.metrics.RecordError("history_query")
	}
	if p.history == nil {
		return nil, nil
	}
	return p.history.Recent(ctx, q)
}

func (p *SignalProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}

package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"PulseScan/internal/domain/models"
	domrepo "PulseScan/internal/domain/repository"
	pkgkafka "PulseScan/pkg/kafka"
)

// SignalArchiveHandler consumes the alert topic and archives each record.
type SignalArchiveHandler struct {
	topic   string
	storage domrepo.SignalStore
	metrics domrepo.Metrics
}

func NewSignalArchiveHandler(topic string, storage domrepo.SignalStore, metrics domrepo.Metrics) *SignalArchiveHandler {
	return &SignalArchiveHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *SignalArchiveHandler) Topic() string { return h.topic }

func (h *SignalArchiveHandler) Handle(ctx context.Context, b []byte) error {
	var rec models.SignalRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode signal record: %w", err)
	}
	if rec.Fingerprint == "" || rec.Symbol == "" {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("signal record missing fingerprint or symbol")
	}
	if !rec.SentAt.IsZero() {
		h.metrics.RecordLatency("archive_e2e", time.Since(rec.SentAt).Seconds())
	}

	start := time.Now()
	err := h.storage.Store(ctx, &rec)
	h.metrics.RecordLatency("archive_insert", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*SignalArchiveHandler)(nil)

package repository

import (
	"context"
	"strings"
	"sync"

	"PulseScan/internal/domain/models"
	domrepo "PulseScan/internal/domain/repository"
)

// MemorySignalStore keeps the most recent alerts in a ring. It backs the
// history API when no ClickHouse is configured.
type MemorySignalStore struct {
	mu   sync.RWMutex
	buf  []*models.SignalRecord
	next int
	full bool
}

func NewMemorySignalStore(size int) *MemorySignalStore {
	if size <= 0 {
		size = 200
	}
	return &MemorySignalStore{buf: make([]*models.SignalRecord, size)}
}

func (s *MemorySignalStore) Init(context.Context) error { return nil }

func (s *MemorySignalStore) Store(_ context.Context, rec *models.SignalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf[s.next] = rec
	s.next = (s.next + 1) % len(s.buf)
	if s.next == 0 {
		s.full = true
	}
	return nil
}

func (s *MemorySignalStore) StoreBatch(ctx context.Context, recs []*models.SignalRecord) error {
	for _, r := range recs {
		_ = s.Store(ctx, r)
	}
	return nil
}

// Recent returns matching records newest first.
func (s *MemorySignalStore) Recent(_ context.Context, q domrepo.SignalQuery) ([]*models.SignalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.next
	if s.full {
		n = len(s.buf)
	}
	limit := limitOrDefault(q.Limit)
	out := make([]*models.SignalRecord, 0, min(n, limit))
	for i := 0; i < n && len(out) < limit; i++ {
		idx := (s.next - 1 - i + len(s.buf)) % len(s.buf)
		r := s.buf[idx]
		if matches(r, q) {
			out = append(out, r)
		}
	}
	return out, nil
}

func matches(r *models.SignalRecord, q domrepo.SignalQuery) bool {
	switch {
	case q.Symbol != "" && !strings.EqualFold(r.Symbol, q.Symbol):
		return false
	case q.Tier != "" && r.Tier != q.Tier:
		return false
	case q.Direction != "" && r.Direction != q.Direction:
		return false
	case !q.Since.IsZero() && r.SentAt.Before(q.Since):
		return false
	}
	return true
}

func (s *MemorySignalStore) Health(context.Context) error { return nil }

func (s *MemorySignalStore) Close() error { return nil }

var _ domrepo.SignalStore = (*MemorySignalStore)(nil)

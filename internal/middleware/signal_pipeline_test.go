package middleware

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"PulseScan/internal/domain/models"
	"PulseScan/pkg/metrics"
)

type flakyProc struct {
	mu        sync.Mutex
	failures  int
	delivered []string
	notify    chan string
}

func (f *flakyProc) Process(_ context.Context, rec *models.SignalRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("broker down")
	}
	f.delivered = append(f.delivered, rec.Fingerprint)
	if f.notify != nil {
		f.notify <- rec.Fingerprint
	}
	return nil
}

func validRecord(fp string) *models.SignalRecord {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &models.SignalRecord{
		Fingerprint: fp,
		Symbol:      "ABC",
		Tier:        models.TierStandard,
		Direction:   models.DirectionBuy,
		Price:       1.5,
		CandleTime:  now.Add(-time.Hour),
		SentAt:      now,
	}
}

func fp(c byte) string { return strings.Repeat(string(c), 32) }

func TestPipelineRejectsInvalidRecords(t *testing.T) {
	proc := &flakyProc{}
	p := NewSignalPipeline(proc, metrics.Nop{})

	bad := validRecord("short")
	if err := p.Process(context.Background(), bad); err == nil {
		t.Fatalf("expected validation error for short fingerprint")
	}
	bad = validRecord(fp('a'))
	bad.Direction = "HOLD"
	if err := p.Process(context.Background(), bad); err == nil {
		t.Fatalf("expected validation error for direction")
	}
	if err := p.Process(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil record")
	}
	if len(proc.delivered) != 0 || p.Pending() != 0 {
		t.Fatalf("invalid records must not reach downstream or the buffer")
	}
}

func TestPipelineForwardsValidRecord(t *testing.T) {
	proc := &flakyProc{}
	p := NewSignalPipeline(proc, metrics.Nop{})
	if err := p.Process(context.Background(), validRecord(fp('a'))); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(proc.delivered) != 1 {
		t.Fatalf("delivered = %v", proc.delivered)
	}
}

func TestPipelineBuffersAndRetries(t *testing.T) {
	proc := &flakyProc{failures: 3, notify: make(chan string, 1)}
	p := NewSignalPipeline(proc, metrics.Nop{}, WithBackoff(time.Millisecond, 4*time.Millisecond))

	if err := p.Process(context.Background(), validRecord(fp('b'))); err == nil {
		t.Fatalf("expected downstream error on first attempt")
	}
	if p.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", p.Pending())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	select {
	case got := <-proc.notify:
		if got != fp('b') {
			t.Fatalf("delivered %s", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("buffered record was never retried")
	}
}

func TestPipelineDrainAfterStop(t *testing.T) {
	proc := &flakyProc{failures: 2}
	p := NewSignalPipeline(proc, metrics.Nop{}, WithBufferSize(4))

	_ = p.Process(context.Background(), validRecord(fp('c')))
	_ = p.Process(context.Background(), validRecord(fp('d')))
	if p.Pending() != 2 {
		t.Fatalf("pending = %d, want 2", p.Pending())
	}

	if n := p.Drain(context.Background()); n != 2 {
		t.Fatalf("drained %d, want 2", n)
	}
	if p.Pending() != 0 {
		t.Fatalf("pending after drain = %d", p.Pending())
	}
}

func TestPipelineBufferOverflow(t *testing.T) {
	proc := &flakyProc{failures: 10}
	p := NewSignalPipeline(proc, metrics.Nop{}, WithBufferSize(1))

	_ = p.Process(context.Background(), validRecord(fp('e')))
	_ = p.Process(context.Background(), validRecord(fp('f')))
	if p.Pending() != 1 {
		t.Fatalf("pending = %d, want the buffer capped at 1", p.Pending())
	}
}

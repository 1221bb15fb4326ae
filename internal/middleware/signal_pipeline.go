package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PulseScan/internal/domain/models"
	domrepo "PulseScan/internal/domain/repository"
	"PulseScan/pkg/logger"

	"github.com/go-playground/validator/v10"
)

// Proc is the downstream the pipeline forwards records to.
type Proc interface {
	Process(ctx context.Context, rec *models.SignalRecord) error
}

// SignalPipeline sits between the dispatcher and the outbound backend. It
// validates records and forwards them; when the downstream fails the record
// is parked in a bounded buffer and retried in the background with
// exponential backoff.
type SignalPipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	log      *logger.Logger
	validate *validator.Validate

	bufSize    int
	bufCh      chan *models.SignalRecord
	backoffMin time.Duration
	backoffMax time.Duration

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	done    chan struct{}
}

type PipelineOption func(*SignalPipeline)

// WithBufferSize sets how many records are kept while downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *SignalPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithBackoff bounds the retry delay of the background flusher.
func WithBackoff(min, max time.Duration) PipelineOption {
	return func(p *SignalPipeline) {
		if min > 0 {
			p.backoffMin = min
		}
		if max >= p.backoffMin {
			p.backoffMax = max
		}
	}
}

func WithLogger(l *logger.Logger) PipelineOption {
	return func(p *SignalPipeline) {
		if l != nil {
			p.log = l
		}
	}
}

func NewSignalPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *SignalPipeline {
	p := &SignalPipeline{
		proc:       proc,
		metrics:    metrics,
		log:        logger.Nop(),
		validate:   validator.New(),
		bufSize:    256,
		backoffMin: 50 * time.Millisecond,
		backoffMax: 2 * time.Second,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.SignalRecord, p.bufSize)
	return p
}

// Start launches the background flusher. It is a no-op when already running.
func (p *SignalPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.flushLoop(ctx)
}

func (p *SignalPipeline) flushLoop(ctx context.Context) {
	defer close(p.done)
	backoff := p.backoffMin
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case rec := <-p.bufCh:
			if err := p.proc.Process(ctx, rec); err != nil {
				p.metrics.RecordError("pipeline_flush")
				p.log.Warn("buffered signal retry failed",
					logger.String("fingerprint", rec.Fingerprint),
					logger.Duration("backoff", backoff),
					logger.Error(err),
				)
				p.requeue(rec)
				select {
				case <-time.After(backoff):
				case <-p.stopCh:
					return
				case <-ctx.Done():
					return
				}
				if backoff *= 2; backoff > p.backoffMax {
					backoff = p.backoffMax
				}
				continue
			}
			backoff = p.backoffMin
		}
	}
}

func (p *SignalPipeline) requeue(rec *models.SignalRecord) {
	select {
	case p.bufCh <- rec:
	default:
		p.metrics.RecordError("pipeline_buffer_drop")
		p.log.Error("signal buffer full, record dropped", logger.String("fingerprint", rec.Fingerprint))
	}
}

// Stop halts the background flusher and waits for it to exit.
func (p *SignalPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	<-p.done
}

// Drain makes one synchronous attempt at every buffered record. Records
// that still fail are returned to the buffer. Call it after Stop.
func (p *SignalPipeline) Drain(ctx context.Context) int {
	pending := len(p.bufCh)
	delivered := 0
	for i := 0; i < pending; i++ {
		var rec *models.SignalRecord
		select {
		case rec = <-p.bufCh:
		default:
			return delivered
		}
		if ctx.Err() != nil {
			p.requeue(rec)
			continue
		}
		if err := p.proc.Process(ctx, rec); err != nil {
			p.requeue(rec)
			continue
		}
		delivered++
	}
	return delivered
}

// Pending is the number of records waiting for a retry.
func (p *SignalPipeline) Pending() int { return len(p.bufCh) }

// Process validates rec and forwards it, buffering on downstream errors.
func (p *SignalPipeline) Process(ctx context.Context, rec *models.SignalRecord) error {
	start := time.Now()
	if rec == nil {
		p.metrics.RecordError("pipeline_validate")
		return fmt.Errorf("signal record is nil")
	}
	if err := p.validate.Struct(rec); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return fmt.Errorf("invalid signal record: %w", err)
	}

	if err := p.proc.Process(ctx, rec); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- rec:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

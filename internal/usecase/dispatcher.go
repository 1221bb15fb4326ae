package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PulseScan/internal/domain/models"
	drepo "PulseScan/internal/domain/repository"
	"PulseScan/internal/domain/service"
	"PulseScan/internal/repository"
	"PulseScan/pkg/logger"

	"golang.org/x/time/rate"
)

// SignalGate runs send at most once per fingerprint within its window.
type SignalGate interface {
	SendOnce(ctx context.Context, sig models.ConfirmedSignal, send func(context.Context) error) (string, error)
}

// SignalSink receives every delivered alert, e.g. for the event stream.
type SignalSink interface {
	Process(ctx context.Context, rec *models.SignalRecord) error
}

type DispatchSummary struct {
	Sent       int                    `json:"sent"`
	Duplicates int                    `json:"duplicates"`
	Failed     int                    `json:"failed"`
	Records    []*models.SignalRecord `json:"-"`
}

// Dispatcher delivers confirmed candidates one by one. A global limiter
// spaces deliveries by the cooldown; only the dispatch path waits on it.
type Dispatcher struct {
	gate     SignalGate
	notifier service.Notifier
	charts   service.ChartLinker
	sink     SignalSink
	cooldown *rate.Limiter
	metrics  drepo.Metrics
	log      *logger.Logger
	now      func() time.Time
}

func NewDispatcher(
	gate SignalGate,
	notifier service.Notifier,
	charts service.ChartLinker,
	sink SignalSink,
	cooldown time.Duration,
	metrics drepo.Metrics,
	log *logger.Logger,
) *Dispatcher {
	limit := rate.Inf
	if cooldown > 0 {
		limit = rate.Every(cooldown)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{
		gate:     gate,
		notifier: notifier,
		charts:   charts,
		sink:     sink,
		cooldown: rate.NewLimiter(limit, 1),
		metrics:  metrics,
		log:      log,
		now:      time.Now,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, cands []Candidate) DispatchSummary {
	var sum DispatchSummary
	for _, c := range cands {
		if ctx.Err() != nil {
			d.log.Warn("dispatch interrupted", logger.Int("remaining", len(cands)-sum.Sent-sum.Duplicates-sum.Failed))
			break
		}
		rec, err := d.dispatchOne(ctx, c)
		tier := string(c.Asset.Tier)
		switch {
		case err == nil:
			sum.Sent++
			sum.Records = append(sum.Records, rec)
			d.metrics.RecordAlert(tier, true)
			d.log.Info("alert sent",
				logger.String("symbol", c.Asset.Symbol),
				logger.String("direction", string(c.Signal.Direction)),
				logger.String("tier", tier),
				logger.Float64("price", c.Asset.Price),
				logger.String("reason", c.Signal.Reason),
			)
		case errors.Is(err, models.ErrDuplicate):
			sum.Duplicates++
			d.metrics.RecordDuplicate()
			d.log.Info("duplicate prevented",
				logger.String("symbol", c.Asset.Symbol),
				logger.String("direction", string(c.Signal.Direction)),
			)
		default:
			sum.Failed++
			d.metrics.RecordAlert(tier, false)
			d.metrics.RecordError(models.KindDispatchFailure)
			d.log.Error("alert delivery failed",
				logger.String("symbol", c.Asset.Symbol),
				logger.Error(err),
			)
		}
	}
	return sum
}

func (d *Dispatcher) dispatchOne(ctx context.Context, c Candidate) (*models.SignalRecord, error) {
	var chartURL string
	fp, err := d.gate.SendOnce(ctx, c.Signal, func(ctx context.Context) error {
		if err := d.cooldown.Wait(ctx); err != nil {
			return fmt.Errorf("cooldown: %w", err)
		}
		chartURL = d.charts.Link(ctx, c.Asset.Symbol)
		alert := service.Alert{Signal: c.Signal, Asset: c.Asset, Resolved: c.Resolved, ChartURL: chartURL}
		if err := d.notifier.Notify(ctx, alert); err != nil {
			return fmt.Errorf("%w: %v", models.ErrDispatchFailure, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	rec := &models.SignalRecord{
		Fingerprint: fp,
		Symbol:      c.Asset.Symbol,
		Tier:        c.Asset.Tier,
		Direction:   c.Signal.Direction,
		Source:      c.Resolved.Source,
		Pair:        c.Resolved.Pair,
		Price:       c.Signal.Price,
		WT1:         c.Signal.WT1,
		WT2:         c.Signal.WT2,
		K:           c.Signal.K,
		D:           c.Signal.D,
		Strength:    c.Signal.Strength,
		Reason:      c.Signal.Reason,
		ChartURL:    chartURL,
		CandleTime:  c.Signal.CandleTime,
		SentAt:      d.now().UTC(),
	}
	if d.sink != nil {
		if err := d.sink.Process(ctx, rec); err != nil {
			d.log.Warn("signal sink rejected record", logger.String("fingerprint", fp), logger.Error(err))
		}
	}
	return rec, nil
}

var _ SignalGate = (*repository.DedupStore)(nil)

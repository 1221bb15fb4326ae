package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"PulseScan/internal/domain/models"
	drepo "PulseScan/internal/domain/repository"
	"PulseScan/internal/domain/service"
	"PulseScan/pkg/logger"
	"PulseScan/pkg/queue"
)

// AssetAnalyzer evaluates one asset.
type AssetAnalyzer interface {
	Analyze(ctx context.Context, asset models.Asset) (*Candidate, error)
}

// Blocklist filters symbols out before analysis.
type Blocklist interface {
	Blocked(symbol string) bool
}

type ScannerConfig struct {
	CycleTimeout time.Duration
	LogFirst     int
	LogEvery     int
}

// CycleReport summarises one pass over the universe. Degraded is set when
// fewer assets were analyzed than expected.
type CycleReport struct {
	Cycle     int             `json:"cycle"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
	Expected  int             `json:"expected"`
	Analyzed  int             `json:"analyzed"`
	Blocked   int             `json:"blocked"`
	Outcomes  map[string]int  `json:"outcomes"`
	Confirmed int             `json:"confirmed"`
	Dispatch  DispatchSummary `json:"dispatch"`
	Degraded  bool            `json:"degraded"`
}

// Scanner drives one cycle: universe, parallel analysis, then sequential
// dispatch of whatever was confirmed.
type Scanner struct {
	universe   service.UniverseProvider
	blocklist  Blocklist
	analyzer   AssetAnalyzer
	dispatcher *Dispatcher
	pool       *queue.Pool[*Candidate]
	stats      *Stats
	metrics    drepo.Metrics
	cfg        ScannerConfig
	log        *logger.Logger

	cycle atomic.Int64
}

func NewScanner(
	universe service.UniverseProvider,
	blocklist Blocklist,
	analyzer AssetAnalyzer,
	dispatcher *Dispatcher,
	pool *queue.Pool[*Candidate],
	stats *Stats,
	metrics drepo.Metrics,
	cfg ScannerConfig,
	log *logger.Logger,
) *Scanner {
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = 20
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Scanner{
		universe:   universe,
		blocklist:  blocklist,
		analyzer:   analyzer,
		dispatcher: dispatcher,
		pool:       pool,
		stats:      stats,
		metrics:    metrics,
		cfg:        cfg,
		log:        log,
	}
}

type scanItem struct {
	asset models.Asset
	index int // 1-based within its tier
	total int
}

func (s *Scanner) RunCycle(ctx context.Context) (*CycleReport, error) {
	start := time.Now()
	report := &CycleReport{
		Cycle:     int(s.cycle.Add(1)),
		StartedAt: start.UTC(),
		Outcomes:  make(map[string]int),
	}
	s.log.Info("starting analysis cycle", logger.Int("cycle", report.Cycle))

	assets, err := s.universe.Assets(ctx)
	if err != nil {
		s.metrics.RecordError("universe")
		return nil, fmt.Errorf("load universe: %w", err)
	}

	items := s.plan(assets, report)
	report.Expected = len(items)
	s.log.Info("analyzing assets",
		logger.Int("assets", len(items)),
		logger.Int("high_risk", countTier(items, models.TierHighRisk)),
		logger.Int("standard", countTier(items, models.TierStandard)),
		logger.Int("blocked", report.Blocked),
	)

	analysisCtx := ctx
	if s.cfg.CycleTimeout > 0 {
		var cancel context.CancelFunc
		analysisCtx, cancel = context.WithTimeout(ctx, s.cfg.CycleTimeout)
		defer cancel()
	}

	jobs := make([]queue.Job[*Candidate], len(items))
	for i, it := range items {
		asset := it.asset
		jobs[i] = queue.JobFunc[*Candidate]{
			ID: asset.Symbol,
			Fn: func(ctx context.Context) (*Candidate, error) { return s.analyzer.Analyze(ctx, asset) },
		}
	}
	results := s.pool.Run(analysisCtx, jobs)

	var cands []Candidate
	for i, res := range results {
		kind := outcomeKind(res)
		report.Outcomes[kind]++
		s.metrics.RecordOutcome(kind)
		if kind != models.KindSkipped {
			report.Analyzed++
		}
		if res.Err == nil && res.Value != nil {
			cands = append(cands, *res.Value)
			s.metrics.RecordConfirmed(string(res.Value.Asset.Tier), string(res.Value.Signal.Direction))
		}
		s.logOutcome(items[i], res, kind)
	}
	report.Confirmed = len(cands)
	report.Degraded = report.Analyzed < report.Expected

	if len(cands) > 0 {
		s.log.Info("processing confirmed signals", logger.Int("signals", len(cands)))
	}
	report.Dispatch = s.dispatcher.Dispatch(ctx, cands)

	report.Duration = time.Since(start)
	s.metrics.RecordCycle(report.Duration, report.Expected, report.Analyzed, report.Degraded)
	if s.stats != nil {
		s.stats.Record(report)
	}

	fields := []logger.Field{
		logger.Int("cycle", report.Cycle),
		logger.Int("alerts", report.Dispatch.Sent),
		logger.Int("confirmed", report.Confirmed),
		logger.Int("analyzed", report.Analyzed),
		logger.Int("expected", report.Expected),
		logger.Duration("duration", report.Duration),
	}
	if report.Degraded {
		s.log.Warn("cycle complete, degraded", fields...)
	} else {
		s.log.Info("cycle complete", fields...)
	}
	return report, nil
}

// plan drops blocked and untiered assets and orders the rest high risk
// first, numbering each tier from 1.
func (s *Scanner) plan(assets []models.Asset, report *CycleReport) []scanItem {
	byTier := map[models.Tier][]models.Asset{}
	for _, a := range assets {
		if !a.Tier.Valid() {
			continue
		}
		if s.blocklist != nil && s.blocklist.Blocked(a.Symbol) {
			report.Blocked++
			continue
		}
		byTier[a.Tier] = append(byTier[a.Tier], a)
	}

	var items []scanItem
	for _, tier := range []models.Tier{models.TierHighRisk, models.TierStandard} {
		for i, a := range byTier[tier] {
			items = append(items, scanItem{asset: a, index: i + 1, total: len(byTier[tier])})
		}
	}
	return items
}

func countTier(items []scanItem, tier models.Tier) int {
	n := 0
	for _, it := range items {
		if it.asset.Tier == tier {
			n++
		}
	}
	return n
}

func outcomeKind(res queue.Result[*Candidate]) string {
	switch {
	case res.Skipped(),
		errors.Is(res.Err, context.DeadlineExceeded),
		errors.Is(res.Err, context.Canceled):
		return models.KindSkipped
	case res.Err != nil:
		return models.Kind(res.Err)
	case res.Value == nil:
		return models.KindNoSignal
	default:
		return models.KindOK
	}
}

// logOutcome logs the first few results of a tier, every n-th, and every
// confirmed signal.
func (s *Scanner) logOutcome(it scanItem, res queue.Result[*Candidate], kind string) {
	confirmed := res.Err == nil && res.Value != nil
	if it.index > s.cfg.LogFirst && it.index%s.cfg.LogEvery != 0 && !confirmed {
		return
	}
	fields := []logger.Field{
		logger.String("tier", string(it.asset.Tier)),
		logger.String("progress", fmt.Sprintf("%d/%d", it.index, it.total)),
		logger.String("symbol", it.asset.Symbol),
		logger.String("outcome", kind),
	}
	if confirmed {
		sig := res.Value.Signal
		s.log.Info("confirmed signal", append(fields,
			logger.String("direction", string(sig.Direction)),
			logger.String("reason", sig.Reason),
			logger.String("source", res.Value.Resolved.Source),
		)...)
		return
	}
	if res.Err != nil {
		fields = append(fields, logger.Error(res.Err))
	}
	s.log.Info("asset analyzed", fields...)
}

package usecase

import (
	"context"
	"fmt"

	"PulseScan/internal/domain/models"
	"PulseScan/internal/services/analysis"
	"PulseScan/pkg/logger"
)

// MarketFetcher supplies the paired timeframes for one asset.
type MarketFetcher interface {
	FetchTimeframes(ctx context.Context, symbol string, reqs []TimeframeRequest) (*MarketData, error)
}

// Candidate is a confirmed signal waiting for dedup and delivery.
type Candidate struct {
	Asset    models.Asset
	Signal   models.ConfirmedSignal
	Resolved models.ResolvedSymbol
}

type AnalyzerConfig struct {
	Fast  TimeframeRequest
	Slow  TimeframeRequest
	Stoch analysis.StochRSIParams
}

// Analyzer runs the per-asset pipeline: fetch both timeframes, detect a
// TrendPulse event on the fast one, confirm it with StochRSI on the slow
// one.
type Analyzer struct {
	data MarketFetcher
	cfg  AnalyzerConfig
	log  *logger.Logger
}

func NewAnalyzer(data MarketFetcher, cfg AnalyzerConfig, log *logger.Logger) *Analyzer {
	if cfg.Stoch.RSIPeriod == 0 {
		cfg.Stoch = analysis.DefaultStochRSI()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Analyzer{data: data, cfg: cfg, log: log}
}

// Analyze returns a candidate, nil for no signal, or an error carrying one
// of the outcome sentinels.
func (a *Analyzer) Analyze(ctx context.Context, asset models.Asset) (*Candidate, error) {
	md, err := a.data.FetchTimeframes(ctx, asset.Symbol, []TimeframeRequest{a.cfg.Fast, a.cfg.Slow})
	if err != nil {
		return nil, err
	}

	ev, reading, err := analysis.DetectSignal(asset, md.Series[a.cfg.Fast.Timeframe])
	if err != nil {
		return nil, fmt.Errorf("%s trendpulse: %w", asset.Symbol, err)
	}
	if ev == nil {
		return nil, nil
	}
	a.log.Debug("trendpulse event",
		logger.String("symbol", asset.Symbol),
		logger.String("direction", string(ev.Direction)),
		logger.Float64("wt1", reading.WT1),
		logger.Float64("wt2", reading.WT2),
	)

	st, err := a.cfg.Stoch.Evaluate(md.Series[a.cfg.Slow.Timeframe])
	if err != nil {
		return nil, fmt.Errorf("%s stochrsi: %w", asset.Symbol, err)
	}
	confirmed, err := analysis.Confirm(*ev, st)
	if err != nil {
		return nil, err
	}
	return &Candidate{Asset: asset, Signal: confirmed, Resolved: md.Resolved}, nil
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"PulseScan/internal/domain/models"
	drepo "PulseScan/internal/domain/repository"
	"PulseScan/internal/service/exchange"
	xhttp "PulseScan/pkg/http"
	"PulseScan/pkg/logger"
)

// TimeframeRequest asks for the last Limit candles of one timeframe.
type TimeframeRequest struct {
	Timeframe string
	Limit     int
}

// MarketData is a complete multi-timeframe fetch for one asset.
type MarketData struct {
	Resolved models.ResolvedSymbol
	Series   map[string][]models.Candle
}

// Resolver finds where an asset trades and pulls its candles. Sources are
// tried strictly in priority order; the first one listing an active pair
// wins and no other source is consulted for that asset.
type Resolver struct {
	sources []drepo.MarketSource
	retries int
	backoff time.Duration
	log     *logger.Logger

	mu       sync.RWMutex
	resolved map[string]models.ResolvedSymbol

	sleep func(context.Context, time.Duration) error
}

func NewResolver(sources []drepo.MarketSource, retries int, backoff time.Duration, log *logger.Logger) *Resolver {
	if retries < 1 {
		retries = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{
		sources:  sources,
		retries:  retries,
		backoff:  backoff,
		log:      log,
		resolved: make(map[string]models.ResolvedSymbol),
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resolve maps symbol to a source and pair. Results are kept for the life
// of the process unless a later fetch through them fails.
func (r *Resolver) Resolve(ctx context.Context, symbol string) (models.ResolvedSymbol, error) {
	symbol = strings.ToUpper(symbol)

	r.mu.RLock()
	rs, ok := r.resolved[symbol]
	r.mu.RUnlock()
	if ok {
		return rs, nil
	}

	for _, src := range r.sources {
		markets, err := src.Markets(ctx)
		if err != nil {
			r.log.Debug("market listing unavailable",
				logger.String("source", src.Name()),
				logger.Error(err),
			)
			continue
		}
		for _, pair := range exchange.PairVariants(src.Name(), symbol) {
			if m, ok := markets[pair]; ok && m.Active {
				rs = models.ResolvedSymbol{Source: src.Name(), Pair: pair}
				r.mu.Lock()
				r.resolved[symbol] = rs
				r.mu.Unlock()
				return rs, nil
			}
		}
	}
	return models.ResolvedSymbol{}, fmt.Errorf("%s not listed on any source: %w", symbol, models.ErrDataUnavailable)
}

// Forget drops a cached resolution.
func (r *Resolver) Forget(symbol string) {
	r.mu.Lock()
	delete(r.resolved, strings.ToUpper(symbol))
	r.mu.Unlock()
}

func (r *Resolver) source(name string) drepo.MarketSource {
	for _, s := range r.sources {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// FetchTimeframes resolves symbol and fetches every requested timeframe.
// Any timeframe failing fails the whole fetch with ErrDataUnavailable.
func (r *Resolver) FetchTimeframes(ctx context.Context, symbol string, reqs []TimeframeRequest) (*MarketData, error) {
	rs, err := r.Resolve(ctx, symbol)
	if err != nil {
		return nil, err
	}
	src := r.source(rs.Source)
	if src == nil {
		return nil, fmt.Errorf("source %s gone: %w", rs.Source, models.ErrDataUnavailable)
	}

	data := &MarketData{Resolved: rs, Series: make(map[string][]models.Candle, len(reqs))}
	for _, req := range reqs {
		candles, err := r.fetchWithRetry(ctx, src, rs.Pair, req)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				r.Forget(symbol)
			}
			return nil, fmt.Errorf("%s %s on %s: %w", symbol, req.Timeframe, rs.Source, err)
		}
		data.Series[req.Timeframe] = candles
	}
	return data, nil
}

// fetchWithRetry retries transient failures with a linear backoff. A short
// series is not retried: the exchange answered, it just lacks history.
// Neither is an unlisted pair or a 4xx answer. Source errors without an
// HTTP classification, such as the Binance SDK's, count as transient.
func (r *Resolver) fetchWithRetry(ctx context.Context, src drepo.MarketSource, pair string, req TimeframeRequest) ([]models.Candle, error) {
	var lastErr error
	for attempt := 1; attempt <= r.retries; attempt++ {
		raw, err := src.FetchOHLCV(ctx, pair, req.Timeframe, req.Limit)
		if err == nil {
			candles, dropped := exchange.Coerce(raw)
			if len(candles) < exchange.MinRows {
				return nil, fmt.Errorf("%d usable rows (%d dropped), need %d: %w",
					len(candles), dropped, exchange.MinRows, models.ErrDataUnavailable)
			}
			return candles, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !xhttp.IsTemporary(err) {
			return nil, fmt.Errorf("%w: %w", err, models.ErrDataUnavailable)
		}
		if attempt < r.retries {
			r.log.Debug("ohlcv fetch retry",
				logger.String("source", src.Name()),
				logger.String("pair", pair),
				logger.String("timeframe", req.Timeframe),
				logger.Int("attempt", attempt),
				logger.Error(err),
			)
			if err := r.sleep(ctx, time.Duration(attempt)*r.backoff); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("after %d attempts: %v: %w", r.retries, lastErr, models.ErrDataUnavailable)
}

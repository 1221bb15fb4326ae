package exchange

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"PulseScan/internal/domain/models"
	"PulseScan/internal/domain/repository"
	"PulseScan/internal/service/metrics"
	"PulseScan/pkg/logger"

	"github.com/adshao/go-binance/v2"
)

// Binance serves spot pairs through the go-binance client.
type Binance struct {
	client *binance.Client
	opts   Options
	base   *restBase
}

// NewBinance creates the source. baseURL overrides the client's default
// endpoint when set.
func NewBinance(baseURL, apiKey, secretKey string, opts Options) *Binance {
	opts = opts.withDefaults()
	client := binance.NewClient(apiKey, secretKey)
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	client.HTTPClient = &http.Client{Timeout: opts.Timeout}
	return &Binance{
		client: client,
		opts:   opts,
		base:   newRestBase("binance", baseURL, opts),
	}
}

func (b *Binance) Name() string { return "binance" }

func (b *Binance) Markets(ctx context.Context) (map[string]repository.Market, error) {
	return b.base.cachedMarkets(ctx, b.loadMarkets)
}

func (b *Binance) loadMarkets(ctx context.Context) (map[string]repository.Market, error) {
	var (
		info *binance.ExchangeInfo
		err  error
	)
	for i := 1; i <= b.opts.Retries; i++ {
		if err = b.opts.Limiter.Wait(ctx, b.Name()); err != nil {
			return nil, err
		}
		start := time.Now()
		info, err = b.client.NewExchangeInfoService().Do(ctx)
		metrics.ExchangeLatency.WithLabelValues(b.Name(), "exchange_info").Observe(time.Since(start).Seconds())
		if err == nil {
			break
		}
		b.opts.Log.Debug("binance exchange info failed", logger.Int("attempt", i), logger.Error(err))
		if i == b.opts.Retries {
			metrics.ExchangeErrors.WithLabelValues(b.Name(), "exchange_info").Inc()
			return nil, fmt.Errorf("binance exchange_info: %w", err)
		}
		metrics.ExchangeRetries.WithLabelValues(b.Name(), "exchange_info").Inc()
		select {
		case <-time.After(time.Duration(i) * b.opts.Backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	markets := make(map[string]repository.Market, len(info.Symbols))
	for _, s := range info.Symbols {
		pair := unifiedPair(s.BaseAsset, s.QuoteAsset, "")
		markets[pair] = repository.Market{Pair: pair, Native: s.Symbol, Active: s.Status == "TRADING"}
	}
	return markets, nil
}

func (b *Binance) FetchOHLCV(ctx context.Context, pair, timeframe string, limit int) ([]models.RawCandle, error) {
	markets, err := b.Markets(ctx)
	if err != nil {
		return nil, err
	}
	m, err := lookup(markets, b.Name(), pair)
	if err != nil {
		return nil, err
	}
	if err := b.opts.Limiter.Wait(ctx, b.Name()); err != nil {
		return nil, err
	}

	start := time.Now()
	klines, err := b.client.NewKlinesService().
		Symbol(m.Native).
		Interval(timeframe).
		Limit(limit).
		Do(ctx)
	metrics.ExchangeLatency.WithLabelValues(b.Name(), "klines").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("binance klines %s: %w", m.Native, err)
	}

	rows := make([]models.RawCandle, 0, len(klines))
	for _, k := range klines {
		rows = append(rows, models.RawCandle{
			OpenTime: k.OpenTime,
			Open:     k.Open,
			High:     k.High,
			Low:      k.Low,
			Close:    k.Close,
			Volume:   k.Volume,
		})
	}
	return rows, nil
}

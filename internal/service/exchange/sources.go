package exchange

import (
	"fmt"

	"PulseScan/internal/domain/repository"
	"PulseScan/internal/service/cache"
	"PulseScan/internal/service/ratelimit"
	"PulseScan/pkg/config"
	"PulseScan/pkg/logger"
)

// NewSources builds the configured sources in priority order. Every source
// shares one limiter (keyed per source) and one listing cache.
func NewSources(cfg *config.Config, log *logger.Logger) ([]repository.MarketSource, error) {
	ex := cfg.Exchanges
	opts := Options{
		Timeout:    ex.Timeout,
		Retries:    ex.Retries,
		Backoff:    ex.Backoff,
		MarketsTTL: ex.MarketsTTL,
		UserAgent:  ex.UserAgent,
		Limiter:    ratelimit.New(ex.RequestsPerSecond, ex.Burst),
		Listings:   cache.NewTTLCache[map[string]repository.Market](),
		Log:        log.With(logger.String("component", "exchange")),
	}

	sources := make([]repository.MarketSource, 0, len(ex.Order))
	seen := make(map[string]bool, len(ex.Order))
	for _, name := range ex.Order {
		if seen[name] {
			return nil, fmt.Errorf("exchange %s listed twice", name)
		}
		seen[name] = true

		switch name {
		case "bingx":
			sources = append(sources, NewBingX(ex.BingX.BaseURL, ex.BingX.APIKey, opts))
		case "binance":
			sources = append(sources, NewBinance(ex.Binance.BaseURL, ex.Binance.APIKey, ex.Binance.SecretKey, opts))
		case "okx":
			sources = append(sources, NewOKX(ex.OKX.BaseURL, opts))
		case "bybit":
			sources = append(sources, NewBybit(ex.Bybit.BaseURL, opts))
		default:
			return nil, fmt.Errorf("unknown exchange %q", name)
		}
	}
	return sources, nil
}

// PairVariants lists the unified pairs tried for symbol on a source, in
// order. Perpetual variants exist only where the source lists swaps.
func PairVariants(source, symbol string) []string {
	variants := []string{symbol + "/USDT", symbol + "/BUSD", symbol + "/USD"}
	switch source {
	case "bingx", "okx", "bybit":
		variants = append(variants, symbol+"/USDT:USDT", symbol+"/USD:USD")
	}
	return variants
}

package chart

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"PulseScan/internal/domain/service"
	"PulseScan/pkg/cache"
	xhttp "PulseScan/pkg/http"
	"PulseScan/pkg/logger"
)

type venue struct {
	exchange string
	quote    string
}

// Probe order; the first venue is also the fallback.
var venues = []venue{
	{"BYBIT", "USDT"},
	{"BINANCE", "USDT"},
	{"OKX", "USDT"},
	{"COINBASE", "USD"},
}

type Options struct {
	BaseURL      string
	Probe        bool
	ProbeTimeout time.Duration
	CacheTTL     time.Duration
}

type cachedLink struct {
	URL      string `json:"url"`
	Exchange string `json:"exchange"`
}

// TradingView resolves a chart link that actually loads, probing venues
// with HEAD requests and caching the winner per symbol.
type TradingView struct {
	client *xhttp.Client
	opts   Options
	cache  cache.Service
	log    *logger.Logger
}

func NewTradingView(client *xhttp.Client, opts Options, c cache.Service, log *logger.Logger) *TradingView {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://www.tradingview.com"
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 3 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}
	if log == nil {
		log = logger.Nop()
	}
	return &TradingView{client: client, opts: opts, cache: c, log: log}
}

func (tv *TradingView) url(v venue, symbol string) string {
	return fmt.Sprintf("%s/chart/?symbol=%s:%s%s", strings.TrimRight(tv.opts.BaseURL, "/"), v.exchange, symbol, v.quote)
}

// Link never fails: with no working probe it returns the BYBIT chart.
func (tv *TradingView) Link(ctx context.Context, symbol string) string {
	symbol = strings.ToUpper(symbol)
	fallback := tv.url(venues[0], symbol)
	if !tv.opts.Probe || tv.client == nil {
		return fallback
	}

	key := cache.GenerateKey("chart", symbol)
	if tv.cache != nil {
		var hit cachedLink
		if err := tv.cache.Get(ctx, key, &hit); err == nil && hit.URL != "" {
			return hit.URL
		}
	}

	for _, v := range venues {
		u := tv.url(v, symbol)
		if !tv.probe(ctx, u) {
			continue
		}
		if tv.cache != nil {
			if err := tv.cache.Set(ctx, key, cachedLink{URL: u, Exchange: v.exchange}, tv.opts.CacheTTL); err != nil {
				tv.log.Debug("chart cache write failed", logger.String("symbol", symbol), logger.Error(err))
			}
		}
		return u
	}
	tv.log.Debug("no chart probe succeeded, using fallback", logger.String("symbol", symbol))
	return fallback
}

func (tv *TradingView) probe(ctx context.Context, u string) bool {
	ctx, cancel := context.WithTimeout(ctx, tv.opts.ProbeTimeout)
	defer cancel()
	code, err := tv.client.Probe(ctx, u)
	return err == nil && code == http.StatusOK
}

var _ service.ChartLinker = (*TradingView)(nil)

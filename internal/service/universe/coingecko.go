package universe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"PulseScan/internal/domain/models"
	"PulseScan/internal/domain/service"
	"PulseScan/pkg/cache"
	xhttp "PulseScan/pkg/http"
	"PulseScan/pkg/logger"
)

const marketsPath = "/api/v3/coins/markets"

// Thresholds decide which tier, if any, a coin belongs to.
type Thresholds struct {
	StandardMinCap    float64
	StandardMinVolume float64
	HighRiskMinCap    float64
	HighRiskMinVolume float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		StandardMinCap:    500_000_000,
		StandardMinVolume: 30_000_000,
		HighRiskMinCap:    10_000_000,
		HighRiskMinVolume: 10_000_000,
	}
}

// Tier classifies a coin. The second result is false when it qualifies
// for neither tier.
func (t Thresholds) Tier(marketCap, volume float64) (models.Tier, bool) {
	switch {
	case marketCap >= t.StandardMinCap && volume >= t.StandardMinVolume:
		return models.TierStandard, true
	case marketCap >= t.HighRiskMinCap && marketCap < t.StandardMinCap && volume >= t.HighRiskMinVolume:
		return models.TierHighRisk, true
	}
	return "", false
}

type Options struct {
	BaseURL     string
	APIKey      string
	Pages       int
	PerPage     int
	PageDelay   time.Duration
	CacheTTL    time.Duration
	Thresholds  Thresholds
	Stablecoins []string
}

type coinMarket struct {
	ID                       string   `json:"id"`
	Symbol                   string   `json:"symbol"`
	Name                     string   `json:"name"`
	CurrentPrice             *float64 `json:"current_price"`
	MarketCap                *float64 `json:"market_cap"`
	TotalVolume              *float64 `json:"total_volume"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
}

func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// CoinGecko lists the scan universe from the coins/markets endpoint. The
// filtered result is cached; when a refresh fails the last good list is
// served instead.
type CoinGecko struct {
	client *xhttp.Client
	opts   Options
	stable map[string]bool
	cache  cache.Service
	log    *logger.Logger

	mu       sync.Mutex
	lastGood []models.Asset

	sleep func(context.Context, time.Duration) error
}

func NewCoinGecko(client *xhttp.Client, opts Options, c cache.Service, log *logger.Logger) *CoinGecko {
	if opts.Pages <= 0 {
		opts.Pages = 5
	}
	if opts.PerPage <= 0 {
		opts.PerPage = 250
	}
	if opts.Thresholds == (Thresholds{}) {
		opts.Thresholds = DefaultThresholds()
	}
	if log == nil {
		log = logger.Nop()
	}
	stable := make(map[string]bool, len(opts.Stablecoins))
	for _, s := range opts.Stablecoins {
		stable[strings.ToUpper(s)] = true
	}
	return &CoinGecko{
		client: client,
		opts:   opts,
		stable: stable,
		cache:  c,
		log:    log,
		sleep:  sleep,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *CoinGecko) cacheKey() string {
	return cache.GenerateKey("universe", "coingecko", g.opts.Pages, g.opts.PerPage)
}

func (g *CoinGecko) Assets(ctx context.Context) ([]models.Asset, error) {
	if g.cache != nil {
		var cached []models.Asset
		err := g.cache.Get(ctx, g.cacheKey(), &cached)
		switch {
		case err == nil:
			g.log.Debug("using cached universe", logger.Int("assets", len(cached)))
			return cached, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			g.log.Warn("universe cache read failed", logger.Error(err))
		}
	}

	assets, err := g.fetch(ctx)
	if err != nil {
		g.mu.Lock()
		last := g.lastGood
		g.mu.Unlock()
		if len(last) > 0 {
			g.log.Error("coingecko refresh failed, reusing last universe",
				logger.Int("assets", len(last)),
				logger.Error(err),
			)
			return last, nil
		}
		return nil, fmt.Errorf("coingecko: %w", err)
	}

	g.mu.Lock()
	g.lastGood = assets
	g.mu.Unlock()
	if g.cache != nil {
		if err := g.cache.Set(ctx, g.cacheKey(), assets, g.opts.CacheTTL); err != nil {
			g.log.Warn("universe cache write failed", logger.Error(err))
		}
	}
	g.log.Info("universe refreshed",
		logger.Int("high_risk", count(assets, models.TierHighRisk)),
		logger.Int("standard", count(assets, models.TierStandard)),
	)
	return assets, nil
}

func (g *CoinGecko) fetch(ctx context.Context) ([]models.Asset, error) {
	var headers map[string]string
	if g.opts.APIKey != "" {
		headers = map[string]string{"x-cg-demo-api-key": g.opts.APIKey}
	}

	var raw []coinMarket
	for page := 1; page <= g.opts.Pages; page++ {
		var batch []coinMarket
		err := g.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:  xhttp.MethodGet,
			URL:     strings.TrimRight(g.opts.BaseURL, "/") + marketsPath,
			Headers: headers,
			QueryParams: map[string][]string{
				"vs_currency": {"usd"},
				"order":       {"market_cap_desc"},
				"per_page":    {strconv.Itoa(g.opts.PerPage)},
				"page":        {strconv.Itoa(page)},
				"sparkline":   {"false"},
			},
		}, &batch)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		if len(batch) == 0 {
			break
		}
		raw = append(raw, batch...)
		if page < g.opts.Pages {
			if err := g.sleep(ctx, g.opts.PageDelay); err != nil {
				return nil, err
			}
		}
	}
	g.log.Debug("coingecko markets fetched", logger.Int("coins", len(raw)))
	return g.filter(raw), nil
}

// filter drops incomplete rows, stablecoins and coins below both tiers.
// Symbols are upper-cased and the first occurrence of a symbol wins.
func (g *CoinGecko) filter(raw []coinMarket) []models.Asset {
	seen := make(map[string]bool, len(raw))
	out := make([]models.Asset, 0, len(raw))
	for _, c := range raw {
		sym := strings.ToUpper(strings.TrimSpace(c.Symbol))
		price, capital, vol := value(c.CurrentPrice), value(c.MarketCap), value(c.TotalVolume)
		if sym == "" || price <= 0 || capital <= 0 || vol <= 0 || g.stable[sym] || seen[sym] {
			continue
		}
		tier, ok := g.opts.Thresholds.Tier(capital, vol)
		if !ok {
			continue
		}
		seen[sym] = true
		out = append(out, models.Asset{
			Symbol:    sym,
			Name:      c.Name,
			Price:     price,
			MarketCap: capital,
			Volume24h: vol,
			Change24h: value(c.PriceChangePercentage24h),
			Tier:      tier,
		})
	}
	return out
}

func count(assets []models.Asset, tier models.Tier) int {
	n := 0
	for _, a := range assets {
		if a.Tier == tier {
			n++
		}
	}
	return n
}

var _ service.UniverseProvider = (*CoinGecko)(nil)

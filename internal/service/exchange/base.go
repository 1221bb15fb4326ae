package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PulseScan/internal/domain/repository"
	"PulseScan/internal/service/cache"
	"PulseScan/internal/service/metrics"
	"PulseScan/internal/service/ratelimit"
	xhttp "PulseScan/pkg/http"
	"PulseScan/pkg/logger"
)

// Options are shared by every source.
type Options struct {
	Timeout    time.Duration
	Retries    int
	Backoff    time.Duration
	MarketsTTL time.Duration
	UserAgent  string
	Limiter    *ratelimit.Limiter
	Listings   *cache.TTLCache[map[string]repository.Market]
	Client     *xhttp.Client
	Log        *logger.Logger
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Retries < 1 {
		o.Retries = 1
	}
	if o.Backoff <= 0 {
		o.Backoff = 500 * time.Millisecond
	}
	if o.MarketsTTL <= 0 {
		o.MarketsTTL = 6 * time.Hour
	}
	if o.Limiter == nil {
		o.Limiter = ratelimit.New(0, 1)
	}
	if o.Listings == nil {
		o.Listings = cache.NewTTLCache[map[string]repository.Market]()
	}
	if o.Client == nil {
		clientOpts := []xhttp.ClientOption{xhttp.WithTimeout(o.Timeout)}
		if o.UserAgent != "" {
			clientOpts = append(clientOpts, xhttp.WithUserAgent(o.UserAgent))
		}
		o.Client = xhttp.NewClient(clientOpts...)
	}
	if o.Log == nil {
		o.Log = logger.Nop()
	}
	return o
}

// restBase holds what the REST sources have in common: base URL, pacing,
// metrics and the market listing cache.
type restBase struct {
	name    string
	baseURL string
	headers map[string]string
	opts    Options

	listingMu sync.Mutex
}

func newRestBase(name, baseURL string, opts Options) *restBase {
	metrics.Register()
	return &restBase{name: name, baseURL: baseURL, opts: opts.withDefaults()}
}

func (b *restBase) Name() string { return b.name }

// getJSON issues one paced GET under baseURL and decodes the body.
func (b *restBase) getJSON(ctx context.Context, endpoint, path string, query map[string][]string, dest interface{}) error {
	if b.baseURL == "" {
		return fmt.Errorf("%s: base url not configured", b.name)
	}
	if err := b.opts.Limiter.Wait(ctx, b.name); err != nil {
		return fmt.Errorf("%s %s: rate limit wait: %w", b.name, endpoint, err)
	}

	start := time.Now()
	err := b.opts.Client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         b.baseURL + path,
		Headers:     b.headers,
		QueryParams: query,
	}, dest)
	metrics.ExchangeLatency.WithLabelValues(b.name, endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%s %s: %w", b.name, endpoint, err)
	}
	return nil
}

// getJSONWithRetry retries temporary failures with a linear backoff.
func (b *restBase) getJSONWithRetry(ctx context.Context, endpoint, path string, query map[string][]string, dest interface{}) error {
	var err error
	for i := 1; i <= b.opts.Retries; i++ {
		err = b.getJSON(ctx, endpoint, path, query, dest)
		if err == nil {
			return nil
		}
		if !xhttp.IsTemporary(err) || i == b.opts.Retries {
			break
		}
		metrics.ExchangeRetries.WithLabelValues(b.name, endpoint).Inc()
		select {
		case <-time.After(time.Duration(i) * b.opts.Backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	metrics.ExchangeErrors.WithLabelValues(b.name, endpoint).Inc()
	return err
}

// cachedMarkets returns the listing from the shared cache, loading it at
// most once per TTL per source.
func (b *restBase) cachedMarkets(ctx context.Context, load func(context.Context) (map[string]repository.Market, error)) (map[string]repository.Market, error) {
	if m, ok := b.opts.Listings.Get(b.name); ok {
		return m, nil
	}

	b.listingMu.Lock()
	defer b.listingMu.Unlock()
	if m, ok := b.opts.Listings.Get(b.name); ok {
		return m, nil
	}

	m, err := load(ctx)
	if err != nil {
		return nil, err
	}
	b.opts.Listings.Set(b.name, m, b.opts.MarketsTTL)
	b.opts.Log.Info("market listing loaded", logger.String("source", b.name), logger.Int("markets", len(m)))
	return m, nil
}

// lookup resolves a unified pair to the listed market.
func lookup(markets map[string]repository.Market, source, pair string) (repository.Market, error) {
	m, ok := markets[pair]
	if !ok {
		return repository.Market{}, xhttp.Permanent(fmt.Errorf("%s: pair %s not listed", source, pair))
	}
	return m, nil
}

func unsupportedTimeframe(source, timeframe string) error {
	return xhttp.Permanent(fmt.Errorf("%s: unsupported timeframe %s", source, timeframe))
}

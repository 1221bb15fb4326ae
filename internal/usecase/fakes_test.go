package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"PulseScan/internal/domain/models"
	drepo "PulseScan/internal/domain/repository"
	"PulseScan/internal/domain/service"
)

var errTransient = errors.New("connection reset")

type fakeSource struct {
	name       string
	mu         sync.Mutex
	markets    map[string]drepo.Market
	marketsErr error
	candles    map[string][]models.RawCandle
	failures   map[string]int
	failErr    error
	calls      map[string]int
}

func newFakeSource(name string) *fakeSource {
	return &fakeSource{
		name:     name,
		markets:  make(map[string]drepo.Market),
		candles:  make(map[string][]models.RawCandle),
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}
}

func (f *fakeSource) list(pair string, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markets[pair] = drepo.Market{Pair: pair, Native: pair, Active: active}
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Markets(context.Context) (map[string]drepo.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.marketsErr != nil {
		return nil, f.marketsErr
	}
	out := make(map[string]drepo.Market, len(f.markets))
	for k, v := range f.markets {
		out[k] = v
	}
	return out, nil
}

func (f *fakeSource) FetchOHLCV(_ context.Context, pair, timeframe string, limit int) ([]models.RawCandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[timeframe]++
	if f.failures[timeframe] > 0 {
		f.failures[timeframe]--
		if f.failErr != nil {
			return nil, f.failErr
		}
		return nil, errTransient
	}
	if _, ok := f.markets[pair]; !ok {
		return nil, fmt.Errorf("%s not listed", pair)
	}
	rows := f.candles[timeframe]
	if len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	return rows, nil
}

var fixtureStart = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// rawFromDeltas builds hourly rows whose close moves by each delta, with a
// fixed wick of 50 on both sides.
func rawFromDeltas(start float64, step time.Duration, deltas []float64) []models.RawCandle {
	out := make([]models.RawCandle, len(deltas))
	prev := start
	for i, d := range deltas {
		c := prev + d
		out[i] = models.RawCandle{
			OpenTime: fixtureStart.Add(time.Duration(i) * step).UnixMilli(),
			Open:     fmtFloat(prev),
			High:     fmtFloat(c + 50),
			Low:      fmtFloat(c - 50),
			Close:    fmtFloat(c),
			Volume:   "1000",
		}
		prev = c
	}
	return out
}

func fmtFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func syntheticCandles(n int, step float64) []models.RawCandle {
	deltas := make([]float64, n)
	for i := range deltas {
		deltas[i] = step
	}
	return rawFromDeltas(1000, time.Hour, deltas)
}

// selloffReversal is a steady decline, a sharper drop on the candle before
// the closed one and a bounce on the closed one: a bullish cross deep in
// oversold territory. sign -1 mirrors it into an overbought bearish cross.
func selloffReversal(n int, sign float64) []models.RawCandle {
	deltas := make([]float64, 0, n)
	for i := 0; i < n-3; i++ {
		deltas = append(deltas, -sign)
	}
	deltas = append(deltas, -3*sign, 2*sign, -sign)
	return rawFromDeltas(1000, time.Hour, deltas)
}

// steadyTrend moves the close the same way every 2h candle; a falling one
// pins StochRSI K and D at 0.
func steadyTrend(n int, step float64) []models.RawCandle {
	deltas := make([]float64, n)
	for i := range deltas {
		deltas[i] = step
	}
	return rawFromDeltas(5000, 2*time.Hour, deltas)
}

type fakeNotifier struct {
	mu     sync.Mutex
	sent   []service.Alert
	failOn map[string]bool
}

func (n *fakeNotifier) Notify(_ context.Context, a service.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failOn[a.Signal.Asset] {
		return errors.New("chat unreachable")
	}
	n.sent = append(n.sent, a)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type fakeUniverse struct {
	assets []models.Asset
	err    error
}

func (u *fakeUniverse) Assets(context.Context) ([]models.Asset, error) {
	return u.assets, u.err
}

type staticLinker string

func (s staticLinker) Link(context.Context, string) string { return string(s) }

package universe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"PulseScan/internal/domain/models"
	"PulseScan/pkg/cache"
	xhttp "PulseScan/pkg/http"
)

func coin(symbol string, price, capital, volume float64) map[string]interface{} {
	return map[string]interface{}{
		"id":                          symbol,
		"symbol":                      symbol,
		"name":                        symbol,
		"current_price":               price,
		"market_cap":                  capital,
		"total_volume":                volume,
		"price_change_percentage_24h": -2.5,
	}
}

func newGecko(t *testing.T, pages [][]map[string]interface{}, fail *atomic.Bool, c cache.Service) (*CoinGecko, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != marketsPath {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-cg-demo-api-key") != "demo" {
			t.Errorf("missing api key header")
		}
		if fail != nil && fail.Load() {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if r.URL.Query().Get("order") != "market_cap_desc" {
			t.Errorf("order = %s", r.URL.Query().Get("order"))
		}
		var body []map[string]interface{}
		if page >= 1 && page <= len(pages) {
			body = pages[page-1]
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)

	g := NewCoinGecko(xhttp.NewClient(xhttp.WithTimeout(2*time.Second)), Options{
		BaseURL:     srv.URL,
		APIKey:      "demo",
		Pages:       5,
		PerPage:     2,
		CacheTTL:    time.Minute,
		Stablecoins: []string{"USDT", "USDC"},
	}, c, nil)
	g.sleep = func(context.Context, time.Duration) error { return nil }
	return g, &calls
}

func TestCoinGeckoFiltersAndTiers(t *testing.T) {
	pages := [][]map[string]interface{}{
		{coin("big", 100, 2e9, 5e8), coin("usdt", 1, 1e11, 1e10)},
		{coin("mid", 0.5, 1e8, 2e7), coin("thin", 3, 1e9, 1e6)},
		{coin("tiny", 0.01, 5e6, 2e7), coin("zero", 0, 1e9, 1e9)},
	}
	g, calls := newGecko(t, pages, nil, nil)

	assets, err := g.Assets(context.Background())
	if err != nil {
		t.Fatalf("Assets: %v", err)
	}
	if calls.Load() != 4 {
		t.Fatalf("calls = %d, want 3 pages plus the empty one", calls.Load())
	}
	if len(assets) != 2 {
		t.Fatalf("assets = %+v", assets)
	}
	if assets[0].Symbol != "BIG" || assets[0].Tier != models.TierStandard {
		t.Fatalf("first = %+v", assets[0])
	}
	if assets[1].Symbol != "MID" || assets[1].Tier != models.TierHighRisk || assets[1].Change24h != -2.5 {
		t.Fatalf("second = %+v", assets[1])
	}
}

func TestCoinGeckoCachesAndFallsBack(t *testing.T) {
	pages := [][]map[string]interface{}{{coin("big", 100, 2e9, 5e8)}}
	var fail atomic.Bool
	mem := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	g, calls := newGecko(t, pages, &fail, mem)

	if _, err := g.Assets(context.Background()); err != nil {
		t.Fatalf("Assets: %v", err)
	}
	first := calls.Load()
	if _, err := g.Assets(context.Background()); err != nil {
		t.Fatalf("cached Assets: %v", err)
	}
	if calls.Load() != first {
		t.Fatalf("second call hit the API")
	}

	_ = mem.Delete(context.Background(), g.cacheKey())
	fail.Store(true)
	assets, err := g.Assets(context.Background())
	if err != nil {
		t.Fatalf("fallback Assets: %v", err)
	}
	if len(assets) != 1 || assets[0].Symbol != "BIG" {
		t.Fatalf("fallback = %+v", assets)
	}
}

func TestCoinGeckoFailsWithoutHistory(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	g, _ := newGecko(t, nil, &fail, nil)
	if _, err := g.Assets(context.Background()); err == nil {
		t.Fatalf("expected error with no last good universe")
	}
}

func TestThresholdsTier(t *testing.T) {
	th := DefaultThresholds()
	cases := []struct {
		name    string
		capital float64
		volume  float64
		want    models.Tier
		ok      bool
	}{
		{"standard", 5e8, 3e7, models.TierStandard, true},
		{"standard low volume", 5e8, 2e7, "", false},
		{"high risk", 1e7, 1e7, models.TierHighRisk, true},
		{"high risk low volume", 1e8, 9e6, "", false},
		{"too small", 9e6, 1e9, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := th.Tier(tc.capital, tc.volume)
			if got != tc.want || ok != tc.ok {
				t.Fatalf("Tier(%v, %v) = %v, %v", tc.capital, tc.volume, got, ok)
			}
		})
	}
}

package exchange

import (
	"context"
	"fmt"
	"strconv"

	"PulseScan/internal/domain/models"
	"PulseScan/internal/domain/repository"
	"PulseScan/pkg/logger"
)

var bybitIntervals = map[string]string{
	"1m": "1", "5m": "5", "15m": "15", "30m": "30",
	"1h": "60", "2h": "120", "4h": "240", "1d": "D",
}

// Bybit serves spot and linear perpetuals from the v5 API.
type Bybit struct {
	*restBase
}

func NewBybit(baseURL string, opts Options) *Bybit {
	return &Bybit{restBase: newRestBase("bybit", baseURL, opts)}
}

type bybitResponse[T any] struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  T      `json:"result"`
}

type bybitInstruments struct {
	List []struct {
		Symbol     string `json:"symbol"`
		BaseCoin   string `json:"baseCoin"`
		QuoteCoin  string `json:"quoteCoin"`
		SettleCoin string `json:"settleCoin"`
		Status     string `json:"status"`
	} `json:"list"`
	NextPageCursor string `json:"nextPageCursor"`
}

// bybit caps listing pages; linear has well over one page
const bybitMaxPages = 10

func (b *Bybit) Markets(ctx context.Context) (map[string]repository.Market, error) {
	return b.cachedMarkets(ctx, b.loadMarkets)
}

func (b *Bybit) loadMarkets(ctx context.Context) (map[string]repository.Market, error) {
	markets := make(map[string]repository.Market)
	for _, category := range []string{"spot", "linear"} {
		cursor := ""
		for page := 0; page < bybitMaxPages; page++ {
			query := map[string][]string{"category": {category}, "limit": {"1000"}}
			if cursor != "" {
				query["cursor"] = []string{cursor}
			}
			var resp bybitResponse[bybitInstruments]
			if err := b.getJSONWithRetry(ctx, "instruments", "/v5/market/instruments-info", query, &resp); err != nil {
				if category == "spot" {
					return nil, err
				}
				b.opts.Log.Warn("bybit linear listing unavailable", logger.Error(err))
				break
			}
			if resp.RetCode != 0 {
				return nil, fmt.Errorf("bybit instruments: code %d: %s", resp.RetCode, resp.RetMsg)
			}

			for _, in := range resp.Result.List {
				settle := ""
				if category == "linear" {
					settle = in.SettleCoin
				}
				pair := unifiedPair(in.BaseCoin, in.QuoteCoin, settle)
				markets[pair] = repository.Market{Pair: pair, Native: in.Symbol, Active: in.Status == "Trading"}
			}

			cursor = resp.Result.NextPageCursor
			if cursor == "" {
				break
			}
		}
	}
	return markets, nil
}

func (b *Bybit) FetchOHLCV(ctx context.Context, pair, timeframe string, limit int) ([]models.RawCandle, error) {
	interval, ok := bybitIntervals[timeframe]
	if !ok {
		return nil, unsupportedTimeframe(b.name, timeframe)
	}
	markets, err := b.Markets(ctx)
	if err != nil {
		return nil, err
	}
	m, err := lookup(markets, b.name, pair)
	if err != nil {
		return nil, err
	}

	category := "spot"
	if isSwap(pair) {
		category = "linear"
	}
	var resp bybitResponse[struct {
		List [][]flexString `json:"list"`
	}]
	query := map[string][]string{
		"category": {category},
		"symbol":   {m.Native},
		"interval": {interval},
		"limit":    {strconv.Itoa(limit)},
	}
	if err := b.getJSON(ctx, "kline", "/v5/market/kline", query, &resp); err != nil {
		return nil, err
	}
	if resp.RetCode != 0 {
		return nil, fmt.Errorf("bybit kline: code %d: %s", resp.RetCode, resp.RetMsg)
	}
	return arrayRows(resp.Result.List)
}

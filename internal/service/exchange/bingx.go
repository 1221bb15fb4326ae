package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"PulseScan/internal/domain/models"
	"PulseScan/internal/domain/repository"
	"PulseScan/pkg/logger"
)

// BingX serves spot pairs and USDT-settled perpetuals.
type BingX struct {
	*restBase
}

func NewBingX(baseURL, apiKey string, opts Options) *BingX {
	b := &BingX{restBase: newRestBase("bingx", baseURL, opts)}
	if apiKey != "" {
		b.headers = map[string]string{"X-BX-APIKEY": apiKey}
	}
	return b
}

type bingxEnvelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e bingxEnvelope) err(endpoint string) error {
	if e.Code != 0 {
		return fmt.Errorf("bingx %s: code %d: %s", endpoint, e.Code, e.Msg)
	}
	return nil
}

func (b *BingX) Markets(ctx context.Context) (map[string]repository.Market, error) {
	return b.cachedMarkets(ctx, b.loadMarkets)
}

func (b *BingX) loadMarkets(ctx context.Context) (map[string]repository.Market, error) {
	var spot struct {
		bingxEnvelope
		Data struct {
			Symbols []struct {
				Symbol string `json:"symbol"`
				Status int    `json:"status"`
			} `json:"symbols"`
		} `json:"data"`
	}
	if err := b.getJSONWithRetry(ctx, "symbols", "/openApi/spot/v1/common/symbols", nil, &spot); err != nil {
		return nil, err
	}
	if err := spot.err("symbols"); err != nil {
		return nil, err
	}

	markets := make(map[string]repository.Market, len(spot.Data.Symbols))
	for _, s := range spot.Data.Symbols {
		base, quote, ok := strings.Cut(s.Symbol, "-")
		if !ok {
			continue
		}
		pair := unifiedPair(base, quote, "")
		markets[pair] = repository.Market{Pair: pair, Native: s.Symbol, Active: s.Status == 1}
	}

	var swap struct {
		bingxEnvelope
		Data []struct {
			Symbol   string `json:"symbol"`
			Asset    string `json:"asset"`
			Currency string `json:"currency"`
			Status   int    `json:"status"`
		} `json:"data"`
	}
	if err := b.getJSONWithRetry(ctx, "contracts", "/openApi/swap/v2/quote/contracts", nil, &swap); err != nil {
		// spot alone is still a usable listing
		b.opts.Log.Warn("bingx swap listing unavailable", logger.Error(err))
		return markets, nil
	}
	if swap.Code == 0 {
		for _, c := range swap.Data {
			pair := unifiedPair(c.Asset, c.Currency, c.Currency)
			markets[pair] = repository.Market{Pair: pair, Native: c.Symbol, Active: c.Status == 1}
		}
	}
	return markets, nil
}

func (b *BingX) FetchOHLCV(ctx context.Context, pair, timeframe string, limit int) ([]models.RawCandle, error) {
	markets, err := b.Markets(ctx)
	if err != nil {
		return nil, err
	}
	m, err := lookup(markets, b.name, pair)
	if err != nil {
		return nil, err
	}

	query := map[string][]string{
		"symbol":   {m.Native},
		"interval": {timeframe},
		"limit":    {strconv.Itoa(limit)},
	}

	if isSwap(pair) {
		var resp struct {
			bingxEnvelope
			Data []struct {
				Time   int64      `json:"time"`
				Open   flexString `json:"open"`
				High   flexString `json:"high"`
				Low    flexString `json:"low"`
				Close  flexString `json:"close"`
				Volume flexString `json:"volume"`
			} `json:"data"`
		}
		if err := b.getJSON(ctx, "swap_klines", "/openApi/swap/v3/quote/klines", query, &resp); err != nil {
			return nil, err
		}
		if err := resp.err("swap_klines"); err != nil {
			return nil, err
		}
		rows := make([]models.RawCandle, 0, len(resp.Data))
		for _, k := range resp.Data {
			rows = append(rows, models.RawCandle{
				OpenTime: k.Time,
				Open:     k.Open.String(),
				High:     k.High.String(),
				Low:      k.Low.String(),
				Close:    k.Close.String(),
				Volume:   k.Volume.String(),
			})
		}
		return rows, nil
	}

	var resp struct {
		bingxEnvelope
		Data [][]flexString `json:"data"`
	}
	if err := b.getJSON(ctx, "spot_klines", "/openApi/spot/v2/market/kline", query, &resp); err != nil {
		return nil, err
	}
	if err := resp.err("spot_klines"); err != nil {
		return nil, err
	}
	return arrayRows(resp.Data)
}

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

var okxBars = map[string]string{
	"1m": "1m", "5m": "5m", "15m": "15m", "30m": "30m",
	"1h": "1H", "2h": "2H", "4h": "4H", "1d": "1Dutc",
}

// OKX serves spot instruments and perpetual swaps from the v5 API.
type OKX struct {
	*restBase
}

func NewOKX(baseURL string, opts Options) *OKX {
	return &OKX{restBase: newRestBase("okx", baseURL, opts)}
}

type okxInstrument struct {
	InstID    string `json:"instId"`
	BaseCcy   string `json:"baseCcy"`
	QuoteCcy  string `json:"quoteCcy"`
	Uly       string `json:"uly"`
	SettleCcy string `json:"settleCcy"`
	State     string `json:"state"`
}

func (o *OKX) Markets(ctx context.Context) (map[string]repository.Market, error) {
	return o.cachedMarkets(ctx, o.loadMarkets)
}

func (o *OKX) loadMarkets(ctx context.Context) (map[string]repository.Market, error) {
	markets := make(map[string]repository.Market)
	for _, instType := range []string{"SPOT", "SWAP"} {
		var resp struct {
			Code string          `json:"code"`
			Msg  string          `json:"msg"`
			Data []okxInstrument `json:"data"`
		}
		query := map[string][]string{"instType": {instType}}
		if err := o.getJSONWithRetry(ctx, "instruments", "/api/v5/public/instruments", query, &resp); err != nil {
			if instType == "SPOT" {
				return nil, err
			}
			o.opts.Log.Warn("okx swap listing unavailable", logger.Error(err))
			continue
		}
		if resp.Code != "0" {
			return nil, fmt.Errorf("okx instruments: code %s: %s", resp.Code, resp.Msg)
		}

		for _, in := range resp.Data {
			var pair string
			if instType == "SPOT" {
				pair = unifiedPair(in.BaseCcy, in.QuoteCcy, "")
			} else {
				base, quote, ok := strings.Cut(in.Uly, "-")
				if !ok {
					continue
				}
				pair = unifiedPair(base, quote, in.SettleCcy)
			}
			markets[pair] = repository.Market{Pair: pair, Native: in.InstID, Active: in.State == "live"}
		}
	}
	return markets, nil
}

func (o *OKX) FetchOHLCV(ctx context.Context, pair, timeframe string, limit int) ([]models.RawCandle, error) {
	bar, ok := okxBars[timeframe]
	if !ok {
		return nil, unsupportedTimeframe(o.name, timeframe)
	}
	markets, err := o.Markets(ctx)
	if err != nil {
		return nil, err
	}
	m, err := lookup(markets, o.name, pair)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Code string         `json:"code"`
		Msg  string         `json:"msg"`
		Data [][]flexString `json:"data"`
	}
	query := map[string][]string{
		"instId": {m.Native},
		"bar":    {bar},
		"limit":  {strconv.Itoa(limit)},
	}
	if err := o.getJSON(ctx, "candles", "/api/v5/market/candles", query, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "0" {
		return nil, fmt.Errorf("okx candles: code %s: %s", resp.Code, resp.Msg)
	}
	return arrayRows(resp.Data)
}

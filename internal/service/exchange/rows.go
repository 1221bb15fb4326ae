package exchange

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"PulseScan/internal/domain/models"

	"github.com/shopspring/decimal"
)

// MinRows is the fewest usable candles a timeframe may return.
const MinRows = 30

// Coerce parses raw rows into candles. Rows with unparsable or non-finite
// fields are dropped, the rest sorted ascending with duplicate open times
// collapsed to the last occurrence.
func Coerce(raw []models.RawCandle) (candles []models.Candle, dropped int) {
	byTime := make(map[int64]models.Candle, len(raw))
	for _, r := range raw {
		c, ok := coerceRow(r)
		if !ok {
			dropped++
			continue
		}
		if _, dup := byTime[r.OpenTime]; dup {
			dropped++
		}
		byTime[r.OpenTime] = c
	}

	candles = make([]models.Candle, 0, len(byTime))
	for _, c := range byTime {
		candles = append(candles, c)
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].OpenTime.Before(candles[j].OpenTime) })
	return candles, dropped
}

func coerceRow(r models.RawCandle) (models.Candle, bool) {
	if r.OpenTime <= 0 {
		return models.Candle{}, false
	}
	var vals [5]float64
	for i, s := range []string{r.Open, r.High, r.Low, r.Close, r.Volume} {
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return models.Candle{}, false
		}
		f, _ := d.Float64()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return models.Candle{}, false
		}
		vals[i] = f
	}
	return models.Candle{
		OpenTime: time.UnixMilli(r.OpenTime).UTC(),
		Open:     vals[0],
		High:     vals[1],
		Low:      vals[2],
		Close:    vals[3],
		Volume:   vals[4],
	}, true
}

// flexString decodes a JSON string or number into its textual form.
// Exchanges disagree on whether prices are quoted.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("not a string or number: %s", b)
	}
	*f = flexString(n.String())
	return nil
}

func (f flexString) String() string { return string(f) }

// arrayRow turns a positional kline row ([time, o, h, l, c, v, ...]) into
// a RawCandle.
func arrayRow(row []flexString) (models.RawCandle, error) {
	if len(row) < 6 {
		return models.RawCandle{}, fmt.Errorf("kline row has %d fields", len(row))
	}
	ts, err := decimal.NewFromString(row[0].String())
	if err != nil {
		return models.RawCandle{}, fmt.Errorf("kline time %q: %w", row[0], err)
	}
	return models.RawCandle{
		OpenTime: ts.IntPart(),
		Open:     row[1].String(),
		High:     row[2].String(),
		Low:      row[3].String(),
		Close:    row[4].String(),
		Volume:   row[5].String(),
	}, nil
}

func arrayRows(rows [][]flexString) ([]models.RawCandle, error) {
	out := make([]models.RawCandle, 0, len(rows))
	for _, row := range rows {
		rc, err := arrayRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, nil
}

// unifiedPair is BASE/QUOTE for spot and BASE/QUOTE:SETTLE for swaps.
func unifiedPair(base, quote, settle string) string {
	p := strings.ToUpper(base) + "/" + strings.ToUpper(quote)
	if settle != "" {
		p += ":" + strings.ToUpper(settle)
	}
	return p
}

// isSwap reports whether a unified pair names a perpetual contract.
func isSwap(pair string) bool {
	return strings.Contains(pair, ":")
}

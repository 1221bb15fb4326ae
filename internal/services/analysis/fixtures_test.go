package analysis

import (
	"time"

	"PulseScan/internal/domain/models"
)

var fixtureStart = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// candlesFromDeltas builds hourly candles whose close moves by each delta,
// with a fixed 50-point wick on both sides.
func candlesFromDeltas(start float64, deltas []float64) []models.Candle {
	out := make([]models.Candle, len(deltas))
	prev := start
	for i, d := range deltas {
		c := prev + d
		out[i] = models.Candle{
			OpenTime: fixtureStart.Add(time.Duration(i) * time.Hour),
			Open:     prev,
			High:     c + 50,
			Low:      c - 50,
			Close:    c,
			Volume:   1000,
		}
		prev = c
	}
	return out
}

// reversalDeltas is a steady drift in direction sign, a sharper move at the
// candle before the closed one and a reversal on the closed one.
func reversalDeltas(n int, sign float64) []float64 {
	deltas := make([]float64, 0, n)
	for i := 0; i < n-3; i++ {
		deltas = append(deltas, -sign)
	}
	return append(deltas, -3*sign, 2*sign, -sign)
}

func closesFromDeltas(start float64, deltas []float64) []models.Candle {
	out := make([]models.Candle, len(deltas)+1)
	c := start
	out[0] = models.Candle{OpenTime: fixtureStart, Open: c, High: c, Low: c, Close: c}
	for i, d := range deltas {
		c += d
		out[i+1] = models.Candle{
			OpenTime: fixtureStart.Add(time.Duration(i+1) * 2 * time.Hour),
			Open:     c - d,
			High:     c + 1,
			Low:      c - 1,
			Close:    c,
		}
	}
	return out
}

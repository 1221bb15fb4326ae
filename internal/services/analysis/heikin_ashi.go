package analysis

import (
	"fmt"
	"math"

	"PulseScan/internal/domain/models"
)

// HeikinAshi converts a candle series. Each candle depends on the previous
// HA open and close, so the whole window must be converted in one pass;
// converting a shorter window changes the early values.
func HeikinAshi(candles []models.Candle) ([]models.HeikinAshiCandle, error) {
	if len(candles) < 2 {
		return nil, fmt.Errorf("heikin-ashi needs 2 candles, got %d: %w", len(candles), models.ErrInsufficientHistory)
	}

	ha := make([]models.HeikinAshiCandle, len(candles))
	first := candles[0]
	ha[0] = models.HeikinAshiCandle{
		Open:  (first.Open + first.Close) / 2,
		High:  first.High,
		Low:   first.Low,
		Close: (first.Open + first.High + first.Low + first.Close) / 4,
	}

	for i := 1; i < len(candles); i++ {
		c := candles[i]
		open := (ha[i-1].Open + ha[i-1].Close) / 2
		closeV := (c.Open + c.High + c.Low + c.Close) / 4
		ha[i] = models.HeikinAshiCandle{
			Open:  open,
			High:  math.Max(c.High, math.Max(open, closeV)),
			Low:   math.Min(c.Low, math.Min(open, closeV)),
			Close: closeV,
		}
	}
	return ha, nil
}

package analysis

import (
	"fmt"

	"PulseScan/internal/domain/models"
)

const (
	lossFloor  = 1e-10
	rangeFloor = 1e-10
)

// StochRSIParams are the periods of the confirming oscillator.
type StochRSIParams struct {
	RSIPeriod   int `yaml:"rsi_period" default:"14"`
	StochPeriod int `yaml:"stoch_period" default:"14"`
	KSmoothing  int `yaml:"k_smoothing" default:"3"`
	DSmoothing  int `yaml:"d_smoothing" default:"3"`
}

func DefaultStochRSI() StochRSIParams {
	return StochRSIParams{RSIPeriod: 14, StochPeriod: 14, KSmoothing: 3, DSmoothing: 3}
}

// MinCandles is the shortest series Evaluate accepts.
func (p StochRSIParams) MinCandles() int {
	return p.RSIPeriod + p.StochPeriod + p.KSmoothing + p.DSmoothing + 10
}

// Series returns the K and D lines, NaN through the warm-up.
func (p StochRSIParams) Series(candles []models.Candle) (k, d []float64) {
	n := len(candles)
	gain := make([]float64, n)
	loss := make([]float64, n)
	for i := 1; i < n; i++ {
		delta := candles[i].Close - candles[i-1].Close
		if delta > 0 {
			gain[i] = delta
		} else if delta < 0 {
			loss[i] = -delta
		}
	}

	avgGain := sma(gain, p.RSIPeriod)
	avgLoss := sma(loss, p.RSIPeriod)
	rsi := make([]float64, n)
	for i := range rsi {
		rs := avgGain[i] / floorZero(avgLoss[i], lossFloor)
		rsi[i] = 100 - 100/(1+rs)
	}

	lo := rollingMin(rsi, p.StochPeriod)
	hi := rollingMax(rsi, p.StochPeriod)
	stoch := make([]float64, n)
	for i := range stoch {
		stoch[i] = (rsi[i] - lo[i]) / floorZero(hi[i]-lo[i], rangeFloor) * 100
	}

	k = sma(stoch, p.KSmoothing)
	d = sma(k, p.DSmoothing)
	return k, d
}

// Evaluate reads K and D at the last closed candle. Either value may be
// NaN when the window is degenerate; Confirm rejects those.
func (p StochRSIParams) Evaluate(candles []models.Candle) (models.StochReading, error) {
	if min := p.MinCandles(); len(candles) < min {
		return models.StochReading{}, fmt.Errorf("stochrsi needs %d candles, got %d: %w",
			min, len(candles), models.ErrInsufficientHistory)
	}
	k, d := p.Series(candles)
	return models.StochReading{K: at(k, -2), D: at(d, -2)}, nil
}

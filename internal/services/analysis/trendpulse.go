package analysis

import (
	"fmt"
	"math"

	"PulseScan/internal/domain/models"
)

// TrendPulse parameters.
const (
	ChannelLength   = 9
	AverageLength   = 12
	SmoothingLength = 3

	ExtremeLevel = 60.0
	devFloor     = 0.001
	ciScale      = 0.015
)

// MinTrendPulseCandles is the shortest series TrendPulse will evaluate.
const MinTrendPulseCandles = ChannelLength + AverageLength + 5

type Cross string

const (
	CrossNone    Cross = "none"
	CrossBullish Cross = "bullish"
	CrossBearish Cross = "bearish"
)

// PulseReading holds the oscillator pair at the last closed candle (Cur)
// and the one before it (Prev).
type PulseReading struct {
	PrevWT1 float64
	PrevWT2 float64
	WT1     float64
	WT2     float64
}

func (r PulseReading) Strength() float64 {
	return math.Abs(r.WT1) + math.Abs(r.WT2)
}

func (r PulseReading) Oversold() bool {
	return r.WT1 <= -ExtremeLevel && r.WT2 <= -ExtremeLevel
}

func (r PulseReading) Overbought() bool {
	return r.WT1 >= ExtremeLevel && r.WT2 >= ExtremeLevel
}

func (r PulseReading) Cross() Cross {
	switch {
	case r.PrevWT1 <= r.PrevWT2 && r.WT1 > r.WT2:
		return CrossBullish
	case r.PrevWT1 >= r.PrevWT2 && r.WT1 < r.WT2:
		return CrossBearish
	}
	return CrossNone
}

// Direction is BUY for a bullish cross while oversold, SELL for a bearish
// cross while overbought. ok is false otherwise.
func (r PulseReading) Direction() (models.Direction, bool) {
	switch cross := r.Cross(); {
	case cross == CrossBullish && r.Oversold():
		return models.DirectionBuy, true
	case cross == CrossBearish && r.Overbought():
		return models.DirectionSell, true
	}
	return "", false
}

// WaveTrend computes the wt1/wt2 series from Heikin-Ashi candles.
func WaveTrend(ha []models.HeikinAshiCandle) (wt1, wt2 []float64) {
	tp := make([]float64, len(ha))
	for i, c := range ha {
		tp[i] = (c.High + c.Low + c.Close) / 3
	}

	esa := ema(tp, ChannelLength)
	absDev := make([]float64, len(tp))
	for i := range tp {
		absDev[i] = math.Abs(tp[i] - esa[i])
	}
	dev := ema(absDev, ChannelLength)

	ci := make([]float64, len(tp))
	for i := range tp {
		ci[i] = (tp[i] - esa[i]) / (ciScale * floorZero(dev[i], devFloor))
	}

	wt1 = ema(ci, AverageLength)
	wt2 = sma(wt1, SmoothingLength)
	return wt1, wt2
}

// TrendPulse reads the oscillator at the last two closed candles. The last
// element of the input is treated as still forming and ignored.
func TrendPulse(ha []models.HeikinAshiCandle) (PulseReading, error) {
	if len(ha) < MinTrendPulseCandles {
		return PulseReading{}, fmt.Errorf("trendpulse needs %d candles, got %d: %w",
			MinTrendPulseCandles, len(ha), models.ErrInsufficientHistory)
	}
	wt1, wt2 := WaveTrend(ha)
	return PulseReading{
		PrevWT1: at(wt1, -3),
		PrevWT2: at(wt2, -3),
		WT1:     at(wt1, -2),
		WT2:     at(wt2, -2),
	}, nil
}

// DetectSignal runs Heikin-Ashi and TrendPulse on the fast series and
// returns an event when a cross happens at an extreme. A nil event with a
// nil error means nothing fired.
func DetectSignal(asset models.Asset, candles []models.Candle) (*models.SignalEvent, PulseReading, error) {
	ha, err := HeikinAshi(candles)
	if err != nil {
		return nil, PulseReading{}, err
	}
	reading, err := TrendPulse(ha)
	if err != nil {
		return nil, PulseReading{}, err
	}

	dir, ok := reading.Direction()
	if !ok {
		return nil, reading, nil
	}

	closed := candles[len(candles)-2]
	return &models.SignalEvent{
		Asset:      asset.Symbol,
		Tier:       asset.Tier,
		Direction:  dir,
		WT1:        reading.WT1,
		WT2:        reading.WT2,
		Strength:   reading.Strength(),
		CandleTime: closed.OpenTime,
		Price:      closed.Close,
	}, reading, nil
}

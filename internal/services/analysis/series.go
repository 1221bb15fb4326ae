package analysis

import "math"

// Series helpers follow the rolling-window conventions of the charting
// platform the indicators come from: a window containing NaN, or not yet
// full, yields NaN.

// ema is seeded with the first value, alpha = 2/(n+1).
func ema(values []float64, n int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / float64(n+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

func sma(values []float64, n int) []float64 {
	return rolling(values, n, func(w []float64) float64 {
		sum := 0.0
		for _, v := range w {
			sum += v
		}
		return sum / float64(len(w))
	})
}

func rollingMin(values []float64, n int) []float64 {
	return rolling(values, n, func(w []float64) float64 {
		m := w[0]
		for _, v := range w[1:] {
			m = math.Min(m, v)
		}
		return m
	})
}

func rollingMax(values []float64, n int) []float64 {
	return rolling(values, n, func(w []float64) float64 {
		m := w[0]
		for _, v := range w[1:] {
			m = math.Max(m, v)
		}
		return m
	})
}

func rolling(values []float64, n int, agg func([]float64) float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if i < n-1 {
			out[i] = math.NaN()
			continue
		}
		w := values[i-n+1 : i+1]
		if hasNaN(w) {
			out[i] = math.NaN()
			continue
		}
		out[i] = agg(w)
	}
	return out
}

func hasNaN(w []float64) bool {
	for _, v := range w {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// floorZero replaces exact zeros with eps, matching how the indicators
// guard their denominators.
func floorZero(v, eps float64) float64 {
	if v == 0 {
		return eps
	}
	return v
}

// at indexes from the end: at(s, -2) is the last closed candle.
func at(s []float64, fromEnd int) float64 {
	return s[len(s)+fromEnd]
}

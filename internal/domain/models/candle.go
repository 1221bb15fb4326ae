package models

import "time"

// Candle is one OHLCV bar. Series are ascending by OpenTime with no
// duplicate timestamps.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

type HeikinAshiCandle struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// RawCandle is an exchange row before numeric coercion. Exchanges send
// prices as strings or numbers; both end up here as strings.
type RawCandle struct {
	OpenTime int64 // unix milliseconds
	Open     string
	High     string
	Low      string
	Close    string
	Volume   string
}

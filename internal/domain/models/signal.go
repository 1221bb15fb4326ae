package models

import "time"

type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// SignalEvent is a TrendPulse cross at an extreme on the fast timeframe.
// It is not actionable until confirmed on the slow timeframe.
type SignalEvent struct {
	Asset      string    `json:"asset"`
	Tier       Tier      `json:"tier"`
	Direction  Direction `json:"direction"`
	WT1        float64   `json:"wt1"`
	WT2        float64   `json:"wt2"`
	Strength   float64   `json:"strength"`
	CandleTime time.Time `json:"candle_time"`
	Price      float64   `json:"price"`
}

// StochReading is the slow-timeframe oscillator pair at the closed candle.
type StochReading struct {
	K float64 `json:"k"`
	D float64 `json:"d"`
}

// ConfirmedSignal is the unit handed to dedup and alert delivery.
type ConfirmedSignal struct {
	SignalEvent
	StochReading
	Reason string `json:"reason"`
}

// ResolvedSymbol is where an asset was found and under which pair.
type ResolvedSymbol struct {
	Source string `json:"source"`
	Pair   string `json:"pair"`
}

// DedupRecord is what the dedup store remembers per fingerprint.
type DedupRecord struct {
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`
	Timestamp time.Time `json:"timestamp"`
	WT1       float64   `json:"wt1"`
	WT2       float64   `json:"wt2"`
	K         float64   `json:"stoch_k"`
	D         float64   `json:"stoch_d"`
	Price     float64   `json:"price"`
}

// SignalRecord is a dispatched alert as published to the event stream and
// archived in ClickHouse.
type SignalRecord struct {
	Fingerprint string    `json:"fingerprint" validate:"required,len=32"`
	Symbol      string    `json:"symbol" validate:"required"`
	Tier        Tier      `json:"tier" validate:"required,oneof=STANDARD HIGH_RISK"`
	Direction   Direction `json:"direction" validate:"required,oneof=BUY SELL"`
	Source      string    `json:"source"`
	Pair        string    `json:"pair"`
	Price       float64   `json:"price" validate:"gte=0"`
	WT1         float64   `json:"wt1"`
	WT2         float64   `json:"wt2"`
	K           float64   `json:"stoch_k"`
	D           float64   `json:"stoch_d"`
	Strength    float64   `json:"strength"`
	Reason      string    `json:"reason"`
	ChartURL    string    `json:"chart_url,omitempty"`
	CandleTime  time.Time `json:"candle_time" validate:"required"`
	SentAt      time.Time `json:"sent_at" validate:"required"`
}

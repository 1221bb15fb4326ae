package models

// Tier partitions assets by market capitalisation and picks the alert
// channel.
type Tier string

const (
	TierStandard Tier = "STANDARD"
	TierHighRisk Tier = "HIGH_RISK"
)

func (t Tier) Valid() bool {
	return t == TierStandard || t == TierHighRisk
}

// Asset is one entry of the scanned universe.
type Asset struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name,omitempty"`
	Price     float64 `json:"price"`
	MarketCap float64 `json:"market_cap"`
	Volume24h float64 `json:"volume_24h"`
	Change24h float64 `json:"change_24h"`
	Tier      Tier    `json:"tier"`
}

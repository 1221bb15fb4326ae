package models

// Requests for the status API. Bound from query and path parameters.

type SignalsRequest struct {
	Symbol    string `query:"symbol" validate:"omitempty,alphanum,max=20"`
	Tier      string `query:"tier" validate:"omitempty,oneof=STANDARD HIGH_RISK"`
	Direction string `query:"direction" validate:"omitempty,oneof=BUY SELL"`
	Since     string `query:"since"`
	Limit     int    `query:"limit" default:"50" validate:"gte=1,lte=500"`
}

type DedupLookupRequest struct {
	Fingerprint string `param:"fingerprint" validate:"required,len=32,hexadecimal"`
}

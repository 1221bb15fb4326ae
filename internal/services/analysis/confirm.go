package analysis

import (
	"fmt"

	"PulseScan/internal/domain/models"
)

const (
	OversoldLevel   = 20.0
	OverboughtLevel = 80.0
)

// Confirm authenticates a fast-timeframe event against the slow-timeframe
// StochRSI. A rejection wraps ErrConfirmationRejected and carries the
// reading in its message.
func Confirm(ev models.SignalEvent, st models.StochReading) (models.ConfirmedSignal, error) {
	var (
		ok     bool
		reason string
	)
	switch ev.Direction {
	case models.DirectionBuy:
		ok = st.K < OversoldLevel && st.D < OversoldLevel
		reason = fmt.Sprintf("StochRSI_2H_Oversold(K:%.1f,D:%.1f)", st.K, st.D)
	case models.DirectionSell:
		ok = st.K > OverboughtLevel && st.D > OverboughtLevel
		reason = fmt.Sprintf("StochRSI_2H_Overbought(K:%.1f,D:%.1f)", st.K, st.D)
	default:
		return models.ConfirmedSignal{}, fmt.Errorf("unknown direction %q", ev.Direction)
	}

	if !ok {
		return models.ConfirmedSignal{}, fmt.Errorf("%s %s (K:%.1f,D:%.1f): %w",
			ev.Asset, ev.Direction, st.K, st.D, models.ErrConfirmationRejected)
	}
	return models.ConfirmedSignal{SignalEvent: ev, StochReading: st, Reason: reason}, nil
}

package service

import (
	"context"

	"PulseScan/internal/domain/models"
)

// UniverseProvider lists the assets to scan, already tiered.
type UniverseProvider interface {
	Assets(ctx context.Context) ([]models.Asset, error)
}

// ChartLinker builds a chart URL for a symbol. It never fails; the worst
// case is a default link.
type ChartLinker interface {
	Link(ctx context.Context, symbol string) string
}

// Alert is everything a notifier needs to render one message.
type Alert struct {
	Signal   models.ConfirmedSignal
	Asset    models.Asset
	Resolved models.ResolvedSymbol
	ChartURL string
}

// Notifier delivers an alert. A nil error means the channel accepted it.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

package repository

import (
	"context"
	"time"

	"PulseScan/internal/domain/models"
)

// Market is one tradable instrument in a source's listing.
type Market struct {
	Pair   string // unified form: BASE/QUOTE or BASE/QUOTE:SETTLE
	Native string // the exchange's own symbol
	Active bool
}

// MarketSource is one exchange the resolver can pull candles from.
type MarketSource interface {
	Name() string
	// Markets returns the listing keyed by unified pair.
	Markets(ctx context.Context) (map[string]Market, error)
	// FetchOHLCV returns at most limit rows, oldest first.
	FetchOHLCV(ctx context.Context, pair, timeframe string, limit int) ([]models.RawCandle, error)
}

// SignalStore archives dispatched alerts.
type SignalStore interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, rec *models.SignalRecord) error
	StoreBatch(ctx context.Context, recs []*models.SignalRecord) error
	Recent(ctx context.Context, q SignalQuery) ([]*models.SignalRecord, error)
	Health(ctx context.Context) error
	Close() error
}

type SignalQuery struct {
	Symbol    string
	Tier      models.Tier
	Direction models.Direction
	Since     time.Time
	Limit     int
}

// SignalPublisher emits dispatched alerts to the event stream.
type SignalPublisher interface {
	Publish(ctx context.Context, rec *models.SignalRecord) error
	PublishBatch(ctx context.Context, recs []*models.SignalRecord) error
	Close() error
}

type Metrics interface {
	RecordCycle(d time.Duration, expected, analyzed int, degraded bool)
	RecordOutcome(kind string)
	RecordConfirmed(tier, direction string)
	RecordAlert(tier string, ok bool)
	RecordDuplicate()
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

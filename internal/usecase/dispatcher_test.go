package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"PulseScan/internal/domain/models"
	"PulseScan/internal/repository"
	"PulseScan/pkg/metrics"
)

type recordingSink struct {
	mu   sync.Mutex
	recs []*models.SignalRecord
}

func (s *recordingSink) Process(_ context.Context, rec *models.SignalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

func candidate(symbol string, dir models.Direction, wt1 float64) Candidate {
	sig := models.ConfirmedSignal{
		SignalEvent: models.SignalEvent{
			Asset:      symbol,
			Tier:       models.TierStandard,
			Direction:  dir,
			WT1:        wt1,
			WT2:        wt1 - 2,
			Strength:   2 * -wt1,
			CandleTime: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			Price:      42.5,
		},
		StochReading: models.StochReading{K: 10, D: 12},
		Reason:       "StochRSI_2H_Oversold(K:10.0,D:12.0)",
	}
	return Candidate{
		Asset:    models.Asset{Symbol: symbol, Tier: models.TierStandard, Price: 42},
		Signal:   sig,
		Resolved: models.ResolvedSymbol{Source: "bingx", Pair: symbol + "/USDT"},
	}
}

func TestDispatchSendsAndRecords(t *testing.T) {
	gate := repository.NewDedupStore("")
	notifier := &fakeNotifier{}
	sink := &recordingSink{}
	d := NewDispatcher(gate, notifier, staticLinker("https://chart/x"), sink, 0, metrics.Nop{}, nil)

	sum := d.Dispatch(context.Background(), []Candidate{
		candidate("AAA", models.DirectionBuy, -70),
		candidate("BBB", models.DirectionBuy, -65),
	})
	if sum.Sent != 2 || sum.Duplicates != 0 || sum.Failed != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if notifier.count() != 2 {
		t.Fatalf("notified %d, want 2", notifier.count())
	}
	if notifier.sent[0].ChartURL != "https://chart/x" {
		t.Fatalf("chart url = %q", notifier.sent[0].ChartURL)
	}
	if len(sink.recs) != 2 {
		t.Fatalf("sink got %d records", len(sink.recs))
	}
	rec := sink.recs[0]
	if rec.Fingerprint != repository.Fingerprint(candidate("AAA", models.DirectionBuy, -70).Signal) {
		t.Fatalf("record fingerprint mismatch")
	}
	if rec.Pair != "AAA/USDT" || rec.Price != 42.5 || rec.SentAt.IsZero() {
		t.Fatalf("record = %+v", rec)
	}
	if gate.Len() != 2 {
		t.Fatalf("dedup entries = %d", gate.Len())
	}
}

func TestDispatchSuppressesDuplicatesWithoutWaiting(t *testing.T) {
	gate := repository.NewDedupStore("")
	notifier := &fakeNotifier{}
	// an hour of cooldown: a second real send would block the test
	d := NewDispatcher(gate, notifier, staticLinker(""), nil, time.Hour, metrics.Nop{}, nil)

	c := candidate("AAA", models.DirectionBuy, -70)
	start := time.Now()
	sum := d.Dispatch(context.Background(), []Candidate{c, c, c})
	if sum.Sent != 1 || sum.Duplicates != 2 {
		t.Fatalf("summary = %+v", sum)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("duplicates waited on the cooldown: %v", elapsed)
	}
}

func TestDispatchSpacesSendsByCooldown(t *testing.T) {
	d := NewDispatcher(repository.NewDedupStore(""), &fakeNotifier{}, staticLinker(""), nil, 60*time.Millisecond, metrics.Nop{}, nil)

	start := time.Now()
	sum := d.Dispatch(context.Background(), []Candidate{
		candidate("AAA", models.DirectionBuy, -70),
		candidate("BBB", models.DirectionBuy, -70),
		candidate("CCC", models.DirectionBuy, -70),
	})
	if sum.Sent != 3 {
		t.Fatalf("summary = %+v", sum)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Fatalf("three sends took %v, want at least two cooldowns", elapsed)
	}
}

func TestDispatchFailureIsNotMarked(t *testing.T) {
	gate := repository.NewDedupStore("")
	notifier := &fakeNotifier{failOn: map[string]bool{"AAA": true}}
	d := NewDispatcher(gate, notifier, staticLinker(""), nil, 0, metrics.Nop{}, nil)

	c := candidate("AAA", models.DirectionBuy, -70)
	if sum := d.Dispatch(context.Background(), []Candidate{c}); sum.Failed != 1 || sum.Sent != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if gate.Len() != 0 {
		t.Fatalf("failed delivery was recorded")
	}

	notifier.failOn = nil
	if sum := d.Dispatch(context.Background(), []Candidate{c}); sum.Sent != 1 {
		t.Fatalf("retry after failure: %+v", sum)
	}
}

func TestDispatchStopsOnCancelledContext(t *testing.T) {
	notifier := &fakeNotifier{}
	d := NewDispatcher(repository.NewDedupStore(""), notifier, staticLinker(""), nil, 0, metrics.Nop{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum := d.Dispatch(ctx, []Candidate{candidate("AAA", models.DirectionBuy, -70)})
	if sum.Sent+sum.Failed+sum.Duplicates != 0 || notifier.count() != 0 {
		t.Fatalf("dispatched after cancel: %+v", sum)
	}
}

func TestDispatchCooldownDoesNotBlockDedupReads(t *testing.T) {
	gate := repository.NewDedupStore("")
	notifier := &fakeNotifier{}
	d := NewDispatcher(gate, notifier, staticLinker(""), nil, time.Hour, metrics.Nop{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan DispatchSummary, 1)
	go func() {
		done <- d.Dispatch(ctx, []Candidate{
			candidate("AAA", models.DirectionBuy, -70),
			candidate("BBB", models.DirectionBuy, -70),
		})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for notifier.count() < 1 {
		if time.Now().After(deadline) {
			t.Fatalf("first alert never sent")
		}
		time.Sleep(5 * time.Millisecond)
	}
	// BBB is now waiting on the hour-long cooldown
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	if n := gate.Len(); n != 1 {
		t.Fatalf("Len = %d, want 1", n)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("Len blocked for %v during cooldown", elapsed)
	}

	cancel()
	sum := <-done
	if sum.Sent != 1 || sum.Failed != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if gate.Len() != 1 {
		t.Fatalf("cancelled send was recorded")
	}
}

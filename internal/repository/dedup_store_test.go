package repository

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"PulseScan/internal/domain/models"
	"PulseScan/pkg/cache"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func buySignal(wt1, wt2, k, d float64, candle time.Time) models.ConfirmedSignal {
	return models.ConfirmedSignal{
		SignalEvent: models.SignalEvent{
			Asset:      "xyz",
			Tier:       models.TierStandard,
			Direction:  models.DirectionBuy,
			WT1:        wt1,
			WT2:        wt2,
			CandleTime: candle,
			Price:      1.25,
		},
		StochReading: models.StochReading{K: k, D: d},
		Reason:       "StochRSI_2H_Oversold(K:10.0,D:8.0)",
	}
}

func TestFingerprintBuckets(t *testing.T) {
	hour := time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC)
	a := Fingerprint(buySignal(-66.6, -67.6, 10.2, 8.1, hour))
	b := Fingerprint(buySignal(-67.4, -68.9, 11.9, 7.6, hour.Add(50*time.Minute)))
	if a != b {
		t.Fatalf("same bucket produced different fingerprints")
	}
	if len(a) != 32 {
		t.Fatalf("fingerprint %q is not an md5 hex", a)
	}

	if Fingerprint(buySignal(-68, -67.6, 10.2, 8.1, hour)) == a {
		t.Fatalf("wt1 in the next band should differ")
	}
	if Fingerprint(buySignal(-66.6, -67.6, 10.2, 8.1, hour.Add(time.Hour))) == a {
		t.Fatalf("next hour should differ")
	}
	sell := buySignal(-66.6, -67.6, 10.2, 8.1, hour)
	sell.Direction = models.DirectionSell
	if Fingerprint(sell) == a {
		t.Fatalf("direction should be part of the fingerprint")
	}
	upper := buySignal(-66.6, -67.6, 10.2, 8.1, hour)
	upper.Asset = "XYZ"
	if Fingerprint(upper) != a {
		t.Fatalf("symbol case should not matter")
	}
}

func TestDedupWindow(t *testing.T) {
	clk := newClock()
	s := NewDedupStore("", WithDedupClock(clk.Now))
	fp := Fingerprint(buySignal(-66, -67, 10, 8, clk.t))

	if s.IsDuplicate(fp) {
		t.Fatalf("empty store reported a duplicate")
	}
	if err := s.MarkSent(fp, models.DedupRecord{Symbol: "XYZ"}); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}

	clk.Advance(4*time.Hour - time.Second)
	if !s.IsDuplicate(fp) {
		t.Fatalf("inside the window should be a duplicate")
	}
	clk.Advance(2 * time.Second)
	if s.IsDuplicate(fp) {
		t.Fatalf("4h1s after first seen should not be a duplicate")
	}
	if s.Len() != 0 {
		t.Fatalf("expired record should be evicted on lookup, len = %d", s.Len())
	}
}

func TestMarkSentOverwrites(t *testing.T) {
	clk := newClock()
	s := NewDedupStore(filepath.Join(t.TempDir(), "dedup.json"), WithDedupClock(clk.Now))
	fp := Fingerprint(buySignal(-66, -67, 10, 8, clk.t))

	if err := s.MarkSent(fp, models.DedupRecord{Symbol: "XYZ"}); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	clk.Advance(time.Hour)
	if err := s.MarkSent(fp, models.DedupRecord{Symbol: "XYZ"}); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1", s.Len())
	}
	rec, ok := s.Get(fp)
	if !ok || !rec.Timestamp.Equal(clk.t) {
		t.Fatalf("record = %+v, want timestamp %v", rec, clk.t)
	}
}

func TestDedupPersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "dedup.json")
	clk := newClock()
	sig := buySignal(-66, -67, 10, 8, clk.t)

	first := NewDedupStore(path, WithDedupClock(clk.Now))
	if _, err := first.SendOnce(context.Background(), sig, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("SendOnce: %v", err)
	}

	clk.Advance(time.Hour)
	second := NewDedupStore(path, WithDedupClock(clk.Now))
	if err := second.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !second.IsDuplicate(Fingerprint(sig)) {
		t.Fatalf("restarted store forgot the sent signal")
	}
}

func TestLoadDropsOldRecords(t *testing.T) {
	clk := newClock()
	path := filepath.Join(t.TempDir(), "dedup.json")
	stored := map[string]models.DedupRecord{
		"fresh": {Symbol: "A", Timestamp: clk.t.Add(-time.Hour)},
		"stale": {Symbol: "B", Timestamp: clk.t.Add(-25 * time.Hour)},
	}
	b, _ := json.Marshal(stored)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s := NewDedupStore(path, WithDedupClock(clk.Now))
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1", s.Len())
	}
	if _, ok := s.Get("fresh"); !ok {
		t.Fatalf("fresh record missing")
	}
}

func TestLoadMissingAndCorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := NewDedupStore(filepath.Join(dir, "none.json")).Load(); err != nil {
		t.Fatalf("missing file should load empty: %v", err)
	}
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := NewDedupStore(bad).Load(); err == nil {
		t.Fatalf("corrupt file should fail to load")
	}
}

func TestSendOnceMarksOnlyOnSuccess(t *testing.T) {
	clk := newClock()
	s := NewDedupStore("", WithDedupClock(clk.Now))
	sig := buySignal(-66, -67, 10, 8, clk.t)
	boom := errors.New("telegram down")

	if _, err := s.SendOnce(context.Background(), sig, func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want send error", err)
	}
	if s.Len() != 0 {
		t.Fatalf("failed send must not be marked")
	}

	calls := 0
	send := func(context.Context) error { calls++; return nil }
	if _, err := s.SendOnce(context.Background(), sig, send); err != nil {
		t.Fatalf("SendOnce: %v", err)
	}
	if _, err := s.SendOnce(context.Background(), sig, send); !errors.Is(err, models.ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
	if calls != 1 {
		t.Fatalf("send called %d times, want 1", calls)
	}
}

func TestSendOnceConcurrent(t *testing.T) {
	s := NewDedupStore("")
	sig := buySignal(-66, -67, 10, 8, time.Now())

	var sent atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.SendOnce(context.Background(), sig, func(context.Context) error {
				sent.Add(1)
				return nil
			})
		}()
	}
	wg.Wait()
	if sent.Load() != 1 {
		t.Fatalf("sent %d times, want 1", sent.Load())
	}
}

func TestSendOnceMirrorAcrossInstances(t *testing.T) {
	mirror := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer mirror.Close()

	sig := buySignal(-66, -67, 10, 8, time.Now())
	a := NewDedupStore("", WithDedupMirror(mirror))
	b := NewDedupStore("", WithDedupMirror(mirror))
	ok := func(context.Context) error { return nil }

	if _, err := a.SendOnce(context.Background(), sig, ok); err != nil {
		t.Fatalf("first instance: %v", err)
	}
	if _, err := b.SendOnce(context.Background(), sig, ok); !errors.Is(err, models.ErrDuplicate) {
		t.Fatalf("second instance err = %v, want ErrDuplicate", err)
	}

	// a failed send releases the shared lock
	other := buySignal(-30, -30, 50, 50, time.Now())
	_, _ = a.SendOnce(context.Background(), other, func(context.Context) error { return errors.New("down") })
	if _, err := b.SendOnce(context.Background(), other, ok); err != nil {
		t.Fatalf("lock not released after failed send: %v", err)
	}
}

func TestSendOnceKeepsStoreReadableDuringSend(t *testing.T) {
	s := NewDedupStore("")
	sig := buySignal(-66, -67, 10, 8, time.Now())

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := s.SendOnce(context.Background(), sig, func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
		done <- err
	}()
	<-entered

	start := time.Now()
	if n := s.Len(); n != 0 {
		t.Fatalf("Len during send = %d, want 0", n)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("Len blocked for %v while a send was in flight", elapsed)
	}
	if _, err := s.SendOnce(context.Background(), sig, func(context.Context) error { return nil }); !errors.Is(err, models.ErrDuplicate) {
		t.Fatalf("in-flight fingerprint err = %v, want ErrDuplicate", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("SendOnce: %v", err)
	}
	if s.Len() != 1 || !s.IsDuplicate(Fingerprint(sig)) {
		t.Fatalf("sent fingerprint not recorded")
	}
}

func TestSendOnceFailureReleasesClaim(t *testing.T) {
	s := NewDedupStore("")
	sig := buySignal(-66, -67, 10, 8, time.Now())

	_, _ = s.SendOnce(context.Background(), sig, func(context.Context) error { return errors.New("down") })
	calls := 0
	if _, err := s.SendOnce(context.Background(), sig, func(context.Context) error { calls++; return nil }); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if calls != 1 {
		t.Fatalf("send called %d times, want 1", calls)
	}
}

package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"PulseScan/internal/domain/models"
	domrepo "PulseScan/internal/domain/repository"
)

func record(symbol string, tier models.Tier, dir models.Direction, sent time.Time) *models.SignalRecord {
	return &models.SignalRecord{Symbol: symbol, Tier: tier, Direction: dir, SentAt: sent}
}

func TestMemorySignalStoreRing(t *testing.T) {
	s := NewMemorySignalStore(3)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, sym := range []string{"A", "B", "C", "D"} {
		_ = s.Store(context.Background(), record(sym, models.TierStandard, models.DirectionBuy, base.Add(time.Duration(i)*time.Hour)))
	}

	got, err := s.Recent(context.Background(), domrepo.SignalQuery{})
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	var syms []string
	for _, r := range got {
		syms = append(syms, r.Symbol)
	}
	if strings.Join(syms, ",") != "D,C,B" {
		t.Fatalf("recent = %v, want newest first without the evicted A", syms)
	}
}

func TestMemorySignalStoreFilters(t *testing.T) {
	s := NewMemorySignalStore(10)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	_ = s.StoreBatch(context.Background(), []*models.SignalRecord{
		record("ABC", models.TierHighRisk, models.DirectionBuy, base),
		record("ABC", models.TierHighRisk, models.DirectionSell, base.Add(time.Hour)),
		record("XYZ", models.TierStandard, models.DirectionBuy, base.Add(2*time.Hour)),
	})

	got, _ := s.Recent(context.Background(), domrepo.SignalQuery{Symbol: "abc", Direction: models.DirectionSell})
	if len(got) != 1 || got[0].Direction != models.DirectionSell {
		t.Fatalf("symbol+direction filter = %+v", got)
	}
	got, _ = s.Recent(context.Background(), domrepo.SignalQuery{Since: base.Add(90 * time.Minute)})
	if len(got) != 1 || got[0].Symbol != "XYZ" {
		t.Fatalf("since filter = %+v", got)
	}
	got, _ = s.Recent(context.Background(), domrepo.SignalQuery{Limit: 2})
	if len(got) != 2 {
		t.Fatalf("limit = %d, want 2", len(got))
	}
}

func TestClickHouseRecentQuery(t *testing.T) {
	s := NewClickHouseSignalStore(nil, nil)
	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	q, args := s.buildRecentQuery(domrepo.SignalQuery{Symbol: "abc", Tier: models.TierHighRisk, Since: since, Limit: 10})

	want := "SELECT " + signalColumns + " FROM signals FINAL WHERE symbol = ? AND tier = ? AND sent_at >= ? ORDER BY sent_at DESC LIMIT ?"
	if q != want {
		t.Fatalf("query =\n%s\nwant\n%s", q, want)
	}
	if len(args) != 4 || args[0] != "ABC" || args[3] != 10 {
		t.Fatalf("args = %v", args)
	}

	q, args = s.buildRecentQuery(domrepo.SignalQuery{})
	if strings.Contains(q, "WHERE") || len(args) != 1 || args[0] != 50 {
		t.Fatalf("unfiltered query = %s %v", q, args)
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"PulseScan/internal/domain/models"
	"PulseScan/internal/repository"
	"PulseScan/internal/service/ratelimit"
	"PulseScan/internal/usecase"

	"github.com/labstack/echo/v4"
)

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T, rl *ratelimit.Limiter, checks ...HealthCheck) (*echo.Echo, *repository.MemorySignalStore, *repository.DedupStore) {
	t.Helper()
	history := repository.NewMemorySignalStore(10)
	dedup := repository.NewDedupStore("")
	h := NewStatusEchoHandler(nil, usecase.NewStats(), history, dedup, rl, checks...)
	e := echo.New()
	h.RegisterRoutes(e)
	return e, history, dedup
}

func get(t *testing.T, e *echo.Echo, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s: %v (%s)", target, err, rec.Body.String())
	}
	return rec, env
}

func TestHealth(t *testing.T) {
	e, _, _ := newTestRouter(t, nil, HealthCheck{Name: "clickhouse", Check: func(context.Context) error { return nil }})
	if rec, _ := get(t, e, "/api/health"); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	e, _, _ = newTestRouter(t, nil, HealthCheck{Name: "clickhouse", Check: func(context.Context) error { return errors.New("down") }})
	rec, env := get(t, e, "/api/health")
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(string(env.Data), "down") {
		t.Fatalf("unhealthy = %d %s", rec.Code, env.Data)
	}
}

func TestStatus(t *testing.T) {
	e, _, _ := newTestRouter(t, nil)
	rec, env := get(t, e, "/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]interface{}
	_ = json.Unmarshal(env.Data, &body)
	if _, ok := body["cycles_completed"]; !ok {
		t.Fatalf("missing stats fields: %s", env.Data)
	}
	if _, ok := body["dedup_entries"]; !ok {
		t.Fatalf("missing dedup_entries: %s", env.Data)
	}
}

func TestSignals(t *testing.T) {
	e, history, _ := newTestRouter(t, nil)
	now := time.Now().UTC()
	_ = history.Store(context.Background(), &models.SignalRecord{Symbol: "ABC", Tier: models.TierHighRisk, Direction: models.DirectionBuy, SentAt: now.Add(-2 * time.Hour)})
	_ = history.Store(context.Background(), &models.SignalRecord{Symbol: "XYZ", Tier: models.TierStandard, Direction: models.DirectionSell, SentAt: now})

	rec, env := get(t, e, "/api/signals?symbol=abc")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d %s", rec.Code, rec.Body.String())
	}
	var list struct {
		Rows  []models.SignalRecord `json:"rows"`
		Total int                   `json:"total"`
	}
	_ = json.Unmarshal(env.Data, &list)
	if list.Total != 1 || list.Rows[0].Symbol != "ABC" {
		t.Fatalf("list = %+v", list)
	}

	_, env = get(t, e, "/api/signals?since=1h")
	_ = json.Unmarshal(env.Data, &list)
	if list.Total != 1 || list.Rows[0].Symbol != "XYZ" {
		t.Fatalf("since list = %+v", list)
	}

	for _, bad := range []string{"/api/signals?tier=LOW", "/api/signals?limit=1000", "/api/signals?since=yesterday"} {
		if rec, _ := get(t, e, bad); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", bad, rec.Code)
		}
	}
}

func TestDedupLookup(t *testing.T) {
	e, _, dedup := newTestRouter(t, nil)
	fp := strings.Repeat("ab", 16)
	if err := dedup.MarkSent(fp, models.DedupRecord{Symbol: "ABC", Direction: models.DirectionBuy}); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}

	rec, env := get(t, e, "/api/dedup/"+fp)
	if rec.Code != http.StatusOK || !strings.Contains(string(env.Data), `"ABC"`) {
		t.Fatalf("lookup = %d %s", rec.Code, env.Data)
	}
	if rec, _ := get(t, e, "/api/dedup/"+strings.Repeat("cd", 16)); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown fingerprint: %d", rec.Code)
	}
	if rec, _ := get(t, e, "/api/dedup/nothex"); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed fingerprint: %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	e, _, _ := newTestRouter(t, ratelimit.New(0.001, 1))
	if rec, _ := get(t, e, "/api/signals"); rec.Code != http.StatusOK {
		t.Fatalf("first request = %d", rec.Code)
	}
	if rec, _ := get(t, e, "/api/signals"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d", rec.Code)
	}
}

func TestParseSince(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if got, _ := parseSince("30m", now); !got.Equal(now.Add(-30 * time.Minute)) {
		t.Fatalf("duration = %v", got)
	}
	if got, _ := parseSince("2024-04-30T00:00:00Z", now); got.Day() != 30 {
		t.Fatalf("rfc3339 = %v", got)
	}
	if got, _ := parseSince("1714435200", now); !got.Equal(time.Unix(1714435200, 0)) {
		t.Fatalf("unix = %v", got)
	}
	if _, err := parseSince("yesterday", now); err == nil {
		t.Fatalf("expected error for garbage")
	}
	if got, err := parseSince("", now); err != nil || !got.IsZero() {
		t.Fatalf("empty = %v %v", got, err)
	}
}

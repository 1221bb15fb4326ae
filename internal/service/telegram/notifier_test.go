package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"PulseScan/internal/domain/models"
	"PulseScan/internal/domain/service"
	xhttp "PulseScan/pkg/http"
)

func sampleAlert(tier models.Tier) service.Alert {
	return service.Alert{
		Signal: models.ConfirmedSignal{
			SignalEvent: models.SignalEvent{
				Asset:     "ABC",
				Tier:      tier,
				Direction: models.DirectionBuy,
				WT1:       -66.64,
				WT2:       -67.59,
				Strength:  134.2,
			},
			StochReading: models.StochReading{K: 4.2, D: 7.9},
			Reason:       "StochRSI_2H_Oversold(K:4.2,D:7.9)",
		},
		Asset:    models.Asset{Symbol: "ABC", Tier: tier, Price: 1234.5, MarketCap: 2.5e9, Change24h: 3.14159},
		ChartURL: "https://www.tradingview.com/chart/?symbol=BYBIT:ABCUSDT",
	}
}

func TestFormatPrice(t *testing.T) {
	cases := map[float64]string{
		1234567.891: "$1,234,567.89",
		12.5:        "$12.50",
		1:           "$1.00",
		0.5:         "$0.5000",
		0.01234:     "$0.0123",
		0.00001234:  "$0.00001234",
	}
	for in, want := range cases {
		if got := FormatPrice(in); got != want {
			t.Errorf("FormatPrice(%v) = %s, want %s", in, got, want)
		}
	}
}

func TestMarketCapCategory(t *testing.T) {
	if got := MarketCapCategory(2.5e9); !strings.Contains(got, "Large Cap ($2.5B)") {
		t.Fatalf("large = %s", got)
	}
	if got := MarketCapCategory(3e8); !strings.Contains(got, "Mid Cap ($300M)") {
		t.Fatalf("mid = %s", got)
	}
	if got := MarketCapCategory(4e7); !strings.Contains(got, "Small Cap ($40M)") {
		t.Fatalf("small = %s", got)
	}
}

func TestFormatMessage(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	msg := FormatMessage(sampleAlert(models.TierHighRisk), now)
	for _, want := range []string{
		"HIGH RISK SIGNAL",
		"*ABC-USD : BUY*",
		"$1,234.50",
		"+3.14%",
		"WT1:-66.64 | WT2:-67.59",
		"K:4.2 D:7.9",
		"StochRSI_2H_Oversold",
		"03:30 PM 01-05-2024 IST",
		"Wednesday, 01 May 2024",
		"(https://www.tradingview.com/chart/?symbol=BYBIT:ABCUSDT)",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
	if strings.Contains(FormatMessage(sampleAlert(models.TierStandard), now), "HIGH RISK") {
		t.Fatalf("standard alert rendered as high risk")
	}
}

type captured struct {
	mu   sync.Mutex
	path string
	form map[string]string
}

func telegramServer(t *testing.T, status int, body string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		c.mu.Lock()
		c.path = r.URL.Path
		c.form = map[string]string{}
		for k := range r.PostForm {
			c.form[k] = r.PostForm.Get(k)
		}
		c.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func TestNotifierRoutesByTier(t *testing.T) {
	srv, got := telegramServer(t, http.StatusOK, `{"ok":true}`)
	n := NewNotifier(xhttp.NewClient(), Options{BaseURL: srv.URL, BotToken: "tok", ChatID: "std", HighRiskChatID: "hr"}, nil)

	if err := n.Notify(context.Background(), sampleAlert(models.TierHighRisk)); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if got.path != "/bottok/sendMessage" {
		t.Fatalf("path = %s", got.path)
	}
	if got.form["chat_id"] != "hr" || got.form["parse_mode"] != "Markdown" {
		t.Fatalf("form = %v", got.form)
	}

	if err := n.Notify(context.Background(), sampleAlert(models.TierStandard)); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if got.form["chat_id"] != "std" {
		t.Fatalf("standard chat = %s", got.form["chat_id"])
	}
}

func TestNotifierFailures(t *testing.T) {
	srv, _ := telegramServer(t, http.StatusBadRequest, `{"ok":false,"description":"chat not found"}`)
	n := NewNotifier(xhttp.NewClient(), Options{BaseURL: srv.URL, BotToken: "tok", ChatID: "std"}, nil)

	if err := n.Notify(context.Background(), sampleAlert(models.TierStandard)); err == nil {
		t.Fatalf("expected error on 400")
	}
	if err := n.Notify(context.Background(), sampleAlert(models.TierHighRisk)); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("missing high risk chat: err = %v", err)
	}

	ok, _ := telegramServer(t, http.StatusOK, `{"ok":false,"description":"flood"}`)
	n = NewNotifier(xhttp.NewClient(), Options{BaseURL: ok.URL, BotToken: "tok", ChatID: "std"}, nil)
	if err := n.Notify(context.Background(), sampleAlert(models.TierStandard)); err == nil {
		t.Fatalf("expected error when ok is false")
	}
}

func TestDryRunNotifier(t *testing.T) {
	if err := NewDryRunNotifier(nil).Notify(context.Background(), sampleAlert(models.TierStandard)); err != nil {
		t.Fatalf("dry run: %v", err)
	}
}

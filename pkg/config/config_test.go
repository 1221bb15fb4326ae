package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Scanner.Workers != 4 {
		t.Fatalf("workers = %d, want 4", c.Scanner.Workers)
	}
	if c.Alerts.Cooldown != 30*time.Second {
		t.Fatalf("cooldown = %v, want 30s", c.Alerts.Cooldown)
	}
	if c.Dedup.Window != 4*time.Hour || c.Dedup.LoadCutoff != 24*time.Hour {
		t.Fatalf("dedup window/cutoff = %v/%v", c.Dedup.Window, c.Dedup.LoadCutoff)
	}
	if got := strings.Join(c.Exchanges.Order, ","); got != "bingx,binance,okx,bybit" {
		t.Fatalf("exchange order = %s", got)
	}
	if c.Scanner.FastTimeframe != "1h" || c.Scanner.SlowTimeframe != "2h" {
		t.Fatalf("timeframes = %s/%s", c.Scanner.FastTimeframe, c.Scanner.SlowTimeframe)
	}
	if c.Redis.PoolSize != 10 || c.Redis.MinIdleConns != 2 || c.Redis.PoolTimeout != 30*time.Second {
		t.Fatalf("redis pool = %d/%d/%v", c.Redis.PoolSize, c.Redis.MinIdleConns, c.Redis.PoolTimeout)
	}
	if !c.Server.CORS || c.Exchanges.UserAgent != "PulseScan/1.0" || c.Kafka.AutoCreate {
		t.Fatalf("server cors %v, user agent %q, auto create %v", c.Server.CORS, c.Exchanges.UserAgent, c.Kafka.AutoCreate)
	}
}

func TestLoadOverridesDefaultsFromYAML(t *testing.T) {
	path := writeConfig(t, `
scanner:
  workers: 2
  interval: 60s
alerts:
  dry_run: true
  cooldown: 10s
exchanges:
  order: [okx, bybit]
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Scanner.Workers != 2 || c.Scanner.Interval != time.Minute {
		t.Fatalf("scanner = %+v", c.Scanner)
	}
	if c.Scanner.FastLimit != 50 {
		t.Fatalf("untouched default lost: fast_limit = %d", c.Scanner.FastLimit)
	}
	if !c.Alerts.DryRun || c.Alerts.Cooldown != 10*time.Second {
		t.Fatalf("alerts = %+v", c.Alerts)
	}
	if len(c.Exchanges.Order) != 2 || c.Exchanges.Order[0] != "okx" {
		t.Fatalf("order = %v", c.Exchanges.Order)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "scanner: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "123")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("BACKEND", "kafka")

	c, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c.ApplyEnv()

	if c.Alerts.BotToken != "token" || c.Alerts.ChatID != "123" {
		t.Fatalf("telegram creds not applied: %+v", c.Alerts)
	}
	if len(c.Kafka.Brokers) != 2 || c.Kafka.Brokers[1] != "b:9092" {
		t.Fatalf("brokers = %v", c.Kafka.Brokers)
	}
	if c.Backend.Type != "kafka" {
		t.Fatalf("backend = %s", c.Backend.Type)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		c.Alerts.DryRun = true
		return c
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Scanner.Workers = 0 }},
		{"too many workers", func(c *Config) { c.Scanner.Workers = 17 }},
		{"negative cooldown", func(c *Config) { c.Alerts.Cooldown = -time.Second }},
		{"unknown timeframe", func(c *Config) { c.Scanner.SlowTimeframe = "3h" }},
		{"same timeframes", func(c *Config) { c.Scanner.SlowTimeframe = "1h" }},
		{"slow shorter than fast", func(c *Config) { c.Scanner.SlowTimeframe = "30m" }},
		{"short limit", func(c *Config) { c.Scanner.FastLimit = 29 }},
		{"missing telegram", func(c *Config) { c.Alerts.DryRun = false }},
		{"bad backend", func(c *Config) { c.Backend.Type = "postgres" }},
		{"no sources", func(c *Config) { c.Exchanges.Order = nil }},
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("defaults with dry run should validate: %v", err)
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(c)
			if err := c.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

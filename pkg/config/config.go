package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"PulseScan/pkg/util"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Log         struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Server struct {
		Enabled         bool          `yaml:"enabled" default:"true"`
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		RateLimit       float64       `yaml:"rate_limit" default:"5"`
		RateBurst       int           `yaml:"rate_burst" default:"20"`
		CORS            bool          `yaml:"cors" default:"true"`
	} `yaml:"server"`
	Scanner struct {
		Interval      time.Duration `yaml:"interval" default:"300s"`
		CycleTimeout  time.Duration `yaml:"cycle_timeout" default:"240s"`
		Workers       int           `yaml:"workers" default:"4"`
		FastTimeframe string        `yaml:"fast_timeframe" default:"1h"`
		FastLimit     int           `yaml:"fast_limit" default:"50"`
		SlowTimeframe string        `yaml:"slow_timeframe" default:"2h"`
		SlowLimit     int           `yaml:"slow_limit" default:"100"`
		StatsEvery    int           `yaml:"stats_every" default:"12"`
		LogFirst      int           `yaml:"log_first" default:"5"`
		LogEvery      int           `yaml:"log_every" default:"20"`
	} `yaml:"scanner"`
	Exchanges struct {
		Order             []string      `yaml:"order" default:"[\"bingx\",\"binance\",\"okx\",\"bybit\"]"`
		Timeout           time.Duration `yaml:"timeout" default:"30s"`
		Retries           int           `yaml:"retries" default:"3"`
		Backoff           time.Duration `yaml:"backoff" default:"500ms"`
		MarketsTTL        time.Duration `yaml:"markets_ttl" default:"6h"`
		RequestsPerSecond float64       `yaml:"requests_per_second" default:"10"`
		Burst             int           `yaml:"burst" default:"20"`
		UserAgent         string        `yaml:"user_agent" default:"PulseScan/1.0"`
		BingX             struct {
			BaseURL   string `yaml:"base_url" default:"https://open-api.bingx.com"`
			APIKey    string `yaml:"api_key"`
			SecretKey string `yaml:"secret_key"`
		} `yaml:"bingx"`
		Binance struct {
			BaseURL   string `yaml:"base_url"`
			APIKey    string `yaml:"api_key"`
			SecretKey string `yaml:"secret_key"`
		} `yaml:"binance"`
		OKX struct {
			BaseURL string `yaml:"base_url" default:"https://www.okx.com"`
		} `yaml:"okx"`
		Bybit struct {
			BaseURL string `yaml:"base_url" default:"https://api.bybit.com"`
		} `yaml:"bybit"`
	} `yaml:"exchanges"`
	Universe struct {
		BaseURL           string        `yaml:"base_url" default:"https://api.coingecko.com"`
		APIKey            string        `yaml:"api_key"`
		Pages             int           `yaml:"pages" default:"5"`
		PerPage           int           `yaml:"per_page" default:"250"`
		PageDelay         time.Duration `yaml:"page_delay" default:"200ms"`
		Timeout           time.Duration `yaml:"timeout" default:"30s"`
		CacheTTL          time.Duration `yaml:"cache_ttl" default:"30m"`
		BlocklistPath     string        `yaml:"blocklist_path" default:"blocked_coins.txt"`
		StandardMinCap    float64       `yaml:"standard_min_cap" default:"500000000"`
		StandardMinVolume float64       `yaml:"standard_min_volume" default:"30000000"`
		HighRiskMinCap    float64       `yaml:"high_risk_min_cap" default:"10000000"`
		HighRiskMinVolume float64       `yaml:"high_risk_min_volume" default:"10000000"`
		Stablecoins       []string      `yaml:"stablecoins" default:"[\"USDT\",\"USDC\",\"DAI\",\"BUSD\",\"USDE\",\"FDUSD\",\"TUSD\"]"`
	} `yaml:"universe"`
	Dedup struct {
		Path          string        `yaml:"path" default:"cache/deduplication_cache.json"`
		Window        time.Duration `yaml:"window" default:"4h"`
		LoadCutoff    time.Duration `yaml:"load_cutoff" default:"24h"`
		FlushInterval time.Duration `yaml:"flush_interval" default:"5m"`
		Mirror        bool          `yaml:"mirror"`
	} `yaml:"dedup"`
	Alerts struct {
		DryRun         bool          `yaml:"dry_run"`
		BaseURL        string        `yaml:"base_url" default:"https://api.telegram.org"`
		BotToken       string        `yaml:"bot_token"`
		ChatID         string        `yaml:"chat_id"`
		HighRiskChatID string        `yaml:"high_risk_chat_id"`
		Cooldown       time.Duration `yaml:"cooldown" default:"30s"`
		Timeout        time.Duration `yaml:"timeout" default:"10s"`
	} `yaml:"alerts"`
	Chart struct {
		BaseURL      string        `yaml:"base_url" default:"https://www.tradingview.com"`
		Probe        bool          `yaml:"probe" default:"true"`
		ProbeTimeout time.Duration `yaml:"probe_timeout" default:"3s"`
		CacheTTL     time.Duration `yaml:"cache_ttl" default:"24h"`
	} `yaml:"chart"`
	Backend struct {
		Type         string        `yaml:"type" default:"none"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"1s"`
		BufferSize   int           `yaml:"buffer_size" default:"1000"`
		MaxRPS       int           `yaml:"max_rps" default:"50"`
		HistorySize  int           `yaml:"history_size" default:"200"`
	} `yaml:"backend"`
	Kafka struct {
		Brokers      []string `yaml:"brokers" default:"[\"localhost:9092\"]"`
		Topic        string   `yaml:"topic" default:"pulsescan.signals"`
		LogTopic     string   `yaml:"log_topic" default:"pulsescan.logs"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		AutoCreate   bool     `yaml:"auto_create_topics"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled" default:"true"`
			GroupID    string        `yaml:"group_id" default:"pulsescan-archiver"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"100"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"pulsescan.signals.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"pulsescan"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"pulsescan"`

		PoolSize     int           `yaml:"pool_size" default:"10"`
		MinIdleConns int           `yaml:"min_idle_conns" default:"2"`
		PoolTimeout  time.Duration `yaml:"pool_timeout" default:"30s"`
	} `yaml:"redis"`
}

var supportedTimeframes = map[string]bool{
	"1m": true, "5m": true, "15m": true, "30m": true,
	"1h": true, "2h": true, "4h": true, "1d": true,
}

// Load reads a YAML file over the tagged defaults. A missing file is not
// an error: the defaults alone describe a dry-run scanner.
func Load(path string) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML, then .env, then process environment,
// and validates the result.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	c.ApplyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides secrets and deployment knobs from the environment.
func (c *Config) ApplyEnv() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.Alerts.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.Alerts.ChatID, "TELEGRAM_CHAT_ID")
	setString(&c.Alerts.HighRiskChatID, "HIGH_RISK_CHAT_ID")
	setString(&c.Universe.APIKey, "COINGECKO_API_KEY")
	setString(&c.Exchanges.BingX.APIKey, "BINGX_API_KEY")
	setString(&c.Exchanges.BingX.SecretKey, "BINGX_SECRET_KEY")
	setString(&c.Exchanges.Binance.APIKey, "BINANCE_API_KEY")
	setString(&c.Exchanges.Binance.SecretKey, "BINANCE_SECRET_KEY")
	setString(&c.Kafka.Topic, "KAFKA_TOPIC")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Backend.Type, "BACKEND")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
}

func (c *Config) Validate() error {
	if c.Scanner.Workers < 1 || c.Scanner.Workers > 16 {
		return fmt.Errorf("scanner.workers must be between 1 and 16, got %d", c.Scanner.Workers)
	}
	if c.Scanner.Interval <= 0 {
		return fmt.Errorf("scanner.interval must be positive")
	}
	if c.Alerts.Cooldown < 0 {
		return fmt.Errorf("alerts.cooldown cannot be negative")
	}
	for _, tf := range []string{c.Scanner.FastTimeframe, c.Scanner.SlowTimeframe} {
		if !supportedTimeframes[tf] {
			return fmt.Errorf("unsupported timeframe '%s'", tf)
		}
	}
	fast, _ := util.ParseTimeframe(c.Scanner.FastTimeframe)
	slow, _ := util.ParseTimeframe(c.Scanner.SlowTimeframe)
	if slow <= fast {
		return fmt.Errorf("scanner slow timeframe must be longer than the fast one")
	}
	if c.Scanner.FastLimit < 30 || c.Scanner.SlowLimit < 30 {
		return fmt.Errorf("scanner limits must be at least 30 candles")
	}
	if len(c.Exchanges.Order) == 0 {
		return fmt.Errorf("exchanges.order cannot be empty")
	}
	if c.Exchanges.Retries < 1 {
		return fmt.Errorf("exchanges.retries must be at least 1")
	}
	if c.Dedup.Window <= 0 {
		return fmt.Errorf("dedup.window must be positive")
	}
	if !c.Alerts.DryRun && (c.Alerts.BotToken == "" || c.Alerts.ChatID == "") {
		return fmt.Errorf("alerts.bot_token and alerts.chat_id are required unless alerts.dry_run is set")
	}
	switch c.Backend.Type {
	case "kafka", "clickhouse", "none":
	default:
		return fmt.Errorf("backend.type must be 'kafka', 'clickhouse' or 'none', got '%s'", c.Backend.Type)
	}
	if c.Backend.Type == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when backend.type is kafka")
	}
	return nil
}

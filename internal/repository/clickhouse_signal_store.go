package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"PulseScan/internal/domain/models"
	domrepo "PulseScan/internal/domain/repository"
	applogger "PulseScan/pkg/logger"
)

const signalsTable = "signals"

// SignalSchema is the DDL for the alert history. ReplacingMergeTree on the
// fingerprint keeps a redelivered Kafka message from duplicating a row.
var SignalSchema = []string{
	`CREATE TABLE IF NOT EXISTS signals (
		fingerprint FixedString(32),
		symbol      LowCardinality(String),
		tier        LowCardinality(String),
		direction   LowCardinality(String),
		source      LowCardinality(String),
		pair        String,
		price       Float64,
		wt1         Float64,
		wt2         Float64,
		stoch_k     Float64,
		stoch_d     Float64,
		strength    Float64,
		reason      String,
		chart_url   String,
		candle_time DateTime('UTC'),
		sent_at     DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(sent_at)
	PARTITION BY toYYYYMM(sent_at)
	ORDER BY (fingerprint)`,
}

const signalColumns = "fingerprint, symbol, tier, direction, source, pair, price, wt1, wt2, stoch_k, stoch_d, strength, reason, chart_url, candle_time, sent_at"

// ClickHouseSignalStore archives dispatched alerts.
type ClickHouseSignalStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewClickHouseSignalStore(db *sql.DB, l *applogger.Logger) *ClickHouseSignalStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &ClickHouseSignalStore{db: db, table: signalsTable, l: l}
}

func (s *ClickHouseSignalStore) Init(ctx context.Context) error {
	for i, stmt := range SignalSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("signals schema statement %d: %w", i, err)
		}
	}
	return nil
}

func (s *ClickHouseSignalStore) Store(ctx context.Context, rec *models.SignalRecord) error {
	return s.StoreBatch(ctx, []*models.SignalRecord{rec})
}

func (s *ClickHouseSignalStore) StoreBatch(ctx context.Context, recs []*models.SignalRecord) error {
	values := make([]string, 0, len(recs))
	args := make([]interface{}, 0, len(recs)*16)
	for _, r := range recs {
		if r == nil || r.Fingerprint == "" {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			r.Fingerprint,
			r.Symbol,
			string(r.Tier),
			string(r.Direction),
			r.Source,
			r.Pair,
			r.Price,
			r.WT1,
			r.WT2,
			r.K,
			r.D,
			r.Strength,
			r.Reason,
			r.ChartURL,
			r.CandleTime.UTC(),
			r.SentAt.UTC(),
		)
	}
	if len(values) == 0 {
		return nil
	}

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, signalColumns, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		s.l.Error("clickhouse insert signals failed", applogger.Int("rows", len(values)), applogger.Error(err))
		return fmt.Errorf("insert signals: %w", err)
	}
	return nil
}

// buildRecentQuery renders the filtered history query and its arguments.
func (s *ClickHouseSignalStore) buildRecentQuery(q domrepo.SignalQuery) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	if q.Symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, strings.ToUpper(q.Symbol))
	}
	if q.Tier != "" {
		where = append(where, "tier = ?")
		args = append(args, string(q.Tier))
	}
	if q.Direction != "" {
		where = append(where, "direction = ?")
		args = append(args, string(q.Direction))
	}
	if !q.Since.IsZero() {
		where = append(where, "sent_at >= ?")
		args = append(args, q.Since.UTC())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s FINAL", signalColumns, s.table)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY sent_at DESC LIMIT ?")
	args = append(args, limitOrDefault(q.Limit))
	return b.String(), args
}

func (s *ClickHouseSignalStore) Recent(ctx context.Context, q domrepo.SignalQuery) ([]*models.SignalRecord, error) {
	query, args := s.buildRecentQuery(q)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []*models.SignalRecord
	for rows.Next() {
		var (
			r               models.SignalRecord
			tier, direction string
			candle, sent    time.Time
		)
		if err := rows.Scan(&r.Fingerprint, &r.Symbol, &tier, &direction, &r.Source, &r.Pair,
			&r.Price, &r.WT1, &r.WT2, &r.K, &r.D, &r.Strength, &r.Reason, &r.ChartURL, &candle, &sent); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		r.Tier = models.Tier(tier)
		r.Direction = models.Direction(direction)
		r.CandleTime = candle.UTC()
		r.SentAt = sent.UTC()
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *ClickHouseSignalStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseSignalStore) Close() error {
	return nil // pool owned by pkg/clickhouse.Client
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return 50
	}
	return n
}

var _ domrepo.SignalStore = (*ClickHouseSignalStore)(nil)

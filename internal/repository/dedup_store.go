package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"PulseScan/internal/domain/models"
	"PulseScan/pkg/cache"
	"PulseScan/pkg/logger"
	"PulseScan/pkg/util"
)

const mirrorNamespace = "dedup"

// Fingerprint identifies a confirmed signal coarsely enough that a
// recomputation of the same candle lands on the same key: the candle time
// is truncated to the hour and each oscillator rounded to a multiple of 5.
func Fingerprint(sig models.ConfirmedSignal) string {
	key := strings.Join([]string{
		strings.ToUpper(sig.Asset),
		string(sig.Direction),
		util.HourBucket(sig.CandleTime),
		fmt.Sprint(bucket5(sig.WT1)),
		fmt.Sprint(bucket5(sig.WT2)),
		fmt.Sprint(bucket5(sig.K)),
		fmt.Sprint(bucket5(sig.D)),
	}, "|")
	return cache.HashKey(key)
}

func bucket5(v float64) int {
	return int(math.Round(v/5)) * 5
}

// RecordFor snapshots a signal for the store.
func RecordFor(sig models.ConfirmedSignal) models.DedupRecord {
	return models.DedupRecord{
		Symbol:    strings.ToUpper(sig.Asset),
		Direction: sig.Direction,
		WT1:       sig.WT1,
		WT2:       sig.WT2,
		K:         sig.K,
		D:         sig.D,
		Price:     sig.Price,
	}
}

type DedupOption func(*DedupStore)

func WithDedupWindow(d time.Duration) DedupOption {
	return func(s *DedupStore) { s.window = d }
}

func WithDedupLoadCutoff(d time.Duration) DedupOption {
	return func(s *DedupStore) { s.loadCutoff = d }
}

// WithDedupMirror shares sent fingerprints through a cache so several
// scanner instances suppress each other's duplicates.
func WithDedupMirror(c cache.Service) DedupOption {
	return func(s *DedupStore) { s.mirror = c }
}

func WithDedupClock(now func() time.Time) DedupOption {
	return func(s *DedupStore) { s.now = now }
}

func WithDedupLogger(l *logger.Logger) DedupOption {
	return func(s *DedupStore) { s.log = l }
}

// DedupStore remembers which fingerprints were alerted and when. Check and
// claim happen in one critical section; a claimed fingerprint is either
// marked or released once its send returns.
type DedupStore struct {
	mu       sync.Mutex
	path     string
	records  map[string]models.DedupRecord
	inflight map[string]struct{}

	window     time.Duration
	loadCutoff time.Duration
	mirror     cache.Service
	log        *logger.Logger
	now        func() time.Time
}

// NewDedupStore creates a store persisted at path. An empty path keeps
// records in memory only.
func NewDedupStore(path string, opts ...DedupOption) *DedupStore {
	s := &DedupStore{
		path:       path,
		records:    make(map[string]models.DedupRecord),
		inflight:   make(map[string]struct{}),
		window:     4 * time.Hour,
		loadCutoff: 24 * time.Hour,
		log:        logger.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory records with the file contents, dropping
// anything older than the load cutoff. A missing file is an empty store.
func (s *DedupStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return nil
	}
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read dedup cache: %w", err)
	}

	var stored map[string]models.DedupRecord
	if err := json.Unmarshal(b, &stored); err != nil {
		return fmt.Errorf("parse dedup cache: %w", err)
	}

	cutoff := s.now().Add(-s.loadCutoff)
	s.records = make(map[string]models.DedupRecord, len(stored))
	expired := 0
	for fp, rec := range stored {
		if rec.Timestamp.Before(cutoff) {
			expired++
			continue
		}
		s.records[fp] = rec
	}
	s.log.Info("dedup cache loaded",
		logger.Int("records", len(s.records)),
		logger.Int("expired", expired),
	)
	return nil
}

// IsDuplicate reports whether fp was sent within the window. An expired
// record is evicted here.
func (s *DedupStore) IsDuplicate(fp string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isDuplicateLocked(fp)
}

func (s *DedupStore) isDuplicateLocked(fp string) bool {
	rec, ok := s.records[fp]
	if !ok {
		return false
	}
	if s.now().Sub(rec.Timestamp) < s.window {
		return true
	}
	delete(s.records, fp)
	return false
}

// MarkSent stores rec under fp stamped with the current time and writes
// the file before returning.
func (s *DedupStore) MarkSent(fp string, rec models.DedupRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markLocked(fp, rec)
}

func (s *DedupStore) markLocked(fp string, rec models.DedupRecord) error {
	rec.Timestamp = s.now().UTC()
	s.records[fp] = rec
	return s.flushLocked()
}

// SendOnce calls send unless sig is a duplicate, and marks it sent only if
// send succeeded. It returns ErrDuplicate when suppressed. The fingerprint
// is claimed while send runs, so the store stays readable and a concurrent
// caller with the same fingerprint is suppressed.
func (s *DedupStore) SendOnce(ctx context.Context, sig models.ConfirmedSignal, send func(context.Context) error) (string, error) {
	fp := Fingerprint(sig)

	s.mu.Lock()
	if _, busy := s.inflight[fp]; busy || s.isDuplicateLocked(fp) {
		s.mu.Unlock()
		return fp, models.ErrDuplicate
	}
	s.inflight[fp] = struct{}{}
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		delete(s.inflight, fp)
		s.mu.Unlock()
	}

	mirrorKey := cache.GenerateKey(mirrorNamespace, fp)
	if s.mirror != nil {
		ok, err := s.mirror.TryLock(ctx, mirrorKey, s.window)
		switch {
		case err != nil:
			// the mirror is best effort; the local record still holds
			s.log.Warn("dedup mirror lock failed", logger.String("fingerprint", fp), logger.Error(err))
		case !ok:
			release()
			return fp, models.ErrDuplicate
		}
	}

	if err := send(ctx); err != nil {
		if s.mirror != nil {
			if uerr := s.mirror.Unlock(ctx, mirrorKey); uerr != nil {
				s.log.Warn("dedup mirror unlock failed", logger.String("fingerprint", fp), logger.Error(uerr))
			}
		}
		release()
		return fp, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, fp)
	if err := s.markLocked(fp, RecordFor(sig)); err != nil {
		// already sent; the record is in memory and the next flush retries the write
		s.log.Error("dedup cache write failed", logger.String("fingerprint", fp), logger.Error(err))
	}
	return fp, nil
}

func (s *DedupStore) Get(fp string) (models.DedupRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isDuplicateLocked(fp) {
		return models.DedupRecord{}, false
	}
	return s.records[fp], true
}

func (s *DedupStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Prune evicts every expired record and returns how many were removed.
func (s *DedupStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for fp := range s.records {
		if !s.isDuplicateLocked(fp) {
			n++
		}
	}
	return n
}

func (s *DedupStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// flushLocked writes through a temp file so a crash never leaves a
// truncated cache behind.
func (s *DedupStore) flushLocked() error {
	if s.path == "" {
		return nil
	}
	b, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode dedup cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create dedup cache dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write dedup cache: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace dedup cache: %w", err)
	}
	return nil
}

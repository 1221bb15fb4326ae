package usecase

import (
	"sync"
	"time"

	"PulseScan/internal/domain/models"
	"PulseScan/pkg/logger"
)

// StatsSnapshot is a point-in-time copy of the running totals.
type StatsSnapshot struct {
	StartedAt       time.Time           `json:"started_at"`
	UptimeHours     float64             `json:"uptime_hours"`
	CyclesCompleted int                 `json:"cycles_completed"`
	DegradedCycles  int                 `json:"degraded_cycles"`
	AlertsSent      int                 `json:"alerts_sent"`
	AlertsPerHour   float64             `json:"alerts_per_hour"`
	AlertsByTier    map[models.Tier]int `json:"alerts_by_tier"`
	Duplicates      int                 `json:"duplicates"`
	Errors          map[string]int      `json:"errors"`
	LastCycle       *CycleReport        `json:"last_cycle,omitempty"`
}

// Stats accumulates totals across cycles.
type Stats struct {
	mu        sync.RWMutex
	startedAt time.Time
	cycles    int
	degraded  int
	alerts    int
	byTier    map[models.Tier]int
	dups      int
	errors    map[string]int
	last      *CycleReport
	now       func() time.Time
}

func NewStats() *Stats {
	return &Stats{
		startedAt: time.Now(),
		byTier:    make(map[models.Tier]int),
		errors:    make(map[string]int),
		now:       time.Now,
	}
}

func (s *Stats) Record(r *CycleReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles++
	if r.Degraded {
		s.degraded++
	}
	s.alerts += r.Dispatch.Sent
	s.dups += r.Dispatch.Duplicates
	for _, rec := range r.Dispatch.Records {
		s.byTier[rec.Tier]++
	}
	for kind, n := range r.Outcomes {
		switch kind {
		case models.KindOK, models.KindNoSignal, models.KindConfirmationRejected:
		default:
			s.errors[kind] += n
		}
	}
	if r.Dispatch.Failed > 0 {
		s.errors[models.KindDispatchFailure] += r.Dispatch.Failed
	}
	s.last = r
}

func (s *Stats) Cycles() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cycles
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := s.now().Sub(s.startedAt).Hours()
	snap := StatsSnapshot{
		StartedAt:       s.startedAt,
		UptimeHours:     uptime,
		CyclesCompleted: s.cycles,
		DegradedCycles:  s.degraded,
		AlertsSent:      s.alerts,
		AlertsPerHour:   float64(s.alerts) / max(uptime, 0.1),
		AlertsByTier:    make(map[models.Tier]int, len(s.byTier)),
		Duplicates:      s.dups,
		Errors:          make(map[string]int, len(s.errors)),
		LastCycle:       s.last,
	}
	for k, v := range s.byTier {
		snap.AlertsByTier[k] = v
	}
	for k, v := range s.errors {
		snap.Errors[k] = v
	}
	return snap
}

// Log writes the running totals at info level.
func (s *Stats) Log(log *logger.Logger) {
	snap := s.Snapshot()
	log.Info("system statistics",
		logger.Float64("uptime_hours", snap.UptimeHours),
		logger.Int("cycles", snap.CyclesCompleted),
		logger.Int("degraded_cycles", snap.DegradedCycles),
		logger.Int("alerts", snap.AlertsSent),
		logger.Float64("alerts_per_hour", snap.AlertsPerHour),
		logger.Int("alerts_high_risk", snap.AlertsByTier[models.TierHighRisk]),
		logger.Int("alerts_standard", snap.AlertsByTier[models.TierStandard]),
		logger.Int("duplicates", snap.Duplicates),
		logger.Any("errors", snap.Errors),
	)
}

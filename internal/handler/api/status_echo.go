package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"PulseScan/internal/domain/models"
	domrepo "PulseScan/internal/domain/repository"
	"PulseScan/internal/service/ratelimit"
	"PulseScan/internal/usecase"
	xhttp "PulseScan/pkg/http"
	xlogger "PulseScan/pkg/logger"
	"PulseScan/pkg/util"

	"github.com/labstack/echo/v4"
)

// SignalHistory answers recent-alert queries.
type SignalHistory interface {
	Recent(ctx context.Context, q domrepo.SignalQuery) ([]*models.SignalRecord, error)
}

// DedupLookup exposes the live dedup window.
type DedupLookup interface {
	Get(fp string) (models.DedupRecord, bool)
	Len() int
}

// HealthCheck is one dependency probed by /api/health.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type StatusEchoHandler struct {
	logger  *xlogger.Logger
	stats   *usecase.Stats
	history SignalHistory
	dedup   DedupLookup
	checks  []HealthCheck
	rl      *ratelimit.Limiter
}

func NewStatusEchoHandler(
	logger *xlogger.Logger,
	stats *usecase.Stats,
	history SignalHistory,
	dedup DedupLookup,
	rl *ratelimit.Limiter,
	checks ...HealthCheck,
) *StatusEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &StatusEchoHandler{logger: logger, stats: stats, history: history, dedup: dedup, checks: checks, rl: rl}
}

func (h *StatusEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/health", h.Health)
	g.GET("/status", h.Status)
	g.GET("/signals", h.Signals, h.limit("signals"))
	g.GET("/dedup/:fingerprint", h.Dedup, h.limit("dedup"))
}

// limit rejects clients that exceed the per-address budget.
func (h *StatusEchoHandler) limit(endpoint string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if h.rl != nil && !h.rl.Allow(c.RealIP()+":"+endpoint) {
				h.logger.Warn("api rate limited",
					xlogger.String("endpoint", endpoint),
					xlogger.String("remote", c.RealIP()),
				)
				return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
			}
			return next(c)
		}
	}
}

func (h *StatusEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	status := map[string]string{}
	healthy := true
	for _, hc := range h.checks {
		if err := hc.Check(ctx); err != nil {
			healthy = false
			status[hc.Name] = err.Error()
			h.logger.Warn("health check failed", xlogger.String("dependency", hc.Name), xlogger.Error(err))
			continue
		}
		status[hc.Name] = "ok"
	}
	if !healthy {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, status)
	}
	return xhttp.SuccessResponse(c, status)
}

type statusResponse struct {
	usecase.StatsSnapshot
	DedupEntries int `json:"dedup_entries"`
}

func (h *StatusEchoHandler) Status(c echo.Context) error {
	resp := statusResponse{StatsSnapshot: h.stats.Snapshot()}
	if h.dedup != nil {
		resp.DedupEntries = h.dedup.Len()
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, resp)
}

func (h *StatusEchoHandler) Signals(c echo.Context) error {
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	since, err := parseSince(req.Since, time.Now())
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("since must be RFC3339, a unix timestamp or a duration like 6h").
			WithParam("since", req.Since))
	}

	recs, err := h.history.Recent(c.Request().Context(), domrepo.SignalQuery{
		Symbol:    strings.ToUpper(req.Symbol),
		Tier:      models.Tier(req.Tier),
		Direction: models.Direction(req.Direction),
		Since:     since,
		Limit:     req.Limit,
	})
	if err != nil {
		h.logger.Error("signal history query failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableErrorf("signal history unavailable").WithError(err))
	}
	if recs == nil {
		recs = []*models.SignalRecord{}
	}
	return xhttp.ListResponse(c, recs, int64(len(recs)))
}

// parseSince accepts a look-back duration, an RFC3339 time or a unix
// timestamp.
func parseSince(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	if t, ok := util.ParseTime(s); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("since must be a duration, RFC3339 time or unix timestamp: %q", s)
}

func (h *StatusEchoHandler) Dedup(c echo.Context) error {
	req := &models.DedupLookupRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rec, ok := h.dedup.Get(strings.ToLower(req.Fingerprint))
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no live dedup record for %s", req.Fingerprint))
	}
	return xhttp.SuccessResponse(c, rec)
}

var _ xhttp.Handler = (*StatusEchoHandler)(nil)

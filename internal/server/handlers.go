package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/quantfold/helmsman/internal/domain"
	"github.com/quantfold/helmsman/internal/modules/risk"
)

type orchestrator interface {
	RunCycle(ctx context.Context) (domain.CycleReport, error)
	LastReport() *domain.CycleReport
}

type tradeReader interface {
	RecentTrades(limit int) ([]domain.Trade, error)
}

type sectorReader interface {
	SectorAllocations(positions []domain.Position, portfolioValue float64) map[string]float64
}

// manualCycleTimeout bounds cycles triggered over the API
const manualCycleTimeout = 10 * time.Minute

// Handlers implements the HTTP API endpoints
type Handlers struct {
	orchestrator orchestrator
	broker       domain.BrokerClient
	trades       tradeReader
	sectors      sectorReader
	limits       risk.Limits
	startedAt    time.Time
	log          zerolog.Logger
}

// NewHandlers creates the API handler set
func NewHandlers(
	orch orchestrator,
	broker domain.BrokerClient,
	trades tradeReader,
	sectors sectorReader,
	limits risk.Limits,
	log zerolog.Logger,
) *Handlers {
	return &Handlers{
		orchestrator: orch,
		broker:       broker,
		trades:       trades,
		sectors:      sectors,
		limits:       limits,
		startedAt:    time.Now().UTC(),
		log:          log.With().Str("component", "handlers").Logger(),
	}
}

// HandleHealth reports process liveness plus host CPU and memory usage.
// GET /health
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	cpuAvg := 0.0
	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	} else if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	}

	memUsed := 0.0
	if memStat, err := mem.VirtualMemory(); err == nil {
		memUsed = memStat.UsedPercent
	} else {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "ok",
		"uptime_seconds":   int(time.Since(h.startedAt).Seconds()),
		"cpu_percent":      cpuAvg,
		"mem_used_percent": memUsed,
	})
}

// HandleStatus returns the last cycle report with the live account snapshot.
// GET /api/status
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"last_cycle": h.orchestrator.LastReport(),
	}

	portfolio, err := h.broker.GetAccount(r.Context())
	if err != nil {
		h.log.Warn().Err(err).Msg("Account snapshot unavailable for status")
		status["account_error"] = err.Error()
	} else {
		status["portfolio"] = portfolio
		status["daily_pnl"] = portfolio.DailyPnL()
	}

	positions, err := h.broker.GetPositions(r.Context())
	if err == nil {
		status["positions"] = positions
		if portfolio.PortfolioValue > 0 {
			status["sector_allocations"] = h.sectors.SectorAllocations(positions, portfolio.PortfolioValue)
		}
	}

	h.writeJSON(w, http.StatusOK, status)
}

// HandleTrades returns the newest audit-log trades.
// GET /api/trades
func (h *Handlers) HandleTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := h.trades.RecentTrades(50)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"trades": trades})
}

// HandleRiskLimits returns the active risk bounds.
// GET /api/risk/limits
func (h *Handlers) HandleRiskLimits(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"max_positions":             h.limits.MaxPositions,
		"min_position_size_pct":     h.limits.MinPositionSizePct,
		"max_position_size_pct":     h.limits.MaxPositionSizePct,
		"daily_loss_limit_pct":      h.limits.DailyLossLimitPct,
		"max_correlation":           h.limits.MaxCorrelation,
		"max_sector_allocation":     h.limits.MaxSectorAllocation,
		"rebalance_drift_threshold": h.limits.RebalanceDriftThreshold,
	})
}

// HandleSectorAllocations returns the current sector exposure.
// GET /api/risk/sectors
func (h *Handlers) HandleSectorAllocations(w http.ResponseWriter, r *http.Request) {
	portfolio, err := h.broker.GetAccount(r.Context())
	if err != nil {
		h.writeError(w, http.StatusBadGateway, err)
		return
	}
	positions, err := h.broker.GetPositions(r.Context())
	if err != nil {
		h.writeError(w, http.StatusBadGateway, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"allocations": h.sectors.SectorAllocations(positions, portfolio.PortfolioValue),
	})
}

// HandleRunCycle triggers a trading cycle outside the schedule. The cycle
// runs in the background; a cycle already in flight makes the new one a
// no-op skip rather than a queued duplicate.
// POST /api/cycle/run
func (h *Handlers) HandleRunCycle(w http.ResponseWriter, r *http.Request) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), manualCycleTimeout)
		defer cancel()
		if _, err := h.orchestrator.RunCycle(ctx); err != nil {
			h.log.Error().Err(err).Msg("Manually triggered cycle failed")
		}
	}()

	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "cycle triggered"})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

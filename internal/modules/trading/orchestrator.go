package trading

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfold/helmsman/internal/domain"
	"github.com/quantfold/helmsman/internal/modules/risk"
	"github.com/quantfold/helmsman/internal/modules/scanning"
	"github.com/quantfold/helmsman/internal/modules/universe"
)

// Collaborator contracts, defined here so tests can stub each stage.

type signalFilter interface {
	Filter(ctx context.Context, candidates []domain.Signal, positions []domain.Position, portfolioValue float64) risk.FilterResult
}

type positionSizer interface {
	Size(signal domain.Signal, portfolio domain.Portfolio) (risk.Sizing, error)
	Recalibrate(pnlPcts []float64) []domain.ParameterChange
}

type rebalancer interface {
	ShouldRebalance(today time.Time, positions []domain.Position, portfolio domain.Portfolio) (bool, string)
	CalculateOrders(ctx context.Context, positions []domain.Position, portfolio domain.Portfolio) []domain.Signal
}

type exitEvaluator interface {
	Evaluate(ctx context.Context, pos domain.Position) scanning.ExitDecision
}

type auditLog interface {
	domain.TradeLog
	RecentClosedPnLPcts(limit int) ([]float64, error)
}

// recalibrationWindow is how many recent closed trades feed the Kelly inputs
const recalibrationWindow = 50

// Orchestrator runs one full trading cycle: session gate, account snapshot,
// circuit breaker, defensive rebalancing, signal collection, risk filtering,
// sizing and execution, then exit management. Cycles are mutually exclusive;
// a trigger that arrives while one is running is skipped, never queued.
type Orchestrator struct {
	broker     domain.BrokerClient
	producers  []domain.SignalProducer
	filter     signalFilter
	sizer      positionSizer
	rebalance  rebalancer
	exits      exitEvaluator
	audit      auditLog
	limits     risk.Limits
	allowEarly bool
	log        zerolog.Logger

	running sync.Mutex

	mu         sync.RWMutex
	lastReport *domain.CycleReport
}

// NewOrchestrator wires the full pipeline. allowEarly bypasses the
// market-session gate (paper trading and development).
func NewOrchestrator(
	broker domain.BrokerClient,
	producers []domain.SignalProducer,
	filter signalFilter,
	sizer positionSizer,
	rebalance rebalancer,
	exits exitEvaluator,
	audit auditLog,
	limits risk.Limits,
	allowEarly bool,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		broker:     broker,
		producers:  producers,
		filter:     filter,
		sizer:      sizer,
		rebalance:  rebalance,
		exits:      exits,
		audit:      audit,
		limits:     limits,
		allowEarly: allowEarly,
		log:        log.With().Str("service", "orchestrator").Logger(),
	}
}

// LastReport returns the most recent cycle's report, or nil before the first
// cycle has run.
func (o *Orchestrator) LastReport() *domain.CycleReport {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastReport
}

// RunCycle executes one trading cycle. It returns an error only for hard
// failures (the account snapshot was unobtainable); everything downstream
// degrades per-item and is reflected in the report instead.
func (o *Orchestrator) RunCycle(ctx context.Context) (domain.CycleReport, error) {
	if !o.running.TryLock() {
		report := domain.CycleReport{
			Status:     domain.CycleSkipped,
			Reason:     "previous cycle still running",
			StartedAt:  time.Now().UTC(),
			FinishedAt: time.Now().UTC(),
		}
		o.log.Warn().Msg("Cycle trigger skipped, previous cycle still running")
		return report, nil
	}
	defer o.running.Unlock()

	report := domain.CycleReport{StartedAt: time.Now().UTC()}

	if skip, next := o.marketClosed(ctx); skip {
		report.Status = domain.CycleSkipped
		report.Reason = "market closed"
		report.NextOpen = next
		o.finish(&report)
		return report, nil
	}

	portfolio, err := o.broker.GetAccount(ctx)
	if err != nil {
		return report, fmt.Errorf("cannot run cycle without account snapshot: %w", err)
	}
	positions, err := o.broker.GetPositions(ctx)
	if err != nil {
		return report, fmt.Errorf("cannot run cycle without positions snapshot: %w", err)
	}
	report.PortfolioValue = portfolio.PortfolioValue

	if pcts, err := o.audit.RecentClosedPnLPcts(recalibrationWindow); err != nil {
		o.log.Warn().Err(err).Msg("Could not load closed trades for recalibration")
	} else {
		for _, change := range o.sizer.Recalibrate(pcts) {
			if err := o.audit.LogParameterChange(change); err != nil {
				o.log.Warn().Err(err).Str("parameter", change.Name).Msg("Parameter change log write failed")
			}
		}
	}

	halted := risk.ShouldHaltTrading(portfolio.DailyPnL(), portfolio.PortfolioValue, o.limits)
	if halted {
		report.Status = domain.CycleHalted
		report.Reason = fmt.Sprintf("daily loss %.2f hit circuit breaker", portfolio.DailyPnL())
		o.log.Error().
			Float64("daily_pnl", portfolio.DailyPnL()).
			Float64("portfolio_value", portfolio.PortfolioValue).
			Msg("Circuit breaker tripped, no new entries this cycle")
	} else {
		report.RebalanceOrders = o.runRebalancing(ctx, positions, portfolio)

		candidates := o.collectSignals(ctx)
		report.SignalsFound = len(candidates)

		result := o.filter.Filter(ctx, candidates, positions, portfolio.PortfolioValue)
		report.SignalsApproved = len(result.Admitted)
		for _, rej := range result.Rejections {
			o.log.Info().Str("ticker", rej.Signal.Ticker).Str("reason", rej.Reason).Msg("Signal rejected")
		}

		report.OrdersExecuted = o.executeEntries(ctx, result.Admitted, portfolio)
	}

	// Exits run every cycle, including halted ones: the breaker stops new
	// risk, it must never trap existing positions.
	report.PositionsClosed = o.runExits(ctx, positions)

	if report.Status == "" {
		report.Status = domain.CycleCompleted
	}
	o.finish(&report)
	return report, nil
}

func (o *Orchestrator) finish(report *domain.CycleReport) {
	report.FinishedAt = time.Now().UTC()

	o.mu.Lock()
	o.lastReport = report
	o.mu.Unlock()

	o.log.Info().
		Str("status", string(report.Status)).
		Int("signals_found", report.SignalsFound).
		Int("signals_approved", report.SignalsApproved).
		Int("orders_executed", report.OrdersExecuted).
		Int("positions_closed", report.PositionsClosed).
		Int("rebalance_orders", report.RebalanceOrders).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Cycle finished")
}

// marketClosed consults the broker's clock. A clock failure does not block
// the cycle; the broker will reject orders itself if the session is closed.
func (o *Orchestrator) marketClosed(ctx context.Context) (bool, *time.Time) {
	if o.allowEarly {
		return false, nil
	}
	clock, err := o.broker.GetMarketClock(ctx)
	if err != nil {
		o.log.Warn().Err(err).Msg("Market clock unavailable, proceeding")
		return false, nil
	}
	if clock.IsOpen {
		return false, nil
	}
	return true, &clock.NextOpen
}

func (o *Orchestrator) runRebalancing(ctx context.Context, positions []domain.Position, portfolio domain.Portfolio) int {
	needed, trigger := o.rebalance.ShouldRebalance(time.Now(), positions, portfolio)
	if !needed {
		return 0
	}
	o.log.Info().Str("trigger", trigger).Msg("Rebalancing defensive core")

	executed := 0
	for _, sig := range o.rebalance.CalculateOrders(ctx, positions, portfolio) {
		o.logSignal(sig)
		if o.executeOrder(ctx, sig, portfolio) {
			executed++
		}
	}
	return executed
}

// collectSignals runs every producer concurrently. A producer that fails or
// hangs past the context deadline costs only its own signals.
func (o *Orchestrator) collectSignals(ctx context.Context) []domain.Signal {
	type produced struct {
		name    string
		signals []domain.Signal
		err     error
	}

	results := make(chan produced, len(o.producers))
	var wg sync.WaitGroup
	for _, p := range o.producers {
		wg.Add(1)
		go func(p domain.SignalProducer) {
			defer wg.Done()
			signals, err := p.Scan(ctx)
			results <- produced{name: p.Name(), signals: signals, err: err}
		}(p)
	}
	wg.Wait()
	close(results)

	var candidates []domain.Signal
	for r := range results {
		if r.err != nil {
			o.log.Error().Err(r.err).Str("producer", r.name).Msg("Producer scan failed")
			continue
		}
		candidates = append(candidates, r.signals...)
	}

	for _, sig := range candidates {
		o.logSignal(sig)
	}
	return candidates
}

// executeEntries sizes and submits each admitted signal. One failing order
// never blocks the rest.
func (o *Orchestrator) executeEntries(ctx context.Context, admitted []domain.Signal, portfolio domain.Portfolio) int {
	executed := 0
	for _, sig := range admitted {
		if o.executeOrder(ctx, sig, portfolio) {
			executed++
		}
	}
	return executed
}

func (o *Orchestrator) executeOrder(ctx context.Context, sig domain.Signal, portfolio domain.Portfolio) bool {
	sizing, err := o.sizer.Size(sig, portfolio)
	if err != nil {
		o.log.Warn().Err(err).Str("ticker", sig.Ticker).Msg("Could not size order")
		return false
	}
	if sizing.Quantity <= 0 {
		return false
	}

	req := domain.OrderRequest{
		Symbol:     sig.Ticker,
		Qty:        sizing.Quantity,
		Side:       sig.Action,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
	}
	orderID, err := o.broker.SubmitOrder(ctx, req)
	if err != nil {
		o.log.Error().Err(err).Str("ticker", sig.Ticker).Msg("Order submission failed")
		return false
	}

	o.log.Info().
		Str("ticker", sig.Ticker).
		Str("action", string(sig.Action)).
		Float64("qty", sizing.Quantity).
		Str("order_id", orderID).
		Str("sizing", sizing.Reason).
		Msg("Order submitted")

	trade := domain.Trade{
		Date:       time.Now().UTC(),
		Ticker:     sig.Ticker,
		Action:     sig.Action,
		Quantity:   sizing.Quantity,
		EntryPrice: sig.EntryPrice,
		Strategy:   sig.Strategy,
		OrderID:    orderID,
	}
	if err := o.audit.LogTrade(trade); err != nil {
		o.log.Warn().Err(err).Str("ticker", sig.Ticker).Msg("Trade log write failed")
	}
	return true
}

// runExits evaluates each held non-defensive position and closes the ones
// whose exit conditions fire. The defensive core is never exited here; it is
// managed by rebalancing.
func (o *Orchestrator) runExits(ctx context.Context, positions []domain.Position) int {
	closed := 0
	for _, pos := range positions {
		if universe.IsDefensive(pos.Symbol) {
			continue
		}

		decision := o.exits.Evaluate(ctx, pos)
		if !decision.ShouldExit {
			continue
		}

		if err := o.broker.ClosePosition(ctx, pos.Symbol); err != nil {
			o.log.Error().Err(err).Str("symbol", pos.Symbol).Msg("Position close failed")
			continue
		}
		closed++

		o.log.Info().
			Str("symbol", pos.Symbol).
			Str("reason", decision.Reason).
			Float64("pnl", pos.UnrealizedPL).
			Msg("Position closed")

		exitPrice := pos.CurrentPrice
		pnl := pos.UnrealizedPL
		pnlPct := pos.UnrealizedPLPct
		trade := domain.Trade{
			Date:       time.Now().UTC(),
			Ticker:     pos.Symbol,
			Action:     domain.ActionSell,
			Quantity:   pos.Quantity,
			EntryPrice: pos.AvgEntryPrice,
			ExitPrice:  &exitPrice,
			ExitReason: decision.Reason,
			PnL:        &pnl,
			PnLPct:     &pnlPct,
			Strategy:   "exit",
		}
		if err := o.audit.LogTrade(trade); err != nil {
			o.log.Warn().Err(err).Str("symbol", pos.Symbol).Msg("Trade log write failed")
		}
	}
	return closed
}

func (o *Orchestrator) logSignal(sig domain.Signal) {
	if err := o.audit.LogSignal(sig); err != nil {
		o.log.Warn().Err(err).Str("ticker", sig.Ticker).Msg("Signal log write failed")
	}
}

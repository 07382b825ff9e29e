package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfold/helmsman/internal/domain"
)

// cycleTimeout bounds one full trading cycle. Producers fan out dozens of
// history fetches; a wedged provider must not hold the job slot forever.
const cycleTimeout = 10 * time.Minute

type cycleRunner interface {
	RunCycle(ctx context.Context) (domain.CycleReport, error)
}

// CycleJob triggers one trading cycle. Implements Job.
type CycleJob struct {
	runner cycleRunner
	log    zerolog.Logger
}

// NewCycleJob creates the scheduled trading-cycle job
func NewCycleJob(runner cycleRunner, log zerolog.Logger) *CycleJob {
	return &CycleJob{runner: runner, log: log.With().Str("job", "trading_cycle").Logger()}
}

// Name implements Job
func (j *CycleJob) Name() string { return "trading_cycle" }

// Run implements Job
func (j *CycleJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()

	report, err := j.runner.RunCycle(ctx)
	if err != nil {
		return err
	}
	j.log.Info().Str("status", string(report.Status)).Msg("Trading cycle done")
	return nil
}

type pruner interface {
	PruneExpired() (int64, error)
}

// CachePruneJob removes expired price-series cache rows. Implements Job.
type CachePruneJob struct {
	cache pruner
	log   zerolog.Logger
}

// NewCachePruneJob creates the nightly cache maintenance job
func NewCachePruneJob(cache pruner, log zerolog.Logger) *CachePruneJob {
	return &CachePruneJob{cache: cache, log: log.With().Str("job", "cache_prune").Logger()}
}

// Name implements Job
func (j *CachePruneJob) Name() string { return "cache_prune" }

// Run implements Job
func (j *CachePruneJob) Run() error {
	removed, err := j.cache.PruneExpired()
	if err != nil {
		return err
	}
	if removed > 0 {
		j.log.Info().Int64("removed", removed).Msg("Pruned expired price series")
	}
	return nil
}

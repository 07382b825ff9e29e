package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/helmsman/internal/domain"
)

type stubRunner struct {
	report domain.CycleReport
	err    error
	runs   int
}

func (r *stubRunner) RunCycle(context.Context) (domain.CycleReport, error) {
	r.runs++
	return r.report, r.err
}

type stubPruner struct {
	removed int64
	err     error
}

func (p stubPruner) PruneExpired() (int64, error) { return p.removed, p.err }

func TestCycleJob(t *testing.T) {
	runner := &stubRunner{report: domain.CycleReport{Status: domain.CycleCompleted}}
	job := NewCycleJob(runner, zerolog.Nop())

	assert.Equal(t, "trading_cycle", job.Name())
	require.NoError(t, job.Run())
	assert.Equal(t, 1, runner.runs)
}

func TestCycleJob_PropagatesError(t *testing.T) {
	runner := &stubRunner{err: errors.New("snapshot unavailable")}
	job := NewCycleJob(runner, zerolog.Nop())

	assert.Error(t, job.Run())
}

func TestCachePruneJob(t *testing.T) {
	job := NewCachePruneJob(stubPruner{removed: 3}, zerolog.Nop())

	assert.Equal(t, "cache_prune", job.Name())
	assert.NoError(t, job.Run())

	failing := NewCachePruneJob(stubPruner{err: errors.New("db locked")}, zerolog.Nop())
	assert.Error(t, failing.Run())
}

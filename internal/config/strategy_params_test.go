package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrategyParams_UpdatesProduceNewVersions(t *testing.T) {
	base := DefaultStrategyParams()
	assert.Equal(t, 1, base.Version)

	tightened := base.WithBrackets(0.02, 0.06)
	assert.Equal(t, 2, tightened.Version)
	assert.Equal(t, 0.02, tightened.StopLossPct)

	// The original value is untouched
	assert.Equal(t, 1, base.Version)
	assert.Equal(t, 0.03, base.StopLossPct)

	narrowed := tightened.WithRSIWindow(50, 70)
	assert.Equal(t, 3, narrowed.Version)
	assert.Equal(t, 50.0, narrowed.RSILower)
	assert.Equal(t, 45.0, tightened.RSILower)
}

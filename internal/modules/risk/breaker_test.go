package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldHaltTrading(t *testing.T) {
	limits := DefaultLimits()

	tests := []struct {
		name           string
		dailyPnL       float64
		portfolioValue float64
		halt           bool
	}{
		{"exactly at 3 percent loss", -300, 10000, true},
		{"just under the limit", -299.99, 10000, false},
		{"beyond the limit", -500, 10000, true},
		{"profitable day", 250, 10000, false},
		{"flat day", 0, 10000, false},
		{"zero portfolio value", -300, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.halt, ShouldHaltTrading(tt.dailyPnL, tt.portfolioValue, limits))
		})
	}
}

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 { return &v }

func TestValidateSignal(t *testing.T) {
	tests := []struct {
		name    string
		signal  Signal
		wantErr bool
	}{
		{
			name:    "valid momentum signal",
			signal:  NewMomentumSignal("AAPL", 100, 97, 108, 0.75, "breakout"),
			wantErr: false,
		},
		{
			name: "zero entry price rejected",
			signal: Signal{
				Ticker: "AAPL", Action: ActionBuy, Kind: SignalMomentum,
				EntryPrice: 0, Confidence: 0.5,
			},
			wantErr: true,
		},
		{
			name: "negative entry price rejected",
			signal: Signal{
				Ticker: "AAPL", Action: ActionBuy, Kind: SignalMomentum,
				EntryPrice: -10, Confidence: 0.5,
			},
			wantErr: true,
		},
		{
			name: "stop loss at entry rejected",
			signal: Signal{
				Ticker: "MSFT", Action: ActionBuy, Kind: SignalMomentum,
				EntryPrice: 100, StopLoss: fptr(100), Confidence: 0.5,
			},
			wantErr: true,
		},
		{
			name: "stop loss above entry rejected",
			signal: Signal{
				Ticker: "MSFT", Action: ActionBuy, Kind: SignalMomentum,
				EntryPrice: 100, StopLoss: fptr(105), Confidence: 0.5,
			},
			wantErr: true,
		},
		{
			name: "take profit below entry rejected",
			signal: Signal{
				Ticker: "NVDA", Action: ActionBuy, Kind: SignalMomentum,
				EntryPrice: 100, TakeProfit: fptr(95), Confidence: 0.5,
			},
			wantErr: true,
		},
		{
			name: "take profit at entry rejected",
			signal: Signal{
				Ticker: "NVDA", Action: ActionBuy, Kind: SignalMomentum,
				EntryPrice: 100, TakeProfit: fptr(100), Confidence: 0.5,
			},
			wantErr: true,
		},
		{
			name: "confidence above one rejected",
			signal: Signal{
				Ticker: "AMD", Action: ActionBuy, Kind: SignalMomentum,
				EntryPrice: 100, Confidence: 1.5,
			},
			wantErr: true,
		},
		{
			name: "empty ticker rejected",
			signal: Signal{
				Ticker: "", Action: ActionBuy, Kind: SignalMomentum,
				EntryPrice: 100, Confidence: 0.5,
			},
			wantErr: true,
		},
		{
			name: "rebalance signal without target rejected",
			signal: Signal{
				Ticker: "VTI", Action: ActionBuy, Kind: SignalRebalance,
				EntryPrice: 250, Confidence: 1.0,
			},
			wantErr: true,
		},
		{
			name:    "valid rebalance signal",
			signal:  NewRebalanceSignal("VTI", 250, 1500, 1200),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSignal(tt.signal)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewRebalanceSignal_ActionFollowsDrift(t *testing.T) {
	buy := NewRebalanceSignal("VTI", 250, 1500, 1200)
	assert.Equal(t, ActionBuy, buy.Action)

	sell := NewRebalanceSignal("GLD", 180, 700, 900)
	assert.Equal(t, ActionSell, sell.Action)
	require.NotNil(t, sell.TargetValue)
	assert.Equal(t, 700.0, *sell.TargetValue)
}

func TestSignal_BracketPercentages(t *testing.T) {
	s := NewMomentumSignal("AAPL", 100, 97, 108, 0.75, "")
	assert.InDelta(t, 0.03, s.StopLossPct(), 1e-9)
	assert.InDelta(t, 0.08, s.TakeProfitPct(), 1e-9)

	bare := Signal{Ticker: "AAPL", EntryPrice: 100}
	assert.Zero(t, bare.StopLossPct())
	assert.Zero(t, bare.TakeProfitPct())
}

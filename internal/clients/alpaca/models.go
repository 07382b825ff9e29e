package alpaca

import (
	"fmt"
	"strconv"
	"time"
)

// numeric unwraps Alpaca's string-encoded decimal fields
type numeric string

func (n numeric) Float64() (float64, error) {
	if n == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric field %q: %w", string(n), err)
	}
	return v, nil
}

// accountResponse mirrors GET /v2/account
type accountResponse struct {
	Cash           numeric `json:"cash"`
	PortfolioValue numeric `json:"portfolio_value"`
	BuyingPower    numeric `json:"buying_power"`
	Equity         numeric `json:"equity"`
	LastEquity     numeric `json:"last_equity"`
}

// positionResponse mirrors one entry of GET /v2/positions
type positionResponse struct {
	Symbol         string  `json:"symbol"`
	Qty            numeric `json:"qty"`
	AvgEntryPrice  numeric `json:"avg_entry_price"`
	CurrentPrice   numeric `json:"current_price"`
	MarketValue    numeric `json:"market_value"`
	UnrealizedPL   numeric `json:"unrealized_pl"`
	UnrealizedPLPC numeric `json:"unrealized_plpc"`
}

// orderRequest mirrors POST /v2/orders
type orderRequest struct {
	Symbol        string      `json:"symbol"`
	Qty           string      `json:"qty"`
	Side          string      `json:"side"`
	Type          string      `json:"type"`
	TimeInForce   string      `json:"time_in_force"`
	ClientOrderID string      `json:"client_order_id"`
	OrderClass    string      `json:"order_class,omitempty"`
	StopLoss      *stopLoss   `json:"stop_loss,omitempty"`
	TakeProfit    *takeProfit `json:"take_profit,omitempty"`
}

type stopLoss struct {
	StopPrice string `json:"stop_price"`
}

type takeProfit struct {
	LimitPrice string `json:"limit_price"`
}

// orderResponse mirrors the order creation reply
type orderResponse struct {
	ID string `json:"id"`
}

// clockResponse mirrors GET /v2/clock
type clockResponse struct {
	IsOpen    bool      `json:"is_open"`
	NextOpen  time.Time `json:"next_open"`
	NextClose time.Time `json:"next_close"`
}

// latestTradeResponse mirrors GET /v2/stocks/{symbol}/trades/latest
type latestTradeResponse struct {
	Trade struct {
		Price float64 `json:"p"`
	} `json:"trade"`
}

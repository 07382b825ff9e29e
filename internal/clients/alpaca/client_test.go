package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/helmsman/internal/domain"
	"github.com/quantfold/helmsman/pkg/logger"
)

func newTestClient(serverURL string) *Client {
	return NewClient(Config{
		BaseURL:   serverURL,
		APIKey:    "test-key",
		APISecret: "test-secret",
	}, logger.New(logger.Config{Level: "error"}))
}

func TestClient_GetAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/account", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("APCA-API-KEY-ID"))
		fmt.Fprint(w, `{"cash":"2500.50","portfolio_value":"10000","buying_power":"5001","equity":"10000","last_equity":"10150"}`)
	}))
	defer server.Close()

	portfolio, err := newTestClient(server.URL).GetAccount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2500.50, portfolio.Cash)
	assert.Equal(t, 10000.0, portfolio.PortfolioValue)
	assert.Equal(t, 5001.0, portfolio.BuyingPower)
	assert.Equal(t, -150.0, portfolio.DailyPnL())
}

func TestClient_GetPositions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/positions", r.URL.Path)
		fmt.Fprint(w, `[{"symbol":"AAPL","qty":"10","avg_entry_price":"180","current_price":"190","market_value":"1900","unrealized_pl":"100","unrealized_plpc":"0.0556"}]`)
	}))
	defer server.Close()

	positions, err := newTestClient(server.URL).GetPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "AAPL", positions[0].Symbol)
	assert.Equal(t, 10.0, positions[0].Quantity)
	assert.Equal(t, 1900.0, positions[0].MarketValue)
}

func TestClient_SubmitOrder_Bracket(t *testing.T) {
	var received orderRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v2/orders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		fmt.Fprint(w, `{"id":"order-123"}`)
	}))
	defer server.Close()

	stop, target := 97.0, 108.0
	orderID, err := newTestClient(server.URL).SubmitOrder(context.Background(), domain.OrderRequest{
		Symbol:     "AAPL",
		Qty:        5,
		Side:       domain.ActionBuy,
		StopLoss:   &stop,
		TakeProfit: &target,
	})
	require.NoError(t, err)
	assert.Equal(t, "order-123", orderID)

	assert.Equal(t, "AAPL", received.Symbol)
	assert.Equal(t, "5", received.Qty)
	assert.Equal(t, "buy", received.Side)
	assert.Equal(t, "bracket", received.OrderClass)
	require.NotNil(t, received.StopLoss)
	assert.Equal(t, "97.00", received.StopLoss.StopPrice)
	require.NotNil(t, received.TakeProfit)
	assert.Equal(t, "108.00", received.TakeProfit.LimitPrice)
	assert.NotEmpty(t, received.ClientOrderID)
}

func TestClient_SubmitOrder_PlainMarket(t *testing.T) {
	var received orderRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		fmt.Fprint(w, `{"id":"order-456"}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).SubmitOrder(context.Background(), domain.OrderRequest{
		Symbol: "VTI",
		Qty:    2,
		Side:   domain.ActionSell,
	})
	require.NoError(t, err)
	assert.Equal(t, "sell", received.Side)
	assert.Empty(t, received.OrderClass)
	assert.Nil(t, received.StopLoss)
}

func TestClient_SubmitOrder_BrokerRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"insufficient buying power"}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).SubmitOrder(context.Background(), domain.OrderRequest{
		Symbol: "AAPL", Qty: 1000, Side: domain.ActionBuy,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient buying power")
}

func TestClient_GetMarketClock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/clock", r.URL.Path)
		fmt.Fprint(w, `{"is_open":false,"next_open":"2025-01-06T14:30:00Z","next_close":"2025-01-06T21:00:00Z"}`)
	}))
	defer server.Close()

	clock, err := newTestClient(server.URL).GetMarketClock(context.Background())
	require.NoError(t, err)
	assert.False(t, clock.IsOpen)
	assert.Equal(t, 2025, clock.NextOpen.Year())
}

func TestClient_GetLatestQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/stocks/AAPL/trades/latest", r.URL.Path)
		fmt.Fprint(w, `{"trade":{"p":189.94}}`)
	}))
	defer server.Close()

	price, err := newTestClient(server.URL).GetLatestQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 189.94, price)
}

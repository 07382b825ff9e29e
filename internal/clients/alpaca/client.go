// Package alpaca implements domain.BrokerClient against the Alpaca trading
// API. The broker is the system of record for account state and positions;
// this client only reads snapshots and submits orders.
package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/quantfold/helmsman/internal/domain"
)

// Client is an Alpaca REST client. Implements domain.BrokerClient.
type Client struct {
	client      *http.Client
	baseURL     string // Trading API (paper or live)
	dataBaseURL string // Market data API
	apiKey      string
	apiSecret   string
	limiter     *rate.Limiter
	log         zerolog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL     string
	DataBaseURL string // Defaults to the trading base URL when empty (tests)
	APIKey      string
	APISecret   string
}

// NewClient creates a new Alpaca client
func NewClient(cfg Config, log zerolog.Logger) *Client {
	dataURL := cfg.DataBaseURL
	if dataURL == "" {
		dataURL = cfg.BaseURL
	}
	return &Client{
		client:      &http.Client{Timeout: 30 * time.Second},
		baseURL:     cfg.BaseURL,
		dataBaseURL: dataURL,
		apiKey:      cfg.APIKey,
		apiSecret:   cfg.APISecret,
		// Alpaca allows 200 requests/min; stay under it and block rather
		// than drop when the window is exhausted
		limiter: rate.NewLimiter(rate.Every(350*time.Millisecond), 10),
		log:     log.With().Str("client", "alpaca").Logger(),
	}
}

func (c *Client) do(ctx context.Context, method, url string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait aborted: %w", err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("APCA-API-KEY-ID", c.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", c.apiSecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s returned status %d: %s", method, url, resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response from %s: %w", url, err)
		}
	}
	return nil
}

// GetAccount returns the current account snapshot
func (c *Client) GetAccount(ctx context.Context) (domain.Portfolio, error) {
	var resp accountResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/v2/account", nil, &resp); err != nil {
		return domain.Portfolio{}, fmt.Errorf("failed to get account: %w", err)
	}

	var portfolio domain.Portfolio
	var err error
	if portfolio.Cash, err = resp.Cash.Float64(); err != nil {
		return domain.Portfolio{}, err
	}
	if portfolio.PortfolioValue, err = resp.PortfolioValue.Float64(); err != nil {
		return domain.Portfolio{}, err
	}
	if portfolio.BuyingPower, err = resp.BuyingPower.Float64(); err != nil {
		return domain.Portfolio{}, err
	}
	if portfolio.Equity, err = resp.Equity.Float64(); err != nil {
		return domain.Portfolio{}, err
	}
	if portfolio.LastEquity, err = resp.LastEquity.Float64(); err != nil {
		return domain.Portfolio{}, err
	}
	return portfolio, nil
}

// GetPositions returns all open positions
func (c *Client) GetPositions(ctx context.Context) ([]domain.Position, error) {
	var resp []positionResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/v2/positions", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}

	positions := make([]domain.Position, 0, len(resp))
	for _, p := range resp {
		pos := domain.Position{Symbol: p.Symbol}
		var err error
		if pos.Quantity, err = p.Qty.Float64(); err != nil {
			return nil, fmt.Errorf("position %s: %w", p.Symbol, err)
		}
		if pos.AvgEntryPrice, err = p.AvgEntryPrice.Float64(); err != nil {
			return nil, fmt.Errorf("position %s: %w", p.Symbol, err)
		}
		if pos.CurrentPrice, err = p.CurrentPrice.Float64(); err != nil {
			return nil, fmt.Errorf("position %s: %w", p.Symbol, err)
		}
		if pos.MarketValue, err = p.MarketValue.Float64(); err != nil {
			return nil, fmt.Errorf("position %s: %w", p.Symbol, err)
		}
		if pos.UnrealizedPL, err = p.UnrealizedPL.Float64(); err != nil {
			return nil, fmt.Errorf("position %s: %w", p.Symbol, err)
		}
		if pos.UnrealizedPLPct, err = p.UnrealizedPLPC.Float64(); err != nil {
			return nil, fmt.Errorf("position %s: %w", p.Symbol, err)
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

// SubmitOrder places a market order, attaching bracket legs when stop/target
// prices are present. Returns the broker order ID.
func (c *Client) SubmitOrder(ctx context.Context, req domain.OrderRequest) (string, error) {
	order := orderRequest{
		Symbol:        req.Symbol,
		Qty:           strconv.FormatFloat(req.Qty, 'f', -1, 64),
		Side:          sideFor(req.Side),
		Type:          "market",
		TimeInForce:   "day",
		ClientOrderID: uuid.New().String(),
	}

	if req.StopLoss != nil && req.TakeProfit != nil {
		order.OrderClass = "bracket"
		order.StopLoss = &stopLoss{StopPrice: formatPrice(*req.StopLoss)}
		order.TakeProfit = &takeProfit{LimitPrice: formatPrice(*req.TakeProfit)}
	}

	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/v2/orders", order, &resp); err != nil {
		return "", fmt.Errorf("failed to submit %s order for %s: %w", order.Side, req.Symbol, err)
	}

	c.log.Info().
		Str("symbol", req.Symbol).
		Str("side", order.Side).
		Str("qty", order.Qty).
		Str("order_id", resp.ID).
		Msg("Order submitted")

	return resp.ID, nil
}

// ClosePosition liquidates the full position for a symbol
func (c *Client) ClosePosition(ctx context.Context, symbol string) error {
	if err := c.do(ctx, http.MethodDelete, c.baseURL+"/v2/positions/"+symbol, nil, nil); err != nil {
		return fmt.Errorf("failed to close position %s: %w", symbol, err)
	}
	c.log.Info().Str("symbol", symbol).Msg("Position closed")
	return nil
}

// GetLatestQuote returns the latest trade price for a symbol
func (c *Client) GetLatestQuote(ctx context.Context, symbol string) (float64, error) {
	var resp latestTradeResponse
	url := c.dataBaseURL + "/v2/stocks/" + symbol + "/trades/latest"
	if err := c.do(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return 0, fmt.Errorf("failed to get latest quote for %s: %w", symbol, err)
	}
	if resp.Trade.Price <= 0 {
		return 0, fmt.Errorf("latest quote for %s has no price", symbol)
	}
	return resp.Trade.Price, nil
}

// GetMarketClock returns the current market session state
func (c *Client) GetMarketClock(ctx context.Context) (domain.MarketClock, error) {
	var resp clockResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/v2/clock", nil, &resp); err != nil {
		return domain.MarketClock{}, fmt.Errorf("failed to get market clock: %w", err)
	}
	return domain.MarketClock{
		IsOpen:    resp.IsOpen,
		NextOpen:  resp.NextOpen,
		NextClose: resp.NextClose,
	}, nil
}

func sideFor(action domain.Action) string {
	if action == domain.ActionSell {
		return "sell"
	}
	return "buy"
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64)
}

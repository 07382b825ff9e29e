// Package yahoo provides the price-history client used by the correlation
// monitor and the momentum scanner. Calls pass through a sliding-window rate
// limiter and a circuit breaker; results are cached with a one-day TTL so a
// trading day never refetches the same series.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/quantfold/helmsman/internal/domain"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// SeriesCache is the TTL cache consulted before any network call.
// Satisfied by pricecache.Repository; nil disables caching.
type SeriesCache interface {
	GetIfFresh(ticker string) ([]domain.Candle, error)
	Store(ticker string, candles []domain.Candle, ttl time.Duration) error
}

// Client fetches daily close series from the Yahoo Finance chart API.
// Implements domain.PriceHistoryProvider.
type Client struct {
	client   *http.Client
	baseURL  string
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	cache    SeriesCache
	cacheTTL time.Duration
	log      zerolog.Logger
}

// Option configures the client
type Option func(*Client)

// WithBaseURL overrides the API endpoint (used by tests)
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithCache attaches a TTL series cache
func WithCache(cache SeriesCache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

// WithRateLimit replaces the default limiter (2 calls/sec, burst 5)
func WithRateLimit(limiter *rate.Limiter) Option {
	return func(c *Client) { c.limiter = limiter }
}

// NewClient creates a new price-history client
func NewClient(log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: defaultBaseURL,
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 5),
		log:     log.With().Str("client", "yahoo").Logger(),
	}

	// Trip after 3 consecutive failures, probe again after 2 minutes. While
	// open, callers get ErrDataUnavailable immediately instead of burning the
	// request timeout on a provider that is down.
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "yahoo-history",
		MaxRequests: 1,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Price provider breaker state changed")
		},
	})

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// chartResponse mirrors the Yahoo v8 chart payload, reduced to what we read
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// DailyCloses returns trailing daily closes for a ticker, newest last.
// Provider outages, breaker-open states and empty payloads are reported as
// errors wrapping domain.ErrDataUnavailable so callers can fail open.
func (c *Client) DailyCloses(ctx context.Context, ticker string, lookbackDays int) ([]domain.Candle, error) {
	if c.cache != nil {
		cached, err := c.cache.GetIfFresh(ticker)
		if err != nil {
			// Cache trouble is never fatal for a read path
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("Price cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, ticker, lookbackDays)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("%w: provider breaker open for %s", domain.ErrDataUnavailable, ticker)
		}
		return nil, err
	}

	candles := result.([]domain.Candle)
	if c.cache != nil {
		if err := c.cache.Store(ticker, candles, c.cacheTTL); err != nil {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("Price cache write failed")
		}
	}
	return candles, nil
}

func (c *Client) fetch(ctx context.Context, ticker string, lookbackDays int) ([]domain.Candle, error) {
	// Block until the sliding window frees capacity; never drop the call
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait aborted for %s: %w", ticker, err)
	}

	end := time.Now()
	start := end.AddDate(0, 0, -lookbackDays)
	url := fmt.Sprintf(
		"%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d",
		c.baseURL, ticker, start.Unix(), end.Unix(),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build chart request for %s: %w", ticker, err)
	}
	req.Header.Set("User-Agent", "helmsman/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: chart request for %s failed: %v", domain.ErrDataUnavailable, ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: chart request for %s returned status %d", domain.ErrDataUnavailable, ticker, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read chart response for %s: %v", domain.ErrDataUnavailable, ticker, err)
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse chart response for %s: %w", ticker, err)
	}
	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("%w: chart API error for %s: %s", domain.ErrDataUnavailable, ticker, parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 || len(parsed.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: empty chart payload for %s", domain.ErrDataUnavailable, ticker)
	}

	res := parsed.Chart.Result[0]
	closes := res.Indicators.Quote[0].Close
	volumes := res.Indicators.Quote[0].Volume

	candles := make([]domain.Candle, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		// Yahoo pads holidays with null closes
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		day := time.Unix(ts, 0).UTC().Truncate(24 * time.Hour)
		candle := domain.Candle{Date: day, Close: *closes[i]}
		if i < len(volumes) && volumes[i] != nil {
			candle.Volume = *volumes[i]
		}
		candles = append(candles, candle)
	}

	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: no usable closes for %s", domain.ErrDataUnavailable, ticker)
	}

	c.log.Debug().
		Str("ticker", ticker).
		Int("candles", len(candles)).
		Msg("Fetched price history")

	return candles, nil
}

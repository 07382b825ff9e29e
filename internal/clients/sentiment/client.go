// Package sentiment consumes an external news-sentiment scoring service as a
// signal producer. Sentiment scoring itself (LLM prognosis, trend detection)
// lives in that service; this client only translates its proposals into
// domain signals.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfold/helmsman/internal/domain"
)

// Client fetches news-driven trade proposals from the sentiment service.
// Implements domain.SignalProducer.
type Client struct {
	client  *http.Client
	baseURL string
	log     zerolog.Logger
}

// NewClient creates a new sentiment producer client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		client:  &http.Client{Timeout: 60 * time.Second},
		baseURL: baseURL,
		log:     log.With().Str("client", "sentiment").Logger(),
	}
}

// Name identifies the producer in logs and reports
func (c *Client) Name() string { return "news_sentiment" }

// proposal mirrors one entry of the sentiment service's scan response
type proposal struct {
	Ticker     string   `json:"ticker"`
	EntryPrice float64  `json:"entry_price"`
	StopLoss   *float64 `json:"stop_loss"`
	TakeProfit *float64 `json:"take_profit"`
	Confidence float64  `json:"confidence"`
	Reason     string   `json:"reason"`
}

// Scan returns this cycle's news-driven proposals. Invalid proposals are
// dropped with a warning; they must not poison the rest of the batch.
func (c *Client) Scan(ctx context.Context) ([]domain.Signal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/signals", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build sentiment scan request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sentiment scan request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read sentiment scan response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sentiment service returned status %d: %s", resp.StatusCode, string(body))
	}

	var proposals []proposal
	if err := json.Unmarshal(body, &proposals); err != nil {
		return nil, fmt.Errorf("failed to parse sentiment scan response: %w", err)
	}

	signals := make([]domain.Signal, 0, len(proposals))
	for _, p := range proposals {
		stop, target := 0.0, 0.0
		if p.StopLoss != nil {
			stop = *p.StopLoss
		} else {
			stop = p.EntryPrice * 0.97
		}
		if p.TakeProfit != nil {
			target = *p.TakeProfit
		} else {
			target = p.EntryPrice * 1.08
		}

		signal := domain.NewSentimentSignal(p.Ticker, p.EntryPrice, stop, target, p.Confidence, p.Reason)
		if err := domain.ValidateSignal(signal); err != nil {
			c.log.Warn().Err(err).Str("ticker", p.Ticker).Msg("Dropping invalid sentiment proposal")
			continue
		}
		signals = append(signals, signal)
	}

	c.log.Info().Int("signals", len(signals)).Msg("Sentiment scan complete")
	return signals, nil
}

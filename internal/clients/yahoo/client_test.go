package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/helmsman/internal/domain"
	"github.com/quantfold/helmsman/pkg/logger"
)

func testLog() zerolog.Logger {
	return logger.New(logger.Config{Level: "error"})
}

func chartBody(timestamps []int64, closes []string) string {
	ts := ""
	for i, t := range timestamps {
		if i > 0 {
			ts += ","
		}
		ts += fmt.Sprintf("%d", t)
	}
	cl := ""
	for i, c := range closes {
		if i > 0 {
			cl += ","
		}
		cl += c
	}
	return fmt.Sprintf(`{"chart":{"result":[{"timestamp":[%s],"indicators":{"quote":[{"close":[%s]}]}}],"error":null}}`, ts, cl)
}

func TestClient_DailyCloses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/v8/finance/chart/AAPL")
		fmt.Fprint(w, chartBody([]int64{1735800000, 1735886400, 1735972800}, []string{"100.5", "null", "102.25"}))
	}))
	defer server.Close()

	client := NewClient(testLog(), WithBaseURL(server.URL))

	candles, err := client.DailyCloses(context.Background(), "AAPL", 90)
	require.NoError(t, err)
	// Null close (holiday padding) is dropped
	require.Len(t, candles, 2)
	assert.Equal(t, 100.5, candles[0].Close)
	assert.Equal(t, 102.25, candles[1].Close)
}

func TestClient_ServerErrorIsDataUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(testLog(), WithBaseURL(server.URL))

	_, err := client.DailyCloses(context.Background(), "AAPL", 90)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDataUnavailable))
}

func TestClient_EmptyPayloadIsDataUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[],"error":null}}`)
	}))
	defer server.Close()

	client := NewClient(testLog(), WithBaseURL(server.URL))

	_, err := client.DailyCloses(context.Background(), "GONE", 90)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDataUnavailable))
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls int
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(testLog(), WithBaseURL(server.URL))

	for i := 0; i < 5; i++ {
		_, err := client.DailyCloses(context.Background(), "AAPL", 90)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrDataUnavailable))
	}

	// Breaker tripped after 3 consecutive failures, so later calls never
	// reached the server
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, calls)
}

type mapCache struct {
	entries map[string][]domain.Candle
	stores  int
}

func (m *mapCache) GetIfFresh(ticker string) ([]domain.Candle, error) {
	return m.entries[ticker], nil
}

func (m *mapCache) Store(ticker string, candles []domain.Candle, _ time.Duration) error {
	m.entries[ticker] = candles
	m.stores++
	return nil
}

func TestClient_CacheAvoidsRefetch(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, chartBody([]int64{1735800000}, []string{"250.0"}))
	}))
	defer server.Close()

	cache := &mapCache{entries: make(map[string][]domain.Candle)}
	client := NewClient(testLog(), WithBaseURL(server.URL), WithCache(cache, time.Hour))

	first, err := client.DailyCloses(context.Background(), "VTI", 90)
	require.NoError(t, err)
	second, err := client.DailyCloses(context.Background(), "VTI", 90)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, cache.stores)
	assert.Equal(t, first, second)
}

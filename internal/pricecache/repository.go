// Package pricecache provides persistent caching for fetched price series.
// Series are stored as msgpack blobs with expiration timestamps so repeated
// correlation checks within a trading day never refetch from the provider.
package pricecache

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/quantfold/helmsman/internal/domain"
)

// Schema creates the price_series table. Applied on startup; idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS price_series (
	ticker     TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	stored_at  INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_price_series_expires ON price_series(expires_at);
`

// Repository provides cache operations for price series
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new price cache repository and ensures the schema
func NewRepository(db *sql.DB) (*Repository, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("failed to initialize price cache schema: %w", err)
	}
	return &Repository{db: db}, nil
}

// cachedSeries is the msgpack storage shape. Dates are stored as unix days to
// keep blobs compact.
type cachedSeries struct {
	Dates   []int64   `msgpack:"dates"`
	Closes  []float64 `msgpack:"closes"`
	Volumes []float64 `msgpack:"volumes"`
}

// Store saves a series with expiration = now + ttl, replacing any prior entry
func (r *Repository) Store(ticker string, candles []domain.Candle, ttl time.Duration) error {
	series := cachedSeries{
		Dates:   make([]int64, len(candles)),
		Closes:  make([]float64, len(candles)),
		Volumes: make([]float64, len(candles)),
	}
	for i, c := range candles {
		series.Dates[i] = c.Date.Unix()
		series.Closes[i] = c.Close
		series.Volumes[i] = c.Volume
	}

	blob, err := msgpack.Marshal(series)
	if err != nil {
		return fmt.Errorf("failed to encode series for %s: %w", ticker, err)
	}

	now := time.Now()
	_, err = r.db.Exec(
		"INSERT OR REPLACE INTO price_series (ticker, data, stored_at, expires_at) VALUES (?, ?, ?, ?)",
		ticker, blob, now.Unix(), now.Add(ttl).Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store series for %s: %w", ticker, err)
	}
	return nil
}

// GetIfFresh returns the cached series if it has not expired.
// Returns nil, nil on a cache miss or an expired entry.
func (r *Repository) GetIfFresh(ticker string) ([]domain.Candle, error) {
	var blob []byte
	err := r.db.QueryRow(
		"SELECT data FROM price_series WHERE ticker = ? AND expires_at > ?",
		ticker, time.Now().Unix(),
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached series for %s: %w", ticker, err)
	}

	var series cachedSeries
	if err := msgpack.Unmarshal(blob, &series); err != nil {
		return nil, fmt.Errorf("failed to decode cached series for %s: %w", ticker, err)
	}

	candles := make([]domain.Candle, len(series.Closes))
	for i := range series.Closes {
		candles[i] = domain.Candle{
			Date:  time.Unix(series.Dates[i], 0).UTC(),
			Close: series.Closes[i],
		}
		// Entries written before volume tracking decode with a short slice
		if i < len(series.Volumes) {
			candles[i].Volume = series.Volumes[i]
		}
	}
	return candles, nil
}

// PruneExpired removes expired entries and returns the number deleted
func (r *Repository) PruneExpired() (int64, error) {
	res, err := r.db.Exec("DELETE FROM price_series WHERE expires_at <= ?", time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune price cache: %w", err)
	}
	return res.RowsAffected()
}

// Package binance fetches fixed-interval klines used for price alignment in
// the backtest engine and for market context in the prediction workflows.
package binance

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"NewsPulse/internal/domain/models"
	"NewsPulse/pkg/cache"
	httpclient "NewsPulse/pkg/http"
	"NewsPulse/pkg/logger"
)

// Config holds the market data endpoint settings.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Client implements repository.PriceSeries backed by the Binance klines API
// with a short-TTL cache in front of it.
type Client struct {
	cfg    Config
	http   *httpclient.Client
	cache  cache.Service
	logger *logger.Logger
}

// New creates a market data client. cache may be nil to disable caching.
func New(cfg Config, cacheSvc cache.Service, lgr *logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.binance.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	return &Client{
		cfg:    cfg,
		http:   httpclient.NewClient(httpclient.WithTimeout(cfg.Timeout)),
		cache:  cacheSvc,
		logger: lgr,
	}
}

// Klines returns up to limit bars for symbol at the given interval, oldest
// first, matching the upstream ordering.
func (c *Client) Klines(ctx context.Context, symbol, interval string, limit int) ([]*models.PriceBar, error) {
	cacheKey := fmt.Sprintf("klines:%s:%s:%d", symbol, interval, limit)
	if c.cache != nil {
		var cached []*models.PriceBar
		if err := c.cache.Get(ctx, cacheKey, &cached); err == nil && len(cached) > 0 {
			return cached, nil
		}
	}

	var rows [][]interface{}
	err := c.http.SendAndParse(ctx, &httpclient.RequestOptions{
		Method: httpclient.MethodGet,
		URL:    c.cfg.BaseURL + "/api/v3/klines",
		QueryParams: map[string][]string{
			"symbol":   {symbol},
			"interval": {interval},
			"limit":    {strconv.Itoa(limit)},
		},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("klines %s: %w", symbol, err)
	}

	bars := make([]*models.PriceBar, 0, len(rows))
	for _, row := range rows {
		bar, ok := parseRow(row)
		if !ok {
			continue
		}
		bars = append(bars, bar)
	}

	if c.cache != nil && len(bars) > 0 {
		if err := c.cache.Set(ctx, cacheKey, bars, c.cfg.CacheTTL); err != nil {
			c.logger.Warn("klines cache set failed", logger.Error(err))
		}
	}
	return bars, nil
}

// parseRow decodes one upstream kline row:
// [openTimeMs, open, high, low, close, volume, ...] with prices as strings.
func parseRow(row []interface{}) (*models.PriceBar, bool) {
	if len(row) < 6 {
		return nil, false
	}
	openTimeMs, ok := row[0].(float64)
	if !ok {
		return nil, false
	}
	open, ok1 := parsePrice(row[1])
	closePrice, ok2 := parsePrice(row[4])
	volume, ok3 := parsePrice(row[5])
	if !ok1 || !ok2 || !ok3 {
		return nil, false
	}
	return &models.PriceBar{
		BucketStart: int64(openTimeMs) / 1000,
		Open:        open,
		Close:       closePrice,
		Volume:      volume,
	}, true
}

func parsePrice(v interface{}) (float64, bool) {
	switch p := v.(type) {
	case string:
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case float64:
		return p, true
	default:
		return 0, false
	}
}

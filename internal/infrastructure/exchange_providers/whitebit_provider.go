// internal/infrastructure/exchange_providers/whitebit_provider.go
package infrastructure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/LavaJover/keksswap-rate-service/internal/domain"
	"github.com/tidwall/gjson"
)

const (
	DefaultWhitebitBaseURL    = "https://whitebit.com"
	DefaultWhitebitTickerPath = "/api/v4/public/ticker"

	maxTickerBodySize = 1 << 20
)

type WhitebitConfig struct {
	BaseURL    string
	TickerPath string
	UserAgent  string
	Timeout    time.Duration
	// HealthMarket is probed by IsHealthy.
	HealthMarket string
}

type WhitebitProvider struct {
	client *http.Client
	cfg    WhitebitConfig
}

func NewWhitebitProvider(cfg WhitebitConfig) *WhitebitProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultWhitebitBaseURL
	}
	if cfg.TickerPath == "" {
		cfg.TickerPath = DefaultWhitebitTickerPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "keksswap-rate-service/1.0"
	}
	if cfg.HealthMarket == "" {
		cfg.HealthMarket = "USDT_UAH"
	}
	return &WhitebitProvider{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		cfg: cfg,
	}
}

func (w *WhitebitProvider) GetName() string {
	return "whitebit"
}

// GetTicker returns the last traded price of market, falling back to the best bid.
func (w *WhitebitProvider) GetTicker(ctx context.Context, market string) (float64, error) {
	endpoint := fmt.Sprintf("%s%s?market=%s",
		strings.TrimRight(w.cfg.BaseURL, "/"), w.cfg.TickerPath, url.QueryEscape(market))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", w.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to get ticker from WhiteBIT: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("whitebit API returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTickerBodySize))
	if err != nil {
		return 0, fmt.Errorf("failed to read response body: %w", err)
	}

	return parseTickerPrice(body, market)
}

// parseTickerPrice accepts the flat single-market ticker ({"last": ...}),
// the v1 envelope ({"result": {"last": ...}}) and the v4 all-markets map
// ({"TON_USDT": {"last_price": ...}}). Prices may be numbers or numeric strings.
// The first positive price wins; null, zero or non-numeric fields are skipped.
func parseTickerPrice(body []byte, market string) (float64, error) {
	if !gjson.ValidBytes(body) {
		return 0, fmt.Errorf("failed to parse WhiteBIT response: invalid JSON")
	}

	paths := []string{
		"last",
		"bid",
		"result.last",
		"result.bid",
		gjson.Escape(market) + ".last_price",
	}
	var firstErr error
	for _, path := range paths {
		value := gjson.GetBytes(body, path)
		if !value.Exists() {
			continue
		}
		price, err := tickerNumber(value)
		if err != nil {
			// an unusable last may still come with a usable bid
			if firstErr == nil {
				firstErr = fmt.Errorf("field %q: %w", path, err)
			}
			continue
		}
		return price, nil
	}
	if firstErr != nil {
		return 0, firstErr
	}
	return 0, fmt.Errorf("no last or bid price in WhiteBIT response for %s", market)
}

func tickerNumber(value gjson.Result) (float64, error) {
	switch value.Type {
	case gjson.Number:
	case gjson.String:
		if !gjson.Valid(value.Str) || gjson.Parse(value.Str).Type != gjson.Number {
			return 0, fmt.Errorf("%w: %q is not a number", domain.ErrInvalidPrice, value.Str)
		}
	default:
		return 0, fmt.Errorf("%w: unexpected %s value", domain.ErrInvalidPrice, value.Type)
	}
	price := value.Float()
	if price <= 0 {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidPrice, price)
	}
	return price, nil
}

func (w *WhitebitProvider) IsHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := w.GetTicker(ctx, w.cfg.HealthMarket)
	return err == nil
}

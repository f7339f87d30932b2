package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"binance-trading-bot/internal/position"
)

const (
	// FuturesBaseURL is the production Binance USDⓈ-M futures REST API.
	FuturesBaseURL = "https://fapi.binance.com"
	// FuturesTestnetURL is the testnet equivalent.
	FuturesTestnetURL = "https://testnet.binancefuture.com"

	maxRequestRetries = 3
	baseRetryDelay    = 500 * time.Millisecond
	maxRetryDelay     = 5 * time.Second
)

// Client is a signed REST client against Binance USDⓈ-M futures. It
// implements executor.OrderPlacer and the position/balance snapshot
// sources the poller needs.
type Client struct {
	log        zerolog.Logger
	apiKey     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a signed REST client. testnet selects the
// testnet base URL.
func NewClient(apiKey, secretKey string, testnet bool, logger zerolog.Logger) *Client {
	baseURL := FuturesBaseURL
	if testnet {
		baseURL = FuturesTestnetURL
	}
	return &Client{
		log:        logger.With().Str("component", "exchange-client").Logger(),
		apiKey:     strings.TrimSpace(apiKey),
		secretKey:  strings.TrimSpace(secretKey),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// PlaceMarketOrder places a market order to open or add to a position.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side position.Side, size float64) error {
	orderSide := "BUY"
	if side == position.Short {
		orderSide = "SELL"
	}
	params := map[string]string{
		"symbol":    symbol,
		"side":      orderSide,
		"type":      "MARKET",
		"quantity":  strconv.FormatFloat(size, 'f', -1, 64),
		"timestamp": strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	_, err := c.signedRequest(ctx, http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		return fmt.Errorf("exchange: place market order: %w", err)
	}
	return nil
}

// ClosePosition closes the entire open position on symbol at market,
// regardless of side, using Binance's closePosition flag.
func (c *Client) ClosePosition(ctx context.Context, symbol string) error {
	pos, err := c.PositionSnapshot(ctx, symbol)
	if err != nil {
		return fmt.Errorf("exchange: close position: %w", err)
	}
	size, side, err := position.ParseRestSnapshot(pos)
	if err != nil {
		return fmt.Errorf("exchange: close position: %w", err)
	}
	if side == position.Flat || size == 0 {
		return nil
	}

	orderSide := "SELL"
	if side == position.Short {
		orderSide = "BUY"
	}
	params := map[string]string{
		"symbol":        symbol,
		"side":          orderSide,
		"type":          "MARKET",
		"closePosition": "true",
		"timestamp":     strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	_, err = c.signedRequest(ctx, http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		return fmt.Errorf("exchange: close position: %w", err)
	}
	return nil
}

// PositionSnapshot fetches the current position for symbol.
func (c *Client) PositionSnapshot(ctx context.Context, symbol string) (position.RestSnapshot, error) {
	params := map[string]string{
		"symbol":    symbol,
		"timestamp": strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	body, err := c.signedRequest(ctx, http.MethodGet, "/fapi/v2/positionRisk", params)
	if err != nil {
		return position.RestSnapshot{}, fmt.Errorf("exchange: position snapshot: %w", err)
	}

	var rows []struct {
		Symbol           string `json:"symbol"`
		PositionAmt      string `json:"positionAmt"`
		EntryPrice       string `json:"entryPrice"`
		MarkPrice        string `json:"markPrice"`
		UnrealizedProfit string `json:"unRealizedProfit"`
		Leverage         string `json:"leverage"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return position.RestSnapshot{}, fmt.Errorf("exchange: parse position snapshot: %w", err)
	}
	if len(rows) == 0 {
		return position.RestSnapshot{}, fmt.Errorf("exchange: no position rows for %s", symbol)
	}

	row := rows[0]
	for _, r := range rows {
		if r.PositionAmt != "" && r.PositionAmt != "0" && r.PositionAmt != "0.0" {
			row = r
			break
		}
	}

	entry, _ := strconv.ParseFloat(row.EntryPrice, 64)
	mark, _ := strconv.ParseFloat(row.MarkPrice, 64)
	upnl, _ := strconv.ParseFloat(row.UnrealizedProfit, 64)
	lev, _ := strconv.ParseFloat(row.Leverage, 64)

	return position.RestSnapshot{
		Symbol:           row.Symbol,
		PositionAmt:      row.PositionAmt,
		EntryPrice:       entry,
		MarkPrice:        mark,
		UnrealizedProfit: upnl,
		Leverage:         lev,
	}, nil
}

// Balance fetches the USDT wallet balance from the futures account.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	params := map[string]string{
		"timestamp": strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	body, err := c.signedRequest(ctx, http.MethodGet, "/fapi/v2/account", params)
	if err != nil {
		return 0, fmt.Errorf("exchange: balance: %w", err)
	}

	var account struct {
		Assets []struct {
			Asset         string `json:"asset"`
			WalletBalance string `json:"walletBalance"`
		} `json:"assets"`
	}
	if err := json.Unmarshal(body, &account); err != nil {
		return 0, fmt.Errorf("exchange: parse balance: %w", err)
	}
	for _, asset := range account.Assets {
		if asset.Asset == "USDT" {
			bal, _ := strconv.ParseFloat(asset.WalletBalance, 64)
			return bal, nil
		}
	}
	return 0, nil
}

func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) signedRequest(ctx context.Context, method, endpoint string, params map[string]string) ([]byte, error) {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	query := values.Encode()
	signed := query + "&signature=" + c.sign(query)

	var lastErr error
	for attempt := 0; attempt <= maxRequestRetries; attempt++ {
		var req *http.Request
		var err error
		if method == http.MethodGet {
			req, err = http.NewRequestWithContext(ctx, method, c.baseURL+endpoint+"?"+signed, nil)
		} else {
			req, err = http.NewRequestWithContext(ctx, method, c.baseURL+endpoint+"?"+signed, nil)
		}
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-MBX-APIKEY", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxRequestRetries {
				delay := retryDelay(attempt)
				c.log.Warn().Err(err).Int("attempt", attempt+1).Dur("retry_in", delay).Str("endpoint", endpoint).Msg("exchange: request failed, retrying")
				if !sleepCtx(ctx, delay) {
					return nil, ctx.Err()
				}
				continue
			}
			return nil, err
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("%s", string(body))
			if isRetryableStatus(resp.StatusCode) && attempt < maxRequestRetries {
				delay := retryDelay(attempt)
				c.log.Warn().Int("status", resp.StatusCode).Str("endpoint", endpoint).Dur("retry_in", delay).Msg("exchange: retryable error")
				if !sleepCtx(ctx, delay) {
					return nil, ctx.Err()
				}
				continue
			}
			return nil, lastErr
		}

		return body, nil
	}
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status == 418 || status >= 500
}

func retryDelay(attempt int) time.Duration {
	delay := baseRetryDelay * time.Duration(1<<uint(attempt))
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
	return delay + jitter - delay/4
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"solana-trader/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout     = 15 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0

	// maxBatchTokens is the provider's per-request address limit.
	maxBatchTokens = 30
)

// DexScreenerClient reads token market data from the DexScreener HTTP API.
// Implements TrendSource and PriceSource.
type DexScreenerClient struct {
	baseURL     string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	now         func() time.Time
}

// DexScreenerOption configures DexScreenerClient.
type DexScreenerOption func(*DexScreenerClient)

// WithDexHTTPClient sets a custom http.Client.
func WithDexHTTPClient(client *http.Client) DexScreenerOption {
	return func(c *DexScreenerClient) {
		c.client = client
	}
}

// WithDexMaxRetries sets maximum retry attempts.
func WithDexMaxRetries(n int) DexScreenerOption {
	return func(c *DexScreenerClient) {
		c.maxRetries = n
	}
}

// WithDexRetryDelay sets the initial retry delay.
func WithDexRetryDelay(d time.Duration) DexScreenerOption {
	return func(c *DexScreenerClient) {
		c.retryDelay = d
	}
}

// NewDexScreenerClient creates a DexScreener client.
func NewDexScreenerClient(baseURL string, opts ...DexScreenerOption) *DexScreenerClient {
	c := &DexScreenerClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ TrendSource = (*DexScreenerClient)(nil)
var _ PriceSource = (*DexScreenerClient)(nil)

// Trending returns snapshots for the latest boosted tokens on Solana.
func (c *DexScreenerClient) Trending(ctx context.Context) ([]*domain.MarketSnapshot, error) {
	var boosts []struct {
		ChainID      string `json:"chainId"`
		TokenAddress string `json:"tokenAddress"`
	}
	if err := c.get(ctx, "boosts", c.baseURL+"/token-boosts/latest/v1", &boosts); err != nil {
		return nil, fmt.Errorf("fetch trending boosts: %w", err)
	}

	var addrs []string
	for _, b := range boosts {
		if b.ChainID == "solana" && b.TokenAddress != "" {
			addrs = append(addrs, b.TokenAddress)
		}
	}
	if len(addrs) == 0 {
		return nil, nil
	}
	if len(addrs) > maxBatchTokens {
		addrs = addrs[:maxBatchTokens]
	}

	return c.Snapshots(ctx, addrs)
}

// Snapshots returns current snapshots for the given tokens. Tokens with no
// pairs are omitted.
func (c *DexScreenerClient) Snapshots(ctx context.Context, tokenAddresses []string) ([]*domain.MarketSnapshot, error) {
	if len(tokenAddresses) == 0 {
		return nil, nil
	}
	if len(tokenAddresses) > maxBatchTokens {
		tokenAddresses = tokenAddresses[:maxBatchTokens]
	}

	url := c.baseURL + "/tokens/v1/solana/" + strings.Join(tokenAddresses, ",")
	var pairs []dexPair
	if err := c.get(ctx, "pairs", url, &pairs); err != nil {
		return nil, fmt.Errorf("fetch token pairs: %w", err)
	}

	observedAt := c.now().UnixMilli()
	seen := make(map[string]struct{}, len(pairs))
	var snapshots []*domain.MarketSnapshot

	// One snapshot per token: the provider lists the deepest pair first.
	for _, p := range pairs {
		addr := p.BaseToken.Address
		if addr == "" {
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		snapshots = append(snapshots, p.toSnapshot(observedAt))
	}
	return snapshots, nil
}

// Prices resolves current USD prices via pair snapshots.
func (c *DexScreenerClient) Prices(ctx context.Context, tokenAddresses []string) (map[string]float64, error) {
	snapshots, err := c.Snapshots(ctx, tokenAddresses)
	if err != nil {
		return nil, err
	}

	prices := make(map[string]float64, len(snapshots))
	for _, s := range snapshots {
		if s.PriceUSD > 0 {
			prices[s.TokenAddress] = s.PriceUSD
		}
	}
	return prices, nil
}

// get performs a GET with retries and exponential backoff.
func (c *DexScreenerClient) get(ctx context.Context, call, url string, result interface{}) (err error) {
	start := time.Now()
	defer func() { observeCall("dexscreener", call, start, err) }()

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
			continue
		}

		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// dexPair is the provider's pair shape, reduced to the fields we read.
type dexPair struct {
	PairAddress string `json:"pairAddress"`
	BaseToken   struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
		Name    string `json:"name"`
	} `json:"baseToken"`
	PriceUSD string `json:"priceUsd"`
	Volume   struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	PriceChange struct {
		M5  float64 `json:"m5"`
		H1  float64 `json:"h1"`
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Txns struct {
		M5 struct {
			Buys  int `json:"buys"`
			Sells int `json:"sells"`
		} `json:"m5"`
	} `json:"txns"`
	FDV float64 `json:"fdv"`
}

func (p *dexPair) toSnapshot(observedAt int64) *domain.MarketSnapshot {
	price, _ := strconv.ParseFloat(p.PriceUSD, 64)
	return &domain.MarketSnapshot{
		TokenAddress:      p.BaseToken.Address,
		Symbol:            p.BaseToken.Symbol,
		Name:              p.BaseToken.Name,
		PriceUSD:          price,
		Volume24hUSD:      p.Volume.H24,
		LiquidityUSD:      p.Liquidity.USD,
		PriceChange5mPct:  p.PriceChange.M5,
		PriceChange1hPct:  p.PriceChange.H1,
		PriceChange24hPct: p.PriceChange.H24,
		BuyCount5m:        p.Txns.M5.Buys,
		SellCount5m:       p.Txns.M5.Sells,
		PairAddress:       p.PairAddress,
		FDVUSD:            p.FDV,
		ObservedAt:        observedAt,
	}
}

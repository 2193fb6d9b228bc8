package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// JupiterClient prices and builds swaps against the Jupiter aggregator API.
// Implements Quoter and Executor. With DryRun set, ExecuteSwap never touches
// the network.
type JupiterClient struct {
	baseURL string
	client  *http.Client
	dryRun  bool
}

// JupiterOption configures JupiterClient.
type JupiterOption func(*JupiterClient)

// WithJupiterHTTPClient sets a custom http.Client.
func WithJupiterHTTPClient(client *http.Client) JupiterOption {
	return func(c *JupiterClient) {
		c.client = client
	}
}

// WithJupiterDryRun makes ExecuteSwap simulate instead of building swaps.
func WithJupiterDryRun(dryRun bool) JupiterOption {
	return func(c *JupiterClient) {
		c.dryRun = dryRun
	}
}

// NewJupiterClient creates a Jupiter client.
func NewJupiterClient(baseURL string, opts ...JupiterOption) *JupiterClient {
	c := &JupiterClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Quoter = (*JupiterClient)(nil)
var _ Executor = (*JupiterClient)(nil)

// Quote fetches a swap quote.
func (c *JupiterClient) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if req.InputMint == "" || req.OutputMint == "" || req.AmountLamports <= 0 {
		return nil, fmt.Errorf("quote: missing mint or non-positive amount")
	}

	params := url.Values{}
	params.Set("inputMint", req.InputMint)
	params.Set("outputMint", req.OutputMint)
	params.Set("amount", strconv.FormatInt(req.AmountLamports, 10))
	params.Set("slippageBps", strconv.Itoa(req.SlippageBps))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/swap/v1/quote?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create quote request: %w", err)
	}

	body, err := c.do(httpReq, "quote")
	if err != nil {
		return nil, fmt.Errorf("fetch quote: %w", err)
	}

	var raw struct {
		InAmount       string            `json:"inAmount"`
		OutAmount      string            `json:"outAmount"`
		PriceImpactPct string            `json:"priceImpactPct"`
		RoutePlan      []json.RawMessage `json:"routePlan"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal quote: %w", err)
	}

	inAmount, _ := strconv.ParseInt(raw.InAmount, 10, 64)
	outAmount, _ := strconv.ParseInt(raw.OutAmount, 10, 64)
	impact, _ := strconv.ParseFloat(raw.PriceImpactPct, 64)

	return &Quote{
		InputMint:      req.InputMint,
		OutputMint:     req.OutputMint,
		InAmount:       inAmount,
		OutAmount:      outAmount,
		PriceImpactPct: impact,
		SlippageBps:    req.SlippageBps,
		RouteCount:     len(raw.RoutePlan),
		Raw:            body,
	}, nil
}

// ExecuteSwap builds the swap transaction for a quote. In dry-run mode it
// returns a simulated result without a network call.
func (c *JupiterClient) ExecuteSwap(ctx context.Context, quote *Quote, walletPubkey string) (*SwapResult, error) {
	if quote == nil {
		return nil, fmt.Errorf("execute swap: nil quote")
	}
	if c.dryRun {
		return &SwapResult{Signature: "DRY_RUN_SIMULATED_TX_SIG", Simulated: true}, nil
	}

	payload := map[string]interface{}{
		"quoteResponse":             json.RawMessage(quote.Raw),
		"userPublicKey":             walletPubkey,
		"wrapAndUnwrapSol":          true,
		"prioritizationFeeLamports": "auto",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal swap payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/swap/v1/swap", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create swap request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	respBody, err := c.do(httpReq, "swap")
	if err != nil {
		return nil, fmt.Errorf("build swap: %w", err)
	}

	var resp struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal swap response: %w", err)
	}
	if resp.SwapTransaction == "" {
		return nil, fmt.Errorf("swap response missing transaction")
	}

	// Signing and submission live outside this process; the serialized
	// transaction stands in for the eventual signature.
	return &SwapResult{Signature: resp.SwapTransaction}, nil
}

func (c *JupiterClient) do(req *http.Request, call string) (_ []byte, err error) {
	start := time.Now()
	defer func() { observeCall("jupiter", call, start, err) }()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// SOLToLamports converts a SOL amount to lamports, truncating dust.
func SOLToLamports(sol float64) int64 {
	return int64(sol * LamportsPerSOL)
}

// ClampSlippage caps requested slippage at the configured maximum. Zero or
// negative requests fall back to the maximum.
func ClampSlippage(requestedBps, maxBps int) int {
	if requestedBps <= 0 || requestedBps > maxBps {
		return maxBps
	}
	return requestedBps
}

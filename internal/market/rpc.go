package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// RPCClient reads wallet state over Solana JSON-RPC 2.0 (Helius-compatible
// for the DAS holdings call). Implements HoldingsProvider.
type RPCClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// RPCOption configures RPCClient.
type RPCOption func(*RPCClient)

// WithRPCHTTPClient sets a custom http.Client.
func WithRPCHTTPClient(client *http.Client) RPCOption {
	return func(c *RPCClient) {
		c.client = client
	}
}

// WithRPCMaxRetries sets maximum retry attempts.
func WithRPCMaxRetries(n int) RPCOption {
	return func(c *RPCClient) {
		c.maxRetries = n
	}
}

// WithRPCRetryDelay sets the initial retry delay.
func WithRPCRetryDelay(d time.Duration) RPCOption {
	return func(c *RPCClient) {
		c.retryDelay = d
	}
}

// NewRPCClient creates a Solana RPC client.
func NewRPCClient(endpoint string, opts ...RPCOption) *RPCClient {
	c := &RPCClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ HoldingsProvider = (*RPCClient)(nil)

// SOLBalance returns the wallet's SOL balance.
func (c *RPCClient) SOLBalance(ctx context.Context, walletPubkey string) (float64, error) {
	var result struct {
		Value int64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", []interface{}{walletPubkey}, &result); err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return float64(result.Value) / LamportsPerSOL, nil
}

// Holdings returns the wallet's fungible token balances via the DAS
// getAssetsByOwner call.
func (c *RPCClient) Holdings(ctx context.Context, walletPubkey string) ([]Holding, error) {
	params := map[string]interface{}{
		"ownerAddress":   walletPubkey,
		"displayOptions": map[string]interface{}{"showFungible": true},
	}

	var result struct {
		Items []struct {
			ID        string `json:"id"`
			Interface string `json:"interface"`
			Content   struct {
				Metadata struct {
					Symbol string `json:"symbol"`
				} `json:"metadata"`
			} `json:"content"`
			TokenInfo struct {
				Balance   int64 `json:"balance"`
				Decimals  int   `json:"decimals"`
				PriceInfo struct {
					TotalPrice float64 `json:"total_price"`
				} `json:"price_info"`
			} `json:"token_info"`
		} `json:"items"`
	}
	if err := c.call(ctx, "getAssetsByOwner", params, &result); err != nil {
		return nil, fmt.Errorf("get assets by owner: %w", err)
	}

	var holdings []Holding
	for _, item := range result.Items {
		if item.Interface != "FungibleToken" || item.TokenInfo.Balance == 0 {
			continue
		}
		amount := float64(item.TokenInfo.Balance)
		for i := 0; i < item.TokenInfo.Decimals; i++ {
			amount /= 10
		}
		holdings = append(holdings, Holding{
			Mint:     item.ID,
			Symbol:   item.Content.Metadata.Symbol,
			Amount:   amount,
			ValueUSD: item.TokenInfo.PriceInfo.TotalPrice,
		})
	}
	return holdings, nil
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries and exponential backoff.
// RPC-level errors are terminal; transport errors retry.
func (c *RPCClient) call(ctx context.Context, method string, params, result interface{}) (err error) {
	start := time.Now()
	defer func() { observeCall("rpc", method, start, err) }()

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

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

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
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
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}
		if rpcResp.Error != nil {
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

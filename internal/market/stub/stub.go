// Package stub provides in-memory market collaborators for tests.
package stub

import (
	"context"

	"solana-trader/internal/domain"
	"solana-trader/internal/market"
)

// TrendSource implements market.TrendSource and market.PriceSource from
// fixed snapshot data.
type TrendSource struct {
	TrendingSnapshots []*domain.MarketSnapshot
	ByToken           map[string]*domain.MarketSnapshot

	// Err, when set, fails every call.
	Err error
}

// NewTrendSource creates an empty stub trend source.
func NewTrendSource() *TrendSource {
	return &TrendSource{ByToken: make(map[string]*domain.MarketSnapshot)}
}

// Add registers a snapshot as both trending and token-addressable.
func (s *TrendSource) Add(snap *domain.MarketSnapshot) {
	s.TrendingSnapshots = append(s.TrendingSnapshots, snap)
	s.ByToken[snap.TokenAddress] = snap
}

// Trending returns the fixed trending set.
func (s *TrendSource) Trending(_ context.Context) ([]*domain.MarketSnapshot, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.TrendingSnapshots, nil
}

// Snapshots returns the registered snapshots for the given tokens.
func (s *TrendSource) Snapshots(_ context.Context, tokenAddresses []string) ([]*domain.MarketSnapshot, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	var result []*domain.MarketSnapshot
	for _, addr := range tokenAddresses {
		if snap, ok := s.ByToken[addr]; ok {
			result = append(result, snap)
		}
	}
	return result, nil
}

// Prices returns the registered snapshot prices for the given tokens.
func (s *TrendSource) Prices(_ context.Context, tokenAddresses []string) (map[string]float64, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	prices := make(map[string]float64)
	for _, addr := range tokenAddresses {
		if snap, ok := s.ByToken[addr]; ok && snap.PriceUSD > 0 {
			prices[addr] = snap.PriceUSD
		}
	}
	return prices, nil
}

var _ market.TrendSource = (*TrendSource)(nil)
var _ market.PriceSource = (*TrendSource)(nil)

// Quoter implements market.Quoter with a fixed price impact.
type Quoter struct {
	PriceImpactPct float64
	RouteCount     int
	OutPerIn       float64 // output units per input lamport; 1.0 when zero

	// Err, when set, fails every call.
	Err error

	Requests []market.QuoteRequest
}

// Quote records the request and returns a deterministic quote.
func (q *Quoter) Quote(_ context.Context, req market.QuoteRequest) (*market.Quote, error) {
	if q.Err != nil {
		return nil, q.Err
	}
	q.Requests = append(q.Requests, req)

	outPerIn := q.OutPerIn
	if outPerIn == 0 {
		outPerIn = 1.0
	}
	routes := q.RouteCount
	if routes == 0 {
		routes = 1
	}
	return &market.Quote{
		InputMint:      req.InputMint,
		OutputMint:     req.OutputMint,
		InAmount:       req.AmountLamports,
		OutAmount:      int64(float64(req.AmountLamports) * outPerIn),
		PriceImpactPct: q.PriceImpactPct,
		SlippageBps:    req.SlippageBps,
		RouteCount:     routes,
	}, nil
}

var _ market.Quoter = (*Quoter)(nil)

// Executor implements market.Executor, recording executed quotes.
type Executor struct {
	Simulate bool

	// Err, when set, fails every call.
	Err error

	Executed []*market.Quote
}

// ExecuteSwap records the quote and returns a canned result.
func (e *Executor) ExecuteSwap(_ context.Context, quote *market.Quote, _ string) (*market.SwapResult, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	e.Executed = append(e.Executed, quote)
	if e.Simulate {
		return &market.SwapResult{Signature: "DRY_RUN_SIMULATED_TX_SIG", Simulated: true}, nil
	}
	return &market.SwapResult{Signature: "stub-signature"}, nil
}

var _ market.Executor = (*Executor)(nil)

// Holdings implements market.HoldingsProvider from fixed balances.
type Holdings struct {
	BalanceSOL float64
	Tokens     []market.Holding

	// Err, when set, fails every call.
	Err error
}

// SOLBalance returns the fixed balance.
func (h *Holdings) SOLBalance(_ context.Context, _ string) (float64, error) {
	if h.Err != nil {
		return 0, h.Err
	}
	return h.BalanceSOL, nil
}

// Holdings returns the fixed token list.
func (h *Holdings) Holdings(_ context.Context, _ string) ([]market.Holding, error) {
	if h.Err != nil {
		return nil, h.Err
	}
	return h.Tokens, nil
}

var _ market.HoldingsProvider = (*Holdings)(nil)

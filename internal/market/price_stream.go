package market

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// PriceUpdate is one live price tick from the stream.
type PriceUpdate struct {
	TokenAddress string  `json:"token"`
	PriceUSD     float64 `json:"priceUsd"`
	Timestamp    int64   `json:"ts"`
}

// PriceStreamConfig configures stream behavior.
type PriceStreamConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is the maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultPriceStreamConfig returns default stream configuration.
func DefaultPriceStreamConfig() PriceStreamConfig {
	return PriceStreamConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// PriceStream is a WebSocket subscription to live token prices. The exit job
// reads Updates for positions it watches; on connection loss the stream
// reconnects with backoff and resubscribes every watched token.
type PriceStream struct {
	endpoint string
	config   PriceStreamConfig

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	// tokens currently subscribed, kept for resubscription after reconnect
	tokens   map[string]struct{}
	tokensMu sync.Mutex

	updates chan PriceUpdate

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewPriceStream connects to the endpoint and starts the read and ping loops.
func NewPriceStream(ctx context.Context, endpoint string, config *PriceStreamConfig) (*PriceStream, error) {
	cfg := DefaultPriceStreamConfig()
	if config != nil {
		cfg = *config
	}

	s := &PriceStream{
		endpoint: endpoint,
		config:   cfg,
		tokens:   make(map[string]struct{}),
		updates:  make(chan PriceUpdate, 1024),
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.pingLoop()

	return s, nil
}

func (s *PriceStream) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.conn = conn
	return nil
}

// Updates returns the price tick channel. Closed when the stream closes.
func (s *PriceStream) Updates() <-chan PriceUpdate {
	return s.updates
}

// Subscribe starts streaming prices for the given tokens. Already-subscribed
// tokens are skipped.
func (s *PriceStream) Subscribe(tokenAddresses ...string) error {
	if s.closed.Load() {
		return fmt.Errorf("stream closed")
	}

	s.tokensMu.Lock()
	var fresh []string
	for _, addr := range tokenAddresses {
		if _, have := s.tokens[addr]; !have {
			s.tokens[addr] = struct{}{}
			fresh = append(fresh, addr)
		}
	}
	s.tokensMu.Unlock()

	if len(fresh) == 0 {
		return nil
	}
	return s.writeOp("subscribe", fresh)
}

// Unsubscribe stops streaming prices for the given tokens.
func (s *PriceStream) Unsubscribe(tokenAddresses ...string) error {
	if s.closed.Load() {
		return fmt.Errorf("stream closed")
	}

	s.tokensMu.Lock()
	var dropped []string
	for _, addr := range tokenAddresses {
		if _, have := s.tokens[addr]; have {
			delete(s.tokens, addr)
			dropped = append(dropped, addr)
		}
	}
	s.tokensMu.Unlock()

	if len(dropped) == 0 {
		return nil
	}
	return s.writeOp("unsubscribe", dropped)
}

func (s *PriceStream) writeOp(op string, tokens []string) error {
	msg := struct {
		Op     string   `json:"op"`
		Tokens []string `json:"tokens"`
	}{Op: op, Tokens: tokens}

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("not connected")
	}

	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write %s: %w", op, err)
	}
	return nil
}

// Close closes the stream and the updates channel.
func (s *PriceStream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	close(s.updates)
	return nil
}

// readLoop reads ticks and hands connection errors to the reconnector.
func (s *PriceStream) readLoop() {
	defer s.wg.Done()

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}

			// The reconnector owns redial and backoff; one runs at a time.
			if !s.reconnecting.Swap(true) {
				go s.reconnect()
			}

			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		var update PriceUpdate
		if err := json.Unmarshal(message, &update); err != nil || update.TokenAddress == "" {
			continue
		}

		// A slow consumer drops the oldest information, not the newest:
		// ticks are superseding, unlike log events.
		select {
		case s.updates <- update:
		case <-s.done:
			return
		default:
			select {
			case <-s.updates:
			default:
			}
			select {
			case s.updates <- update:
			default:
			}
		}
	}
}

// reconnect redials with backoff until the dial succeeds or the stream
// closes, then resubscribes all watched tokens.
func (s *PriceStream) reconnect() {
	defer s.reconnecting.Store(false)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	delay := s.config.ReconnectDelay
	for {
		select {
		case <-s.done:
			return
		case <-time.After(delay):
		}
		if s.closed.Load() {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := s.connect(ctx)
		cancel()
		if err == nil {
			break
		}

		delay = time.Duration(float64(delay) * 2)
		if delay > s.config.MaxReconnectDelay {
			delay = s.config.MaxReconnectDelay
		}
	}

	s.tokensMu.Lock()
	tokens := make([]string, 0, len(s.tokens))
	for addr := range s.tokens {
		tokens = append(tokens, addr)
	}
	s.tokensMu.Unlock()

	if len(tokens) > 0 {
		s.writeOp("subscribe", tokens)
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (s *PriceStream) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				// A failed ping surfaces as a read error; the reader
				// owns reconnection.
				s.conn.WriteMessage(websocket.PingMessage, nil)
			}
			s.connMu.Unlock()
		}
	}
}

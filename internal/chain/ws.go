package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// BlockWatcherConfig configures WebSocket block tracking.
type BlockWatcherConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is the maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultBlockWatcherConfig returns default WebSocket configuration.
func DefaultBlockWatcherConfig() BlockWatcherConfig {
	return BlockWatcherConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// BlockWatcher tracks the chain head over an eth_subscribe("newHeads")
// WebSocket subscription. The history sampler uses it to anchor
// past-block reserve reads without an extra RPC round trip per cycle.
type BlockWatcher struct {
	endpoint string
	config   BlockWatcherConfig
	logger   *log.Logger

	conn   *websocket.Conn
	connMu sync.Mutex

	latest atomic.Uint64
	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewBlockWatcher connects to the WS endpoint, subscribes to new heads
// and starts tracking block numbers in the background.
func NewBlockWatcher(ctx context.Context, endpoint string, config *BlockWatcherConfig, logger *log.Logger) (*BlockWatcher, error) {
	cfg := DefaultBlockWatcherConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}

	w := &BlockWatcher{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
		done:     make(chan struct{}),
	}

	if err := w.connect(ctx); err != nil {
		return nil, err
	}

	w.wg.Add(1)
	go w.readLoop()

	return w, nil
}

// Latest returns the most recently seen block number, 0 before the first
// head arrives.
func (w *BlockWatcher) Latest() uint64 {
	return w.latest.Load()
}

// Close shuts down the watcher and its connection.
func (w *BlockWatcher) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(w.done)

	w.connMu.Lock()
	if w.conn != nil {
		w.conn.Close()
	}
	w.connMu.Unlock()

	w.wg.Wait()
	return nil
}

// connect dials the endpoint and sends the newHeads subscription.
func (w *BlockWatcher) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	sub := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "eth_subscribe",
		"params":  []interface{}{"newHeads"},
	}
	conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe newHeads: %w", err)
	}

	w.connMu.Lock()
	w.conn = conn
	w.connMu.Unlock()
	return nil
}

// headNotification is the subset of a newHeads notification we consume.
type headNotification struct {
	Params struct {
		Result struct {
			Number string `json:"number"`
		} `json:"result"`
	} `json:"params"`
}

// readLoop consumes head notifications and reconnects on failure.
func (w *BlockWatcher) readLoop() {
	defer w.wg.Done()

	delay := w.config.ReconnectDelay
	for {
		select {
		case <-w.done:
			return
		default:
		}

		w.connMu.Lock()
		conn := w.conn
		w.connMu.Unlock()

		conn.SetReadDeadline(time.Now().Add(w.config.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if w.closed.Load() {
				return
			}
			w.logger.Printf("block watcher: read failed: %v, reconnecting in %s", err, delay)
			select {
			case <-w.done:
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > w.config.MaxReconnectDelay {
				delay = w.config.MaxReconnectDelay
			}
			if err := w.connect(context.Background()); err != nil {
				w.logger.Printf("block watcher: reconnect failed: %v", err)
			}
			continue
		}
		delay = w.config.ReconnectDelay

		var head headNotification
		if err := json.Unmarshal(msg, &head); err != nil || head.Params.Result.Number == "" {
			// Subscription confirmations and unrelated frames land here.
			continue
		}
		if block, err := hexToUint64(head.Params.Result.Number); err == nil {
			w.latest.Store(block)
		}
	}
}

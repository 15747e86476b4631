package bitget

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"tradeguard/internal/domain"
	"tradeguard/internal/event"
	"tradeguard/internal/infra"
	"tradeguard/internal/reconnect"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// TickerWorker handles the Bitget public ticker WebSocket
type TickerWorker struct {
	name        string
	url         string
	symbols     map[string]string
	emit        *event.Emitter
	maxAttempts int
	metrics     *infra.Metrics
	onFatal     func(error)

	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewTickerWorker factory
func NewTickerWorker(cfg *infra.Config, emit *event.Emitter, metrics *infra.Metrics, onFatal func(error)) *TickerWorker {
	return &TickerWorker{
		name:        "ticker",
		url:         cfg.API.Bitget.WSPublicURL,
		symbols:     cfg.API.Bitget.Symbols,
		emit:        emit,
		maxAttempts: cfg.Safety.MaxReconnectAttempts,
		metrics:     metrics,
		onFatal:     onFatal,
	}
}

func (w *TickerWorker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

// connectionLoop reconnects until the context ends, the attempt budget for
// the current outage runs out, or a failure classifies as non-retryable.
// A successful connect resets the budget.
func (w *TickerWorker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		attempt++
		if err := reconnect.EnsureRetryAllowed(attempt, w.maxAttempts); err != nil {
			w.escalate(domain.NewFatalNetworkError(w.name+"-stream", err))
			return
		}

		err := w.connect(ctx)
		if err == nil {
			attempt = 0
			w.readLoop(ctx)
			continue
		}

		failure := reconnect.Classify(err)
		w.metrics.IncReconnect(w.name, string(failure.Category))
		slog.Warn("Bitget ticker connection failed",
			slog.Any("error", err),
			slog.Int("attempt", attempt),
			slog.String("category", string(failure.Category)),
			slog.String("rule", failure.Rule))

		if !failure.Category.Retryable() {
			w.escalate(domain.NewFatalNetworkError(w.name+"-stream", err))
			return
		}

		delay := infra.CalculateBackoff(attempt)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// escalate hands a dead stream to the supervisor. Retrying past this point
// either hammers the exchange with bad credentials or hides an outage.
func (w *TickerWorker) escalate(err error) {
	slog.Error("Bitget ticker stream halted", slog.Any("error", err))
	if w.onFatal != nil {
		w.onFatal(err)
	}
}

func (w *TickerWorker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	header := http.Header{"User-Agent": []string{DefaultUserAgent}}
	conn, resp, err := dialer.DialContext(ctx, w.url, header)
	if err != nil {
		if resp != nil {
			// Keep the handshake status visible to classification
			return &APIError{Status: resp.StatusCode, Msg: "websocket handshake rejected"}
		}
		return err
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()

	if err := w.subscribe(); err != nil {
		w.closeConnection()
		return err
	}

	go w.pingLoop(ctx)
	w.metrics.SetStreamUp(w.name, true)
	slog.Info("Bitget ticker connected", slog.Int("symbols", len(w.symbols)))
	return nil
}

func (w *TickerWorker) subscribe() error {
	args := make([]subscribeArg, 0, len(w.symbols))
	for _, id := range w.symbols {
		args = append(args, subscribeArg{InstType: "SPOT", Channel: "ticker", InstId: id})
	}
	req := subscribeRequest{Op: "subscribe", Args: args}
	b, err := json.Marshal(req)
	if err != nil {
		slog.Error("Failed to marshal subscribe request", slog.Any("error", err))
		return err
	}
	return w.threadSafeWrite(websocket.TextMessage, b)
}

func (w *TickerWorker) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.threadSafeWrite(websocket.TextMessage, []byte("ping"))
		}
	}
}

func (w *TickerWorker) threadSafeWrite(msgType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.conn == nil {
		return fmt.Errorf("no conn")
	}
	return w.conn.WriteMessage(msgType, data)
}

func (w *TickerWorker) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.mu.RLock()
		if w.conn == nil {
			w.mu.RUnlock()
			return
		}
		w.conn.SetReadDeadline(time.Now().Add(readTimeout))
		w.mu.RUnlock()

		_, msg, err := w.conn.ReadMessage()
		if err != nil {
			w.closeConnection()
			return
		}
		if string(msg) == "pong" {
			continue
		}
		w.handleMessage(msg)
	}
}

func (w *TickerWorker) handleMessage(msg []byte) {
	var ack wsAck
	if err := json.Unmarshal(msg, &ack); err == nil && ack.Event != "" {
		if ack.Event == "error" {
			slog.Warn("Bitget ticker channel error", slog.Int("code", ack.Code), slog.String("msg", ack.Msg))
		}
		return
	}

	var resp tickerResponse
	if err := json.Unmarshal(msg, &resp); err != nil {
		return
	}
	if resp.Arg.Channel != "ticker" || len(resp.Data) == 0 {
		return
	}

	for _, data := range resp.Data {
		symbol := w.findSymbol(data.InstId)
		if symbol == "" {
			continue
		}

		price, err := decimal.NewFromString(data.LastPr)
		if err != nil {
			slog.Debug("Unparseable ticker price", slog.String("inst_id", data.InstId), slog.String("last_pr", data.LastPr))
			continue
		}
		qty, err := decimal.NewFromString(data.BaseVolume)
		if err != nil {
			qty = decimal.Zero
		}

		ev := event.AcquireMarketUpdateEvent()
		ev.Ts = resp.Ts
		ev.Symbol = symbol
		ev.Price = price
		ev.Qty = qty
		ev.Exchange = "BITGET"

		if !w.emit.Emit(ev) {
			event.ReleaseMarketUpdateEvent(ev) // Release if dropped
		}
	}
}

func (w *TickerWorker) findSymbol(instId string) string {
	for s, id := range w.symbols {
		if id == instId {
			return s
		}
	}
	return ""
}

func (w *TickerWorker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
	w.metrics.SetStreamUp(w.name, false)
}

// IsConnected reports whether the stream currently has a live connection.
func (w *TickerWorker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

func (w *TickerWorker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
}

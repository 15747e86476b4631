package bitget

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"tradeguard/internal/domain"
	"tradeguard/internal/event"
	"tradeguard/internal/infra"
	"tradeguard/internal/reconnect"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// OrderWorker handles the Bitget private orders WebSocket. It logs in,
// subscribes to the orders channel and forwards each cumulative order
// snapshot into the inbox.
type OrderWorker struct {
	name        string
	url         string
	symbols     map[string]string
	signer      *Signer
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

// NewOrderWorker factory
func NewOrderWorker(cfg *infra.Config, signer *Signer, emit *event.Emitter, metrics *infra.Metrics, onFatal func(error)) *OrderWorker {
	return &OrderWorker{
		name:        "orders",
		url:         cfg.API.Bitget.WSPrivateURL,
		symbols:     cfg.API.Bitget.Symbols,
		signer:      signer,
		emit:        emit,
		maxAttempts: cfg.Safety.MaxReconnectAttempts,
		metrics:     metrics,
		onFatal:     onFatal,
	}
}

func (w *OrderWorker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

func (w *OrderWorker) connectionLoop(ctx context.Context) {
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
		slog.Warn("Bitget order stream connection failed",
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

func (w *OrderWorker) escalate(err error) {
	slog.Error("Bitget order stream halted", slog.Any("error", err))
	if w.onFatal != nil {
		w.onFatal(err)
	}
}

func (w *OrderWorker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	header := http.Header{"User-Agent": []string{DefaultUserAgent}}
	conn, resp, err := dialer.DialContext(ctx, w.url, header)
	if err != nil {
		if resp != nil {
			return &APIError{Status: resp.StatusCode, Msg: "websocket handshake rejected"}
		}
		return err
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()

	if err := w.login(); err != nil {
		w.closeConnection()
		return err
	}

	if err := w.subscribe(); err != nil {
		w.closeConnection()
		return err
	}

	go w.pingLoop(ctx)
	w.metrics.SetStreamUp(w.name, true)
	slog.Info("Bitget order stream connected")
	return nil
}

// login authenticates the connection. The ack must arrive before any
// subscription is sent; a rejection is an auth failure, not a blip.
func (w *OrderWorker) login() error {
	req := loginRequest{Op: "login", Args: []loginArg{w.signer.GenerateWSLogin()}}
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if err := w.threadSafeWrite(websocket.TextMessage, b); err != nil {
		return err
	}

	w.mu.RLock()
	conn := w.conn
	w.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("no conn")
	}

	conn.SetReadDeadline(time.Now().Add(loginTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("login read: %w", err)
	}

	var ack wsAck
	if err := json.Unmarshal(msg, &ack); err != nil {
		return fmt.Errorf("login ack parse: %w", err)
	}
	if ack.Event != "login" || ack.Code != 0 {
		return fmt.Errorf("private stream auth rejected: code=%d msg=%q", ack.Code, ack.Msg)
	}
	return nil
}

func (w *OrderWorker) subscribe() error {
	args := make([]subscribeArg, 0, len(w.symbols))
	for _, id := range w.symbols {
		args = append(args, subscribeArg{InstType: "SPOT", Channel: "orders", InstId: id})
	}
	req := subscribeRequest{Op: "subscribe", Args: args}
	b, err := json.Marshal(req)
	if err != nil {
		slog.Error("Failed to marshal subscribe request", slog.Any("error", err))
		return err
	}
	return w.threadSafeWrite(websocket.TextMessage, b)
}

func (w *OrderWorker) pingLoop(ctx context.Context) {
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

func (w *OrderWorker) threadSafeWrite(msgType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.conn == nil {
		return fmt.Errorf("no conn")
	}
	return w.conn.WriteMessage(msgType, data)
}

func (w *OrderWorker) readLoop(ctx context.Context) {
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

func (w *OrderWorker) handleMessage(msg []byte) {
	var ack wsAck
	if err := json.Unmarshal(msg, &ack); err == nil && ack.Event != "" {
		if ack.Event == "error" {
			slog.Warn("Bitget order channel error", slog.Int("code", ack.Code), slog.String("msg", ack.Msg))
		}
		return
	}

	var resp ordersResponse
	if err := json.Unmarshal(msg, &resp); err != nil {
		return
	}
	if resp.Arg.Channel != "orders" || len(resp.Data) == 0 {
		return
	}

	for _, data := range resp.Data {
		cumQty, err := decimal.NewFromString(data.AccBaseVolume)
		if err != nil {
			slog.Warn("Unparseable cumulative volume",
				slog.String("order_id", data.OrderId),
				slog.String("acc_base_volume", data.AccBaseVolume))
			continue
		}
		cumAvg, err := decimal.NewFromString(data.PriceAvg)
		if err != nil {
			cumAvg = decimal.Zero
		}

		symbol := w.findSymbol(data.InstId)
		if symbol == "" {
			symbol = data.InstId
		}

		ev := event.AcquireOrderUpdateEvent()
		ev.Ts = resp.Ts
		ev.OrderID = data.OrderId
		ev.ClientOrderID = data.ClientOid
		ev.Symbol = symbol
		ev.Side = strings.ToUpper(data.Side)
		ev.Status = mapOrderStatus(data.Status)
		ev.CumQty = cumQty
		ev.CumAvgPrice = cumAvg

		if !w.emit.Emit(ev) {
			// Cumulative snapshots self-heal: the next push carries the
			// running totals, so a drop costs price attribution, not qty.
			event.ReleaseOrderUpdateEvent(ev)
			slog.Warn("Order update dropped, inbox full", slog.String("order_id", data.OrderId))
		}
	}
}

// mapOrderStatus normalizes Bitget order states to ledger states.
func mapOrderStatus(s string) string {
	switch strings.ToLower(s) {
	case "live", "new", "init":
		return domain.OrderStatusNew
	case "partially_filled", "partial_fill", "partial-fill":
		return domain.OrderStatusPartiallyFilled
	case "filled", "full_fill", "full-fill":
		return domain.OrderStatusFilled
	case "cancelled", "canceled", "cancel":
		return domain.OrderStatusCanceled
	default:
		return strings.ToUpper(s)
	}
}

func (w *OrderWorker) findSymbol(instId string) string {
	for s, id := range w.symbols {
		if id == instId {
			return s
		}
	}
	return ""
}

func (w *OrderWorker) closeConnection() {
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
func (w *OrderWorker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

func (w *OrderWorker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
}

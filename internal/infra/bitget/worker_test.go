package bitget

import (
	"testing"

	"tradeguard/internal/domain"
	"tradeguard/internal/event"
	"tradeguard/internal/infra"

	"github.com/shopspring/decimal"
)

func testConfig() *infra.Config {
	cfg := &infra.Config{}
	cfg.API.Bitget.WSPublicURL = "wss://example.invalid/public"
	cfg.API.Bitget.WSPrivateURL = "wss://example.invalid/private"
	cfg.API.Bitget.Symbols = map[string]string{"BTC": "BTCUSDT"}
	cfg.Safety.MaxReconnectAttempts = 3
	return cfg
}

func TestTickerWorker_HandleMessage(t *testing.T) {
	em := event.NewEmitter(4)
	w := NewTickerWorker(testConfig(), em, nil, nil)

	msg := `{"action":"snapshot","arg":{"instType":"SPOT","channel":"ticker","instId":"BTCUSDT"},` +
		`"data":[{"instId":"BTCUSDT","lastPr":"65432.1","baseVolume":"123.45"}],"ts":1700000000000}`
	w.handleMessage([]byte(msg))

	select {
	case ev := <-em.Events():
		tick, ok := ev.(*event.MarketUpdateEvent)
		if !ok {
			t.Fatalf("expected MarketUpdateEvent, got %T", ev)
		}
		if tick.Symbol != "BTC" {
			t.Errorf("symbol = %s, want BTC", tick.Symbol)
		}
		if !tick.Price.Equal(decimal.RequireFromString("65432.1")) {
			t.Errorf("price = %s", tick.Price)
		}
		if !tick.Qty.Equal(decimal.RequireFromString("123.45")) {
			t.Errorf("qty = %s", tick.Qty)
		}
		if tick.Seq != 1 {
			t.Errorf("seq = %d, want 1", tick.Seq)
		}
		if tick.Ts != 1700000000000 {
			t.Errorf("ts = %d", tick.Ts)
		}
	default:
		t.Fatal("no event delivered")
	}
}

func TestTickerWorker_SkipsUnknownInstrument(t *testing.T) {
	em := event.NewEmitter(4)
	w := NewTickerWorker(testConfig(), em, nil, nil)

	msg := `{"arg":{"channel":"ticker","instId":"ETHUSDT"},"data":[{"instId":"ETHUSDT","lastPr":"3000","baseVolume":"1"}],"ts":1}`
	w.handleMessage([]byte(msg))

	if em.Len() != 0 {
		t.Errorf("unmapped instrument should be dropped, got %d events", em.Len())
	}
}

func TestTickerWorker_SkipsMalformedPrice(t *testing.T) {
	em := event.NewEmitter(4)
	w := NewTickerWorker(testConfig(), em, nil, nil)

	msg := `{"arg":{"channel":"ticker","instId":"BTCUSDT"},"data":[{"instId":"BTCUSDT","lastPr":"not-a-number","baseVolume":"1"}],"ts":1}`
	w.handleMessage([]byte(msg))

	if em.Len() != 0 {
		t.Errorf("malformed price should be dropped, got %d events", em.Len())
	}
}

func TestTickerWorker_IgnoresAckFrames(t *testing.T) {
	em := event.NewEmitter(4)
	w := NewTickerWorker(testConfig(), em, nil, nil)

	w.handleMessage([]byte(`{"event":"subscribe","arg":{"instType":"SPOT","channel":"ticker","instId":"BTCUSDT"}}`))
	w.handleMessage([]byte(`{"event":"error","code":30016,"msg":"Param error"}`))
	w.handleMessage([]byte(`garbage`))

	if em.Len() != 0 {
		t.Errorf("acks must not produce events, got %d", em.Len())
	}
}

func TestTickerWorker_DropsWhenInboxFull(t *testing.T) {
	em := event.NewEmitter(0) // No room, nobody reading
	w := NewTickerWorker(testConfig(), em, nil, nil)

	msg := `{"arg":{"channel":"ticker","instId":"BTCUSDT"},"data":[{"instId":"BTCUSDT","lastPr":"1","baseVolume":"1"}],"ts":1}`
	// Must return without blocking the read loop
	w.handleMessage([]byte(msg))
}

func TestOrderWorker_HandleMessage(t *testing.T) {
	em := event.NewEmitter(4)
	w := NewOrderWorker(testConfig(), NewSigner("k", "s", "p"), em, nil, nil)

	msg := `{"action":"snapshot","arg":{"instType":"SPOT","channel":"orders","instId":"BTCUSDT"},` +
		`"data":[{"instId":"BTCUSDT","orderId":"1001","clientOid":"abc-123","side":"buy",` +
		`"status":"partially_filled","accBaseVolume":"2","priceAvg":"11"}],"ts":1700000000500}`
	w.handleMessage([]byte(msg))

	select {
	case ev := <-em.Events():
		upd, ok := ev.(*event.OrderUpdateEvent)
		if !ok {
			t.Fatalf("expected OrderUpdateEvent, got %T", ev)
		}
		if upd.OrderID != "1001" || upd.ClientOrderID != "abc-123" {
			t.Errorf("ids = %s/%s", upd.OrderID, upd.ClientOrderID)
		}
		if upd.Symbol != "BTC" {
			t.Errorf("symbol = %s, want BTC", upd.Symbol)
		}
		if upd.Side != domain.SideBuy {
			t.Errorf("side = %s, want BUY", upd.Side)
		}
		if upd.Status != domain.OrderStatusPartiallyFilled {
			t.Errorf("status = %s", upd.Status)
		}
		if !upd.CumQty.Equal(decimal.RequireFromString("2")) {
			t.Errorf("cum qty = %s", upd.CumQty)
		}
		if !upd.CumAvgPrice.Equal(decimal.RequireFromString("11")) {
			t.Errorf("cum avg price = %s", upd.CumAvgPrice)
		}
	default:
		t.Fatal("no event delivered")
	}
}

func TestOrderWorker_UnmappedInstrumentKeepsRawId(t *testing.T) {
	em := event.NewEmitter(4)
	w := NewOrderWorker(testConfig(), NewSigner("k", "s", "p"), em, nil, nil)

	msg := `{"arg":{"channel":"orders","instId":"DOGEUSDT"},` +
		`"data":[{"instId":"DOGEUSDT","orderId":"7","clientOid":"x","side":"sell","status":"filled","accBaseVolume":"5","priceAvg":"0.1"}],"ts":2}`
	w.handleMessage([]byte(msg))

	select {
	case ev := <-em.Events():
		upd := ev.(*event.OrderUpdateEvent)
		if upd.Symbol != "DOGEUSDT" {
			t.Errorf("symbol = %s, want raw instId DOGEUSDT", upd.Symbol)
		}
	default:
		t.Fatal("order update for unmapped symbol must still flow")
	}
}

func TestOrderWorker_SkipsUnparseableVolume(t *testing.T) {
	em := event.NewEmitter(4)
	w := NewOrderWorker(testConfig(), NewSigner("k", "s", "p"), em, nil, nil)

	msg := `{"arg":{"channel":"orders","instId":"BTCUSDT"},` +
		`"data":[{"instId":"BTCUSDT","orderId":"8","side":"buy","status":"live","accBaseVolume":"","priceAvg":""}],"ts":3}`
	w.handleMessage([]byte(msg))

	if em.Len() != 0 {
		t.Errorf("row without cumulative volume should be skipped, got %d events", em.Len())
	}
}

func TestMapOrderStatus(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"live", domain.OrderStatusNew},
		{"init", domain.OrderStatusNew},
		{"partially_filled", domain.OrderStatusPartiallyFilled},
		{"filled", domain.OrderStatusFilled},
		{"cancelled", domain.OrderStatusCanceled},
		{"canceled", domain.OrderStatusCanceled},
		{"weird_state", "WEIRD_STATE"},
	}
	for _, tc := range cases {
		if got := mapOrderStatus(tc.in); got != tc.want {
			t.Errorf("mapOrderStatus(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

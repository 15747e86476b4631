package bitget

import "time"

const (
	handshakeTimeout = 10 * time.Second
	pingInterval     = 30 * time.Second
	readTimeout      = 60 * time.Second
	loginTimeout     = 10 * time.Second

	DefaultUserAgent = "Mozilla/5.0"
)

// subscribeRequest Structure
type subscribeRequest struct {
	Op   string         `json:"op"`
	Args []subscribeArg `json:"args"`
}

type subscribeArg struct {
	InstType string `json:"instType"`
	Channel  string `json:"channel"`
	InstId   string `json:"instId"`
}

// loginRequest authenticates the private stream before any subscription
type loginRequest struct {
	Op   string     `json:"op"`
	Args []loginArg `json:"args"`
}

type loginArg struct {
	ApiKey     string `json:"apiKey"`
	Passphrase string `json:"passphrase"`
	Timestamp  string `json:"timestamp"`
	Sign       string `json:"sign"`
}

// wsAck covers the event frames the server sends back for login,
// subscribe and errors. Code 0 means accepted.
type wsAck struct {
	Event string       `json:"event"`
	Code  int          `json:"code"`
	Msg   string       `json:"msg"`
	Arg   subscribeArg `json:"arg"`
}

// tickerResponse Structure
type tickerResponse struct {
	Action string       `json:"action"`
	Arg    subscribeArg `json:"arg"`
	Data   []tickerData `json:"data"`
	Ts     int64        `json:"ts"`
}

type tickerData struct {
	InstId     string `json:"instId"`
	LastPr     string `json:"lastPr"`
	BaseVolume string `json:"baseVolume"`
}

// ordersResponse carries pushes from the private orders channel. Volumes
// and prices are cumulative for the lifetime of the order, not per-fill.
type ordersResponse struct {
	Action string       `json:"action"`
	Arg    subscribeArg `json:"arg"`
	Data   []orderData  `json:"data"`
	Ts     int64        `json:"ts"`
}

type orderData struct {
	InstId        string `json:"instId"`
	OrderId       string `json:"orderId"`
	ClientOid     string `json:"clientOid"`
	Side          string `json:"side"`
	Status        string `json:"status"`
	AccBaseVolume string `json:"accBaseVolume"` // Total base qty filled so far
	PriceAvg      string `json:"priceAvg"`      // Cumulative average fill price
}

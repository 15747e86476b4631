package bitget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"tradeguard/internal/domain"
	"tradeguard/internal/infra"
)

// APIError is a rejected exchange call. It exposes the HTTP status through
// StatusCode so failure classification can read the verdict from the error
// chain without importing this package.
type APIError struct {
	Status int
	Code   string // Bitget business code, empty for transport-level rejections
	Msg    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("bitget api error: status=%d code=%s msg=%s", e.Status, e.Code, e.Msg)
	}
	return fmt.Sprintf("bitget api error: status=%d msg=%s", e.Status, e.Msg)
}

// StatusCode returns the HTTP status of the rejected call.
func (e *APIError) StatusCode() int { return e.Status }

// Client is the Bitget V2 REST API Client (Boundary Layer)
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     *Signer
	logger     *slog.Logger
}

// NewClient creates a new Bitget API client.
func NewClient(cfg *infra.Config) *Client {
	signer := NewSigner(
		cfg.API.Bitget.AccessKey,
		cfg.API.Bitget.SecretKey,
		cfg.API.Bitget.Passphrase,
	)

	return &Client{
		baseURL: cfg.API.Bitget.RestURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		signer: signer,
		logger: slog.Default().With("module", "bitget_client"),
	}
}

// Signer exposes the client's signer for the private websocket login.
func (c *Client) Signer() *Signer { return c.signer }

// placeOrderRequest - Internal Struct for JSON Marshaling
type placeOrderRequest struct {
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`      // buy, sell
	OrderType     string `json:"orderType"` // limit, market
	Force         string `json:"force"`     // normal
	Price         string `json:"price,omitempty"`
	Size          string `json:"size"`
	ClientOrderId string `json:"clientOid"`
}

// PlaceOrder sends an order to the exchange. Prices and quantities stay
// decimal all the way to the wire, the exchange gets exactly the digits
// the intent carried.
func (c *Client) PlaceOrder(ctx context.Context, order domain.Order) error {
	side := "buy"
	if order.Side == domain.SideSell {
		side = "sell"
	}

	reqBody := placeOrderRequest{
		Symbol:        order.Symbol,
		Side:          side,
		OrderType:     "limit",
		Force:         "normal",
		Price:         order.Price.String(),
		Size:          order.Qty.String(),
		ClientOrderId: order.ID,
	}

	if order.Type == domain.OrderTypeMarket {
		reqBody.OrderType = "market"
		reqBody.Price = ""
	}

	resp, err := c.doRequest(ctx, "POST", "/api/v2/spot/trade/place-order", nil, reqBody)
	if err != nil {
		return domain.NewNetworkError("place-order", err)
	}

	if _, err := decodeResponse(resp); err != nil {
		return fmt.Errorf("bitget place order failed: %w", err)
	}

	c.logger.Info("Order Placed Successfully", "oid", order.ID, "symbol", order.Symbol)
	return nil
}

// CancelOrder sends a cancel request by client order id.
func (c *Client) CancelOrder(ctx context.Context, clientOrderID string, symbol string) error {
	reqBody := map[string]string{
		"symbol":    symbol,
		"clientOid": clientOrderID,
	}

	resp, err := c.doRequest(ctx, "POST", "/api/v2/spot/trade/cancel-order", nil, reqBody)
	if err != nil {
		return domain.NewNetworkError("cancel-order", err)
	}

	if _, err := decodeResponse(resp); err != nil {
		return fmt.Errorf("bitget cancel order failed: %w", err)
	}

	c.logger.Info("Order Canceled", "oid", clientOrderID, "symbol", symbol)
	return nil
}

// AssetBalance is one coin's balance from the spot account.
type AssetBalance struct {
	Coin      string `json:"coin"`
	Available string `json:"available"`
	Frozen    string `json:"frozen"`
	Locked    string `json:"locked"`
}

// GetAssets fetches the spot account balances.
func (c *Client) GetAssets(ctx context.Context) ([]AssetBalance, error) {
	resp, err := c.doRequest(ctx, "GET", "/api/v2/spot/account/assets", nil, nil)
	if err != nil {
		return nil, domain.NewNetworkError("get-assets", err)
	}

	data, err := decodeResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("bitget get assets failed: %w", err)
	}

	var assets []AssetBalance
	if err := json.Unmarshal(data, &assets); err != nil {
		return nil, fmt.Errorf("failed to parse assets: %w", err)
	}
	return assets, nil
}

// decodeResponse drains the body and unwraps the Bitget envelope. Every
// non-00000 business code and every non-200 status comes back as *APIError.
func decodeResponse(resp *http.Response) (json.RawMessage, error) {
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Msg: string(bodyBytes)}
	}

	var apiResp struct {
		Code string          `json:"code"`
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if apiResp.Code != "00000" { // Bitget Success Code
		return nil, &APIError{Status: resp.StatusCode, Code: apiResp.Code, Msg: apiResp.Msg}
	}

	return apiResp.Data, nil
}

// doRequest handles Auth headers and serialization
func (c *Client) doRequest(ctx context.Context, method, path string, query map[string]string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	var bodyStr string

	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewBuffer(jsonBytes)
		bodyStr = string(jsonBytes)
	}

	// The signed query string must match the sent one byte for byte;
	// url.Values.Encode sorts keys, so both sides agree.
	queryStr := ""
	if len(query) > 0 {
		vals := url.Values{}
		for k, v := range query {
			vals.Set(k, v)
		}
		queryStr = vals.Encode()
	}

	reqURL := c.baseURL + path
	if queryStr != "" {
		reqURL += "?" + queryStr
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, err
	}

	headers := c.signer.GenerateHeaders(method, path, queryStr, bodyStr)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", DefaultUserAgent)

	return c.httpClient.Do(req)
}

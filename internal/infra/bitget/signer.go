package bitget

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"
)

// Signer handles Bitget V2 API authentication signatures
type Signer struct {
	accessKey  string
	secretKey  string
	passphrase string
}

// NewSigner creates a new Signer instance
func NewSigner(accessKey, secretKey, passphrase string) *Signer {
	return &Signer{
		accessKey:  accessKey,
		secretKey:  secretKey,
		passphrase: passphrase,
	}
}

// GenerateHeaders creates the necessary headers for a REST request
// method: GET, POST, etc.
// path: /api/v2/spot/account/info (no host)
// query: param=1&test=2 (empty if none)
// body: json string (empty if none)
func (s *Signer) GenerateHeaders(method, path, query, body string) map[string]string {
	// Bitget V2 Requirement: Unix Timestamp in Milliseconds
	timestamp := fmt.Sprintf("%d", time.Now().UnixMilli())

	// String to sign: timestamp + method + requestPath + "?" + queryString + body
	// The query string, when present, must be part of the signed path.
	fullPath := path
	if query != "" {
		fullPath = path + "?" + query
	}

	payload := timestamp + method + fullPath + body

	sign := computeHmacSha256(payload, s.secretKey)

	headers := map[string]string{
		"ACCESS-KEY":        s.accessKey,
		"ACCESS-SIGN":       sign,
		"ACCESS-TIMESTAMP":  timestamp,
		"ACCESS-PASSPHRASE": s.passphrase,
		"Content-Type":      "application/json",
		"locale":            "en-US",
	}

	return headers
}

// GenerateWSLogin builds the login argument for the private websocket.
// Unlike REST, the websocket login signs a timestamp in seconds, over the
// fixed verification path.
func (s *Signer) GenerateWSLogin() loginArg {
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	payload := timestamp + "GET" + "/user/verify"

	return loginArg{
		ApiKey:     s.accessKey,
		Passphrase: s.passphrase,
		Timestamp:  timestamp,
		Sign:       computeHmacSha256(payload, s.secretKey),
	}
}

func computeHmacSha256(message string, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

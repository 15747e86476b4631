package bitget

import (
	"testing"
)

func TestSigner_GenerateHeaders(t *testing.T) {
	signer := NewSigner("key", "secret", "pass")

	// GenerateHeaders uses current time, so the exact signature cannot be
	// asserted here. Verify the headers are present and formatted correctly.
	headers := signer.GenerateHeaders("POST", "/api/v2/order", "", "{\"symbol\":\"BTCUSDT\"}")

	if headers["ACCESS-KEY"] != "key" {
		t.Errorf("Expected ACCESS-KEY to be 'key', got %s", headers["ACCESS-KEY"])
	}
	if headers["ACCESS-PASSPHRASE"] != "pass" {
		t.Errorf("Expected ACCESS-PASSPHRASE to be 'pass', got %s", headers["ACCESS-PASSPHRASE"])
	}
	if headers["ACCESS-SIGN"] == "" {
		t.Error("ACCESS-SIGN should not be empty")
	}
	if len(headers["ACCESS-TIMESTAMP"]) != 13 { // Milliseconds
		t.Errorf("Expected timestamp len 13, got %s", headers["ACCESS-TIMESTAMP"])
	}
}

func TestSigner_GenerateWSLogin(t *testing.T) {
	signer := NewSigner("key", "secret", "pass")

	arg := signer.GenerateWSLogin()

	if arg.ApiKey != "key" {
		t.Errorf("Expected apiKey 'key', got %s", arg.ApiKey)
	}
	if arg.Passphrase != "pass" {
		t.Errorf("Expected passphrase 'pass', got %s", arg.Passphrase)
	}
	if len(arg.Timestamp) != 10 { // Seconds, not milliseconds
		t.Errorf("Expected timestamp len 10, got %s", arg.Timestamp)
	}

	// The signature is reproducible from the returned timestamp
	want := computeHmacSha256(arg.Timestamp+"GET"+"/user/verify", "secret")
	if arg.Sign != want {
		t.Errorf("Sign mismatch. Expected %s, got %s", want, arg.Sign)
	}
}

func TestComputeHmacSha256(t *testing.T) {
	// Standard HMAC-SHA256 Test Vector
	key := "key"
	data := "The quick brown fox jumps over the lazy dog"
	// HMAC-SHA256("key", "The quick brown fox jumps over the lazy dog")
	// Hex: f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8
	// Base64: 97yD9DBThCSxMpjmqm+xQ+9NWaFJRhdZl0edvC0aPNg=

	expected := "97yD9DBThCSxMpjmqm+xQ+9NWaFJRhdZl0edvC0aPNg="
	result := computeHmacSha256(data, key)

	if result != expected {
		t.Errorf("HMAC Mismatch. Expected %s, got %s", expected, result)
	}
}

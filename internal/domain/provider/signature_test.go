package provider_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/elimu-platform/payment-service/internal/domain/provider"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"transaction":{"id":"tx-1"}}`)

	t.Run("valid signature", func(t *testing.T) {
		assert.True(t, provider.VerifySignature("secret", body, sign("secret", body)))
	})

	t.Run("wrong secret", func(t *testing.T) {
		assert.False(t, provider.VerifySignature("secret", body, sign("other", body)))
	})

	t.Run("tampered body", func(t *testing.T) {
		sig := sign("secret", body)
		assert.False(t, provider.VerifySignature("secret", []byte(`{"transaction":{"id":"tx-2"}}`), sig))
	})

	t.Run("empty secret or signature rejected", func(t *testing.T) {
		assert.False(t, provider.VerifySignature("", body, sign("secret", body)))
		assert.False(t, provider.VerifySignature("secret", body, ""))
	})
}

func TestProviderErrorClassification(t *testing.T) {
	unavailable := provider.NewUnavailableError("API_ERROR", "network down", nil)
	rejected := provider.NewRejectedError("1032", "cancelled by user", "")

	assert.True(t, provider.IsUnavailable(unavailable))
	assert.False(t, provider.IsRejected(unavailable))
	assert.True(t, provider.IsRejected(rejected))
	assert.False(t, provider.IsUnavailable(rejected))
}

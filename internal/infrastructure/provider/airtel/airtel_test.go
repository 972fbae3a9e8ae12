package airtel_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elimu-platform/payment-service/internal/config"
	"github.com/elimu-platform/payment-service/internal/domain/provider"
	"github.com/elimu-platform/payment-service/internal/infrastructure/provider/airtel"
)

func newAdapter(baseURL string) *airtel.Adapter {
	return airtel.New(config.AirtelConfig{
		BaseURL: baseURL,
		Token:   "token",
		Country: "UG",
	}, zap.NewNop())
}

func initiateReq() *provider.InitiateRequest {
	return &provider.InitiateRequest{
		OrderID:     "order-1",
		Amount:      decimal.NewFromInt(10000),
		Currency:    "UGX",
		PhoneNumber: "+256750000001",
		Description: "Monthly Plan",
	}
}

func envelope(success bool, code string, tx map[string]string) map[string]interface{} {
	resp := map[string]interface{}{
		"status": map[string]interface{}{
			"success": success,
			"code":    code,
			"message": "msg",
		},
	}
	if tx != nil {
		resp["data"] = map[string]interface{}{"transaction": tx}
	}
	return resp
}

func TestAirtelInitiate(t *testing.T) {
	t.Run("accepted collection returns the transaction id", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/merchant/v1/payments/", r.URL.Path)
			assert.Equal(t, "UG", r.Header.Get("X-Country"))

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			tx := body["transaction"].(map[string]interface{})
			assert.Equal(t, "order-1", tx["id"])

			json.NewEncoder(w).Encode(envelope(true, "200", map[string]string{"id": "order-1", "status": "TIP"}))
		}))
		defer srv.Close()

		resp, err := newAdapter(srv.URL).Initiate(context.Background(), initiateReq())
		require.NoError(t, err)
		assert.Equal(t, "order-1", resp.ProviderRef)
	})

	t.Run("unsuccessful envelope is a rejection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(envelope(false, "ESB000008", nil))
		}))
		defer srv.Close()

		_, err := newAdapter(srv.URL).Initiate(context.Background(), initiateReq())
		require.Error(t, err)
		assert.True(t, provider.IsRejected(err))
	})

	t.Run("unreachable API is unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		_, err := newAdapter(srv.URL).Initiate(context.Background(), initiateReq())
		require.Error(t, err)
		assert.True(t, provider.IsUnavailable(err))
	})

	t.Run("gateway 5xx is unavailable, not a rejection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(envelope(false, "ESB000001", nil))
		}))
		defer srv.Close()

		_, err := newAdapter(srv.URL).Initiate(context.Background(), initiateReq())
		require.Error(t, err)
		assert.True(t, provider.IsUnavailable(err))
		assert.False(t, provider.IsRejected(err))
	})
}

func TestAirtelCheckStatus(t *testing.T) {
	cases := []struct {
		code string
		want provider.Status
	}{
		{"TS", provider.StatusSucceeded},
		{"TF", provider.StatusFailed},
		{"TIP", provider.StatusPending},
		{"TA", provider.StatusPending},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/standard/v1/payments/order-1", r.URL.Path)
				json.NewEncoder(w).Encode(envelope(true, "200", map[string]string{
					"id":     "order-1",
					"status": tc.code,
				}))
			}))
			defer srv.Close()

			result, err := newAdapter(srv.URL).CheckStatus(context.Background(), &provider.StatusRequest{ProviderRef: "order-1"})
			require.NoError(t, err)
			assert.Equal(t, tc.want, result.Status)
		})
	}
}

func TestAirtelParseWebhook(t *testing.T) {
	t.Run("settled transaction", func(t *testing.T) {
		body := []byte(`{"transaction":{"id":"order-1","message":"Paid","status_code":"TS","airtel_money_id":"am-1"}}`)
		n, err := newAdapter("").ParseWebhook(body, http.Header{})
		require.NoError(t, err)
		assert.Equal(t, "order-1", n.ProviderRef)
		assert.Equal(t, provider.StatusSucceeded, n.Status)
	})

	t.Run("failed transaction", func(t *testing.T) {
		body := []byte(`{"transaction":{"id":"order-1","message":"Insufficient balance","status_code":"TF"}}`)
		n, err := newAdapter("").ParseWebhook(body, http.Header{})
		require.NoError(t, err)
		assert.Equal(t, provider.StatusFailed, n.Status)
		assert.Equal(t, "Insufficient balance", n.Reason)
	})

	t.Run("missing transaction id rejected", func(t *testing.T) {
		_, err := newAdapter("").ParseWebhook([]byte(`{"transaction":{}}`), http.Header{})
		require.Error(t, err)
		assert.True(t, provider.IsRejected(err))
	})
}

package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinetab/dinetab/internal/domain/order"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *StripeClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewStripeClient(ClientConfig{
		BaseURL:            srv.URL,
		SecretKey:          "sk_test_123",
		SettlementCurrency: "usd",
	})
}

func TestStripeClient_CreateSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "payment", r.PostForm.Get("mode"))
		assert.Equal(t, "https://dinetab.app/paid", r.PostForm.Get("success_url"))
		assert.Equal(t, "usd", r.PostForm.Get("line_items[0][price_data][currency]"))
		assert.Equal(t, "Order #42", r.PostForm.Get("line_items[0][price_data][product_data][name]"))
		assert.Equal(t, "1800", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "1", r.PostForm.Get("line_items[0][quantity]"))
		assert.Equal(t, "ord-42", r.PostForm.Get("metadata[orderId]"))

		json.NewEncoder(w).Encode(map[string]string{
			"id":  "cs_test_abc",
			"url": "https://checkout.example.com/cs_test_abc",
		})
	})

	session, err := client.CreateSession(context.Background(), order.CreateSessionParams{
		Lines: []order.SessionLine{
			{Name: "Order #42", UnitCents: 1800, Quantity: 1},
		},
		SuccessURL: "https://dinetab.app/paid",
		CancelURL:  "https://dinetab.app/cancel",
		Metadata:   map[string]string{"orderId": "ord-42"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_abc", session.ID)
	assert.Equal(t, "https://checkout.example.com/cs_test_abc", session.URL)
}

func TestStripeClient_RetrieveSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/checkout/sessions/cs_test_abc", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{
			"id":             "cs_test_abc",
			"payment_status": "paid",
		})
	})

	status, err := client.RetrieveSession(context.Background(), "cs_test_abc")
	require.NoError(t, err)
	assert.Equal(t, order.SessionPaid, status)
}

func TestStripeClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"id":             "cs_test_abc",
			"payment_status": "unpaid",
		})
	})

	status, err := client.RetrieveSession(context.Background(), "cs_test_abc")
	require.NoError(t, err)
	assert.Equal(t, "unpaid", status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestStripeClient_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{
				"type":    "invalid_request_error",
				"message": "No such checkout session",
			},
		})
	})

	_, err := client.RetrieveSession(context.Background(), "cs_missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No such checkout session")
}

func TestWebhookVerifier_Verify(t *testing.T) {
	const secret = "whsec_test"
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	newVerifier := func() *WebhookVerifier {
		v := NewWebhookVerifier(secret)
		v.now = func() time.Time { return now }
		return v
	}

	payload := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_test_abc", "payment_status": "paid", "metadata": {"orderId": "ord-42"}}}
	}`)

	t.Run("valid signature", func(t *testing.T) {
		event, err := newVerifier().Verify(payload, Sign(secret, now, payload))
		require.NoError(t, err)
		assert.Equal(t, EventCheckoutCompleted, event.Type)
		assert.Equal(t, "cs_test_abc", event.Data.Object.ID)
		assert.Equal(t, "ord-42", event.Data.Object.Metadata["orderId"])
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := newVerifier().Verify(payload, Sign("whsec_other", now, payload))
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("tampered payload", func(t *testing.T) {
		header := Sign(secret, now, payload)
		tampered := append([]byte(nil), payload...)
		tampered[len(tampered)-2] = ' '
		_, err := newVerifier().Verify(tampered, header)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		old := now.Add(-10 * time.Minute)
		_, err := newVerifier().Verify(payload, Sign(secret, old, payload))
		assert.ErrorIs(t, err, ErrStaleTimestamp)
	})

	t.Run("missing header", func(t *testing.T) {
		_, err := newVerifier().Verify(payload, "")
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("garbage header", func(t *testing.T) {
		_, err := newVerifier().Verify(payload, "t=abc,v1=zzz")
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("second v1 entry accepted", func(t *testing.T) {
		// Providers send multiple v1 signatures during secret rotation.
		good := Sign(secret, now, payload)
		ts, rest, ok := strings.Cut(good, ",")
		require.True(t, ok)
		_, err := newVerifier().Verify(payload, ts+",v1=deadbeef,"+rest)
		require.NoError(t, err)
	})
}

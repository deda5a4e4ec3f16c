// Package payment implements the hosted-checkout payment provider client and
// webhook verification for Stripe-compatible APIs.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/dinetab/dinetab/internal/domain/order"
)

var _ order.PaymentProvider = (*StripeClient)(nil)

// DefaultBaseURL is the production Stripe API endpoint.
const DefaultBaseURL = "https://api.stripe.com"

// StripeClient talks to the Stripe checkout-session API. Requests retry on
// transient failures; the caller's context bounds the total attempt time.
type StripeClient struct {
	baseURL   string
	secretKey string
	settleCur string
	http      *retryablehttp.Client
}

// ClientConfig configures a StripeClient.
type ClientConfig struct {
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
	// SecretKey is the API secret key used as a bearer token.
	SecretKey string
	// SettlementCurrency is the lowercase ISO currency code charged, e.g. "usd".
	SettlementCurrency string
}

// NewStripeClient creates a client with retrying HTTP transport.
func NewStripeClient(cfg ClientConfig) *StripeClient {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.Logger = nil

	return &StripeClient{
		baseURL:   strings.TrimRight(base, "/"),
		secretKey: cfg.SecretKey,
		settleCur: cfg.SettlementCurrency,
		http:      rc,
	}
}

// sessionResponse is the subset of the checkout-session object we read.
type sessionResponse struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateSession creates a hosted checkout session for the given lines. The
// metadata payload is forwarded verbatim; reconciliation depends on the
// orderId key it carries.
func (c *StripeClient) CreateSession(ctx context.Context, params order.CreateSessionParams) (*order.PaymentSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	form.Add("payment_method_types[]", "card")

	for i, line := range params.Lines {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[price_data][currency]", c.settleCur)
		form.Set(prefix+"[price_data][product_data][name]", line.Name)
		if line.Description != "" {
			form.Set(prefix+"[price_data][product_data][description]", line.Description)
		}
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(line.UnitCents, 10))
		form.Set(prefix+"[quantity]", strconv.Itoa(line.Quantity))
	}
	for k, v := range params.Metadata {
		form.Set("metadata["+k+"]", v)
	}

	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", form, &resp); err != nil {
		return nil, errors.Wrap(err, "create checkout session")
	}
	return &order.PaymentSession{ID: resp.ID, URL: resp.URL}, nil
}

// RetrieveSession returns the provider's authoritative payment status for a
// checkout session.
func (c *StripeClient) RetrieveSession(ctx context.Context, sessionID string) (string, error) {
	var resp sessionResponse
	path := "/v1/checkout/sessions/" + url.PathEscape(sessionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", errors.Wrapf(err, "retrieve checkout session %s", sessionID)
	}
	return resp.PaymentStatus, nil
}

func (c *StripeClient) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	if resp.StatusCode != http.StatusOK {
		var ae apiError
		if json.Unmarshal(data, &ae) == nil && ae.Error.Message != "" {
			return errors.Errorf("provider returned %d: %s", resp.StatusCode, ae.Error.Message)
		}
		return errors.Errorf("provider returned %d", resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

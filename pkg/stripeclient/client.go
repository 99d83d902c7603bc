/**
 * @description
 * This package provides a client for the Stripe REST API, covering the two
 * operations the onboarding flow needs: creating a hosted Checkout Session
 * and retrieving one to learn its payment status. Stripe's API is
 * form-encoded, so requests are built with url.Values rather than JSON.
 *
 * @dependencies
 * - context, net/http, net/url: Standard Go libraries.
 */
package stripeclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.stripe.com"

// Client is a client for the Stripe API.
type Client struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

// NewClient creates a new Stripe API client.
func NewClient(secretKey string) *Client {
	return &Client{
		BaseURL:   defaultBaseURL,
		SecretKey: secretKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SessionLineItem is one purchasable row on a Checkout Session.
type SessionLineItem struct {
	Name            string
	Currency        string
	UnitAmountMinor int64
	Quantity        int64
}

// CreateSessionParams holds everything needed to open a hosted checkout.
type CreateSessionParams struct {
	SuccessURL        string
	CancelURL         string
	CustomerEmail     string
	ClientReferenceID string
	Metadata          map[string]string
	LineItems         []SessionLineItem
}

// CheckoutSession is the subset of Stripe's session object the service reads.
type CheckoutSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"`
	Status        string `json:"status"`
	AmountTotal   int64  `json:"amount_total"`
	Currency      string `json:"currency"`
}

// ErrorResponse represents an error payload from the Stripe API.
type ErrorResponse struct {
	Err struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e *ErrorResponse) Error() string {
	if e.Err.Message != "" {
		return fmt.Sprintf("stripe api error: %s - %s", e.Err.Type, e.Err.Message)
	}
	return "unknown stripe api error"
}

// CreateCheckoutSession opens a hosted Checkout Session for the given line items.
func (c *Client) CreateCheckoutSession(ctx context.Context, params CreateSessionParams) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	if params.CustomerEmail != "" {
		form.Set("customer_email", params.CustomerEmail)
	}
	if params.ClientReferenceID != "" {
		form.Set("client_reference_id", params.ClientReferenceID)
	}
	for k, v := range params.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}
	for i, li := range params.LineItems {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[price_data][currency]", strings.ToLower(li.Currency))
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(li.UnitAmountMinor, 10))
		form.Set(prefix+"[price_data][product_data][name]", li.Name)
		form.Set(prefix+"[quantity]", strconv.FormatInt(li.Quantity, 10))
	}

	return c.doSession(ctx, http.MethodPost, "/v1/checkout/sessions", form)
}

// GetCheckoutSession retrieves an existing session by id.
func (c *Client) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	return c.doSession(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil)
}

func (c *Client) doSession(ctx context.Context, method, path string, form url.Values) (*CheckoutSession, error) {
	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute stripe request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read stripe response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=stripe_client path=%s status=%d msg=\"non-2xx response (unparsable error body)\"", path, resp.StatusCode)
			return nil, fmt.Errorf("failed to decode stripe error response (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=stripe_client path=%s status=%d code=%q message=%q", path, resp.StatusCode, errResp.Err.Code, errResp.Err.Message)
		return nil, &errResp
	}

	var session CheckoutSession
	if err := json.Unmarshal(bodyBytes, &session); err != nil {
		return nil, fmt.Errorf("failed to decode stripe session response: %w", err)
	}
	return &session, nil
}

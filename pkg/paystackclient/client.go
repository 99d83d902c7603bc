/**
 * @description
 * This package provides a client for the Paystack API. It covers transaction
 * initialization (which yields the hosted authorization URL the client
 * redirects to) and transaction verification by reference.
 *
 * @dependencies
 * - bytes, context, encoding/json, net/http: Standard Go libraries.
 */
package paystackclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://api.paystack.co"

// Client is a client for the Paystack API.
type Client struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

// NewClient creates a new Paystack API client.
func NewClient(secretKey string) *Client {
	return &Client{
		BaseURL:   defaultBaseURL,
		SecretKey: secretKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// InitializeRequest is the payload for starting a Paystack transaction.
// Amount is in kobo.
type InitializeRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Reference   string            `json:"reference,omitempty"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Currency    string            `json:"currency,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// InitializeResult carries the hosted-checkout handles back to the caller.
type InitializeResult struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// VerifyResult is the subset of the verification payload the service reads.
type VerifyResult struct {
	Status    string `json:"status"` // "success", "failed", "abandoned"
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"` // kobo
	Currency  string `json:"currency"`
	PaidAt    string `json:"paid_at"`
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// APIError represents a rejected Paystack call.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paystack api error (status %d): %s", e.StatusCode, e.Message)
}

// InitializeTransaction starts a hosted Paystack transaction.
func (c *Client) InitializeTransaction(ctx context.Context, reqPayload InitializeRequest) (*InitializeResult, error) {
	data, err := c.do(ctx, http.MethodPost, "/transaction/initialize", reqPayload)
	if err != nil {
		return nil, err
	}
	var result InitializeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode paystack initialize response: %w", err)
	}
	return &result, nil
}

// VerifyTransaction re-queries a transaction's status by reference.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*VerifyResult, error) {
	data, err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, err
	}
	var result VerifyResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode paystack verify response: %w", err)
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) (json.RawMessage, error) {
	var reqBody io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal paystack request: %w", err)
		}
		reqBody = bytes.NewBuffer(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create paystack request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute paystack request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read paystack response: %w", err)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		log.Printf("level=warn component=paystack_client path=%s status=%d msg=\"unparsable response body\"", path, resp.StatusCode)
		return nil, fmt.Errorf("failed to decode paystack response (status %d)", resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !envelope.Status {
		log.Printf("level=warn component=paystack_client path=%s status=%d message=%q", path, resp.StatusCode, envelope.Message)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: envelope.Message}
	}

	return envelope.Data, nil
}

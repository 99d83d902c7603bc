/**
 * @description
 * This package provides a client for the EmailJS REST API, used for all
 * outbound transactional email (submission confirmations, admin alerts,
 * welcome and status emails). Email is always best-effort in this system:
 * callers log failures and move on, so this client never needs retries.
 *
 * @dependencies
 * - bytes, context, encoding/json, net/http: Standard Go libraries.
 */
package emailclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.emailjs.com"

// Client is a client for the EmailJS send API.
type Client struct {
	BaseURL    string
	ServiceID  string
	UserID     string
	HTTPClient *http.Client
}

// NewClient creates a new EmailJS client bound to one service id.
func NewClient(serviceID, userID string) *Client {
	return &Client{
		BaseURL:   defaultBaseURL,
		ServiceID: serviceID,
		UserID:    userID,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type sendRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	TemplateParams map[string]string `json:"template_params"`
}

// Send dispatches one email through the given template. Template params carry
// the recipient address alongside the content fields, per EmailJS convention.
func (c *Client) Send(ctx context.Context, templateID string, params map[string]string) error {
	body, err := json.Marshal(sendRequest{
		ServiceID:      c.ServiceID,
		TemplateID:     templateID,
		UserID:         c.UserID,
		TemplateParams: params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1.0/email/send", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute email request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("emailjs send failed (status %d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Package processor is the HTTP client for the external payment processor.
// All amounts are cents; the order identity doubles as the idempotency key
// sent with every request.
package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrDeclined distinguishes a business decline from transport failures.
var ErrDeclined = errors.New("processor declined")

// Client calls the processor's authorization API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient instantiates the processor client with sane defaults.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("processor base URL is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}, nil
}

type authorizationRequest struct {
	OrderID     string `json:"orderId"`
	AmountCents int64  `json:"amountCents"`
}

type authorizationResponse struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

type operationRequest struct {
	OrderID     string `json:"orderId"`
	AmountCents int64  `json:"amountCents,omitempty"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Authorize requests a hold. A decline is reported through the response, not
// as an error.
func (c *Client) Authorize(ctx context.Context, orderID string, amountCents int64) (bool, string, error) {
	var result authorizationResponse
	err := c.post(ctx, "/authorizations", orderID, authorizationRequest{OrderID: orderID, AmountCents: amountCents}, &result)
	if err != nil {
		return false, "", err
	}
	return result.Approved, result.Reason, nil
}

// Capture transfers previously authorized funds.
func (c *Client) Capture(ctx context.Context, orderID string, amountCents int64) error {
	return c.post(ctx, "/captures", orderID, operationRequest{OrderID: orderID, AmountCents: amountCents}, nil)
}

// Void releases the hold on the instrument.
func (c *Client) Void(ctx context.Context, orderID string) error {
	return c.post(ctx, "/voids", orderID, operationRequest{OrderID: orderID}, nil)
}

// Refund returns captured funds.
func (c *Client) Refund(ctx context.Context, orderID string, amountCents int64) error {
	return c.post(ctx, "/refunds", orderID, operationRequest{OrderID: orderID, AmountCents: amountCents}, nil)
}

func (c *Client) post(ctx context.Context, path, idempotencyKey string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode processor request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build processor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call processor API: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		if result == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode processor response: %w", err)
		}
		return nil
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrDeclined, errorMessage(resp, resp.Status))
	default:
		return fmt.Errorf("processor API error: %s", errorMessage(resp, resp.Status))
	}
}

func errorMessage(resp *http.Response, fallback string) string {
	var body errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		if msg := strings.TrimSpace(body.Message); msg != "" {
			return msg
		}
	}
	return fallback
}

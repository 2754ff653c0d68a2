package opencat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client is the opencat API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option is a function that configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(client *Client) {
		client.httpClient.Timeout = d
	}
}

// NewClient creates a new opencat API client.
//
// Parameters:
//   - baseURL: The API base URL (e.g., "https://api.example.com")
//   - apiKey: An app API key (e.g., "oc_xxx")
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IngestTransaction records a store transaction. The call is idempotent on
// (store, store_transaction_id): replaying the same data is a no-op.
func (c *Client) IngestTransaction(ctx context.Context, req *IngestTransactionRequest) (*IngestTransactionResult, error) {
	u := fmt.Sprintf("%s/v1/transactions", c.baseURL)

	var result IngestTransactionResult
	if err := c.doRequest(ctx, http.MethodPost, u, req, &result); err != nil {
		return nil, fmt.Errorf("ingest transaction: %w", err)
	}
	return &result, nil
}

// GetSubscriber retrieves a subscriber's currently resolved entitlements and
// transaction history.
func (c *Client) GetSubscriber(ctx context.Context, appUserID string) (*SubscriberInfo, error) {
	u := fmt.Sprintf("%s/v1/subscribers/%s", c.baseURL, url.PathEscape(appUserID))

	var info SubscriberInfo
	if err := c.doRequest(ctx, http.MethodGet, u, nil, &info); err != nil {
		return nil, fmt.Errorf("get subscriber: %w", err)
	}
	return &info, nil
}

// ListEvents pages through the app's event log in ascending creation order.
// Pass the previous page's NextCursor as since; empty starts from the
// beginning.
func (c *Client) ListEvents(ctx context.Context, since string, limit int) (*EventPage, error) {
	u := fmt.Sprintf("%s/v1/events?since=%s&limit=%d", c.baseURL, url.QueryEscape(since), limit)

	var page EventPage
	if err := c.doRequest(ctx, http.MethodGet, u, nil, &page); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return &page, nil
}

// ReplayDelivery re-queues a dead-lettered webhook delivery with a fresh
// attempt budget.
func (c *Client) ReplayDelivery(ctx context.Context, deliveryID string) (*ReplayResult, error) {
	u := fmt.Sprintf("%s/v1/deliveries/%s/replay", c.baseURL, url.PathEscape(deliveryID))

	var result ReplayResult
	if err := c.doRequest(ctx, http.MethodPost, u, nil, &result); err != nil {
		return nil, fmt.Errorf("replay delivery: %w", err)
	}
	return &result, nil
}

// doRequest performs an HTTP request and decodes the response envelope.
func (c *Client) doRequest(ctx context.Context, method, url string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return fmt.Errorf("api error: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	if !apiResp.Success {
		if apiResp.Error != nil {
			return &APIError{
				StatusCode: resp.StatusCode,
				Type:       apiResp.Error.Type,
				Message:    apiResp.Error.Message,
			}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiResp.Message}
	}

	if result == nil || apiResp.Data == nil {
		return nil
	}

	// Re-marshal and unmarshal to convert Data to the target type
	dataBytes, err := json.Marshal(apiResp.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	if err := json.Unmarshal(dataBytes, result); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}

	return nil
}

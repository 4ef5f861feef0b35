package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/util"
)

// Client talks to the storefront REST backend that owns carts,
// addresses, profiles, and orders. Checkout treats it as the source
// of truth: carts and addresses are refetched on every checkout
// entry, never cached indefinitely.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// BackendError carries the backend's human-readable message for a
// rejected request; the message is surfaced verbatim to the user.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("storefront backend: %d %s", e.StatusCode, e.Message)
}

// NewClient creates a storefront client with a bounded per-request
// timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetCart fetches the current cart snapshot for the session.
func (c *Client) GetCart(ctx context.Context, session models.SessionContext) (models.CartSnapshot, error) {
	var cart models.CartSnapshot
	if err := c.get(ctx, session, "/api/cart", &cart); err != nil {
		return models.CartSnapshot{}, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

// GetAddresses fetches the session's address book.
func (c *Client) GetAddresses(ctx context.Context, session models.SessionContext) ([]models.Address, error) {
	var addresses []models.Address
	if err := c.get(ctx, session, "/api/addresses", &addresses); err != nil {
		return nil, fmt.Errorf("get addresses: %w", err)
	}
	return addresses, nil
}

// GetProfile fetches the user profile (phone fallback source).
func (c *Client) GetProfile(ctx context.Context, session models.SessionContext) (models.Profile, error) {
	var profile models.Profile
	if err := c.get(ctx, session, "/api/profile", &profile); err != nil {
		return models.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return profile, nil
}

// CreateOrder submits the order payload and returns the
// backend-assigned order id. Never retried: for online methods the
// payment has already been captured and a duplicate submission would
// double-order.
func (c *Client) CreateOrder(ctx context.Context, session models.SessionContext, order models.OrderRequest) (string, error) {
	ctx, span := util.StartSpan(ctx, "Storefront.CreateOrder")
	defer span.End()

	body, err := json.Marshal(order)
	if err != nil {
		return "", fmt.Errorf("marshal order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/orders", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req, session)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", c.decodeError(resp)
	}

	var result struct {
		OrderID string `json:"order_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode order response: %w", err)
	}
	if result.OrderID == "" {
		return "", fmt.Errorf("order response missing order_id")
	}
	return result.OrderID, nil
}

func (c *Client) get(ctx context.Context, session models.SessionContext, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.authorize(req, session)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.decodeError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request, session models.SessionContext) {
	if session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+session.Token)
	}
}

// decodeError extracts the backend's message field; when absent the
// raw status stands in.
func (c *Client) decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Message != "" {
		return &BackendError{StatusCode: resp.StatusCode, Message: payload.Message}
	}
	return &BackendError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
}

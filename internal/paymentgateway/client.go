package paymentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/frahmantamala/refund-management/internal"
	"github.com/frahmantamala/refund-management/internal/payment"
	"github.com/shopspring/decimal"
)

// Client talks to a remote payments service over HTTP. It satisfies the
// refund workflow's payment gateway when payments are owned by another
// system instead of the local database.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewClient(config Config, logger *slog.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		apiKey:     config.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "payment_gateway"),
	}
}

type paymentData struct {
	ID          int64           `json:"id"`
	Reference   string          `json:"reference"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type paymentResponse struct {
	Data paymentData `json:"data"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func (c *Client) GetPayment(ctx context.Context, id int64) (*payment.Payment, error) {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/payments/%d", id), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp, id); err != nil {
		return nil, err
	}

	var apiResponse paymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("failed to decode payment %d: %w", id, err)
	}

	d := apiResponse.Data
	return &payment.Payment{
		ID:        d.ID,
		Reference: d.Reference,
		Total:     d.TotalAmount,
		Status:    payment.Status(d.Status),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

func (c *Client) SetPaymentStatus(ctx context.Context, id int64, status payment.Status) error {
	body, err := json.Marshal(statusRequest{Status: string(status)})
	if err != nil {
		return fmt.Errorf("failed to marshal status request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/payments/%d/status", id), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp, id); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "payment status updated", "payment_id", id, "status", status)
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "payment gateway request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	return resp, nil
}

func (c *Client) checkStatus(resp *http.Response, id int64) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return internal.ErrPaymentNotFound.WithMessage("payment %d not found", id)
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("payments API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
}

// Package payment talks to the crypto payment provider: invoice creation,
// status polling, and webhook signature verification.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type InvoiceStatus string

const (
	StatusPending InvoiceStatus = "pending"
	StatusPaid    InvoiceStatus = "paid"
)

// Invoice is the provider's answer to a createInvoice call.
type Invoice struct {
	ID     string
	PayURL string
}

const defaultBaseURL = "https://pay.crypt.bot/api"

type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

type ClientOption func(*Client)

// WithBaseURL points the client at a different API root (tests, staging).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		c.http = h
	}
}

func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		token:   token,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiEnvelope struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  *apiError       `json:"error"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"name"`
}

// CreateInvoice asks the provider for a new invoice. The opaque payload comes
// back on the webhook and ties the payment to a buyer and lot.
func (c *Client) CreateInvoice(ctx context.Context, asset string, amount float64, description, payload string) (Invoice, error) {
	body, err := json.Marshal(map[string]string{
		"asset":       asset,
		"amount":      strconv.FormatFloat(amount, 'f', -1, 64),
		"description": description,
		"payload":     payload,
	})
	if err != nil {
		return Invoice{}, fmt.Errorf("marshal invoice request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/createInvoice", strings.NewReader(string(body)))
	if err != nil {
		return Invoice{}, fmt.Errorf("build invoice request: %w", err)
	}
	c.setHeaders(req)

	env, err := c.do(req)
	if err != nil {
		return Invoice{}, fmt.Errorf("create invoice: %w", err)
	}

	var result struct {
		InvoiceID int64  `json:"invoice_id"`
		PayURL    string `json:"pay_url"`
	}
	if err := json.Unmarshal(env.Result, &result); err != nil {
		return Invoice{}, fmt.Errorf("decode invoice: %w", err)
	}
	return Invoice{
		ID:     strconv.FormatInt(result.InvoiceID, 10),
		PayURL: result.PayURL,
	}, nil
}

// GetInvoiceStatus polls a single invoice. Anything the provider does not
// report as paid is treated as pending.
func (c *Client) GetInvoiceStatus(ctx context.Context, invoiceID string) (InvoiceStatus, error) {
	u := c.baseURL + "/getInvoices?invoice_ids=" + url.QueryEscape(invoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("build status request: %w", err)
	}
	c.setHeaders(req)

	env, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("get invoice status: %w", err)
	}

	var result struct {
		Items []struct {
			Status string `json:"status"`
		} `json:"items"`
	}
	if err := json.Unmarshal(env.Result, &result); err != nil {
		return "", fmt.Errorf("decode invoice status: %w", err)
	}
	if len(result.Items) == 0 {
		return StatusPending, nil
	}
	if result.Items[0].Status == string(StatusPaid) {
		return StatusPaid, nil
	}
	return StatusPending, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Crypto-Pay-API-Token", c.token)
	req.Header.Set("Content-Type", "application/json")
}

func (c *Client) do(req *http.Request) (apiEnvelope, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return apiEnvelope{}, err
	}
	defer resp.Body.Close()

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return apiEnvelope{}, fmt.Errorf("decode response: %w", err)
	}
	if !env.OK {
		if env.Error != nil {
			return apiEnvelope{}, fmt.Errorf("provider error %d: %s", env.Error.Code, env.Error.Message)
		}
		return apiEnvelope{}, fmt.Errorf("provider error: status %d", resp.StatusCode)
	}
	return env, nil
}

// Package paypal is a minimal client for the PayPal Orders v2 REST API:
// create an order intent, then capture it. Responses are decoded into one
// typed struct per shape instead of passing dynamic maps around.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront.git/internal/shop"
)

const (
	IntentCapture   = "CAPTURE"
	StatusCreated   = "CREATED"
	StatusCompleted = "COMPLETED"
	StatusPending   = "PENDING" // eCheck dsb, settle belakangan
	StatusDeclined  = "DECLINED"
	StatusFailed    = "FAILED"
)

type Client struct {
	http     *http.Client
	baseURL  string
	clientID string
	secret   string
}

func New(clientID, secret, mode string) *Client {
	base := "https://api-m.sandbox.paypal.com"
	if mode == "live" {
		base = "https://api-m.paypal.com"
	}
	return &Client{
		http:     &http.Client{Timeout: 15 * time.Second},
		baseURL:  base,
		clientID: clientID,
		secret:   secret,
	}
}

// NewWithBaseURL keeps the base URL injectable (tests point it at httptest).
func NewWithBaseURL(clientID, secret, baseURL string) *Client {
	c := New(clientID, secret, "sandbox")
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

// OrderCreated: response /v2/checkout/orders.
type OrderCreated struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []Link `json:"links"`
}

// ApprovalLink returns the buyer redirect target, empty when absent.
func (o OrderCreated) ApprovalLink() string {
	for _, l := range o.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			return l.Href
		}
	}
	return ""
}

// CaptureResult: response capture, di-flatten ke field yg kita butuhkan.
type CaptureResult struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	CaptureID string `json:"-"`
}

type captureResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

type errorBody struct {
	Name             string `json:"name"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *Client) token(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tok tokenResponse
	if err := c.do(req, &tok); err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", shop.E(shop.KindProvider, "paypal: empty access token")
	}
	return tok.AccessToken, nil
}

// CreateOrder membuat payment intent senilai total order. Belum ada efek di
// sisi kita; boleh di-retry.
func (c *Client) CreateOrder(ctx context.Context, total, currency string) (OrderCreated, error) {
	body := map[string]any{
		"intent": IntentCapture,
		"purchase_units": []map[string]any{
			{"amount": map[string]string{"currency_code": currency, "value": total}},
		},
	}
	var out OrderCreated
	if err := c.post(ctx, "/v2/checkout/orders", body, &out); err != nil {
		return OrderCreated{}, err
	}
	return out, nil
}

// CaptureOrder finalizes an approved intent into settled funds.
func (c *Client) CaptureOrder(ctx context.Context, paypalOrderID string) (CaptureResult, error) {
	var raw captureResponse
	if err := c.post(ctx, "/v2/checkout/orders/"+paypalOrderID+"/capture", nil, &raw); err != nil {
		return CaptureResult{}, err
	}
	res := CaptureResult{ID: raw.ID, Status: raw.Status}
	for _, pu := range raw.PurchaseUnits {
		if len(pu.Payments.Captures) > 0 {
			res.CaptureID = pu.Payments.Captures[0].ID
			break
		}
	}
	return res, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	tok, err := c.token(ctx)
	if err != nil {
		return err
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return shop.Wrap(shop.KindProvider, "paypal request failed", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return shop.Wrap(shop.KindProvider, "paypal read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(b, &eb)
		msg := eb.Message
		if msg == "" {
			msg = eb.ErrorDescription
		}
		if msg == "" {
			msg = resp.Status
		}
		return shop.Ef(shop.KindProvider, "paypal: %s", msg)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return shop.Wrap(shop.KindProvider, fmt.Sprintf("paypal: decode %s response", req.URL.Path), err)
	}
	return nil
}

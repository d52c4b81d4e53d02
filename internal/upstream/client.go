// Package upstream is the HTTP client for the logistics platform API. It
// owns request signing, response envelope decoding and error
// classification; the pricing and booking packages consume it through
// narrow interfaces.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/example/courier-booking/internal/models"
)

// Client talks to the logistics platform API.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{BaseURL: baseURL, Token: token, HTTP: &http.Client{Timeout: timeout}}
}

// envelope is the platform's uniform response shape. Data holds the
// payload on success; Message carries the human-readable failure text.
type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("upstream: encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return fmt.Errorf("upstream: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("upstream: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("upstream: read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 400 {
			return NewAPIError(resp.StatusCode, "")
		}
		return fmt.Errorf("upstream: decode response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return NewAPIError(resp.StatusCode, env.Message)
	}
	if out == nil {
		return nil
	}
	payload := env.Data
	if payload == nil {
		// Some endpoints reply with the bare object, no envelope; the raw
		// body is the payload then.
		payload = raw
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("upstream: decode payload: %w", err)
	}
	return nil
}

// --- Pricing ---

// ChargeRequest prices a single pickup -> dropoff leg.
type ChargeRequest struct {
	Pickup     models.Coord       `json:"pickup"`
	Dropoff    models.Coord       `json:"dropoff"`
	Vehicle    models.VehicleType `json:"vehicle_type"`
	Urgent     bool               `json:"is_urgent"`
	UrgencyFee int64              `json:"urgency_fee,omitempty"`
}

func (c *Client) CalculateCharge(ctx context.Context, req ChargeRequest) (*models.PriceQuote, error) {
	var q models.PriceQuote
	if err := c.do(ctx, http.MethodPost, "/order/calculate-charge", req, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// MultiChargeRequest prices a pickup with one or more dropoff legs.
type MultiChargeRequest struct {
	Pickup     models.Coord       `json:"pickup"`
	Dropoffs   []models.Coord     `json:"dropoffs"`
	Vehicle    models.VehicleType `json:"vehicle_type"`
	Urgent     bool               `json:"is_urgent"`
	UrgencyFee int64              `json:"urgency_fee,omitempty"`
}

func (c *Client) CalculateMultiDeliveryCharge(ctx context.Context, req MultiChargeRequest) (*models.PriceQuote, error) {
	var q models.PriceQuote
	if err := c.do(ctx, http.MethodPost, "/order/calculate-multiple-delivery-charge", req, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// --- Orders ---

// CreateOrderRequest is the payload for a single-delivery order.
type CreateOrderRequest struct {
	PickupAddress string              `json:"pickup_address"`
	Pickup        models.Coord        `json:"pickup"`
	Stop          models.DeliveryStop `json:"delivery"`
	Sender        models.Contact      `json:"sender"`
	Vehicle       models.VehicleType  `json:"vehicle_type"`
	Urgent        bool                `json:"is_urgent"`
	UrgencyFee    int64               `json:"urgency_fee,omitempty"`
	Note          string              `json:"note,omitempty"`
}

func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	var o models.Order
	if err := c.do(ctx, http.MethodPost, "/order", req, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateMultiOrderRequest is the payload for a multi-delivery order.
type CreateMultiOrderRequest struct {
	PickupAddress string                `json:"pickup_address"`
	Pickup        models.Coord          `json:"pickup"`
	Stops         []models.DeliveryStop `json:"deliveries"`
	Sender        models.Contact        `json:"sender"`
	Vehicle       models.VehicleType    `json:"vehicle_type"`
	Urgent        bool                  `json:"is_urgent"`
	UrgencyFee    int64                 `json:"urgency_fee,omitempty"`
	Note          string                `json:"note,omitempty"`
}

func (c *Client) CreateMultiDeliveryOrder(ctx context.Context, req CreateMultiOrderRequest) (*models.Order, error) {
	var o models.Order
	if err := c.do(ctx, http.MethodPost, "/order/multiple-delivery", req, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// --- Address book ---

func (c *Client) AddressBook(ctx context.Context, query string) ([]models.AddressBookEntry, error) {
	var entries []models.AddressBookEntry
	path := "/order/address-book?query=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

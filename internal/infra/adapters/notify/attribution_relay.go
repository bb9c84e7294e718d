package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"pix-checkout/internal/domain"
	"pix-checkout/internal/domain/ports/adapter"
)

var _ adapter.AttributionSender = (*AttributionRelay)(nil)

const attributionTimeLayout = "2006-01-02 15:04:05"

// AttributionRelay forwards order-shaped conversion events to a tracking API.
type AttributionRelay struct {
	url      string
	token    string
	platform string
	client   *http.Client
}

func NewAttributionRelay(url, token, platform string, timeout time.Duration) *AttributionRelay {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AttributionRelay{url: url, token: token, platform: platform, client: &http.Client{Timeout: timeout}}
}

type attributionCustomer struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Phone    *string `json:"phone"`
	Document *string `json:"document"`
}

type attributionProduct struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	PlanID       *string `json:"planId"`
	PlanName     *string `json:"planName"`
	Quantity     int     `json:"quantity"`
	PriceInCents int64   `json:"priceInCents"`
}

type attributionCommission struct {
	TotalPriceInCents     int64 `json:"totalPriceInCents"`
	GatewayFeeInCents     int64 `json:"gatewayFeeInCents"`
	UserCommissionInCents int64 `json:"userCommissionInCents"`
}

type attributionPayload struct {
	Event              string                `json:"event,omitempty"`
	OrderID            string                `json:"orderId"`
	Platform           string                `json:"platform"`
	PaymentMethod      string                `json:"paymentMethod"`
	Status             string                `json:"status"`
	CreatedAt          string                `json:"createdAt"`
	ApprovedDate       *string               `json:"approvedDate"`
	RefundedAt         *string               `json:"refundedAt"`
	Customer           attributionCustomer   `json:"customer"`
	Products           []attributionProduct  `json:"products"`
	TrackingParameters map[string]*string    `json:"trackingParameters"`
	Commission         attributionCommission `json:"commission"`
	Value              float64               `json:"value"`
	Currency           string                `json:"currency"`
}

// trackingKeys are always present in the payload, null when unknown.
var trackingKeys = []string{"src", "sck", "utm_source", "utm_campaign", "utm_medium", "utm_content", "utm_term"}

func (r *AttributionRelay) buildPayload(e adapter.AttributionEvent) attributionPayload {
	p := attributionPayload{
		Event:         e.Name,
		OrderID:       e.CorrelationID,
		Platform:      r.platform,
		PaymentMethod: "pix",
		Status:        string(e.Status),
		CreatedAt:     e.CreatedAt.UTC().Format(attributionTimeLayout),
		Customer: attributionCustomer{
			Name:     e.Customer.Name,
			Email:    e.Customer.Email,
			Phone:    nullable(e.Customer.Phone),
			Document: nullable(e.Customer.CPF),
		},
		Commission: attributionCommission{
			TotalPriceInCents:     e.AmountCents,
			UserCommissionInCents: e.AmountCents,
		},
		Value:    e.Value().InexactFloat64(),
		Currency: e.Currency,
	}
	if e.ApprovedAt != nil {
		s := e.ApprovedAt.UTC().Format(attributionTimeLayout)
		p.ApprovedDate = &s
	}
	for _, pr := range e.Products {
		qty := pr.Quantity
		if qty <= 0 {
			qty = 1
		}
		p.Products = append(p.Products, attributionProduct{
			ID:           pr.ID,
			Name:         pr.Name,
			PlanID:       nullable(pr.PlanID),
			PlanName:     nullable(pr.PlanName),
			Quantity:     qty,
			PriceInCents: pr.PriceInCents,
		})
	}
	p.TrackingParameters = make(map[string]*string, len(trackingKeys))
	for _, k := range trackingKeys {
		p.TrackingParameters[k] = nullable(e.Tracking[k])
	}
	for k, v := range e.Tracking {
		if _, ok := p.TrackingParameters[k]; !ok {
			p.TrackingParameters[k] = nullable(v)
		}
	}
	return p
}

func (r *AttributionRelay) Send(ctx context.Context, e adapter.AttributionEvent) error {
	if r.url == "" {
		return &domain.NotificationError{Channel: "attribution", Err: errors.New("relay url not configured")}
	}
	b, err := json.Marshal(r.buildPayload(e))
	if err != nil {
		return &domain.NotificationError{Channel: "attribution", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(b))
	if err != nil {
		return &domain.NotificationError{Channel: "attribution", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("x-api-token", r.token)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return &domain.NotificationError{Channel: "attribution", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &domain.NotificationError{Channel: "attribution", Err: fmt.Errorf("relay http %d: %s", resp.StatusCode, raw)}
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

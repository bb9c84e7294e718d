// File: internal/infra/adapters/payment/openpix_gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pix-checkout/internal/domain"
	"pix-checkout/internal/domain/ports/adapter"
	"pix-checkout/internal/infra/metrics"
)

var _ adapter.PixGateway = (*OpenPixGateway)(nil)

const maxErrorBody = 512

// OpenPixGateway implements adapter.PixGateway against the OpenPix REST API
// (or any provider that speaks the same charge contract).
type OpenPixGateway struct {
	appID   string
	baseURL string
	client  *http.Client
}

func NewOpenPixGateway(baseURL, appID string, timeout time.Duration) (*OpenPixGateway, error) {
	if appID == "" {
		return nil, errors.New("pix app id empty")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid pix base url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OpenPixGateway{
		appID:   appID,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (g *OpenPixGateway) Name() string { return "openpix" }

type chargeCustomer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	TaxID string `json:"taxID,omitempty"`
}

type createChargeBody struct {
	CorrelationID string         `json:"correlationID"`
	Value         int64          `json:"value"`
	Comment       string         `json:"comment,omitempty"`
	Customer      chargeCustomer `json:"customer"`
}

type chargeEnvelope struct {
	Charge *struct {
		CorrelationID string     `json:"correlationID"`
		Status        string     `json:"status"`
		BRCode        string     `json:"brCode"`
		QRCodeImage   string     `json:"qrCodeImage"`
		GlobalID      string     `json:"globalID"`
		PaidAt        *time.Time `json:"paidAt"`
	} `json:"charge"`
}

// CreateCharge calls POST /charge. The response must carry a brCode; anything
// else is reported as a gateway error.
func (g *OpenPixGateway) CreateCharge(ctx context.Context, req adapter.ChargeRequest) (*adapter.Charge, error) {
	const op = "create_charge"
	if req.CorrelationID == "" || req.ValueCents <= 0 {
		return nil, &domain.GatewayError{Op: op, Err: domain.ErrInvalidArgument}
	}
	body := createChargeBody{
		CorrelationID: req.CorrelationID,
		Value:         req.ValueCents,
		Comment:       req.Comment,
		Customer: chargeCustomer{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
			TaxID: req.Customer.CPF,
		},
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, &domain.GatewayError{Op: op, Err: err}
	}

	var out chargeEnvelope
	if err := g.do(ctx, op, http.MethodPost, g.baseURL+"/charge", bytes.NewReader(b), &out); err != nil {
		return nil, err
	}
	if out.Charge == nil || out.Charge.BRCode == "" {
		return nil, &domain.GatewayError{Op: op, Err: errors.New("response has no charge brCode")}
	}
	return &adapter.Charge{
		CorrelationID: req.CorrelationID,
		QRCodeImage:   out.Charge.QRCodeImage,
		BRCode:        out.Charge.BRCode,
		GlobalID:      out.Charge.GlobalID,
	}, nil
}

// GetChargeStatus calls GET /charge/{correlationID}.
func (g *OpenPixGateway) GetChargeStatus(ctx context.Context, correlationID string) (*adapter.ChargeStatus, error) {
	const op = "get_charge_status"
	if correlationID == "" {
		return nil, &domain.GatewayError{Op: op, Err: domain.ErrInvalidArgument}
	}
	var out chargeEnvelope
	endpoint := g.baseURL + "/charge/" + url.PathEscape(correlationID)
	if err := g.do(ctx, op, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	if out.Charge == nil {
		return nil, &domain.GatewayError{Op: op, Err: errors.New("response has no charge")}
	}
	st := adapter.ChargeState(strings.ToUpper(out.Charge.Status))
	if !st.Valid() {
		return nil, &domain.GatewayError{Op: op, Err: fmt.Errorf("unknown charge status %q", out.Charge.Status)}
	}
	return &adapter.ChargeStatus{Status: st, PaidAt: out.Charge.PaidAt}, nil
}

func (g *OpenPixGateway) do(ctx context.Context, op, method, endpoint string, body io.Reader, out any) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveGateway(op, time.Since(start).Seconds(), err == nil) }()

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return &domain.GatewayError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", g.appID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return &domain.GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.GatewayError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &domain.GatewayError{Op: op, StatusCode: resp.StatusCode, Body: truncate(string(raw), maxErrorBody)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.GatewayError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

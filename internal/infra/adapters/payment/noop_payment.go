package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pix-checkout/internal/domain"
	"pix-checkout/internal/domain/ports/adapter"
)

var _ adapter.PixGateway = (*NoopGateway)(nil)

// NoopGateway is an in-memory provider for dev mode and tests. Charges stay
// ACTIVE until Complete or Expire is called.
type NoopGateway struct {
	mu      sync.Mutex
	seq     int64
	charges map[string]*noopCharge
	now     func() time.Time
}

type noopCharge struct {
	amount int64
	status adapter.ChargeStatus
}

func NewNoopGateway() *NoopGateway {
	return &NoopGateway{charges: make(map[string]*noopCharge), now: time.Now}
}

func (g *NoopGateway) Name() string { return "noop" }

func (g *NoopGateway) CreateCharge(ctx context.Context, req adapter.ChargeRequest) (*adapter.Charge, error) {
	if req.CorrelationID == "" || req.ValueCents <= 0 {
		return nil, &domain.GatewayError{Op: "create_charge", Err: domain.ErrInvalidArgument}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.charges[req.CorrelationID]; ok {
		return nil, &domain.GatewayError{Op: "create_charge", StatusCode: 400, Body: "correlationID already used"}
	}
	g.seq++
	g.charges[req.CorrelationID] = &noopCharge{
		amount: req.ValueCents,
		status: adapter.ChargeStatus{Status: adapter.ChargeActive},
	}
	return &adapter.Charge{
		CorrelationID: req.CorrelationID,
		BRCode:        fmt.Sprintf("00020126noop%s5204000053039865405%d", req.CorrelationID, req.ValueCents),
		QRCodeImage:   "https://example.test/qr/" + req.CorrelationID + ".png",
		GlobalID:      fmt.Sprintf("noop-%d", g.seq),
	}, nil
}

func (g *NoopGateway) GetChargeStatus(ctx context.Context, correlationID string) (*adapter.ChargeStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.charges[correlationID]
	if !ok {
		return nil, &domain.GatewayError{Op: "get_charge_status", StatusCode: 404, Body: "charge not found"}
	}
	st := c.status
	return &st, nil
}

// Complete marks a charge as paid.
func (g *NoopGateway) Complete(correlationID string) error {
	return g.set(correlationID, adapter.ChargeCompleted)
}

func (g *NoopGateway) Expire(correlationID string) error {
	return g.set(correlationID, adapter.ChargeExpired)
}

func (g *NoopGateway) set(correlationID string, st adapter.ChargeState) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.charges[correlationID]
	if !ok {
		return domain.ErrNotFound
	}
	if c.status.Status != adapter.ChargeActive {
		return domain.ErrInvalidTransition
	}
	c.status.Status = st
	if st == adapter.ChargeCompleted {
		t := g.now().UTC()
		c.status.PaidAt = &t
	}
	return nil
}

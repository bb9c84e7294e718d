package adapter

import (
	"context"
	"time"

	"pix-checkout/internal/domain/model"
)

// ChargeRequest is what the checkout sends to the PIX provider.
type ChargeRequest struct {
	CorrelationID string
	ValueCents    int64
	Comment       string
	Customer      model.Customer
}

// Charge is an issued PIX charge.
type Charge struct {
	CorrelationID string
	QRCodeImage   string // image URL of the QR code
	BRCode        string // copy-and-paste payload
	GlobalID      string // provider charge id
}

type ChargeState string

const (
	ChargeActive    ChargeState = "ACTIVE"
	ChargeCompleted ChargeState = "COMPLETED"
	ChargeExpired   ChargeState = "EXPIRED"
)

func (s ChargeState) Valid() bool {
	return s == ChargeActive || s == ChargeCompleted || s == ChargeExpired
}

type ChargeStatus struct {
	Status ChargeState
	PaidAt *time.Time
}

// PixGateway is the hex port for PIX providers.
type PixGateway interface {
	Name() string

	// CreateCharge issues a charge. Non-2xx responses surface as *domain.GatewayError.
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
	// GetChargeStatus is read-only and safe to call repeatedly.
	GetChargeStatus(ctx context.Context, correlationID string) (*ChargeStatus, error)
}

type ChargeEventKind string

const (
	ChargeEventNone      ChargeEventKind = "none"      // payload carried no charge object
	ChargeEventOther     ChargeEventKind = "other"     // some other provider event
	ChargeEventCompleted ChargeEventKind = "completed" // charge-completed notification
)

// ChargeEvent is a provider webhook after boundary validation.
type ChargeEvent struct {
	Kind          ChargeEventKind
	Event         string
	CorrelationID string
	Status        ChargeState
}

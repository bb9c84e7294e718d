package adapter

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"pix-checkout/internal/domain/model"
)

type Email struct {
	To      string
	Subject string
	HTML    string
}

// EmailSender delivers one message through the email relay.
type EmailSender interface {
	Send(ctx context.Context, e Email) (messageID string, err error)
}

type AttributionStatus string

const (
	AttributionWaitingPayment AttributionStatus = "waiting_payment"
	AttributionPaid           AttributionStatus = "paid"
	AttributionRefunded       AttributionStatus = "refunded"
)

type AttributionProduct struct {
	ID           string
	Name         string
	PlanID       string
	PlanName     string
	Quantity     int
	PriceInCents int64
}

// AttributionEvent is a conversion record forwarded to the attribution relay.
// AmountCents always comes from the stored order or the charge snapshot.
type AttributionEvent struct {
	Name          string // e.g. "Purchase"
	Status        AttributionStatus
	OrderID       string
	CorrelationID string
	Customer      model.Customer
	Products      []AttributionProduct
	Tracking      map[string]string
	AmountCents   int64
	Currency      string
	CreatedAt     time.Time
	ApprovedAt    *time.Time
}

// Value is the amount in currency units (amount/100).
func (e AttributionEvent) Value() decimal.Decimal {
	return decimal.New(e.AmountCents, -2)
}

type AttributionSender interface {
	Send(ctx context.Context, e AttributionEvent) error
}

// MerchantAlerter pushes a short text to the merchant (e.g. a Telegram chat).
type MerchantAlerter interface {
	Alert(ctx context.Context, text string) error
}

// Notifier is the best-effort dispatcher used on settlement paths. None of its
// methods return errors; failures are logged and counted by the implementation.
type Notifier interface {
	SendEmail(ctx context.Context, e Email) bool
	SendAttribution(ctx context.Context, e AttributionEvent)
	AlertMerchant(ctx context.Context, text string)
}

package model

import (
	"time"

	"pix-checkout/internal/domain"
)

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "PENDING"  // charge issued, awaiting payment
	OrderStatusApproved OrderStatus = "APPROVED" // provider reported the charge as completed
	OrderStatusExpired  OrderStatus = "EXPIRED"  // charge expired unpaid
	OrderStatusRefunded OrderStatus = "REFUNDED" // merchant refunded an approved order
)

// orderTransitions lists, for each status, the statuses it may move to.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:  {OrderStatusApproved, OrderStatusExpired},
	OrderStatusApproved: {OrderStatusRefunded},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusApproved, OrderStatusExpired, OrderStatusRefunded:
		return true
	}
	return false
}

// CanTransitionTo reports whether s -> next is an allowed move.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, n := range orderTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Predecessors returns every status from which next can be reached.
// An empty result means next is never a valid transition target.
func Predecessors(next OrderStatus) []OrderStatus {
	var out []OrderStatus
	for from, tos := range orderTransitions {
		for _, to := range tos {
			if to == next {
				out = append(out, from)
			}
		}
	}
	return out
}

// Customer is the buyer captured on the checkout form.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	CPF   string `json:"cpf,omitempty"`
}

// Order is created the moment a PIX charge is issued and only mutated by settlement.
type Order struct {
	ID                 string            `json:"id"`
	CorrelationID      string            `json:"correlationId"`
	ProductID          string            `json:"productId"`
	PlanID             string            `json:"planId"`
	OrderBumpID        *string           `json:"orderBumpId,omitempty"`
	Customer           Customer          `json:"customer"`
	Amount             int64             `json:"amount"` // cents
	Status             OrderStatus       `json:"status"`
	PixCopyPaste       string            `json:"pixCopyPaste"`
	PixQRCode          string            `json:"pixQrCode"`
	PixChargeID        string            `json:"pixChargeId"`
	CreatedAt          time.Time         `json:"createdAt"`
	PaidAt             *time.Time        `json:"paidAt,omitempty"`
	TrackingParameters map[string]string `json:"trackingParameters,omitempty"`
}

// Validate checks the fields a store requires before persisting an order.
func (o *Order) Validate() error {
	if o == nil || o.ID == "" || o.CorrelationID == "" || o.ProductID == "" || o.PlanID == "" {
		return domain.ErrInvalidArgument
	}
	if o.Customer.Name == "" || o.Customer.Email == "" {
		return domain.ErrInvalidArgument
	}
	if o.Amount <= 0 || !o.Status.Valid() {
		return domain.ErrInvalidArgument
	}
	return nil
}

// Clone returns a deep copy so callers can't mutate stored state.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	cp := *o
	if o.OrderBumpID != nil {
		id := *o.OrderBumpID
		cp.OrderBumpID = &id
	}
	if o.PaidAt != nil {
		t := *o.PaidAt
		cp.PaidAt = &t
	}
	if o.TrackingParameters != nil {
		cp.TrackingParameters = make(map[string]string, len(o.TrackingParameters))
		for k, v := range o.TrackingParameters {
			cp.TrackingParameters[k] = v
		}
	}
	return &cp
}

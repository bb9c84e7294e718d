package model

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"pix-checkout/internal/domain"
)

// CheckoutForm is the buyer data submitted on the public checkout page.
type CheckoutForm struct {
	Name  string `json:"name" validate:"required,min=2,max=120"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required,br_phone"`
	CPF   string `json:"cpf" validate:"omitempty,cpf"`
}

// Normalize trims whitespace and strips formatting from phone and CPF.
func (f CheckoutForm) Normalize() CheckoutForm {
	return CheckoutForm{
		Name:  strings.TrimSpace(f.Name),
		Email: strings.ToLower(strings.TrimSpace(f.Email)),
		Phone: DigitsOnly(f.Phone),
		CPF:   DigitsOnly(f.CPF),
	}
}

func (f CheckoutForm) Customer() Customer {
	return Customer{Name: f.Name, Email: f.Email, Phone: f.Phone, CPF: f.CPF}
}

var (
	validateOnce sync.Once
	formValidate *validator.Validate
)

func formValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("br_phone", func(fl validator.FieldLevel) bool {
			n := len(DigitsOnly(fl.Field().String()))
			return n == 10 || n == 11
		})
		_ = v.RegisterValidation("cpf", func(fl validator.FieldLevel) bool {
			return ValidCPF(fl.Field().String())
		})
		formValidate = v
	})
	return formValidate
}

// ValidateCheckoutForm runs the local form checks. CPF is mandatory only when
// the merchant enabled it in Settings. Returns domain.ValidationErrors.
func ValidateCheckoutForm(f CheckoutForm, requireCPF bool) error {
	var out domain.ValidationErrors
	if err := formValidator().Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			out = append(out, &domain.ValidationError{Field: fe.Field(), Reason: reasonFor(fe.Tag())})
		}
	}
	if requireCPF && f.CPF == "" {
		out = append(out, &domain.ValidationError{Field: "cpf", Reason: reasonFor("required")})
	}
	if len(out) > 0 {
		return out
	}
	return nil
}

func reasonFor(tag string) string {
	switch tag {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "br_phone":
		return "must have 10 or 11 digits"
	case "cpf":
		return "must be a valid CPF"
	case "min", "max":
		return "has an invalid length"
	}
	return "is invalid"
}

// DigitsOnly drops every non-digit rune.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidCPF checks length and both verifier digits of a Brazilian CPF.
func ValidCPF(s string) bool {
	d := DigitsOnly(s)
	if len(d) != 11 {
		return false
	}
	same := true
	for i := 1; i < 11; i++ {
		if d[i] != d[0] {
			same = false
			break
		}
	}
	if same {
		return false
	}
	check := func(n int) byte {
		sum := 0
		for i := 0; i < n; i++ {
			sum += int(d[i]-'0') * (n + 1 - i)
		}
		r := sum * 10 % 11
		if r == 10 {
			r = 0
		}
		return byte(r) + '0'
	}
	return check(9) == d[9] && check(10) == d[10]
}

// TotalAmount is the charge value: plan price plus the selected bump, in cents.
func TotalAmount(plan Plan, bump *OrderBump) int64 {
	total := plan.Price
	if bump != nil {
		total += bump.Price
	}
	return total
}

// ChargeSnapshot freezes everything a charge was created with. Settlement
// reads only from it, so later catalog edits can't change what was sold.
type ChargeSnapshot struct {
	CorrelationID string
	Amount        int64
	Customer      Customer
	Product       Product
	Plan          Plan
	Bump          *OrderBump
	Tracking      map[string]string
	CreatedAt     time.Time
}

// NewChargeSnapshot deep-copies its inputs.
func NewChargeSnapshot(correlationID string, customer Customer, product Product, plan Plan, bump *OrderBump, tracking map[string]string, at time.Time) ChargeSnapshot {
	product.Deliverables = append([]Deliverable(nil), product.Deliverables...)
	var b *OrderBump
	if bump != nil {
		cp := *bump
		cp.Deliverables = append([]Deliverable(nil), bump.Deliverables...)
		b = &cp
	}
	var tr map[string]string
	if len(tracking) > 0 {
		tr = make(map[string]string, len(tracking))
		for k, v := range tracking {
			tr[k] = v
		}
	}
	return ChargeSnapshot{
		CorrelationID: correlationID,
		Amount:        TotalAmount(plan, b),
		Customer:      customer,
		Product:       product,
		Plan:          plan,
		Bump:          b,
		Tracking:      tr,
		CreatedAt:     at,
	}
}

// Deliverables returns the product's deliverables followed by the bump's.
func (s ChargeSnapshot) Deliverables() []Deliverable {
	out := append([]Deliverable(nil), s.Product.Deliverables...)
	if s.Bump != nil {
		out = append(out, s.Bump.Deliverables...)
	}
	return out
}

// NewPendingOrder builds the order persisted right after a charge is issued.
func (s ChargeSnapshot) NewPendingOrder(id, brCode, qrCodeImage, chargeID string) *Order {
	o := &Order{
		ID:                 id,
		CorrelationID:      s.CorrelationID,
		ProductID:          s.Product.ID,
		PlanID:             s.Plan.ID,
		Customer:           s.Customer,
		Amount:             s.Amount,
		Status:             OrderStatusPending,
		PixCopyPaste:       brCode,
		PixQRCode:          qrCodeImage,
		PixChargeID:        chargeID,
		CreatedAt:          s.CreatedAt,
		TrackingParameters: s.Tracking,
	}
	if s.Bump != nil {
		bid := s.Bump.ID
		o.OrderBumpID = &bid
	}
	return o.Clone()
}

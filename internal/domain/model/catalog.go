package model

import (
	"time"

	"pix-checkout/internal/domain"
)

type RecurringInterval string

const (
	RecurringNone    RecurringInterval = ""
	RecurringMonthly RecurringInterval = "monthly"
	RecurringYearly  RecurringInterval = "yearly"
)

type DeliverableKind string

const (
	DeliverableAccess   DeliverableKind = "access"   // members area / course link
	DeliverableDownload DeliverableKind = "download" // file link
)

// Deliverable is what the buyer receives once the order is approved.
type Deliverable struct {
	Name string          `json:"name"`
	Kind DeliverableKind `json:"kind"`
	URL  string          `json:"url"`
}

type Product struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	ImageURL     string        `json:"imageUrl,omitempty"`
	Deliverables []Deliverable `json:"deliverables,omitempty"`
	Active       bool          `json:"active"`
	CreatedAt    time.Time     `json:"createdAt"`
}

func (p *Product) Validate() error {
	if p == nil || p.ID == "" || p.Name == "" {
		return domain.ErrInvalidArgument
	}
	return validateDeliverables(p.Deliverables)
}

// Plan is a price point of a product.
type Plan struct {
	ID                string            `json:"id"`
	ProductID         string            `json:"productId"`
	Name              string            `json:"name"`
	Price             int64             `json:"price"` // cents
	IsRecurring       bool              `json:"isRecurring"`
	RecurringInterval RecurringInterval `json:"recurringInterval,omitempty"`
	Active            bool              `json:"active"`
	CreatedAt         time.Time         `json:"createdAt"`
}

func (p *Plan) Validate() error {
	if p == nil || p.ID == "" || p.ProductID == "" || p.Name == "" || p.Price <= 0 {
		return domain.ErrInvalidArgument
	}
	switch p.RecurringInterval {
	case RecurringNone:
		if p.IsRecurring {
			return domain.ErrInvalidArgument
		}
	case RecurringMonthly, RecurringYearly:
		if !p.IsRecurring {
			return domain.ErrInvalidArgument
		}
	default:
		return domain.ErrInvalidArgument
	}
	return nil
}

// OrderBump is an add-on offered on a product's checkout.
type OrderBump struct {
	ID           string        `json:"id"`
	ProductID    string        `json:"productId"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Price        int64         `json:"price"` // cents
	Deliverables []Deliverable `json:"deliverables,omitempty"`
	Active       bool          `json:"active"`
	CreatedAt    time.Time     `json:"createdAt"`
}

func (b *OrderBump) Validate() error {
	if b == nil || b.ID == "" || b.ProductID == "" || b.Title == "" || b.Price <= 0 {
		return domain.ErrInvalidArgument
	}
	return validateDeliverables(b.Deliverables)
}

type PixelPlatform string

const (
	PixelFacebook PixelPlatform = "facebook"
	PixelGoogle   PixelPlatform = "google"
	PixelTikTok   PixelPlatform = "tiktok"
)

// Pixel is a tracking pixel rendered by the checkout page.
type Pixel struct {
	ID        string        `json:"id"`
	Platform  PixelPlatform `json:"platform"`
	PixelID   string        `json:"pixelId"`
	Active    bool          `json:"active"`
	CreatedAt time.Time     `json:"createdAt"`
}

func (p *Pixel) Validate() error {
	if p == nil || p.ID == "" || p.PixelID == "" {
		return domain.ErrInvalidArgument
	}
	switch p.Platform {
	case PixelFacebook, PixelGoogle, PixelTikTok:
		return nil
	}
	return domain.ErrInvalidArgument
}

// Settings is the global checkout configuration.
type Settings struct {
	TimerMinutes   int    `json:"timerMinutes"`
	PrimaryColor   string `json:"primaryColor"`
	SecondaryColor string `json:"secondaryColor"`
	HeaderText     string `json:"headerText"`
	ButtonText     string `json:"buttonText"`
	FooterText     string `json:"footerText"`
	RequireCPF     bool   `json:"requireCpf"`
}

func DefaultSettings() Settings {
	return Settings{
		TimerMinutes:   15,
		PrimaryColor:   "#16a34a",
		SecondaryColor: "#0f172a",
		HeaderText:     "Oferta por tempo limitado",
		ButtonText:     "Gerar PIX",
		FooterText:     "Pagamento processado com segurança",
	}
}

func (s *Settings) Validate() error {
	if s == nil || s.TimerMinutes < 0 {
		return domain.ErrInvalidArgument
	}
	return nil
}

func validateDeliverables(ds []Deliverable) error {
	for _, d := range ds {
		if d.URL == "" {
			return domain.ErrInvalidArgument
		}
		if d.Kind != DeliverableAccess && d.Kind != DeliverableDownload {
			return domain.ErrInvalidArgument
		}
	}
	return nil
}

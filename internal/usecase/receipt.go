package usecase

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pix-checkout/internal/domain/model"
	"pix-checkout/internal/domain/ports/adapter"
	"pix-checkout/internal/infra/logging"
)

// receipt is the data every notification about one order is rendered from.
// Amount is always the stored/snapshotted total, never recomputed from the catalog.
type receipt struct {
	OrderID       string
	CorrelationID string
	Customer      model.Customer
	Product       model.Product
	Plan          model.Plan
	Bump          *model.OrderBump
	Amount        int64
	Tracking      map[string]string
	CreatedAt     time.Time
	PaidAt        *time.Time
}

func receiptFromSnapshot(s model.ChargeSnapshot, orderID string, paidAt *time.Time) receipt {
	return receipt{
		OrderID:       orderID,
		CorrelationID: s.CorrelationID,
		Customer:      s.Customer,
		Product:       s.Product,
		Plan:          s.Plan,
		Bump:          s.Bump,
		Amount:        s.Amount,
		Tracking:      s.Tracking,
		CreatedAt:     s.CreatedAt,
		PaidAt:        paidAt,
	}
}

// receiptFromOrder tolerates missing catalog rows: names fall back to ids.
func receiptFromOrder(o *model.Order, product *model.Product, plan *model.Plan, bump *model.OrderBump) receipt {
	r := receipt{
		OrderID:       o.ID,
		CorrelationID: o.CorrelationID,
		Customer:      o.Customer,
		Product:       model.Product{ID: o.ProductID, Name: o.ProductID},
		Plan:          model.Plan{ID: o.PlanID, Name: o.PlanID},
		Amount:        o.Amount,
		Tracking:      o.TrackingParameters,
		CreatedAt:     o.CreatedAt,
		PaidAt:        o.PaidAt,
	}
	if product != nil {
		r.Product = *product
	}
	if plan != nil {
		r.Plan = *plan
	}
	if bump != nil {
		r.Bump = bump
	}
	// line items must add up to the stored amount even if prices changed since
	if bumpPrice := r.bumpPrice(); bumpPrice < o.Amount {
		r.Plan.Price = o.Amount - bumpPrice
	}
	return r
}

func (r receipt) bumpPrice() int64 {
	if r.Bump == nil {
		return 0
	}
	return r.Bump.Price
}

func (r receipt) deliverables() []model.Deliverable {
	out := append([]model.Deliverable(nil), r.Product.Deliverables...)
	if r.Bump != nil {
		out = append(out, r.Bump.Deliverables...)
	}
	return out
}

func (r receipt) attribution(name string, status adapter.AttributionStatus, currency string) adapter.AttributionEvent {
	products := []adapter.AttributionProduct{{
		ID:           r.Product.ID,
		Name:         r.Product.Name,
		PlanID:       r.Plan.ID,
		PlanName:     r.Plan.Name,
		Quantity:     1,
		PriceInCents: r.Plan.Price,
	}}
	if r.Bump != nil {
		products = append(products, adapter.AttributionProduct{
			ID:           r.Bump.ID,
			Name:         r.Bump.Title,
			Quantity:     1,
			PriceInCents: r.Bump.Price,
		})
	}
	return adapter.AttributionEvent{
		Name:          name,
		Status:        status,
		OrderID:       r.OrderID,
		CorrelationID: r.CorrelationID,
		Customer:      r.Customer,
		Products:      products,
		Tracking:      r.Tracking,
		AmountCents:   r.Amount,
		Currency:      currency,
		CreatedAt:     r.CreatedAt,
		ApprovedAt:    r.PaidAt,
	}
}

// FormatBRL renders cents as "R$ 1.234,56".
func FormatBRL(cents int64) string {
	s := decimal.New(cents, -2).Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	sign := ""
	if cents < 0 {
		sign = "-"
	}
	return sign + "R$ " + b.String() + "," + frac
}

var emailTemplates = template.Must(template.New("emails").Parse(`
{{define "pix_generated"}}<!doctype html>
<html><body style="font-family:Arial,sans-serif">
<h2>Seu PIX foi gerado</h2>
<p>Olá {{.Name}}, falta pouco para concluir a compra de <strong>{{.Product}}</strong> ({{.Plan}}{{if .Bump}} + {{.Bump}}{{end}}).</p>
<p>Valor: <strong>{{.Amount}}</strong></p>
<p>Copie o código abaixo e pague no app do seu banco:</p>
<pre style="white-space:pre-wrap;word-break:break-all;background:#f4f4f4;padding:12px">{{.BRCode}}</pre>
{{if .QRCodeImage}}<p><img src="{{.QRCodeImage}}" alt="QR Code PIX" width="240"></p>{{end}}
<p><a href="{{.OrderURL}}">Acompanhar pedido</a></p>
</body></html>{{end}}
{{define "approved"}}<!doctype html>
<html><body style="font-family:Arial,sans-serif">
<h2>Compra aprovada!</h2>
<p>Olá {{.Name}}, recebemos o pagamento de <strong>{{.Amount}}</strong> referente a <strong>{{.Product}}</strong> ({{.Plan}}{{if .Bump}} + {{.Bump}}{{end}}).</p>
{{if .Deliverables}}<p>Seus acessos:</p>
<ul>{{range .Deliverables}}
<li>{{if eq .Kind "download"}}Download{{else}}Acesso{{end}}: <a href="{{.URL}}">{{.Name}}</a></li>{{end}}
</ul>{{end}}
<p>Pedido: {{.CorrelationID}} · <a href="{{.OrderURL}}">ver detalhes</a></p>
</body></html>{{end}}
`))

type emailData struct {
	Name          string
	Product       string
	Plan          string
	Bump          string
	Amount        string
	BRCode        string
	QRCodeImage   string
	CorrelationID string
	OrderURL      string
	Deliverables  []model.Deliverable
}

func (r receipt) emailData(orderURL string) emailData {
	d := emailData{
		Name:          firstName(r.Customer.Name),
		Product:       r.Product.Name,
		Plan:          r.Plan.Name,
		Amount:        FormatBRL(r.Amount),
		CorrelationID: r.CorrelationID,
		OrderURL:      orderURL,
		Deliverables:  r.deliverables(),
	}
	if r.Bump != nil {
		d.Bump = r.Bump.Title
	}
	return d
}

func renderEmail(name string, data emailData) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", name, err)
	}
	return buf.String(), nil
}

func firstName(full string) string {
	if f := strings.Fields(full); len(f) > 0 {
		return f[0]
	}
	return full
}

// fanOut sends the notifications shared by every settlement path. Each call is
// its own failure boundary; nothing here can fail the caller.
type fanOut struct {
	notifier         adapter.Notifier
	currency         string
	publicURL        string
	confirmationPath string
	log              *zerolog.Logger
}

func (f *fanOut) confirmationURL(correlationID string) string {
	return strings.TrimRight(f.confirmationPath, "/") + "/" + correlationID
}

func (f *fanOut) orderURL(correlationID string) string {
	return strings.TrimRight(f.publicURL, "/") + f.confirmationURL(correlationID)
}

func (f *fanOut) pixGenerated(ctx context.Context, r receipt, ch adapter.Charge) {
	f.notifier.SendAttribution(ctx, r.attribution("InitiateCheckout", adapter.AttributionWaitingPayment, f.currency))

	data := r.emailData(f.orderURL(r.CorrelationID))
	data.BRCode = ch.BRCode
	data.QRCodeImage = ch.QRCodeImage
	html, err := renderEmail("pix_generated", data)
	if err != nil {
		logging.With(ctx, f.log).Error().Err(err).Msg("pix generated email not rendered")
		return
	}
	f.notifier.SendEmail(ctx, adapter.Email{To: r.Customer.Email, Subject: "Seu PIX foi gerado", HTML: html})
}

func (f *fanOut) approved(ctx context.Context, r receipt) {
	f.notifier.SendAttribution(ctx, r.attribution("Purchase", adapter.AttributionPaid, f.currency))

	html, err := renderEmail("approved", r.emailData(f.orderURL(r.CorrelationID)))
	if err != nil {
		logging.With(ctx, f.log).Error().Err(err).Msg("approval email not rendered")
	} else {
		f.notifier.SendEmail(ctx, adapter.Email{To: r.Customer.Email, Subject: "Compra aprovada", HTML: html})
	}

	f.notifier.AlertMerchant(ctx, fmt.Sprintf("Venda aprovada: %s · %s (%s)", r.Product.Name, FormatBRL(r.Amount), r.CorrelationID))
}

func (f *fanOut) refunded(ctx context.Context, r receipt) {
	f.notifier.SendAttribution(ctx, r.attribution("Refund", adapter.AttributionRefunded, f.currency))
}

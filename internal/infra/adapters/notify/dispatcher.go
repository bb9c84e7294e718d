package notify

import (
	"context"

	"github.com/rs/zerolog"

	"pix-checkout/internal/domain/ports/adapter"
	"pix-checkout/internal/infra/logging"
	"pix-checkout/internal/infra/metrics"
)

var _ adapter.Notifier = (*Dispatcher)(nil)

// Dispatcher makes exactly one attempt per notification. Failures are logged
// and counted, never returned.
type Dispatcher struct {
	email       adapter.EmailSender
	attribution adapter.AttributionSender
	alerter     adapter.MerchantAlerter // optional
	log         *zerolog.Logger
	dev         bool
}

func NewDispatcher(email adapter.EmailSender, attribution adapter.AttributionSender, alerter adapter.MerchantAlerter, logger *zerolog.Logger, dev bool) *Dispatcher {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Dispatcher{email: email, attribution: attribution, alerter: alerter, log: logger, dev: dev}
}

func (d *Dispatcher) SendEmail(ctx context.Context, e adapter.Email) bool {
	if d.email == nil {
		metrics.IncNotification("email", "skipped")
		return false
	}
	id, err := d.email.Send(ctx, e)
	if err != nil {
		metrics.IncNotification("email", "failed")
		logging.With(ctx, d.log).Warn().Err(err).
			Str("channel", "email").
			Str("to", logging.Redact(e.To, d.dev)).
			Str("subject", e.Subject).
			Msg("email dispatch failed")
		return false
	}
	metrics.IncNotification("email", "sent")
	logging.With(ctx, d.log).Debug().Str("message_id", id).Str("subject", e.Subject).Msg("email sent")
	return true
}

func (d *Dispatcher) SendAttribution(ctx context.Context, e adapter.AttributionEvent) {
	if d.attribution == nil {
		metrics.IncNotification("attribution", "skipped")
		return
	}
	if err := d.attribution.Send(ctx, e); err != nil {
		metrics.IncNotification("attribution", "failed")
		logging.With(ctx, d.log).Warn().Err(err).
			Str("channel", "attribution").
			Str("event", e.Name).
			Str("status", string(e.Status)).
			Msg("attribution dispatch failed")
		return
	}
	metrics.IncNotification("attribution", "sent")
}

func (d *Dispatcher) AlertMerchant(ctx context.Context, text string) {
	if d.alerter == nil {
		return
	}
	if err := d.alerter.Alert(ctx, text); err != nil {
		metrics.IncNotification("telegram", "failed")
		logging.With(ctx, d.log).Warn().Err(err).Str("channel", "telegram").Msg("merchant alert failed")
		return
	}
	metrics.IncNotification("telegram", "sent")
}

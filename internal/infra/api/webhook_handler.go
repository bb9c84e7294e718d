package api

import (
	"errors"
	"io"
	"net/http"

	"pix-checkout/internal/domain"
	"pix-checkout/internal/infra/adapters/payment"
	"pix-checkout/internal/infra/logging"
	"pix-checkout/internal/infra/metrics"
	"pix-checkout/internal/usecase"
)

// handleWebhookProbe answers the provider's endpoint verification.
func (s *Server) handleWebhookProbe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.With(ctx, s.log)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		metrics.IncWebhook("bad_request")
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if s.deps.WebhookSecret != "" && !payment.VerifySignature(s.deps.WebhookSecret, body, r.Header.Get(payment.SignatureHeader)) {
		metrics.IncWebhook("unauthorized")
		log.Warn().Msg("webhook signature mismatch")
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	ev, err := payment.ParseWebhook(body)
	if err != nil {
		metrics.IncWebhook("malformed")
		log.Warn().Err(err).Msg("malformed webhook")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.deps.Webhook.HandleChargeEvent(logging.WithCorrelationID(ctx, ev.CorrelationID), ev)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		metrics.IncWebhook(string(usecase.WebhookNotFound))
		writeJSON(w, http.StatusNotFound, usecase.WebhookResult{Outcome: usecase.WebhookNotFound})
	case err != nil:
		metrics.IncWebhook("error")
		log.Error().Err(err).Str("correlation_id", ev.CorrelationID).Msg("webhook settlement failed")
		writeError(w, http.StatusInternalServerError, "failed to update order")
	default:
		metrics.IncWebhook(string(res.Outcome))
		writeJSON(w, http.StatusOK, res)
	}
}

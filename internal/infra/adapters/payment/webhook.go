package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"pix-checkout/internal/domain"
	"pix-checkout/internal/domain/ports/adapter"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "x-webhook-signature"

const completedEventSuffix = "CHARGE_COMPLETED"

type webhookBody struct {
	Event  string `json:"event"`
	Charge *struct {
		CorrelationID string `json:"correlationID"`
		Status        string `json:"status"`
	} `json:"charge"`
}

// ParseWebhook validates a provider notification at the boundary. Bodies that
// are not JSON objects, or whose charge lacks a correlationID, are rejected
// with domain.ErrMalformedWebhook. An absent event name is accepted; a present
// one must end in CHARGE_COMPLETED to count as a settlement event.
func ParseWebhook(body []byte) (adapter.ChargeEvent, error) {
	var in webhookBody
	if err := json.Unmarshal(body, &in); err != nil {
		return adapter.ChargeEvent{}, fmt.Errorf("%w: %v", domain.ErrMalformedWebhook, err)
	}
	ev := adapter.ChargeEvent{Event: in.Event}
	if in.Charge == nil {
		ev.Kind = adapter.ChargeEventNone
		return ev, nil
	}
	if in.Event != "" && !strings.HasSuffix(strings.ToUpper(in.Event), completedEventSuffix) {
		ev.Kind = adapter.ChargeEventOther
		return ev, nil
	}
	if strings.TrimSpace(in.Charge.CorrelationID) == "" {
		return adapter.ChargeEvent{}, fmt.Errorf("%w: charge without correlationID", domain.ErrMalformedWebhook)
	}
	ev.Kind = adapter.ChargeEventCompleted
	ev.CorrelationID = strings.TrimSpace(in.Charge.CorrelationID)
	ev.Status = adapter.ChargeState(strings.ToUpper(strings.TrimSpace(in.Charge.Status)))
	return ev, nil
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func VerifySignature(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

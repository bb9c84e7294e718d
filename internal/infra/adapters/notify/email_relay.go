// File: internal/infra/adapters/notify/email_relay.go
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"pix-checkout/internal/domain"
	"pix-checkout/internal/domain/ports/adapter"
)

var _ adapter.EmailSender = (*EmailRelay)(nil)

// EmailRelay posts messages to an HTTP email relay ({to, subject, html}).
type EmailRelay struct {
	url    string
	apiKey string
	from   string
	client *http.Client
}

func NewEmailRelay(url, apiKey, from string, timeout time.Duration) *EmailRelay {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &EmailRelay{url: url, apiKey: apiKey, from: from, client: &http.Client{Timeout: timeout}}
}

type emailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	From    string `json:"from,omitempty"`
}

func (r *EmailRelay) Send(ctx context.Context, e adapter.Email) (string, error) {
	if r.url == "" {
		return "", &domain.NotificationError{Channel: "email", Err: errors.New("relay url not configured")}
	}
	if e.To == "" {
		return "", &domain.NotificationError{Channel: "email", Err: domain.ErrInvalidArgument}
	}
	b, err := json.Marshal(emailPayload{To: e.To, Subject: e.Subject, HTML: e.HTML, From: r.from})
	if err != nil {
		return "", &domain.NotificationError{Channel: "email", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(b))
	if err != nil {
		return "", &domain.NotificationError{Channel: "email", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", &domain.NotificationError{Channel: "email", Err: err}
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &domain.NotificationError{Channel: "email", Err: fmt.Errorf("relay http %d: %s", resp.StatusCode, raw)}
	}
	var out struct {
		ID string `json:"id"`
	}
	// the relay may answer with an empty body; the id is informational only
	_ = json.Unmarshal(raw, &out)
	return out.ID, nil
}

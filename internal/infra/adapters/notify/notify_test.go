//go:build !integration

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"pix-checkout/internal/domain"
	"pix-checkout/internal/domain/model"
	"pix-checkout/internal/domain/ports/adapter"
)

func TestEmailRelay_Send(t *testing.T) {
	t.Run("posts message with bearer key", func(t *testing.T) {
		var got emailPayload
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer key-1" {
				t.Errorf("missing bearer key")
			}
			b, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(b, &got)
			_, _ = w.Write([]byte(`{"id":"msg-1"}`))
		}))
		defer srv.Close()

		relay := NewEmailRelay(srv.URL, "key-1", "loja@example.com", time.Second)
		id, err := relay.Send(context.Background(), adapter.Email{To: "ana@example.com", Subject: "Compra aprovada", HTML: "<p>ok</p>"})
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
		if id != "msg-1" {
			t.Errorf("expected msg-1, got %q", id)
		}
		if got.To != "ana@example.com" || got.From != "loja@example.com" || got.HTML != "<p>ok</p>" {
			t.Errorf("unexpected payload %+v", got)
		}
	})

	t.Run("non-2xx is a notification error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()
		_, err := NewEmailRelay(srv.URL, "", "", time.Second).Send(context.Background(), adapter.Email{To: "a@b.co"})
		var nerr *domain.NotificationError
		if !errors.As(err, &nerr) || nerr.Channel != "email" {
			t.Fatalf("expected email NotificationError, got %v", err)
		}
	})
}

func TestAttributionRelay_Payload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-token") != "tok" {
			t.Errorf("missing api token header")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	approved := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ev := adapter.AttributionEvent{
		Name:          "Purchase",
		Status:        adapter.AttributionPaid,
		CorrelationID: "corr-1",
		Customer:      model.Customer{Name: "Ana", Email: "ana@example.com"},
		Products:      []adapter.AttributionProduct{{ID: "p1", Name: "Curso", PlanID: "pl1", PlanName: "Vitalício", PriceInCents: 9700}},
		Tracking:      map[string]string{"utm_source": "fb"},
		AmountCents:   10700,
		Currency:      "BRL",
		CreatedAt:     approved.Add(-time.Minute),
		ApprovedAt:    &approved,
	}
	if err := NewAttributionRelay(srv.URL, "tok", "pix-checkout", time.Second).Send(context.Background(), ev); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["value"] != 107.0 {
		t.Errorf("expected value 107, got %v", got["value"])
	}
	if got["paymentMethod"] != "pix" || got["status"] != "paid" || got["orderId"] != "corr-1" {
		t.Errorf("unexpected payload %v", got)
	}
	if got["approvedDate"] != "2024-05-01 12:00:00" {
		t.Errorf("unexpected approvedDate %v", got["approvedDate"])
	}
	tp, _ := got["trackingParameters"].(map[string]any)
	if tp["utm_source"] != "fb" {
		t.Errorf("expected utm_source fb, got %v", tp["utm_source"])
	}
	if v, ok := tp["utm_campaign"]; !ok || v != nil {
		t.Errorf("expected utm_campaign present and null, got %v (present=%v)", v, ok)
	}
	comm, _ := got["commission"].(map[string]any)
	if comm["totalPriceInCents"] != 10700.0 {
		t.Errorf("unexpected commission %v", comm)
	}
}

type stubEmail struct {
	calls int32
	err   error
}

func (s *stubEmail) Send(ctx context.Context, e adapter.Email) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	return "id", s.err
}

type stubAttribution struct {
	calls int32
	err   error
}

func (s *stubAttribution) Send(ctx context.Context, e adapter.AttributionEvent) error {
	atomic.AddInt32(&s.calls, 1)
	return s.err
}

func TestDispatcher_SwallowsFailures(t *testing.T) {
	email := &stubEmail{err: errors.New("relay down")}
	attr := &stubAttribution{err: errors.New("relay down")}
	d := NewDispatcher(email, attr, nil, nil, false)

	if d.SendEmail(context.Background(), adapter.Email{To: "ana@example.com"}) {
		t.Error("expected SendEmail to report false on failure")
	}
	d.SendAttribution(context.Background(), adapter.AttributionEvent{Name: "Purchase"})
	d.AlertMerchant(context.Background(), "venda")

	if email.calls != 1 || attr.calls != 1 {
		t.Errorf("expected exactly one attempt each, got email=%d attribution=%d", email.calls, attr.calls)
	}

	ok := NewDispatcher(&stubEmail{}, nil, nil, nil, false).SendEmail(context.Background(), adapter.Email{To: "a@b.co"})
	if !ok {
		t.Error("expected SendEmail to report true on success")
	}
}

func TestTelegramAlerter(t *testing.T) {
	var sent atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"shop","username":"shop_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			_ = r.ParseForm()
			if r.FormValue("chat_id") != "42" {
				t.Errorf("unexpected chat id %q", r.FormValue("chat_id"))
			}
			sent.Add(1)
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a, err := NewTelegramAlerterWithEndpoint("TOKEN", 42, srv.URL+"/bot%s/%s")
	if err != nil {
		t.Fatalf("NewTelegramAlerterWithEndpoint: %v", err)
	}
	if err := a.Alert(context.Background(), "Nova venda: R$ 97,00"); err != nil {
		t.Fatalf("Alert: %v", err)
	}
	if sent.Load() != 1 {
		t.Errorf("expected one message, got %d", sent.Load())
	}

	if _, err := NewTelegramAlerter("", 0); err == nil {
		t.Error("expected error without token")
	}
}

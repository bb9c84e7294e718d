//go:build !integration

package api_test

import (
	"encoding/json"
	"net/http"
	"testing"
)

func login(t *testing.T, f *apiFixture) string {
	t.Helper()
	rec := f.do(http.MethodPost, "/api/admin/login", `{"username":"`+adminUser+`","password":"`+adminPassword+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", rec.Code)
	}
	var out struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if out.Token == "" {
		t.Fatal("expected a token")
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Error("expected a session cookie")
	}
	return "Bearer " + out.Token
}

func TestAdmin_Auth(t *testing.T) {
	f := newAPIFixture(t, "")

	if rec := f.do(http.MethodGet, "/api/admin/products", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/api/admin/login", `{"username":"admin","password":"wrong"}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for a wrong password, got %d", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/api/admin/products", "", "Authorization", "Bearer garbage"); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for a forged token, got %d", rec.Code)
	}
}

func TestAdmin_CatalogAndOrders(t *testing.T) {
	f := newAPIFixture(t, "")
	auth := login(t, f)

	t.Run("create and list products", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/admin/products", `{"name":"Ebook","active":true}`, "Authorization", auth)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		rec = f.do(http.MethodGet, "/api/admin/products", "", "Authorization", auth)
		var out struct {
			Items []json.RawMessage `json:"items"`
		}
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
		if len(out.Items) != 2 {
			t.Errorf("expected two products, got %d", len(out.Items))
		}
	})

	t.Run("update plan through the path id", func(t *testing.T) {
		rec := f.do(http.MethodPut, "/api/admin/plans/plan-1", `{"productId":"prod-1","name":"Vitalício","price":12700,"active":true}`, "Authorization", auth)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		rec = f.do(http.MethodGet, "/api/checkout/products/prod-1", "")
		var offer struct {
			Plans []struct {
				Price int64 `json:"price"`
			} `json:"plans"`
		}
		_ = json.Unmarshal(rec.Body.Bytes(), &offer)
		if len(offer.Plans) != 1 || offer.Plans[0].Price != 12700 {
			t.Errorf("expected updated price on the offer, got %+v", offer.Plans)
		}
	})

	t.Run("invalid pixel is 400", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/admin/pixels", `{"platform":"myspace","pixelId":"1"}`, "Authorization", auth)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("pending order cannot be refunded", func(t *testing.T) {
		res := submitCheckout(t, f)
		rec := f.do(http.MethodPost, "/api/admin/orders/"+res.CorrelationID+"/refund", "", "Authorization", auth)
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}
		rec = f.do(http.MethodGet, "/api/admin/orders?status=PENDING&limit=10", "", "Authorization", auth)
		var out struct {
			Items []json.RawMessage `json:"items"`
		}
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
		if rec.Code != http.StatusOK || len(out.Items) != 1 {
			t.Errorf("expected one pending order, got %d (%d)", len(out.Items), rec.Code)
		}
		if rec := f.do(http.MethodGet, "/api/admin/orders?limit=abc", "", "Authorization", auth); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for a bad limit, got %d", rec.Code)
		}
	})
}

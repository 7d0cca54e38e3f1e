package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIntentClientCreateIntent(t *testing.T) {
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/create-payment-intent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Intent{
			ClientSecret:    "sec_1",
			Amount:          4500,
			PaymentIntentID: "pi_1",
		})
	}))
	defer srv.Close()

	c := NewIntentClient(srv.URL, nil)
	intent, err := c.CreateIntent(context.Background(), IntentRequest{
		ServiceID:     "svc1",
		CustomerEmail: "ava@example.com",
		CustomerName:  "Ava Chen",
		TipPercentage: 10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.ClientSecret != "sec_1" || intent.PaymentIntentID != "pi_1" || intent.Amount != 4500 {
		t.Fatalf("unexpected intent: %+v", intent)
	}

	if gotBody["serviceId"] != "svc1" {
		t.Errorf("unexpected serviceId: %v", gotBody["serviceId"])
	}
	if gotBody["customerEmail"] != "ava@example.com" {
		t.Errorf("unexpected customerEmail: %v", gotBody["customerEmail"])
	}
	if gotBody["tipPercentage"] != float64(10) {
		t.Errorf("unexpected tipPercentage: %v", gotBody["tipPercentage"])
	}
}

func TestIntentClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "provider down", http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := NewIntentClient(srv.URL, nil).CreateIntent(context.Background(), IntentRequest{ServiceID: "svc1"}); err == nil {
		t.Fatal("expected error on 502 response")
	}
}

func TestIntentClientRejectsIncompleteResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"amount": 4500}`))
	}))
	defer srv.Close()

	if _, err := NewIntentClient(srv.URL, nil).CreateIntent(context.Background(), IntentRequest{ServiceID: "svc1"}); err == nil {
		t.Fatal("expected error for response missing client secret")
	}
}

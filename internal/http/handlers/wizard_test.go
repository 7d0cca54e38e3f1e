package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khakanhyder/schedule-pro-web-app-sub005/internal/confirmation"
	"github.com/khakanhyder/schedule-pro-web-app-sub005/internal/observability/metrics"
	"github.com/khakanhyder/schedule-pro-web-app-sub005/internal/payments"
	"github.com/khakanhyder/schedule-pro-web-app-sub005/internal/refdata"
	"github.com/khakanhyder/schedule-pro-web-app-sub005/internal/sessions"
)

// backend fakes the upstream booking and payments APIs behind one server.
type backend struct {
	mu           sync.Mutex
	intentCalls  int
	confirmCalls int
	failConfirm  bool
	intentDelay  time.Duration
	lastConfirm  map[string]any
	stylists     []refdata.Stylist
}

func (b *backend) intents() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.intentCalls
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/services", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode([]refdata.Service{
			{ID: "svc_1", Name: "Signature Facial", Price: 120, DurationMinutes: 60},
			{ID: "svc_2", Name: "Quick Trim", Price: 40, DurationMinutes: 30},
		})
	})
	mux.HandleFunc("/api/stylists", func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.stylists == nil {
			b.stylists = []refdata.Stylist{{ID: "sty_1", Name: "Dana"}}
		}
		json.NewEncoder(w).Encode(b.stylists)
	})
	mux.HandleFunc("/api/create-payment-intent", func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		b.intentCalls++
		n := b.intentCalls
		delay := b.intentDelay
		b.mu.Unlock()
		time.Sleep(delay)
		json.NewEncoder(w).Encode(payments.Intent{
			ClientSecret:    fmt.Sprintf("cs_%d", n),
			Amount:          13200,
			PaymentIntentID: fmt.Sprintf("pi_%d", n),
		})
	})
	mux.HandleFunc("/api/appointments", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.confirmCalls++
		fail := b.failConfirm
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		b.lastConfirm = body
		b.mu.Unlock()
		if fail {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"appointment": map[string]any{"id": 42, "confirmationNumber": "BK-42"},
		})
	})
	return mux
}

func newTestRouter(t *testing.T, b *backend) *httptest.Server {
	t.Helper()
	upstream := httptest.NewServer(b.handler())
	t.Cleanup(upstream.Close)

	h := NewWizardHandler(WizardHandlerConfig{
		Sessions:  sessions.NewMemoryStore(time.Hour),
		Refdata:   refdata.NewClient(upstream.URL, nil),
		Intents:   payments.NewIntentClient(upstream.URL, nil),
		Finalizer: confirmation.NewFinalizer(upstream.URL, nil),
		Confirmer: payments.NewFakeCardConfirmer(nil),
		Metrics:   metrics.NewBookingMetrics(prometheus.NewRegistry()),
	})

	r := chi.NewRouter()
	r.Route("/api/wizard/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Patch("/data", h.UpdateData)
			r.Post("/next", h.Next)
			r.Post("/previous", h.Previous)
			r.Post("/jump", h.Jump)
			r.Post("/payment-intent", h.CreateIntent)
			r.Post("/payment-outcome", h.PaymentOutcome)
			r.Post("/payment-retry", h.PaymentRetry)
			r.Post("/finalize", h.Finalize)
		})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func startSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	status, state := do(t, srv, http.MethodPost, "/api/wizard/sessions", nil)
	require.Equal(t, http.StatusCreated, status)
	id, _ := state["sessionId"].(string)
	require.NotEmpty(t, id)
	assert.EqualValues(t, 1, state["step"])
	return id
}

func fillThroughPaymentMethod(t *testing.T, srv *httptest.Server, id, method string) {
	t.Helper()
	base := "/api/wizard/sessions/" + id

	status, _ := do(t, srv, http.MethodPatch, base+"/data", map[string]any{
		"serviceId": "svc_1", "stylistId": "sty_1",
	})
	require.Equal(t, http.StatusOK, status)
	status, state := do(t, srv, http.MethodPost, base+"/next", nil)
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 2, state["step"])

	status, _ = do(t, srv, http.MethodPatch, base+"/data", map[string]any{
		"appointmentDate": "2026-09-14",
		"timeSlot":        "10:00",
		"clientName":      "Jordan Reyes",
		"clientEmail":     "jordan@example.com",
		"clientPhone":     "555-0142",
	})
	require.Equal(t, http.StatusOK, status)
	status, state = do(t, srv, http.MethodPost, base+"/next", nil)
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 3, state["step"])

	// Preferences has no gate.
	status, state = do(t, srv, http.MethodPost, base+"/next", nil)
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 4, state["step"])

	status, _ = do(t, srv, http.MethodPatch, base+"/data", map[string]any{
		"paymentMethod": method,
	})
	require.Equal(t, http.StatusOK, status)
}

func TestWizardOnlineHappyPath(t *testing.T) {
	b := &backend{}
	srv := newTestRouter(t, b)
	id := startSession(t, srv)
	base := "/api/wizard/sessions/" + id

	fillThroughPaymentMethod(t, srv, id, "online")
	status, state := do(t, srv, http.MethodPost, base+"/next", nil)
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 5, state["step"])

	status, intent := do(t, srv, http.MethodPost, base+"/payment-intent", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pi_1", intent["paymentIntentId"])
	assert.Equal(t, "cs_1", intent["clientSecret"])
	assert.EqualValues(t, 13200, intent["amount"])

	// Repeat create returns the same intent without a second provider call.
	status, intent = do(t, srv, http.MethodPost, base+"/payment-intent", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pi_1", intent["paymentIntentId"])
	assert.Equal(t, 1, b.intentCalls)

	status, state = do(t, srv, http.MethodPost, base+"/payment-outcome", map[string]any{
		"cardToken": "tok_visa",
	})
	require.Equal(t, http.StatusOK, status)
	data := state["data"].(map[string]any)
	assert.Equal(t, "completed", data["paymentStatus"])

	status, state = do(t, srv, http.MethodPost, base+"/finalize", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 6, state["step"])
	assert.Equal(t, true, state["terminal"])
	assert.EqualValues(t, 100, state["progress"])
	data = state["data"].(map[string]any)
	assert.EqualValues(t, 42, data["appointmentId"])
	assert.Equal(t, "BK-42", data["confirmationNumber"])

	assert.Equal(t, "Jordan Reyes", b.lastConfirm["customerName"])
	assert.Equal(t, "11:00", b.lastConfirm["endTime"])
}

func TestWizardNextBlockedOnIncompleteStep(t *testing.T) {
	srv := newTestRouter(t, &backend{})
	id := startSession(t, srv)
	base := "/api/wizard/sessions/" + id

	status, body := do(t, srv, http.MethodPost, base+"/next", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "step_incomplete", body["error"])

	// Step did not move.
	status, state := do(t, srv, http.MethodGet, base+"/", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, state["step"])
	assert.Equal(t, false, state["canAdvance"])
}

func TestWizardCashPathSkipsPayment(t *testing.T) {
	b := &backend{}
	srv := newTestRouter(t, b)
	id := startSession(t, srv)
	base := "/api/wizard/sessions/" + id

	fillThroughPaymentMethod(t, srv, id, "cash")
	status, state := do(t, srv, http.MethodPost, base+"/next", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 6, state["step"])
	assert.NotContains(t, state["effectiveSteps"], float64(5))

	status, state = do(t, srv, http.MethodPost, base+"/finalize", nil)
	require.Equal(t, http.StatusOK, status)
	data := state["data"].(map[string]any)
	assert.EqualValues(t, 42, data["appointmentId"])

	// Cash confirmations carry an explicit null intent id.
	v, present := b.lastConfirm["paymentIntentId"]
	assert.True(t, present)
	assert.Nil(t, v)
	assert.Equal(t, 0, b.intentCalls)
}

func TestWizardConcurrentIntentRequestsShareOneIntent(t *testing.T) {
	b := &backend{intentDelay: 150 * time.Millisecond}
	srv := newTestRouter(t, b)
	id := startSession(t, srv)
	base := "/api/wizard/sessions/" + id

	fillThroughPaymentMethod(t, srv, id, "online")
	do(t, srv, http.MethodPost, base+"/next", nil)

	// Two duplicate submits racing on a session with no intent yet.
	results := make(chan string, 2)
	for i := 0; i < 2; i++ {
		go func() {
			resp, err := http.Post(srv.URL+base+"/payment-intent", "application/json", nil)
			if err != nil {
				results <- "error: " + err.Error()
				return
			}
			defer resp.Body.Close()
			var out map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				results <- "error: " + err.Error()
				return
			}
			piID, _ := out["paymentIntentId"].(string)
			results <- piID
		}()
	}

	assert.Equal(t, "pi_1", <-results)
	assert.Equal(t, "pi_1", <-results)
	assert.Equal(t, 1, b.intents(), "duplicate submit must not mint a second provider intent")
}

func TestWizardFinalizeReplaysConfirmedSession(t *testing.T) {
	b := &backend{}
	srv := newTestRouter(t, b)
	id := startSession(t, srv)
	base := "/api/wizard/sessions/" + id

	fillThroughPaymentMethod(t, srv, id, "cash")
	do(t, srv, http.MethodPost, base+"/next", nil)

	status, _ := do(t, srv, http.MethodPost, base+"/finalize", nil)
	require.Equal(t, http.StatusOK, status)

	// A duplicate submit replays the confirmed state, never a second booking.
	status, state := do(t, srv, http.MethodPost, base+"/finalize", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, state["terminal"])
	data := state["data"].(map[string]any)
	assert.EqualValues(t, 42, data["appointmentId"])
	assert.Equal(t, "BK-42", data["confirmationNumber"])
	assert.Equal(t, 1, b.confirmCalls)
}

func TestWizardFinalizeRejectedBeforePayment(t *testing.T) {
	srv := newTestRouter(t, &backend{})
	id := startSession(t, srv)
	base := "/api/wizard/sessions/" + id

	fillThroughPaymentMethod(t, srv, id, "online")
	do(t, srv, http.MethodPost, base+"/next", nil)

	status, body := do(t, srv, http.MethodPost, base+"/finalize", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "finalize_rejected", body["error"])
}

func TestWizardSupportPathAfterPaidConfirmationFailure(t *testing.T) {
	b := &backend{failConfirm: true}
	srv := newTestRouter(t, b)
	id := startSession(t, srv)
	base := "/api/wizard/sessions/" + id

	fillThroughPaymentMethod(t, srv, id, "online")
	do(t, srv, http.MethodPost, base+"/next", nil)
	do(t, srv, http.MethodPost, base+"/payment-intent", nil)
	status, _ := do(t, srv, http.MethodPost, base+"/payment-outcome", map[string]any{
		"cardToken": "tok_visa",
	})
	require.Equal(t, http.StatusOK, status)

	status, body := do(t, srv, http.MethodPost, base+"/finalize", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "support_needed", body["error"])
	assert.Equal(t, true, body["contactSupport"])
	assert.NotEmpty(t, body["paymentIntentId"])

	// The session survives untouched for the support conversation.
	status, state := do(t, srv, http.MethodGet, base+"/", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 5, state["step"])
	data := state["data"].(map[string]any)
	assert.Equal(t, "completed", data["paymentStatus"])
	assert.Equal(t, "svc_1", data["serviceId"])
	assert.Equal(t, false, state["terminal"])
}

func TestWizardDeclineThenRetry(t *testing.T) {
	b := &backend{}
	srv := newTestRouter(t, b)
	id := startSession(t, srv)
	base := "/api/wizard/sessions/" + id

	fillThroughPaymentMethod(t, srv, id, "online")
	do(t, srv, http.MethodPost, base+"/next", nil)
	do(t, srv, http.MethodPost, base+"/payment-intent", nil)

	status, state := do(t, srv, http.MethodPost, base+"/payment-outcome", map[string]any{
		"cardToken": "tok_decline",
	})
	require.Equal(t, http.StatusOK, status)
	data := state["data"].(map[string]any)
	assert.Equal(t, "failed", data["paymentStatus"])
	assert.NotEmpty(t, data["paymentError"])

	status, state = do(t, srv, http.MethodPost, base+"/payment-retry", map[string]any{})
	require.Equal(t, http.StatusOK, status)
	data = state["data"].(map[string]any)
	assert.Equal(t, "", data["paymentStatus"])
	assert.Nil(t, data["paymentError"])

	// The existing intent is reused for the second attempt.
	status, intent := do(t, srv, http.MethodPost, base+"/payment-intent", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pi_1", intent["paymentIntentId"])
	assert.Equal(t, 1, b.intentCalls)

	status, state = do(t, srv, http.MethodPost, base+"/payment-outcome", map[string]any{
		"cardToken": "tok_visa",
	})
	require.Equal(t, http.StatusOK, status)
	data = state["data"].(map[string]any)
	assert.Equal(t, "completed", data["paymentStatus"])
}

func TestWizardJumpGuard(t *testing.T) {
	srv := newTestRouter(t, &backend{})
	id := startSession(t, srv)
	base := "/api/wizard/sessions/" + id

	status, body := do(t, srv, http.MethodPost, base+"/jump", map[string]any{"step": 4})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "jump_rejected", body["error"])

	fillThroughPaymentMethod(t, srv, id, "cash")
	status, state := do(t, srv, http.MethodPost, base+"/jump", map[string]any{"step": 2})
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, state["step"])
}

func TestWizardEmptyRosterDefaultsStylist(t *testing.T) {
	b := &backend{stylists: []refdata.Stylist{}}
	srv := newTestRouter(t, b)

	status, state := do(t, srv, http.MethodPost, "/api/wizard/sessions", nil)
	require.Equal(t, http.StatusCreated, status)
	data := state["data"].(map[string]any)
	assert.Equal(t, "any", data["stylistId"])
}

func TestWizardSessionNotFound(t *testing.T) {
	srv := newTestRouter(t, &backend{})
	status, body := do(t, srv, http.MethodGet, "/api/wizard/sessions/nope/", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "session_not_found", body["error"])
}

func TestWizardReferenceDataUnavailable(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(upstream.Close)

	h := NewWizardHandler(WizardHandlerConfig{
		Sessions: sessions.NewMemoryStore(time.Hour),
		Refdata:  refdata.NewClient(upstream.URL, nil),
	})
	rec := httptest.NewRecorder()
	h.CreateSession(rec, httptest.NewRequest(http.MethodPost, "/api/wizard/sessions", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "reference_data_unavailable", body["error"])
	assert.Equal(t, true, body["retryable"])
}

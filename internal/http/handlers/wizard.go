package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/khakanhyder/schedule-pro-web-app-sub005/internal/booking"
	"github.com/khakanhyder/schedule-pro-web-app-sub005/internal/confirmation"
	"github.com/khakanhyder/schedule-pro-web-app-sub005/internal/observability/metrics"
	"github.com/khakanhyder/schedule-pro-web-app-sub005/internal/payments"
	"github.com/khakanhyder/schedule-pro-web-app-sub005/internal/refdata"
	"github.com/khakanhyder/schedule-pro-web-app-sub005/internal/sessions"
	"github.com/khakanhyder/schedule-pro-web-app-sub005/pkg/logging"
)

// WizardHandler drives booking wizard sessions over HTTP. Each request
// rehydrates the controller from the session snapshot, applies one
// operation, and saves the snapshot back.
type WizardHandler struct {
	sessions  sessions.Store
	refdata   *refdata.Client
	intents   payments.IntentCreator
	finalizer *confirmation.Finalizer
	confirmer payments.CardConfirmer
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger

	tipPercentage float64
	cashShortPath bool

	// Per-session serialization so duplicate submits from one client
	// cannot interleave. Taken before the snapshot is loaded so a second
	// duplicate observes the first one's writes. The Bridge/Finalizer
	// in-flight flags back this up at the component level.
	locks sync.Map
}

// WizardHandlerConfig wires the handler's collaborators.
type WizardHandlerConfig struct {
	Sessions  sessions.Store
	Refdata   *refdata.Client
	Intents   payments.IntentCreator
	Finalizer *confirmation.Finalizer

	// Confirmer runs card confirmations server-side. Only the dev/demo
	// fake is ever wired here; with a real provider the browser SDK
	// confirms and reports the outcome instead.
	Confirmer payments.CardConfirmer

	Metrics *metrics.BookingMetrics
	Logger  *logging.Logger

	TipPercentage float64
	CashShortPath bool
}

// NewWizardHandler creates the wizard HTTP handler.
func NewWizardHandler(cfg WizardHandlerConfig) *WizardHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &WizardHandler{
		sessions:      cfg.Sessions,
		refdata:       cfg.Refdata,
		intents:       cfg.Intents,
		finalizer:     cfg.Finalizer,
		confirmer:     cfg.Confirmer,
		metrics:       cfg.Metrics,
		logger:        logger,
		tipPercentage: cfg.TipPercentage,
		cashShortPath: cfg.CashShortPath,
	}
}

type stateResponse struct {
	SessionID      string            `json:"sessionId"`
	Step           int               `json:"step"`
	Progress       int               `json:"progress"`
	CanAdvance     bool              `json:"canAdvance"`
	CompletedSteps []int             `json:"completedSteps"`
	EffectiveSteps []int             `json:"effectiveSteps"`
	Terminal       bool              `json:"terminal"`
	Data           booking.Data      `json:"data"`
	Services       []refdata.Service `json:"services"`
	Stylists       []refdata.Stylist `json:"stylists"`
}

type errorResponse struct {
	Error           string `json:"error"`
	Message         string `json:"message,omitempty"`
	Retryable       bool   `json:"retryable,omitempty"`
	ContactSupport  bool   `json:"contactSupport,omitempty"`
	PaymentIntentID string `json:"paymentIntentId,omitempty"`
}

func (h *WizardHandler) lockSession(id string) func() {
	mu, _ := h.locks.LoadOrStore(id, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

func (h *WizardHandler) controllerFor(sess *sessions.Session) (*booking.DataStore, *booking.Controller) {
	store := booking.RestoreDataStore(sess.Data)
	opts := []booking.ControllerOption{booking.WithLogger(h.logger)}
	if h.cashShortPath {
		opts = append(opts, booking.WithCashShortPathProgress())
	}
	return store, booking.RestoreController(store, sess.Reference, sess.Step, opts...)
}

func (h *WizardHandler) state(sess *sessions.Session, ctrl *booking.Controller) stateResponse {
	return stateResponse{
		SessionID:      sess.ID,
		Step:           ctrl.Current(),
		Progress:       ctrl.Progress(),
		CanAdvance:     ctrl.CanAdvance(),
		CompletedSteps: ctrl.CompletedSteps(),
		EffectiveSteps: ctrl.EffectiveSteps(),
		Terminal:       ctrl.Terminal(),
		Data:           sess.Data,
		Services:       sess.Reference.Services,
		Stylists:       sess.Reference.Stylists,
	}
}

// CreateSession starts a wizard session: it loads the reference lists and
// returns the fresh state. A reference-data failure is retryable and no
// session is created.
func (h *WizardHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	start := time.Now()
	services, err := h.refdata.Services(ctx)
	if err == nil {
		var stylists []refdata.Stylist
		stylists, err = h.refdata.Stylists(ctx)
		if err == nil {
			h.metrics.ObserveUpstreamLatency("refdata", time.Since(start).Seconds())
			sess := sessions.New(services, stylists)
			if saveErr := h.sessions.Save(ctx, sess); saveErr != nil {
				h.logger.Error("session save failed", "error", saveErr)
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "session_store_unavailable", Retryable: true})
				return
			}
			h.metrics.ObserveSessionStarted()
			h.logger.Info("wizard session started", "session_id", sess.ID,
				"services", len(services), "stylists", len(stylists))

			_, ctrl := h.controllerFor(sess)
			writeJSON(w, http.StatusCreated, h.state(sess, ctrl))
			return
		}
	}

	h.logger.Error("reference data load failed", "error", err)
	writeJSON(w, http.StatusBadGateway, errorResponse{
		Error:     "reference_data_unavailable",
		Message:   "Could not load services and stylists. Please retry.",
		Retryable: true,
	})
}

// GetSession returns the current wizard state.
func (h *WizardHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	_, ctrl := h.controllerFor(sess)
	writeJSON(w, http.StatusOK, h.state(sess, ctrl))
}

// UpdateData merge-updates the aggregate. Absent JSON keys leave fields
// untouched; gating is re-evaluated and reflected in the response.
func (h *WizardHandler) UpdateData(w http.ResponseWriter, r *http.Request) {
	var p booking.Partial
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_payload"})
		return
	}

	unlock := h.lockSession(chi.URLParam(r, "sessionID"))
	defer unlock()

	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	store, ctrl := h.controllerFor(sess)
	sess.Data = store.Update(p)
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		h.logger.Error("session save failed", "session_id", sess.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "session_store_unavailable", Retryable: true})
		return
	}
	writeJSON(w, http.StatusOK, h.state(sess, ctrl))
}

// Next advances one step. A gate block is a 409, never a mutation.
func (h *WizardHandler) Next(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, func(ctrl *booking.Controller) (bool, string) {
		if !ctrl.Next() {
			h.metrics.ObserveStepBlocked(strconv.Itoa(ctrl.Current()))
			return false, "step_incomplete"
		}
		h.metrics.ObserveStepAdvanced(strconv.Itoa(ctrl.Current()))
		return true, ""
	})
}

// Previous moves one step back.
func (h *WizardHandler) Previous(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, func(ctrl *booking.Controller) (bool, string) {
		if !ctrl.Previous() {
			return false, "already_at_first_step"
		}
		return true, ""
	})
}

// Jump moves directly to a step, subject to the completion guard.
func (h *WizardHandler) Jump(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Step int `json:"step"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_payload"})
		return
	}
	h.navigate(w, r, func(ctrl *booking.Controller) (bool, string) {
		if !ctrl.JumpTo(req.Step) {
			return false, "jump_rejected"
		}
		return true, ""
	})
}

func (h *WizardHandler) navigate(w http.ResponseWriter, r *http.Request, move func(*booking.Controller) (bool, string)) {
	unlock := h.lockSession(chi.URLParam(r, "sessionID"))
	defer unlock()

	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	_, ctrl := h.controllerFor(sess)
	moved, reason := move(ctrl)
	if !moved {
		writeJSON(w, http.StatusConflict, errorResponse{Error: reason})
		return
	}
	sess.Step = ctrl.Current()
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		h.logger.Error("session save failed", "session_id", sess.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "session_store_unavailable", Retryable: true})
		return
	}
	writeJSON(w, http.StatusOK, h.state(sess, ctrl))
}

type intentResponse struct {
	ClientSecret    string `json:"clientSecret"`
	Amount          int64  `json:"amount"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// CreateIntent requests a payment intent for the session. Repeat calls
// return the already-created intent.
func (h *WizardHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	unlock := h.lockSession(chi.URLParam(r, "sessionID"))
	defer unlock()

	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	store, _ := h.controllerFor(sess)
	bridge := payments.NewBridge(h.intents, store, sess.Reference, h.logger).
		WithIntent(sess.Intent).
		WithTipPercentage(h.tipPercentage)

	start := time.Now()
	intent, err := bridge.CreateIntent(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrNotOnlinePayment),
			errors.Is(err, payments.ErrUnknownService),
			errors.Is(err, payments.ErrIntentInFlight):
			writeJSON(w, http.StatusConflict, errorResponse{Error: "intent_unavailable", Message: err.Error()})
		default:
			// No charge happened; fully safe to retry.
			h.logger.Error("intent creation failed", "session_id", sess.ID, "error", err)
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: "intent_creation_failed", Retryable: true})
		}
		return
	}
	h.metrics.ObserveUpstreamLatency("create_intent", time.Since(start).Seconds())

	sess.Data = store.Get()
	sess.Intent = bridge.Intent()
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		h.logger.Error("session save failed", "session_id", sess.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "session_store_unavailable", Retryable: true})
		return
	}
	writeJSON(w, http.StatusOK, intentResponse{
		ClientSecret:    intent.ClientSecret,
		Amount:          intent.Amount,
		PaymentIntentID: intent.PaymentIntentID,
	})
}

type outcomeRequest struct {
	Status    string `json:"status,omitempty"`
	ID        string `json:"id,omitempty"`
	Message   string `json:"message,omitempty"`
	CardToken string `json:"cardToken,omitempty"`
}

// PaymentOutcome records one card confirmation attempt. With a server-side
// confirmer wired (dev/demo), a cardToken runs the confirmation here;
// otherwise the browser SDK's reported outcome is applied as-is.
func (h *WizardHandler) PaymentOutcome(w http.ResponseWriter, r *http.Request) {
	var req outcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_payload"})
		return
	}

	unlock := h.lockSession(chi.URLParam(r, "sessionID"))
	defer unlock()

	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	store, ctrl := h.controllerFor(sess)
	bridge := payments.NewBridge(h.intents, store, sess.Reference, h.logger).WithIntent(sess.Intent)

	var err error
	if req.CardToken != "" && h.confirmer != nil {
		_, err = bridge.ConfirmCard(r.Context(), h.confirmer, req.CardToken)
	} else if req.Status != "" {
		err = bridge.ApplyOutcome(payments.CardOutcome{Status: req.Status, ID: req.ID, Message: req.Message})
	} else {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_payload", Message: "status or cardToken required"})
		return
	}
	if err != nil {
		if errors.Is(err, payments.ErrNoIntent) {
			writeJSON(w, http.StatusConflict, errorResponse{Error: "no_payment_intent"})
			return
		}
		writeJSON(w, http.StatusConflict, errorResponse{Error: "outcome_rejected", Message: err.Error()})
		return
	}

	sess.Data = store.Get()
	h.metrics.ObservePaymentOutcome(string(sess.Data.PaymentStatus))
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		h.logger.Error("session save failed", "session_id", sess.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "session_store_unavailable", Retryable: true})
		return
	}
	writeJSON(w, http.StatusOK, h.state(sess, ctrl))
}

// PaymentRetry clears a failed payment so the form can be re-attempted.
func (h *WizardHandler) PaymentRetry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReopenIntent bool `json:"reopenIntent,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_payload"})
			return
		}
	}

	unlock := h.lockSession(chi.URLParam(r, "sessionID"))
	defer unlock()

	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	store, ctrl := h.controllerFor(sess)
	bridge := payments.NewBridge(h.intents, store, sess.Reference, h.logger).WithIntent(sess.Intent)
	if err := bridge.Reset(req.ReopenIntent); err != nil {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "not_retryable", Message: err.Error()})
		return
	}

	sess.Data = store.Get()
	sess.Intent = bridge.Intent()
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		h.logger.Error("session save failed", "session_id", sess.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "session_store_unavailable", Retryable: true})
		return
	}
	writeJSON(w, http.StatusOK, h.state(sess, ctrl))
}

// Finalize confirms the booking. A failure after a completed online payment
// is the support path: not retryable here, surfaced with the intent id.
func (h *WizardHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	unlock := h.lockSession(chi.URLParam(r, "sessionID"))
	defer unlock()

	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	store, ctrl := h.controllerFor(sess)
	if ctrl.Terminal() {
		// Already confirmed: replay the result instead of booking a second
		// appointment on a duplicate submit.
		writeJSON(w, http.StatusOK, h.state(sess, ctrl))
		return
	}
	start := time.Now()
	result, err := h.finalizer.Finalize(r.Context(), sess.ID, store.Get(), sess.Reference)
	if err != nil {
		var supportErr *confirmation.SupportError
		switch {
		case errors.As(err, &supportErr):
			h.metrics.ObserveFinalizeOutcome("support_needed")
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
				Error:           "support_needed",
				Message:         "Your payment went through but we could not confirm the booking. Please contact us and quote the reference below.",
				ContactSupport:  true,
				PaymentIntentID: supportErr.PaymentIntentID,
			})
		case errors.Is(err, confirmation.ErrFinalizeInFlight):
			writeJSON(w, http.StatusConflict, errorResponse{Error: "finalize_in_flight"})
		case errors.Is(err, confirmation.ErrPaymentIncomplete),
			errors.Is(err, confirmation.ErrNoPaymentMethod):
			h.metrics.ObserveFinalizeOutcome("rejected")
			writeJSON(w, http.StatusConflict, errorResponse{Error: "finalize_rejected", Message: err.Error()})
		default:
			h.metrics.ObserveFinalizeOutcome("retryable")
			h.logger.Error("finalize failed", "session_id", sess.ID, "error", err)
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: "confirmation_failed", Retryable: true})
		}
		return
	}
	h.metrics.ObserveUpstreamLatency("finalize", time.Since(start).Seconds())
	h.metrics.ObserveFinalizeOutcome("confirmed")

	sess.Data = store.Update(booking.Partial{
		AppointmentID:      booking.Int64(result.AppointmentID),
		ConfirmationNumber: booking.String(result.ConfirmationNumber),
	})
	ctrl.JumpTo(booking.StepConfirmation)
	sess.Step = booking.StepConfirmation
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		// The booking is confirmed server-side; losing the snapshot only
		// loses the confirmation screen.
		h.logger.Error("session save failed after confirm", "session_id", sess.ID, "error", err)
	}
	writeJSON(w, http.StatusOK, h.state(sess, ctrl))
}

func (h *WizardHandler) loadSession(w http.ResponseWriter, r *http.Request) (*sessions.Session, bool) {
	id := chi.URLParam(r, "sessionID")
	sess, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "session_not_found"})
		} else {
			h.logger.Error("session load failed", "session_id", id, "error", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "session_store_unavailable", Retryable: true})
		}
		return nil, false
	}
	return sess, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

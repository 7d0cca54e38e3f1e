package confirmation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/khakanhyder/schedule-pro-web-app-sub005/internal/booking"
	"github.com/khakanhyder/schedule-pro-web-app-sub005/pkg/logging"
)

var confirmTracer = otel.Tracer("schedulepro.internal.confirmation")

var (
	// ErrFinalizeInFlight is returned when a finalize is already running for
	// the session. Duplicate submits must not double-book.
	ErrFinalizeInFlight = errors.New("confirmation: finalize already in flight")

	// ErrNoPaymentMethod is returned when finalize is requested before a
	// payment method was chosen.
	ErrNoPaymentMethod = errors.New("confirmation: no payment method selected")

	// ErrPaymentIncomplete is returned when an online booking tries to
	// finalize before the card payment completed.
	ErrPaymentIncomplete = errors.New("confirmation: online payment has not completed")
)

// SupportError is the post-payment finalization failure: the charge
// succeeded but the booking could not be confirmed. It must not be retried
// by replaying the payment; the user contacts support with the intent id.
type SupportError struct {
	PaymentIntentID string
	Err             error
}

func (e *SupportError) Error() string {
	return fmt.Sprintf("confirmation: booking unconfirmed after successful payment (reference %s): %v",
		e.PaymentIntentID, e.Err)
}

func (e *SupportError) Unwrap() error { return e.Err }

// Result is the terminal booking state returned by the confirmation
// endpoint.
type Result struct {
	AppointmentID      int64  `json:"appointmentId"`
	ConfirmationNumber string `json:"confirmationNumber"`
}

// Finalizer commits a booking against the confirmation endpoint, once per
// session at a time. For cash bookings it is called straight from the
// payment-method step; for online bookings only after the card payment
// completed.
type Finalizer struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger

	// defaultDuration is used when the booked service carries no duration.
	defaultDuration int

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewFinalizer creates a finalizer against the booking API.
func NewFinalizer(baseURL string, logger *logging.Logger) *Finalizer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Finalizer{
		baseURL:         strings.TrimRight(baseURL, "/"),
		httpClient:      &http.Client{Timeout: 15 * time.Second},
		logger:          logger,
		defaultDuration: 60,
		inFlight:        make(map[string]struct{}),
	}
}

// WithDefaultDuration overrides the fallback appointment length in minutes.
func (f *Finalizer) WithDefaultDuration(minutes int) *Finalizer {
	if minutes > 0 {
		f.defaultDuration = minutes
	}
	return f
}

// WithBaseURL overrides the API base URL (for testing).
func (f *Finalizer) WithBaseURL(baseURL string) *Finalizer {
	if baseURL != "" {
		f.baseURL = strings.TrimRight(baseURL, "/")
	}
	return f
}

// WithHTTPClient overrides the underlying HTTP client.
func (f *Finalizer) WithHTTPClient(hc *http.Client) *Finalizer {
	if hc != nil {
		f.httpClient = hc
	}
	return f
}

type confirmRequest struct {
	PaymentIntentID *string `json:"paymentIntentId"`
	CustomerName    string  `json:"customerName"`
	CustomerEmail   string  `json:"customerEmail"`
	CustomerPhone   string  `json:"customerPhone"`
	AppointmentDate string  `json:"appointmentDate"`
	StartTime       string  `json:"startTime"`
	EndTime         string  `json:"endTime"`
	Notes           string  `json:"notes,omitempty"`
}

type confirmResponse struct {
	Appointment struct {
		ID                 int64  `json:"id"`
		ConfirmationNumber string `json:"confirmationNumber"`
	} `json:"appointment"`
}

// Finalize submits the booking for confirmation and returns the terminal
// fields. sessionKey scopes the in-flight guard; concurrent duplicates for
// the same key get ErrFinalizeInFlight instead of a second booking.
//
// An endpoint failure after a completed online payment is returned as
// *SupportError: money has moved, so the caller must surface the
// contact-support path rather than a retry.
func (f *Finalizer) Finalize(ctx context.Context, sessionKey string, data booking.Data, ref booking.Reference) (*Result, error) {
	switch data.PaymentMethod {
	case booking.PaymentMethodOnline:
		if data.PaymentStatus != booking.PaymentStatusCompleted {
			return nil, ErrPaymentIncomplete
		}
	case booking.PaymentMethodCash:
		// Confirmed unpaid; no intent involved.
	default:
		return nil, ErrNoPaymentMethod
	}

	f.mu.Lock()
	if _, busy := f.inFlight[sessionKey]; busy {
		f.mu.Unlock()
		return nil, ErrFinalizeInFlight
	}
	f.inFlight[sessionKey] = struct{}{}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		delete(f.inFlight, sessionKey)
		f.mu.Unlock()
	}()

	ctx, span := confirmTracer.Start(ctx, "confirmation.finalize")
	defer span.End()
	span.SetAttributes(
		attribute.String("schedulepro.session_key", sessionKey),
		attribute.String("schedulepro.payment_method", string(data.PaymentMethod)),
	)

	req := confirmRequest{
		CustomerName:    data.ClientName,
		CustomerEmail:   data.ClientEmail,
		CustomerPhone:   data.ClientPhone,
		AppointmentDate: data.AppointmentDate,
		StartTime:       data.TimeSlot,
		EndTime:         endTime(data.TimeSlot, f.serviceDuration(data, ref)),
		Notes:           data.SpecialRequests,
	}
	if data.PaymentMethod == booking.PaymentMethodOnline {
		req.PaymentIntentID = &data.PaymentIntentID
	}

	result, err := f.post(ctx, req)
	if err != nil {
		span.RecordError(err)
		if data.PaymentMethod == booking.PaymentMethodOnline {
			f.logger.Error("booking unconfirmed after successful payment",
				"session_key", sessionKey,
				"payment_intent_id", data.PaymentIntentID,
				"error", err,
			)
			return nil, &SupportError{PaymentIntentID: data.PaymentIntentID, Err: err}
		}
		return nil, fmt.Errorf("confirmation: confirm booking: %w", err)
	}

	f.logger.Info("booking confirmed",
		"session_key", sessionKey,
		"appointment_id", result.AppointmentID,
		"confirmation_number", result.ConfirmationNumber,
	)
	return result, nil
}

func (f *Finalizer) post(ctx context.Context, req confirmRequest) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		f.baseURL+"/api/appointments", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(raw))
	}

	var decoded confirmResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if decoded.Appointment.ID == 0 {
		return nil, fmt.Errorf("response missing appointment id")
	}

	number := decoded.Appointment.ConfirmationNumber
	if number == "" {
		number = fmt.Sprintf("BK-%d", decoded.Appointment.ID)
	}
	return &Result{
		AppointmentID:      decoded.Appointment.ID,
		ConfirmationNumber: number,
	}, nil
}

func (f *Finalizer) serviceDuration(data booking.Data, ref booking.Reference) int {
	if svc, ok := ref.ServiceByID(data.ServiceID); ok && svc.DurationMinutes > 0 {
		return svc.DurationMinutes
	}
	return f.defaultDuration
}

// endTime derives the slot end from the start and the service duration.
// Slots arrive as "15:04" or "3:04 PM"; an unparseable slot is passed
// through unchanged and the endpoint applies its own default.
func endTime(slot string, minutes int) string {
	for _, layout := range []string{"15:04", "3:04 PM", "3:04PM"} {
		if t, err := time.Parse(layout, strings.TrimSpace(slot)); err == nil {
			return t.Add(time.Duration(minutes) * time.Minute).Format(layout)
		}
	}
	return slot
}

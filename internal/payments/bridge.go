package payments

import (
	"context"
	"fmt"
	"sync"

	"github.com/khakanhyder/schedule-pro-web-app-sub005/internal/booking"
	"github.com/khakanhyder/schedule-pro-web-app-sub005/pkg/logging"
)

// allowedTransitions is the payment sub-state-machine:
// none -> processing -> {completed, failed}, failed -> none via Reset.
// Completed is terminal; finalize takes over from there.
var allowedTransitions = map[booking.PaymentStatus][]booking.PaymentStatus{
	booking.PaymentStatusNone:       {booking.PaymentStatusProcessing, booking.PaymentStatusCompleted, booking.PaymentStatusFailed},
	booking.PaymentStatusProcessing: {booking.PaymentStatusProcessing, booking.PaymentStatusCompleted, booking.PaymentStatusFailed},
	booking.PaymentStatusCompleted:  {},
	booking.PaymentStatusFailed:     {booking.PaymentStatusFailed},
}

func canTransition(from, to booking.PaymentStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Bridge drives the online-payment sub-flow for one session: it creates the
// provider intent at most once, maps card SDK outcomes onto the local
// payment status, and arms retries. It mutates the aggregate only through
// the store.
type Bridge struct {
	client IntentCreator
	store  *booking.DataStore
	ref    booking.Reference
	logger *logging.Logger

	tipPercentage float64

	mu       sync.Mutex
	inFlight bool
	intent   *Intent
}

// NewBridge creates a payment bridge for one booking session.
func NewBridge(client IntentCreator, store *booking.DataStore, ref booking.Reference, logger *logging.Logger) *Bridge {
	if logger == nil {
		logger = logging.Default()
	}
	return &Bridge{
		client: client,
		store:  store,
		ref:    ref,
		logger: logger,
	}
}

// WithIntent seeds a previously created intent when resuming a session, so
// a resumed wizard does not mint a duplicate provider object.
func (b *Bridge) WithIntent(intent *Intent) *Bridge {
	b.intent = intent
	return b
}

// WithTipPercentage sets the tip percentage sent on intent creation.
func (b *Bridge) WithTipPercentage(pct float64) *Bridge {
	b.tipPercentage = pct
	return b
}

// Intent returns the created intent, if any, for snapshotting.
func (b *Bridge) Intent() *Intent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.intent
}

// CreateIntent requests a payment intent from the provider. A successful
// intent is sticky: repeat calls return the same intent rather than creating
// a second provider object. Only a failed attempt (or an explicit reopening
// Reset) clears the way for a fresh create. Concurrent duplicates are
// rejected with ErrIntentInFlight.
func (b *Bridge) CreateIntent(ctx context.Context) (*Intent, error) {
	data := b.store.Get()
	if data.PaymentMethod != booking.PaymentMethodOnline {
		return nil, ErrNotOnlinePayment
	}
	svc, ok := b.ref.ServiceByID(data.ServiceID)
	if !ok || svc.Price <= 0 {
		return nil, ErrUnknownService
	}

	b.mu.Lock()
	if b.intent != nil && data.PaymentStatus != booking.PaymentStatusFailed {
		intent := b.intent
		b.mu.Unlock()
		return intent, nil
	}
	if b.inFlight {
		b.mu.Unlock()
		return nil, ErrIntentInFlight
	}
	b.inFlight = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.inFlight = false
		b.mu.Unlock()
	}()

	intent, err := b.client.CreateIntent(ctx, IntentRequest{
		ServiceID:     data.ServiceID,
		CustomerEmail: data.ClientEmail,
		CustomerName:  data.ClientName,
		TipPercentage: b.tipPercentage,
	})
	if err != nil {
		// No charge has occurred; the caller may retry freely.
		return nil, err
	}

	b.mu.Lock()
	b.intent = intent
	b.mu.Unlock()

	b.store.Update(booking.Partial{
		PaymentIntentID: booking.String(intent.PaymentIntentID),
	})
	return intent, nil
}

// ConfirmCard runs the external SDK confirmation and applies its outcome.
func (b *Bridge) ConfirmCard(ctx context.Context, confirmer CardConfirmer, cardToken string) (*CardOutcome, error) {
	b.mu.Lock()
	intent := b.intent
	b.mu.Unlock()
	if intent == nil {
		return nil, ErrNoIntent
	}

	outcome, err := confirmer.Confirm(ctx, intent.ClientSecret, cardToken)
	if err != nil {
		return nil, fmt.Errorf("payments: card confirmation: %w", err)
	}
	if err := b.ApplyOutcome(*outcome); err != nil {
		return nil, err
	}
	return outcome, nil
}

// ApplyOutcome maps one SDK outcome onto the local payment status:
// processing stays pending, an error marks the attempt failed with the
// provider message for display, and succeeded completes the payment and
// records the charge id for the finalizer.
func (b *Bridge) ApplyOutcome(outcome CardOutcome) error {
	data := b.store.Get()

	var target booking.PaymentStatus
	switch outcome.Status {
	case OutcomeProcessing:
		target = booking.PaymentStatusProcessing
	case OutcomeSucceeded:
		target = booking.PaymentStatusCompleted
	default:
		target = booking.PaymentStatusFailed
	}

	if !canTransition(data.PaymentStatus, target) {
		return fmt.Errorf("payments: invalid payment status transition %q -> %q",
			data.PaymentStatus, target)
	}

	p := booking.Partial{PaymentStatus: booking.Status(target)}
	switch target {
	case booking.PaymentStatusCompleted:
		if outcome.ID != "" {
			p.PaymentIntentID = booking.String(outcome.ID)
		}
		p.PaymentError = booking.String("")
	case booking.PaymentStatusFailed:
		msg := outcome.Message
		if msg == "" {
			msg = "Payment failed. Please try again."
		}
		p.PaymentError = booking.String(msg)
	}
	b.store.Update(p)

	b.logger.Info("card outcome applied",
		"status", string(target),
		"payment_id", outcome.ID,
	)
	return nil
}

// Reset re-arms the payment form after a failure by clearing the failed
// status. The recorded intent is reused unless reopenIntent is set, for the
// case where the provider reports the intent itself expired.
func (b *Bridge) Reset(reopenIntent bool) error {
	data := b.store.Get()
	if data.PaymentStatus != booking.PaymentStatusFailed {
		return ErrNotFailed
	}

	p := booking.Partial{
		PaymentStatus: booking.Status(booking.PaymentStatusNone),
		PaymentError:  booking.String(""),
	}
	if reopenIntent {
		b.mu.Lock()
		b.intent = nil
		b.mu.Unlock()
		p.PaymentIntentID = booking.String("")
	}
	b.store.Update(p)
	return nil
}

package payments

import "errors"

var (
	// ErrNotOnlinePayment is returned when an intent is requested for a
	// session that has not chosen online payment.
	ErrNotOnlinePayment = errors.New("payments: payment method is not online")

	// ErrUnknownService is returned when the selected service cannot be
	// resolved to a price.
	ErrUnknownService = errors.New("payments: selected service has no known price")

	// ErrIntentInFlight is returned when an intent request is already
	// running for the session. Duplicate calls must not create duplicate
	// external payment objects.
	ErrIntentInFlight = errors.New("payments: intent creation already in flight")

	// ErrNoIntent is returned when a card outcome arrives before an intent
	// exists.
	ErrNoIntent = errors.New("payments: no payment intent created")

	// ErrNotFailed is returned when a retry reset is requested while the
	// payment is not in the failed state.
	ErrNotFailed = errors.New("payments: payment is not in a failed state")
)

package payments

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/khakanhyder/schedule-pro-web-app-sub005/pkg/logging"
)

// Card SDK outcome statuses, as reported by the external payment element.
const (
	OutcomeSucceeded  = "succeeded"
	OutcomeProcessing = "processing"
	OutcomeFailed     = "failed"
)

// CardOutcome is the explicit result of one card confirmation attempt. The
// external SDK's callback shape is flattened into a value so retry logic
// stays linear and testable.
type CardOutcome struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

// CardConfirmer runs the external SDK's confirmation for a client secret.
// Card collection and PCI scope live entirely behind this interface.
type CardConfirmer interface {
	Confirm(ctx context.Context, clientSecret, cardToken string) (*CardOutcome, error)
}

// FakeCardConfirmer is a dev/demo confirmer that scripts outcomes from the
// card token, so the full wizard can run without provider credentials.
//
// This MUST be gated by configuration (ALLOW_FAKE_PAYMENTS) and never
// enabled in production.
type FakeCardConfirmer struct {
	logger *logging.Logger
}

// NewFakeCardConfirmer creates the dev/demo confirmer.
func NewFakeCardConfirmer(logger *logging.Logger) *FakeCardConfirmer {
	if logger == nil {
		logger = logging.Default()
	}
	return &FakeCardConfirmer{logger: logger}
}

// Confirm scripts the outcome: tokens containing "decline" fail, tokens
// containing "processing" stay pending, anything else succeeds.
func (f *FakeCardConfirmer) Confirm(ctx context.Context, clientSecret, cardToken string) (*CardOutcome, error) {
	_ = ctx
	if clientSecret == "" {
		return nil, ErrNoIntent
	}
	token := strings.ToLower(cardToken)
	switch {
	case strings.Contains(token, "decline"):
		f.logger.Info("fake confirmer: scripted decline", "card_token", cardToken)
		return &CardOutcome{Status: OutcomeFailed, Message: "Your card was declined."}, nil
	case strings.Contains(token, "processing"):
		return &CardOutcome{Status: OutcomeProcessing}, nil
	default:
		id := "pi_fake_" + uuid.New().String()[:8]
		f.logger.Info("fake confirmer: scripted success", "payment_id", id)
		return &CardOutcome{Status: OutcomeSucceeded, ID: id}, nil
	}
}

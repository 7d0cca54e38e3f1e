package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/khakanhyder/schedule-pro-web-app-sub005/internal/booking"
	"github.com/khakanhyder/schedule-pro-web-app-sub005/internal/payments"
	"github.com/khakanhyder/schedule-pro-web-app-sub005/internal/refdata"
)

// ErrNotFound is returned when a session id does not exist or has expired.
var ErrNotFound = errors.New("sessions: session not found")

// Session is one wizard run: the aggregate, the current step, the session's
// immutable reference lists, and the provider intent if one was created.
// Sessions are ephemeral; abandonment is handled by TTL expiry, not by code.
type Session struct {
	ID        string            `json:"id"`
	Step      int               `json:"step"`
	Data      booking.Data      `json:"data"`
	Reference booking.Reference `json:"reference"`
	Intent    *payments.Intent  `json:"intent,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// New creates a session at step 1 with a fresh aggregate and the loaded
// reference lists. The empty-roster stylist default is applied here, at the
// data-load site.
func New(services []refdata.Service, stylists []refdata.Stylist) *Session {
	ref := booking.Reference{Services: services, Stylists: stylists}
	store := booking.NewDataStore()
	booking.EnsureStylistDefault(store, ref)

	now := time.Now().UTC()
	return &Session{
		ID:        uuid.NewString(),
		Step:      booking.StepService,
		Data:      store.Get(),
		Reference: ref,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Store persists session snapshots between requests.
type Store interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

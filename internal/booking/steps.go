package booking

import (
	"github.com/khakanhyder/schedule-pro-web-app-sub005/internal/refdata"
)

// Step ids. The upper bound is fixed at six; a cash booking visits five of
// them because the online-payment step is elided from its path.
const (
	StepService       = 1
	StepDetails       = 2
	StepPreferences   = 3
	StepPaymentMethod = 4
	StepPayment       = 5
	StepConfirmation  = 6

	TotalSteps = 6
)

// Reference carries the session's immutable reference lists. It is loaded
// once at session start and threaded through gating so cross-field rules
// (stylist required only when stylists exist) stay in code.
type Reference struct {
	Services []refdata.Service `json:"services"`
	Stylists []refdata.Stylist `json:"stylists"`
}

// ServiceByID looks up a service in the session's reference list.
func (r Reference) ServiceByID(id string) (refdata.Service, bool) {
	for _, s := range r.Services {
		if s.ID == id {
			return s, true
		}
	}
	return refdata.Service{}, false
}

// HasStylists reports whether the deployment has any staff to pick from.
func (r Reference) HasStylists() bool {
	return len(r.Stylists) > 0
}

// StepDefinition describes one wizard step. Complete is the step's typed
// completion predicate; a nil predicate means the step is always
// satisfiable. Skipped marks steps elided from the effective path for the
// current data (the online-payment step under cash).
type StepDefinition struct {
	ID          int
	Title       string
	Description string
	Complete    func(Data, Reference) bool
	Skipped     func(Data) bool
}

var steps = []StepDefinition{
	{
		ID:          StepService,
		Title:       "Service Selection",
		Description: "Choose a service and, if available, a preferred stylist.",
		Complete: func(d Data, ref Reference) bool {
			if d.ServiceID == "" {
				return false
			}
			// Stylist choice is only required when there is a list to
			// choose from; an empty roster auto-fills the no-preference
			// sentinel instead of blocking progress.
			if ref.HasStylists() {
				return d.StylistID != ""
			}
			return true
		},
	},
	{
		ID:          StepDetails,
		Title:       "Appointment Details",
		Description: "Pick a date and time slot and tell us how to reach you.",
		Complete: func(d Data, _ Reference) bool {
			return d.AppointmentDate != "" &&
				d.TimeSlot != "" &&
				d.ClientName != "" &&
				d.ClientEmail != "" &&
				d.ClientPhone != ""
		},
	},
	{
		ID:          StepPreferences,
		Title:       "Additional Details",
		Description: "Optional requests and notification preferences.",
	},
	{
		ID:          StepPaymentMethod,
		Title:       "Payment Method",
		Description: "Pay online now or in person with cash.",
		Complete: func(d Data, _ Reference) bool {
			return d.PaymentMethod != PaymentMethodNone
		},
	},
	{
		ID:          StepPayment,
		Title:       "Payment Processing",
		Description: "Secure card payment handled by the payment provider.",
		// Not gated here: the payment sub-flow enforces its own state
		// machine before finalize is reachable.
		Skipped: func(d Data) bool {
			return d.PaymentMethod == PaymentMethodCash
		},
	},
	{
		ID:          StepConfirmation,
		Title:       "Confirmation",
		Description: "Your appointment details and confirmation number.",
	},
}

// Steps returns the fixed, ordered step registry.
func Steps() []StepDefinition {
	out := make([]StepDefinition, len(steps))
	copy(out, steps)
	return out
}

// StepByID returns the definition for a step id.
func StepByID(id int) (StepDefinition, bool) {
	if id < StepService || id > StepConfirmation {
		return StepDefinition{}, false
	}
	return steps[id-1], true
}

// EnsureStylistDefault applies the empty-roster rule: when the stylist list
// is empty and no stylist is set, the aggregate gets the no-preference
// sentinel so step 1 can complete. Call it when reference data loads so the
// quirk is visible at the load site rather than buried in gating.
func EnsureStylistDefault(store *DataStore, ref Reference) {
	if ref.HasStylists() {
		return
	}
	if store.Get().StylistID != "" {
		return
	}
	store.Update(Partial{StylistID: String(StylistAny)})
}

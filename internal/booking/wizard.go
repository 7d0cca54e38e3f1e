package booking

import (
	"math"

	"github.com/khakanhyder/schedule-pro-web-app-sub005/pkg/logging"
)

// Controller is the wizard state machine: it owns the current step and is
// the only thing that moves it. Navigation never mutates the aggregate.
type Controller struct {
	store  *DataStore
	ref    Reference
	logger *logging.Logger

	current       int
	cashShortPath bool
	canAdvance    bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithCashShortPathProgress makes Progress report against the effective
// five-step path for cash bookings instead of the fixed six-step display.
// Off by default to preserve the step-indicator contract.
func WithCashShortPathProgress() ControllerOption {
	return func(c *Controller) { c.cashShortPath = true }
}

// WithLogger attaches a logger for blocked-navigation debug logs.
func WithLogger(logger *logging.Logger) ControllerOption {
	return func(c *Controller) { c.logger = logger }
}

// NewController creates a controller at step 1 and subscribes to the store
// so gating is re-evaluated after every data update.
func NewController(store *DataStore, ref Reference, opts ...ControllerOption) *Controller {
	return RestoreController(store, ref, StepService, opts...)
}

// RestoreController creates a controller positioned at a previously saved
// step, for resuming a session from a snapshot.
func RestoreController(store *DataStore, ref Reference, step int, opts ...ControllerOption) *Controller {
	if step < StepService {
		step = StepService
	}
	if step > StepConfirmation {
		step = StepConfirmation
	}
	c := &Controller{
		store:   store,
		ref:     ref,
		logger:  logging.Default(),
		current: step,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.refreshGate(store.Get())
	store.Subscribe(c.refreshGate)
	return c
}

func (c *Controller) refreshGate(d Data) {
	def, _ := StepByID(c.current)
	c.canAdvance = CanProceed(def, d, c.ref)
}

// Current returns the current step id.
func (c *Controller) Current() int { return c.current }

// CanAdvance reports whether the current step's gate passes. Kept current by
// the store subscription; drives the Next control's enabled state.
func (c *Controller) CanAdvance() bool { return c.canAdvance }

// Next advances one step when the current step's gate passes. A blocked or
// out-of-range call is a deliberate no-op returning false, never an error:
// the guard must hold even when the UI fails to disable the control.
func (c *Controller) Next() bool {
	if c.current >= TotalSteps {
		return false
	}
	data := c.store.Get()
	def, _ := StepByID(c.current)
	if !CanProceed(def, data, c.ref) {
		c.logger.Debug("next blocked by step gate", "step", c.current)
		return false
	}
	c.current++
	c.skipForward(data)
	c.refreshGate(data)
	return true
}

// Previous moves one step back unconditionally; no re-validation is needed
// going backward.
func (c *Controller) Previous() bool {
	if c.current <= StepService {
		return false
	}
	data := c.store.Get()
	c.current--
	c.skipBackward(data)
	c.refreshGate(data)
	return true
}

// JumpTo moves directly to a step. Allowed when the target is at or behind
// the current step, or when every step before the target is completed.
// Rejected jumps return false silently; the UI is expected not to offer
// them, but the guard exists regardless.
func (c *Controller) JumpTo(step int) bool {
	if step < StepService || step > TotalSteps {
		return false
	}
	data := c.store.Get()
	if def, ok := StepByID(step); ok && def.Skipped != nil && def.Skipped(data) {
		return false
	}
	if step > c.current {
		for id := StepService; id < step; id++ {
			if def, _ := StepByID(id); def.Skipped != nil && def.Skipped(data) {
				continue
			}
			if !IsCompleted(id, c.current, data, c.ref) {
				return false
			}
		}
	}
	c.current = step
	c.refreshGate(data)
	return true
}

func (c *Controller) skipForward(data Data) {
	for c.current < TotalSteps {
		def, _ := StepByID(c.current)
		if def.Skipped == nil || !def.Skipped(data) {
			return
		}
		c.current++
	}
}

func (c *Controller) skipBackward(data Data) {
	for c.current > StepService {
		def, _ := StepByID(c.current)
		if def.Skipped == nil || !def.Skipped(data) {
			return
		}
		c.current--
	}
}

// EffectiveSteps returns the step ids on the session's path given the
// current data: all six for online payment, five for cash.
func (c *Controller) EffectiveSteps() []int {
	data := c.store.Get()
	out := make([]int, 0, TotalSteps)
	for _, def := range steps {
		if def.Skipped != nil && def.Skipped(data) {
			continue
		}
		out = append(out, def.ID)
	}
	return out
}

// CompletedSteps returns the ids currently showing as completed. Steps
// elided from the effective path never show a checkmark; the user was never
// there.
func (c *Controller) CompletedSteps() []int {
	data := c.store.Get()
	var out []int
	for _, def := range steps {
		if def.Skipped != nil && def.Skipped(data) {
			continue
		}
		if IsCompleted(def.ID, c.current, data, c.ref) {
			out = append(out, def.ID)
		}
	}
	return out
}

// Progress returns the rounded completion percentage. By default this is
// current/total against the fixed six steps, uncorrected for the cash short
// path; WithCashShortPathProgress switches to the effective path.
func (c *Controller) Progress() int {
	if c.cashShortPath {
		path := c.EffectiveSteps()
		pos := 0
		for i, id := range path {
			if id == c.current {
				pos = i + 1
				break
			}
		}
		if pos == 0 || len(path) == 0 {
			return 0
		}
		return int(math.Round(float64(pos) / float64(len(path)) * 100))
	}
	return int(math.Round(float64(c.current) / float64(TotalSteps) * 100))
}

// Terminal reports whether the booking reached its terminal state: a
// confirmed appointment id is recorded and no further navigation is
// meaningful.
func (c *Controller) Terminal() bool {
	return c.store.Get().AppointmentID != 0
}

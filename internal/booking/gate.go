package booking

// CanProceed reports whether the step's completion predicate is satisfied by
// the current data. Pure and idempotent; safe to call on every update.
func CanProceed(def StepDefinition, data Data, ref Reference) bool {
	if def.Complete == nil {
		return true
	}
	return def.Complete(data, ref)
}

// IsCompleted reports whether a step shows as completed in the step
// indicator: any step strictly behind the current one counts as
// visited-and-passed, and the current step counts once its predicate holds.
func IsCompleted(stepID, currentStep int, data Data, ref Reference) bool {
	if stepID < currentStep {
		return true
	}
	if stepID != currentStep {
		return false
	}
	def, ok := StepByID(stepID)
	if !ok {
		return false
	}
	return CanProceed(def, data, ref)
}

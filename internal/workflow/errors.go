package workflow

import "fmt"

// TransitionError is returned when an operation is not allowed at the current step
// or a step change's precondition does not hold
type TransitionError struct {
	Step   int
	Op     string
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s not allowed at step %d: %s", e.Op, e.Step, e.Reason)
}

// ValidationError is returned when a custom scenario or relation is rejected
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError is returned when a scenario or relation id is unknown
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

package executor

import (
	"fmt"

	"api-testgen/internal/types"
)

// AlreadyRunningError rejects a run of a test case that is still in flight
type AlreadyRunningError struct {
	TestCaseID string
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("test case %s is already running", e.TestCaseID)
}

// CaseNotFoundError is returned when a test case id does not exist
type CaseNotFoundError struct {
	TestCaseID string
}

func (e *CaseNotFoundError) Error() string {
	return fmt.Sprintf("test case %s not found", e.TestCaseID)
}

// NetworkError means the target could not be reached. It is recorded on the
// result, never returned to callers.
type NetworkError struct {
	Step int
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("step %d: target unreachable: %v", e.Step+1, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// AssertionError means the response did not match the expectation. It is
// recorded on the result, never returned to callers.
type AssertionError struct {
	Step     int
	Expected types.Expectation
	Got      int
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("step %d: expected status %d-%d, got %d", e.Step+1, e.Expected.MinStatus, e.Expected.MaxStatus, e.Got)
}

package workflow

import (
	"api-testgen/internal/executor"
	"api-testgen/internal/types"

	"go.uber.org/zap"
)

// BeginRun marks a test case running and returns a copy of it with the run's ticket
func (c *Controller) BeginRun(id string) (types.TestCase, executor.Ticket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step < StepGenerate {
		return types.TestCase{}, executor.Ticket{}, c.reject("run", "test cases run at steps 3 and 4")
	}
	i := c.caseIndex(id)
	if i < 0 {
		return types.TestCase{}, executor.Ticket{}, &executor.CaseNotFoundError{TestCaseID: id}
	}
	if c.testCases[i].Status == types.StatusRunning {
		return types.TestCase{}, executor.Ticket{}, &executor.AlreadyRunningError{TestCaseID: id}
	}

	c.testCases[i].Status = types.StatusRunning
	ticket := executor.Ticket{TestCaseID: id, Epoch: c.epoch, Generation: c.generation}
	return cloneTestCase(c.testCases[i]), ticket, nil
}

// FinishRun records a result. Results of runs started before a reset,
// restore or regeneration are discarded and false is returned.
func (c *Controller) FinishRun(ticket executor.Ticket, result types.ExecutionResult) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ticket.Epoch != c.epoch || ticket.Generation != c.generation {
		return false
	}
	i := c.caseIndex(ticket.TestCaseID)
	if i < 0 || c.testCases[i].Status != types.StatusRunning {
		return false
	}

	finished := result.FinishedAt
	duration := result.DurationMs
	tc := &c.testCases[i]
	tc.Status = result.Status
	tc.LastRun = &finished
	tc.DurationMs = &duration
	c.results = append(c.results, result)

	c.logger.Info("test case finished",
		zap.String("test_case", tc.ID),
		zap.String("status", string(tc.Status)),
		zap.Int64("duration_ms", duration))
	return true
}

func (c *Controller) caseIndex(id string) int {
	for i := range c.testCases {
		if c.testCases[i].ID == id {
			return i
		}
	}
	return -1
}

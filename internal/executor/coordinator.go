package executor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"api-testgen/internal/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Response is what a target returns for one request
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Target performs test requests against the system under test
type Target interface {
	Invoke(ctx context.Context, req types.TestRequest) (*Response, error)
}

// Ticket identifies one run. Epoch and Generation let the ledger recognise
// results that arrive after a reset or a regeneration.
type Ticket struct {
	TestCaseID string
	Epoch      uint64
	Generation uint64
}

// Ledger owns test case state. BeginRun marks a case running and FinishRun
// records the outcome; FinishRun returns false when the ticket is stale and the
// result was discarded.
type Ledger interface {
	BeginRun(id string) (types.TestCase, Ticket, error)
	FinishRun(ticket Ticket, result types.ExecutionResult) bool
}

// Config holds configuration for test execution
type Config struct {
	MaxWorkers int
}

// Coordinator runs test cases against a target
type Coordinator struct {
	ledger Ledger
	target Target
	config Config
	logger *zap.Logger
	now    func() time.Time
}

// NewCoordinator creates a new coordinator
func NewCoordinator(ledger Ledger, target Target, config Config, logger *zap.Logger) *Coordinator {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		ledger: ledger,
		target: target,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// RunOne executes a single test case. Only a missing case or a case that is
// already running produce an error; target failures are recorded as a failed result.
func (c *Coordinator) RunOne(ctx context.Context, id string) (types.ExecutionResult, error) {
	tc, ticket, err := c.ledger.BeginRun(id)
	if err != nil {
		c.logger.Warn("test case run rejected", zap.String("test_case", id), zap.Error(err))
		return types.ExecutionResult{}, err
	}

	result := c.execute(ctx, tc)
	if !c.ledger.FinishRun(ticket, result) {
		c.logger.Info("discarding result of a stale run", zap.String("test_case", id))
	}
	return result, nil
}

// RunAll executes the given cases concurrently. Every case obeys the same
// at-most-one rule as RunOne; cases that cannot start are reported in the
// joined error after the others have finished.
func (c *Coordinator) RunAll(ctx context.Context, ids []string) ([]types.ExecutionResult, error) {
	ids = dedupe(ids)

	results := make([]*types.ExecutionResult, len(ids))
	errs := make([]error, len(ids))
	var wg sync.WaitGroup

	// Create a channel to limit concurrent executions
	sem := make(chan struct{}, c.config.MaxWorkers)

	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				errs[i] = fmt.Errorf("test case %s not started: %w", id, ctx.Err())
				return
			case sem <- struct{}{}:
			}
			defer func() { <-sem }()
			if err := ctx.Err(); err != nil {
				errs[i] = fmt.Errorf("test case %s not started: %w", id, err)
				return
			}

			result, err := c.RunOne(ctx, id)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = &result
		}(i, id)
	}
	wg.Wait()

	out := make([]types.ExecutionResult, 0, len(ids))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, errors.Join(errs...)
}

func (c *Coordinator) execute(ctx context.Context, tc types.TestCase) types.ExecutionResult {
	start := c.now()
	result := types.ExecutionResult{
		ID:         uuid.NewString(),
		TestCaseID: tc.ID,
		Status:     types.StatusPassed,
		StartedAt:  start,
	}

	for i, step := range tc.Steps {
		resp, err := c.target.Invoke(ctx, step)
		if err != nil {
			result.Status = types.StatusFailed
			result.ErrorKind = types.ErrorKindNetwork
			result.Error = (&NetworkError{Step: i, Err: err}).Error()
			break
		}
		result.StatusCode = resp.StatusCode
		if !tc.Expect.Accepts(resp.StatusCode) {
			result.Status = types.StatusFailed
			result.ErrorKind = types.ErrorKindAssertion
			result.Error = (&AssertionError{Step: i, Expected: tc.Expect, Got: resp.StatusCode}).Error()
			break
		}
	}

	result.FinishedAt = c.now()
	result.DurationMs = result.FinishedAt.Sub(start).Milliseconds()

	if result.Status == types.StatusFailed {
		c.logger.Debug("test case failed",
			zap.String("test_case", tc.ID),
			zap.String("kind", string(result.ErrorKind)),
			zap.String("error", result.Error))
	}
	return result
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

package executor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"api-testgen/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryLedger is a minimal ledger for exercising the coordinator
type memoryLedger struct {
	mu      sync.Mutex
	cases   map[string]*types.TestCase
	results []types.ExecutionResult
	epoch   uint64
}

func newMemoryLedger(cases ...types.TestCase) *memoryLedger {
	l := &memoryLedger{cases: make(map[string]*types.TestCase)}
	for i := range cases {
		tc := cases[i]
		l.cases[tc.ID] = &tc
	}
	return l
}

func (l *memoryLedger) BeginRun(id string) (types.TestCase, Ticket, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tc, ok := l.cases[id]
	if !ok {
		return types.TestCase{}, Ticket{}, &CaseNotFoundError{TestCaseID: id}
	}
	if tc.Status == types.StatusRunning {
		return types.TestCase{}, Ticket{}, &AlreadyRunningError{TestCaseID: id}
	}
	tc.Status = types.StatusRunning
	return *tc, Ticket{TestCaseID: id, Epoch: l.epoch}, nil
}

func (l *memoryLedger) FinishRun(ticket Ticket, result types.ExecutionResult) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ticket.Epoch != l.epoch {
		return false
	}
	tc := l.cases[ticket.TestCaseID]
	tc.Status = result.Status
	l.results = append(l.results, result)
	return true
}

func (l *memoryLedger) status(id string) types.CaseStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cases[id].Status
}

// stubTarget answers with fixed statuses per path and can block until released
type stubTarget struct {
	statuses map[string]int
	fail     map[string]bool
	started  chan string
	release  chan struct{}
}

func (s *stubTarget) Invoke(ctx context.Context, req types.TestRequest) (*Response, error) {
	if s.started != nil {
		s.started <- req.Path
	}
	if s.release != nil {
		<-s.release
	}
	if s.fail[req.Path] {
		return nil, errors.New("connection refused")
	}
	status, ok := s.statuses[req.Path]
	if !ok {
		status = http.StatusOK
	}
	return &Response{StatusCode: status}, nil
}

func testCase(id, path string, expect types.Expectation) types.TestCase {
	return types.TestCase{
		ID:     id,
		Type:   types.CaseBasic,
		Status: types.StatusPending,
		Steps:  []types.TestRequest{{Method: "GET", Path: path}},
		Expect: expect,
	}
}

var ok2xx = types.Expectation{MinStatus: 200, MaxStatus: 299}

func TestRunOne(t *testing.T) {
	ledger := newMemoryLedger(
		testCase("pass", "/ok", ok2xx),
		testCase("assert", "/teapot", ok2xx),
		testCase("network", "/down", ok2xx),
	)
	target := &stubTarget{
		statuses: map[string]int{"/teapot": http.StatusTeapot},
		fail:     map[string]bool{"/down": true},
	}
	c := NewCoordinator(ledger, target, Config{MaxWorkers: 2}, nil)

	result, err := c.RunOne(context.Background(), "pass")
	require.NoError(t, err)
	assert.Equal(t, types.StatusPassed, result.Status)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, types.StatusPassed, ledger.status("pass"))

	result, err = c.RunOne(context.Background(), "assert")
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, result.Status)
	assert.Equal(t, types.ErrorKindAssertion, result.ErrorKind)

	result, err = c.RunOne(context.Background(), "network")
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, result.Status)
	assert.Equal(t, types.ErrorKindNetwork, result.ErrorKind)

	_, err = c.RunOne(context.Background(), "missing")
	var notFound *CaseNotFoundError
	assert.True(t, errors.As(err, &notFound))

	assert.Len(t, ledger.results, 3)
}

func TestRunOneRejectsConcurrentRun(t *testing.T) {
	ledger := newMemoryLedger(testCase("slow", "/slow", ok2xx))
	target := &stubTarget{started: make(chan string, 1), release: make(chan struct{})}
	c := NewCoordinator(ledger, target, Config{}, nil)

	done := make(chan error, 1)
	go func() {
		_, err := c.RunOne(context.Background(), "slow")
		done <- err
	}()
	<-target.started

	_, err := c.RunOne(context.Background(), "slow")
	var running *AlreadyRunningError
	require.True(t, errors.As(err, &running), "got %v", err)

	close(target.release)
	require.NoError(t, <-done)
	assert.Len(t, ledger.results, 1)
	assert.Equal(t, types.StatusPassed, ledger.status("slow"))
}

func TestRunAllContinuesPastFailures(t *testing.T) {
	ledger := newMemoryLedger(
		testCase("a", "/a", ok2xx),
		testCase("b", "/down", ok2xx),
		testCase("c", "/c", ok2xx),
	)
	target := &stubTarget{fail: map[string]bool{"/down": true}}
	c := NewCoordinator(ledger, target, Config{MaxWorkers: 2}, nil)

	results, err := c.RunAll(context.Background(), []string{"a", "b", "c", "missing", "a"})

	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].TestCaseID)
	assert.Equal(t, types.StatusFailed, results[1].Status)
	assert.Equal(t, types.StatusPassed, results[2].Status)

	var notFound *CaseNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestRunAllSkipsCasesAfterCancel(t *testing.T) {
	ledger := newMemoryLedger(testCase("a", "/a", ok2xx), testCase("b", "/b", ok2xx))
	c := NewCoordinator(ledger, &stubTarget{}, Config{MaxWorkers: 1}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := c.RunAll(ctx, []string{"a", "b"})

	assert.Empty(t, results)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, types.StatusPending, ledger.status("a"))
	assert.Equal(t, types.StatusPending, ledger.status("b"))
	assert.Empty(t, ledger.results)
}

func TestRunOneDiscardsStaleResult(t *testing.T) {
	ledger := newMemoryLedger(testCase("x", "/x", ok2xx))
	target := &stubTarget{started: make(chan string, 1), release: make(chan struct{})}
	c := NewCoordinator(ledger, target, Config{}, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.RunOne(context.Background(), "x")
	}()
	<-target.started

	ledger.mu.Lock()
	ledger.epoch++
	ledger.mu.Unlock()

	close(target.release)
	<-done
	assert.Empty(t, ledger.results)
}

func TestHTTPTarget(t *testing.T) {
	var gotAuth, gotQuery string
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("q")
		if r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			w.WriteHeader(http.StatusCreated)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	target := NewHTTPTarget(HTTPConfig{
		BaseURL:  server.URL + "/",
		AuthType: "bearer",
		Token:    "secret",
		Timeout:  5 * time.Second,
	}, nil)

	resp, err := target.Invoke(context.Background(), types.TestRequest{
		Method:  "POST",
		Path:    "/users",
		Query:   map[string]string{"q": "x"},
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    map[string]interface{}{"name": "ann"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "x", gotQuery)
	assert.Equal(t, "ann", gotBody["name"])

	resp, err = target.Invoke(context.Background(), types.TestRequest{Method: "GET", Path: "/missing"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	unreachable := NewHTTPTarget(HTTPConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, nil)
	_, err = unreachable.Invoke(context.Background(), types.TestRequest{Method: "GET", Path: "/"})
	assert.Error(t, err)
}

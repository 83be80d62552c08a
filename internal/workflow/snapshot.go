package workflow

import (
	"encoding/json"
	"fmt"

	"api-testgen/internal/parser"
	"api-testgen/internal/types"

	"go.uber.org/zap"
)

const snapshotVersion = 1

type snapshot struct {
	Version          int                     `json:"version"`
	CurrentStep      int                     `json:"currentStep"`
	Document         *snapshotDocument       `json:"document,omitempty"`
	Endpoints        []types.Endpoint        `json:"endpoints"`
	Scenarios        []types.Scenario        `json:"scenarios"`
	Relations        []types.Relation        `json:"relations"`
	TestCases        []types.TestCase        `json:"testCases"`
	ExecutionResults []types.ExecutionResult `json:"executionResults"`
}

// the document is kept as text and parsed again on restore
type snapshotDocument struct {
	Raw  string      `json:"raw"`
	Hint parser.Hint `json:"hint,omitempty"`
}

// Serialize encodes the whole state as JSON
func (c *Controller) Serialize() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := snapshot{
		Version:          snapshotVersion,
		CurrentStep:      c.step,
		Endpoints:        c.endpoints,
		Scenarios:        c.scenarios,
		Relations:        c.relations,
		TestCases:        c.testCases,
		ExecutionResults: c.results,
	}
	if c.doc != nil {
		s.Document = &snapshotDocument{Raw: c.doc.Raw, Hint: c.doc.Hint}
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// Restore replaces the state with a snapshot produced by Serialize. Cases that
// were running when the snapshot was taken come back as pending. On error the
// state is unchanged.
func (c *Controller) Restore(data []byte) error {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return &ValidationError{Field: "snapshot", Reason: err.Error()}
	}
	if s.Version != snapshotVersion {
		return &ValidationError{Field: "version", Reason: fmt.Sprintf("unsupported snapshot version %d", s.Version)}
	}
	if s.CurrentStep < StepIngest || s.CurrentStep > StepExecute {
		return &ValidationError{Field: "currentStep", Reason: fmt.Sprintf("step %d out of range", s.CurrentStep)}
	}

	if err := s.validate(); err != nil {
		return err
	}

	var doc *parser.Document
	if s.Document != nil {
		var err error
		doc, err = parser.Parse(s.Document.Raw, s.Document.Hint)
		if err != nil {
			return fmt.Errorf("failed to restore document: %w", err)
		}
	}

	for i := range s.TestCases {
		if s.TestCases[i].Status == types.StatusRunning {
			s.TestCases[i].Status = types.StatusPending
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.step = s.CurrentStep
	c.doc = doc
	c.endpoints = s.Endpoints
	c.scenarios = s.Scenarios
	c.relations = s.Relations
	c.testCases = s.TestCases
	c.results = s.ExecutionResults
	c.epoch++

	c.logger.Info("workflow restored",
		zap.Int("step", c.step),
		zap.Int("test_cases", len(c.testCases)))
	return nil
}

// validate checks the invariants a hand-edited snapshot could break
func (s *snapshot) validate() error {
	endpoints := make(map[string]bool, len(s.Endpoints))
	for _, e := range s.Endpoints {
		if endpoints[e.Key()] {
			return &ValidationError{Field: "endpoints", Reason: fmt.Sprintf("duplicate endpoint %s", e.Key())}
		}
		endpoints[e.Key()] = true
	}

	scenarios := make(map[string]bool, len(s.Scenarios))
	for _, sc := range s.Scenarios {
		if sc.ID == "" || scenarios[sc.ID] {
			return &ValidationError{Field: "scenarios", Reason: fmt.Sprintf("missing or duplicate scenario id %q", sc.ID)}
		}
		scenarios[sc.ID] = true
	}

	relations := make(map[string]bool, len(s.Relations))
	for _, r := range s.Relations {
		if r.ID == "" || relations[r.ID] {
			return &ValidationError{Field: "relations", Reason: fmt.Sprintf("missing or duplicate relation id %q", r.ID)}
		}
		if r.Source == r.Target {
			return &ValidationError{Field: "relations", Reason: fmt.Sprintf("relation %q links %s to itself", r.ID, r.Source)}
		}
		if r.Confidence < 0 || r.Confidence > 1 {
			return &ValidationError{Field: "relations", Reason: fmt.Sprintf("relation %q confidence out of range", r.ID)}
		}
		relations[r.ID] = true
	}

	cases := make(map[string]bool, len(s.TestCases))
	for _, tc := range s.TestCases {
		if tc.ID == "" || cases[tc.ID] {
			return &ValidationError{Field: "testCases", Reason: fmt.Sprintf("missing or duplicate test case id %q", tc.ID)}
		}
		cases[tc.ID] = true
	}
	return nil
}

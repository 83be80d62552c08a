// Package workflow sequences the pipeline through its four steps: ingest,
// analyze, generate and execute. A Controller owns all state; callers only see
// copies returned by State.
package workflow

import (
	"fmt"
	"sync"

	"api-testgen/internal/analyzer"
	"api-testgen/internal/generator"
	"api-testgen/internal/parser"
	"api-testgen/internal/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Workflow steps
const (
	StepIngest   = 1
	StepAnalyze  = 2
	StepGenerate = 3
	StepExecute  = 4
)

// DocumentInfo summarises the loaded document
type DocumentInfo struct {
	Version    string      `json:"version"`
	Title      string      `json:"title"`
	Hint       parser.Hint `json:"hint,omitempty"`
	Operations int         `json:"operations"`
}

// State is a snapshot of the workflow. It shares no mutable data with the Controller.
type State struct {
	CurrentStep      int                     `json:"currentStep"`
	Document         *DocumentInfo           `json:"document,omitempty"`
	Endpoints        []types.Endpoint        `json:"endpoints"`
	Scenarios        []types.Scenario        `json:"scenarios"`
	Relations        []types.Relation        `json:"relations"`
	TestCases        []types.TestCase        `json:"testCases"`
	ExecutionResults []types.ExecutionResult `json:"executionResults"`
}

// Controller holds the single workflow state
type Controller struct {
	mu        sync.Mutex
	logger    *zap.Logger
	generator *generator.Generator

	step      int
	doc       *parser.Document
	endpoints []types.Endpoint
	scenarios []types.Scenario
	relations []types.Relation
	testCases []types.TestCase
	results   []types.ExecutionResult

	// epoch changes on reset and restore, generation whenever the test cases
	// are replaced. Runs started under older values are discarded.
	epoch      uint64
	generation uint64
}

// New creates a controller at step 1. gen may be nil.
func New(gen *generator.Generator, logger *zap.Logger) *Controller {
	if gen == nil {
		gen = generator.New(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		logger:    logger,
		generator: gen,
		step:      StepIngest,
	}
}

// LoadDocument parses raw and replaces the current document. Derived data is
// cleared; custom scenarios and relations are kept.
func (c *Controller) LoadDocument(raw string, hint parser.Hint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step != StepIngest {
		return c.reject("load document", "documents can only be loaded at step 1")
	}

	doc, err := parser.Parse(raw, hint)
	if err != nil {
		c.logger.Warn("document rejected", zap.Error(err))
		return err
	}

	c.doc = doc
	c.endpoints = nil
	c.scenarios = customScenarios(c.scenarios)
	c.relations = customRelations(c.relations)
	c.testCases = nil
	c.results = nil
	c.generation++

	c.logger.Info("document loaded",
		zap.String("title", doc.Title),
		zap.String("version", doc.Version),
		zap.Int("operations", doc.OperationCount()))
	return nil
}

// Next advances one step, running the stage that produces the next step's data.
// On error the state is unchanged.
func (c *Controller) Next() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.step {
	case StepIngest:
		if c.doc == nil {
			return c.reject("next", "no document loaded")
		}
		endpoints, err := parser.ExtractEndpoints(c.doc)
		if err != nil {
			c.logger.Warn("endpoint extraction failed", zap.Error(err))
			return err
		}
		if len(endpoints) == 0 {
			return c.reject("next", "document declares no operations")
		}
		result := analyzer.Infer(endpoints, c.scenarios, c.relations)
		c.endpoints = endpoints
		c.scenarios = result.Scenarios
		c.relations = result.Relations
		// cases from an earlier pass are stale once analysis reruns
		c.testCases = nil
		c.results = nil
		c.generation++

	case StepAnalyze:
		if len(c.endpoints) == 0 {
			return c.reject("next", "no endpoints extracted")
		}
		c.regenerate()

	case StepGenerate:
		if len(c.testCases) == 0 {
			return c.reject("next", "no test cases generated")
		}

	default:
		return c.reject("next", "already at the last step")
	}

	c.step++
	c.logger.Info("workflow advanced",
		zap.Int("step", c.step),
		zap.Int("endpoints", len(c.endpoints)),
		zap.Int("scenarios", len(c.scenarios)),
		zap.Int("relations", len(c.relations)),
		zap.Int("test_cases", len(c.testCases)))
	return nil
}

// Back returns to the previous step without discarding anything. It does nothing at step 1.
func (c *Controller) Back() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step > StepIngest {
		c.step--
		c.logger.Info("workflow went back", zap.Int("step", c.step))
	}
}

// Reanalyze re-runs inference at step 2, keeping custom entries
func (c *Controller) Reanalyze() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step != StepAnalyze {
		return c.reject("reanalyze", "analysis runs at step 2")
	}
	result := analyzer.Infer(c.endpoints, c.scenarios, c.relations)
	c.scenarios = result.Scenarios
	c.relations = result.Relations
	c.logger.Info("analysis refreshed",
		zap.Int("scenarios", len(c.scenarios)),
		zap.Int("relations", len(c.relations)))
	return nil
}

// Regenerate replaces all test cases at step 3. Statuses and results are dropped.
func (c *Controller) Regenerate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step != StepGenerate {
		return c.reject("regenerate", "generation runs at step 3")
	}
	c.regenerate()
	c.logger.Info("test cases regenerated", zap.Int("test_cases", len(c.testCases)))
	return nil
}

func (c *Controller) regenerate() {
	c.testCases = c.generator.Generate(c.endpoints, c.scenarios, c.relations)
	c.results = nil
	c.generation++
}

// AddScenario stores a custom scenario and returns it with its assigned id
func (c *Controller) AddScenario(s types.Scenario) (types.Scenario, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.Name == "" {
		return types.Scenario{}, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if s.Type == "" {
		s.Type = types.ScenarioCustom
	}
	if !s.Type.Valid() {
		return types.Scenario{}, &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown scenario type %q", s.Type)}
	}
	if len(s.Endpoints) == 0 {
		return types.Scenario{}, &ValidationError{Field: "endpoints", Reason: "a scenario needs at least one endpoint"}
	}
	for _, ref := range s.Endpoints {
		if !c.knownEndpoint(ref) {
			return types.Scenario{}, &ValidationError{Field: "endpoints", Reason: fmt.Sprintf("unknown endpoint %s", ref)}
		}
	}
	if s.ID == "" {
		s.ID = "custom-scn-" + uuid.NewString()
	}
	for _, existing := range c.scenarios {
		if existing.ID == s.ID {
			return types.Scenario{}, &ValidationError{Field: "id", Reason: fmt.Sprintf("scenario %q already exists", s.ID)}
		}
	}

	s.IsCustom = true
	s.Endpoints = append([]types.EndpointRef(nil), s.Endpoints...)
	c.scenarios = append(c.scenarios, s)
	c.logger.Info("custom scenario added", zap.String("id", s.ID))
	return cloneScenario(s), nil
}

// RemoveScenario deletes a custom scenario. Inferred scenarios cannot be removed.
func (c *Controller) RemoveScenario(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, s := range c.scenarios {
		if s.ID != id {
			continue
		}
		if !s.IsCustom {
			return &ValidationError{Field: "id", Reason: fmt.Sprintf("scenario %q is inferred and cannot be removed", id)}
		}
		c.scenarios = append(c.scenarios[:i:i], c.scenarios[i+1:]...)
		c.logger.Info("custom scenario removed", zap.String("id", id))
		return nil
	}
	return &NotFoundError{Kind: "scenario", ID: id}
}

// AddRelation stores a custom relation and returns it with its assigned id
func (c *Controller) AddRelation(r types.Relation) (types.Relation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !r.Type.Valid() {
		return types.Relation{}, &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown relation type %q", r.Type)}
	}
	if r.Source == r.Target {
		return types.Relation{}, &ValidationError{Field: "target", Reason: "source and target must differ"}
	}
	if !c.knownEndpoint(r.Source) {
		return types.Relation{}, &ValidationError{Field: "source", Reason: fmt.Sprintf("unknown endpoint %s", r.Source)}
	}
	if !c.knownEndpoint(r.Target) {
		return types.Relation{}, &ValidationError{Field: "target", Reason: fmt.Sprintf("unknown endpoint %s", r.Target)}
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return types.Relation{}, &ValidationError{Field: "confidence", Reason: "must be between 0 and 1"}
	}
	if r.ID == "" {
		r.ID = "custom-rel-" + uuid.NewString()
	}
	for _, existing := range c.relations {
		if existing.ID == r.ID {
			return types.Relation{}, &ValidationError{Field: "id", Reason: fmt.Sprintf("relation %q already exists", r.ID)}
		}
	}

	r.IsCustom = true
	c.relations = append(c.relations, r)
	c.logger.Info("custom relation added", zap.String("id", r.ID), zap.String("type", string(r.Type)))
	return r, nil
}

// RemoveRelation deletes a custom relation. Inferred relations cannot be removed.
func (c *Controller) RemoveRelation(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, r := range c.relations {
		if r.ID != id {
			continue
		}
		if !r.IsCustom {
			return &ValidationError{Field: "id", Reason: fmt.Sprintf("relation %q is inferred and cannot be removed", id)}
		}
		c.relations = append(c.relations[:i:i], c.relations[i+1:]...)
		c.logger.Info("custom relation removed", zap.String("id", id))
		return nil
	}
	return &NotFoundError{Kind: "relation", ID: id}
}

// Reset discards everything, custom entries included, and returns to step 1
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.step = StepIngest
	c.doc = nil
	c.endpoints = nil
	c.scenarios = nil
	c.relations = nil
	c.testCases = nil
	c.results = nil
	c.epoch++
	c.logger.Info("workflow reset")
}

// CurrentStep returns the current step
func (c *Controller) CurrentStep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// State returns a deep copy of the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := State{
		CurrentStep:      c.step,
		Endpoints:        append([]types.Endpoint{}, c.endpoints...),
		Scenarios:        make([]types.Scenario, len(c.scenarios)),
		Relations:        append([]types.Relation{}, c.relations...),
		TestCases:        make([]types.TestCase, len(c.testCases)),
		ExecutionResults: append([]types.ExecutionResult{}, c.results...),
	}
	if c.doc != nil {
		state.Document = &DocumentInfo{
			Version:    c.doc.Version,
			Title:      c.doc.Title,
			Hint:       c.doc.Hint,
			Operations: c.doc.OperationCount(),
		}
	}
	for i, s := range c.scenarios {
		state.Scenarios[i] = cloneScenario(s)
	}
	for i, tc := range c.testCases {
		state.TestCases[i] = cloneTestCase(tc)
	}
	return state
}

func (c *Controller) knownEndpoint(ref types.EndpointRef) bool {
	for _, e := range c.endpoints {
		if e.Method == ref.Method && e.Path == ref.Path {
			return true
		}
	}
	return false
}

func (c *Controller) reject(op, reason string) error {
	err := &TransitionError{Step: c.step, Op: op, Reason: reason}
	c.logger.Warn("operation rejected", zap.Error(err))
	return err
}

func customScenarios(in []types.Scenario) []types.Scenario {
	var out []types.Scenario
	for _, s := range in {
		if s.IsCustom {
			out = append(out, s)
		}
	}
	return out
}

func customRelations(in []types.Relation) []types.Relation {
	var out []types.Relation
	for _, r := range in {
		if r.IsCustom {
			out = append(out, r)
		}
	}
	return out
}

func cloneScenario(s types.Scenario) types.Scenario {
	s.Endpoints = append([]types.EndpointRef(nil), s.Endpoints...)
	return s
}

// cloneTestCase copies everything but request bodies, which are never modified after generation
func cloneTestCase(tc types.TestCase) types.TestCase {
	tc.RelatedScenarios = append([]string(nil), tc.RelatedScenarios...)
	if tc.LastRun != nil {
		t := *tc.LastRun
		tc.LastRun = &t
	}
	if tc.DurationMs != nil {
		d := *tc.DurationMs
		tc.DurationMs = &d
	}
	steps := make([]types.TestRequest, len(tc.Steps))
	for i, step := range tc.Steps {
		step.Query = cloneMap(step.Query)
		step.Headers = cloneMap(step.Headers)
		steps[i] = step
	}
	tc.Steps = steps
	return tc
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

package types

import (
	"fmt"
	"strings"
	"time"
)

// Method is an HTTP method recognised in an OpenAPI path item
type Method string

const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodPatch   Method = "PATCH"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
	MethodTrace   Method = "TRACE"
)

// Methods lists the recognised methods
var Methods = []Method{MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch, MethodHead, MethodOptions, MethodTrace}

// ParseMethod matches a path item key case-insensitively
func ParseMethod(key string) (Method, bool) {
	upper := Method(strings.ToUpper(key))
	for _, m := range Methods {
		if m == upper {
			return m, true
		}
	}
	return "", false
}

// Security describes what an operation declares about authentication
type Security string

const (
	SecurityInherited Security = "inherited"
	SecurityNone      Security = "none"
	SecurityRequired  Security = "required"
)

// EndpointRef identifies an endpoint by method and path
type EndpointRef struct {
	Method Method `json:"method"`
	Path   string `json:"path"`
}

// Key returns the "METHOD path" form used for lookups
func (r EndpointRef) Key() string {
	return fmt.Sprintf("%s %s", r.Method, r.Path)
}

func (r EndpointRef) String() string {
	return r.Key()
}

// Endpoint represents an API endpoint extracted from a document
type Endpoint struct {
	Method      Method             `json:"method"`
	Path        string             `json:"path"`
	OperationID string             `json:"operationId"`
	Summary     string             `json:"summary,omitempty"`
	Parameters  []ParamSpec        `json:"parameters,omitempty"`
	RequestBody *Schema            `json:"requestBody,omitempty"`
	BodyType    string             `json:"bodyContentType,omitempty"`
	Responses   map[string]*Schema `json:"responses,omitempty"`
	Tags        []string           `json:"tags,omitempty"`
	Security    Security           `json:"security"`
}

// Ref returns the reference form of the endpoint
func (e Endpoint) Ref() EndpointRef {
	return EndpointRef{Method: e.Method, Path: e.Path}
}

// Key returns the "METHOD path" form of the endpoint
func (e Endpoint) Key() string {
	return e.Ref().Key()
}

// ParamSpec represents an API parameter
type ParamSpec struct {
	Name     string  `json:"name"`
	In       string  `json:"in"`
	Required bool    `json:"required"`
	Schema   *Schema `json:"schema,omitempty"`
}

// Schema is a typed summary of an OpenAPI schema
type Schema struct {
	Type       string             `json:"type,omitempty"`
	Format     string             `json:"format,omitempty"`
	Enum       []interface{}      `json:"enum,omitempty"`
	Minimum    *float64           `json:"minimum,omitempty"`
	Maximum    *float64           `json:"maximum,omitempty"`
	MinLength  *uint64            `json:"minLength,omitempty"`
	MaxLength  *uint64            `json:"maxLength,omitempty"`
	MinItems   *uint64            `json:"minItems,omitempty"`
	MaxItems   *uint64            `json:"maxItems,omitempty"`
	Nullable   bool               `json:"nullable,omitempty"`
	Required   []string           `json:"required,omitempty"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Items      *Schema            `json:"items,omitempty"`
}

// ScenarioType classifies a scenario
type ScenarioType string

const (
	ScenarioNormal      ScenarioType = "normal"
	ScenarioException   ScenarioType = "exception"
	ScenarioBoundary    ScenarioType = "boundary"
	ScenarioPerformance ScenarioType = "performance"
	ScenarioCustom      ScenarioType = "custom"
)

// Valid reports whether t is a known scenario type
func (t ScenarioType) Valid() bool {
	switch t {
	case ScenarioNormal, ScenarioException, ScenarioBoundary, ScenarioPerformance, ScenarioCustom:
		return true
	}
	return false
}

// Scenario groups endpoints that form a business flow
type Scenario struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Type        ScenarioType  `json:"type"`
	Endpoints   []EndpointRef `json:"endpoints"`
	IsCustom    bool          `json:"isCustom"`
}

// RelationType classifies a relation
type RelationType string

const (
	RelationData     RelationType = "data"
	RelationSequence RelationType = "sequence"
	RelationAuth     RelationType = "auth"
)

// Valid reports whether t is a known relation type
func (t RelationType) Valid() bool {
	switch t {
	case RelationData, RelationSequence, RelationAuth:
		return true
	}
	return false
}

// Relation is a directed dependency between two endpoints
type Relation struct {
	ID          string       `json:"id"`
	Source      EndpointRef  `json:"sourceEndpoint"`
	Target      EndpointRef  `json:"targetEndpoint"`
	Type        RelationType `json:"type"`
	Description string       `json:"description,omitempty"`
	Confidence  float64      `json:"confidence"`
	IsCustom    bool         `json:"isCustom"`
}

// TestCaseType classifies a generated test case
type TestCaseType string

const (
	CaseBasic     TestCaseType = "basic"
	CaseBoundary  TestCaseType = "boundary"
	CaseException TestCaseType = "exception"
	CaseScenario  TestCaseType = "scenario"
)

// CaseStatus is the lifecycle status of a test case
type CaseStatus string

const (
	StatusPending CaseStatus = "pending"
	StatusRunning CaseStatus = "running"
	StatusPassed  CaseStatus = "passed"
	StatusFailed  CaseStatus = "failed"
	StatusSkipped CaseStatus = "skipped"
)

// TestRequest is the request derived for one step of a test case
type TestRequest struct {
	Endpoint EndpointRef       `json:"endpoint"`
	Method   string            `json:"method"`
	Path     string            `json:"path"`
	Query    map[string]string `json:"query,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Body     interface{}       `json:"body,omitempty"`
}

// Expectation is the accepted response status range, inclusive
type Expectation struct {
	MinStatus int `json:"minStatus"`
	MaxStatus int `json:"maxStatus"`
}

// Accepts reports whether status falls in the range
func (e Expectation) Accepts(status int) bool {
	return status >= e.MinStatus && status <= e.MaxStatus
}

// TestCase is a concrete check derived from an endpoint or scenario
type TestCase struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Description      string        `json:"description,omitempty"`
	Type             TestCaseType  `json:"type"`
	Endpoint         EndpointRef   `json:"endpoint"`
	RelatedScenarios []string      `json:"relatedScenarios,omitempty"`
	Status           CaseStatus    `json:"status"`
	LastRun          *time.Time    `json:"lastRun,omitempty"`
	DurationMs       *int64        `json:"durationMs,omitempty"`
	Steps            []TestRequest `json:"steps"`
	Expect           Expectation   `json:"expect"`
}

// ErrorKind classifies an execution failure
type ErrorKind string

const (
	ErrorKindNetwork   ErrorKind = "network"
	ErrorKindAssertion ErrorKind = "assertion"
)

// ExecutionResult records one run of a test case
type ExecutionResult struct {
	ID         string     `json:"id"`
	TestCaseID string     `json:"testCaseId"`
	Status     CaseStatus `json:"status"`
	StatusCode int        `json:"statusCode,omitempty"`
	DurationMs int64      `json:"durationMs"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt time.Time  `json:"finishedAt"`
	ErrorKind  ErrorKind  `json:"errorKind,omitempty"`
	Error      string     `json:"error,omitempty"`
}

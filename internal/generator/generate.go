// Package generator expands endpoints and scenarios into concrete test cases.
//
// Case identity is structural: "{METHOD}-{path}-{type}" for endpoint cases and
// "scenario-{scenarioID}" for scenario cases, so regenerating against the same
// inputs yields the same ids. Regeneration replaces cases wholesale; status and
// run history are not carried over.
package generator

import (
	"fmt"
	"net/url"
	"strings"

	"api-testgen/internal/types"
)

const nonexistentSegment = "__nonexistent__"

var structuralTypes = []types.TestCaseType{types.CaseBasic, types.CaseBoundary, types.CaseException}

// Generator builds test cases, optionally using user supplied request data
type Generator struct {
	overrides *Overrides
}

// New creates a generator; overrides may be nil
func New(overrides *Overrides) *Generator {
	return &Generator{overrides: overrides}
}

// Generate builds test cases with synthesized request data only
func Generate(endpoints []types.Endpoint, scenarios []types.Scenario, relations []types.Relation) []types.TestCase {
	return New(nil).Generate(endpoints, scenarios, relations)
}

// CaseID returns the id of a structural case
func CaseID(ref types.EndpointRef, kind types.TestCaseType) string {
	return fmt.Sprintf("%s-%s-%s", ref.Method, ref.Path, kind)
}

// ScenarioCaseID returns the id of the case generated for a scenario
func ScenarioCaseID(scenarioID string) string {
	return "scenario-" + scenarioID
}

// Generate emits three structural cases per endpoint and one case per scenario.
// Scenario members that are not in endpoints are dropped, so no case refers to
// a missing endpoint.
func (g *Generator) Generate(endpoints []types.Endpoint, scenarios []types.Scenario, relations []types.Relation) []types.TestCase {
	cases := make([]types.TestCase, 0, len(endpoints)*len(structuralTypes)+len(scenarios))
	if len(endpoints) == 0 {
		return cases
	}

	byKey := make(map[string]types.Endpoint, len(endpoints))
	for _, e := range endpoints {
		byKey[e.Key()] = e
	}

	membership := make(map[string][]string)
	seenScenario := make(map[string]bool)
	for _, s := range scenarios {
		if seenScenario[s.ID] {
			continue
		}
		seenScenario[s.ID] = true
		for _, ref := range s.Endpoints {
			if _, ok := byKey[ref.Key()]; ok && !contains(membership[ref.Key()], s.ID) {
				membership[ref.Key()] = append(membership[ref.Key()], s.ID)
			}
		}
	}

	for _, e := range endpoints {
		for _, kind := range structuralTypes {
			cases = append(cases, g.structuralCase(e, kind, membership[e.Key()]))
		}
	}

	emitted := make(map[string]bool)
	for _, s := range scenarios {
		if emitted[s.ID] {
			continue
		}
		emitted[s.ID] = true
		cases = append(cases, g.scenarioCase(s, byKey, endpoints[0], relations))
	}

	return cases
}

func (g *Generator) structuralCase(e types.Endpoint, kind types.TestCaseType, related []string) types.TestCase {
	tc := types.TestCase{
		ID:       CaseID(e.Ref(), kind),
		Name:     fmt.Sprintf("%s %s (%s)", e.Method, e.Path, kind),
		Type:     kind,
		Endpoint: e.Ref(),
		Status:   types.StatusPending,
		Steps:    []types.TestRequest{g.buildRequest(e, kind)},
	}
	if len(related) > 0 {
		tc.RelatedScenarios = append([]string(nil), related...)
	}

	switch kind {
	case types.CaseBasic:
		tc.Description = "Happy path request with valid sample data"
		tc.Expect = types.Expectation{MinStatus: 200, MaxStatus: 299}
	case types.CaseBoundary:
		tc.Description = "Request with values on the declared limits"
		tc.Expect = types.Expectation{MinStatus: 200, MaxStatus: 499}
	case types.CaseException:
		tc.Description = "Invalid request that must be rejected with a client error"
		tc.Expect = types.Expectation{MinStatus: 400, MaxStatus: 499}
	}
	if e.Summary != "" {
		tc.Description = e.Summary + ": " + tc.Description
	}
	return tc
}

func (g *Generator) scenarioCase(s types.Scenario, byKey map[string]types.Endpoint, standIn types.Endpoint, relations []types.Relation) types.TestCase {
	var members []types.EndpointRef
	seen := make(map[string]bool)
	for _, ref := range s.Endpoints {
		if _, ok := byKey[ref.Key()]; ok && !seen[ref.Key()] {
			seen[ref.Key()] = true
			members = append(members, ref)
		}
	}

	anchor := standIn.Ref()
	if len(members) > 0 {
		anchor = members[0]
	} else {
		members = []types.EndpointRef{anchor}
	}

	steps := make([]types.TestRequest, 0, len(members))
	for _, ref := range orderSteps(members, relations) {
		steps = append(steps, g.buildRequest(byKey[ref.Key()], types.CaseBasic))
	}

	description := s.Description
	if description == "" {
		description = fmt.Sprintf("Runs the %s scenario end to end", s.Name)
	}

	return types.TestCase{
		ID:               ScenarioCaseID(s.ID),
		Name:             fmt.Sprintf("Scenario: %s", s.Name),
		Description:      description,
		Type:             types.CaseScenario,
		Endpoint:         anchor,
		RelatedScenarios: []string{s.ID},
		Status:           types.StatusPending,
		Steps:            steps,
		Expect:           types.Expectation{MinStatus: 200, MaxStatus: 299},
	}
}

// orderSteps places relation sources before their targets, keeping the
// scenario order otherwise. Cycles fall back to scenario order.
func orderSteps(members []types.EndpointRef, relations []types.Relation) []types.EndpointRef {
	inScope := make(map[string]bool, len(members))
	for _, m := range members {
		inScope[m.Key()] = true
	}

	preds := make(map[string][]string)
	for _, r := range relations {
		if r.Type == types.RelationAuth {
			continue
		}
		src, dst := r.Source.Key(), r.Target.Key()
		if src != dst && inScope[src] && inScope[dst] {
			preds[dst] = append(preds[dst], src)
		}
	}

	placed := make(map[string]bool, len(members))
	ordered := make([]types.EndpointRef, 0, len(members))
	for len(ordered) < len(members) {
		next := -1
		for i, m := range members {
			if placed[m.Key()] {
				continue
			}
			ready := true
			for _, p := range preds[m.Key()] {
				if !placed[p] {
					ready = false
					break
				}
			}
			if ready {
				next = i
				break
			}
		}
		if next < 0 {
			for i, m := range members {
				if !placed[m.Key()] {
					next = i
					break
				}
			}
		}
		placed[members[next].Key()] = true
		ordered = append(ordered, members[next])
	}
	return ordered
}

func (g *Generator) buildRequest(e types.Endpoint, kind types.TestCaseType) types.TestRequest {
	pathParams := make(map[string]string)
	query := make(map[string]string)
	headers := map[string]string{"Accept": "application/json"}

	var requiredQuery []string
	for _, p := range e.Parameters {
		value := paramValue(p, kind)
		switch p.In {
		case "path":
			pathParams[p.Name] = stringify(value)
		case "query":
			if p.Required {
				requiredQuery = append(requiredQuery, p.Name)
			}
			if p.Required || kind == types.CaseBoundary {
				query[p.Name] = stringify(value)
			}
		case "header":
			if p.Required {
				headers[p.Name] = stringify(value)
			}
		}
	}

	var body interface{}
	if e.RequestBody != nil {
		switch kind {
		case types.CaseBoundary:
			body = boundaryValue(e.RequestBody)
		default:
			body = sampleValue(e.RequestBody)
		}
	}

	path := e.Path
	if kind == types.CaseException {
		path, body = g.violate(e, pathParams, query, requiredQuery, body)
	}

	if kind == types.CaseBasic {
		if data, ok := g.overrides.For(e.Ref()); ok {
			for k, v := range data.PathParams {
				pathParams[k] = stringify(v)
			}
			for k, v := range data.QueryParams {
				query[k] = stringify(v)
			}
			for k, v := range data.Headers {
				headers[k] = v
			}
			if data.Body != nil {
				body = data.Body
			}
		}
	}

	for name, value := range pathParams {
		path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(value))
	}

	if body != nil {
		contentType := e.BodyType
		if contentType == "" {
			contentType = "application/json"
		}
		headers["Content-Type"] = contentType
	}

	req := types.TestRequest{
		Endpoint: e.Ref(),
		Method:   string(e.Method),
		Path:     path,
		Headers:  headers,
		Body:     body,
	}
	if len(query) > 0 {
		req.Query = query
	}
	return req
}

// violate applies the first applicable schema violation for an exception case:
// a wrong-typed path parameter, missing required body fields, a wrong-typed
// body, a missing required query parameter, and finally an unknown sub-path
func (g *Generator) violate(e types.Endpoint, pathParams, query map[string]string, requiredQuery []string, body interface{}) (string, interface{}) {
	for _, p := range e.Parameters {
		if p.In != "path" || p.Schema == nil {
			continue
		}
		if p.Schema.Type == "string" && len(p.Schema.Enum) == 0 && p.Schema.Format == "" {
			continue
		}
		if bad, ok := invalidValue(p.Schema); ok {
			pathParams[p.Name] = stringify(bad)
			return e.Path, body
		}
	}

	if e.RequestBody != nil {
		if obj, ok := body.(map[string]interface{}); ok && len(e.RequestBody.Required) > 0 {
			for _, field := range e.RequestBody.Required {
				delete(obj, field)
			}
			return e.Path, obj
		}
		if bad, ok := invalidValue(e.RequestBody); ok {
			return e.Path, bad
		}
	}

	if len(requiredQuery) > 0 {
		delete(query, requiredQuery[0])
		return e.Path, body
	}

	return strings.TrimRight(e.Path, "/") + "/" + nonexistentSegment, body
}

func paramValue(p types.ParamSpec, kind types.TestCaseType) interface{} {
	var v interface{}
	if kind == types.CaseBoundary {
		v = boundaryValue(p.Schema)
	} else {
		v = sampleValue(p.Schema)
	}
	if v == nil {
		if p.In == "path" {
			return "1"
		}
		return "sample"
	}
	return v
}

func stringify(v interface{}) string {
	if items, ok := v.([]interface{}); ok {
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(v)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

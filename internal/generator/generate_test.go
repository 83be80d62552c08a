package generator

import (
	"os"
	"path/filepath"
	"testing"

	"api-testgen/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uint64p(v uint64) *uint64 { return &v }

func float64p(v float64) *float64 { return &v }

func usersEndpoints() []types.Endpoint {
	user := &types.Schema{
		Type:     "object",
		Required: []string{"name"},
		Properties: map[string]*types.Schema{
			"name":  {Type: "string", MaxLength: uint64p(5)},
			"email": {Type: "string", Format: "email"},
			"age":   {Type: "integer", Minimum: float64p(0), Maximum: float64p(150)},
		},
	}
	return []types.Endpoint{
		{Method: types.MethodGet, Path: "/users"},
		{Method: types.MethodPost, Path: "/users", RequestBody: user, BodyType: "application/json"},
	}
}

func usersScenario() types.Scenario {
	return types.Scenario{
		ID:   "scn-resource-users",
		Name: "users resource flow",
		Type: types.ScenarioNormal,
		Endpoints: []types.EndpointRef{
			{Method: types.MethodPost, Path: "/users"},
			{Method: types.MethodGet, Path: "/users"},
		},
	}
}

func TestGenerateUsers(t *testing.T) {
	cases := Generate(usersEndpoints(), []types.Scenario{usersScenario()}, nil)

	require.Len(t, cases, 7)
	for _, tc := range cases {
		assert.Equal(t, types.StatusPending, tc.Status)
		assert.NotEmpty(t, tc.Steps)
	}

	assert.Equal(t, "GET-/users-basic", cases[0].ID)
	assert.Equal(t, "GET-/users-boundary", cases[1].ID)
	assert.Equal(t, "GET-/users-exception", cases[2].ID)
	assert.Equal(t, "POST-/users-basic", cases[3].ID)

	scenario := cases[6]
	assert.Equal(t, "scenario-scn-resource-users", scenario.ID)
	assert.Equal(t, types.CaseScenario, scenario.Type)
	assert.Equal(t, types.EndpointRef{Method: types.MethodPost, Path: "/users"}, scenario.Endpoint)
	assert.Equal(t, []string{"scn-resource-users"}, scenario.RelatedScenarios)
	assert.Len(t, scenario.Steps, 2)

	assert.Equal(t, []string{"scn-resource-users"}, cases[0].RelatedScenarios)
}

func TestGenerateIdempotent(t *testing.T) {
	endpoints := usersEndpoints()
	scenarios := []types.Scenario{usersScenario()}

	first := Generate(endpoints, scenarios, nil)
	first[0].Status = types.StatusPassed
	second := Generate(endpoints, scenarios, nil)

	ids := func(cases []types.TestCase) []string {
		out := make([]string, len(cases))
		for i, tc := range cases {
			out[i] = tc.ID
		}
		return out
	}
	assert.Equal(t, ids(first), ids(second))
	assert.Equal(t, types.StatusPending, second[0].Status)
}

func TestGenerateDropsMissingReferences(t *testing.T) {
	endpoints := usersEndpoints()[:1]
	orphan := types.Scenario{
		ID:        "custom-orphan",
		Name:      "Orphan",
		Type:      types.ScenarioCustom,
		Endpoints: []types.EndpointRef{{Method: types.MethodDelete, Path: "/gone"}},
		IsCustom:  true,
	}

	cases := Generate(endpoints, []types.Scenario{usersScenario(), orphan}, nil)
	require.Len(t, cases, 5)

	known := map[string]bool{endpoints[0].Key(): true}
	for _, tc := range cases {
		assert.True(t, known[tc.Endpoint.Key()], "%s refers to %s", tc.ID, tc.Endpoint.Key())
		for _, step := range tc.Steps {
			assert.True(t, known[step.Endpoint.Key()])
		}
	}
	// the orphan scenario falls back to the stand-in endpoint
	assert.Equal(t, endpoints[0].Ref(), cases[4].Endpoint)
}

func TestGenerateNoEndpoints(t *testing.T) {
	assert.Empty(t, Generate(nil, []types.Scenario{usersScenario()}, nil))
}

func TestRequestSynthesis(t *testing.T) {
	post := usersEndpoints()[1]
	g := New(nil)

	basic := g.buildRequest(post, types.CaseBasic)
	body, ok := basic.Body.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "test@example.com", body["email"])
	assert.Equal(t, "sssss", body["name"])
	assert.Equal(t, "application/json", basic.Headers["Content-Type"])

	boundary := g.buildRequest(post, types.CaseBoundary)
	body = boundary.Body.(map[string]interface{})
	assert.Equal(t, "aaaaa", body["name"])
	assert.Equal(t, int64(150), body["age"])

	exception := g.buildRequest(post, types.CaseException)
	body = exception.Body.(map[string]interface{})
	assert.NotContains(t, body, "name")
	assert.Contains(t, body, "email")
}

func TestExceptionViolations(t *testing.T) {
	g := New(nil)

	item := types.Endpoint{
		Method: types.MethodGet,
		Path:   "/users/{id}",
		Parameters: []types.ParamSpec{
			{Name: "id", In: "path", Required: true, Schema: &types.Schema{Type: "integer"}},
		},
	}
	assert.Equal(t, "/users/123", g.buildRequest(item, types.CaseBasic).Path)
	assert.Equal(t, "/users/invalid", g.buildRequest(item, types.CaseException).Path)

	search := types.Endpoint{
		Method: types.MethodGet,
		Path:   "/search",
		Parameters: []types.ParamSpec{
			{Name: "q", In: "query", Required: true, Schema: &types.Schema{Type: "string"}},
		},
	}
	assert.Equal(t, "sample_string", g.buildRequest(search, types.CaseBasic).Query["q"])
	assert.Empty(t, g.buildRequest(search, types.CaseException).Query)

	list := types.Endpoint{Method: types.MethodGet, Path: "/users"}
	assert.Equal(t, "/users/__nonexistent__", g.buildRequest(list, types.CaseException).Path)
}

func TestOrderSteps(t *testing.T) {
	create := types.EndpointRef{Method: types.MethodPost, Path: "/orders"}
	get := types.EndpointRef{Method: types.MethodGet, Path: "/orders/{id}"}
	del := types.EndpointRef{Method: types.MethodDelete, Path: "/orders/{id}"}

	relations := []types.Relation{
		{ID: "r1", Source: create, Target: get, Type: types.RelationData},
		{ID: "r2", Source: get, Target: del, Type: types.RelationSequence},
	}

	ordered := orderSteps([]types.EndpointRef{del, get, create}, relations)
	assert.Equal(t, []types.EndpointRef{create, get, del}, ordered)

	cyclic := append(relations, types.Relation{ID: "r3", Source: del, Target: create, Type: types.RelationSequence})
	assert.Len(t, orderSteps([]types.EndpointRef{del, get, create}, cyclic), 3)
}

func TestOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "requests.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"endpoints":{"GET /users/{id}":{"path_params":{"id":42},"headers":{"X-Trace":"1"}}}}`), 0644))

	overrides, err := LoadOverrides(path)
	require.NoError(t, err)

	item := types.Endpoint{
		Method:     types.MethodGet,
		Path:       "/users/{id}",
		Parameters: []types.ParamSpec{{Name: "id", In: "path", Required: true, Schema: &types.Schema{Type: "integer"}}},
	}
	req := New(overrides).buildRequest(item, types.CaseBasic)
	assert.Equal(t, "/users/42", req.Path)
	assert.Equal(t, "1", req.Headers["X-Trace"])

	// boundary cases keep synthesized data
	assert.Equal(t, "/users/0", New(overrides).buildRequest(item, types.CaseBoundary).Path)

	_, err = LoadOverrides(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestTemplateRoundTrip(t *testing.T) {
	endpoints := append(usersEndpoints(), types.Endpoint{
		Method: types.MethodGet,
		Path:   "/users/{id}",
		Parameters: []types.ParamSpec{
			{Name: "id", In: "path", Required: true, Schema: &types.Schema{Type: "integer"}},
			{Name: "verbose", In: "query"},
		},
	})

	template := Template(endpoints)
	require.Len(t, template.Endpoints, 3)
	item := template.Endpoints["GET /users/{id}"]
	assert.Contains(t, item.PathParams, "id")
	assert.Empty(t, item.QueryParams)
	assert.NotNil(t, template.Endpoints["POST /users"].Body)

	path := filepath.Join(t.TempDir(), "out", "request_data.json")
	require.NoError(t, template.Save(path))
	loaded, err := LoadOverrides(path)
	require.NoError(t, err)
	data, ok := loaded.For(types.EndpointRef{Method: types.MethodPost, Path: "/users"})
	require.True(t, ok)
	assert.Contains(t, data.Body, "name")
}

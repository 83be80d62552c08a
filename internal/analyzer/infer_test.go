package analyzer

import (
	"testing"

	"api-testgen/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ep(method types.Method, path string) types.Endpoint {
	return types.Endpoint{Method: method, Path: path, Security: types.SecurityInherited}
}

func TestInferUsersResource(t *testing.T) {
	endpoints := []types.Endpoint{ep(types.MethodGet, "/users"), ep(types.MethodPost, "/users")}

	result := Infer(endpoints, nil, nil)

	assert.Empty(t, result.Relations)
	require.Len(t, result.Scenarios, 1)
	scenario := result.Scenarios[0]
	assert.Equal(t, "scn-resource-users", scenario.ID)
	assert.Equal(t, types.ScenarioNormal, scenario.Type)
	assert.False(t, scenario.IsCustom)
	// create comes first in a resource flow
	assert.Equal(t, []types.EndpointRef{
		{Method: types.MethodPost, Path: "/users"},
		{Method: types.MethodGet, Path: "/users"},
	}, scenario.Endpoints)
}

func TestInferAuthRelations(t *testing.T) {
	secured := ep(types.MethodGet, "/api/v1/orders")
	secured.Security = types.SecurityRequired
	public := ep(types.MethodGet, "/api/v1/health")
	public.Security = types.SecurityNone

	endpoints := []types.Endpoint{
		ep(types.MethodPost, "/api/v1/orders"),
		ep(types.MethodPost, "/auth/login"),
		secured,
		ep(types.MethodPost, "/auth/logout"),
		public,
		ep(types.MethodDelete, "/api/v1/orders/{orderId}"),
	}

	result := Infer(endpoints, nil, nil)

	var auth, data, sequence []types.Relation
	for _, r := range result.Relations {
		assert.NotEqual(t, r.Source, r.Target)
		assert.GreaterOrEqual(t, r.Confidence, 0.0)
		assert.LessOrEqual(t, r.Confidence, 1.0)
		switch r.Type {
		case types.RelationAuth:
			auth = append(auth, r)
		case types.RelationData:
			data = append(data, r)
		case types.RelationSequence:
			sequence = append(sequence, r)
		}
	}

	require.Len(t, auth, 3, "public endpoint is skipped")
	for _, r := range auth {
		assert.Equal(t, types.EndpointRef{Method: types.MethodPost, Path: "/auth/login"}, r.Target)
	}
	assert.Equal(t, AuthConfidence, auth[0].Confidence)
	assert.Equal(t, SecuredAuthConfidence, auth[1].Confidence)

	require.Len(t, data, 1)
	assert.Equal(t, "/api/v1/orders", data[0].Source.Path)
	assert.Equal(t, "/api/v1/orders/{orderId}", data[0].Target.Path)

	require.Len(t, sequence, 1)
	assert.Equal(t, "/auth/login", sequence[0].Source.Path)
	assert.Equal(t, "/auth/logout", sequence[0].Target.Path)

	ids := make(map[string]bool)
	for _, s := range result.Scenarios {
		assert.False(t, ids[s.ID], "duplicate id %s", s.ID)
		ids[s.ID] = true
	}
	for _, r := range result.Relations {
		assert.False(t, ids[r.ID], "duplicate id %s", r.ID)
		ids[r.ID] = true
	}

	require.Len(t, result.Scenarios, 3)
	assert.Equal(t, AuthScenarioID, result.Scenarios[0].ID)
	assert.Equal(t, "scn-resource-orders", result.Scenarios[1].ID)
	assert.Equal(t, "scn-resource-health", result.Scenarios[2].ID)
}

func TestInferKeepsCustomEntries(t *testing.T) {
	custom := types.Scenario{
		ID:        "custom-checkout",
		Name:      "Checkout",
		Type:      types.ScenarioCustom,
		Endpoints: []types.EndpointRef{{Method: types.MethodPost, Path: "/users"}},
		IsCustom:  true,
	}
	customRelation := types.Relation{
		ID:         "custom-rel",
		Source:     types.EndpointRef{Method: types.MethodGet, Path: "/users"},
		Target:     types.EndpointRef{Method: types.MethodPost, Path: "/users"},
		Type:       types.RelationData,
		Confidence: 1,
		IsCustom:   true,
	}
	staleAuto := types.Scenario{ID: "scn-resource-gone", Type: types.ScenarioNormal}

	endpointSets := [][]types.Endpoint{
		{ep(types.MethodGet, "/users"), ep(types.MethodPost, "/users")},
		{ep(types.MethodGet, "/orders")},
		nil,
	}

	scenarios := []types.Scenario{staleAuto, custom}
	relations := []types.Relation{customRelation}
	for _, endpoints := range endpointSets {
		result := Infer(endpoints, scenarios, relations)
		assert.Contains(t, result.Scenarios, custom)
		assert.Contains(t, result.Relations, customRelation)
		for _, s := range result.Scenarios {
			assert.NotEqual(t, "scn-resource-gone", s.ID)
		}
		scenarios, relations = result.Scenarios, result.Relations
	}
}

func TestInferYieldsIDsToCustomEntries(t *testing.T) {
	orders := types.EndpointRef{Method: types.MethodGet, Path: "/orders"}
	custom := types.Scenario{
		ID:        "scn-resource-orders",
		Name:      "My orders flow",
		Type:      types.ScenarioCustom,
		Endpoints: []types.EndpointRef{orders},
		IsCustom:  true,
	}
	endpoints := []types.Endpoint{ep(types.MethodPost, "/orders"), ep(types.MethodGet, "/orders/{id}")}
	inferredRelation := Infer(endpoints, nil, nil).Relations
	require.Len(t, inferredRelation, 1)
	customRelation := inferredRelation[0]
	customRelation.IsCustom = true

	result := Infer(endpoints, []types.Scenario{custom}, []types.Relation{customRelation})

	ids := make(map[string]int)
	for _, s := range result.Scenarios {
		ids[s.ID]++
	}
	for _, r := range result.Relations {
		ids[r.ID]++
	}
	for id, n := range ids {
		assert.Equal(t, 1, n, "id %q used %d times", id, n)
	}

	require.Len(t, result.Scenarios, 2)
	assert.Equal(t, "scn-resource-orders-2", result.Scenarios[0].ID)
	assert.Equal(t, custom, result.Scenarios[1])
	require.Len(t, result.Relations, 2)
	assert.Equal(t, customRelation.ID+"-2", result.Relations[0].ID)
	assert.Equal(t, customRelation, result.Relations[1])
}

func TestInferEmpty(t *testing.T) {
	result := Infer(nil, nil, nil)
	assert.Empty(t, result.Scenarios)
	assert.Empty(t, result.Relations)
}

func TestResourceOf(t *testing.T) {
	tests := map[string]string{
		"/users":               "users",
		"/api/v2/orders/{id}":  "orders",
		"/":                    "root",
		"/{tenant}/invoices":   "invoices",
		"/API/V1.2/Catalogue/": "catalogue",
	}
	for path, want := range tests {
		assert.Equal(t, want, ResourceOf(path), path)
	}
}

func TestIsAuthEndpoint(t *testing.T) {
	assert.True(t, IsAuthEndpoint(ep(types.MethodPost, "/oauth2/token")))
	assert.False(t, IsAuthEndpoint(ep(types.MethodGet, "/users")))

	tagged := ep(types.MethodGet, "/me")
	tagged.Tags = []string{"Authentication"}
	assert.True(t, IsAuthEndpoint(tagged))
}

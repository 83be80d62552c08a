package parser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"api-testgen/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usersJSON = `{
  "openapi": "3.0.3",
  "info": {"title": "Users API", "version": "1.0.0"},
  "paths": {
    "/users": {
      "get": {"summary": "List users", "responses": {"200": {"description": "ok"}}},
      "post": {
        "operationId": "createUser",
        "requestBody": {
          "required": true,
          "content": {"application/json": {"schema": {"$ref": "#/components/schemas/User"}}}
        },
        "responses": {"201": {"description": "created"}}
      }
    }
  },
  "components": {
    "schemas": {
      "User": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "maxLength": 20},
          "email": {"type": "string", "format": "email"}
        }
      }
    }
  }
}`

const petsYAML = `openapi: 3.0.1
info:
  title: Pets
  version: "1"
paths:
  /pets/{petId}:
    parameters:
      - name: petId
        in: path
        required: true
        schema:
          type: integer
    delete:
      security: []
      responses:
        "204":
          description: deleted
    GET:
      tags: [pets]
      responses:
        "200":
          description: ok
  /auth/login:
    post:
      responses:
        "200":
          description: ok
`

func TestParse(t *testing.T) {
	t.Run("json document", func(t *testing.T) {
		doc, err := Parse(usersJSON, HintUnknown)
		require.NoError(t, err)
		assert.Equal(t, "3.0.3", doc.Version)
		assert.Equal(t, "Users API", doc.Title)
		require.Len(t, doc.Paths, 1)
		assert.Equal(t, []types.Method{types.MethodGet, types.MethodPost}, doc.Paths[0].Methods)
	})

	t.Run("yaml fallback keeps declaration order", func(t *testing.T) {
		doc, err := Parse(petsYAML, HintJSON)
		require.NoError(t, err)
		require.Len(t, doc.Paths, 2)
		assert.Equal(t, "/pets/{petId}", doc.Paths[0].Path)
		assert.Equal(t, []types.Method{types.MethodDelete, types.MethodGet}, doc.Paths[0].Methods)
		assert.Equal(t, "/auth/login", doc.Paths[1].Path)
	})

	t.Run("neither json nor yaml", func(t *testing.T) {
		_, err := Parse("not json or yaml", HintUnknown)
		var formatErr *FormatError
		assert.True(t, errors.As(err, &formatErr), "got %v", err)
	})

	t.Run("broken syntax", func(t *testing.T) {
		_, err := Parse("{\"openapi\": \n  - [", HintUnknown)
		var formatErr *FormatError
		assert.True(t, errors.As(err, &formatErr), "got %v", err)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := Parse("   ", HintUnknown)
		var formatErr *FormatError
		assert.True(t, errors.As(err, &formatErr))
	})

	t.Run("swagger 2.0 rejected", func(t *testing.T) {
		_, err := Parse(`{"openapi":"2.0"}`, HintUnknown)
		var versionErr *UnsupportedVersionError
		require.True(t, errors.As(err, &versionErr), "got %v", err)
		assert.Equal(t, "2.0", versionErr.Version)
	})

	t.Run("missing version rejected", func(t *testing.T) {
		_, err := Parse(`{"swagger":"2.0","paths":{}}`, HintUnknown)
		var versionErr *UnsupportedVersionError
		assert.True(t, errors.As(err, &versionErr))
	})

	t.Run("openapi 3.1 rejected", func(t *testing.T) {
		_, err := Parse("openapi: 3.1.0\ninfo: {title: x, version: '1'}\n", HintYAML)
		var versionErr *UnsupportedVersionError
		assert.True(t, errors.As(err, &versionErr))
	})

	t.Run("operation that is not an object", func(t *testing.T) {
		_, err := Parse(`{"openapi":"3.0.0","info":{"title":"x","version":"1"},"paths":{"/a":{"get":"oops"}}}`, HintJSON)
		var opErr *MalformedOperationError
		require.True(t, errors.As(err, &opErr), "got %v", err)
		assert.Equal(t, "/a", opErr.Path)
		assert.Equal(t, "GET", opErr.Method)
	})
}

func TestExtractEndpoints(t *testing.T) {
	t.Run("users document", func(t *testing.T) {
		doc, err := Parse(usersJSON, HintJSON)
		require.NoError(t, err)

		endpoints, err := ExtractEndpoints(doc)
		require.NoError(t, err)
		require.Len(t, endpoints, 2)

		assert.Equal(t, types.MethodGet, endpoints[0].Method)
		assert.Equal(t, "get_users", endpoints[0].OperationID)
		assert.Equal(t, "List users", endpoints[0].Summary)

		post := endpoints[1]
		assert.Equal(t, "createUser", post.OperationID)
		require.NotNil(t, post.RequestBody)
		assert.Equal(t, "object", post.RequestBody.Type)
		assert.Equal(t, []string{"name"}, post.RequestBody.Required)
		require.NotNil(t, post.RequestBody.Properties["name"].MaxLength)
		assert.EqualValues(t, 20, *post.RequestBody.Properties["name"].MaxLength)
		assert.Equal(t, "application/json", post.BodyType)
		assert.Contains(t, post.Responses, "201")
	})

	t.Run("path level parameters and security", func(t *testing.T) {
		doc, err := Parse(petsYAML, HintYAML)
		require.NoError(t, err)

		endpoints, err := ExtractEndpoints(doc)
		require.NoError(t, err)
		require.Len(t, endpoints, 3)

		del := endpoints[0]
		assert.Equal(t, types.MethodDelete, del.Method)
		assert.Equal(t, "delete_pets_petId", del.OperationID)
		assert.Equal(t, types.SecurityNone, del.Security)
		require.Len(t, del.Parameters, 1)
		assert.Equal(t, "petId", del.Parameters[0].Name)
		assert.True(t, del.Parameters[0].Required)
		assert.Equal(t, "integer", del.Parameters[0].Schema.Type)

		assert.Equal(t, types.MethodGet, endpoints[1].Method)
		assert.Equal(t, []string{"pets"}, endpoints[1].Tags)
		assert.Equal(t, types.SecurityInherited, endpoints[1].Security)
		assert.Equal(t, "/auth/login", endpoints[2].Path)
	})

	t.Run("deterministic", func(t *testing.T) {
		for _, raw := range []string{usersJSON, petsYAML} {
			first, err := Parse(raw, HintUnknown)
			require.NoError(t, err)
			second, err := Parse(raw, HintUnknown)
			require.NoError(t, err)

			a, err := ExtractEndpoints(first)
			require.NoError(t, err)
			b, err := ExtractEndpoints(second)
			require.NoError(t, err)
			assert.Equal(t, a, b)
		}
	})

	t.Run("duplicate operation ids are suffixed", func(t *testing.T) {
		raw := `{"openapi":"3.0.0","info":{"title":"x","version":"1"},"paths":{
			"/a":{"get":{"operationId":"same","responses":{"200":{"description":"ok"}}}},
			"/b":{"get":{"operationId":"same","responses":{"200":{"description":"ok"}}}}}}`
		doc, err := Parse(raw, HintJSON)
		require.NoError(t, err)
		endpoints, err := ExtractEndpoints(doc)
		require.NoError(t, err)
		assert.Equal(t, "same", endpoints[0].OperationID)
		assert.Equal(t, "same_2", endpoints[1].OperationID)
	})

	t.Run("suffixes never reuse a declared operation id", func(t *testing.T) {
		raw := `{"openapi":"3.0.0","info":{"title":"x","version":"1"},"paths":{
			"/a":{"get":{"operationId":"list","responses":{"200":{"description":"ok"}}}},
			"/b":{"get":{"operationId":"list","responses":{"200":{"description":"ok"}}}},
			"/c":{"get":{"operationId":"list_2","responses":{"200":{"description":"ok"}}}},
			"/d":{"get":{"operationId":"list","responses":{"200":{"description":"ok"}}}}}}`
		doc, err := Parse(raw, HintJSON)
		require.NoError(t, err)
		endpoints, err := ExtractEndpoints(doc)
		require.NoError(t, err)

		ids := make([]string, len(endpoints))
		seen := make(map[string]bool)
		for i, e := range endpoints {
			ids[i] = e.OperationID
			assert.False(t, seen[e.OperationID], "operation id %q used twice", e.OperationID)
			seen[e.OperationID] = true
		}
		assert.Equal(t, []string{"list", "list_3", "list_2", "list_4"}, ids)
	})

	t.Run("nil document", func(t *testing.T) {
		_, err := ExtractEndpoints(nil)
		assert.Error(t, err)
	})
}

func TestSynthesizeOperationID(t *testing.T) {
	tests := []struct {
		method types.Method
		path   string
		want   string
	}{
		{types.MethodGet, "/users", "get_users"},
		{types.MethodPut, "/users/{id}/roles", "put_users_id_roles"},
		{types.MethodGet, "/", "get_root"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SynthesizeOperationID(tt.method, tt.path))
	}
}

func TestFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/openapi.json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(usersJSON))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	fetcher := NewFetcher(5*time.Second, nil)

	t.Run("fetch guesses hint", func(t *testing.T) {
		raw, hint, err := fetcher.Fetch(context.Background(), server.URL+"/openapi.json")
		require.NoError(t, err)
		assert.Equal(t, HintJSON, hint)
		assert.Equal(t, usersJSON, raw)
	})

	t.Run("fetch reports status", func(t *testing.T) {
		_, _, err := fetcher.Fetch(context.Background(), server.URL+"/missing")
		assert.Error(t, err)
	})

	t.Run("discover walks candidates", func(t *testing.T) {
		raw, _, err := fetcher.Discover(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, usersJSON, raw)
	})
}

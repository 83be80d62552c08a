package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"api-testgen/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cannedCompleter struct {
	reply  string
	err    error
	prompt string
}

func (c *cannedCompleter) Complete(_ context.Context, _, prompt string) (string, error) {
	c.prompt = prompt
	return c.reply, c.err
}

func ordersEndpoints() []types.Endpoint {
	return []types.Endpoint{
		{Method: types.MethodPost, Path: "/orders", Summary: "Create order",
			RequestBody: &types.Schema{Type: "object", Properties: map[string]*types.Schema{"sku": {Type: "string"}}}},
		{Method: types.MethodGet, Path: "/orders/{id}",
			Parameters: []types.ParamSpec{{Name: "id", In: "path", Required: true}}},
		{Method: types.MethodPost, Path: "/payments"},
	}
}

func TestSuggestFiltersReply(t *testing.T) {
	reply := "```json\n" + `[
  {"source": "POST /orders", "target": "GET /orders/{id}", "type": "data", "confidence": 0.9, "description": "order id"},
  {"source": "post /orders", "target": "POST /payments", "type": "SEQUENCE", "confidence": 0.7},
  {"source": "POST /orders", "target": "GET /orders/{id}", "type": "data", "confidence": 0.8},
  {"source": "POST /orders", "target": "POST /orders", "type": "data", "confidence": 0.9},
  {"source": "DELETE /orders/{id}", "target": "POST /payments", "type": "data", "confidence": 0.9},
  {"source": "POST /orders", "target": "POST /payments", "type": "friendship", "confidence": 0.9},
  {"source": "POST /payments", "target": "GET /orders/{id}", "type": "auth", "confidence": 0.1},
  {"source": "POST /payments", "target": "GET /orders/{id}", "type": "auth", "confidence": 1.5}
]` + "\n```"
	completer := &cannedCompleter{reply: reply}
	s := NewRelationSuggester(completer, nil, nil)

	relations, err := s.Suggest(context.Background(), ordersEndpoints())
	require.NoError(t, err)
	require.Len(t, relations, 2)

	assert.Equal(t, types.EndpointRef{Method: types.MethodPost, Path: "/orders"}, relations[0].Source)
	assert.Equal(t, types.RelationData, relations[0].Type)
	assert.Equal(t, "order id", relations[0].Description)
	assert.Empty(t, relations[0].ID)

	assert.Equal(t, types.RelationSequence, relations[1].Type)
	assert.NotEmpty(t, relations[1].Description)

	assert.Contains(t, completer.prompt, `"endpoint":"POST /orders"`)
	assert.Contains(t, completer.prompt, `"bodyFields":["sku"]`)
	assert.Contains(t, completer.prompt, `"params":["path:id"]`)
}

func TestSuggestErrors(t *testing.T) {
	s := NewRelationSuggester(&cannedCompleter{err: errors.New("rate limited")}, nil, nil)
	_, err := s.Suggest(context.Background(), ordersEndpoints())
	assert.ErrorContains(t, err, "rate limited")

	s = NewRelationSuggester(&cannedCompleter{reply: "I think POST /orders comes first"}, nil, nil)
	_, err = s.Suggest(context.Background(), ordersEndpoints())
	assert.ErrorContains(t, err, "failed to parse LLM response")

	relations, err := s.Suggest(context.Background(), ordersEndpoints()[:1])
	require.NoError(t, err)
	assert.Empty(t, relations)
}

func TestOpenAIClient(t *testing.T) {
	var gotAuth string
	var gotRequest struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&gotRequest)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "[]"}, "finish_reason": "stop"}],
  "usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
}`))
	}))
	defer server.Close()

	config := NewDefaultConfig()
	config.APIKey = "sk-test"
	config.BaseURL = server.URL + "/v1"

	client, err := NewClient(config)
	require.NoError(t, err)

	reply, err := client.Complete(context.Background(), "system", "hello")
	require.NoError(t, err)
	assert.Equal(t, "[]", reply)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4", gotRequest.Model)
	require.Len(t, gotRequest.Messages, 2)
	assert.Equal(t, "hello", gotRequest.Messages[1].Content)
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(&Config{Provider: "openai", Model: "gpt-4"})
	assert.ErrorContains(t, err, "API key")

	_, err = NewClient(&Config{Provider: "anthropic", APIKey: "k", Model: "m"})
	assert.ErrorContains(t, err, "unsupported LLM provider")
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, "[]", stripFences("```json\n[]\n```"))
	assert.Equal(t, "[]", stripFences("  []  "))
}

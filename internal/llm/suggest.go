package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"api-testgen/internal/logger"
	"api-testgen/internal/types"

	"go.uber.org/zap"
)

const systemPrompt = "You are an API testing assistant. You find dependencies between HTTP endpoints. Always respond with JSON only."

// RelationSuggester asks a chat model for relations the heuristics missed
type RelationSuggester struct {
	client Completer
	config *Config
	logger *zap.Logger
}

// NewRelationSuggester creates a suggester. logger may be nil.
func NewRelationSuggester(client Completer, config *Config, logger *zap.Logger) *RelationSuggester {
	if config == nil {
		config = NewDefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelationSuggester{client: client, config: config, logger: logger}
}

// Suggest returns candidate relations between the given endpoints. Entries
// naming unknown endpoints, self loops, unknown types or a confidence outside
// [MinConfidence, 1] are dropped. Returned relations carry no id.
func (s *RelationSuggester) Suggest(ctx context.Context, endpoints []types.Endpoint) ([]types.Relation, error) {
	if len(endpoints) < 2 {
		return nil, nil
	}

	prompt, err := buildPrompt(endpoints)
	if err != nil {
		return nil, err
	}

	response, err := s.client.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		logger.LogInteraction(s.logger, "SuggestRelations", len(endpoints), nil, err)
		return nil, fmt.Errorf("failed to suggest relations: %w", err)
	}

	var raw []suggestion
	if err := json.Unmarshal([]byte(stripFences(response)), &raw); err != nil {
		logger.LogInteraction(s.logger, "SuggestRelations", len(endpoints), response, err)
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}

	relations := s.accept(raw, endpoints)
	logger.LogInteraction(s.logger, "SuggestRelations", len(endpoints), relations, nil)
	return relations, nil
}

func (s *RelationSuggester) accept(raw []suggestion, endpoints []types.Endpoint) []types.Relation {
	known := make(map[string]bool, len(endpoints))
	for _, e := range endpoints {
		known[e.Key()] = true
	}

	seen := make(map[string]bool)
	var out []types.Relation
	for _, r := range raw {
		source, ok := parseRef(r.Source)
		if !ok || !known[source.Key()] {
			continue
		}
		target, ok := parseRef(r.Target)
		if !ok || !known[target.Key()] || source == target {
			continue
		}
		kind := types.RelationType(strings.ToLower(r.Type))
		if !kind.Valid() {
			continue
		}
		if r.Confidence < s.config.MinConfidence || r.Confidence > 1 {
			continue
		}
		key := string(kind) + "|" + source.Key() + "|" + target.Key()
		if seen[key] {
			continue
		}
		seen[key] = true

		description := r.Description
		if description == "" {
			description = "Suggested by language model"
		}
		out = append(out, types.Relation{
			Source:      source,
			Target:      target,
			Type:        kind,
			Description: description,
			Confidence:  r.Confidence,
		})
	}
	return out
}

func buildPrompt(endpoints []types.Endpoint) (string, error) {
	summaries := make([]endpointSummary, 0, len(endpoints))
	for _, e := range endpoints {
		summary := endpointSummary{Endpoint: e.Key(), Summary: e.Summary, Tags: e.Tags}
		for _, p := range e.Parameters {
			summary.Params = append(summary.Params, p.In+":"+p.Name)
		}
		if e.RequestBody != nil {
			for name := range e.RequestBody.Properties {
				summary.Body = append(summary.Body, name)
			}
			sort.Strings(summary.Body)
		}
		summaries = append(summaries, summary)
	}

	// Remove indentation to save tokens
	endpointsJSON, err := json.Marshal(summaries)
	if err != nil {
		return "", fmt.Errorf("failed to encode endpoints: %w", err)
	}

	return fmt.Sprintf(`Find dependencies between the following API endpoints:
%s

Relation types:
- data: the target consumes a value produced by the source (for example an id)
- sequence: the source must be called before the target
- auth: the source provides credentials the target needs

Respond with a JSON array of objects with the fields "source", "target", "type", "confidence" (0 to 1) and "description".
Use the exact endpoint strings given above for source and target.`, string(endpointsJSON)), nil
}

// parseRef reads "METHOD /path"
func parseRef(s string) (types.EndpointRef, bool) {
	method, path, ok := strings.Cut(strings.TrimSpace(s), " ")
	if !ok {
		return types.EndpointRef{}, false
	}
	m, ok := types.ParseMethod(method)
	if !ok {
		return types.EndpointRef{}, false
	}
	return types.EndpointRef{Method: m, Path: strings.TrimSpace(path)}, true
}

// stripFences removes a markdown code fence around the reply, if any
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

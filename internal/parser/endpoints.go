package parser

import (
	"fmt"
	"sort"
	"strings"

	"api-testgen/internal/types"

	"github.com/getkin/kin-openapi/openapi3"
)

// maxSchemaDepth bounds schema conversion so recursive components terminate
const maxSchemaDepth = 8

// ExtractEndpoints flattens the document's path/method tree into endpoints, in
// declaration order
func ExtractEndpoints(doc *Document) ([]types.Endpoint, error) {
	if doc == nil || doc.Spec == nil {
		return nil, fmt.Errorf("no document to extract endpoints from")
	}

	endpoints := make([]types.Endpoint, 0, doc.OperationCount())

	for _, entry := range doc.Paths {
		var item *openapi3.PathItem
		if doc.Spec.Paths != nil {
			item = doc.Spec.Paths.Value(entry.Path)
		}
		if item == nil {
			return nil, &MalformedOperationError{Path: entry.Path, Reason: "path item could not be loaded"}
		}

		for _, method := range entry.Methods {
			operation := item.GetOperation(string(method))
			if operation == nil {
				return nil, &MalformedOperationError{Path: entry.Path, Method: string(method), Reason: "operation could not be loaded"}
			}

			endpoint, err := buildEndpoint(doc.Spec, entry.Path, method, item, operation)
			if err != nil {
				return nil, err
			}

			endpoints = append(endpoints, endpoint)
		}
	}

	dedupeOperationIDs(endpoints)
	return endpoints, nil
}

// dedupeOperationIDs keeps the first use of every operation id and renames
// later duplicates to the first free "{id}_{n}". Ids declared anywhere in the
// document are never taken by a rename.
func dedupeOperationIDs(endpoints []types.Endpoint) {
	declared := make(map[string]bool, len(endpoints))
	for _, e := range endpoints {
		declared[e.OperationID] = true
	}

	used := make(map[string]bool, len(endpoints))
	for i := range endpoints {
		id := endpoints[i].OperationID
		if !used[id] {
			used[id] = true
			continue
		}
		for n := 2; ; n++ {
			candidate := fmt.Sprintf("%s_%d", id, n)
			if !used[candidate] && !declared[candidate] {
				endpoints[i].OperationID = candidate
				used[candidate] = true
				break
			}
		}
	}
}

func buildEndpoint(spec *openapi3.T, path string, method types.Method, item *openapi3.PathItem, operation *openapi3.Operation) (types.Endpoint, error) {
	endpoint := types.Endpoint{
		Method:      method,
		Path:        path,
		OperationID: operation.OperationID,
		Summary:     operation.Summary,
		Responses:   make(map[string]*types.Schema),
		Security:    securityOf(spec, operation),
	}
	if endpoint.OperationID == "" {
		endpoint.OperationID = SynthesizeOperationID(method, path)
	}
	if len(operation.Tags) > 0 {
		endpoint.Tags = append([]string(nil), operation.Tags...)
	}

	params, err := mergeParameters(path, method, item.Parameters, operation.Parameters)
	if err != nil {
		return types.Endpoint{}, err
	}
	endpoint.Parameters = params

	// Extract request body if present
	if operation.RequestBody != nil {
		if operation.RequestBody.Value == nil {
			return types.Endpoint{}, &MalformedOperationError{
				Path: path, Method: string(method),
				Reason: fmt.Sprintf("unresolved request body reference %q", operation.RequestBody.Ref),
			}
		}
		contentType, media := pickContent(operation.RequestBody.Value.Content)
		if media != nil {
			endpoint.RequestBody = convertSchema(media.Schema, 0)
			endpoint.BodyType = contentType
		}
	}

	// Extract responses
	if operation.Responses != nil {
		for code, response := range operation.Responses.Map() {
			if response == nil || response.Value == nil {
				return types.Endpoint{}, &MalformedOperationError{
					Path: path, Method: string(method),
					Reason: fmt.Sprintf("unresolved response %s", code),
				}
			}
			var schema *types.Schema
			if _, media := pickContent(response.Value.Content); media != nil {
				schema = convertSchema(media.Schema, 0)
			}
			endpoint.Responses[code] = schema
		}
	}

	return endpoint, nil
}

// SynthesizeOperationID builds an operation id from method and path, e.g.
// GET /users/{id} becomes get_users_id
func SynthesizeOperationID(method types.Method, path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		trimmed = "root"
	}
	replacer := strings.NewReplacer("/", "_", "{", "", "}", "")
	return strings.ToLower(string(method)) + "_" + replacer.Replace(trimmed)
}

// mergeParameters applies operation parameters over path-level ones, keyed by name and location
func mergeParameters(path string, method types.Method, pathLevel, operationLevel openapi3.Parameters) ([]types.ParamSpec, error) {
	var params []types.ParamSpec
	index := make(map[string]int)

	for _, group := range []openapi3.Parameters{pathLevel, operationLevel} {
		for _, ref := range group {
			if ref == nil || ref.Value == nil {
				reference := ""
				if ref != nil {
					reference = ref.Ref
				}
				return nil, &MalformedOperationError{
					Path: path, Method: string(method),
					Reason: fmt.Sprintf("unresolved parameter reference %q", reference),
				}
			}
			param := types.ParamSpec{
				Name:     ref.Value.Name,
				In:       ref.Value.In,
				Required: ref.Value.Required || ref.Value.In == openapi3.ParameterInPath,
				Schema:   convertSchema(ref.Value.Schema, 0),
			}
			key := param.In + ":" + param.Name
			if i, ok := index[key]; ok {
				params[i] = param
				continue
			}
			index[key] = len(params)
			params = append(params, param)
		}
	}
	return params, nil
}

// pickContent prefers application/json, then the first content type in sorted order
func pickContent(content openapi3.Content) (string, *openapi3.MediaType) {
	if len(content) == 0 {
		return "", nil
	}
	if media, ok := content["application/json"]; ok && media != nil {
		return "application/json", media
	}
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if content[k] != nil {
			return k, content[k]
		}
	}
	return "", nil
}

func securityOf(spec *openapi3.T, operation *openapi3.Operation) types.Security {
	if operation.Security != nil {
		if len(*operation.Security) == 0 {
			return types.SecurityNone
		}
		return types.SecurityRequired
	}
	if len(spec.Security) > 0 {
		return types.SecurityRequired
	}
	return types.SecurityInherited
}

// convertSchema summarises an OpenAPI schema; allOf members are folded into one object
func convertSchema(ref *openapi3.SchemaRef, depth int) *types.Schema {
	if ref == nil || ref.Value == nil {
		return nil
	}
	if depth > maxSchemaDepth {
		return &types.Schema{Type: "object"}
	}
	s := ref.Value

	out := &types.Schema{
		Format:   s.Format,
		Nullable: s.Nullable,
		Minimum:  s.Min,
		Maximum:  s.Max,
	}
	if s.Type != nil {
		for _, t := range s.Type.Slice() {
			if t == "null" {
				out.Nullable = true
				continue
			}
			if out.Type == "" {
				out.Type = t
			}
		}
	}
	if len(s.Enum) > 0 {
		out.Enum = append([]interface{}(nil), s.Enum...)
	}
	if s.MinLength > 0 {
		v := s.MinLength
		out.MinLength = &v
	}
	if s.MaxLength != nil {
		v := *s.MaxLength
		out.MaxLength = &v
	}
	if s.MinItems > 0 {
		v := s.MinItems
		out.MinItems = &v
	}
	if s.MaxItems != nil {
		v := *s.MaxItems
		out.MaxItems = &v
	}
	if len(s.Required) > 0 {
		out.Required = append([]string(nil), s.Required...)
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*types.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = convertSchema(prop, depth+1)
		}
	}
	if s.Items != nil {
		out.Items = convertSchema(s.Items, depth+1)
	}

	for _, member := range s.AllOf {
		part := convertSchema(member, depth+1)
		if part == nil {
			continue
		}
		if out.Type == "" {
			out.Type = part.Type
		}
		for name, prop := range part.Properties {
			if out.Properties == nil {
				out.Properties = make(map[string]*types.Schema)
			}
			if _, exists := out.Properties[name]; !exists {
				out.Properties[name] = prop
			}
		}
		out.Required = append(out.Required, part.Required...)
	}

	if out.Type == "" && len(out.Properties) > 0 {
		out.Type = "object"
	}
	return out
}

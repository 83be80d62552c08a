package generator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"api-testgen/internal/types"
)

// RequestData is user supplied request data for one endpoint. It replaces the
// synthesized values of basic and scenario requests.
type RequestData struct {
	PathParams  map[string]interface{} `json:"path_params,omitempty"`
	QueryParams map[string]interface{} `json:"query_params,omitempty"`
	Body        interface{}            `json:"body,omitempty"`
	Headers     map[string]string      `json:"headers,omitempty"`
}

// Overrides maps "METHOD path" keys to request data
type Overrides struct {
	Endpoints map[string]RequestData `json:"endpoints"`
}

// LoadOverrides loads request data from a JSON file of the form
// {"endpoints": {"GET /users/{id}": {"path_params": {"id": 7}}}}
func LoadOverrides(path string) (*Overrides, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request data: %w", err)
	}

	var data Overrides
	if err := json.Unmarshal(file, &data); err != nil {
		return nil, fmt.Errorf("failed to parse request data: %w", err)
	}
	return &data, nil
}

// For returns the request data for an endpoint, if any
func (o *Overrides) For(ref types.EndpointRef) (RequestData, bool) {
	if o == nil || o.Endpoints == nil {
		return RequestData{}, false
	}
	data, ok := o.Endpoints[ref.Key()]
	return data, ok
}

// Template builds request data pre-filled with synthesized values, one entry
// per endpoint, for users to edit and pass back through LoadOverrides
func Template(endpoints []types.Endpoint) *Overrides {
	template := &Overrides{Endpoints: make(map[string]RequestData, len(endpoints))}
	for _, e := range endpoints {
		data := RequestData{}
		for _, p := range e.Parameters {
			switch p.In {
			case "path":
				if data.PathParams == nil {
					data.PathParams = make(map[string]interface{})
				}
				data.PathParams[p.Name] = paramValue(p, types.CaseBasic)
			case "query":
				if !p.Required {
					continue
				}
				if data.QueryParams == nil {
					data.QueryParams = make(map[string]interface{})
				}
				data.QueryParams[p.Name] = paramValue(p, types.CaseBasic)
			}
		}
		if e.RequestBody != nil {
			data.Body = sampleValue(e.RequestBody)
		}
		template.Endpoints[e.Key()] = data
	}
	return template
}

// Save writes the request data as indented JSON
func (o *Overrides) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	data, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal request data: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

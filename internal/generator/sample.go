package generator

import (
	"strings"

	"api-testgen/internal/types"
)

// Limits keep boundary payloads bounded for schemas with huge maxima
const (
	maxGeneratedLength = 4096
	maxGeneratedItems  = 100
)

func capped(n uint64, limit int) int {
	if n > uint64(limit) {
		return limit
	}
	return int(n)
}

// sampleValue generates a happy-path value for a schema
func sampleValue(schema *types.Schema) interface{} {
	if schema == nil {
		return nil
	}
	if len(schema.Enum) > 0 {
		return schema.Enum[0]
	}

	switch schema.Type {
	case "string":
		if v, ok := formatSample(schema.Format); ok {
			return v
		}
		if schema.MinLength != nil && *schema.MinLength > uint64(len("sample_string")) {
			return strings.Repeat("s", capped(*schema.MinLength, maxGeneratedLength))
		}
		if schema.MaxLength != nil && *schema.MaxLength < uint64(len("sample_string")) {
			return strings.Repeat("s", int(*schema.MaxLength))
		}
		return "sample_string"
	case "number":
		if schema.Minimum != nil {
			return *schema.Minimum
		}
		if schema.Format == "double" {
			return 123.456789
		}
		return 123.45
	case "integer":
		if schema.Minimum != nil {
			return int64(*schema.Minimum)
		}
		if schema.Format == "int64" {
			return 123456789
		}
		return 123
	case "boolean":
		return true
	case "array":
		count := 1
		if schema.MinItems != nil && capped(*schema.MinItems, maxGeneratedItems) > count {
			count = capped(*schema.MinItems, maxGeneratedItems)
		}
		items := make([]interface{}, count)
		for i := range items {
			items[i] = sampleOrDefault(schema.Items)
		}
		return items
	case "object":
		result := make(map[string]interface{})
		for key, prop := range schema.Properties {
			result[key] = sampleValue(prop)
		}
		return result
	}
	if len(schema.Properties) > 0 {
		return sampleValue(&types.Schema{Type: "object", Properties: schema.Properties})
	}
	return nil
}

func sampleOrDefault(schema *types.Schema) interface{} {
	if v := sampleValue(schema); v != nil {
		return v
	}
	return "sample_item"
}

// boundaryValue generates a value sitting on the limits the schema declares
func boundaryValue(schema *types.Schema) interface{} {
	if schema == nil {
		return nil
	}
	if len(schema.Enum) > 0 {
		return schema.Enum[len(schema.Enum)-1]
	}

	switch schema.Type {
	case "string":
		if schema.MaxLength != nil {
			return strings.Repeat("a", capped(*schema.MaxLength, maxGeneratedLength))
		}
		if schema.MinLength != nil {
			return strings.Repeat("a", capped(*schema.MinLength, maxGeneratedLength))
		}
		if v, ok := formatSample(schema.Format); ok {
			return v
		}
		return ""
	case "number":
		if schema.Maximum != nil {
			return *schema.Maximum
		}
		if schema.Minimum != nil {
			return *schema.Minimum
		}
		return 0.0
	case "integer":
		if schema.Maximum != nil {
			return int64(*schema.Maximum)
		}
		if schema.Minimum != nil {
			return int64(*schema.Minimum)
		}
		return 0
	case "boolean":
		return false
	case "array":
		count := 0
		if schema.MaxItems != nil {
			count = capped(*schema.MaxItems, maxGeneratedItems)
		} else if schema.MinItems != nil {
			count = capped(*schema.MinItems, maxGeneratedItems)
		}
		items := make([]interface{}, count)
		for i := range items {
			items[i] = sampleOrDefault(schema.Items)
		}
		return items
	case "object":
		result := make(map[string]interface{})
		for key, prop := range schema.Properties {
			result[key] = boundaryValue(prop)
		}
		return result
	}
	return sampleValue(schema)
}

// invalidValue returns a value of the wrong type for the schema, or false when
// any value would be accepted
func invalidValue(schema *types.Schema) (interface{}, bool) {
	if schema == nil {
		return nil, false
	}
	switch schema.Type {
	case "integer", "number", "boolean":
		return "invalid", true
	case "string":
		if len(schema.Enum) > 0 {
			return "__not_in_enum__", true
		}
		if schema.Format != "" {
			if _, ok := formatSample(schema.Format); ok {
				return "invalid-" + schema.Format, true
			}
		}
		return 12345, true
	case "array":
		return "invalid", true
	case "object":
		return "invalid", true
	}
	return nil, false
}

func formatSample(format string) (string, bool) {
	switch format {
	case "email":
		return "test@example.com", true
	case "date":
		return "2024-01-01", true
	case "date-time":
		return "2024-01-01T12:00:00Z", true
	case "uuid":
		return "123e4567-e89b-12d3-a456-426614174000", true
	case "uri", "url":
		return "https://example.com", true
	case "ipv4":
		return "192.168.1.1", true
	case "ipv6":
		return "2001:db8::1", true
	}
	return "", false
}

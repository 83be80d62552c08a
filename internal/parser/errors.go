package parser

import "fmt"

// FormatError is returned when a document is neither valid JSON nor YAML,
// or does not decode into an OpenAPI object
type FormatError struct {
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid document format: %v", e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// UnsupportedVersionError is returned when the openapi field is missing or not 3.0.x
type UnsupportedVersionError struct {
	Version string
}

func (e *UnsupportedVersionError) Error() string {
	if e.Version == "" {
		return "unsupported document: openapi version field is missing"
	}
	return fmt.Sprintf("unsupported openapi version %q: only 3.0.x is supported", e.Version)
}

// MalformedOperationError identifies a path or operation with an unexpected shape
type MalformedOperationError struct {
	Path   string
	Method string
	Reason string
}

func (e *MalformedOperationError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("malformed path item %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("malformed operation %s %s: %s", e.Method, e.Path, e.Reason)
}

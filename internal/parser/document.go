package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"api-testgen/internal/types"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// Hint tells the parser which syntax the caller believes the document uses
type Hint string

const (
	HintJSON    Hint = "json"
	HintYAML    Hint = "yaml"
	HintUnknown Hint = ""
)

// ParseHint normalises a user supplied hint
func ParseHint(s string) Hint {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return HintJSON
	case "yaml", "yml":
		return HintYAML
	default:
		return HintUnknown
	}
}

// Document is a parsed OpenAPI 3.0.x document. It is never modified after Parse.
type Document struct {
	Version string
	Title   string
	// Paths keeps the declaration order of paths and of their method keys
	Paths []PathEntry
	Spec  *openapi3.T
	Raw   string
	Hint  Hint
}

// PathEntry is one path of the document with its methods in declaration order
type PathEntry struct {
	Path    string
	Methods []types.Method
}

// OperationCount returns the number of (method, path) pairs in the document
func (d *Document) OperationCount() int {
	n := 0
	for _, p := range d.Paths {
		n += len(p.Methods)
	}
	return n
}

// Parse turns raw JSON or YAML text into a Document. JSON is tried first unless
// the hint says YAML; YAML is always the fallback.
func Parse(raw string, hint Hint) (*Document, error) {
	root, err := decode(raw, hint)
	if err != nil {
		return nil, err
	}

	version := scalarValue(mappingValue(root, "openapi"))
	if !strings.HasPrefix(version, "3.0.") {
		return nil, &UnsupportedVersionError{Version: version}
	}

	paths, err := pathOrder(mappingValue(root, "paths"))
	if err != nil {
		return nil, err
	}

	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false
	spec, err := loader.LoadFromData([]byte(raw))
	if err != nil {
		return nil, &FormatError{Err: fmt.Errorf("failed to load OpenAPI doc: %w", err)}
	}

	title := ""
	if spec.Info != nil {
		title = spec.Info.Title
	}

	return &Document{
		Version: version,
		Title:   title,
		Paths:   paths,
		Spec:    spec,
		Raw:     raw,
		Hint:    hint,
	}, nil
}

// decode returns the root mapping node of the document
func decode(raw string, hint Hint) (*yaml.Node, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &FormatError{Err: errors.New("document is empty")}
	}

	var jsonErr error
	if hint != HintYAML {
		root, err := decodeJSON(raw)
		if err == nil {
			return requireMapping(root)
		}
		jsonErr = err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		if jsonErr != nil {
			return nil, &FormatError{Err: fmt.Errorf("json: %v; yaml: %w", jsonErr, err)}
		}
		return nil, &FormatError{Err: fmt.Errorf("yaml: %w", err)}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, &FormatError{Err: errors.New("document is empty")}
	}
	return requireMapping(doc.Content[0])
}

func requireMapping(root *yaml.Node) (*yaml.Node, error) {
	if root.Kind != yaml.MappingNode {
		return nil, &FormatError{Err: errors.New("document root is not an object")}
	}
	return root, nil
}

// decodeJSON decodes strict JSON into a yaml node tree so that key order is
// handled the same way for both syntaxes
func decodeJSON(raw string) (*yaml.Node, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	node, err := jsonNode(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after top-level value")
	}
	return node, nil
}

func jsonNode(dec *json.Decoder) (*yaml.Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", keyTok)
				}
				value, err := jsonNode(dec)
				if err != nil {
					return nil, err
				}
				node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, value)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return node, nil
		case '[':
			node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
			for dec.More() {
				value, err := jsonNode(dec)
				if err != nil {
					return nil, err
				}
				node.Content = append(node.Content, value)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return node, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case string:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: t}, nil
	case json.Number:
		tag := "!!int"
		if strings.ContainsAny(t.String(), ".eE") {
			tag = "!!float"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: t.String()}, nil
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: fmt.Sprint(t)}, nil
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

// pathOrder walks the paths object in declaration order and checks that each
// method entry is an object
func pathOrder(paths *yaml.Node) ([]PathEntry, error) {
	if paths == nil || isNull(paths) {
		return nil, nil
	}
	if paths.Kind != yaml.MappingNode {
		return nil, &FormatError{Err: errors.New("paths is not an object")}
	}

	entries := make([]PathEntry, 0, len(paths.Content)/2)
	for i := 0; i+1 < len(paths.Content); i += 2 {
		path := paths.Content[i].Value
		item := paths.Content[i+1]
		if item.Kind == yaml.AliasNode && item.Alias != nil {
			item = item.Alias
		}
		if item.Kind != yaml.MappingNode {
			return nil, &MalformedOperationError{Path: path, Reason: "path item is not an object"}
		}

		entry := PathEntry{Path: path}
		seen := make(map[types.Method]bool)
		for j := 0; j+1 < len(item.Content); j += 2 {
			method, ok := types.ParseMethod(item.Content[j].Value)
			if !ok {
				continue
			}
			if item.Content[j+1].Kind != yaml.MappingNode {
				return nil, &MalformedOperationError{Path: path, Method: string(method), Reason: "operation is not an object"}
			}
			if seen[method] {
				return nil, &MalformedOperationError{Path: path, Method: string(method), Reason: "operation declared more than once"}
			}
			seen[method] = true
			entry.Methods = append(entry.Methods, method)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func scalarValue(node *yaml.Node) string {
	if node == nil || node.Kind != yaml.ScalarNode || isNull(node) {
		return ""
	}
	return node.Value
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null"
}

package xmlflat

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Decode converts a flattened node into a typed record.
// Fields that may repeat in the source should be declared as Many[T],
// text fields that may carry attributes as Text. Empty elements decode as absent values,
// so an empty container never fails to decode into a struct.
func Decode(n Node, v any) error {
	data, err := json.Marshal(prune(n))
	if err != nil {
		return fmt.Errorf("failed to encode flattened node: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode flattened node: %w", err)
	}
	return nil
}

// prune returns a copy of n with empty text leaves replaced by nil.
func prune(n Node) Node {
	switch t := n.(type) {
	case string:
		if t == "" {
			return nil
		}
		return t
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[k] = prune(v)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = prune(v)
		}
		return out
	default:
		return n
	}
}

// Many accepts both a single flattened value and a slice of them.
type Many[T any] []T

// UnmarshalJSON implements json.Unmarshaler.
func (m *Many[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(trimmed, []byte("null")):
		*m = nil
		return nil
	case len(trimmed) > 0 && trimmed[0] == '[':
		var list []T
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		*m = list
		return nil
	default:
		var single T
		if err := json.Unmarshal(trimmed, &single); err != nil {
			// an empty container element flattens to ""
			if bytes.Equal(trimmed, []byte(`""`)) {
				*m = nil
				return nil
			}
			return err
		}
		*m = Many[T]{single}
		return nil
	}
}

// Text is the text content of an element that may or may not carry attributes.
// Scalar JSON values of any type decode to their literal form.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*t = ""
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*t = Text(s)
	case '{':
		var m map[string]any
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return err
		}
		*t = Text(String(m))
	case '[':
		*t = ""
	default:
		// numbers and booleans keep their literal form
		*t = Text(trimmed)
	}
	return nil
}

// String returns the text content of a flattened node.
func String(n Node) string {
	switch v := n.(type) {
	case string:
		return v
	case map[string]any:
		if s, ok := v[TextKey].(string); ok {
			return s
		}
	}
	return ""
}

// Get walks a path of map keys and returns the node at its end, or nil.
func Get(n Node, path ...string) Node {
	cur := n
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

// List normalizes a possibly repeated node into a slice.
func List(n Node) []Node {
	switch v := n.(type) {
	case nil:
		return nil
	case []any:
		return v
	default:
		return []Node{v}
	}
}

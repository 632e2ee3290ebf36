// Package xmlflat converts arbitrary XML documents into nested maps, ordered slices and strings.
//
// The flattening rules are format agnostic and shared by every XML based mapper:
//   - an element with only text and no attributes becomes its trimmed text;
//   - attributes form the base map of an element, child elements are added on top of them;
//   - a repeated child tag is promoted to a slice in document order;
//   - a lone text child is inlined as the scalar value, or kept under the "text" key when the
//     element carries attributes;
//   - an element with neither children nor attributes becomes "".
package xmlflat

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/scan-io-git/hdf-tools/pkg/shared/errors"
)

// TextKey is the key a text node is stored under when its parent element has attributes.
const TextKey = "text"

// Node is a flattened XML value: map[string]any, []any or string.
type Node = any

// Document is a flattened XML document.
type Document struct {
	Root  string
	Value Node
}

// Map returns the document as a single entry map keyed by the root element name.
func (d *Document) Map() map[string]any {
	return map[string]any{d.Root: d.Value}
}

type element struct {
	name     string
	attrs    map[string]any
	children []*element
	text     strings.Builder
}

// Flatten parses r strictly and flattens its root element.
// Any malformed input is reported as *errors.ParseError.
func Flatten(r io.Reader, source string) (*Document, error) {
	root, err := parse(r)
	if err != nil {
		return nil, errors.NewParseError(source, err)
	}
	return &Document{Root: root.name, Value: root.flatten()}, nil
}

// FlattenBytes is Flatten over an in-memory document.
func FlattenBytes(data []byte, source string) (*Document, error) {
	return Flatten(bytes.NewReader(data), source)
}

func parse(r io.Reader) (*element, error) {
	decoder := xml.NewDecoder(r)
	decoder.Strict = true
	decoder.CharsetReader = charset.NewReaderLabel

	var (
		stack []*element
		root  *element
	)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if root != nil && len(stack) == 0 {
				return nil, fmt.Errorf("unexpected element <%s> after the root element", t.Name.Local)
			}
			el := &element{name: t.Name.Local, attrs: attributes(t.Attr)}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			} else {
				root = el
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 0 {
				if len(bytes.TrimSpace(t)) > 0 {
					return nil, fmt.Errorf("unexpected text outside of the root element")
				}
				continue
			}
			stack[len(stack)-1].text.Write(t)
		}
	}

	if root == nil {
		return nil, fmt.Errorf("document has no root element")
	}
	return root, nil
}

// attributes collects element attributes, skipping namespace declarations.
func attributes(attrs []xml.Attr) map[string]any {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for _, a := range attrs {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
			continue
		}
		out[a.Name.Local] = a.Value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (e *element) flatten() Node {
	text := strings.TrimSpace(e.text.String())

	if len(e.children) == 0 {
		switch {
		case e.attrs == nil:
			return text
		case text == "":
			return MergeAttributes(e.attrs, nil)
		default:
			return MergeAttributes(e.attrs, map[string]any{TextKey: text})
		}
	}

	children := make(map[string]any, len(e.children))
	for _, child := range e.children {
		AddChild(children, child.name, child.flatten())
	}
	return MergeAttributes(e.attrs, children)
}

// AddChild stores value under tag, promoting an existing entry to a slice when the tag repeats.
func AddChild(m map[string]any, tag string, value Node) {
	existing, ok := m[tag]
	if !ok {
		m[tag] = value
		return
	}
	if list, isList := existing.([]any); isList {
		m[tag] = append(list, value)
		return
	}
	m[tag] = []any{existing, value}
}

// MergeAttributes combines attribute and child entries of one element.
// Attributes are applied first and child entries override them on key collision.
func MergeAttributes(attrs map[string]any, children map[string]any) map[string]any {
	out := make(map[string]any, len(attrs)+len(children))
	for k, v := range attrs {
		out[k] = v
	}
	for k, v := range children {
		out[k] = v
	}
	return out
}

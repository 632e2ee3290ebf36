package xmlflat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/hdf-tools/pkg/shared/errors"
)

func flatten(t *testing.T, doc string) *Document {
	t.Helper()
	d, err := Flatten(strings.NewReader(doc), "test")
	require.NoError(t, err)
	return d
}

func TestFlatten(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantRoot string
		want     Node
	}{
		{
			name:     "repeated children become a slice",
			input:    `<root><item>A</item><item>B</item></root>`,
			wantRoot: "root",
			want:     map[string]any{"item": []any{"A", "B"}},
		},
		{
			name:     "three repeated children keep document order",
			input:    `<r><x>1</x><y>s</y><x>2</x><x>3</x></r>`,
			wantRoot: "r",
			want:     map[string]any{"x": []any{"1", "2", "3"}, "y": "s"},
		},
		{
			name:     "child wins over attribute",
			input:    `<e a="1"><a>2</a></e>`,
			wantRoot: "e",
			want:     map[string]any{"a": "2"},
		},
		{
			name:     "text leaf is trimmed",
			input:    "<e>\n   hello  \n</e>",
			wantRoot: "e",
			want:     "hello",
		},
		{
			name:     "empty element degenerates to empty string",
			input:    `<e></e>`,
			wantRoot: "e",
			want:     "",
		},
		{
			name:     "attributes only",
			input:    `<e id="7" kind="x"/>`,
			wantRoot: "e",
			want:     map[string]any{"id": "7", "kind": "x"},
		},
		{
			name:     "attributes with whitespace text",
			input:    "<e id=\"7\">   \n </e>",
			wantRoot: "e",
			want:     map[string]any{"id": "7"},
		},
		{
			name:     "attributes with text keep the text under the text key",
			input:    `<host ip="10.0.0.1">http://example.com</host>`,
			wantRoot: "host",
			want:     map[string]any{"ip": "10.0.0.1", "text": "http://example.com"},
		},
		{
			name:     "cdata is text",
			input:    `<snippet><![CDATA[ if (x < 1) {} ]]></snippet>`,
			wantRoot: "snippet",
			want:     "if (x < 1) {}",
		},
		{
			name:     "namespace declarations are not attributes",
			input:    `<FVDL xmlns="xmlns://www.fortifysoftware.com/schema/fvdl" version="1.12"><UUID>u</UUID></FVDL>`,
			wantRoot: "FVDL",
			want:     map[string]any{"version": "1.12", "UUID": "u"},
		},
		{
			name: "nested structure",
			input: `<issues burpVersion="2.0">
  <issue><type>1</type><host ip="1.1.1.1">http://a</host></issue>
  <issue><type>2</type><host ip="2.2.2.2">http://b</host></issue>
</issues>`,
			wantRoot: "issues",
			want: map[string]any{
				"burpVersion": "2.0",
				"issue": []any{
					map[string]any{"type": "1", "host": map[string]any{"ip": "1.1.1.1", "text": "http://a"}},
					map[string]any{"type": "2", "host": map[string]any{"ip": "2.2.2.2", "text": "http://b"}},
				},
			},
		},
		{
			name:     "text mixed with elements is dropped",
			input:    `<p>lead<b>bold</b>tail</p>`,
			wantRoot: "p",
			want:     map[string]any{"b": "bold"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := flatten(t, tt.input)
			assert.Equal(t, tt.wantRoot, doc.Root)
			assert.Equal(t, tt.want, doc.Value)
		})
	}
}

func TestFlattenDocumentMap(t *testing.T) {
	doc := flatten(t, `<root><item>A</item><item>B</item></root>`)
	assert.Equal(t, map[string]any{"root": map[string]any{"item": []any{"A", "B"}}}, doc.Map())
}

func TestFlattenRejectsMalformedXML(t *testing.T) {
	inputs := map[string]string{
		"unclosed":        `<root><a></root>`,
		"truncated":       `<root><a>text</a>`,
		"empty":           ``,
		"two roots":       `<a/><b/>`,
		"trailing text":   `<a/>junk`,
		"bad entity":      `<a>&nbsp;</a>`,
		"unquoted attr":   `<a x=1/>`,
		"only a comment":  `<!-- nothing -->`,
		"mismatched tags": `<a><b></a></b>`,
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := FlattenBytes([]byte(input), "broken.xml")
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrParse)
			assert.Contains(t, err.Error(), "broken.xml")
		})
	}
}

func TestMergeAttributesChildrenWin(t *testing.T) {
	attrs := map[string]any{"a": "1", "b": "attr"}
	children := map[string]any{"a": "2", "c": "child"}

	merged := MergeAttributes(attrs, children)

	assert.Equal(t, map[string]any{"a": "2", "b": "attr", "c": "child"}, merged)
	assert.Equal(t, "1", attrs["a"], "inputs must not be modified")
}

func TestAddChildPromotesToSlice(t *testing.T) {
	m := map[string]any{}
	AddChild(m, "x", "1")
	assert.Equal(t, "1", m["x"])
	AddChild(m, "x", map[string]any{"k": "v"})
	AddChild(m, "x", "3")
	assert.Equal(t, []any{"1", map[string]any{"k": "v"}, "3"}, m["x"])
}

func TestFlattenCharsetDeclaration(t *testing.T) {
	input := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><r><n>caf\xe9</n></r>"
	doc, err := FlattenBytes([]byte(input), "latin1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": "café"}, doc.Value)
}

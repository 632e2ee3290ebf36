package xmlflat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testIssue struct {
	Type string `json:"type"`
	Host Text   `json:"host"`
}

type testReport struct {
	Version string          `json:"burpVersion"`
	Issues  Many[testIssue] `json:"issue"`
	Tags    Many[Text]      `json:"tag"`
}

func TestDecodeSingleAndRepeated(t *testing.T) {
	single := flatten(t, `<issues burpVersion="1"><issue><type>a</type><host ip="1.1.1.1">http://x</host></issue><tag>t</tag></issues>`)
	var one testReport
	require.NoError(t, Decode(single.Value, &one))
	assert.Equal(t, "1", one.Version)
	require.Len(t, one.Issues, 1)
	assert.Equal(t, "a", one.Issues[0].Type)
	assert.Equal(t, Text("http://x"), one.Issues[0].Host)
	assert.Equal(t, Many[Text]{"t"}, one.Tags)

	many := flatten(t, `<issues><issue><type>a</type></issue><issue><type>b</type></issue></issues>`)
	var two testReport
	require.NoError(t, Decode(many.Value, &two))
	require.Len(t, two.Issues, 2)
	assert.Equal(t, "b", two.Issues[1].Type)
	assert.Nil(t, two.Tags)
}

func TestDecodeEmptyContainer(t *testing.T) {
	doc := flatten(t, `<issues><issue></issue></issues>`)
	var report testReport
	require.NoError(t, Decode(doc.Value, &report))
	assert.Empty(t, report.Issues)
}

func TestAccessors(t *testing.T) {
	doc := flatten(t, `<a><b><c k="v">txt</c></b><d>1</d><d>2</d></a>`)

	assert.Equal(t, "txt", String(Get(doc.Value, "b", "c")))
	assert.Equal(t, "v", String(Get(doc.Value, "b", "c", "k")))
	assert.Nil(t, Get(doc.Value, "b", "missing", "deeper"))
	assert.Len(t, List(Get(doc.Value, "d")), 2)
	assert.Len(t, List(Get(doc.Value, "b")), 1)
	assert.Nil(t, List(nil))
	assert.Equal(t, "", String(nil))
}

func TestTextFromJSONScalars(t *testing.T) {
	var v struct {
		Port  Text `json:"port"`
		SSL   Text `json:"ssl"`
		Name  Text `json:"name"`
		Host  Text `json:"host"`
		Items Text `json:"items"`
		Null  Text `json:"null"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"port":8080,"ssl":true,"name":"n","host":{"text":"h","ip":"1"},"items":[1],"null":null}`), &v))
	assert.Equal(t, Text("8080"), v.Port)
	assert.Equal(t, Text("true"), v.SSL)
	assert.Equal(t, Text("n"), v.Name)
	assert.Equal(t, Text("h"), v.Host)
	assert.Equal(t, Text(""), v.Items)
	assert.Equal(t, Text(""), v.Null)
}

package fortify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/hdf-tools/internal/converter"
	"github.com/scan-io-git/hdf-tools/internal/hdf"
	"github.com/scan-io-git/hdf-tools/pkg/shared/errors"
)

const sampleReport = `<?xml version="1.0" encoding="UTF-8"?>
<FVDL xmlns="xmlns://www.fortifysoftware.com/schema/fvdl" version="1.12">
  <CreatedTS date="2020-06-16" time="10:51:14"/>
  <UUID>a7b5e3f2-1111-2222-3333-444455556666</UUID>
  <Vulnerabilities>
    <Vulnerability>
      <ClassInfo>
        <ClassID>CLASS-SQLI</ClassID>
        <DefaultSeverity>4.0</DefaultSeverity>
      </ClassInfo>
      <AnalysisInfo>
        <Unified>
          <Trace>
            <Primary>
              <Entry><NodeRef id="12"/></Entry>
              <Entry>
                <Node isDefault="true">
                  <SourceLocation path="src/db.java" line="42" snippet="SNIP-1"/>
                </Node>
              </Entry>
            </Primary>
          </Trace>
          <Trace>
            <Primary>
              <Entry>
                <Node><SourceLocation path="src/db.java" line="42" snippet="SNIP-1"/></Node>
              </Entry>
            </Primary>
          </Trace>
        </Unified>
      </AnalysisInfo>
    </Vulnerability>
    <Vulnerability>
      <ClassInfo>
        <ClassID>CLASS-SQLI</ClassID>
        <DefaultSeverity>4.0</DefaultSeverity>
      </ClassInfo>
      <AnalysisInfo>
        <Unified>
          <Trace>
            <Primary>
              <Entry><Node><SourceLocation snippet="SNIP-2"/></Node></Entry>
            </Primary>
          </Trace>
        </Unified>
      </AnalysisInfo>
    </Vulnerability>
  </Vulnerabilities>
  <Description contentType="preformatted" classID="CLASS-SQLI">
    <Abstract>SQL Injection</Abstract>
    <Explanation>Constructing a dynamic SQL statement with input from an untrusted source.</Explanation>
    <Recommendations>Use parameterized queries.</Recommendations>
    <References>
      <Reference>
        <Title>CWE ID 89</Title>
        <Author>CWE</Author>
      </Reference>
      <Reference>
        <Title>SI-10 Information Input Validation (P1)</Title>
        <Author>Standards Mapping - NIST Special Publication 800-53 Revision 4</Author>
      </Reference>
    </References>
  </Description>
  <Description contentType="preformatted" classID="CLASS-UNUSED">
    <Abstract>Poor Style</Abstract>
    <Explanation>Unused field.</Explanation>
    <References>
      <Reference><Title>CWE ID 563</Title><Author>CWE</Author></Reference>
    </References>
  </Description>
  <Snippets>
    <Snippet id="SNIP-1">
      <File>src/db.java</File>
      <StartLine>40</StartLine>
      <EndLine>44</EndLine>
      <Text><![CDATA[
  stmt.execute("SELECT * FROM t WHERE id=" + id);
]]></Text>
    </Snippet>
    <Snippet id="SNIP-2">
      <File>src/other.java</File>
      <StartLine>1</StartLine>
      <EndLine>3</EndLine>
      <Text><![CDATA[query(q);]]></Text>
    </Snippet>
  </Snippets>
  <EngineData>
    <EngineVersion>20.1.0.0158</EngineVersion>
  </EngineData>
</FVDL>`

func TestConvert(t *testing.T) {
	targets, err := Convert([]byte(sampleReport), converter.Options{})
	require.NoError(t, err)
	require.Len(t, targets, 1)

	p := targets[0].Report.Profile()
	assert.Equal(t, profileName, p.Name)
	assert.Equal(t, "20.1.0.0158", p.Version)
	assert.Equal(t, "Fortify Static Analyzer Scan of UUID: a7b5e3f2-1111-2222-3333-444455556666", p.Summary)
	require.Len(t, p.Controls, 2)

	sqli := p.Controls[0]
	assert.Equal(t, "CLASS-SQLI", sqli.ID)
	assert.Equal(t, "SQL Injection", sqli.Title)
	assert.Equal(t, 0.8, sqli.Impact)
	assert.Equal(t, []string{"SI-10", "Rev_4"}, sqli.Tags.Nist())
	require.Len(t, sqli.Results, 2, "identical trace entries collapse")
	assert.Equal(t,
		"\nPath: src/db.java\nStartLine: 40, EndLine: 44\nCode:\nstmt.execute(\"SELECT * FROM t WHERE id=\" + id);",
		sqli.Results[0].CodeDesc)
	assert.Equal(t, "2020-06-16 10:51:14", sqli.Results[0].StartTime)
	assert.Contains(t, sqli.Results[1].CodeDesc, "src/other.java")
	require.Len(t, sqli.Descriptions, 1)
	assert.Equal(t, "fix", sqli.Descriptions[0].Label)

	unused := p.Controls[1]
	assert.Equal(t, 0.0, unused.Impact)
	assert.Equal(t, DefaultNistTags, unused.Tags.Nist())
	require.Len(t, unused.Results, 1)
	assert.Equal(t, hdf.StatusSkipped, unused.Results[0].Status)
}

func TestNistID(t *testing.T) {
	tests := []struct {
		name string
		refs []reference
		want string
	}{
		{
			name: "with priority",
			refs: []reference{
				{Title: "CWE ID 89", Author: "CWE"},
				{Title: "SI-10 Information Input Validation (P1)", Author: NistReferenceAuthor},
			},
			want: "SI-10",
		},
		{
			name: "first nist reference wins",
			refs: []reference{
				{Title: "AC-3 Access Enforcement", Author: NistReferenceAuthor},
				{Title: "SI-10 Information Input Validation", Author: NistReferenceAuthor},
			},
			want: "AC-3",
		},
		{
			name: "no control id in title",
			refs: []reference{{Title: "Information Input Validation", Author: NistReferenceAuthor}},
			want: "",
		},
		{name: "no nist reference", refs: []reference{{Title: "SI-10", Author: "OWASP"}}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r rule
			r.References.Reference = tt.refs
			assert.Equal(t, tt.want, r.nistID())
		})
	}
}

func TestConvertErrors(t *testing.T) {
	_, err := Convert([]byte(`<FVDL><UUID>1</UUID>`), converter.Options{})
	assert.ErrorIs(t, err, errors.ErrParse)

	_, err = Convert([]byte(`<issues/>`), converter.Options{})
	assert.ErrorIs(t, err, errors.ErrSchema)

	_, err = Convert([]byte(`<FVDL><UUID>1</UUID></FVDL>`), converter.Options{})
	assert.ErrorIs(t, err, errors.ErrSchema)

	missingSnippet := `<FVDL>
  <Vulnerabilities><Vulnerability>
    <ClassInfo><ClassID>C</ClassID><DefaultSeverity>2</DefaultSeverity></ClassInfo>
    <AnalysisInfo><Unified><Trace><Primary><Entry><Node><SourceLocation snippet="nope"/></Node></Entry></Primary></Trace></Unified></AnalysisInfo>
  </Vulnerability></Vulnerabilities>
  <Description classID="C"><Abstract>a</Abstract></Description>
</FVDL>`
	_, err = Convert([]byte(missingSnippet), converter.Options{})
	assert.ErrorIs(t, err, errors.ErrSchema)
}

package aggregate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/hdf-tools/internal/hdf"
	"github.com/scan-io-git/hdf-tools/internal/lookup"
	"github.com/scan-io-git/hdf-tools/internal/severity"
	"github.com/scan-io-git/hdf-tools/pkg/shared/errors"
)

type testRecord struct {
	id         string
	title      string
	severity   string
	cwe        string
	hosts      []string
	compliance string
	failID     bool
}

type testAdapter struct{}

func (testAdapter) ControlID(r testRecord) (string, error) {
	if r.failID {
		return "", fmt.Errorf("id field is malformed")
	}
	return r.id, nil
}

func (testAdapter) Findings(r testRecord) ([]hdf.Finding, error) {
	var out []hdf.Finding
	for _, h := range r.hosts {
		out = append(out, hdf.Finding{Status: hdf.StatusFailed, CodeDesc: "Host: " + h})
	}
	return out, nil
}

func (testAdapter) Classifiers(r testRecord) []string { return []string{r.cwe} }
func (testAdapter) Severity(r testRecord) string      { return r.severity }

func (testAdapter) Describe(r testRecord) Metadata {
	return Metadata{
		Title: r.title,
		Tags: []Tag{
			{Key: "cweid", Value: r.cwe},
			{Key: "nist", Value: "ignored"},
		},
	}
}

func testOptions(t *testing.T) Options[testRecord] {
	t.Helper()
	table, err := lookup.LoadBundled(lookup.CWENistMapping, lookup.CWEOptions)
	require.NoError(t, err)
	return Options[testRecord]{
		Source:   "test",
		Severity: severity.MustFor(severity.BurpSuite),
		Tags:     lookup.NewResolver([]string{"SA-11", "RA-5", "Rev_4"}, lookup.Source{Table: table}),
	}
}

func TestAggregateSameIDMerges(t *testing.T) {
	records := []testRecord{
		{id: "XSS-1", title: "first", severity: "High", cwe: "79", hosts: []string{"a"}},
		{id: "XSS-1", title: "second", severity: "High", cwe: "79", hosts: []string{"b"}},
	}
	controls, err := Aggregate(records, testAdapter{}, testOptions(t))
	require.NoError(t, err)

	require.Len(t, controls, 1)
	c := controls[0]
	assert.Equal(t, "XSS-1", c.ID)
	assert.Equal(t, "first", c.Title)
	assert.Equal(t, 0.7, c.Impact)
	assert.Equal(t, []string{"SI-10", "Rev_4"}, c.Tags.Nist())
	require.Len(t, c.Results, 2)
	assert.Equal(t, "Host: a", c.Results[0].CodeDesc)
	assert.Equal(t, "Host: b", c.Results[1].CodeDesc)
}

func TestAggregateUniquenessAndConservation(t *testing.T) {
	records := []testRecord{
		{id: "b", severity: "Low", cwe: "20", hosts: []string{"1", "2"}},
		{id: "a", severity: "Medium", cwe: "424242", hosts: []string{"3"}},
		{id: "b", severity: "High", cwe: "89", hosts: []string{"4"}},
		{id: "c", severity: "Information", hosts: nil},
		{id: "a", severity: "Low", hosts: []string{"5", "6", "7"}},
	}
	controls, err := Aggregate(records, testAdapter{}, testOptions(t))
	require.NoError(t, err)

	ids := make([]string, 0, len(controls))
	natural := 0
	for _, c := range controls {
		ids = append(ids, c.ID)
		assert.NotEmpty(t, c.Results, c.ID)
		assert.NotEmpty(t, c.Tags.Nist(), c.ID)
		for _, f := range c.Results {
			if f.Status != hdf.StatusSkipped {
				natural++
			}
		}
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids)
	assert.Equal(t, 7, natural)

	assert.Equal(t, 0.3, controls[0].Impact, "first-seen severity wins")
	assert.Equal(t, []string{"SA-11", "RA-5", "Rev_4"}, controls[1].Tags.Nist())
	assert.Equal(t, []string{"nist", "cweid"}, controls[0].Tags.Keys())
}

func TestAggregateSynthesizesEmptyResult(t *testing.T) {
	const notApplicable = "No AWS resources found to evaluate complaince for this rule"

	opts := testOptions(t)
	opts.Severity = severity.MustFor(severity.AWSConfig)
	opts.EmptyResult = func(r testRecord) hdf.Finding {
		return hdf.Finding{CodeDesc: notApplicable, SkipMessage: notApplicable, RunTime: 9}
	}
	opts.ImpactOverride = func(r testRecord) (float64, bool) {
		return 0, r.compliance == "NOT_APPLICABLE"
	}

	controls, err := Aggregate([]testRecord{
		{id: "s3-bucket-logging-enabled", compliance: "NOT_APPLICABLE"},
		{id: "iam-root-access-key-check", compliance: "COMPLIANT", hosts: []string{"root"}},
	}, testAdapter{}, opts)
	require.NoError(t, err)
	require.Len(t, controls, 2)

	na := controls[0]
	assert.Equal(t, 0.0, na.Impact)
	require.Len(t, na.Results, 1)
	assert.Equal(t, hdf.StatusSkipped, na.Results[0].Status)
	assert.Equal(t, 0.0, na.Results[0].RunTime)
	assert.Equal(t, notApplicable, na.Results[0].SkipMessage)

	assert.Equal(t, 0.5, controls[1].Impact)
	assert.Len(t, controls[1].Results, 1)
}

func TestAggregateDefaultEmptyResult(t *testing.T) {
	controls, err := Aggregate([]testRecord{{id: "x", severity: "Low"}}, testAdapter{}, testOptions(t))
	require.NoError(t, err)
	require.Len(t, controls[0].Results, 1)
	assert.Equal(t, DefaultEmptyMessage, controls[0].Results[0].CodeDesc)
	assert.NotNil(t, controls[0].Refs)
	assert.NotNil(t, controls[0].Descriptions)
}

func TestAggregateUniqueFindings(t *testing.T) {
	opts := testOptions(t)
	opts.UniqueFindings = true
	controls, err := Aggregate([]testRecord{
		{id: "x", severity: "Low", hosts: []string{"a", "a", "b"}},
		{id: "x", severity: "Low", hosts: []string{"b", "c"}},
	}, testAdapter{}, opts)
	require.NoError(t, err)
	assert.Len(t, controls[0].Results, 3)
}

func TestAggregateErrors(t *testing.T) {
	t.Run("unknown severity", func(t *testing.T) {
		_, err := Aggregate([]testRecord{
			{id: "ok", severity: "Low"},
			{id: "bad", severity: "Catastrophic"},
		}, testAdapter{}, testOptions(t))
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrMappingGap)
		assert.Contains(t, err.Error(), "record 1")

		var gap *errors.MappingGapError
		require.ErrorAs(t, err, &gap)
		assert.Equal(t, "bad", gap.Record)
	})

	t.Run("id extraction fails", func(t *testing.T) {
		controls, err := Aggregate([]testRecord{{failID: true}}, testAdapter{}, testOptions(t))
		require.Error(t, err)
		assert.Nil(t, controls)
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := Aggregate([]testRecord{{severity: "Low"}}, testAdapter{}, testOptions(t))
		assert.ErrorIs(t, err, errors.ErrSchema)
	})

	t.Run("no severity mapper", func(t *testing.T) {
		_, err := Aggregate([]testRecord{{id: "x"}}, testAdapter{}, Options[testRecord]{})
		assert.Error(t, err)
	})
}

func TestAggregateProgress(t *testing.T) {
	var calls [][2]int
	opts := testOptions(t)
	opts.Progress = func(done, total int) { calls = append(calls, [2]int{done, total}) }

	_, err := Aggregate([]testRecord{
		{id: "a", severity: "Low"}, {id: "b", severity: "Low"}, {id: "a", severity: "Low"},
	}, testAdapter{}, opts)
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, calls)
}

func TestAggregateNoRecords(t *testing.T) {
	controls, err := Aggregate(nil, testAdapter{}, testOptions(t))
	require.NoError(t, err)
	assert.NotNil(t, controls)
	assert.Empty(t, controls)
}

func TestContentID(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", ContentID(""))
	assert.Equal(t, ContentID("lodash prototype pollution"), ContentID("lodash prototype pollution"))
	assert.NotEqual(t, ContentID("a"), ContentID("b"))
	assert.Len(t, ContentID("anything"), 32)
}

func TestDisambiguateIDs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "unique", in: []string{"1", "2"}, want: []string{"1", "2"}},
		{name: "duplicates", in: []string{"10020", "40012", "10020", "10020"}, want: []string{"10020.1", "40012", "10020.2", "10020.3"}},
		{name: "suffix already taken", in: []string{"10020", "10020.1", "10020"}, want: []string{"10020.2", "10020.1", "10020.3"}},
		{name: "generated suffix repeated", in: []string{"a", "a.1", "a.1", "a"}, want: []string{"a.2", "a.1.1", "a.1.2", "a.3"}},
		{name: "empty", in: nil, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DisambiguateIDs(tt.in))
		})
	}
}

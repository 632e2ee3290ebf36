package snyk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/hdf-tools/internal/converter"
	"github.com/scan-io-git/hdf-tools/pkg/shared/errors"
)

const policy = "# Snyk (https://snyk.io) policy file, patches or ignores.\nversion: v1.14.1\nignore: {}\n"

const singleProject = `{
  "ok": false,
  "policy": "# Snyk (https://snyk.io) policy file, patches or ignores.\nversion: v1.14.1\nignore: {}\n",
  "projectName": "goof",
  "summary": "3 vulnerable dependency paths",
  "vulnerabilities": [
    {
      "id": "SNYK-JS-LODASH-567746",
      "title": "Prototype Pollution",
      "description": "## Overview\nlodash is vulnerable",
      "severity": "high",
      "from": ["goof@1.0.1", "lodash@4.17.4"],
      "identifiers": {"CVE": ["CVE-2020-8203"], "CWE": ["CWE-400"], "GHSA": ["GHSA-p6mc-m468-83gw"], "NSP": [1523]}
    },
    {
      "id": "SNYK-JS-LODASH-567746",
      "title": "Prototype Pollution",
      "severity": "high",
      "from": ["goof@1.0.1", "express-fileupload@0.0.5", "lodash@4.17.4"],
      "identifiers": {"CWE": ["CWE-400"]}
    },
    {
      "id": "npm:marked:20170907",
      "title": "Cross-site Scripting (XSS)",
      "severity": "critical",
      "from": ["goof@1.0.1", "marked@0.3.5"],
      "identifiers": {"CWE": ["CWE-79"], "CVE": []}
    }
  ]
}`

func TestConvertSingleProject(t *testing.T) {
	targets, err := Convert([]byte(singleProject), converter.Options{})
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "goof", targets[0].ID)

	p := targets[0].Report.Profile()
	assert.Equal(t, "1.14.1", p.Version)
	assert.Equal(t, "Snyk Project: goof", p.Title)
	assert.Equal(t, "Snyk Summary: 3 vulnerable dependency paths", p.Summary)
	require.Len(t, p.Controls, 2)

	lodash := p.Controls[0]
	assert.Equal(t, 0.7, lodash.Impact)
	assert.Equal(t, []string{"SC-5"}, lodash.Tags.Nist())
	require.Len(t, lodash.Results, 2)
	assert.Equal(t, "From : [ goof@1.0.1 , lodash@4.17.4 ]", lodash.Results[0].CodeDesc)
	cve, _ := lodash.Tags.Get("cveid")
	assert.Equal(t, []string{"2020-8203"}, cve)
	ghsa, _ := lodash.Tags.Get("ghsaid")
	assert.Equal(t, []string{"p6mc-m468-83gw"}, ghsa)

	marked := p.Controls[1]
	assert.Equal(t, 0.9, marked.Impact)
	assert.Equal(t, []string{"SI-10"}, marked.Tags.Nist(), "snyk tags carry no revision")
}

func TestConvertMultiProject(t *testing.T) {
	input := `[
  {"policy": "", "projectName": "api", "summary": "ok", "vulnerabilities": []},
  {"policy": "version: v1.2.3", "projectName": "web", "summary": "1 issue",
   "vulnerabilities": [{"id": "X", "severity": "low", "from": ["web"], "identifiers": {}}]}
]`
	targets, err := Convert([]byte(input), converter.Options{})
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "api", targets[0].ID)
	assert.Empty(t, targets[0].Report.Profile().Controls)
	assert.Equal(t, "web", targets[1].ID)
	assert.Equal(t, "1.2.3", targets[1].Report.Profile().Version)
}

func TestPolicyVersion(t *testing.T) {
	assert.Equal(t, "1.14.1", policyVersion(policy))
	assert.Equal(t, "", policyVersion("no version"))
}

func TestConvertErrors(t *testing.T) {
	_, err := Convert([]byte(`not json`), converter.Options{})
	assert.ErrorIs(t, err, errors.ErrParse)

	_, err = Convert([]byte(`{"projectName": "x"}`), converter.Options{})
	assert.ErrorIs(t, err, errors.ErrSchema)

	_, err = Convert([]byte(`{"vulnerabilities": [{"id": "a", "severity": "urgent"}]}`), converter.Options{})
	assert.ErrorIs(t, err, errors.ErrMappingGap)
}

// Package snyk converts Snyk CLI JSON output, single or multi project.
// Every project becomes its own report.
package snyk

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/scan-io-git/hdf-tools/internal/aggregate"
	"github.com/scan-io-git/hdf-tools/internal/converter"
	"github.com/scan-io-git/hdf-tools/internal/hdf"
	"github.com/scan-io-git/hdf-tools/internal/lookup"
	"github.com/scan-io-git/hdf-tools/internal/severity"
	"github.com/scan-io-git/hdf-tools/internal/xmlflat"
	"github.com/scan-io-git/hdf-tools/pkg/shared/errors"
)

const Name = "snyk"

// DefaultNistTags are used when no CWE of a vulnerability maps.
var DefaultNistTags = []string{"SA-11", "RA-5"}

var versionRegex = regexp.MustCompile(`(?i)v(\d+.)(\d+.)(\d+)`)

type project struct {
	Policy          string          `json:"policy"`
	ProjectName     string          `json:"projectName"`
	Summary         string          `json:"summary"`
	Vulnerabilities []vulnerability `json:"vulnerabilities"`
}

type vulnerability struct {
	ID          string                    `json:"id"`
	Title       string                    `json:"title"`
	Description string                    `json:"description"`
	Severity    string                    `json:"severity"`
	From        []string                  `json:"from"`
	Identifiers map[string][]xmlflat.Text `json:"identifiers"`
}

// identifiers returns the ids of kind ref with their "REF-" prefix removed.
func (v vulnerability) identifiers(ref string) []string {
	out := []string{}
	for _, id := range v.Identifiers[ref] {
		if _, rest, ok := strings.Cut(string(id), ref+"-"); ok {
			out = append(out, rest)
		}
	}
	return out
}

type adapter struct{}

func (adapter) ControlID(v vulnerability) (string, error) {
	if v.ID == "" {
		return "", errors.NewSchemaError(Name, v.Title, "id")
	}
	return v.ID, nil
}

func (adapter) Findings(v vulnerability) ([]hdf.Finding, error) {
	return []hdf.Finding{{
		Status:   hdf.StatusFailed,
		CodeDesc: fmt.Sprintf("From : [ %s ]", strings.Join(v.From, " , ")),
	}}, nil
}

func (adapter) Classifiers(v vulnerability) []string { return v.identifiers("CWE") }
func (adapter) Severity(v vulnerability) string      { return v.Severity }

func (adapter) Describe(v vulnerability) aggregate.Metadata {
	return aggregate.Metadata{
		Title: v.Title,
		Desc:  v.Description,
		Tags: []aggregate.Tag{
			{Key: "cweid", Value: v.identifiers("CWE")},
			{Key: "cveid", Value: v.identifiers("CVE")},
			{Key: "ghsaid", Value: v.identifiers("GHSA")},
		},
	}
}

// policyVersion extracts the "X.Y.Z" policy file version from the policy header.
func policyVersion(policy string) string {
	var b strings.Builder
	for _, m := range versionRegex.FindAllStringSubmatch(policy, -1) {
		b.WriteString(strings.Join(m[1:], ""))
	}
	return b.String()
}

// Convert converts a Snyk JSON report into one target per project.
func Convert(data []byte, opts converter.Options) ([]converter.Target, error) {
	var projects xmlflat.Many[project]
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, errors.NewParseError(Name, err)
	}

	table, err := opts.Table(lookup.CWENistMapping, lookup.WithoutRevision(lookup.CWEOptions))
	if err != nil {
		return nil, err
	}
	resolver := lookup.NewResolver(opts.DefaultTags(DefaultNistTags), lookup.Source{Table: table})

	targets := make([]converter.Target, 0, len(projects))
	for _, p := range projects {
		if p.Vulnerabilities == nil {
			return nil, errors.NewSchemaError(Name, p.ProjectName, "vulnerabilities")
		}
		opts.Log().Debug("converting snyk project", "project", p.ProjectName, "vulnerabilities", len(p.Vulnerabilities))

		controls, err := aggregate.Aggregate(p.Vulnerabilities, adapter{}, aggregate.Options[vulnerability]{
			Source:   Name + " project " + p.ProjectName,
			Severity: severity.MustFor(severity.Snyk),
			Tags:     resolver,
			Progress: opts.Progress,
		})
		if err != nil {
			return nil, err
		}

		out, err := hdf.Assemble(hdf.ProfileMeta{
			Name:    p.Policy,
			Version: policyVersion(p.Policy),
			Title:   "Snyk Project: " + p.ProjectName,
			Summary: "Snyk Summary: " + p.Summary,
		}, controls)
		if err != nil {
			return nil, err
		}
		targets = append(targets, converter.Target{ID: p.ProjectName, Report: out})
	}
	return targets, nil
}

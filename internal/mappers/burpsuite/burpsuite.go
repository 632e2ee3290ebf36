// Package burpsuite converts Burp Suite Pro XML issue exports.
package burpsuite

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/scan-io-git/hdf-tools/internal/aggregate"
	"github.com/scan-io-git/hdf-tools/internal/converter"
	"github.com/scan-io-git/hdf-tools/internal/hdf"
	"github.com/scan-io-git/hdf-tools/internal/lookup"
	"github.com/scan-io-git/hdf-tools/internal/severity"
	"github.com/scan-io-git/hdf-tools/internal/textutil"
	"github.com/scan-io-git/hdf-tools/internal/xmlflat"
	"github.com/scan-io-git/hdf-tools/pkg/shared/errors"
)

const (
	Name        = "burpsuite"
	profileName = "BurpSuite Pro Scan"
)

// DefaultNistTags are used when no CWE of an issue maps.
var DefaultNistTags = []string{"SA-11", "RA-5", "Rev_4"}

var cweRegex = regexp.MustCompile(`(?i)CWE-(\d*):`)

type report struct {
	Version    string              `json:"burpVersion"`
	ExportTime string              `json:"exportTime"`
	Issues     xmlflat.Many[issue] `json:"issue"`
}

type issue struct {
	Type                         string        `json:"type"`
	Name                         xmlflat.Text  `json:"name"`
	Host                         xmlflat.Node  `json:"host"`
	Location                     xmlflat.Text  `json:"location"`
	Severity                     string        `json:"severity"`
	Confidence                   string        `json:"confidence"`
	IssueBackground              xmlflat.Text  `json:"issueBackground"`
	RemediationBackground        xmlflat.Text  `json:"remediationBackground"`
	IssueDetail                  *xmlflat.Text `json:"issueDetail"`
	VulnerabilityClassifications xmlflat.Text  `json:"vulnerabilityClassifications"`
}

func parseHTML(t xmlflat.Text) string {
	return strings.TrimSpace(textutil.HTMLToText(string(t)))
}

type adapter struct {
	timestamp string
}

func (a adapter) ControlID(i issue) (string, error) {
	if i.Type == "" {
		return "", errors.NewSchemaError(Name, parseHTML(i.Name), "type")
	}
	return i.Type, nil
}

func (a adapter) Findings(i issue) ([]hdf.Finding, error) {
	var desc strings.Builder
	fmt.Fprintf(&desc, "Host: ip: %s, url: %s\n", xmlflat.String(xmlflat.Get(i.Host, "ip")), xmlflat.String(i.Host))
	fmt.Fprintf(&desc, "Location: %s\n", parseHTML(i.Location))
	if i.IssueDetail != nil {
		fmt.Fprintf(&desc, "issueDetail: %s\n", parseHTML(*i.IssueDetail))
	}
	if i.Confidence != "" {
		fmt.Fprintf(&desc, "confidence: %s\n", i.Confidence)
	}
	return []hdf.Finding{{
		Status:    hdf.StatusFailed,
		CodeDesc:  desc.String(),
		StartTime: a.timestamp,
	}}, nil
}

// Classifiers returns the CWE ids listed in the vulnerability classifications.
func (a adapter) Classifiers(i issue) []string {
	var ids []string
	for _, m := range cweRegex.FindAllStringSubmatch(parseHTML(i.VulnerabilityClassifications), -1) {
		ids = append(ids, m[1])
	}
	return ids
}

func (a adapter) Severity(i issue) string { return i.Severity }

func (a adapter) Describe(i issue) aggregate.Metadata {
	background := parseHTML(i.IssueBackground)
	return aggregate.Metadata{
		Title: parseHTML(i.Name),
		Desc:  background,
		Descriptions: []hdf.Description{
			{Label: "check", Data: background},
			{Label: "fix", Data: parseHTML(i.RemediationBackground)},
		},
		Tags: []aggregate.Tag{
			{Key: "cweid", Value: parseHTML(i.VulnerabilityClassifications)},
			{Key: "confidence", Value: i.Confidence},
		},
	}
}

// Convert converts a Burp Suite XML export.
func Convert(data []byte, opts converter.Options) ([]converter.Target, error) {
	doc, err := xmlflat.FlattenBytes(data, Name)
	if err != nil {
		return nil, err
	}
	if doc.Root != "issues" {
		return nil, errors.NewSchemaError(Name, "", "issues")
	}
	var r report
	if err := xmlflat.Decode(doc.Value, &r); err != nil {
		return nil, errors.NewParseError(Name, err)
	}

	table, err := opts.Table(lookup.CWENistMapping, lookup.CWEOptions)
	if err != nil {
		return nil, err
	}
	opts.Log().Debug("parsed burpsuite report", "version", r.Version, "issues", len(r.Issues))

	controls, err := aggregate.Aggregate([]issue(r.Issues), adapter{timestamp: r.ExportTime}, aggregate.Options[issue]{
		Source:   Name,
		Severity: severity.MustFor(severity.BurpSuite),
		Tags:     lookup.NewResolver(opts.DefaultTags(DefaultNistTags), lookup.Source{Table: table}),
		Progress: opts.Progress,
	})
	if err != nil {
		return nil, err
	}

	out, err := hdf.Assemble(hdf.ProfileMeta{
		Name:    profileName,
		Version: r.Version,
		Title:   profileName,
		Summary: profileName,
	}, controls)
	if err != nil {
		return nil, err
	}
	return converter.Single(out), nil
}

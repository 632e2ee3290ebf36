// Package zap converts OWASP ZAP JSON reports.
package zap

import (
	"bytes"
	"encoding/json"
	"fmt"
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
	Name        = "zap"
	profileName = "OWASP ZAP Scan"
)

// DefaultNistTags are used when the CWE of an alert does not map.
var DefaultNistTags = []string{"SA-11", "RA-5", "Rev_4"}

type report struct {
	Version   string             `json:"@version"`
	Generated string             `json:"@generated"`
	Sites     xmlflat.Many[site] `json:"site"`
}

type site struct {
	Name   string  `json:"@name"`
	Host   string  `json:"@host"`
	Port   string  `json:"@port"`
	SSL    string  `json:"@ssl"`
	Alerts []alert `json:"alerts"`
}

type alert struct {
	PluginID   string            `json:"pluginid"`
	Name       string            `json:"name"`
	Alert      string            `json:"alert"`
	RiskCode   string            `json:"riskcode"`
	Confidence string            `json:"confidence"`
	RiskDesc   string            `json:"riskdesc"`
	Desc       string            `json:"desc"`
	Solution   string            `json:"solution"`
	OtherInfo  string            `json:"otherinfo"`
	Reference  string            `json:"reference"`
	CWEID      string            `json:"cweid"`
	WASCID     string            `json:"wascid"`
	SourceID   string            `json:"sourceid"`
	Instances  []json.RawMessage `json:"instances"`
}

// record is an alert with its id already disambiguated against the other alerts of the site.
type record struct {
	id    string
	alert alert
}

type adapter struct {
	timestamp string
}

func (a adapter) ControlID(r record) (string, error) {
	if r.id == "" {
		return "", errors.NewSchemaError(Name, r.alert.Name, "pluginid")
	}
	return r.id, nil
}

func (a adapter) Findings(r record) ([]hdf.Finding, error) {
	findings := make([]hdf.Finding, 0, len(r.alert.Instances))
	for _, raw := range r.alert.Instances {
		desc, err := codeDesc(raw)
		if err != nil {
			return nil, fmt.Errorf("alert %s: %w", r.id, err)
		}
		findings = append(findings, hdf.Finding{
			Status:    hdf.StatusFailed,
			CodeDesc:  desc,
			StartTime: a.timestamp,
		})
	}
	return findings, nil
}

func (a adapter) Classifiers(r record) []string { return []string{r.alert.CWEID} }
func (a adapter) Severity(r record) string      { return r.alert.RiskCode }

func (a adapter) Describe(r record) aggregate.Metadata {
	al := r.alert
	title := al.Name
	if title == "" {
		title = al.Alert
	}
	return aggregate.Metadata{
		Title: title,
		Desc:  textutil.HTMLToText(al.Desc),
		Tags: []aggregate.Tag{
			{Key: "cweid", Value: al.CWEID},
			{Key: "wascid", Value: al.WASCID},
			{Key: "sourceid", Value: al.SourceID},
			{Key: "confidence", Value: al.Confidence},
			{Key: "riskdesc", Value: al.RiskDesc},
			{Key: "check", Value: strings.Join([]string{al.Solution, al.OtherInfo, al.Reference}, "\n")},
		},
	}
}

// codeDesc renders every field of an instance as "Key: value" lines in document order.
func codeDesc(raw json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return "", fmt.Errorf("instance is not an object")
	}

	var b strings.Builder
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		key, _ := tok.(string)
		var value any
		if err := dec.Decode(&value); err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "%s: %s\n", capitalize(key), render(value))
	}
	return b.String(), nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func render(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		data, _ := json.Marshal(t)
		return string(data)
	}
}

func selectSite(sites []site, name string) (site, error) {
	if name == "" {
		return site{}, fmt.Errorf("a site name is required to select one of %d sites: %w", len(sites), errors.ErrSchema)
	}
	for _, s := range sites {
		if s.Name == name {
			return s, nil
		}
	}
	return site{}, fmt.Errorf("specified site name %q is not defined in the report: %w", name, errors.ErrSchema)
}

// Convert converts a ZAP JSON report. opts.Name selects the site and must match one.
func Convert(data []byte, opts converter.Options) ([]converter.Target, error) {
	var r report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.NewParseError(Name, err)
	}
	s, err := selectSite(r.Sites, opts.Name)
	if err != nil {
		return nil, err
	}
	opts.Log().Debug("selected zap site", "name", s.Name, "host", s.Host, "alerts", len(s.Alerts))

	table, err := opts.Table(lookup.CWENistMapping, lookup.CWEOptions)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(s.Alerts))
	for i, al := range s.Alerts {
		ids[i] = al.PluginID
	}
	ids = aggregate.DisambiguateIDs(ids)
	records := make([]record, len(s.Alerts))
	for i, al := range s.Alerts {
		records[i] = record{id: ids[i], alert: al}
	}

	controls, err := aggregate.Aggregate(records, adapter{timestamp: r.Generated}, aggregate.Options[record]{
		Source:         Name,
		Severity:       severity.MustFor(severity.ZAP),
		Tags:           lookup.NewResolver(opts.DefaultTags(DefaultNistTags), lookup.Source{Table: table}),
		UniqueFindings: true,
		Progress:       opts.Progress,
	})
	if err != nil {
		return nil, err
	}

	title := "OWASP ZAP Scan of Host: " + s.Host
	out, err := hdf.Assemble(hdf.ProfileMeta{
		Name:    profileName,
		Version: r.Version,
		Title:   title,
		Summary: title,
	}, controls)
	if err != nil {
		return nil, err
	}
	return converter.Single(out), nil
}

// Package xray converts JFrog Xray violation exports.
package xray

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/scan-io-git/hdf-tools/internal/aggregate"
	"github.com/scan-io-git/hdf-tools/internal/converter"
	"github.com/scan-io-git/hdf-tools/internal/hdf"
	"github.com/scan-io-git/hdf-tools/internal/lookup"
	"github.com/scan-io-git/hdf-tools/internal/severity"
	"github.com/scan-io-git/hdf-tools/pkg/shared/errors"
)

const (
	Name        = "xray"
	profileName = "JFrog Xray Scan"
	summary     = "Continuous Security and Universal Artifact Analysis"
)

// DefaultNistTags are used when no CWE of a vulnerability maps.
var DefaultNistTags = []string{"SA-11", "RA-5"}

type report struct {
	TotalRows int               `json:"total_rows"`
	Data      []json.RawMessage `json:"data"`
}

type vulnerability struct {
	ID                string            `json:"id"`
	Summary           string            `json:"summary"`
	Severity          string            `json:"severity"`
	IssueType         string            `json:"issue_type"`
	Provider          string            `json:"provider"`
	SourceCompID      string            `json:"source_comp_id"`
	ComponentVersions componentVersions `json:"component_versions"`
}

type componentVersions struct {
	VulnerableVersions any         `json:"vulnerable_versions"`
	FixedVersions      any         `json:"fixed_versions"`
	MoreDetails        moreDetails `json:"more_details"`
}

type moreDetails struct {
	Description string `json:"description"`
	CVEs        []struct {
		CVE string   `json:"cve"`
		CWE []string `json:"cwe"`
	} `json:"cves"`
}

func (v vulnerability) cweIDs() []string {
	out := []string{}
	if len(v.ComponentVersions.MoreDetails.CVEs) == 0 {
		return out
	}
	for _, id := range v.ComponentVersions.MoreDetails.CVEs[0].CWE {
		if _, rest, ok := strings.Cut(id, "CWE-"); ok {
			out = append(out, rest)
		}
	}
	return out
}

// inspect renders a decoded JSON value the way it appears in the report, without HTML escaping.
func inspect(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimSpace(buf.String())
}

type adapter struct{}

// ControlID falls back to a digest of the summary; Xray leaves ids empty for some issue types.
func (adapter) ControlID(v vulnerability) (string, error) {
	if v.ID != "" {
		return v.ID, nil
	}
	return aggregate.ContentID(v.Summary), nil
}

func (adapter) Findings(v vulnerability) ([]hdf.Finding, error) {
	lines := []string{
		"source_comp_id : " + v.SourceCompID,
		"vulnerable_versions : " + inspect(v.ComponentVersions.VulnerableVersions),
		"fixed_versions : " + inspect(v.ComponentVersions.FixedVersions),
		"issue_type : " + v.IssueType,
		"provider : " + v.Provider,
	}
	return []hdf.Finding{{
		Status:   hdf.StatusFailed,
		CodeDesc: strings.Join(lines, "\n"),
	}}, nil
}

func (adapter) Classifiers(v vulnerability) []string { return v.cweIDs() }
func (adapter) Severity(v vulnerability) string      { return v.Severity }

func (adapter) Describe(v vulnerability) aggregate.Metadata {
	return aggregate.Metadata{
		Title: v.Summary,
		Desc:  v.ComponentVersions.MoreDetails.Description,
		Tags:  []aggregate.Tag{{Key: "cweid", Value: v.cweIDs()}},
	}
}

// decodeUnique decodes the data rows, dropping rows identical to an earlier one.
func decodeUnique(rows []json.RawMessage) ([]vulnerability, error) {
	seen := make(map[string]struct{}, len(rows))
	out := make([]vulnerability, 0, len(rows))
	for _, raw := range rows {
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return nil, err
		}
		// re-encoding sorts object keys, so rows differing only in key order collapse
		canonical, err := json.Marshal(generic)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[string(canonical)]; dup {
			continue
		}
		seen[string(canonical)] = struct{}{}

		var v vulnerability
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Convert converts a JFrog Xray JSON export.
func Convert(data []byte, opts converter.Options) ([]converter.Target, error) {
	var r report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.NewParseError(Name, err)
	}
	if r.Data == nil {
		return nil, errors.NewSchemaError(Name, "", "data")
	}
	vulns, err := decodeUnique(r.Data)
	if err != nil {
		return nil, errors.NewParseError(Name, err)
	}
	opts.Log().Debug("parsed xray export", "rows", len(r.Data), "unique", len(vulns))

	table, err := opts.Table(lookup.CWENistMapping, lookup.WithoutRevision(lookup.CWEOptions))
	if err != nil {
		return nil, err
	}

	controls, err := aggregate.Aggregate(vulns, adapter{}, aggregate.Options[vulnerability]{
		Source:   Name,
		Severity: severity.MustFor(severity.Xray),
		Tags:     lookup.NewResolver(opts.DefaultTags(DefaultNistTags), lookup.Source{Table: table}),
		Progress: opts.Progress,
	})
	if err != nil {
		return nil, err
	}

	out, err := hdf.Assemble(hdf.ProfileMeta{
		Name:    profileName,
		Title:   profileName,
		Summary: summary,
	}, controls)
	if err != nil {
		return nil, err
	}
	return converter.Single(out), nil
}

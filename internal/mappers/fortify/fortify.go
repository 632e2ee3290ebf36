// Package fortify converts Fortify Static Code Analyzer FVDL reports.
//
// Controls are driven by the rule descriptions of the report, so a rule without
// vulnerabilities still produces a control with a skipped result.
package fortify

import (
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

const (
	Name        = "fortify"
	profileName = "Fortify Static Analyzer Scan"
	rootElement = "FVDL"

	// NistReferenceAuthor marks the rule reference holding the NIST 800-53 control.
	NistReferenceAuthor = "Standards Mapping - NIST Special Publication 800-53 Revision 4"
	revision            = "Rev_4"
)

// DefaultNistTags are used for rules without a NIST reference.
var DefaultNistTags = []string{lookup.Unmapped, revision}

var nistRegex = regexp.MustCompile(`[a-zA-Z][a-zA-Z]-\d{1,2}`)

type document struct {
	UUID      xmlflat.Text `json:"UUID"`
	CreatedTS struct {
		Date string `json:"date"`
		Time string `json:"time"`
	} `json:"CreatedTS"`
	EngineData struct {
		EngineVersion xmlflat.Text `json:"EngineVersion"`
	} `json:"EngineData"`
	Vulnerabilities struct {
		Vulnerability xmlflat.Many[vulnerability] `json:"Vulnerability"`
	} `json:"Vulnerabilities"`
	Snippets struct {
		Snippet xmlflat.Many[snippet] `json:"Snippet"`
	} `json:"Snippets"`
	Description xmlflat.Many[rule] `json:"Description"`
}

type vulnerability struct {
	ClassInfo struct {
		ClassID         xmlflat.Text `json:"ClassID"`
		DefaultSeverity xmlflat.Text `json:"DefaultSeverity"`
	} `json:"ClassInfo"`
	AnalysisInfo struct {
		Unified struct {
			Trace xmlflat.Many[trace] `json:"Trace"`
		} `json:"Unified"`
	} `json:"AnalysisInfo"`
}

type trace struct {
	Primary struct {
		Entry xmlflat.Many[entry] `json:"Entry"`
	} `json:"Primary"`
}

type entry struct {
	Node *struct {
		SourceLocation *struct {
			Snippet string `json:"snippet"`
		} `json:"SourceLocation"`
	} `json:"Node"`
}

func (e entry) snippetID() string {
	if e.Node == nil || e.Node.SourceLocation == nil {
		return ""
	}
	return e.Node.SourceLocation.Snippet
}

type snippet struct {
	ID        string       `json:"id"`
	File      xmlflat.Text `json:"File"`
	StartLine xmlflat.Text `json:"StartLine"`
	EndLine   xmlflat.Text `json:"EndLine"`
	Text      xmlflat.Text `json:"Text"`
}

type reference struct {
	Title  xmlflat.Text `json:"Title"`
	Author xmlflat.Text `json:"Author"`
}

type rule struct {
	ClassID         string       `json:"classID"`
	Abstract        xmlflat.Text `json:"Abstract"`
	Explanation     xmlflat.Text `json:"Explanation"`
	Recommendations xmlflat.Text `json:"Recommendations"`
	References      struct {
		Reference xmlflat.Many[reference] `json:"Reference"`
	} `json:"References"`
}

// nistID returns the control id of the NIST reference, or "" when the rule has none.
func (r rule) nistID() string {
	for _, ref := range r.References.Reference {
		if string(ref.Author) == NistReferenceAuthor {
			return nistRegex.FindString(string(ref.Title))
		}
	}
	return ""
}

type adapter struct {
	timestamp string
	byClass   map[string][]vulnerability
	snippets  map[string]snippet
}

func newAdapter(d document) adapter {
	a := adapter{
		timestamp: strings.TrimSpace(d.CreatedTS.Date + " " + d.CreatedTS.Time),
		byClass:   make(map[string][]vulnerability),
		snippets:  make(map[string]snippet, len(d.Snippets.Snippet)),
	}
	for _, v := range d.Vulnerabilities.Vulnerability {
		id := string(v.ClassInfo.ClassID)
		a.byClass[id] = append(a.byClass[id], v)
	}
	for _, s := range d.Snippets.Snippet {
		a.snippets[s.ID] = s
	}
	return a
}

func (a adapter) ControlID(r rule) (string, error) {
	if r.ClassID == "" {
		return "", errors.NewSchemaError(Name, string(r.Abstract), "classID")
	}
	return r.ClassID, nil
}

// Findings returns one failed result per primary trace entry of every vulnerability of the rule.
func (a adapter) Findings(r rule) ([]hdf.Finding, error) {
	var findings []hdf.Finding
	for _, v := range a.byClass[r.ClassID] {
		for _, t := range v.AnalysisInfo.Unified.Trace {
			for _, e := range t.Primary.Entry {
				id := e.snippetID()
				if id == "" {
					continue
				}
				s, ok := a.snippets[id]
				if !ok {
					return nil, errors.NewSchemaError(Name, r.ClassID, "Snippet "+id)
				}
				findings = append(findings, hdf.Finding{
					Status: hdf.StatusFailed,
					CodeDesc: fmt.Sprintf("\nPath: %s\nStartLine: %s, EndLine: %s\nCode:\n%s",
						s.File, s.StartLine, s.EndLine, strings.TrimSpace(string(s.Text))),
					StartTime: a.timestamp,
				})
			}
		}
	}
	return findings, nil
}

func (a adapter) Classifiers(r rule) []string {
	if id := r.nistID(); id != "" {
		return []string{id}
	}
	return nil
}

// Severity uses the default severity of the first vulnerability of the rule.
func (a adapter) Severity(r rule) string {
	if vulns := a.byClass[r.ClassID]; len(vulns) > 0 {
		return string(vulns[0].ClassInfo.DefaultSeverity)
	}
	return "0"
}

func (a adapter) Describe(r rule) aggregate.Metadata {
	m := aggregate.Metadata{
		Title: string(r.Abstract),
		Desc:  string(r.Explanation),
	}
	if r.Recommendations != "" {
		m.Descriptions = []hdf.Description{{Label: "fix", Data: string(r.Recommendations)}}
	}
	return m
}

// Convert converts a Fortify FVDL document.
func Convert(data []byte, opts converter.Options) ([]converter.Target, error) {
	doc, err := xmlflat.FlattenBytes(data, Name)
	if err != nil {
		return nil, err
	}
	if doc.Root != rootElement {
		return nil, errors.NewSchemaError(Name, "", rootElement)
	}
	var d document
	if err := xmlflat.Decode(doc.Value, &d); err != nil {
		return nil, errors.NewParseError(Name, err)
	}
	if d.Description == nil {
		return nil, errors.NewSchemaError(Name, string(d.UUID), "Description")
	}
	opts.Log().Debug("parsed fortify report",
		"rules", len(d.Description),
		"vulnerabilities", len(d.Vulnerabilities.Vulnerability),
		"snippets", len(d.Snippets.Snippet))

	controls, err := aggregate.Aggregate([]rule(d.Description), newAdapter(d), aggregate.Options[rule]{
		Source:   Name,
		Severity: severity.MustFor(severity.Fortify),
		Tags: lookup.Static{
			Suffix:   []string{revision},
			Defaults: opts.DefaultTags(DefaultNistTags),
		},
		UniqueFindings: true,
		Progress:       opts.Progress,
	})
	if err != nil {
		return nil, err
	}

	out, err := hdf.Assemble(hdf.ProfileMeta{
		Name:    profileName,
		Version: string(d.EngineData.EngineVersion),
		Title:   profileName,
		Summary: "Fortify Static Analyzer Scan of UUID: " + string(d.UUID),
	}, controls)
	if err != nil {
		return nil, err
	}
	return converter.Single(out), nil
}

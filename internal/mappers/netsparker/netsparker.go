// Package netsparker converts Netsparker Enterprise XML vulnerability reports.
package netsparker

import (
	"fmt"
	"sort"
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
	Name        = "netsparker"
	profileName = "Netsparker Enterprise Scan"
	rootElement = "netsparker-enterprise"

	// lineBreak joins the sections of the HTML descriptions.
	lineBreak = "<br>"

	cwePrefix   = "cwe:"
	owaspPrefix = "owasp:"
)

// DefaultNistTags are used when neither the CWE nor the OWASP classification maps.
var DefaultNistTags = []string{"SA-11", "RA-5", "Rev_4"}

type document struct {
	Target struct {
		ScanID    xmlflat.Text `json:"scan-id"`
		URL       xmlflat.Text `json:"url"`
		Initiated xmlflat.Text `json:"initiated"`
	} `json:"target"`
	Vulnerabilities struct {
		Vulnerability xmlflat.Many[vulnerability] `json:"vulnerability"`
	} `json:"vulnerabilities"`
}

type vulnerability struct {
	LookupID       xmlflat.Text            `json:"LookupId"`
	Name           xmlflat.Text            `json:"name"`
	URL            xmlflat.Text            `json:"url"`
	Type           *xmlflat.Text           `json:"type"`
	Severity       xmlflat.Text            `json:"severity"`
	Certainty      *xmlflat.Text           `json:"certainty"`
	Confirmed      *xmlflat.Text           `json:"confirmed"`
	FirstSeenDate  *xmlflat.Text           `json:"FirstSeenDate"`
	LastSeenDate   *xmlflat.Text           `json:"LastSeenDate"`
	Classification map[string]xmlflat.Text `json:"classification"`
	HTTPRequest    struct {
		Method  xmlflat.Text `json:"method"`
		Content xmlflat.Text `json:"content"`
	} `json:"http-request"`
	HTTPResponse struct {
		StatusCode xmlflat.Text `json:"status-code"`
		Duration   xmlflat.Text `json:"duration"`
		Content    xmlflat.Text `json:"content"`
	} `json:"http-response"`
	Description        *xmlflat.Text `json:"description"`
	Impact             *xmlflat.Text `json:"impact"`
	ExploitationSkills *xmlflat.Text `json:"exploitation-skills"`
	ExtraInformation   xmlflat.Node  `json:"extra-information"`
	ProofOfConcept     *xmlflat.Text `json:"proof-of-concept"`
	RemedialActions    *xmlflat.Text `json:"remedial-actions"`
	RemedialProcedure  *xmlflat.Text `json:"remedial-procedure"`
	RemedyReferences   *xmlflat.Text `json:"remedy-references"`
}

// sections renders the present fields as "label: value" entries joined by <br>.
type sections []string

func (s *sections) add(label string, value *xmlflat.Text) {
	if value == nil {
		return
	}
	text := strings.TrimSpace(string(*value))
	if label == "" {
		*s = append(*s, text)
		return
	}
	*s = append(*s, label+": "+text)
}

func (s sections) String() string { return strings.Join(s, lineBreak) }

// inline renders a flattened node on one line with map keys sorted.
func inline(n xmlflat.Node) string {
	switch v := n.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, inline(item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+inline(v[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprint(v)
	}
}

func (v vulnerability) classification() string {
	if len(v.Classification) == 0 {
		return ""
	}
	m := make(map[string]any, len(v.Classification))
	for k, val := range v.Classification {
		m[k] = string(val)
	}
	return inline(m)
}

// classifiers splits the comma separated classification cells into prefixed lookup keys.
func (v vulnerability) classifiers() []string {
	var out []string
	for _, c := range []struct{ key, prefix string }{{"cwe", cwePrefix}, {"owasp", owaspPrefix}} {
		for _, id := range strings.Split(string(v.Classification[c.key]), ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, c.prefix+id)
			}
		}
	}
	return out
}

type adapter struct {
	initiated string
}

func (a adapter) ControlID(v vulnerability) (string, error) {
	if v.LookupID == "" {
		return "", errors.NewSchemaError(Name, string(v.Name), "LookupId")
	}
	return string(v.LookupID), nil
}

func (a adapter) Findings(v vulnerability) ([]hdf.Finding, error) {
	code := []string{
		"http-request : " + strings.TrimSpace(string(v.HTTPRequest.Content)),
		"method : " + string(v.HTTPRequest.Method),
	}
	message := []string{
		"http-response : " + strings.TrimSpace(string(v.HTTPResponse.Content)),
		"duration : " + string(v.HTTPResponse.Duration),
		"status-code : " + string(v.HTTPResponse.StatusCode),
	}
	return []hdf.Finding{{
		Status:    hdf.StatusFailed,
		CodeDesc:  strings.Join(code, "\n"),
		Message:   strings.Join(message, "\n"),
		StartTime: a.initiated,
	}}, nil
}

func (a adapter) Classifiers(v vulnerability) []string { return v.classifiers() }
func (a adapter) Severity(v vulnerability) string      { return string(v.Severity) }

func (a adapter) Describe(v vulnerability) aggregate.Metadata {
	var desc sections
	desc.add("", v.Description)
	desc.add("Exploitation-skills", v.ExploitationSkills)
	if v.ExtraInformation != nil {
		extra := xmlflat.Text(inline(v.ExtraInformation))
		desc.add("Extra-information", &extra)
	}
	if c := v.classification(); c != "" {
		classification := xmlflat.Text(c)
		desc.add("Classification", &classification)
	}
	desc.add("Impact", v.Impact)
	desc.add("FirstSeenDate", v.FirstSeenDate)
	desc.add("LastSeenDate", v.LastSeenDate)
	desc.add("Certainty", v.Certainty)
	desc.add("Type", v.Type)
	desc.add("Confirmed", v.Confirmed)

	var check sections
	check.add("Exploitation-skills", v.ExploitationSkills)
	check.add("Proof-of-concept", v.ProofOfConcept)

	var fix sections
	fix.add("Remedial-actions", v.RemedialActions)
	fix.add("Remedial-procedure", v.RemedialProcedure)
	fix.add("Remedy-references", v.RemedyReferences)

	return aggregate.Metadata{
		Title: string(v.Name),
		Desc:  desc.String(),
		Descriptions: []hdf.Description{
			{Label: "check", Data: check.String()},
			{Label: "fix", Data: fix.String()},
		},
	}
}

// Convert converts a Netsparker Enterprise XML report.
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
	opts.Log().Debug("parsed netsparker report", "scan", string(d.Target.ScanID), "vulnerabilities", len(d.Vulnerabilities.Vulnerability))

	cwe, err := opts.Table(lookup.CWENistMapping, lookup.CWEOptions)
	if err != nil {
		return nil, err
	}
	owasp, err := opts.OWASPTable()
	if err != nil {
		return nil, err
	}
	resolver := lookup.NewResolver(opts.DefaultTags(DefaultNistTags),
		lookup.Source{Prefix: cwePrefix, Table: cwe},
		lookup.Source{Prefix: owaspPrefix, Table: owasp},
	)

	controls, err := aggregate.Aggregate([]vulnerability(d.Vulnerabilities.Vulnerability),
		adapter{initiated: string(d.Target.Initiated)},
		aggregate.Options[vulnerability]{
			Source:   Name,
			Severity: severity.MustFor(severity.Netsparker),
			Tags:     resolver,
			Progress: opts.Progress,
		})
	if err != nil {
		return nil, err
	}

	out, err := hdf.Assemble(hdf.ProfileMeta{
		Name:    profileName,
		Title:   fmt.Sprintf("Netsparker Enterprise Scan ID: %s URL: %s", d.Target.ScanID, d.Target.URL),
		Summary: profileName,
	}, controls)
	if err != nil {
		return nil, err
	}
	return converter.Single(out), nil
}

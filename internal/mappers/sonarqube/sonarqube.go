// Package sonarqube builds HDF reports from the vulnerabilities a SonarQube server
// reports for one project.
package sonarqube

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/scan-io-git/hdf-tools/internal/aggregate"
	"github.com/scan-io-git/hdf-tools/internal/converter"
	"github.com/scan-io-git/hdf-tools/internal/hdf"
	"github.com/scan-io-git/hdf-tools/internal/lookup"
	"github.com/scan-io-git/hdf-tools/internal/severity"
	"github.com/scan-io-git/hdf-tools/pkg/shared/errors"
)

const (
	Name        = "sonarqube"
	profileName = "SonarQube Scan"

	// StartTimeLayout formats the time a result was collected.
	StartTimeLayout = "Mon,02 Jan 2006 15:04:05"

	cwePrefix   = "cwe:"
	owaspPrefix = "owasp:"
)

// DefaultNistTags are used when no tag of a rule maps.
var DefaultNistTags = []string{lookup.Unmapped}

// Rules whose descriptions lack the ids their tags promise. Missing ids are not reported for them.
var knownBadRules = map[string]struct{}{
	"squid:S4434": {},
	"squid:S2658": {},
}

var (
	cweRegex  = regexp.MustCompile(`(?i)cwe\.mitre\.org/data/definitions/([^\.]*)`)
	certRegex = regexp.MustCompile(`(?i)CERT,?\n? ([^<]*)\.?<`)
)

// Tag types in order of priority.
const (
	tagCWE   = "cwe"
	tagOWASP = "owasp"
	tagCERT  = "cert"
)

var tagTypes = []string{tagCWE, tagOWASP, tagCERT}

// ruleTags are the ids parsed from a rule per tag type.
type ruleTags map[string][]string

func (r Rule) hasTag(tagType string) bool {
	for _, t := range r.SysTags {
		if strings.HasPrefix(t, tagType) {
			return true
		}
	}
	return false
}

// parseTags extracts CWE and CERT ids from the rule description and OWASP categories from its system tags.
func (r Rule) parseTags() ruleTags {
	out := ruleTags{}
	desc := r.description()
	for _, tagType := range tagTypes {
		if !r.hasTag(tagType) {
			continue
		}
		var ids []string
		switch tagType {
		case tagCWE:
			for _, m := range cweRegex.FindAllStringSubmatch(desc, -1) {
				ids = append(ids, m[1])
			}
		case tagCERT:
			for _, m := range certRegex.FindAllStringSubmatch(desc, -1) {
				ids = append(ids, strings.TrimSuffix(strings.TrimSpace(m[1]), "."))
			}
		case tagOWASP:
			for _, t := range r.SysTags {
				if _, category, ok := strings.Cut(t, "owasp-"); ok {
					ids = append(ids, strings.ToUpper(category))
				}
			}
		}
		out[tagType] = ids
	}
	return out
}

// classifiers lists the lookup keys of a rule, CWE ids first, then OWASP categories.
// CERT ids have no bundled mapping and are only kept as a tag.
func (t ruleTags) classifiers() []string {
	var out []string
	for _, id := range t[tagCWE] {
		out = append(out, cwePrefix+id)
	}
	for _, id := range t[tagOWASP] {
		out = append(out, owaspPrefix+id)
	}
	return out
}

// record is one issue with the rule and source it references.
type record struct {
	issue   Issue
	rule    Rule
	tags    ruleTags
	snippet string
	start   int
	end     int
}

type adapter struct {
	collected string
}

func (a adapter) ControlID(r record) (string, error) {
	if r.issue.Rule == "" {
		return "", errors.NewSchemaError(Name, r.issue.Key, "rule")
	}
	return r.issue.Rule, nil
}

func (a adapter) Findings(r record) ([]hdf.Finding, error) {
	code := "Path:" + r.issue.Component
	if tr := r.issue.TextRange; tr != nil {
		code = fmt.Sprintf("Path:%s:%d:%d StartLine: %d, EndLine: %d<br>Code:<pre>%s</pre>",
			r.issue.Component, tr.StartLine, tr.EndLine, r.start, r.end, r.snippet)
	}
	return []hdf.Finding{{
		Status:    hdf.StatusFailed,
		CodeDesc:  code,
		StartTime: a.collected,
	}}, nil
}

func (a adapter) Classifiers(r record) []string { return r.tags.classifiers() }
func (a adapter) Severity(r record) string      { return r.rule.Severity }

func (a adapter) Describe(r record) aggregate.Metadata {
	m := aggregate.Metadata{
		Title: r.rule.Name,
		Desc:  r.rule.description(),
	}
	for _, tagType := range tagTypes {
		if ids, ok := r.tags[tagType]; ok && len(ids) > 0 {
			m.Tags = append(m.Tags, aggregate.Tag{Key: tagType, Value: ids})
		}
	}
	return m
}

// Source converts the vulnerabilities of a SonarQube project.
type Source struct {
	API *API
	// SnippetContext is the number of source lines shown around an issue.
	SnippetContext int
	// Now stamps the collected results; time.Now when nil.
	Now func() time.Time
}

func (s *Source) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// snippet returns lines start..end (1-based, inclusive) of the cached source of component.
func snippet(lines []string, start, end int) string {
	if start < 1 || end < start || start > len(lines) {
		return ""
	}
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start-1:end], "\n")
}

// collect fetches the rule and code snippet of every issue. Rules and sources are fetched once.
func (s *Source) collect(ctx context.Context, issues []Issue, opts converter.Options) ([]record, error) {
	rules := make(map[string]Rule)
	tags := make(map[string]ruleTags)
	sources := make(map[string][]string)
	log := opts.Log()

	records := make([]record, 0, len(issues))
	for _, is := range issues {
		r, ok := rules[is.Rule]
		if !ok {
			var err error
			if r, err = s.API.Rule(ctx, is.Rule); err != nil {
				return nil, err
			}
			rules[is.Rule] = r
			tags[is.Rule] = r.parseTags()
			if _, bad := knownBadRules[is.Rule]; !bad {
				for tagType, ids := range tags[is.Rule] {
					if len(ids) == 0 {
						log.Warn("rule has a tag but no usable id", "rule", is.Rule, "tag", tagType)
					}
				}
			}
		}

		rec := record{issue: is, rule: r, tags: tags[is.Rule]}
		if tr := is.TextRange; tr != nil {
			lines, ok := sources[is.Component]
			if !ok {
				var err error
				if lines, err = s.API.Source(ctx, is.Component); err != nil {
					return nil, err
				}
				sources[is.Component] = lines
			}
			rec.start = tr.StartLine - s.SnippetContext
			if rec.start < 1 {
				rec.start = 1
			}
			rec.end = tr.EndLine + s.SnippetContext
			rec.snippet = snippet(lines, rec.start, rec.end)
		}
		records = append(records, rec)
	}
	log.Debug("collected sonarqube rules", "issues", len(issues), "rules", len(rules), "sources", len(sources))
	return records, nil
}

// Convert fetches the unresolved vulnerabilities of project and converts them into one report.
func (s *Source) Convert(ctx context.Context, project string, opts converter.Options) ([]converter.Target, error) {
	issues, err := s.API.Issues(ctx, project)
	if err != nil {
		return nil, err
	}
	records, err := s.collect(ctx, issues, opts)
	if err != nil {
		return nil, err
	}
	version, err := s.API.Version(ctx)
	if err != nil {
		return nil, err
	}

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
	).FirstMatch()

	controls, err := aggregate.Aggregate(records, adapter{collected: s.now().Format(StartTimeLayout)}, aggregate.Options[record]{
		Source:   Name + " project " + project,
		Severity: severity.MustFor(severity.SonarQube),
		Tags:     resolver,
		Progress: opts.Progress,
	})
	if err != nil {
		return nil, err
	}

	title := "SonarQube Scan of Project: " + project
	out, err := hdf.Assemble(hdf.ProfileMeta{
		Name:    profileName,
		Version: version,
		Title:   title,
		Summary: title,
	}, controls)
	if err != nil {
		return nil, err
	}
	return converter.Single(out), nil
}

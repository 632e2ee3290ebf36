// Package nikto converts single-target Nikto JSON reports.
package nikto

import (
	"encoding/json"
	"fmt"

	"github.com/scan-io-git/hdf-tools/internal/aggregate"
	"github.com/scan-io-git/hdf-tools/internal/converter"
	"github.com/scan-io-git/hdf-tools/internal/hdf"
	"github.com/scan-io-git/hdf-tools/internal/lookup"
	"github.com/scan-io-git/hdf-tools/internal/severity"
	"github.com/scan-io-git/hdf-tools/internal/xmlflat"
	"github.com/scan-io-git/hdf-tools/pkg/shared/errors"
)

const (
	Name        = "nikto"
	profileName = "Nikto Website Scanner"
	// Nikto reports carry no severity.
	fixedSeverity = "medium"
)

// DefaultNistTags are used when a Nikto id does not map.
var DefaultNistTags = []string{"SA-11", "RA-5"}

type report struct {
	Host            xmlflat.Text    `json:"host"`
	IP              xmlflat.Text    `json:"ip"`
	Port            xmlflat.Text    `json:"port"`
	Banner          xmlflat.Text    `json:"banner"`
	Vulnerabilities []vulnerability `json:"vulnerabilities"`
}

type vulnerability struct {
	ID     xmlflat.Text `json:"id"`
	OSVDB  xmlflat.Text `json:"OSVDB"`
	Method xmlflat.Text `json:"method"`
	URL    xmlflat.Text `json:"url"`
	Msg    xmlflat.Text `json:"msg"`
}

type adapter struct{}

func (adapter) ControlID(v vulnerability) (string, error) {
	if v.ID == "" {
		return "", errors.NewSchemaError(Name, string(v.Msg), "id")
	}
	return string(v.ID), nil
}

func (adapter) Findings(v vulnerability) ([]hdf.Finding, error) {
	return []hdf.Finding{{
		Status:   hdf.StatusFailed,
		CodeDesc: fmt.Sprintf("URL : %s Method: %s", v.URL, v.Method),
	}}, nil
}

func (adapter) Classifiers(v vulnerability) []string { return []string{string(v.ID)} }
func (adapter) Severity(vulnerability) string         { return fixedSeverity }

func (adapter) Describe(v vulnerability) aggregate.Metadata {
	return aggregate.Metadata{
		Title: string(v.Msg),
		Desc:  string(v.Msg),
		Tags:  []aggregate.Tag{{Key: "osvdb", Value: string(v.OSVDB)}},
	}
}

// Convert converts a Nikto JSON report. Multi-target output, which Nikto writes as
// concatenated JSON documents, is rejected as a parse error.
func Convert(data []byte, opts converter.Options) ([]converter.Target, error) {
	var r report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.NewParseError(Name, fmt.Errorf("multi-target scan results are not supported: %w", err))
	}

	table, err := opts.Table(lookup.NiktoNistMapping, lookup.NiktoOptions)
	if err != nil {
		return nil, err
	}

	controls, err := aggregate.Aggregate(r.Vulnerabilities, adapter{}, aggregate.Options[vulnerability]{
		Source:   Name,
		Severity: severity.MustFor(severity.Nikto),
		Tags:     lookup.NewResolver(opts.DefaultTags(DefaultNistTags), lookup.Source{Table: table}),
		Progress: opts.Progress,
	})
	if err != nil {
		return nil, err
	}

	target := fmt.Sprintf("Host: %s Port: %s", r.Host, r.Port)
	out, err := hdf.Assemble(hdf.ProfileMeta{
		Name:    profileName,
		Title:   "Nikto Target: " + target,
		Summary: "Banner: " + string(r.Banner),
	}, controls)
	if err != nil {
		return nil, err
	}
	return converter.Single(out), nil
}

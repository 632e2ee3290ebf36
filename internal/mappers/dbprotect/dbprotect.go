// Package dbprotect converts DbProtect "Check Results Details" XML datasets.
package dbprotect

import (
	"fmt"
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
	Name        = "dbprotect"
	rootElement = "dataset"
	// fallbackName names the profile of a dataset without rows.
	fallbackName = "DbProtect Check Results"

	// FailedBacktrace is attached to checks DbProtect could not run.
	FailedBacktrace = "DB Protect Failed Check"
)

// Dataset columns.
const (
	colCheckID   = "Check ID"
	colCheck     = "Check"
	colTask      = "Task"
	colCategory  = "Check Category"
	colRisk      = "Risk DV"
	colDetails   = "Details"
	colDate      = "Date"
	colStatus    = "Result Status"
	colPolicy    = "Policy"
	colJobName   = "Job Name"
	colOrg       = "Organization"
	colAsset     = "Check Asset"
	colAssetType = "Asset Type"
	colInstance  = "IP Address, Port, Instance"
)

// DefaultNistTags are used for every check; datasets carry no compliance mapping.
var DefaultNistTags = []string{lookup.Unmapped}

type dataset struct {
	Metadata struct {
		Item xmlflat.Many[struct {
			Name string `json:"name"`
		}] `json:"item"`
	} `json:"metadata"`
	Data struct {
		Row xmlflat.Many[struct {
			Value xmlflat.Many[xmlflat.Text] `json:"value"`
		}] `json:"row"`
	} `json:"data"`
}

// entry is one dataset row keyed by column name. Missing cells are empty.
type entry map[string]string

// entries zips every row with the column names of the metadata block.
func (d dataset) entries() []entry {
	out := make([]entry, 0, len(d.Data.Row))
	for _, row := range d.Data.Row {
		e := make(entry, len(d.Metadata.Item))
		for i, col := range d.Metadata.Item {
			if i < len(row.Value) {
				e[col.Name] = string(row.Value[i])
			} else {
				e[col.Name] = ""
			}
		}
		out = append(out, e)
	}
	return out
}

// status maps a DbProtect result status to an HDF status. Unknown statuses are skipped.
func status(resultStatus string) (string, []string) {
	switch resultStatus {
	case "Failed":
		return hdf.StatusFailed, []string{FailedBacktrace}
	case "Finding":
		return hdf.StatusFailed, nil
	case "Not A Finding":
		return hdf.StatusPassed, nil
	default:
		// "Fact", "Skipped" and anything else
		return hdf.StatusSkipped, nil
	}
}

type adapter struct{}

func (adapter) ControlID(e entry) (string, error) {
	if e[colCheckID] == "" {
		return "", errors.NewSchemaError(Name, e[colCheck], colCheckID)
	}
	return e[colCheckID], nil
}

func (adapter) Findings(e entry) ([]hdf.Finding, error) {
	s, backtrace := status(e[colStatus])
	return []hdf.Finding{{
		Status:    s,
		CodeDesc:  e[colDetails],
		Backtrace: backtrace,
		StartTime: e[colDate],
	}}, nil
}

func (adapter) Classifiers(entry) []string { return nil }
func (adapter) Severity(e entry) string    { return e[colRisk] }

func (adapter) Describe(e entry) aggregate.Metadata {
	return aggregate.Metadata{
		Title: e[colCheck],
		Desc:  fmt.Sprintf("Task : %s; Check Category : %s", e[colTask], e[colCategory]),
	}
}

func summary(e entry) string {
	return strings.Join([]string{
		"Organization : " + e[colOrg],
		"Asset : " + e[colAsset],
		"Asset Type : " + e[colAssetType],
		"IP Address, Port, Instance : " + e[colInstance],
	}, "\n")
}

// Convert converts a DbProtect Check Results Details XML export.
func Convert(data []byte, opts converter.Options) ([]converter.Target, error) {
	doc, err := xmlflat.FlattenBytes(data, Name)
	if err != nil {
		return nil, err
	}
	if doc.Root != rootElement {
		return nil, errors.NewSchemaError(Name, "", rootElement+" (report must be of kind Check Results Details)")
	}
	var d dataset
	if err := xmlflat.Decode(doc.Value, &d); err != nil {
		return nil, errors.NewParseError(Name, err)
	}
	if len(d.Metadata.Item) == 0 {
		return nil, errors.NewSchemaError(Name, "", "metadata")
	}
	entries := d.entries()
	opts.Log().Debug("parsed dbprotect dataset", "columns", len(d.Metadata.Item), "rows", len(entries))

	controls, err := aggregate.Aggregate(entries, adapter{}, aggregate.Options[entry]{
		Source:   Name,
		Severity: severity.MustFor(severity.DBProtect),
		Tags:     lookup.Static{Defaults: opts.DefaultTags(DefaultNistTags)},
		Progress: opts.Progress,
	})
	if err != nil {
		return nil, err
	}

	meta := hdf.ProfileMeta{Name: fallbackName, Title: fallbackName}
	if len(entries) > 0 {
		first := entries[0]
		meta = hdf.ProfileMeta{
			Name:    first[colPolicy],
			Title:   first[colJobName],
			Summary: summary(first),
		}
	}
	out, err := hdf.Assemble(meta, controls)
	if err != nil {
		return nil, err
	}
	return converter.Single(out), nil
}

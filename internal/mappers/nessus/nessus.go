// Package nessus converts Nessus v2 XML exports. Every ReportHost becomes its own report.
package nessus

import (
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
	Name = "nessus"

	rootElement      = "NessusClientData_v2"
	policyCompliance = "Policy Compliance"
	hostStartTag     = "HOST_START"
	versionPref      = "sc_version"
)

// NoPluginOutput is the code description of items without plugin output.
const NoPluginOutput = "This Nessus Plugin does not provide output message."

// DefaultNistTags are used when neither the plugin id nor its family maps.
var DefaultNistTags = []string{lookup.Unmapped}

type document struct {
	Policy policy `json:"Policy"`
	Report struct {
		Name  string                   `json:"name"`
		Hosts xmlflat.Many[reportHost] `json:"ReportHost"`
	} `json:"Report"`
}

type policy struct {
	PolicyName  xmlflat.Text `json:"policyName"`
	Preferences struct {
		Server struct {
			Preference xmlflat.Many[preference] `json:"preference"`
		} `json:"ServerPreferences"`
	} `json:"Preferences"`
}

type preference struct {
	Name  xmlflat.Text `json:"name"`
	Value xmlflat.Text `json:"value"`
}

type reportHost struct {
	Name       string `json:"name"`
	Properties struct {
		Tags xmlflat.Many[hostTag] `json:"tag"`
	} `json:"HostProperties"`
	Items xmlflat.Many[reportItem] `json:"ReportItem"`
}

type hostTag struct {
	Name  string       `json:"name"`
	Value xmlflat.Text `json:"text"`
}

type reportItem struct {
	Port         string        `json:"port"`
	Protocol     string        `json:"protocol"`
	Severity     string        `json:"severity"`
	PluginID     string        `json:"pluginID"`
	PluginName   string        `json:"pluginName"`
	PluginFamily string        `json:"pluginFamily"`
	PluginOutput *xmlflat.Text `json:"plugin_output"`
}

func (p policy) version() string {
	for _, pref := range p.Preferences.Server.Preference {
		if pref.Name == versionPref {
			return string(pref.Value)
		}
	}
	return ""
}

func (h reportHost) startTime() string {
	for _, tag := range h.Properties.Tags {
		if tag.Name == hostStartTag {
			return string(tag.Value)
		}
	}
	return ""
}

type adapter struct {
	timestamp string
}

func (a adapter) ControlID(i reportItem) (string, error) {
	if i.PluginID == "" {
		return "", errors.NewSchemaError(Name, i.PluginName, "pluginID")
	}
	return i.PluginID, nil
}

func (a adapter) Findings(i reportItem) ([]hdf.Finding, error) {
	output := NoPluginOutput
	if i.PluginOutput != nil {
		output = string(*i.PluginOutput)
	}
	return []hdf.Finding{{
		Status:    hdf.StatusFailed,
		CodeDesc:  output,
		StartTime: a.timestamp,
	}}, nil
}

func (a adapter) Classifiers(i reportItem) []string {
	return []string{lookup.JoinKey(i.PluginFamily, i.PluginID)}
}

func (a adapter) Severity(i reportItem) string { return i.Severity }

func (a adapter) Describe(i reportItem) aggregate.Metadata {
	return aggregate.Metadata{
		Title: i.PluginName,
		Desc:  fmt.Sprintf("Plugin Family: %s; Port: %s; Protocol: %s;", i.PluginFamily, i.Port, i.Protocol),
	}
}

// Convert converts a Nessus XML export into one target per scanned host.
// Policy Compliance items are skipped.
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
	if len(d.Report.Hosts) == 0 {
		return nil, errors.NewSchemaError(Name, d.Report.Name, "ReportHost")
	}

	table, err := opts.Table(lookup.NessusNistMapping, lookup.NessusOptions)
	if err != nil {
		return nil, err
	}
	resolver := lookup.NewResolver(opts.DefaultTags(DefaultNistTags), lookup.Source{Table: table})

	profileName := "Nessus " + string(d.Policy.PolicyName)
	version := d.Policy.version()

	targets := make([]converter.Target, 0, len(d.Report.Hosts))
	for _, host := range d.Report.Hosts {
		items := make([]reportItem, 0, len(host.Items))
		for _, item := range host.Items {
			if item.PluginFamily == policyCompliance {
				continue
			}
			items = append(items, item)
		}
		opts.Log().Debug("converting nessus host", "host", host.Name, "items", len(items), "skipped", len(host.Items)-len(items))

		controls, err := aggregate.Aggregate(items, adapter{timestamp: host.startTime()}, aggregate.Options[reportItem]{
			Source:   Name + " host " + host.Name,
			Severity: severity.MustFor(severity.Nessus),
			Tags:     resolver,
			Progress: opts.Progress,
		})
		if err != nil {
			return nil, err
		}

		out, err := hdf.Assemble(hdf.ProfileMeta{
			Name:    profileName,
			Version: version,
			Title:   profileName,
			Summary: profileName,
		}, controls)
		if err != nil {
			return nil, err
		}
		targets = append(targets, converter.Target{ID: host.Name, Report: out})
	}
	return targets, nil
}

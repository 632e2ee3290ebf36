package output

import (
	"bytes"
	"fmt"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/scan-io-git/hdf-tools/internal/hdf"
)

const informationURI = "https://saf.mitre.org"

// impactLevel maps an HDF impact onto a SARIF level.
func impactLevel(impact float64) string {
	switch {
	case impact >= 0.7:
		return "error"
	case impact >= 0.4:
		return "warning"
	case impact > 0:
		return "note"
	default:
		return "none"
	}
}

// SARIF renders the failed findings of report as a SARIF 2.1.0 log with one run per profile.
func SARIF(report *hdf.Report) ([]byte, error) {
	reportSarif, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("failed to create SARIF report: %w", err)
	}

	for _, profile := range report.Profiles {
		run := sarif.NewRunWithInformationURI(profile.Name, informationURI)
		for _, control := range profile.Controls {
			level := impactLevel(control.Impact)
			rule := run.AddRule(control.ID).
				WithName(control.Title).
				WithDescription(control.Desc).
				WithDefaultConfiguration(&sarif.ReportingConfiguration{Level: level}).
				WithProperties(sarif.Properties{
					"impact": control.Impact,
					"nist":   control.Tags.Nist(),
				})

			for _, f := range control.Results {
				if f.Status != hdf.StatusFailed {
					continue
				}
				message := f.Message
				if message == "" {
					message = f.CodeDesc
				}
				result := sarif.NewRuleResult(rule.ID).
					WithMessage(sarif.NewTextMessage(message)).
					WithLevel(level)
				if ref := control.SourceLocation.Ref; ref != "" {
					location := sarif.NewPhysicalLocation().
						WithArtifactLocation(sarif.NewArtifactLocation().WithUri(ref))
					if control.SourceLocation.Line > 0 {
						location.WithRegion(sarif.NewRegion().WithStartLine(control.SourceLocation.Line))
					}
					result.WithLocations([]*sarif.Location{sarif.NewLocation().WithPhysicalLocation(location)})
				}
				run.AddResult(result)
			}
		}
		reportSarif.AddRun(run)
	}

	var buf bytes.Buffer
	if err := reportSarif.PrettyWrite(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

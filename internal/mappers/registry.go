// Package mappers wires every scanner adapter into a converter registry.
package mappers

import (
	"github.com/scan-io-git/hdf-tools/internal/converter"
	"github.com/scan-io-git/hdf-tools/internal/mappers/awsconfig"
	"github.com/scan-io-git/hdf-tools/internal/mappers/burpsuite"
	"github.com/scan-io-git/hdf-tools/internal/mappers/dbprotect"
	"github.com/scan-io-git/hdf-tools/internal/mappers/fortify"
	"github.com/scan-io-git/hdf-tools/internal/mappers/nessus"
	"github.com/scan-io-git/hdf-tools/internal/mappers/netsparker"
	"github.com/scan-io-git/hdf-tools/internal/mappers/nikto"
	"github.com/scan-io-git/hdf-tools/internal/mappers/snyk"
	"github.com/scan-io-git/hdf-tools/internal/mappers/sonarqube"
	"github.com/scan-io-git/hdf-tools/internal/mappers/xray"
	"github.com/scan-io-git/hdf-tools/internal/mappers/zap"
)

var scanners = []converter.Scanner{
	{Name: fortify.Name, Kind: converter.KindXML, Description: "Fortify Static Code Analyzer FVDL", Convert: fortify.Convert},
	{Name: burpsuite.Name, Kind: converter.KindXML, Description: "Burp Suite Pro XML export", Convert: burpsuite.Convert},
	{Name: nessus.Name, Kind: converter.KindXML, Description: "Nessus .nessus (v2) file, one report per host", Convert: nessus.Convert},
	{Name: netsparker.Name, Kind: converter.KindXML, Description: "Netsparker Enterprise XML vulnerability report", Convert: netsparker.Convert},
	{Name: dbprotect.Name, Kind: converter.KindXML, Description: "DbProtect Check Results Details XML", Convert: dbprotect.Convert},
	{Name: zap.Name, Kind: converter.KindJSON, Description: "OWASP ZAP JSON report, one site selected with --name", NeedsName: true, Convert: zap.Convert},
	{Name: snyk.Name, Kind: converter.KindJSON, Description: "Snyk CLI JSON output, one report per project", Convert: snyk.Convert},
	{Name: nikto.Name, Kind: converter.KindJSON, Description: "Nikto JSON output", Convert: nikto.Convert},
	{Name: xray.Name, Kind: converter.KindJSON, Description: "JFrog Xray JSON export", Convert: xray.Convert},
	{Name: sonarqube.Name, Kind: converter.KindAPI, Description: "SonarQube web API (hdftools sonarqube)"},
	{Name: awsconfig.Name, Kind: converter.KindAPI, Description: "AWS Config rules of an account (hdftools aws-config)"},
}

// NewRegistry returns a registry holding every supported scanner.
func NewRegistry() *converter.Registry {
	r := converter.NewRegistry()
	for _, s := range scanners {
		r.Register(s)
	}
	return r
}

package hdf

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/scan-io-git/hdf-tools/pkg/shared/errors"
)

// PlatformName is the platform recorded in every report.
const PlatformName = "Heimdall Tools"

// StatusLoaded is the profile status of a converted report.
const StatusLoaded = "loaded"

// Release is the tool release written to platform.release and version. Set at build time.
var Release = "unknown"

// ProfileMeta is the scanner-level metadata of a report.
type ProfileMeta struct {
	Name           string
	Version        string
	Title          string
	Maintainer     string
	Summary        string
	License        string
	Copyright      string
	CopyrightEmail string
	// Duration of the scan in seconds, when the source reports it.
	Duration *float64
	// Statistics are merged into the report statistics next to duration.
	Statistics map[string]any
}

// Assemble wraps controls into a single-profile report and fingerprints the profile.
// A nil controls slice is a schema error; an empty one is a clean scan.
func Assemble(meta ProfileMeta, controls []Control) (*Report, error) {
	if controls == nil {
		return nil, errors.NewSchemaError(meta.Name, "", "controls")
	}

	profile := Profile{
		Name:           meta.Name,
		Version:        meta.Version,
		Title:          meta.Title,
		Maintainer:     meta.Maintainer,
		Summary:        meta.Summary,
		License:        meta.License,
		Copyright:      meta.Copyright,
		CopyrightEmail: meta.CopyrightEmail,
		Supports:       []any{},
		Attributes:     []any{},
		Depends:        []any{},
		Groups:         []any{},
		Status:         StatusLoaded,
		Controls:       controls,
	}
	sum, err := Fingerprint(profile)
	if err != nil {
		return nil, err
	}
	profile.SHA256 = sum

	stats := Statistics{"duration": nil}
	if meta.Duration != nil {
		stats["duration"] = *meta.Duration
	}
	for k, v := range meta.Statistics {
		stats[k] = v
	}

	return &Report{
		Platform:   Platform{Name: PlatformName, Release: Release},
		Version:    Release,
		Statistics: stats,
		Profiles:   []Profile{profile},
	}, nil
}

// Fingerprint returns the hex SHA-256 of the profile serialized without its sha256 field.
func Fingerprint(p Profile) (string, error) {
	p.SHA256 = ""
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to serialize profile %q: %w", p.Name, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Package output writes converted HDF reports to disk.
package output

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/hdf-tools/internal/aggregate"
	"github.com/scan-io-git/hdf-tools/internal/converter"
	"github.com/scan-io-git/hdf-tools/internal/hdf"
	"github.com/scan-io-git/hdf-tools/pkg/shared/errors"
	"github.com/scan-io-git/hdf-tools/pkg/shared/files"
)

// Supported output formats.
const (
	FormatHDF   = "hdf"
	FormatSARIF = "sarif"
)

var extensions = map[string]string{
	FormatHDF:   ".json",
	FormatSARIF: ".sarif",
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ValidateFormat reports an error for unknown output formats.
func ValidateFormat(format string) error {
	if _, ok := extensions[strings.ToLower(format)]; !ok {
		return errors.NewNotImplementedError("write", format)
	}
	return nil
}

// SanitizeTarget turns a host or project name into a file name component.
func SanitizeTarget(id string) string {
	s := strings.Trim(unsafeChars.ReplaceAllString(id, "_"), "._")
	if s == "" {
		return "target"
	}
	return s
}

// Encode serializes report in format.
func Encode(report *hdf.Report, format string, indent bool) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatHDF:
		if indent {
			return report.IndentedJSON()
		}
		return report.JSON()
	case FormatSARIF:
		return SARIF(report)
	default:
		return nil, errors.NewNotImplementedError("write", format)
	}
}

// Writer writes conversion targets below an output path.
type Writer struct {
	Format string
	Indent bool
	Logger hclog.Logger
}

func (w *Writer) log() hclog.Logger {
	if w.Logger == nil {
		return hclog.NewNullLogger()
	}
	return w.Logger
}

// Paths returns the file each target is written to. output is a file, or a folder that
// receives defaultName. Targets with an id are written next to it as <prefix>-<id><ext>.
func (w *Writer) Paths(output, defaultName string, targets []converter.Target) ([]string, error) {
	format := strings.ToLower(w.Format)
	if format == "" {
		format = FormatHDF
	}
	ext, ok := extensions[format]
	if !ok {
		return nil, errors.NewNotImplementedError("write", w.Format)
	}

	fullPath, folder, err := files.DetermineFileFullPath(output, defaultName+ext)
	if err != nil {
		return nil, err
	}

	fanOut := len(targets) > 1
	names := make([]string, len(targets))
	for i, t := range targets {
		if t.ID != "" {
			fanOut = true
		}
		names[i] = SanitizeTarget(t.ID)
	}
	if !fanOut {
		return []string{fullPath}, nil
	}

	prefix := strings.TrimSuffix(fullPath, filepath.Ext(fullPath))
	paths := make([]string, len(targets))
	for i, name := range aggregate.DisambiguateIDs(names) {
		p, err := files.EnsureWithinRoot(folder, prefix+"-"+name+ext)
		if err != nil {
			return nil, err
		}
		paths[i] = p
	}
	return paths, nil
}

// Write encodes every target and writes it atomically. It returns the written paths.
func (w *Writer) Write(output, defaultName string, targets []converter.Target) ([]string, error) {
	paths, err := w.Paths(output, defaultName, targets)
	if err != nil {
		return nil, err
	}
	format := w.Format
	if format == "" {
		format = FormatHDF
	}

	for i, t := range targets {
		data, err := Encode(t.Report, format, w.Indent)
		if err != nil {
			return nil, fmt.Errorf("failed to encode report %q: %w", t.ID, err)
		}
		if err := files.WriteFileAtomic(paths[i], data); err != nil {
			return nil, err
		}
		w.log().Info("report written", "path", paths[i], "target", t.ID, "format", format)
	}
	return paths, nil
}

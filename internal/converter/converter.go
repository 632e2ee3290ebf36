// Package converter defines the contract every scanner adapter implements and the registry
// the CLI resolves scanner names against.
package converter

import (
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/hdf-tools/internal/hdf"
	"github.com/scan-io-git/hdf-tools/internal/lookup"
	"github.com/scan-io-git/hdf-tools/pkg/shared/errors"
)

// Source kinds.
const (
	KindXML  = "xml"
	KindJSON = "json"
	KindAPI  = "api"
)

// Target is one converted report. Fan-out formats produce one target per host or project.
type Target struct {
	ID     string
	Report *hdf.Report
}

// Mapping overrides the compliance mapping of one scanner.
type Mapping struct {
	DefaultTags []string
	File        string
	// OWASPFile replaces the OWASP table of formats that also classify by OWASP category.
	OWASPFile string
}

// Options are passed to every conversion.
type Options struct {
	// Name selects a site inside a multi-site report.
	Name     string
	Mapping  Mapping
	Logger   hclog.Logger
	Progress func(done, total int)
}

// Log returns the configured logger or a null logger.
func (o Options) Log() hclog.Logger {
	if o.Logger == nil {
		return hclog.NewNullLogger()
	}
	return o.Logger
}

// DefaultTags returns the configured default NIST tags, or fallback.
func (o Options) DefaultTags(fallback []string) []string {
	if len(o.Mapping.DefaultTags) > 0 {
		return append([]string(nil), o.Mapping.DefaultTags...)
	}
	return append([]string(nil), fallback...)
}

// Table opens a bundled mapping table, honouring the configured override file.
func (o Options) Table(name string, opts lookup.TableOptions) (*lookup.Table, error) {
	return lookup.Open(name, o.Mapping.File, opts)
}

// OWASPTable opens the OWASP to NIST table, honouring the configured OWASP override file.
func (o Options) OWASPTable() (*lookup.Table, error) {
	return lookup.Open(lookup.OWASPNistMapping, o.Mapping.OWASPFile, lookup.OWASPOptions)
}

// Func converts one raw report.
type Func func(data []byte, opts Options) ([]Target, error)

// Scanner describes a supported scanner.
type Scanner struct {
	Name        string
	Description string
	Kind        string
	// NeedsName marks formats whose reports hold several sites selected by Options.Name.
	NeedsName bool
	// Convert is nil for API sources, which have their own commands.
	Convert Func
}

// Registry maps scanner names to their converters.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds a scanner. Names are case-insensitive.
func (r *Registry) Register(s Scanner) {
	r.scanners[strings.ToLower(s.Name)] = s
}

// Get returns a registered scanner.
func (r *Registry) Get(name string) (Scanner, error) {
	s, ok := r.scanners[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Scanner{}, errors.NewNotImplementedError("convert", name)
	}
	return s, nil
}

// Convert runs the file converter of the named scanner.
func (r *Registry) Convert(name string, data []byte, opts Options) ([]Target, error) {
	s, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	if s.Convert == nil {
		return nil, errors.NewNotImplementedError("convert", name+" (use the "+s.Name+" command)")
	}
	opts.Log().Debug("converting report", "scanner", s.Name, "size", len(data))
	targets, err := s.Convert(data, opts)
	if err != nil {
		return nil, err
	}
	opts.Log().Debug("conversion finished", "scanner", s.Name, "targets", len(targets))
	return targets, nil
}

// Scanners returns the registered scanners sorted by name.
func (r *Registry) Scanners() []Scanner {
	out := make([]Scanner, 0, len(r.scanners))
	for _, s := range r.scanners {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Single wraps a report into the one-element target list of a non fan-out format.
func Single(report *hdf.Report) []Target {
	return []Target{{Report: report}}
}

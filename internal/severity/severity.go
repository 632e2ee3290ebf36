// Package severity maps scanner-specific severity tokens onto the normalized HDF impact in [0, 1].
package severity

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/scan-io-git/hdf-tools/pkg/shared/errors"
)

// Scanner families with a registered severity table.
const (
	Fortify    = "fortify"
	ZAP        = "zap"
	BurpSuite  = "burpsuite"
	Nessus     = "nessus"
	Snyk       = "snyk"
	Nikto      = "nikto"
	Xray       = "xray"
	DBProtect  = "dbprotect"
	Netsparker = "netsparker"
	SonarQube  = "sonarqube"
	AWSConfig  = "awsconfig"
)

// Options tune how raw tokens are matched against the bands.
type Options struct {
	// Fold compares tokens case-insensitively.
	Fold bool
	// Ordinal parses tokens as numbers and truncates them to an integer band.
	Ordinal bool
	// Clamp sends ordinal values above the highest band to that band.
	Clamp bool
	// Scale, when positive, divides a numeric token by Scale instead of using bands.
	Scale float64
}

// Mapper converts raw severity tokens of one scanner family into impacts.
// A Mapper is immutable and safe for concurrent use.
type Mapper struct {
	family     string
	bands      map[string]float64
	opts       Options
	maxOrdinal int
	fixed      *float64
}

// New builds a mapper over bands.
func New(family string, bands map[string]float64, opts Options) *Mapper {
	m := &Mapper{
		family:     family,
		bands:      make(map[string]float64, len(bands)),
		opts:       opts,
		maxOrdinal: math.MinInt,
	}
	for token, impact := range bands {
		if opts.Fold {
			token = strings.ToLower(token)
		}
		m.bands[token] = impact
		if n, err := strconv.Atoi(token); err == nil && n > m.maxOrdinal {
			m.maxOrdinal = n
		}
	}
	return m
}

// Fixed returns a mapper that yields impact for every token.
func Fixed(family string, impact float64) *Mapper {
	return &Mapper{family: family, fixed: &impact}
}

// Family returns the scanner family name.
func (m *Mapper) Family() string { return m.family }

// Impact returns the impact for raw. Unknown tokens yield a *errors.MappingGapError.
func (m *Mapper) Impact(raw string) (float64, error) {
	if m.fixed != nil {
		return *m.fixed, nil
	}
	token := strings.TrimSpace(raw)

	if m.opts.Scale > 0 {
		v, err := strconv.ParseFloat(token, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > m.opts.Scale {
			return 0, errors.NewMappingGapError(m.family, raw)
		}
		return v / m.opts.Scale, nil
	}

	if m.opts.Ordinal {
		v, err := strconv.ParseFloat(token, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, errors.NewMappingGapError(m.family, raw)
		}
		n := int(math.Trunc(v))
		if m.opts.Clamp && n > m.maxOrdinal {
			n = m.maxOrdinal
		}
		token = strconv.Itoa(n)
	}

	if m.opts.Fold {
		token = strings.ToLower(token)
	}
	impact, ok := m.bands[token]
	if !ok {
		return 0, errors.NewMappingGapError(m.family, raw)
	}
	return impact, nil
}

var registry = map[string]*Mapper{
	Fortify: New(Fortify, nil, Options{Scale: 5}),
	ZAP: New(ZAP, map[string]float64{
		"0": 0.3, "1": 0.3, "2": 0.5, "3": 0.7,
	}, Options{Ordinal: true, Clamp: true}),
	BurpSuite: New(BurpSuite, map[string]float64{
		"High": 0.7, "Medium": 0.5, "Low": 0.3, "Information": 0.3,
	}, Options{}),
	Nessus: New(Nessus, map[string]float64{
		"0": 0.0, "1": 0.3, "2": 0.5, "3": 0.7, "4": 0.9,
	}, Options{Ordinal: true}),
	Snyk: New(Snyk, map[string]float64{
		"critical": 0.9, "high": 0.7, "medium": 0.5, "low": 0.3,
	}, Options{}),
	Nikto: New(Nikto, map[string]float64{
		"high": 0.7, "medium": 0.5, "low": 0.3,
	}, Options{}),
	Xray: New(Xray, map[string]float64{
		"high": 0.7, "medium": 0.5, "low": 0.3,
	}, Options{Fold: true}),
	DBProtect: New(DBProtect, map[string]float64{
		"High": 0.7, "Medium": 0.5, "Low": 0.3, "Informational": 0.0,
	}, Options{}),
	Netsparker: New(Netsparker, map[string]float64{
		"Critical": 1.0, "High": 0.7, "Medium": 0.5, "Low": 0.3,
		"BestPractice": 0.0, "Best_Practice": 0.0, "Information": 0.0,
	}, Options{}),
	SonarQube: New(SonarQube, map[string]float64{
		"BLOCKER": 1.0, "CRITICAL": 0.7, "MAJOR": 0.5, "MINOR": 0.3, "INFO": 0.0,
	}, Options{}),
	AWSConfig: Fixed(AWSConfig, 0.5),
}

// For returns the registered mapper of a scanner family.
func For(family string) (*Mapper, error) {
	m, ok := registry[family]
	if !ok {
		return nil, errors.NewNotImplementedError("severity mapping", family)
	}
	return m, nil
}

// MustFor is For for families known at compile time.
func MustFor(family string) *Mapper {
	m, err := For(family)
	if err != nil {
		panic(err)
	}
	return m
}

// Families lists the registered scanner families.
func Families() []string {
	out := make([]string, 0, len(registry))
	for family := range registry {
		out = append(out, family)
	}
	sort.Strings(out)
	return out
}

// Package aggregate groups raw scanner records into unique HDF controls.
//
// Every scanner adapter implements Adapter for its typed record. Aggregate makes a single
// pass over the records: the first record seen for a control id builds the control,
// later records with the same id only contribute findings.
package aggregate

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/scan-io-git/hdf-tools/internal/hdf"
	"github.com/scan-io-git/hdf-tools/internal/lookup"
	"github.com/scan-io-git/hdf-tools/internal/severity"
	"github.com/scan-io-git/hdf-tools/pkg/shared/errors"
)

// DefaultEmptyMessage explains a synthesized result when the adapter gives none.
const DefaultEmptyMessage = "No findings were reported for this check."

// Tag is an extra control tag. Tags keep the order the adapter lists them in.
type Tag struct {
	Key   string
	Value any
}

// Metadata is the descriptive part of a control taken from its first record.
type Metadata struct {
	Title          string
	Desc           string
	Descriptions   []hdf.Description
	Tags           []Tag
	Refs           []any
	SourceLocation hdf.SourceLocation
	Code           string
}

// Adapter extracts the parts of a control from one raw record.
type Adapter[R any] interface {
	// ControlID returns the deterministic id of the control the record belongs to.
	ControlID(rec R) (string, error)
	// Findings returns the natural findings of the record, possibly none.
	Findings(rec R) ([]hdf.Finding, error)
	// Classifiers returns the keys used to resolve compliance tags.
	Classifiers(rec R) []string
	// Severity returns the raw severity token.
	Severity(rec R) string
	Describe(rec R) Metadata
}

// Options configure one aggregation pass.
type Options[R any] struct {
	// Source names the input in error messages.
	Source   string
	Severity *severity.Mapper
	Tags     lookup.TagResolver
	// EmptyResult builds the skipped finding of a control without natural findings.
	EmptyResult func(rec R) hdf.Finding
	// ImpactOverride forces the impact of a control when it returns true.
	ImpactOverride func(rec R) (float64, bool)
	// UniqueFindings drops findings identical to one already in the control.
	UniqueFindings bool
	// Progress is called after every record.
	Progress func(done, total int)
}

type working[R any] struct {
	control hdf.Control
	first   R
	seen    map[string]struct{}
}

// Aggregate groups records into controls in first-seen order.
// The first error aborts the pass; no partial result is returned.
func Aggregate[R any](records []R, a Adapter[R], opts Options[R]) ([]hdf.Control, error) {
	if opts.Severity == nil {
		return nil, fmt.Errorf("%s: no severity mapping configured", opts.Source)
	}
	if opts.Tags == nil {
		opts.Tags = lookup.Static{}
	}

	order := make([]string, 0, len(records))
	byID := make(map[string]*working[R], len(records))

	for i, rec := range records {
		id, err := a.ControlID(rec)
		if err != nil {
			return nil, recordError(opts.Source, i, err)
		}
		if id == "" {
			return nil, errors.NewSchemaError(opts.Source, strconv.Itoa(i), "id")
		}

		w, ok := byID[id]
		if !ok {
			control, err := build(id, rec, a, opts)
			if err != nil {
				return nil, recordError(opts.Source, i, err)
			}
			w = &working[R]{control: control, first: rec}
			if opts.UniqueFindings {
				w.seen = map[string]struct{}{}
			}
			byID[id] = w
			order = append(order, id)
		}

		findings, err := a.Findings(rec)
		if err != nil {
			return nil, recordError(opts.Source, i, err)
		}
		for _, f := range findings {
			if w.seen != nil {
				key := findingKey(f)
				if _, dup := w.seen[key]; dup {
					continue
				}
				w.seen[key] = struct{}{}
			}
			w.control.Results = append(w.control.Results, f)
		}

		if opts.Progress != nil {
			opts.Progress(i+1, len(records))
		}
	}

	controls := make([]hdf.Control, 0, len(order))
	for _, id := range order {
		w := byID[id]
		if len(w.control.Results) == 0 {
			w.control.Results = []hdf.Finding{emptyResult(w.first, opts)}
		}
		controls = append(controls, w.control)
	}
	return controls, nil
}

func build[R any](id string, rec R, a Adapter[R], opts Options[R]) (hdf.Control, error) {
	impact, overridden := 0.0, false
	if opts.ImpactOverride != nil {
		impact, overridden = opts.ImpactOverride(rec)
	}
	if !overridden {
		var err error
		impact, err = opts.Severity.Impact(a.Severity(rec))
		if err != nil {
			var gap *errors.MappingGapError
			if errors.As(err, &gap) {
				gap.Record = id
			}
			return hdf.Control{}, err
		}
	}

	meta := a.Describe(rec)
	tags := hdf.NewTags(opts.Tags.Resolve(a.Classifiers(rec)))
	for _, t := range meta.Tags {
		if t.Key == hdf.NistTag {
			continue
		}
		tags.Set(t.Key, t.Value)
	}

	control := hdf.Control{
		ID:             id,
		Title:          meta.Title,
		Desc:           meta.Desc,
		Impact:         impact,
		Tags:           tags,
		Descriptions:   meta.Descriptions,
		Refs:           meta.Refs,
		SourceLocation: meta.SourceLocation,
		Code:           meta.Code,
	}
	if control.Descriptions == nil {
		control.Descriptions = []hdf.Description{}
	}
	if control.Refs == nil {
		control.Refs = []any{}
	}
	return control, nil
}

func emptyResult[R any](rec R, opts Options[R]) hdf.Finding {
	if opts.EmptyResult != nil {
		f := opts.EmptyResult(rec)
		f.Status = hdf.StatusSkipped
		f.RunTime = 0
		return f
	}
	return hdf.Finding{
		Status:      hdf.StatusSkipped,
		CodeDesc:    DefaultEmptyMessage,
		SkipMessage: DefaultEmptyMessage,
	}
}

func findingKey(f hdf.Finding) string {
	data, _ := json.Marshal(f)
	return string(data)
}

func recordError(source string, index int, err error) error {
	if source == "" {
		return fmt.Errorf("record %d: %w", index, err)
	}
	return fmt.Errorf("%s: record %d: %w", source, index, err)
}

// ContentID derives a stable control id from the significant content of a record
// that carries no id of its own.
func ContentID(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// DisambiguateIDs suffixes every id that occurs more than once with .1, .2 ... in order
// of appearance. Unique ids are returned unchanged. A suffix is skipped when the result
// would collide with another input id or an id already produced.
func DisambiguateIDs(ids []string) []string {
	counts := make(map[string]int, len(ids))
	taken := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		counts[id]++
		taken[id] = struct{}{}
	}
	next := make(map[string]int)
	out := make([]string, len(ids))
	for i, id := range ids {
		if counts[id] < 2 {
			out[i] = id
			continue
		}
		for {
			next[id]++
			candidate := id + "." + strconv.Itoa(next[id])
			if _, ok := taken[candidate]; !ok {
				taken[candidate] = struct{}{}
				out[i] = candidate
				break
			}
		}
	}
	return out
}

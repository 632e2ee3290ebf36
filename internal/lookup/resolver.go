package lookup

import "strings"

// Unmapped is the tag used when no compliance mapping resolves.
const Unmapped = "unmapped"

// keySeparator joins the parts of a composite classifier for multi-column tables.
const keySeparator = "\x1f"

// JoinKey builds a classifier for a table keyed by several columns.
func JoinKey(parts ...string) string {
	return strings.Join(parts, keySeparator)
}

func splitKey(classifier string) []string {
	return strings.Split(classifier, keySeparator)
}

// TagResolver turns the classifiers of one finding into NIST tags. Implementations never return an empty slice.
type TagResolver interface {
	Resolve(classifiers []string) []string
}

// Source routes classifiers that start with Prefix to Table. An empty prefix takes every classifier
// not claimed by a prefixed source.
type Source struct {
	Prefix string
	Table  *Table
}

// Resolver resolves classifiers against one or more tables and falls back to a default tag list.
// A Resolver is read-only after construction and safe for concurrent use.
type Resolver struct {
	sources    []Source
	defaults   []string
	firstMatch bool
}

// NewResolver creates a resolver over sources. defaults must not be empty; ["unmapped"] is used if it is.
func NewResolver(defaults []string, sources ...Source) *Resolver {
	if len(defaults) == 0 {
		defaults = []string{Unmapped}
	}
	return &Resolver{
		sources:  sources,
		defaults: append([]string(nil), defaults...),
	}
}

// FirstMatch returns a copy of r that only keeps the tags of the first classifier that maps.
func (r *Resolver) FirstMatch() *Resolver {
	c := *r
	c.firstMatch = true
	return &c
}

// Defaults returns a copy of the fallback tag list.
func (r *Resolver) Defaults() []string {
	return append([]string(nil), r.defaults...)
}

// Resolve implements TagResolver.
func (r *Resolver) Resolve(classifiers []string) []string {
	var tags []string
	for _, classifier := range classifiers {
		found := r.match(classifier)
		if len(found) == 0 {
			continue
		}
		if r.firstMatch {
			return unique(found)
		}
		tags = append(tags, found...)
	}
	if len(tags) == 0 {
		return r.Defaults()
	}
	return unique(tags)
}

func (r *Resolver) match(classifier string) []string {
	var tags []string
	claimed := false
	for _, src := range r.sources {
		if src.Prefix != "" && strings.HasPrefix(classifier, src.Prefix) {
			claimed = true
			tags = append(tags, tableTags(src.Table, strings.TrimPrefix(classifier, src.Prefix))...)
		}
	}
	if claimed {
		return tags
	}
	for _, src := range r.sources {
		if src.Prefix == "" {
			tags = append(tags, tableTags(src.Table, classifier)...)
		}
	}
	return tags
}

func tableTags(t *Table, classifier string) []string {
	var tags []string
	for _, row := range t.Lookup(splitKey(classifier)...) {
		tags = append(tags, t.Tags(row)...)
	}
	return tags
}

// Resolve looks classifiers up in table and returns the de-duplicated tags in first-seen order,
// or defaults when nothing matches.
func Resolve(classifiers []string, table *Table, defaults []string) []string {
	return NewResolver(defaults, Source{Table: table}).Resolve(classifiers)
}

// Static treats the classifiers themselves as NIST ids, for scanners that embed the mapping in the report.
type Static struct {
	Suffix   []string
	Defaults []string
}

// Resolve implements TagResolver.
func (s Static) Resolve(classifiers []string) []string {
	var tags []string
	for _, c := range classifiers {
		if c = strings.TrimSpace(c); c != "" {
			tags = append(tags, c)
		}
	}
	if len(tags) == 0 {
		if len(s.Defaults) == 0 {
			return []string{Unmapped}
		}
		return append([]string(nil), s.Defaults...)
	}
	return unique(append(tags, s.Suffix...))
}

func unique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

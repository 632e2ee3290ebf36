// Package lookup loads compliance mapping tables and resolves scanner classifiers to NIST 800-53 tags.
package lookup

import (
	"embed"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/scan-io-git/hdf-tools/pkg/shared/errors"
)

// Bundled reference tables.
const (
	CWENistMapping     = "cwe-nist-mapping.csv"
	OWASPNistMapping   = "owasp-nist-mapping.csv"
	NessusNistMapping  = "nessus-plugins-nist-mapping.csv"
	NiktoNistMapping   = "nikto-nist-mapping.csv"
	AWSConfigMapping   = "aws-config-mapping.csv"
	DefaultWildcard    = "*"
	RevisionTokenLabel = "Rev_"
)

//go:embed data/*.csv
var bundled embed.FS

// Row is one row of a mapping table keyed by normalized column names.
type Row map[string]string

// TableOptions describes how a mapping table is keyed and what it yields.
type TableOptions struct {
	// KeyColumns are the normalized names of the columns a lookup matches on, in order.
	KeyColumns []string
	// IDColumn holds the compliance control id.
	IDColumn string
	// RevisionColumn, when set, adds a Rev_<n> token for every match.
	RevisionColumn string
	// Separator splits one IDColumn cell into several control ids.
	Separator string
	// Wildcard is a key cell value that matches every lookup key.
	Wildcard string
	// Annotation is appended to every control id produced by the table.
	Annotation string
	// Untyped disables numeric column detection; every column compares as a string.
	Untyped bool
}

// Table is an immutable, indexed mapping table.
type Table struct {
	name    string
	opts    TableOptions
	rows    []Row
	numeric map[string]bool
	index   map[string][]int
	wild    []int
}

var headerJunk = regexp.MustCompile(`[^\s\w]+`)
var headerSpace = regexp.MustCompile(`\s+`)

// NormalizeHeader turns a CSV header cell into a column symbol: "CWE-ID" -> "cweid", "Plugin Name" -> "plugin_name".
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimPrefix(h, "\ufeff"))
	h = headerJunk.ReplaceAllString(h, "")
	h = strings.TrimSpace(h)
	return headerSpace.ReplaceAllString(h, "_")
}

// Load reads a CSV mapping table with a header row.
func Load(r io.Reader, name string, opts TableOptions) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.NewLookupLoadError(name, err)
	}
	if len(records) == 0 {
		return nil, errors.NewLookupLoadError(name, fmt.Errorf("header row is missing"))
	}

	header := make([]string, len(records[0]))
	columns := make(map[string]bool, len(header))
	for i, h := range records[0] {
		header[i] = NormalizeHeader(h)
		columns[header[i]] = true
	}
	if len(opts.KeyColumns) == 0 {
		return nil, errors.NewLookupLoadError(name, fmt.Errorf("no key columns configured"))
	}
	required := append([]string{opts.IDColumn}, opts.KeyColumns...)
	if opts.RevisionColumn != "" {
		required = append(required, opts.RevisionColumn)
	}
	for _, col := range required {
		if !columns[col] {
			return nil, errors.NewLookupLoadError(name, fmt.Errorf("column %q is missing, got %v", col, header))
		}
	}

	t := &Table{
		name:    name,
		opts:    opts,
		rows:    make([]Row, 0, len(records)-1),
		numeric: make(map[string]bool, len(header)),
		index:   make(map[string][]int),
	}
	for _, record := range records[1:] {
		row := make(Row, len(header))
		for i, value := range record {
			row[header[i]] = strings.TrimSpace(value)
		}
		t.rows = append(t.rows, row)
	}

	t.detectTypes(header)
	for i, row := range t.rows {
		key := row[opts.KeyColumns[0]]
		if t.isWildcard(key) {
			t.wild = append(t.wild, i)
			continue
		}
		canonical, ok := t.canonical(opts.KeyColumns[0], key)
		if !ok {
			continue
		}
		t.index[canonical] = append(t.index[canonical], i)
	}
	return t, nil
}

// LoadFile reads a mapping table from disk.
func LoadFile(path string, opts TableOptions) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewLookupLoadError(path, err)
	}
	defer file.Close()
	return Load(file, path, opts)
}

// LoadBundled reads one of the reference tables shipped with the binary.
func LoadBundled(name string, opts TableOptions) (*Table, error) {
	file, err := bundled.Open("data/" + name)
	if err != nil {
		return nil, errors.NewLookupLoadError(name, err)
	}
	defer file.Close()
	return Load(file, name, opts)
}

// Open loads the table from override when it is set, otherwise the bundled table.
func Open(name, override string, opts TableOptions) (*Table, error) {
	if override != "" {
		return LoadFile(override, opts)
	}
	return LoadBundled(name, opts)
}

// Name returns the table source name.
func (t *Table) Name() string { return t.name }

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

func (t *Table) isWildcard(v string) bool {
	return t.opts.Wildcard != "" && v == t.opts.Wildcard
}

// detectTypes marks a column numeric when every non-empty, non-wildcard cell parses as a number.
func (t *Table) detectTypes(header []string) {
	if t.opts.Untyped {
		return
	}
	for _, col := range header {
		numeric, seen := true, false
		for _, row := range t.rows {
			v := row[col]
			if v == "" || t.isWildcard(v) {
				continue
			}
			seen = true
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				numeric = false
				break
			}
		}
		t.numeric[col] = numeric && seen
	}
}

// canonical returns the comparable form of a value in the given column.
func (t *Table) canonical(col, v string) (string, bool) {
	if !t.numeric[col] {
		return v, true
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return "", false
	}
	return strconv.FormatFloat(f, 'g', -1, 64), true
}

func (t *Table) matches(row Row, keys []string) bool {
	for i, col := range t.opts.KeyColumns {
		if i >= len(keys) {
			return false
		}
		cell := row[col]
		if t.isWildcard(cell) {
			continue
		}
		want, ok := t.canonical(col, cell)
		if !ok {
			return false
		}
		got, ok := t.canonical(col, keys[i])
		if !ok || got != want {
			return false
		}
	}
	return true
}

// Lookup returns every row whose key columns match keys positionally, in table order.
// Numeric columns compare numerically, string columns exactly; wildcard cells match any key.
func (t *Table) Lookup(keys ...string) []Row {
	if len(keys) == 0 {
		return nil
	}
	var candidates []int
	if first, ok := t.canonical(t.opts.KeyColumns[0], keys[0]); ok {
		candidates = append(candidates, t.index[first]...)
	}
	candidates = append(candidates, t.wild...)
	sort.Ints(candidates)

	var out []Row
	for _, i := range candidates {
		if t.matches(t.rows[i], keys) {
			out = append(out, t.rows[i])
		}
	}
	return out
}

// Tags returns the compliance tokens a row contributes.
func (t *Table) Tags(row Row) []string {
	cell := row[t.opts.IDColumn]
	if cell == "" {
		return nil
	}
	ids := []string{cell}
	if t.opts.Separator != "" {
		ids = strings.Split(cell, t.opts.Separator)
	}

	var out []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		out = append(out, id+t.opts.Annotation)
	}
	if t.opts.RevisionColumn != "" {
		if rev := row[t.opts.RevisionColumn]; rev != "" {
			out = append(out, RevisionTokenLabel+rev)
		}
	}
	return out
}

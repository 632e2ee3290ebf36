package lookup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/hdf-tools/pkg/shared/errors"
)

func loadString(t *testing.T, csv string, opts TableOptions) *Table {
	t.Helper()
	table, err := Load(strings.NewReader(csv), "inline", opts)
	require.NoError(t, err)
	return table
}

func TestNormalizeHeader(t *testing.T) {
	tests := map[string]string{
		"CWE-ID":            "cweid",
		"NIST-ID":           "nistid",
		"Plugin Name":       "plugin_name",
		"  Rev ":            "rev",
		"\ufeffOWASP-ID":    "owaspid",
		"AwsConfigRuleName": "awsconfigrulename",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeHeader(in), in)
	}
}

func TestLookupNumericKeys(t *testing.T) {
	table, err := LoadBundled(CWENistMapping, CWEOptions)
	require.NoError(t, err)

	tests := []struct {
		name string
		keys []string
		want []string
	}{
		{name: "plain id", keys: []string{"79"}, want: []string{"SI-10", "Rev_4"}},
		{name: "leading zeros", keys: []string{"079"}, want: []string{"SI-10", "Rev_4"}},
		{name: "float form", keys: []string{"79.0"}, want: []string{"SI-10", "Rev_4"}},
		{name: "unknown id", keys: []string{"999999"}, want: nil},
		{name: "not a number", keys: []string{"CWE-79"}, want: nil},
		{name: "two rows for one key", keys: []string{"200"}, want: []string{"AC-3", "Rev_4", "SC-8", "Rev_4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, row := range table.Lookup(tt.keys...) {
				got = append(got, table.Tags(row)...)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookupUntypedKeepsLeadingZeros(t *testing.T) {
	table, err := LoadBundled(NiktoNistMapping, NiktoOptions)
	require.NoError(t, err)

	rows := table.Lookup("000003")
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"SC-18"}, table.Tags(rows[0]))
	assert.Empty(t, table.Lookup("3"))
}

func TestLookupWildcardAndSeparator(t *testing.T) {
	table, err := LoadBundled(NessusNistMapping, NessusOptions)
	require.NoError(t, err)

	var specific []string
	for _, row := range table.Lookup("General", "10107") {
		specific = append(specific, table.Tags(row)...)
	}
	assert.Equal(t, []string{"CM-6", "Rev_4", "CM-7", "Rev_4"}, specific)

	var family []string
	for _, row := range table.Lookup("Backdoors", "55555") {
		family = append(family, table.Tags(row)...)
	}
	assert.Equal(t, []string{"SI-3", "SI-4", "Rev_4"}, family)

	assert.Empty(t, table.Lookup("No Such Family", "1"))
	assert.Empty(t, table.Lookup())
}

func TestTagsAnnotation(t *testing.T) {
	table := loadString(t, "AwsConfigRuleName,NIST-ID,Rev\nmy-rule,AC-2|AC-3,4\n",
		Annotated(AWSConfigOptions, " (user provided)"))

	rows := table.Lookup("my-rule")
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"AC-2 (user provided)", "AC-3 (user provided)"}, table.Tags(rows[0]))
}

func TestTagsSkipsEmptyCells(t *testing.T) {
	table := loadString(t, "CWE-ID,NIST-ID,Rev\n1,,4\n2,SC-8,\n", CWEOptions)

	assert.Empty(t, table.Tags(table.Lookup("1")[0]))
	assert.Equal(t, []string{"SC-8"}, table.Tags(table.Lookup("2")[0]))
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  TableOptions
	}{
		{name: "empty file", input: "", opts: CWEOptions},
		{name: "missing id column", input: "CWE-ID,Name\n1,x\n", opts: CWEOptions},
		{name: "missing revision column", input: "CWE-ID,NIST-ID\n1,AC-3\n", opts: CWEOptions},
		{name: "ragged row", input: "CWE-ID,NIST-ID,Rev\n1,AC-3\n", opts: CWEOptions},
		{name: "no key columns", input: "CWE-ID,NIST-ID\n1,AC-3\n", opts: TableOptions{IDColumn: "nistid"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.input), "bad.csv", tt.opts)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrLookupLoad)
			assert.Contains(t, err.Error(), "bad.csv")
		})
	}
}

func TestOpenOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.csv")
	require.NoError(t, os.WriteFile(path, []byte("CWE-ID,NIST-ID,Rev\n79,AC-1,5\n"), 0o600))

	table, err := Open(CWENistMapping, path, CWEOptions)
	require.NoError(t, err)
	assert.Equal(t, path, table.Name())
	assert.Equal(t, 1, table.Len())
	assert.Equal(t, []string{"AC-1", "Rev_5"}, table.Tags(table.Lookup("79")[0]))

	_, err = Open(CWENistMapping, filepath.Join(t.TempDir(), "missing.csv"), CWEOptions)
	assert.ErrorIs(t, err, errors.ErrLookupLoad)
}

func TestBundledTablesLoad(t *testing.T) {
	tables := map[string]TableOptions{
		CWENistMapping:    CWEOptions,
		OWASPNistMapping:  OWASPOptions,
		NessusNistMapping: NessusOptions,
		NiktoNistMapping:  NiktoOptions,
		AWSConfigMapping:  AWSConfigOptions,
	}
	for name, opts := range tables {
		t.Run(name, func(t *testing.T) {
			table, err := LoadBundled(name, opts)
			require.NoError(t, err)
			assert.Positive(t, table.Len())
		})
	}
}

package lookup

// Column layouts of the bundled tables. Custom tables passed through configuration must use the same headers.
var (
	CWEOptions = TableOptions{
		KeyColumns:     []string{"cweid"},
		IDColumn:       "nistid",
		RevisionColumn: "rev",
	}
	OWASPOptions = TableOptions{
		KeyColumns:     []string{"owaspid"},
		IDColumn:       "nistid",
		RevisionColumn: "rev",
	}
	NessusOptions = TableOptions{
		KeyColumns:     []string{"pluginfamily", "pluginid"},
		IDColumn:       "nistid",
		RevisionColumn: "rev",
		Separator:      "|",
		Wildcard:       DefaultWildcard,
	}
	NiktoOptions = TableOptions{
		KeyColumns: []string{"niktoid"},
		IDColumn:   "nistid",
		Untyped:    true,
	}
	AWSConfigOptions = TableOptions{
		KeyColumns: []string{"awsconfigrulename"},
		IDColumn:   "nistid",
		Separator:  "|",
	}
)

// WithoutRevision returns a copy of opts that yields no Rev_ token.
func WithoutRevision(opts TableOptions) TableOptions {
	opts.RevisionColumn = ""
	return opts
}

// Annotated returns a copy of opts that appends annotation to every control id.
func Annotated(opts TableOptions, annotation string) TableOptions {
	opts.Annotation = annotation
	return opts
}

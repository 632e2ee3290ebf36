package convert

import (
	"fmt"

	"github.com/scan-io-git/hdf-tools/internal/converter"
	"github.com/scan-io-git/hdf-tools/internal/output"
)

// validateConvertArgs validates the arguments provided to the convert command.
func validateConvertArgs(options *RunOptionsConvert, args []string, registry *converter.Registry) error {
	if len(args) > 0 {
		return fmt.Errorf("invalid argument(s) received, use the 'input-file' flag for the report")
	}

	if options.Scanner == "" {
		return fmt.Errorf("the 'scanner' flag must be specified")
	}
	s, err := registry.Get(options.Scanner)
	if err != nil {
		return fmt.Errorf("unsupported scanner %q, see the list command", options.Scanner)
	}
	if s.Convert == nil {
		return fmt.Errorf("%q is an API source, use the %s command instead", s.Name, s.Name)
	}

	if s.NeedsName && options.Name == "" {
		return fmt.Errorf("the 'name' flag must be specified for %s reports", s.Name)
	}

	if options.InputFile == "" {
		return fmt.Errorf("the 'input-file' flag must be specified")
	}

	if options.OutputPath == "" {
		return fmt.Errorf("the 'output' flag must be specified")
	}

	if err := output.ValidateFormat(options.Format); err != nil {
		return fmt.Errorf("unsupported output format %q", options.Format)
	}

	return nil
}

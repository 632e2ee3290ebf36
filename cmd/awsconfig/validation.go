package awsconfig

import (
	"fmt"

	"github.com/scan-io-git/hdf-tools/internal/output"
	"github.com/scan-io-git/hdf-tools/pkg/shared/files"
)

// validateAWSConfigArgs validates the arguments provided to the aws-config command.
func validateAWSConfigArgs(options *RunOptionsAWSConfig, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("invalid argument(s) received, the command takes no positional arguments")
	}

	if options.CustomMapping != "" {
		path, err := files.ExpandPath(options.CustomMapping)
		if err != nil {
			return fmt.Errorf("failed to unwrap path %q: %w", options.CustomMapping, err)
		}
		if err := files.ValidatePath(path); err != nil {
			return fmt.Errorf("invalid custom mapping: %w", err)
		}
		options.CustomMapping = path
	}

	if options.OutputPath == "" {
		return fmt.Errorf("the 'output' flag must be specified")
	}

	if err := output.ValidateFormat(options.Format); err != nil {
		return fmt.Errorf("unsupported output format %q", options.Format)
	}

	return nil
}

package sonarqube

import (
	"fmt"
	"net/url"

	"github.com/scan-io-git/hdf-tools/internal/output"
)

// validateSonarQubeArgs validates the arguments provided to the sonarqube command.
func validateSonarQubeArgs(options *RunOptionsSonarQube, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("invalid argument(s) received, the command takes no positional arguments")
	}

	if options.URL == "" {
		return fmt.Errorf("the 'url' flag must be specified")
	}
	u, err := url.ParseRequestURI(options.URL)
	if err != nil {
		return fmt.Errorf("provided URL is not valid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("provided URL must use http or https, got %q", u.Scheme)
	}

	if options.Project == "" {
		return fmt.Errorf("the 'project' flag must be specified")
	}

	if options.OutputPath == "" {
		return fmt.Errorf("the 'output' flag must be specified")
	}

	if err := output.ValidateFormat(options.Format); err != nil {
		return fmt.Errorf("unsupported output format %q", options.Format)
	}

	return nil
}

package convert

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/scan-io-git/hdf-tools/internal/config"
	"github.com/scan-io-git/hdf-tools/internal/converter"
	"github.com/scan-io-git/hdf-tools/internal/mappers"
	"github.com/scan-io-git/hdf-tools/internal/output"
	"github.com/scan-io-git/hdf-tools/pkg/shared"
	"github.com/scan-io-git/hdf-tools/pkg/shared/files"
)

// RunOptionsConvert holds the arguments for the convert command.
type RunOptionsConvert struct {
	Scanner    string
	InputFile  string
	OutputPath string
	Name       string
	Format     string
	Indent     bool
}

// Global variables for configuration and command arguments
var (
	AppConfig      *config.Config
	logger         hclog.Logger
	registry       = mappers.NewRegistry()
	convertOptions RunOptionsConvert

	exampleConvertUsage = `  # Converting a Fortify FVDL file
  hdftools convert --scanner fortify --input-file /path/to/audit.fvdl --output /path/to/fortify.json

  # Converting one site of a ZAP report
  hdftools convert --scanner zap --input-file /path/to/zap.json --name https://example.com --output /path/to/zap.json

  # Converting a Nessus file, one report per host is written as /path/to/out/nessus-<host>.json
  hdftools convert --scanner nessus --input-file /path/to/scan.nessus --output /path/to/out/

  # Exporting the converted report as SARIF
  hdftools convert --scanner snyk --input-file /path/to/snyk.json --format sarif --output /path/to/snyk.sarif`
)

// ConvertCmd represents the convert command.
var ConvertCmd = &cobra.Command{
	Use:                   "convert --scanner/-p SCANNER --input-file/-i PATH --output/-o PATH [--name/-n SITE] [--format/-f hdf|sarif] [--indent]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleConvertUsage,
	Short:                 "Convert a scanner report into the Heimdall Data Format",
	Long:                  generateLongDescription(registry),
	RunE:                  runConvertCommand,
}

// Init initializes the global configuration variable and logger.
func Init(cfg *config.Config, l hclog.Logger) {
	AppConfig = cfg
	logger = l
}

func runConvertCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !shared.HasFlags(cmd.Flags()) {
		return cmd.Help()
	}

	if err := validateConvertArgs(&convertOptions, args, registry); err != nil {
		logger.Error("invalid convert arguments", "error", err)
		return err
	}

	data, err := files.ReadInput(convertOptions.InputFile)
	if err != nil {
		logger.Error("failed to read input file", "error", err)
		return err
	}

	scanner := strings.ToLower(convertOptions.Scanner)
	opts := converter.Options{
		Name:     convertOptions.Name,
		Mapping:  converter.Mapping(AppConfig.Mapping(scanner)),
		Logger:   logger,
		Progress: progressLogger(logger),
	}
	targets, err := registry.Convert(scanner, data, opts)
	if err != nil {
		logger.Error("conversion failed", "scanner", scanner, "input", convertOptions.InputFile, "error", err)
		return fmt.Errorf("failed to convert %q: %w", convertOptions.InputFile, err)
	}

	w := &output.Writer{Format: convertOptions.Format, Indent: convertOptions.Indent, Logger: logger}
	paths, err := w.Write(convertOptions.OutputPath, scanner, targets)
	if err != nil {
		logger.Error("failed to write result", "error", err)
		return err
	}

	logger.Info("convert command completed successfully", "scanner", scanner, "reports", len(paths))
	return nil
}

// progressLogger traces the aggregation progress roughly every tenth of the records.
func progressLogger(l hclog.Logger) func(done, total int) {
	return func(done, total int) {
		step := total / 10
		if step == 0 {
			step = 1
		}
		if done%step == 0 || done == total {
			l.Trace("aggregating records", "done", done, "total", total)
		}
	}
}

// generateLongDescription lists the scanners the convert command accepts.
func generateLongDescription(r *converter.Registry) string {
	var names []string
	for _, s := range r.Scanners() {
		if s.Convert != nil {
			names = append(names, s.Name)
		}
	}
	return fmt.Sprintf(`Convert a scanner report into the Heimdall Data Format.

List of supported scanners:
  %s`, strings.Join(names, "\n  "))
}

// Initialize flags for the convert command.
func init() {
	ConvertCmd.Flags().StringVarP(&convertOptions.Scanner, "scanner", "p", "", "Name of the scanner that produced the input (see the list command).")
	ConvertCmd.Flags().StringVarP(&convertOptions.InputFile, "input-file", "i", "", "Path to the scanner report.")
	ConvertCmd.Flags().StringVarP(&convertOptions.OutputPath, "output", "o", "", "Path to the output file or directory where the HDF report will be saved.")
	ConvertCmd.Flags().StringVarP(&convertOptions.Name, "name", "n", "", "Name of the site to convert. Required for ZAP reports.")
	ConvertCmd.Flags().StringVarP(&convertOptions.Format, "format", "f", output.FormatHDF, "Format of the written report: hdf or sarif.")
	ConvertCmd.Flags().BoolVar(&convertOptions.Indent, "indent", false, "Indent the JSON output.")
	ConvertCmd.Flags().BoolP("help", "h", false, "Show help for the convert command.")
}

package awsconfig

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/scan-io-git/hdf-tools/internal/config"
	"github.com/scan-io-git/hdf-tools/internal/converter"
	awsmapper "github.com/scan-io-git/hdf-tools/internal/mappers/awsconfig"
	"github.com/scan-io-git/hdf-tools/internal/output"
)

// RunOptionsAWSConfig holds the arguments for the aws-config command.
type RunOptionsAWSConfig struct {
	CustomMapping string
	Region        string
	Profile       string
	OutputPath    string
	Format        string
	Indent        bool
}

// Global variables for configuration and command arguments
var (
	AppConfig        *config.Config
	logger           hclog.Logger
	awsConfigOptions RunOptionsAWSConfig

	exampleAWSConfigUsage = `  # Converting the AWS Config rules of the default account and region
  hdftools aws-config --output /path/to/aws-config.json

  # Adding a custom rule to NIST mapping and selecting the credentials profile
  hdftools aws-config --custom-mapping /path/to/mapping.csv --profile audit --region eu-west-2 -o out/`
)

// AWSConfigCmd represents the aws-config command.
var AWSConfigCmd = &cobra.Command{
	Use:                   "aws-config [--custom-mapping/-m PATH] [--region REGION] [--profile PROFILE] --output/-o PATH [--format/-f hdf|sarif]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleAWSConfigUsage,
	Short:                 "Convert the AWS Config rules of an account into the Heimdall Data Format",
	Long: `Convert the AWS Config rules of an account into the Heimdall Data Format.

Credentials are resolved by the AWS SDK from the environment and the shared config files.
A custom mapping is a CSV file with the columns AwsConfigRuleName,NIST-ID; its NIST ids are
added to the bundled ones and marked as user provided.`,
	RunE: runAWSConfigCommand,
}

// Init initializes the global configuration variable and logger.
func Init(cfg *config.Config, l hclog.Logger) {
	AppConfig = cfg
	logger = l
}

func runAWSConfigCommand(cmd *cobra.Command, args []string) error {
	if err := validateAWSConfigArgs(&awsConfigOptions, args); err != nil {
		logger.Error("invalid aws-config arguments", "error", err)
		return err
	}

	region := config.SetThen(awsConfigOptions.Region, AppConfig.AWSConfig.Region)
	profile := config.SetThen(awsConfigOptions.Profile, AppConfig.AWSConfig.Profile)
	api, err := awsmapper.NewAPI(region, profile)
	if err != nil {
		logger.Error("failed to create aws config client", "error", err)
		return err
	}

	source := &awsmapper.Source{API: api, CustomMapping: awsConfigOptions.CustomMapping}
	targets, err := source.Convert(cmd.Context(), converter.Options{
		Mapping: converter.Mapping(AppConfig.Mapping(awsmapper.Name)),
		Logger:  logger,
	})
	if err != nil {
		logger.Error("aws config conversion failed", "error", err)
		return fmt.Errorf("failed to convert aws config rules: %w", err)
	}

	w := &output.Writer{Format: awsConfigOptions.Format, Indent: awsConfigOptions.Indent, Logger: logger}
	if _, err := w.Write(awsConfigOptions.OutputPath, awsmapper.Name, targets); err != nil {
		logger.Error("failed to write result", "error", err)
		return err
	}

	logger.Info("aws-config command completed successfully")
	return nil
}

// Initialize flags for the aws-config command.
func init() {
	AWSConfigCmd.Flags().StringVarP(&awsConfigOptions.CustomMapping, "custom-mapping", "m", "", "Path to a CSV mapping AWS Config rule names to NIST ids.")
	AWSConfigCmd.Flags().StringVar(&awsConfigOptions.Region, "region", "", "AWS region (default from the config file or the SDK environment).")
	AWSConfigCmd.Flags().StringVar(&awsConfigOptions.Profile, "profile", "", "Shared credentials profile (default from the config file or the SDK environment).")
	AWSConfigCmd.Flags().StringVarP(&awsConfigOptions.OutputPath, "output", "o", "", "Path to the output file or directory where the HDF report will be saved.")
	AWSConfigCmd.Flags().StringVarP(&awsConfigOptions.Format, "format", "f", output.FormatHDF, "Format of the written report: hdf or sarif.")
	AWSConfigCmd.Flags().BoolVar(&awsConfigOptions.Indent, "indent", false, "Indent the JSON output.")
	AWSConfigCmd.Flags().BoolP("help", "h", false, "Show help for the aws-config command.")
}

package sonarqube

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/scan-io-git/hdf-tools/internal/config"
	"github.com/scan-io-git/hdf-tools/internal/converter"
	"github.com/scan-io-git/hdf-tools/internal/httpclient"
	sonarmapper "github.com/scan-io-git/hdf-tools/internal/mappers/sonarqube"
	"github.com/scan-io-git/hdf-tools/internal/output"
	"github.com/scan-io-git/hdf-tools/pkg/shared"
)

// EnvAuth names the environment variable read when the auth flag is not given.
const EnvAuth = "HDFTOOLS_SONARQUBE_AUTH"

// RunOptionsSonarQube holds the arguments for the sonarqube command.
type RunOptionsSonarQube struct {
	URL        string
	Project    string
	Auth       string
	OutputPath string
	Format     string
	Indent     bool
}

// Global variables for configuration and command arguments
var (
	AppConfig        *config.Config
	logger           hclog.Logger
	sonarqubeOptions RunOptionsSonarQube

	exampleSonarQubeUsage = `  # Converting the open vulnerabilities of a project
  hdftools sonarqube --url http://sonar:9000 --project my-app --output /path/to/sonarqube.json

  # Authenticating with a user token read from the environment
  HDFTOOLS_SONARQUBE_AUTH=squ_token: hdftools sonarqube --url https://sonar.example.com/api --project my-app -o out/`
)

// SonarQubeCmd represents the sonarqube command.
var SonarQubeCmd = &cobra.Command{
	Use:                   "sonarqube --url URL --project/-n KEY [--auth USER:PASSWORD] --output/-o PATH [--format/-f hdf|sarif]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleSonarQubeUsage,
	Short:                 "Convert the vulnerabilities of a SonarQube project into the Heimdall Data Format",
	RunE:                  runSonarQubeCommand,
}

// Init initializes the global configuration variable and logger.
func Init(cfg *config.Config, l hclog.Logger) {
	AppConfig = cfg
	logger = l
}

func runSonarQubeCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !shared.HasFlags(cmd.Flags()) {
		return cmd.Help()
	}

	if sonarqubeOptions.Auth == "" {
		sonarqubeOptions.Auth = os.Getenv(EnvAuth)
	}
	if err := validateSonarQubeArgs(&sonarqubeOptions, args); err != nil {
		logger.Error("invalid sonarqube arguments", "error", err)
		return err
	}

	settings := AppConfig.SonarQubeSettings()
	client := httpclient.New(logger, AppConfig)
	source := &sonarmapper.Source{
		API:            sonarmapper.NewAPI(client, apiURL(sonarqubeOptions.URL), sonarqubeOptions.Auth, settings.PageSize, logger),
		SnippetContext: settings.SnippetContext,
	}

	targets, err := source.Convert(cmd.Context(), sonarqubeOptions.Project, converter.Options{
		Mapping: converter.Mapping(AppConfig.Mapping(sonarmapper.Name)),
		Logger:  logger,
	})
	if err != nil {
		logger.Error("sonarqube conversion failed", "project", sonarqubeOptions.Project, "error", err)
		return fmt.Errorf("failed to convert sonarqube project %q: %w", sonarqubeOptions.Project, err)
	}

	w := &output.Writer{Format: sonarqubeOptions.Format, Indent: sonarqubeOptions.Indent, Logger: logger}
	if _, err := w.Write(sonarqubeOptions.OutputPath, sonarmapper.Name, targets); err != nil {
		logger.Error("failed to write result", "error", err)
		return err
	}

	logger.Info("sonarqube command completed successfully", "project", sonarqubeOptions.Project)
	return nil
}

// apiURL returns the web API root of a server url, adding the /api suffix when missing.
func apiURL(serverURL string) string {
	u := strings.TrimRight(serverURL, "/")
	if strings.HasSuffix(u, "/api") {
		return u
	}
	return u + "/api"
}

// Initialize flags for the sonarqube command.
func init() {
	SonarQubeCmd.Flags().StringVar(&sonarqubeOptions.URL, "url", "", "URL of the SonarQube server, with or without the /api suffix.")
	SonarQubeCmd.Flags().StringVarP(&sonarqubeOptions.Project, "project", "n", "", "Key of the SonarQube project.")
	SonarQubeCmd.Flags().StringVar(&sonarqubeOptions.Auth, "auth", "", "Credentials as USER:PASSWORD or TOKEN: (default is $"+EnvAuth+").")
	SonarQubeCmd.Flags().StringVarP(&sonarqubeOptions.OutputPath, "output", "o", "", "Path to the output file or directory where the HDF report will be saved.")
	SonarQubeCmd.Flags().StringVarP(&sonarqubeOptions.Format, "format", "f", output.FormatHDF, "Format of the written report: hdf or sarif.")
	SonarQubeCmd.Flags().BoolVar(&sonarqubeOptions.Indent, "indent", false, "Indent the JSON output.")
	SonarQubeCmd.Flags().BoolP("help", "h", false, "Show help for the sonarqube command.")
}

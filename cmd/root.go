package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/scan-io-git/hdf-tools/cmd/awsconfig"
	"github.com/scan-io-git/hdf-tools/cmd/convert"
	"github.com/scan-io-git/hdf-tools/cmd/list"
	"github.com/scan-io-git/hdf-tools/cmd/sonarqube"
	"github.com/scan-io-git/hdf-tools/cmd/version"
	"github.com/scan-io-git/hdf-tools/internal/config"
	"github.com/scan-io-git/hdf-tools/internal/logger"
	"github.com/scan-io-git/hdf-tools/pkg/shared/errors"
)

var (
	cfgFile   string
	verbose   bool
	AppConfig *config.Config
	Logger    hclog.Logger
	rootCmd   = &cobra.Command{
		Use:                   "hdftools [command]",
		SilenceUsage:          true,
		SilenceErrors:         true,
		DisableFlagsInUseLine: true,
		Short:                 "hdftools converts security scanner results into the Heimdall Data Format.",
		Long: `hdftools normalizes the output of static analysis, dynamic scanning, vulnerability
	scanning and cloud compliance tools into Heimdall Data Format (HDF) reports.
	`,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $"+config.EnvConfigPath+", optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging.")

	rootCmd.AddCommand(convert.ConvertCmd)
	rootCmd.AddCommand(sonarqube.SonarQubeCmd)
	rootCmd.AddCommand(awsconfig.AWSConfigCmd)
	rootCmd.AddCommand(list.ListCmd)
	rootCmd.AddCommand(version.NewVersionCmd())
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		return errors.ExitCode(err)
	}
	return 0
}

func initConfig(cmd *cobra.Command, args []string) error {
	var err error

	AppConfig, err = config.NewConfig(cfgFile)
	if err != nil {
		return errors.NewCommandError(fmt.Errorf("initializing config file failed: %w", err), 1)
	}
	if err := config.ValidateConfig(AppConfig); err != nil {
		return errors.NewCommandError(err, 1)
	}

	Logger = logger.NewLogger(AppConfig, "hdftools")
	logger.SetVerbose(Logger, verbose)

	version.Init(AppConfig)
	convert.Init(AppConfig, Logger.Named("convert"))
	sonarqube.Init(AppConfig, Logger.Named("sonarqube"))
	awsconfig.Init(AppConfig, Logger.Named("aws-config"))
	return nil
}

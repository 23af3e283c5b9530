package cmd

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	logwriter "github.com/sirupsen/logrus/hooks/writer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/qa-tracking/qa-report-tool/internal/publish"
	"github.com/qa-tracking/qa-report-tool/internal/qa/export"
	"github.com/qa-tracking/qa-report-tool/internal/source"
	"github.com/qa-tracking/qa-report-tool/pkg/cmd/get"
	cmdpublish "github.com/qa-tracking/qa-report-tool/pkg/cmd/publish"
	"github.com/qa-tracking/qa-report-tool/pkg/cmd/report"
	"github.com/qa-tracking/qa-report-tool/pkg/version"
)

const logFile = "qareport.log"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "qareport",
	Short: "QA Report",
	Long:  `QA Report reads the QA tracking sheet and creates reports on approvals, retests, errors and defects`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var err error

		// Validate logging level
		loglevel := viper.GetString("log-level")
		logrusLevel, err := log.ParseLevel(loglevel)
		if err != nil {
			log.Fatal(err)
		}
		log.SetLevel(logrusLevel)

		log.SetFormatter(&log.TextFormatter{
			FullTimestamp: true,
		})

		log.SetOutput(os.Stdout)
		fdLog, err := os.OpenFile(logFile, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
		if err != nil {
			log.Errorf("error opening file %s: %v", logFile, err)
		} else {
			log.AddHook(&logwriter.Hook{
				Writer: fdLog,
				LogLevels: []log.Level{
					log.PanicLevel,
					log.FatalLevel,
					log.ErrorLevel,
					log.WarnLevel,
					log.InfoLevel,
					log.DebugLevel,
				},
			})
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func initBindFlag(flag string) {
	err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag))
	if err != nil {
		log.Warnf("Unable to bind flag %s\n", flag)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default is .qareport.yaml in the current or home directory)")
	flags.String("log-level", "info", "logging level")
	flags.String("sheets-id", "", "Google Sheets spreadsheet ID of the tracking sheet")
	flags.String("sheets-range", source.DefaultSheetsRange, "A1 range read from the spreadsheet")
	flags.String("sheets-credentials", "", "service account credentials file for Google Sheets")
	flags.String("source-url", "", "URL of the tracking sheet published as CSV")
	flags.Duration("cache-ttl", source.DefaultCacheTTL, "time to keep remote rows in memory")
	flags.Int("export-min-bytes", export.DefaultMinBytes, "minimum size of a valid chart image")
	flags.Duration("export-timeout", export.DefaultTimeout, "time limit for each chart export strategy")
	flags.String("browser-bin", "", "browser binary used to render charts, an installed browser is used when not set")
	flags.String("publish-bucket", "", "S3 bucket receiving the published reports")
	flags.String("publish-region", publish.DefaultRegion, "region of the publish bucket")
	flags.String("publish-cloudfront-distribution", "", "CloudFront distribution invalidated after publishing")
	for _, name := range []string{
		"config", "log-level",
		"sheets-id", "sheets-range", "sheets-credentials", "source-url", "cache-ttl",
		"export-min-bytes", "export-timeout", "browser-bin",
		"publish-bucket", "publish-region", "publish-cloudfront-distribution",
	} {
		initBindFlag(name)
	}

	// Link in child commands
	rootCmd.AddCommand(report.NewCmdReport())
	rootCmd.AddCommand(get.NewCmdGet())
	rootCmd.AddCommand(cmdpublish.NewCmdPublish())
	rootCmd.AddCommand(version.NewCmdVersion())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(".qareport")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
	}

	viper.SetEnvPrefix("QAREPORT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warnf("Unable to read config file: %v", err)
		}
		return
	}
	log.Debugf("Using config file %s", viper.ConfigFileUsed())
}

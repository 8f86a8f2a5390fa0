// Package cmd provides the command-line interface for paramtrail with
// configuration loaded from several sources.
//
// Configuration System:
//
//	Sources in order of precedence:
//	1. Command-line flags (--config, --port, etc.) - highest priority
//	2. PARAMTRAIL_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (PARAMTRAIL_SERVER_PORT, etc.)
//	4. Configuration files (.paramtrail.yml) - lowest priority
//
// Environment Variables:
//
//	PARAMTRAIL_CONFIG_FILE: Path to custom configuration file
//	PARAMTRAIL_SERVER_PORT: Override server port
//	PARAMTRAIL_OBFUSCATION_SECRET_KEY: Obfuscation secret
//	And others following the PARAMTRAIL_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/paramtrail/internal/config"
	"github.com/conneroisu/paramtrail/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "paramtrail",
	Short: "Carry URL query parameters through a visitor's session",
	Long: `paramtrail captures configured URL query parameters (campaign, source,
referral codes) into the visitor's session and hands them back out when
rendering pages, composing links and prefilling third-party forms.

Quick Start:
  paramtrail keygen               Generate an obfuscation secret
  paramtrail params               List tracked parameters
  paramtrail serve                Start the HTTP host
  paramtrail compose URL k=v      Append tracked values to a URL
  paramtrail form NAME k=v        Build a prefilled form URL`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .paramtrail.yml, can also use PARAMTRAIL_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
}

// initConfig initializes the configuration system.
//
// Config file selection (highest to lowest):
//  1. --config flag
//  2. PARAMTRAIL_CONFIG_FILE environment variable
//  3. .paramtrail.yml in the current directory
func initConfig() {
	v := viper.GetViper()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(config.EnvPrefix + "_CONFIG_FILE"); envConfigFile != "" {
		v.SetConfigFile(envConfigFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".paramtrail")
	}

	config.SetDefaults(v)
	config.ConfigureEnv(v)
	bindFlags(v)

	// A missing file leaves the defaults in place.
	if err := v.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", v.ConfigFileUsed())
	} else if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && cfgFile != "" {
		fmt.Fprintln(os.Stderr, "Warning: could not read config file:", err)
	}
}

// bindFlags binds command flags to configuration keys. It runs on every
// initialization so bindings survive a viper reset.
func bindFlags(v *viper.Viper) {
	bindings := []struct {
		cmd  *cobra.Command
		flag string
		key  string
	}{
		{rootCmd, "log-level", "logging.level"},
		{rootCmd, "log-format", "logging.format"},
		{serveCmd, "port", "server.port"},
		{serveCmd, "host", "server.host"},
	}
	for _, b := range bindings {
		flag := b.cmd.PersistentFlags().Lookup(b.flag)
		if flag == nil {
			flag = b.cmd.Flags().Lookup(b.flag)
		}
		if flag != nil {
			_ = v.BindPFlag(b.key, flag)
		}
	}
}

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger from the logging section.
func newLogger(cfg *config.Config) logging.Logger {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	lc := logging.DefaultConfig()
	lc.Level = level
	lc.Format = cfg.Logging.Format
	return logging.NewLogger(lc)
}

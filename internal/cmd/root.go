package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "evtfilter",
	Short: "EvtFilter — parallel EVT/EVTX time-window extractor",
	Long: `EvtFilter aggregates Windows .evt/.evtx logs into a single CSV.
It drives the external LogParser decoder tool across a bounded worker pool,
filters records by time window and EventID, and merges every per-file result
into one schema-consistent table.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: $HOME/.evtfilter.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "console log level: debug, info, warn, error")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".evtfilter")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("evtfilter")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

// newConsoleLogger builds the stderr logger shared by a whole run.
func newConsoleLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(logLevel)))
	if err != nil {
		level = zerolog.InfoLevel
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Package cmd implements bundlectl, the operator CLI for checking bundle
// definitions against the pricing and constraint engines.
package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/GTDGit/gtd_bundle/internal/config"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bundlectl",
	Short: "Inspect and dry-run bundle definitions.",
	Long: `bundlectl prices bundles, checks size equivalence and inspects storefront
products using the same engines as the configurator API.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := zerolog.ParseLevel(viper.GetString("loglevel"))
		if err != nil {
			level = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(level)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "bundle.yaml", "bundle definition file")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "warn", "Set log level. Available: debug, info, warn, error")
	_ = viper.BindPFlag("loglevel", rootCmd.PersistentFlags().Lookup("loglevel"))
}

// initConfig binds BUNDLECTL_* environment variables.
func initConfig() {
	viper.SetEnvPrefix("BUNDLECTL")
	viper.AutomaticEnv()
}

// loadBundle reads the bundle definition named by --config. Commands that
// can run without one fall back to the built-in defaults.
func loadBundle(required bool) (*config.BundleConfig, error) {
	b, err := config.LoadBundle(cfgFile)
	if err == nil {
		return b, nil
	}
	if required {
		return nil, err
	}
	log.Debug().Err(err).Msg("using default bundle definition")
	return config.DefaultBundle()
}

package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openteller/depot/internal/common"
	"github.com/openteller/depot/internal/depot/configuration"
)

// rootCmd is the root Cobra command; sub-commands register themselves in
// their init functions.
var rootCmd = &cobra.Command{
	Use:   "depot",
	Short: "depot loads financial record exports and dispenses them to automated consumers.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String(
		"config", "", "Fully qualified path to application configuration file")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		panic(err)
	}
}

func loadConfiguration() configuration.DepotConfiguration {
	var config configuration.DepotConfiguration
	common.LoadConfig(&config, "./config/depot", viper.GetString("config"))
	return config
}

package cmd

import (
	"strings"

	"github.com/Iron-Ham/pciam/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "pciam",
	Short: "Multi-device phase correlation tile alignment",
	Long: `pciam aligns a grid of image tiles with the phase correlation image
alignment method, running one worker per device. Tiles may live on any
device; when a neighbor sits on a device without peer access its data is
staged through the worker's own device before correlating.

Devices are simulated in memory, so runs work on any machine.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/pciam/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("PCIAM")
	// Replace dots with underscores for nested keys in env vars
	// e.g., PCIAM_PIPELINE_NUM_PEAKS for pipeline.num_peaks
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

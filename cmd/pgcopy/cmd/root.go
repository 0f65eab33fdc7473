package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pgcopy",
	Short: "Convert between PostgreSQL COPY binary data and Apache Arrow",
	Long: `pgcopy converts PostgreSQL binary COPY streams to Apache Arrow and
back. It can decode a COPY (FORMAT binary) dump into an Arrow IPC file,
print the Arrow schema for a set of column types, or run a query against a
database and save the result as Arrow.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./pgcopy.yaml)")
}

// initConfig loads configuration from file and environment. Every flag bound
// to viper can also be set as PGCOPY_<FLAG> or in the config file; --config
// itself is read from the command line only.
func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("pgcopy")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PGCOPY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// A missing config file is fine; flags and env cover everything.
	_ = viper.ReadInConfig()
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/relief/internal/server"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "relief",
	Short: "Generate contour and hillshade vector tiles from terrain-RGB elevation tiles",
	Long: `relief produces Mapbox Vector Tiles on demand from a terrain-RGB
encoded elevation tileset. Each tile carries elevation contour lines,
hillshade shade bands, or both, traced from the stitched elevation grid
with Marching Squares.

Configuration is read from the environment:
  DEM_TILE_URL         source tile template with {z}, {x}, {y} placeholders
  DEM_ENCODING         terrarium or mapbox
  CACHE_ENABLED        false disables the response cache
  CACHE_TTL            response max-age in seconds
  COMPRESSION_ENABLED  false emits raw, uncompressed MVT

Examples:
  # Start the tile server on port 8080
  relief serve --port 8080

  # Render a single contour tile to a file
  relief render --kind contour --zoom 12 --x 2138 --y 1447 -o tile.mvt

  # Use a different elevation source
  DEM_TILE_URL=https://example.com/dem/{z}/{x}/{y}.webp relief serve`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.relief.yaml)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".relief" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".relief")
	}

	server.SetDefaults()
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

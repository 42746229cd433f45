// Command pagelens runs the browser-assistant backend: the extension-facing
// bridge daemon and the relay in front of the generative-language API.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pagelens/pagelens/internal/debug"
)

// Version is the pagelens version.
// Can be overridden at build time with: -ldflags "-X main.Version=x.y.z"
var Version = "0.2.0"

var rootCmd = &cobra.Command{
	Use:          "pagelens",
	Short:        "Backend services for the pagelens browser extension",
	SilenceUsage: true,
}

var (
	configDir string
	debugMode bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".",
		"Directory to search for "+configFileHint)
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false,
		"Enable debug logging (also via PAGELENS_DEBUG)")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if debugMode {
			debug.Enable()
			if err := debug.SetLogFile("pagelens.log"); err != nil {
				fmt.Fprintf(os.Stderr, "debug log file: %v\n", err)
			}
		}
	}

	rootCmd.AddCommand(versionCmd)
}

const configFileHint = ".pagelens.kdl (searched upward)"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pagelens version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pagelens v%s\n", Version)
	},
}

func main() {
	// Credentials commonly live in a local .env during development.
	_ = godotenv.Load()

	err := rootCmd.Execute()
	debug.Close()
	if err != nil {
		os.Exit(1)
	}
}

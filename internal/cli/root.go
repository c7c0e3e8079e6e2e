// Package cli implements the vivarium command line interface.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/vivarium-collective/vivarium/internal/cli.version=1.2.3"
	version = "0.4.1"
	logo    = "\n" +
		"        _                  _\n" +
		" __   _(_)_   ____ _ _ __(_)_   _ _ __ ___\n" +
		" \\ \\ / / \\ \\ / / _` | '__| | | | | '_ ` _ \\\n" +
		"  \\ V /| |\\ V / (_| | |  | | |_| | | | | | |\n" +
		"   \\_/ |_| \\_/ \\__,_|_|  |_|\\__,_|_| |_| |_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "vivarium",
	Short: "Vivarium - autonomous agent collective control plane",
	Long:  color.CyanString(logo) + "\nThe tick-driven control plane for a collective of autonomous agents.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("vivarium", version)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tickCmd)
	rootCmd.AddCommand(schedulesCmd)
	rootCmd.AddCommand(statusCmd)
}

func printHeader(title string) {
	color.New(color.FgCyan, color.Bold).Println(title)
}

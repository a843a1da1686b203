// Command modsim runs a simulated Modbus TCP device whose holding registers
// can be driven by random walks, and talks to such devices remotely.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "modsim",
	Short: "Simulated Modbus register bank with live terminal display.",
	Long: `modsim serves a bank of Modbus registers over TCP. Holding registers can be ` +
		`set statically or driven by bounded random walks, and their live values ` +
		`can be watched in the terminal.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, getCmd, setCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

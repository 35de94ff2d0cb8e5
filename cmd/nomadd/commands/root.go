// Package commands implements nomadd's CLI surface: the `start` daemon,
// `init` config scaffolding, and the `upload` admin subcommands, grounded
// on dfsctl's cobra root-command idiom. Unlike dfsctl, nomadd is a single
// combined server+admin binary, so every subcommand wires the core stack
// in-process (via cmd/nomadd/wire) instead of calling out over HTTP.
package commands

import (
	"os"

	uploadcmd "github.com/BlackLotus/nomad/cmd/nomadd/commands/upload"
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// configPath holds the --config flag shared by every subcommand.
var configPath string

var rootCmd = &cobra.Command{
	Use:   "nomadd",
	Short: "NOMAD archive daemon and admin CLI",
	Long: `nomadd runs the NOMAD upload-processing daemon and doubles as its
own admin client: every "upload" subcommand talks directly to the same
state store, file layout, and search index the daemon uses, rather than
going over the network.

Use "nomadd [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command, for testing.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: $XDG_CONFIG_HOME/nomad/nomad.yaml)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(uploadcmd.Cmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Printf("nomadd %s (commit: %s, built: %s)\n", Version, Commit, Date)
		return nil
	},
}

// Exit prints an error to stderr and exits with status 1.
func Exit(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
	os.Exit(1)
}

// Package upload implements nomadd's `upload ls/reprocess/delete` admin
// subcommands, grounded on dfsctl's per-resource command packages but
// wired directly into pkg/controller and pkg/statestore in-process —
// nomadd is a combined server+admin binary, so there is no HTTP round
// trip the way dfsctl's apiclient-backed commands make one.
package upload

import (
	"github.com/spf13/cobra"
)

// Cmd is the `upload` parent command, added to the root command by
// cmd/nomadd/commands.
var Cmd = &cobra.Command{
	Use:   "upload",
	Short: "Inspect and administer uploads",
}

// configPath and outputFormat are bound to Cmd's persistent --config and
// -o flags by this package's init, so they are set before any RunE executes.
var (
	configPath   string
	outputFormat string
)

func init() {
	Cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: $XDG_CONFIG_HOME/nomad/nomad.yaml)")
	Cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table|json|yaml)")

	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(reprocessCmd)
	Cmd.AddCommand(deleteCmd)
}

package commands

import (
	"fmt"

	"github.com/BlackLotus/nomad/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter nomad.yaml configuration file",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	var path string
	var err error

	if configPath != "" {
		path = configPath
		err = config.InitConfigToPath(path, initForce)
	} else {
		path, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}

	cmd.Printf("Configuration file created at: %s\n", path)
	cmd.Println("Edit it to match your deployment, then run:")
	cmd.Printf("  nomadd start --config %s\n", path)
	return nil
}

package upload

import (
	"fmt"

	"github.com/BlackLotus/nomad/cmd/nomadd/wire"
	"github.com/BlackLotus/nomad/pkg/config"
	"github.com/BlackLotus/nomad/pkg/controller"
	"github.com/spf13/cobra"
)

var reprocessUploadID string

var reprocessCmd = &cobra.Command{
	Use:   "reprocess",
	Short: "Enqueue a reprocess of an upload (§4.7)",
	RunE:  runReprocess,
}

func init() {
	reprocessCmd.Flags().StringVar(&reprocessUploadID, "upload-id", "", "Upload ID to reprocess (required)")
	_ = reprocessCmd.MarkFlagRequired("upload-id")
}

func runReprocess(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	stack, err := wire.Build(cfg)
	if err != nil {
		return fmt.Errorf("wiring core stack: %w", err)
	}
	defer stack.Close()

	admin := controller.Actor{UserID: "nomadd-admin-cli", IsAdmin: true}
	if err := stack.Controller.Reprocess(cmd.Context(), admin, reprocessUploadID); err != nil {
		return fmt.Errorf("reprocessing upload %s: %w", reprocessUploadID, err)
	}

	cmd.Printf("Reprocess enqueued for upload %s\n", reprocessUploadID)
	return nil
}

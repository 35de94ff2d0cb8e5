package upload

import (
	"fmt"

	"github.com/BlackLotus/nomad/cmd/nomadd/wire"
	"github.com/BlackLotus/nomad/pkg/config"
	"github.com/BlackLotus/nomad/pkg/controller"
	"github.com/spf13/cobra"
)

var deleteUploadID string

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete an upload: search index, archives, raw files, and state (§4.7)",
	RunE:  runDelete,
}

func init() {
	deleteCmd.Flags().StringVar(&deleteUploadID, "upload-id", "", "Upload ID to delete (required)")
	_ = deleteCmd.MarkFlagRequired("upload-id")
}

func runDelete(cmd *cobra.Command, args []string) error {
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
	if err := stack.Controller.Delete(cmd.Context(), admin, deleteUploadID); err != nil {
		return fmt.Errorf("deleting upload %s: %w", deleteUploadID, err)
	}

	cmd.Printf("Upload %s deleted\n", deleteUploadID)
	return nil
}

package upload

import (
	"fmt"
	"os"

	"github.com/BlackLotus/nomad/cmd/nomadd/wire"
	"github.com/BlackLotus/nomad/internal/cliutil"
	"github.com/BlackLotus/nomad/pkg/config"
	"github.com/BlackLotus/nomad/pkg/model"
	"github.com/spf13/cobra"
)

var listAuthor string

var listCmd = &cobra.Command{
	Use:   "ls",
	Short: "List uploads",
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listAuthor, "author", "", "Main author user ID to filter by (required)")
	_ = listCmd.MarkFlagRequired("author")
}

// uploadList renders []*model.Upload as a table.
type uploadList []*model.Upload

func (ul uploadList) Headers() []string {
	return []string{"UPLOAD_ID", "NAME", "STATUS", "EMBARGO", "JOINED", "CREATED"}
}

func (ul uploadList) Rows() [][]string {
	rows := make([][]string, 0, len(ul))
	for _, u := range ul {
		rows = append(rows, []string{
			u.UploadID,
			cliutil.EmptyOr(u.UploadName, "-"),
			string(u.ProcessStatus),
			cliutil.BoolToYesNo(u.EmbargoLength > 0),
			cliutil.BoolToYesNo(u.Joined),
			u.UploadCreateTime.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	format, err := cliutil.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	stack, err := wire.Build(cfg)
	if err != nil {
		return fmt.Errorf("wiring core stack: %w", err)
	}
	defer stack.Close()

	uploads, err := stack.Store.ListUploadsByAuthor(cmd.Context(), listAuthor)
	if err != nil {
		return fmt.Errorf("listing uploads: %w", err)
	}

	return cliutil.PrintOutput(os.Stdout, format, uploads, len(uploads) == 0, "No uploads found.", uploadList(uploads))
}

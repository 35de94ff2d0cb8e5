// Command nomadd is the NOMAD archive-processing daemon: it runs the
// upload-controller HTTP API and scheduler worker pool, and doubles as
// its own admin CLI for upload inspection and lifecycle operations.
package main

import (
	"fmt"
	"os"

	"github.com/BlackLotus/nomad/cmd/nomadd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

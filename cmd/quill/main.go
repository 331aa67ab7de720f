// Command quill is the entry point for the Quill chat assistant backend.
// It provides a CLI interface (via Cobra) and an HTTP server exposing the
// completion, document, and session APIs.
package main

import (
	"fmt"
	"os"

	"github.com/quillchat/quill/cmd/quill/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

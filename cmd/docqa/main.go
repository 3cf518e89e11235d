// Command docqa answers questions about a corpus of documents. Documents are
// ingested from local files or URLs, split into fragments, ranked against
// each question and passed to an LLM as grounding context. It provides a CLI
// interface (via Cobra) and an HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/docqa-go/cmd/docqa/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Command provstream runs windowed rule inference over sensor streams and
// keeps an append-only provenance store of every inferred fact.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/provstream/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}

// convoprobe runs scenario catalogs against a conversational assistant.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/convoprobe/internal/cli"
)

// version is set by ldflags at build time.
var version = "dev"

func main() {
	cli.Version = version
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "convoprobe: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}

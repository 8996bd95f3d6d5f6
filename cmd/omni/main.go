// Command omni drives a schema-defined reactive store from the shell.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/omnistate/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}

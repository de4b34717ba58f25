// Command overfall runs engine scenarios, validates state documents and
// inspects persisted snapshot history.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/overfall/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}

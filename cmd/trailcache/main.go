package main

import (
	"fmt"
	"os"

	"github.com/trailcache/trailcache/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "trailcache: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}

package main

import (
	"context"
	"os"

	"github.com/conduit-lang/metanode/internal/cli/commands"
)

var (
	// Version information - set at build time with -ldflags
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	commands.Version = Version
	commands.GitCommit = GitCommit
	commands.BuildDate = BuildDate

	if err := commands.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}

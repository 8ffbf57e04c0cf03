package main

import (
	"os"

	"github.com/juancollazo-ch/bulk-void-service/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		format, _ := cmd.PersistentFlags().GetString("format")
		out := &cli.OutputFormatter{Format: format, Writer: os.Stdout, ErrWriter: os.Stderr}
		out.Error(err)
		os.Exit(cli.GetExitCode(err))
	}
}

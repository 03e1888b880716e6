package main

import (
	"fmt"
	"os"

	"github.com/dpoeymirou/call-me-reminder/internal/client/cmd"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	root := cmd.NewRootCmd(version, buildDate)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

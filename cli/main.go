package main

import (
	"os"

	"github.com/gi-connect/gi-connect-stack/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

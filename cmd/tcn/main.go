package main

import (
	"os"

	"tcncore/cmd/tcn/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

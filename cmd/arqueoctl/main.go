package main

import (
	"os"

	"arqueo/cmd/arqueoctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/miradorstack/mirador-ids/cmd/mirador-ids/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

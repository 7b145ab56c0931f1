package main

import (
	"os"

	"github.com/choiway/photomerge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/hoppsim/hybrid/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

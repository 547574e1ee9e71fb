package main

import (
	"os"

	"github.com/quickcourt/quickcourt/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

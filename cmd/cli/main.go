package main

import (
	"os"

	"github.com/voltway/distctl/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

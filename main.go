package main

import (
	"os"

	"github.com/atlasreq/tracegraph/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

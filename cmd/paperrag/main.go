package main

import (
	"os"

	"github.com/kailas-cloud/paperrag/cmd/paperrag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

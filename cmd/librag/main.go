package main

import (
	"os"

	"librag/cmd/librag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/conneroisu/treebark/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

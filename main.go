package main

import (
	"os"

	"github.com/fleetvolt/battsched/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/bnema/truck-load-watch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
